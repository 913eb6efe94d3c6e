// FilePath: internal/repository/repository.go
package repository

import (
	"context"
	"time"

	"github.com/LowellObservatory/indi-allsky/internal/database"
	"github.com/LowellObservatory/indi-allsky/internal/models"
)

// CameraRepository defines the interface for camera records. Remote
// instances address cameras by uuid only.
type CameraRepository interface {
	database.Repository
	Create(ctx context.Context, camera *models.Camera) error
	Get(ctx context.Context, id int64) (*models.Camera, error)
	GetByUUID(ctx context.Context, uuid string) (*models.Camera, error)
	GetByIDAndUUID(ctx context.Context, id int64, uuid string) (*models.Camera, error)
	UpsertByUUID(ctx context.Context, camera *models.Camera) (*models.Camera, error)
	List(ctx context.Context, offset, limit int) ([]*models.Camera, error)
}

// AssetRepository defines the interface for polymorphic asset records.
type AssetRepository interface {
	database.Repository
	Add(ctx context.Context, asset *models.Asset) error
	Get(ctx context.Context, assetType models.AssetType, id int64) (*models.Asset, error)
	GetByCamera(ctx context.Context, assetType models.AssetType, cameraID, id int64) (*models.Asset, error)
	GetByFilename(ctx context.Context, assetType models.AssetType, filename string) (*models.Asset, error)
	DeleteByFilename(ctx context.Context, assetType models.AssetType, filename string) error
	Delete(ctx context.Context, id int64) error
	SetRemote(ctx context.Context, id int64, remoteURL, s3Key string) error
	ListOlderThan(ctx context.Context, assetType models.AssetType, before time.Time) ([]*models.Asset, error)
}

// SyncUserRepository resolves API accounts for the sync endpoints.
type SyncUserRepository interface {
	GetByUsername(ctx context.Context, username string) (*models.SyncUser, error)
	Create(ctx context.Context, user *models.SyncUser) error
}

// TaskQueueRepository is the durable job ledger between asset
// producers and upload workers. ClaimNext must be safe against
// concurrent claim attempts.
type TaskQueueRepository interface {
	Enqueue(ctx context.Context, queue models.TaskQueueName, payload *models.JobPayload) (int64, error)
	Get(ctx context.Context, id int64) (*models.TaskQueueEntry, error)
	ClaimNext(ctx context.Context, queue models.TaskQueueName) (*models.TaskQueueEntry, error)
	Claim(ctx context.Context, id int64) (*models.TaskQueueEntry, error)
	Complete(ctx context.Context, id int64, success bool) error
	RequeueStale(ctx context.Context, queue models.TaskQueueName, olderThan time.Duration) (int64, error)
	PruneCompleted(ctx context.Context, before time.Time) (int64, error)
}
