// FilePath: internal/repository/sqldb/sqldb.camera.go
package sqldb

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/LowellObservatory/indi-allsky/internal/database"
	"github.com/LowellObservatory/indi-allsky/internal/errors"
	"github.com/LowellObservatory/indi-allsky/internal/models"
)

type CameraRepo struct {
	SQLBaseRepo
}

func NewCameraRepository(db database.DB) *CameraRepo {
	return &CameraRepo{SQLBaseRepo{db: db}}
}

func (r *CameraRepo) Create(ctx context.Context, camera *models.Camera) error {
	now := time.Now().UTC()
	camera.CreatedAt = now
	camera.UpdatedAt = now

	// Locally created cameras mint their own identity; remote upserts
	// arrive with the node's uuid already set.
	if camera.UUID == "" {
		camera.UUID = uuid.NewString()
	}

	query := `
		INSERT INTO cameras (uuid, name, friendly_name, hidden, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := r.db.GetDB().QueryRowContext(ctx, query,
		camera.UUID, camera.Name, camera.FriendlyName, camera.Hidden,
		camera.CreatedAt, camera.UpdatedAt,
	).Scan(&camera.ID)
	if err != nil {
		return errors.NewDatabaseError("failed to create camera", err)
	}
	return nil
}

func (r *CameraRepo) Get(ctx context.Context, id int64) (*models.Camera, error) {
	camera := &models.Camera{}
	query := `SELECT * FROM cameras WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, camera, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("camera not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get camera", err)
	}
	return camera, nil
}

func (r *CameraRepo) GetByUUID(ctx context.Context, uuid string) (*models.Camera, error) {
	camera := &models.Camera{}
	query := `SELECT * FROM cameras WHERE uuid = $1`

	err := r.db.GetDB().GetContext(ctx, camera, query, uuid)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("camera not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get camera", err)
	}
	return camera, nil
}

func (r *CameraRepo) GetByIDAndUUID(ctx context.Context, id int64, uuid string) (*models.Camera, error) {
	camera := &models.Camera{}
	query := `SELECT * FROM cameras WHERE id = $1 AND uuid = $2`

	err := r.db.GetDB().GetContext(ctx, camera, query, id, uuid)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("camera not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get camera", err)
	}
	return camera, nil
}

// UpsertByUUID creates or updates a camera keyed by its uuid and
// returns the stored row. This is how remote cameras register.
func (r *CameraRepo) UpsertByUUID(ctx context.Context, camera *models.Camera) (*models.Camera, error) {
	_, err := r.GetByUUID(ctx, camera.UUID)
	if err != nil {
		if !errors.IsNotFound(err) {
			return nil, err
		}
		if createErr := r.Create(ctx, camera); createErr != nil {
			return nil, createErr
		}
		return camera, nil
	}

	query := `
		UPDATE cameras SET name = $1, friendly_name = $2, hidden = $3, updated_at = $4
		WHERE uuid = $5`

	_, err = r.db.GetDB().ExecContext(ctx, query,
		camera.Name, camera.FriendlyName, camera.Hidden, time.Now().UTC(), camera.UUID)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to update camera", err)
	}

	return r.GetByUUID(ctx, camera.UUID)
}

func (r *CameraRepo) List(ctx context.Context, offset, limit int) ([]*models.Camera, error) {
	cameras := []*models.Camera{}
	query := `SELECT * FROM cameras ORDER BY id LIMIT $1 OFFSET $2`

	err := r.db.GetDB().SelectContext(ctx, &cameras, query, limit, offset)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list cameras", err)
	}
	return cameras, nil
}
