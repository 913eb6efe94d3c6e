// FilePath: internal/repository/sqldb/sqldb.asset.go
package sqldb

import (
	"context"
	"database/sql"
	"time"

	"github.com/LowellObservatory/indi-allsky/internal/database"
	"github.com/LowellObservatory/indi-allsky/internal/errors"
	"github.com/LowellObservatory/indi-allsky/internal/models"
)

type AssetRepo struct {
	SQLBaseRepo
}

func NewAssetRepository(db database.DB) *AssetRepo {
	return &AssetRepo{SQLBaseRepo{db: db}}
}

func (r *AssetRepo) Add(ctx context.Context, asset *models.Asset) error {
	now := time.Now().UTC()
	asset.CreatedAt = now
	asset.UpdatedAt = now
	if asset.Metadata == nil {
		asset.Metadata = models.JSONMap{}
	}

	query := `
		INSERT INTO assets (
			type, camera_id, filename, day_date, create_date,
			night, success, remote_url, s3_key, metadata,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	err := r.db.GetDB().QueryRowContext(ctx, query,
		asset.Type, asset.CameraID, asset.Filename, asset.DayDate, asset.CreateDate,
		asset.Night, asset.Success, asset.RemoteURL, asset.S3Key, asset.Metadata,
		asset.CreatedAt, asset.UpdatedAt,
	).Scan(&asset.ID)
	if err != nil {
		return errors.NewDatabaseError("failed to add asset", err)
	}
	return nil
}

func (r *AssetRepo) Get(ctx context.Context, assetType models.AssetType, id int64) (*models.Asset, error) {
	asset := &models.Asset{}
	query := `SELECT * FROM assets WHERE type = $1 AND id = $2`

	err := r.db.GetDB().GetContext(ctx, asset, query, assetType, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("asset not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get asset", err)
	}
	return asset, nil
}

func (r *AssetRepo) GetByCamera(ctx context.Context, assetType models.AssetType, cameraID, id int64) (*models.Asset, error) {
	asset := &models.Asset{}
	query := `SELECT * FROM assets WHERE type = $1 AND camera_id = $2 AND id = $3`

	err := r.db.GetDB().GetContext(ctx, asset, query, assetType, cameraID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("asset not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get asset", err)
	}
	return asset, nil
}

func (r *AssetRepo) GetByFilename(ctx context.Context, assetType models.AssetType, filename string) (*models.Asset, error) {
	asset := &models.Asset{}
	query := `SELECT * FROM assets WHERE type = $1 AND filename = $2`

	err := r.db.GetDB().GetContext(ctx, asset, query, assetType, filename)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("asset not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get asset", err)
	}
	return asset, nil
}

func (r *AssetRepo) DeleteByFilename(ctx context.Context, assetType models.AssetType, filename string) error {
	query := `DELETE FROM assets WHERE type = $1 AND filename = $2`

	result, err := r.db.GetDB().ExecContext(ctx, query, assetType, filename)
	if err != nil {
		return errors.NewDatabaseError("failed to delete asset", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}
	if rows == 0 {
		return errors.NewNotFoundError("asset not found", nil)
	}
	return nil
}

func (r *AssetRepo) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM assets WHERE id = $1`

	result, err := r.db.GetDB().ExecContext(ctx, query, id)
	if err != nil {
		return errors.NewDatabaseError("failed to delete asset", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}
	if rows == 0 {
		return errors.NewNotFoundError("asset not found", nil)
	}
	return nil
}

// SetRemote records that the asset is available remotely (sync url
// and/or S3 object key).
func (r *AssetRepo) SetRemote(ctx context.Context, id int64, remoteURL, s3Key string) error {
	query := `UPDATE assets SET remote_url = $1, s3_key = $2, updated_at = $3 WHERE id = $4`

	result, err := r.db.GetDB().ExecContext(ctx, query, remoteURL, s3Key, time.Now().UTC(), id)
	if err != nil {
		return errors.NewDatabaseError("failed to update asset", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}
	if rows == 0 {
		return errors.NewNotFoundError("asset not found", nil)
	}
	return nil
}

func (r *AssetRepo) ListOlderThan(ctx context.Context, assetType models.AssetType, before time.Time) ([]*models.Asset, error) {
	assets := []*models.Asset{}
	query := `SELECT * FROM assets WHERE type = $1 AND create_date < $2 ORDER BY create_date`

	err := r.db.GetDB().SelectContext(ctx, &assets, query, assetType, before)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list old assets", err)
	}
	return assets, nil
}
