// FilePath: internal/repository/sqldb/sqldb.syncuser.go
package sqldb

import (
	"context"
	"database/sql"
	"time"

	"github.com/LowellObservatory/indi-allsky/internal/database"
	"github.com/LowellObservatory/indi-allsky/internal/errors"
	"github.com/LowellObservatory/indi-allsky/internal/models"
)

type SyncUserRepo struct {
	SQLBaseRepo
}

func NewSyncUserRepository(db database.DB) *SyncUserRepo {
	return &SyncUserRepo{SQLBaseRepo{db: db}}
}

func (r *SyncUserRepo) GetByUsername(ctx context.Context, username string) (*models.SyncUser, error) {
	user := &models.SyncUser{}
	query := `SELECT * FROM sync_users WHERE username = $1`

	err := r.db.GetDB().GetContext(ctx, user, query, username)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("user not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get user", err)
	}
	return user, nil
}

func (r *SyncUserRepo) Create(ctx context.Context, user *models.SyncUser) error {
	user.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO sync_users (username, apikey, created_at)
		VALUES ($1, $2, $3)
		RETURNING id`

	err := r.db.GetDB().QueryRowContext(ctx, query,
		user.Username, user.APIKey, user.CreatedAt,
	).Scan(&user.ID)
	if err != nil {
		return errors.NewDatabaseError("failed to create user", err)
	}
	return nil
}
