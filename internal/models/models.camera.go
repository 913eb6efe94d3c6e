// FilePath: internal/models/models.camera.go
package models

import "time"

// Camera represents one capture device. The uuid is the stable
// cross-instance identity key; local ids are not portable between
// capture nodes and the aggregator.
type Camera struct {
	ID           int64     `json:"id" db:"id"`
	UUID         string    `json:"uuid" db:"uuid"`
	Name         string    `json:"name" db:"name"`
	FriendlyName string    `json:"friendly_name" db:"friendly_name"`
	Hidden       bool      `json:"hidden" db:"hidden"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// SyncUser is an API account allowed to use the sync endpoints.
type SyncUser struct {
	ID        int64     `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	APIKey    string    `json:"-" db:"apikey"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
