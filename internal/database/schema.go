// FilePath: internal/database/schema.go
package database

import "fmt"

// Schema for the sync/upload plane. The asset classes share one table
// with a type discriminator; the unique filename index is what makes
// the sync replace operation reconcile to exactly one row per path.

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS cameras (
	id            BIGSERIAL PRIMARY KEY,
	uuid          TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL DEFAULT '',
	friendly_name TEXT NOT NULL DEFAULT '',
	hidden        BOOLEAN NOT NULL DEFAULT FALSE,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS sync_users (
	id         BIGSERIAL PRIMARY KEY,
	username   TEXT NOT NULL UNIQUE,
	apikey     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS assets (
	id          BIGSERIAL PRIMARY KEY,
	type        TEXT NOT NULL,
	camera_id   BIGINT NOT NULL REFERENCES cameras(id),
	filename    TEXT NOT NULL UNIQUE,
	day_date    TEXT NOT NULL DEFAULT '',
	create_date TIMESTAMPTZ NOT NULL,
	night       BOOLEAN NOT NULL DEFAULT FALSE,
	success     BOOLEAN NOT NULL DEFAULT TRUE,
	remote_url  TEXT NOT NULL DEFAULT '',
	s3_key      TEXT NOT NULL DEFAULT '',
	metadata    JSONB NOT NULL DEFAULT '{}',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_assets_camera_type
	ON assets(camera_id, type, create_date DESC);

CREATE TABLE IF NOT EXISTS task_queue (
	id         BIGSERIAL PRIMARY KEY,
	queue      TEXT NOT NULL,
	state      TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	started_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_task_queue_claim
	ON task_queue(queue, state, id);
`

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS cameras (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	uuid          TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL DEFAULT '',
	friendly_name TEXT NOT NULL DEFAULT '',
	hidden        BOOLEAN NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sync_users (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	username   TEXT NOT NULL UNIQUE,
	apikey     TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS assets (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	type        TEXT NOT NULL,
	camera_id   INTEGER NOT NULL REFERENCES cameras(id),
	filename    TEXT NOT NULL UNIQUE,
	day_date    TEXT NOT NULL DEFAULT '',
	create_date TIMESTAMP NOT NULL,
	night       BOOLEAN NOT NULL DEFAULT 0,
	success     BOOLEAN NOT NULL DEFAULT 1,
	remote_url  TEXT NOT NULL DEFAULT '',
	s3_key      TEXT NOT NULL DEFAULT '',
	metadata    TEXT NOT NULL DEFAULT '{}',
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_assets_camera_type
	ON assets(camera_id, type, create_date DESC);

CREATE TABLE IF NOT EXISTS task_queue (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	queue      TEXT NOT NULL,
	state      TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	started_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_task_queue_claim
	ON task_queue(queue, state, id);
`

// InitSchema creates the tables and indexes if they do not exist.
func InitSchema(db DB) error {
	var schema string
	switch db.DriverName() {
	case "postgres":
		schema = schemaPostgres
	case "sqlite":
		schema = schemaSQLite
	default:
		return fmt.Errorf("no schema for driver %q", db.DriverName())
	}

	if _, err := db.GetDB().Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}
