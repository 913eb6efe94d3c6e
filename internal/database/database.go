// FilePath: internal/database/database.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	nuts "github.com/vaudience/go-nuts"
	_ "modernc.org/sqlite"

	"github.com/LowellObservatory/indi-allsky/internal/config"
)

// DB is an interface that both backends must implement. Postgres is
// used on the aggregator; SQLite on embedded capture nodes and in
// tests. All queries use $N placeholders, which both drivers accept.
type DB interface {
	Close() error
	Ping(ctx context.Context) error
	GetDB() *sqlx.DB
	DriverName() string
}

// PostgresDB represents a PostgreSQL database connection
type PostgresDB struct {
	db *sqlx.DB
}

// SQLiteDB represents an embedded SQLite database connection
type SQLiteDB struct {
	db *sqlx.DB
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Repository represents common repository operations
type Repository interface {
	BeginTx(ctx context.Context) (Transaction, error)
}

// New opens the backend selected by the configuration.
func New(cfg config.DatabaseConfig) (DB, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgresDB(cfg)
	case "sqlite":
		return NewSQLiteDB(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(cfg config.DatabaseConfig) (DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("error connecting to PostgreSQL: %w", err)
	}

	nuts.L.Infof("[PostgresDB] Connected to %s:%d/%s", cfg.Host, cfg.Port, cfg.DBName)
	return &PostgresDB{db: db}, nil
}

// NewSQLiteDB opens (creating if necessary) an embedded SQLite database.
func NewSQLiteDB(path string) (DB, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening SQLite database: %w", err)
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// under the task queue's concurrent claim attempts.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("error enabling WAL: %w", err)
	}

	nuts.L.Infof("[SQLiteDB] Opened %s", path)
	return &SQLiteDB{db: db}, nil
}

// Implementation of DB interface for PostgresDB
func (p *PostgresDB) Close() error {
	return p.db.Close()
}

func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresDB) GetDB() *sqlx.DB {
	return p.db
}

func (p *PostgresDB) DriverName() string {
	return "postgres"
}

// Implementation of DB interface for SQLiteDB
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteDB) GetDB() *sqlx.DB {
	return s.db
}

func (s *SQLiteDB) DriverName() string {
	return "sqlite"
}
