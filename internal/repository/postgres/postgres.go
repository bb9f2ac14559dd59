// Package postgres implements the repository interfaces on the managed
// Postgres database that also backs authentication.
//
// Standalone milestone attributes are stored in a JSONB metadata column, the
// schema the hosted database was created with.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sakif/keepsake/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// PoolConfig tunes the connection pool. Zero values keep pgx defaults.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
}

// DefaultPoolConfig is sized for a single API instance.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:        10,
		MinConns:        2,
		MaxConnIdleTime: time.Minute,
	}
}

type DB struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects to databaseURL and verifies the connection.
func New(ctx context.Context, databaseURL string, poolCfg PoolConfig, logger *slog.Logger) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parsing database url: %w", err)
	}
	if poolCfg.MaxConns > 0 {
		cfg.MaxConns = poolCfg.MaxConns
	}
	if poolCfg.MinConns > 0 {
		cfg.MinConns = poolCfg.MinConns
	}
	if poolCfg.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = poolCfg.MaxConnIdleTime
	}

	logger.Info("connecting to postgres",
		slog.String("host", cfg.ConnConfig.Host),
		slog.Int("port", int(cfg.ConnConfig.Port)),
		slog.String("database", cfg.ConnConfig.Database),
	)

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connecting: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: pinging: %w", err)
	}

	return &DB{pool: pool, logger: logger}, nil
}

func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Migrate creates the tables this service reads when they do not exist yet.
// On the hosted database they normally do, and only the metadata column may
// be missing on schemas that predate standalone milestones.
func (db *DB) Migrate(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS media_files (
			id            uuid PRIMARY KEY,
			secure_url    text NOT NULL,
			resource_type text NOT NULL DEFAULT 'image'
		);

		CREATE TABLE IF NOT EXISTS memories (
			id            uuid PRIMARY KEY,
			user_id       uuid NOT NULL,
			title         text NOT NULL DEFAULT '',
			description   text NOT NULL DEFAULT '',
			media_id      uuid REFERENCES media_files(id) ON DELETE SET NULL,
			location_name text,
			location_lat  double precision,
			location_lng  double precision,
			is_milestone  boolean NOT NULL DEFAULT false,
			is_public     boolean NOT NULL DEFAULT false,
			created_at    timestamptz NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_memories_user_id ON memories(user_id);

		CREATE TABLE IF NOT EXISTS milestones (
			id               uuid PRIMARY KEY,
			user_id          uuid NOT NULL,
			memory_id        uuid,
			celebration_date timestamptz NOT NULL,
			reminder_enabled boolean NOT NULL DEFAULT false,
			created_at       timestamptz NOT NULL DEFAULT now(),
			updated_at       timestamptz NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_milestones_user_date ON milestones(user_id, celebration_date);

		ALTER TABLE milestones ADD COLUMN IF NOT EXISTS metadata jsonb;
	`)
	if err != nil {
		return fmt.Errorf("postgres: migrating: %w", err)
	}
	return nil
}
