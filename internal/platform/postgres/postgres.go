// Package postgres opens the shared connection pool. Pool sizing is explicit
// configuration rather than driver defaults so saturation shows up in config
// review, not in production.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"libripal/internal/platform/config"
	"libripal/pkg/platform/sentinel"
)

// Pool wraps *sql.DB with health checking.
type Pool struct {
	*sql.DB
}

// New opens a pool using the pgx stdlib driver and verifies connectivity.
// Returns nil if the DSN is empty (Postgres not configured; stores fall back
// to memory).
func New(ctx context.Context, cfg config.Database) (*Pool, error) {
	if cfg.DSN == "" {
		return nil, nil
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w: %v", sentinel.ErrUnavailable, err)
	}

	return &Pool{DB: db}, nil
}

// Health checks if the database connection is healthy.
func (p *Pool) Health(ctx context.Context) error {
	if err := p.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres health: %w: %v", sentinel.ErrUnavailable, err)
	}
	return nil
}

// Close closes the pool.
func (p *Pool) Close() error {
	return p.DB.Close()
}
