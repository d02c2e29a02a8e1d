// Package postgres persists the currency catalog and the partitioned rate
// history. One Store owns the pool; jobs borrow sessions through SaveRates
// and the maintenance operations.
package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/ternarybob/arbor"

	"github.com/koelfx/koel/internal/common"
)

// Store manages the PostgreSQL connection pool.
type Store struct {
	db     *sqlx.DB
	logger arbor.ILogger
}

// Open connects to PostgreSQL, applies the configured pool limits, and
// verifies the connection.
func Open(ctx context.Context, cfg common.DatabaseConfig, logger arbor.ILogger) (*Store, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().Str("host", cfg.Host).Int("port", cfg.Port).Str("database", cfg.Name).Msg("Connected to PostgreSQL")
	return &Store{db: db, logger: logger}, nil
}

// NewStoreWithDB wraps an existing connection. Used by tests.
func NewStoreWithDB(db *sqlx.DB, logger arbor.ILogger) *Store {
	return &Store{db: db, logger: logger}
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
