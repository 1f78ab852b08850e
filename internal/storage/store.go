package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"metric-oracle/internal/config"
)

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

// Open builds the configured backend and layers compression and caching on top.
func Open(ctx context.Context, cfg config.StorageConfig, db config.DatabaseConfig) (KV, error) {
	var backend KV
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		backend = NewMemory()
	case "pebble":
		p, err := OpenPebble(cfg.Path)
		if err != nil {
			return nil, err
		}
		backend = p
	case "postgres":
		pool, err := NewPool(ctx, db)
		if err != nil {
			return nil, err
		}
		pg := NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		backend = pg
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}

	switch strings.ToLower(cfg.Compression) {
	case "", "none":
	case "lz4":
		backend = NewCompressed(backend)
	default:
		backend.Close()
		return nil, fmt.Errorf("unknown storage compression %q", cfg.Compression)
	}

	if cfg.CacheSize > 0 {
		cached, err := NewCached(backend, cfg.CacheSize)
		if err != nil {
			backend.Close()
			return nil, fmt.Errorf("create cache: %w", err)
		}
		backend = cached
	}

	return backend, nil
}
