package store

import (
	"context"
	"fmt"

	"shift-coverage/internal/config"
)

// Open returns the document store selected by STORE_BACKEND. Postgres schemas
// are migrated before the store is handed back.
func Open(ctx context.Context, cfg config.Config) (DocumentStore, error) {
	switch cfg.StoreBackend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		client := NewRedisClient(cfg)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return NewRedisStore(client), nil
	case "postgres":
		pg, err := NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := pg.RunMigrations(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	case "s3":
		return NewS3Store(ctx, cfg)
	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
