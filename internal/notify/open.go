package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"shift-coverage/internal/config"
)

// Open returns the notifier selected by NOTIFY_BACKEND.
func Open(ctx context.Context, cfg config.Config) (Notifier, error) {
	switch cfg.NotifyBackend {
	case "", "log":
		return LogNotifier{}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return NewRedisNotifier(client, cfg.NotifyList), nil
	default:
		return nil, fmt.Errorf("unknown notify backend %q", cfg.NotifyBackend)
	}
}
