package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/nutristat/internal/config"
	"github.com/raphaelgruber/nutristat/internal/db"
	"github.com/redis/go-redis/v9"
)

// Open creates the result store selected by cfg.ResultBackend.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.ResultBackend {
	case config.BackendFile, "":
		logger.Info("using file result store", "dir", cfg.ResultsDir)
		return NewFileStore(cfg.ResultsDir), nil

	case config.BackendSurrealDB:
		client, err := db.NewClient(ctx, db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to surrealdb: %w", err)
		}
		if err := client.InitSchema(ctx); err != nil {
			_ = client.Close(ctx)
			return nil, err
		}
		return NewSurrealStore(client), nil

	case config.BackendRedis:
		return NewRedisStore(ctx, &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)

	default:
		return nil, fmt.Errorf("unknown result backend %q", cfg.ResultBackend)
	}
}
