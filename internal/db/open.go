package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/BorisDmv/portfolio-api/internal/config"
)

// Open builds the repository for the configured backend and verifies it can
// reach its storage.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (Repository, error) {
	switch cfg.Backend {
	case config.BackendMongo:
		manager := NewMongoManager(cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
		if _, err := manager.Acquire(ctx); err != nil {
			return nil, err
		}
		logger.Info("connected to mongo", "database", cfg.MongoDatabase, "collection", cfg.MongoCollection)
		return NewMongoStore(manager), nil

	case config.BackendPostgres:
		store, err := NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close(ctx)
			return nil, err
		}
		logger.Info("connected to postgres")
		return store, nil

	case config.BackendLocal:
		slot, err := localSlot(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store, err := OpenLocalStore(ctx, slot)
		if err != nil {
			return nil, err
		}
		logger.Info("opened local store", "posts", len(store.posts))
		return store, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func localSlot(ctx context.Context, cfg config.Config) (Slot, error) {
	if cfg.RedisAddr == "" {
		return NewFileSlot(cfg.LocalStorePath), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	// The slot is keyed by the collection name so profiles share naming.
	return NewRedisSlot(client, cfg.MongoCollection), nil
}
