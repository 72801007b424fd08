package storage

import (
	"context"
	"fmt"

	"blogify/internal/config"
	"blogify/internal/db"
)

// NewKVFromConfig выбирает бэкенд по STORAGE_DRIVER.
func NewKVFromConfig(ctx context.Context, cfg *config.Config) (KV, error) {
	switch cfg.StorageDriver {
	case "memory":
		return NewMemoryKV(), nil
	case "", "file":
		return NewFileKV(cfg.StorageDir)
	case "sqlite":
		conn, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		kv, err := NewSQLiteKV(ctx, conn)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return kv, nil
	case "postgres":
		pool, err := db.NewPostgresConnection(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connecting to %s: %w", cfg.GetDSNSafe(), err)
		}
		kv, err := NewPostgresKV(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return kv, nil
	case "redis":
		client, err := db.NewRedisClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewRedisKV(client, cfg.RedisPrefix), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
