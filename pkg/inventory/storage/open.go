package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nemonet1337/nexinventory/pkg/inventory"
)

// Driver names a storage backend
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverPostgres Driver = "postgres"
	DriverRedis    Driver = "redis"
)

// Options selects and configures a backend
// バックエンドの選択と設定
type Options struct {
	Driver Driver

	PostgresDSN string
	Pool        PoolConfig

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// Open connects to the configured backend
// 設定されたバックエンドに接続
func Open(ctx context.Context, opts Options, logger *zap.Logger) (inventory.Storage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch opts.Driver {
	case DriverMemory, "":
		logger.Info("メモリストレージを使用します")
		return NewMemoryStorage(), nil

	case DriverPostgres:
		pool := opts.Pool
		if pool.MaxOpenConns == 0 {
			pool = DefaultPoolConfig()
		}
		s, err := NewPostgreSQLStorage(ctx, opts.PostgresDSN, pool, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("PostgreSQLストレージに接続しました")
		return s, nil

	case DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("Redis接続に失敗しました: %w", err)
		}
		logger.Info("Redisストレージに接続しました", zap.String("addr", opts.RedisAddr))
		return NewRedisStorage(client, opts.RedisPrefix, logger), nil
	}

	return nil, fmt.Errorf("未対応のストレージドライバーです: %s", opts.Driver)
}
