package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nemonet1337/nexinventory/pkg/inventory"
)

// DefaultRedisPrefix namespaces ledger keys
const DefaultRedisPrefix = "nex:"

// RedisStorage implements the Storage interface with one Redis string per collection
// コレクションごとにRedisのキーを使うStorageインターフェースの実装
type RedisStorage struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

var _ inventory.Storage = (*RedisStorage)(nil)

// NewRedisStorage wraps a Redis client
// Redisクライアントからストレージを作成
func NewRedisStorage(client *redis.Client, prefix string, logger *zap.Logger) *RedisStorage {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStorage{client: client, prefix: prefix, logger: logger}
}

func (s *RedisStorage) key(c inventory.Collection) string {
	return s.prefix + string(c)
}

func (s *RedisStorage) keys(collections []inventory.Collection) []string {
	keys := make([]string, len(collections))
	for i, c := range collections {
		keys[i] = s.key(c)
	}
	return keys
}

// Load retrieves the requested documents
func (s *RedisStorage) Load(ctx context.Context, collections ...inventory.Collection) (map[inventory.Collection][]byte, error) {
	return s.read(ctx, s.client, collections)
}

type getter interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

func (s *RedisStorage) read(ctx context.Context, c getter, collections []inventory.Collection) (map[inventory.Collection][]byte, error) {
	docs := make(map[inventory.Collection][]byte)
	if len(collections) == 0 {
		return docs, nil
	}
	values, err := c.MGet(ctx, s.keys(collections)...).Result()
	if err != nil {
		return nil, fmt.Errorf("Redisからの取得に失敗しました: %w", err)
	}
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue // 未作成のキー
		}
		docs[collections[i]] = []byte(str)
	}
	return docs, nil
}

// Update performs an optimistic read-modify-write with WATCH/MULTI.
// A concurrent modification aborts the write with a ConcurrencyError; it is not retried.
// WATCH/MULTIによる楽観的な読み取り・変更・書き込み
func (s *RedisStorage) Update(ctx context.Context, collections []inventory.Collection, fn inventory.UpdateFunc) error {
	txf := func(tx *redis.Tx) error {
		current, err := s.read(ctx, tx, collections)
		if err != nil {
			return err
		}
		out, err := fn(current)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for col, raw := range out {
				pipe.Set(ctx, s.key(col), raw, 0)
			}
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txf, s.keys(collections)...)
	if errors.Is(err, redis.TxFailedErr) {
		s.logger.Warn("Redisトランザクションが競合しました", zap.Strings("keys", s.keys(collections)))
		return inventory.NewConcurrencyError("update", fmt.Sprint(collections), "他の書き込みと競合しました")
	}
	return err
}

// Delete removes the named documents
func (s *RedisStorage) Delete(ctx context.Context, collections ...inventory.Collection) error {
	if len(collections) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, s.keys(collections)...).Err(); err != nil {
		return fmt.Errorf("Redisからの削除に失敗しました: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity
func (s *RedisStorage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *RedisStorage) Close() error {
	return s.client.Close()
}
