package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore はRedisを使用したStore実装。
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore はクライアントとキープレフィックスからRedisStoreを生成する。
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// OpenRedis はREDIS_URL形式のURLからRedisクライアントを生成する。
// 接続確認にはPingを使用すること。
func OpenRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Get はキーの値を返す。
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cache key %s: %w", key, err)
	}
	return val, true, nil
}

// Set はキーに値をTTL付きで保存する。
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache key %s: %w", key, err)
	}
	return nil
}

// Delete はキーを削除する。
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete cache key %s: %w", key, err)
	}
	return nil
}

// compile-time interface check
var _ Store = (*RedisStore)(nil)
