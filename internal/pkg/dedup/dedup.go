package dedup

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const DefaultPrefix = "mhm:webhook:"

// Store 基于 Redis SETNX 的投递去重
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewStore 创建去重存储，ttl 为去重窗口
func NewStore(client *redis.Client, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

// Claim 首次出现返回 true，窗口内重复返回 false
func (s *Store) Claim(ctx context.Context, key string) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+key, time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
}

// Release 处理失败时释放，允许上游重试
func (s *Store) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
