// Package repository 提供 last-value 存储与跳变审计存储的实现。
//
// last-value 写入是无条件 upsert（last-writer-wins），没有乐观锁，也没有序号校验。
// 同一病人的读数必须由上游按时间顺序依次投递；重复投递或并发处理同一病人
// 可能产生覆盖竞争，这是已知属性。
package repository

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss 表示键不存在
var ErrCacheMiss = errors.New("cache miss")

// KVStore 抽象的 KV 存储（用于在单元测试中替换 Redis）
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
}

// RedisKVStore 基于 go-redis 的 KV 实现，不设置 TTL
type RedisKVStore struct {
	client *redis.Client
}

func NewRedisKVStore(client *redis.Client) *RedisKVStore {
	return &RedisKVStore{client: client}
}

func (r *RedisKVStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrCacheMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKVStore) Set(ctx context.Context, key string, value string) error {
	return r.client.Set(ctx, key, value, 0).Err()
}
