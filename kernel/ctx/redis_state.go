package ctx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisStateAccess is an optional remote-mirror StateAccess (C7/C8): a
// thin JSON-over-redis implementation for deployments that want execution
// state visible outside a single kerneld process, e.g. a second node
// resuming a checkpointed session. Most callers use MemoryStateAccess or a
// storage.Backend-rooted implementation instead; this one exists for the
// shared-cache deployment shape.
type RedisStateAccess struct {
	client *redis.Client
}

// NewRedisStateAccess wraps an already-configured redis client.
func NewRedisStateAccess(client *redis.Client) *RedisStateAccess {
	return &RedisStateAccess{client: client}
}

func redisKey(scope Scope, key string) string {
	return fmt.Sprintf("kernel:state:%s:%s", scope.String(), key)
}

func (r *RedisStateAccess) Load(ctx context.Context, scope Scope, key string) (interface{}, bool, error) {
	raw, err := r.client.Get(ctx, redisKey(scope, key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (r *RedisStateAccess) Store(ctx context.Context, scope Scope, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisKey(scope, key), raw, 0).Err()
}

func (r *RedisStateAccess) Delete(ctx context.Context, scope Scope, key string) error {
	return r.client.Del(ctx, redisKey(scope, key)).Err()
}

func (r *RedisStateAccess) ListKeys(ctx context.Context, scope Scope, prefix string) ([]string, error) {
	pattern := redisKey(scope, prefix) + "*"
	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	stripPrefix := fmt.Sprintf("kernel:state:%s:", scope.String())
	for iter.Next(ctx) {
		k := iter.Val()
		if len(k) > len(stripPrefix) {
			keys = append(keys, k[len(stripPrefix):])
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
