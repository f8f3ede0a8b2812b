package oracle

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const defaultUsageKey = "voyago:oracle:usage"

// RedisUsageStore persists worker counters in a Redis hash so rotation state
// survives restarts and is shared between replicas.
type RedisUsageStore struct {
	client *redis.Client
	key    string
}

// NewRedisUsageStore creates a store on an existing client. An empty key
// uses the default.
func NewRedisUsageStore(client *redis.Client, key string) *RedisUsageStore {
	if key == "" {
		key = defaultUsageKey
	}
	return &RedisUsageStore{client: client, key: key}
}

// Load reads all worker counters.
func (s *RedisUsageStore) Load(ctx context.Context) (map[string]int, error) {
	raw, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("load usage hash: %w", err)
	}
	out := make(map[string]int, len(raw))
	for worker, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		out[worker] = n
	}
	return out, nil
}

// Save writes all worker counters.
func (s *RedisUsageStore) Save(ctx context.Context, usage map[string]int) error {
	if len(usage) == 0 {
		return nil
	}
	fields := make(map[string]any, len(usage))
	for worker, n := range usage {
		fields[worker] = n
	}
	if err := s.client.HSet(ctx, s.key, fields).Err(); err != nil {
		return fmt.Errorf("save usage hash: %w", err)
	}
	return nil
}
