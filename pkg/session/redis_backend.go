package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend implements StorageBackend using Redis.
// It provides distributed session storage suitable for multi-node deployments.
type RedisBackend struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	mu     sync.RWMutex
	closed bool
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string
	// Password is the Redis password (optional).
	Password string
	// DB is the Redis database number.
	DB int
	// Prefix is the key prefix for all session keys (default: "voyago:session:").
	Prefix string
	// SessionTTL is the session expiry duration (0 = never expire).
	SessionTTL time.Duration
	// PoolSize is the connection pool size (default: 10).
	PoolSize int
}

// NewRedisBackend creates a new Redis storage backend.
func NewRedisBackend(cfg RedisConfig) (*RedisBackend, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "voyago:session:"
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisBackend{
		client: client,
		prefix: prefix,
		ttl:    cfg.SessionTTL,
	}, nil
}

// NewRedisBackendFromClient creates a Redis backend from an existing client.
// This is useful for testing with miniredis.
func NewRedisBackendFromClient(client *redis.Client, prefix string, ttl time.Duration) *RedisBackend {
	if prefix == "" {
		prefix = "voyago:session:"
	}
	return &RedisBackend{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (b *RedisBackend) metaKey(sessionID string) string {
	return b.prefix + "meta:" + sessionID
}

func (b *RedisBackend) entriesKey(sessionID string) string {
	return b.prefix + "entries:" + sessionID
}

func (b *RedisBackend) indexKey() string {
	return b.prefix + "index"
}

// SaveMetadata creates or updates session metadata.
func (b *RedisBackend) SaveMetadata(ctx context.Context, meta *Metadata) error {
	if err := b.checkOpen(); err != nil {
		return err
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	pipe := b.client.Pipeline()
	pipe.Set(ctx, b.metaKey(meta.ID), data, b.ttl)
	pipe.SAdd(ctx, b.indexKey(), meta.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// LoadMetadata retrieves session metadata by ID.
func (b *RedisBackend) LoadMetadata(ctx context.Context, sessionID string) (*Metadata, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	data, err := b.client.Get(ctx, b.metaKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return &meta, nil
}

// DeleteSession removes a session and all its entries.
func (b *RedisBackend) DeleteSession(ctx context.Context, sessionID string) error {
	if err := b.checkOpen(); err != nil {
		return err
	}

	exists, err := b.client.Exists(ctx, b.metaKey(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if exists == 0 {
		return ErrSessionNotFound
	}

	pipe := b.client.Pipeline()
	pipe.Del(ctx, b.metaKey(sessionID))
	pipe.Del(ctx, b.entriesKey(sessionID))
	pipe.SRem(ctx, b.indexKey(), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ListSessions returns sessions sorted by most recently updated.
func (b *RedisBackend) ListSessions(ctx context.Context, opts ListOptions) ([]*Metadata, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	ids, err := b.client.SMembers(ctx, b.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sessions := make([]*Metadata, 0, len(ids))
	for _, id := range ids {
		meta, err := b.LoadMetadata(ctx, id)
		if errors.Is(err, ErrSessionNotFound) {
			// Expired metadata still referenced by the index.
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, meta)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(sessions) {
			return []*Metadata{}, nil
		}
		sessions = sessions[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(sessions) {
		sessions = sessions[:opts.Limit]
	}
	return sessions, nil
}

// AppendEntry adds an entry to a session (append-only).
func (b *RedisBackend) AppendEntry(ctx context.Context, sessionID string, entry *Entry) error {
	if err := b.checkOpen(); err != nil {
		return err
	}

	exists, err := b.client.Exists(ctx, b.metaKey(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if exists == 0 {
		return ErrSessionNotFound
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	pipe := b.client.Pipeline()
	pipe.RPush(ctx, b.entriesKey(sessionID), data)
	if b.ttl > 0 {
		pipe.Expire(ctx, b.entriesKey(sessionID), b.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	return nil
}

// LoadEntries retrieves all entries for a session in order.
func (b *RedisBackend) LoadEntries(ctx context.Context, sessionID string) ([]*Entry, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	exists, err := b.client.Exists(ctx, b.metaKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if exists == 0 {
		return nil, ErrSessionNotFound
	}

	items, err := b.client.LRange(ctx, b.entriesKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}

	entries := make([]*Entry, 0, len(items))
	for _, item := range items {
		var entry Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("parse entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

// Close releases the backend. The underlying client is left to its owner.
func (b *RedisBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *RedisBackend) checkOpen() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrStorageClosed
	}
	return nil
}
