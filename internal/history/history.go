// Package history keeps a rolling log of recent searches in redis so the
// planner can surface what travelers have been looking for.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultKey is the redis list holding recent searches.
	DefaultKey = "voyago:search:history"

	// DefaultLimit is how many searches are retained.
	DefaultLimit = 10
)

// Record is one remembered search.
type Record struct {
	Destination string    `json:"destination"`
	Budget      float64   `json:"budget"`
	Guests      int       `json:"guests"`
	Timestamp   time.Time `json:"timestamp"`
}

// Recorder persists searches to a capped redis list, newest first.
type Recorder struct {
	client *redis.Client
	key    string
	limit  int64
}

// NewRecorder creates a recorder on the given redis client.
func NewRecorder(client *redis.Client) *Recorder {
	return &Recorder{
		client: client,
		key:    DefaultKey,
		limit:  DefaultLimit,
	}
}

// NewRecorderWithKey creates a recorder with a custom key and retention
// limit. A limit <= 0 falls back to DefaultLimit.
func NewRecorderWithKey(client *redis.Client, key string, limit int) *Recorder {
	if key == "" {
		key = DefaultKey
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Recorder{client: client, key: key, limit: int64(limit)}
}

// RecordSearch appends a search to the history, evicting the oldest entry
// once the retention limit is reached.
func (r *Recorder) RecordSearch(ctx context.Context, destination string, budget float64, guests int) error {
	rec := Record{
		Destination: destination,
		Budget:      budget,
		Guests:      guests,
		Timestamp:   time.Now().UTC(),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal search record: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.key, data)
	pipe.LTrim(ctx, r.key, 0, r.limit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store search record: %w", err)
	}
	return nil
}

// Recent returns the retained searches, newest first.
func (r *Recorder) Recent(ctx context.Context) ([]Record, error) {
	items, err := r.client.LRange(ctx, r.key, 0, r.limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read search history: %w", err)
	}

	records := make([]Record, 0, len(items))
	for _, item := range items {
		var rec Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			// Skip entries written by incompatible versions.
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Clear drops the stored history.
func (r *Recorder) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("failed to clear search history: %w", err)
	}
	return nil
}
