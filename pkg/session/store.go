package session

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	// ErrSessionNotFound is returned when a session doesn't exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStorageClosed is returned when operating on a closed storage backend.
	ErrStorageClosed = errors.New("storage backend is closed")
)

// StorageBackend abstracts session persistence.
// Implementations must be safe for concurrent use.
type StorageBackend interface {
	// SaveMetadata creates or updates session metadata.
	SaveMetadata(ctx context.Context, meta *Metadata) error

	// LoadMetadata retrieves session metadata by ID.
	// Returns ErrSessionNotFound if the session doesn't exist.
	LoadMetadata(ctx context.Context, sessionID string) (*Metadata, error)

	// DeleteSession removes a session and all its entries.
	DeleteSession(ctx context.Context, sessionID string) error

	// ListSessions returns sessions matching the filter options.
	ListSessions(ctx context.Context, opts ListOptions) ([]*Metadata, error)

	// AppendEntry adds an entry to a session (append-only).
	AppendEntry(ctx context.Context, sessionID string, entry *Entry) error

	// LoadEntries retrieves all entries for a session in order.
	LoadEntries(ctx context.Context, sessionID string) ([]*Entry, error)

	// Close releases any resources held by the backend.
	Close() error
}

// ListOptions provides filtering for session listing.
type ListOptions struct {
	// Limit caps the number of results.
	Limit int
	// Offset skips the first N results.
	Offset int
}
