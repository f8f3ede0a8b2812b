package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voyago-dev/voyago/internal/dialog"
)

// Manager coordinates session lifecycle on top of a storage backend.
type Manager struct {
	backend StorageBackend
}

// NewManager creates a session manager.
func NewManager(backend StorageBackend) *Manager {
	return &Manager{backend: backend}
}

// Create starts a new persisted session seeded with the greeting.
func (m *Manager) Create(ctx context.Context) (*dialog.Session, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	meta := &Metadata{
		ID:           id,
		CreatedAt:    now,
		UpdatedAt:    now,
		MessageCount: 1,
	}
	if err := m.backend.SaveMetadata(ctx, meta); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s := dialog.NewSession(id)
	greeting := s.Messages[0]
	if err := m.backend.AppendEntry(ctx, id, newMessageEntry(&greeting)); err != nil {
		return nil, fmt.Errorf("record greeting: %w", err)
	}
	return s, nil
}

// RecordTurn persists the messages a turn produced plus a state snapshot,
// and refreshes the session metadata.
func (m *Manager) RecordTurn(ctx context.Context, s *dialog.Session, produced []dialog.Message) error {
	for i := range produced {
		if err := m.backend.AppendEntry(ctx, s.ID, newMessageEntry(&produced[i])); err != nil {
			return fmt.Errorf("record message: %w", err)
		}
	}

	snapshot := &StateSnapshot{
		Filters:    s.Filters,
		GeoApplied: s.GeoApplied,
	}
	entry := &Entry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      EntryTypeState,
		State:     snapshot,
	}
	if err := m.backend.AppendEntry(ctx, s.ID, entry); err != nil {
		return fmt.Errorf("record state: %w", err)
	}

	meta, err := m.backend.LoadMetadata(ctx, s.ID)
	if err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}
	meta.UpdatedAt = time.Now().UTC()
	meta.MessageCount = len(s.Messages)
	if err := m.backend.SaveMetadata(ctx, meta); err != nil {
		return fmt.Errorf("update metadata: %w", err)
	}
	return nil
}

// Resume rebuilds a session from its persisted entries. Result tables are
// not restored; the next query turn rebuilds them from the filters.
func (m *Manager) Resume(ctx context.Context, sessionID string) (*dialog.Session, error) {
	if _, err := m.backend.LoadMetadata(ctx, sessionID); err != nil {
		return nil, err
	}
	entries, err := m.backend.LoadEntries(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s := &dialog.Session{
		ID:      sessionID,
		Filters: map[string]any{},
	}
	for _, entry := range entries {
		switch entry.Type {
		case EntryTypeMessage:
			if entry.Message != nil {
				s.Messages = append(s.Messages, *entry.Message)
			}
		case EntryTypeState:
			if entry.State != nil {
				s.GeoApplied = entry.State.GeoApplied
				if entry.State.Filters != nil {
					s.Filters = entry.State.Filters
				} else {
					s.Filters = map[string]any{}
				}
			}
		}
	}
	if len(s.Messages) == 0 {
		s.Messages = []dialog.Message{{Role: dialog.RoleAssistant, Text: dialog.Greeting}}
	}
	return s, nil
}

// Delete removes a session and its entries.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.backend.DeleteSession(ctx, sessionID)
}

// List returns stored session metadata, most recently updated first.
func (m *Manager) List(ctx context.Context, opts ListOptions) ([]*Metadata, error) {
	return m.backend.ListSessions(ctx, opts)
}

// Close releases the underlying backend.
func (m *Manager) Close() error {
	return m.backend.Close()
}

func newMessageEntry(msg *dialog.Message) *Entry {
	return &Entry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      EntryTypeMessage,
		Message:   msg,
	}
}
