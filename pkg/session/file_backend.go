package session

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrInvalidPathComponent is returned when a session ID contains unsafe
// characters.
var ErrInvalidPathComponent = errors.New("invalid path component: contains path separator or traversal sequence")

// validatePathComponent rejects empty strings, path separators, and
// traversal sequences.
func validatePathComponent(s string) error {
	if s == "" {
		return errors.New("path component cannot be empty")
	}
	if strings.ContainsAny(s, `/\`) || strings.Contains(s, "..") {
		return ErrInvalidPathComponent
	}
	return nil
}

// FileBackend implements StorageBackend using JSONL files.
// Storage layout:
//
//	<baseDir>/
//	  ├── sessions.json        # Session index
//	  └── <session-id>.jsonl   # Session entries
type FileBackend struct {
	baseDir string
	mu      sync.RWMutex
	closed  bool
}

// NewFileBackend creates a file-based storage backend rooted at baseDir.
// If baseDir is empty, uses ~/.voyago/sessions.
func NewFileBackend(baseDir string) (*FileBackend, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".voyago", "sessions")
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}

	return &FileBackend{baseDir: baseDir}, nil
}

// SaveMetadata creates or updates session metadata.
func (f *FileBackend) SaveMetadata(ctx context.Context, meta *Metadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStorageClosed
	}
	if err := validatePathComponent(meta.ID); err != nil {
		return fmt.Errorf("invalid session ID: %w", err)
	}

	index, err := f.readIndex()
	if err != nil {
		return err
	}
	index[meta.ID] = meta
	return f.writeIndex(index)
}

// LoadMetadata retrieves session metadata by ID.
func (f *FileBackend) LoadMetadata(ctx context.Context, sessionID string) (*Metadata, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStorageClosed
	}
	if err := validatePathComponent(sessionID); err != nil {
		return nil, fmt.Errorf("invalid session ID: %w", err)
	}

	index, err := f.readIndex()
	if err != nil {
		return nil, err
	}
	meta, ok := index[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return meta, nil
}

// DeleteSession removes a session and all its entries.
func (f *FileBackend) DeleteSession(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStorageClosed
	}
	if err := validatePathComponent(sessionID); err != nil {
		return fmt.Errorf("invalid session ID: %w", err)
	}

	index, err := f.readIndex()
	if err != nil {
		return err
	}
	if _, ok := index[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(index, sessionID)

	_ = os.Remove(filepath.Join(f.baseDir, sessionID+".jsonl")) // ignore if missing
	return f.writeIndex(index)
}

// ListSessions returns sessions sorted by most recently updated.
func (f *FileBackend) ListSessions(ctx context.Context, opts ListOptions) ([]*Metadata, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStorageClosed
	}

	index, err := f.readIndex()
	if err != nil {
		return nil, err
	}

	sessions := make([]*Metadata, 0, len(index))
	for _, meta := range index {
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
func (f *FileBackend) AppendEntry(ctx context.Context, sessionID string, entry *Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStorageClosed
	}
	if err := validatePathComponent(sessionID); err != nil {
		return fmt.Errorf("invalid session ID: %w", err)
	}

	index, err := f.readIndex()
	if err != nil {
		return err
	}
	if _, ok := index[sessionID]; !ok {
		return ErrSessionNotFound
	}

	entriesPath := filepath.Join(f.baseDir, sessionID+".jsonl")
	file, err := os.OpenFile(entriesPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) // #nosec G304 - path components validated to prevent traversal
	if err != nil {
		return fmt.Errorf("open entries file: %w", err)
	}
	defer func() { _ = file.Close() }()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	return nil
}

// LoadEntries retrieves all entries for a session in order.
func (f *FileBackend) LoadEntries(ctx context.Context, sessionID string) ([]*Entry, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStorageClosed
	}
	if err := validatePathComponent(sessionID); err != nil {
		return nil, fmt.Errorf("invalid session ID: %w", err)
	}

	index, err := f.readIndex()
	if err != nil {
		return nil, err
	}
	if _, ok := index[sessionID]; !ok {
		return nil, ErrSessionNotFound
	}

	file, err := os.Open(filepath.Join(f.baseDir, sessionID+".jsonl")) // #nosec G304 - path components validated to prevent traversal
	if err != nil {
		if os.IsNotExist(err) {
			return []*Entry{}, nil
		}
		return nil, fmt.Errorf("open entries file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var entries []*Entry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("parse entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan entries: %w", err)
	}
	return entries, nil
}

// Close releases any resources held by the backend.
func (f *FileBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *FileBackend) readIndex() (map[string]*Metadata, error) {
	index := make(map[string]*Metadata)
	data, err := os.ReadFile(filepath.Join(f.baseDir, "sessions.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return index, nil
		}
		return nil, fmt.Errorf("read sessions index: %w", err)
	}
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parse sessions index: %w", err)
	}
	return index, nil
}

func (f *FileBackend) writeIndex(index map[string]*Metadata) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sessions index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(f.baseDir, "sessions.json"), data, 0600); err != nil {
		return fmt.Errorf("write sessions index: %w", err)
	}
	return nil
}
