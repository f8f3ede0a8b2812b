// Package session provides persistence for planner conversations. Sessions
// record the message history and filter state so a traveler can resume a
// conversation where they left it.
package session

import (
	"time"

	"github.com/voyago-dev/voyago/internal/dialog"
)

// EntryType defines the type of session entry.
type EntryType string

const (
	// EntryTypeMessage represents a conversation message.
	EntryTypeMessage EntryType = "message"
	// EntryTypeState represents a snapshot of the dialog state after a turn.
	EntryTypeState EntryType = "state"
)

// StateSnapshot captures the resumable dialog state. Result tables are not
// persisted; they are rebuilt from the filters on the next query turn.
type StateSnapshot struct {
	// Filters is the accumulated search-filter mapping.
	Filters map[string]any `json:"filters"`
	// GeoApplied records whether a coordinate constraint is in effect.
	GeoApplied bool `json:"geoApplied"`
}

// Entry is a single record in the session log. Entries are append-only and
// immutable once written.
type Entry struct {
	// ID is the unique identifier for this entry.
	ID string `json:"id"`
	// Timestamp is when the entry was created.
	Timestamp time.Time `json:"timestamp"`
	// Type indicates what kind of entry this is.
	Type EntryType `json:"type"`
	// Message is set for message entries.
	Message *dialog.Message `json:"message,omitempty"`
	// State is set for state entries.
	State *StateSnapshot `json:"state,omitempty"`
}

// Metadata holds session summary information, stored separately so sessions
// can be listed without loading their entries.
type Metadata struct {
	// ID is the unique session identifier.
	ID string `json:"id"`
	// CreatedAt is when the session was created.
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt is when the session was last modified.
	UpdatedAt time.Time `json:"updatedAt"`
	// MessageCount is the number of messages in the session.
	MessageCount int `json:"messageCount"`
}
