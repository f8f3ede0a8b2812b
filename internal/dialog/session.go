package dialog

import (
	"github.com/voyago-dev/voyago/internal/dataset"
	"github.com/voyago-dev/voyago/internal/oracle"
)

// Greeting seeds every new session as the first assistant message.
const Greeting = "How can I help you today?"

// Session is one conversation's accumulated state. It is mutated only by the
// single active turn; cross-session isolation gives each session its own
// instance and the serving layer serializes turns per session.
type Session struct {
	// ID identifies the session to the persistence and serving layers.
	ID string

	// Messages is the append-only, turn-ordered conversation history.
	Messages []Message

	// Filters is the accumulated search-filter mapping. It is replaced
	// wholesale by each data-query turn's extraction result and cleared only
	// on reset.
	Filters map[string]any

	// ActiveResults is the current working table of candidates, possibly
	// carrying a distance column.
	ActiveResults *dataset.ResultSet

	// ResultHistory holds frozen top-5 snapshots, one per turn that produced
	// a non-empty shown result. Append-only.
	ResultHistory []*dataset.ResultSet

	// GeoApplied is set once a coordinate constraint has been merged into
	// ActiveResults; later data-less geo turns re-query the base set first.
	GeoApplied bool

	// LastRendered snapshots the last result table actually shown, used to
	// skip re-rendering identical sets. Compared by content, not identity.
	LastRendered *dataset.ResultSet
}

// NewSession creates an empty session seeded with the assistant greeting.
func NewSession(id string) *Session {
	return &Session{
		ID:       id,
		Messages: []Message{{Role: RoleAssistant, Text: Greeting}},
		Filters:  map[string]any{},
	}
}

// Reset clears all accumulated state back to a fresh greeting.
func (s *Session) Reset() {
	s.Messages = []Message{{Role: RoleAssistant, Text: Greeting}}
	s.Filters = map[string]any{}
	s.ActiveResults = nil
	s.ResultHistory = nil
	s.GeoApplied = false
	s.LastRendered = nil
}

// AppendUser adds a user text message.
func (s *Session) AppendUser(text string) {
	s.Messages = append(s.Messages, Message{Role: RoleUser, Text: text})
}

// AppendAssistant adds an assistant text message.
func (s *Session) AppendAssistant(text string) {
	s.Messages = append(s.Messages, Message{Role: RoleAssistant, Text: text})
}

// ReplaceFilters swaps the filter mapping atomically. There is no partial
// application and no merge here; removal is expressed by omission in the new
// mapping. Keys that are not dataset columns are dropped.
func (s *Session) ReplaceFilters(filters map[string]any) {
	clean := make(map[string]any, len(filters))
	for k, v := range filters {
		if dataset.KnownColumn(k) {
			clean[k] = v
		}
	}
	s.Filters = clean
}

// Turns flattens the message history for oracle prompts.
func (s *Session) Turns() []oracle.Turn {
	out := make([]oracle.Turn, len(s.Messages))
	for i, m := range s.Messages {
		out[i] = oracle.Turn{Role: string(m.Role), Content: m.TranscriptContent()}
	}
	return out
}

// LastUserText returns the latest user message content.
func (s *Session) LastUserText() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Text
		}
	}
	return ""
}
