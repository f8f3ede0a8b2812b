// Package dialog implements the conversation core: the per-session state and
// the turn state machine that dispatches on classified intent, accumulates
// filters, and decides between showing results, asking a follow-up,
// disambiguating a location, or answering a property question.
package dialog

import (
	"fmt"
	"strings"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PropertyCard is one rendered listing recommendation. A structured
// assistant message carries a list of these instead of text.
type PropertyCard struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	Summary    string   `json:"summary"`
	Location   string   `json:"location"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
	Price      float64  `json:"price"`
	Amenities  []string `json:"amenities"`
	Rating     *float64 `json:"rating,omitempty"`
	MaxGuests  int      `json:"max_guests"`
	PictureURL string   `json:"picture_url"`
	URL        string   `json:"url"`
}

// Message is one conversation entry. Exactly one of Text or Properties is
// populated.
type Message struct {
	Role       Role           `json:"role"`
	Text       string         `json:"text,omitempty"`
	Properties []PropertyCard `json:"properties,omitempty"`
}

// IsStructured reports whether the message carries property cards.
func (m Message) IsStructured() bool { return len(m.Properties) > 0 }

// TranscriptContent flattens the message for oracle prompts. Structured
// messages become a short textual digest of the shown properties.
func (m Message) TranscriptContent() string {
	if !m.IsStructured() {
		return m.Text
	}
	var b strings.Builder
	b.WriteString("[shown properties:")
	for i, p := range m.Properties {
		if i > 0 {
			b.WriteString(";")
		}
		fmt.Fprintf(&b, " id=%d %s ($%.0f, %s)", p.ID, p.Name, p.Price, p.Location)
	}
	b.WriteString("]")
	return b.String()
}
