package dialog

import (
	"context"
	"fmt"
	"sync"

	"github.com/voyago-dev/voyago/internal/dataset"
	"github.com/voyago-dev/voyago/internal/geo"
	"github.com/voyago-dev/voyago/internal/oracle"
)

// stubOracles implements every oracle interface with canned answers, so
// orchestrator tests exercise the state machine without a model.
type stubOracles struct {
	mu sync.Mutex

	intent     oracle.Intent
	filters    map[string]any
	sql        string
	sqlErr     error
	point      geo.Point
	city       string
	info       string
	infoErr    error
	propertyID int64
	idErr      error
	question   string

	// captured arguments
	lastExtra      string
	summarizeCalls int
}

func (s *stubOracles) Classify(ctx context.Context, history []oracle.Turn, last string) oracle.Intent {
	return s.intent
}

func (s *stubOracles) ExtractFilters(ctx context.Context, history []oracle.Turn, last string, current map[string]any) map[string]any {
	return s.filters
}

func (s *stubOracles) ToQuery(ctx context.Context, filters map[string]any) (string, error) {
	return s.sql, s.sqlErr
}

func (s *stubOracles) ExtractCoords(ctx context.Context, history []oracle.Turn) geo.Point {
	return s.point
}

func (s *stubOracles) ExtractCity(ctx context.Context, history []oracle.Turn) string {
	return s.city
}

func (s *stubOracles) PropertyInfo(ctx context.Context, results []*dataset.ResultSet, history []oracle.Turn, last string) (string, error) {
	return s.info, s.infoErr
}

func (s *stubOracles) PropertyID(ctx context.Context, results []*dataset.ResultSet, history []oracle.Turn, last string) (int64, error) {
	return s.propertyID, s.idErr
}

func (s *stubOracles) Summarize(ctx context.Context, history []oracle.Turn, extra string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastExtra = extra
	s.summarizeCalls++
	return "summary response"
}

func (s *stubOracles) SummarizeListing(ctx context.Context, row dataset.Row, history []oracle.Turn) string {
	return fmt.Sprintf("summary of %d", row.Listing.ID)
}

func (s *stubOracles) NextQuestion(ctx context.Context, filters map[string]any, history []oracle.Turn) string {
	if s.question != "" {
		return s.question
	}
	return "Which city would you like to stay in?"
}

func (s *stubOracles) suite() oracle.Suite {
	return oracle.Suite{
		Classifier: s,
		Filters:    s,
		Query:      s,
		Coords:     s,
		City:       s,
		Analyst:    s,
		Resolver:   s,
		Summarizer: s,
		FollowUp:   s,
	}
}

// memorySearchLog records searches in memory for assertions.
type memorySearchLog struct {
	mu       sync.Mutex
	searches []string
}

func (m *memorySearchLog) RecordSearch(ctx context.Context, destination string, budget float64, guests int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches = append(m.searches, fmt.Sprintf("%s/%.0f/%d", destination, budget, guests))
	return nil
}
