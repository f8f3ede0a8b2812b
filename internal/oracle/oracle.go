// Package oracle defines the narrow, typed interfaces over the language
// model that the dialogue orchestrator depends on, plus the LLM-backed
// implementations and the worker-rotation pool they run on. Each oracle is a
// black-box function with a typed contract and a safe fallback value, so the
// orchestrator never has to handle a model failure as an error.
package oracle

import (
	"context"

	"github.com/voyago-dev/voyago/internal/dataset"
	"github.com/voyago-dev/voyago/internal/geo"
)

// Intent is the five-way classification of a user turn.
type Intent string

const (
	IntentData            Intent = "data_query"
	IntentNonData         Intent = "non_data_query"
	IntentPropertyData    Intent = "property_data_query"
	IntentPropertyNonData Intent = "property_non_data_query"
	IntentOther           Intent = "others"
)

// Turn is one conversation message as the oracles see it. Structured
// property-card messages are flattened to text before reaching an oracle.
type Turn struct {
	Role    string
	Content string
}

// Classifier labels the latest user turn. Implementations must degrade to
// IntentNonData on any failure rather than return an error: the fail-safe is
// to ask for more structured input, never to crash the turn.
type Classifier interface {
	Classify(ctx context.Context, history []Turn, last string) Intent
}

// FilterExtractor merges the latest turn into the search filters. The merge
// itself is the oracle's contract; callers replace their filter mapping
// wholesale with the returned one. Malformed output degrades to an empty map.
type FilterExtractor interface {
	ExtractFilters(ctx context.Context, history []Turn, last string, current map[string]any) map[string]any
}

// QueryTranslator turns a filter mapping into SQL against the listings table.
type QueryTranslator interface {
	ToQuery(ctx context.Context, filters map[string]any) (string, error)
}

// CoordExtractor pulls the most relevant coordinate from the conversation.
// Failure degrades to the (0, 0) sentinel.
type CoordExtractor interface {
	ExtractCoords(ctx context.Context, history []Turn) geo.Point
}

// CityExtractor pulls a supported city name from the conversation, or "NA".
type CityExtractor interface {
	ExtractCity(ctx context.Context, history []Turn) string
}

// PropertyAnalyst answers dataset-backed questions about a property the user
// already saw.
type PropertyAnalyst interface {
	PropertyInfo(ctx context.Context, results []*dataset.ResultSet, history []Turn, last string) (string, error)
}

// PropertyResolver identifies which shown listing the user means. Both
// "123" and "123.0" answer forms resolve to id 123.
type PropertyResolver interface {
	PropertyID(ctx context.Context, results []*dataset.ResultSet, history []Turn, last string) (int64, error)
}

// Summarizer produces the conversational responses: generic context-aware
// replies and per-listing result summaries.
type Summarizer interface {
	Summarize(ctx context.Context, history []Turn, extra string) string
	SummarizeListing(ctx context.Context, row dataset.Row, history []Turn) string
}

// FollowUp generates the next filter question when a result set is too large
// to show.
type FollowUp interface {
	NextQuestion(ctx context.Context, filters map[string]any, history []Turn) string
}

// Suite bundles every oracle the orchestrator needs.
type Suite struct {
	Classifier Classifier
	Filters    FilterExtractor
	Query      QueryTranslator
	Coords     CoordExtractor
	City       CityExtractor
	Analyst    PropertyAnalyst
	Resolver   PropertyResolver
	Summarizer Summarizer
	FollowUp   FollowUp
}
