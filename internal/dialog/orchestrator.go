package dialog

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/voyago-dev/voyago/internal/dataset"
	"github.com/voyago-dev/voyago/internal/geo"
	"github.com/voyago-dev/voyago/internal/observability"
	"github.com/voyago-dev/voyago/internal/oracle"
	pobs "github.com/voyago-dev/voyago/pkg/observability"
)

const (
	// DefaultDisplayThreshold is the result-set size above which the turn
	// asks a follow-up question instead of showing results.
	DefaultDisplayThreshold = 50

	// DefaultTopResults is the size of the shown slice.
	DefaultTopResults = 5
)

// DisambiguationPrompt is the fixed reply when a geo turn has no usable
// coordinate or city.
const DisambiguationPrompt = "Sorry, can you choose the location from San Francisco, New Jersey, Seattle, Oslo, Singapore, Tokyo or Taipei?"

// DistanceApology is the fixed reply when a property-distance lookup fails.
const DistanceApology = "Unable to get the distance at the moment. Please try again after some time."

// lookupApology is the reply when a property-info oracle call fails.
const lookupApology = "I'm sorry, I couldn't look that up right now. Could you try again?"

// SearchLog records shown searches for the sidebar history. Implementations
// must be safe to call with best-effort semantics; failures are logged, not
// surfaced.
type SearchLog interface {
	RecordSearch(ctx context.Context, destination string, budget float64, guests int) error
}

// Orchestrator drives one conversation turn end to end. It holds no per-turn
// state of its own: every turn re-enters fresh and branches purely on the
// classification of the current message, mutating only the Session.
type Orchestrator struct {
	oracles   oracle.Suite
	store     *dataset.Store
	searchLog SearchLog
	threshold int
	topN      int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDisplayThreshold overrides the follow-up threshold.
func WithDisplayThreshold(n int) Option {
	return func(o *Orchestrator) { o.threshold = n }
}

// WithTopResults overrides the shown-slice size.
func WithTopResults(n int) Option {
	return func(o *Orchestrator) { o.topN = n }
}

// WithSearchLog attaches a search-history recorder.
func WithSearchLog(l SearchLog) Option {
	return func(o *Orchestrator) { o.searchLog = l }
}

// NewOrchestrator builds the turn state machine.
func NewOrchestrator(oracles oracle.Suite, store *dataset.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		oracles:   oracles,
		store:     store,
		threshold: DefaultDisplayThreshold,
		topN:      DefaultTopResults,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// HandleTurn processes one user message and returns the assistant messages
// it appended. Every failure path degrades to a polite response; the turn
// never errors.
func (o *Orchestrator) HandleTurn(ctx context.Context, s *Session, userText string) []Message {
	span := observability.StartSpan(ctx, "dialog.turn", map[string]any{
		"session": s.ID,
	})
	defer span.End()

	s.AppendUser(userText)
	before := len(s.Messages)

	intent := o.oracles.Classifier.Classify(ctx, s.Turns(), userText)
	pobs.RecordTurn(string(intent))
	log.Printf("[dialog] session=%s intent=%s", s.ID, intent)

	switch intent {
	case oracle.IntentData:
		o.handleDataQuery(ctx, s, userText)
	case oracle.IntentNonData:
		o.handleGeoQuery(ctx, s)
	case oracle.IntentPropertyData:
		o.handlePropertyInfo(ctx, s, userText)
	case oracle.IntentPropertyNonData:
		o.handlePropertyDistance(ctx, s, userText)
	default:
		s.AppendAssistant(o.oracles.Summarizer.Summarize(ctx, s.Turns(), ""))
	}

	o.renderResults(ctx, s)
	return s.Messages[before:]
}

// handleDataQuery replaces the filters with the extraction oracle's merged
// mapping, executes the translated query, and either asks a follow-up
// (oversized set), reports no matches, or snapshots the top slice.
func (o *Orchestrator) handleDataQuery(ctx context.Context, s *Session, userText string) {
	filters := o.oracles.Filters.ExtractFilters(ctx, s.Turns(), userText, s.Filters)
	s.ReplaceFilters(filters)

	s.ActiveResults = o.runQuery(ctx, s.Filters)
	pobs.ObserveResultRows(s.ActiveResults.Len())

	if s.ActiveResults.Len() > o.threshold {
		s.AppendAssistant(o.oracles.FollowUp.NextQuestion(ctx, s.Filters, s.Turns()))
		return
	}

	sorted := s.ActiveResults.Top(s.ActiveResults.Len())
	sorted.SortByRating()
	top := sorted.Top(o.topN)
	if top.Empty() {
		s.AppendAssistant(o.oracles.Summarizer.Summarize(ctx, s.Turns(), o.noResultsNote(s.Filters)))
		return
	}
	s.ResultHistory = append(s.ResultHistory, top)
	o.recordSearch(ctx, s.Filters)
}

// handleGeoQuery resolves a landmark turn into a coordinate plus city,
// guards against unresolvable locations, and merges per-listing distances
// into the working set by id intersection.
func (o *Orchestrator) handleGeoQuery(ctx context.Context, s *Session) {
	point := o.oracles.Coords.ExtractCoords(ctx, s.Turns())
	city := o.oracles.City.ExtractCity(ctx, s.Turns())

	if point.Zero() || city == "NA" {
		s.AppendAssistant(DisambiguationPrompt)
		return
	}

	listings, err := o.store.All(ctx)
	if err != nil {
		log.Printf("[dialog] loading listings for geo merge failed: %v", err)
		s.AppendAssistant(o.oracles.Summarizer.Summarize(ctx, s.Turns(), o.noResultsNote(s.Filters)))
		return
	}
	distances := geo.ComputeDistances(listings, city, point)

	// A second geo turn recombines from scratch: re-apply the attribute
	// filters to a fresh base set, then intersect with the new distance
	// table. This keeps geo and attribute filters commutative instead of
	// order-dependent.
	if s.GeoApplied {
		s.ActiveResults = o.runQuery(ctx, s.Filters)
	}

	if s.ActiveResults.Empty() {
		s.ActiveResults = distances
	} else {
		s.ActiveResults = s.ActiveResults.Join(distances)
	}
	s.GeoApplied = true

	sorted := s.ActiveResults.Top(s.ActiveResults.Len())
	sorted.SortByDistanceThenRating()
	top := sorted.Top(o.topN)
	if top.Empty() {
		s.AppendAssistant(o.oracles.Summarizer.Summarize(ctx, s.Turns(), o.noResultsNote(s.Filters)))
		return
	}
	s.ResultHistory = append(s.ResultHistory, top)
}

// handlePropertyInfo answers a dataset question about a shown property.
func (o *Orchestrator) handlePropertyInfo(ctx context.Context, s *Session, userText string) {
	resp, err := o.oracles.Analyst.PropertyInfo(ctx, s.ResultHistory, s.Turns(), userText)
	if err != nil {
		log.Printf("[dialog] property info failed: %v", err)
		s.AppendAssistant(lookupApology)
		return
	}
	s.AppendAssistant(resp)
}

// handlePropertyDistance resolves the referenced listing, computes its
// distance to the destination coordinate, and summarizes. Any resolution or
// computation failure degrades to the fixed apology.
func (o *Orchestrator) handlePropertyDistance(ctx context.Context, s *Session, userText string) {
	id, err := o.oracles.Resolver.PropertyID(ctx, s.ResultHistory, s.Turns(), userText)
	if err != nil {
		log.Printf("[dialog] property id resolution failed: %v", err)
		s.AppendAssistant(DistanceApology)
		return
	}
	listing, err := o.store.ByID(ctx, id)
	if err != nil {
		log.Printf("[dialog] listing %d lookup failed: %v", id, err)
		s.AppendAssistant(DistanceApology)
		return
	}
	if !listing.HasCoordinates() {
		s.AppendAssistant(DistanceApology)
		return
	}
	dest := o.oracles.Coords.ExtractCoords(ctx, s.Turns())
	if dest.Zero() {
		s.AppendAssistant(DistanceApology)
		return
	}
	d := geo.Kilometers(geo.Point{Lat: *listing.Latitude, Lon: *listing.Longitude}, dest)
	info := fmt.Sprintf("It is %.2f km away.", d)
	s.AppendAssistant(o.oracles.Summarizer.Summarize(ctx, s.Turns(), "\nExtra information: "+info))
}

// renderResults appends the latest result snapshot as a structured message,
// unless it is content-equal to the last rendered table. This is what keeps
// an unchanged result set from being shown twice in a row.
func (o *Orchestrator) renderResults(ctx context.Context, s *Session) {
	if len(s.ResultHistory) == 0 {
		return
	}
	latest := s.ResultHistory[len(s.ResultHistory)-1]
	if s.LastRendered != nil && latest.Equal(s.LastRendered) {
		return
	}

	cards := make([]PropertyCard, 0, latest.Len())
	for _, row := range latest.Rows {
		li := row.Listing
		amenities := li.AmenityList()
		if len(amenities) > 5 {
			amenities = amenities[:5]
		}
		cards = append(cards, PropertyCard{
			ID:         li.ID,
			Name:       li.Name,
			Summary:    o.oracles.Summarizer.SummarizeListing(ctx, row, s.Turns()),
			Location:   li.Location,
			DistanceKm: row.Distance,
			Price:      li.Price,
			Amenities:  amenities,
			Rating:     li.ReviewScoresRating,
			MaxGuests:  li.Accommodates,
			PictureURL: li.PictureURL,
			URL:        li.ListingURL,
		})
	}
	s.Messages = append(s.Messages, Message{Role: RoleAssistant, Properties: cards})
	s.LastRendered = latest
}

// runQuery translates filters to SQL and executes them, degrading to an
// empty set when translation fails.
func (o *Orchestrator) runQuery(ctx context.Context, filters map[string]any) *dataset.ResultSet {
	sql, err := o.oracles.Query.ToQuery(ctx, filters)
	if err != nil {
		log.Printf("[dialog] query translation failed: %v", err)
		return &dataset.ResultSet{}
	}
	return o.store.Query(ctx, sql)
}

func (o *Orchestrator) noResultsNote(filters map[string]any) string {
	parts := make([]string, 0, len(filters))
	for k, v := range filters {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return "\nExtra information: No properties available. Please change your preferences: " + strings.Join(parts, ", ")
}

// recordSearch logs the shown search to the bounded history, best effort.
func (o *Orchestrator) recordSearch(ctx context.Context, filters map[string]any) {
	if o.searchLog == nil {
		return
	}
	dest, _ := filters["location"].(string)
	if dest == "" {
		if list, ok := filters["location"].([]any); ok && len(list) > 0 {
			dest, _ = list[0].(string)
		}
	}
	budget := toFloat(filters["price"])
	guests := int(toFloat(filters["accommodates"]))
	if dest == "" && budget == 0 && guests == 0 {
		return
	}
	if err := o.searchLog.RecordSearch(ctx, dest, budget, guests); err != nil {
		log.Printf("[dialog] recording search history failed: %v", err)
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
