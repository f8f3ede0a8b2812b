package oracle

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/voyago-dev/voyago/internal/dataset"
	"github.com/voyago-dev/voyago/internal/geo"
	"github.com/voyago-dev/voyago/internal/llm/provider"
	"github.com/voyago-dev/voyago/internal/observability"
	pobs "github.com/voyago-dev/voyago/pkg/observability"
)

// LLM implements every oracle interface on a rotation pool of providers.
type LLM struct {
	pool       *Pool
	model      string
	schema     string
	categories string
}

// NewLLM builds the oracle suite implementation. schema and categories are
// the dataset schema description and observed category values embedded into
// the extraction and translation prompts.
func NewLLM(pool *Pool, model, schema, categories string) *LLM {
	return &LLM{pool: pool, model: model, schema: schema, categories: categories}
}

// NewSuite wires one LLM into a full Suite.
func NewSuite(l *LLM) Suite {
	return Suite{
		Classifier: l,
		Filters:    l,
		Query:      l,
		Coords:     l,
		City:       l,
		Analyst:    l,
		Resolver:   l,
		Summarizer: l,
		FollowUp:   l,
	}
}

// invoke runs one oracle call through the pool with tracing and metrics.
func (l *LLM) invoke(ctx context.Context, name, prompt string, jsonOnly bool) (string, error) {
	span := observability.StartSpan(ctx, "oracle."+name, map[string]any{
		"prompt_length": len(prompt),
	})
	defer span.End()

	start := time.Now()
	w, err := l.pool.Next(ctx)
	if err != nil {
		pobs.RecordOracleCall(name, "none", "pool_error", time.Since(start))
		return "", err
	}

	resp, err := w.CreateCompletion(ctx, provider.CompletionRequest{
		Messages: []provider.Message{{Role: "user", Content: prompt}},
		Model:    l.model,
		JSONOnly: jsonOnly,
	})
	if err != nil {
		pobs.RecordOracleCall(name, w.Name(), "error", time.Since(start))
		span.RecordError(err)
		return "", fmt.Errorf("%s oracle: %w", name, err)
	}
	pobs.RecordOracleCall(name, w.Name(), "ok", time.Since(start))
	return strings.TrimSpace(resp.Content), nil
}

// Classify labels the latest user turn into one of the five intents.
// Any failure or unrecognized label degrades per the fail-safe contract.
func (l *LLM) Classify(ctx context.Context, history []Turn, last string) Intent {
	prompt := fmt.Sprintf(`You are an expert classifier for vacation-rental search queries.

Categories:
1. "data_query" - the user filters or searches on structured dataset attributes (city, price, bedrooms, amenities, ratings, reviews).
2. "non_data_query" - the user refers to specific landmarks or places not covered by dataset attributes ("near the Space Needle", "close to the airport").
3. "property_data_query" - a question about a specific shown property answerable from dataset columns (price, amenities, rating).
4. "property_non_data_query" - a question about a specific shown property needing information outside the dataset, such as distance to a landmark.
5. "others" - greetings, vague or irrelevant messages, or anything needing context that is not available.

Conversation so far:
%s

Latest user message: %q

Dataset schema:
%s

Respond with exactly one of: data_query, non_data_query, property_data_query, property_non_data_query, others. No other text.`,
		Transcript(history), last, l.schema)

	out, err := l.invoke(ctx, "classify", prompt, false)
	if err != nil {
		log.Printf("[oracle] classify failed, defaulting to non_data_query: %v", err)
		return IntentNonData
	}
	return normalizeIntent(out)
}

func normalizeIntent(s string) Intent {
	s = strings.Trim(strings.ToLower(strings.TrimSpace(s)), `"'`)
	switch Intent(s) {
	case IntentData, IntentNonData, IntentPropertyData, IntentPropertyNonData, IntentOther:
		return Intent(s)
	}
	return IntentOther
}

// ExtractFilters asks the oracle for the merged filter mapping. The oracle
// owns the merge; the caller replaces its mapping wholesale with the result.
func (l *LLM) ExtractFilters(ctx context.Context, history []Turn, last string, current map[string]any) map[string]any {
	prompt := fmt.Sprintf(`You are a search-filter extractor for a vacation-rental dataset. Update the existing filters from the user's latest message: change a filter the user changes, add filters the user adds, drop filters the user removes. Only extract explicitly mentioned values.

Conversation so far:
%s

Latest user message: %q

Dataset schema (the only valid filter keys):
%s

Existing filters: %s

Observed category values: %s

Rules:
- Map user terms onto schema column names; drop anything that matches no column.
- For property_type, expand broad terms like "Shared" or "Private" to every matching observed value.
- Correct location shortcuts or misspellings against the observed values.

Output only a JSON object with the merged updated filters. No extra text.`,
		Transcript(history), last, l.schema, renderFilters(current), l.categories)

	out, err := l.invoke(ctx, "extract_filters", prompt, true)
	if err != nil {
		log.Printf("[oracle] filter extraction failed, keeping empty mapping: %v", err)
		return map[string]any{}
	}
	filters, err := ParseFilterJSON(out)
	if err != nil {
		log.Printf("[oracle] malformed filter JSON, keeping empty mapping: %v", err)
		return map[string]any{}
	}
	// Schema validation is ours, not the oracle's.
	for k := range filters {
		if !dataset.KnownColumn(k) {
			delete(filters, k)
		}
	}
	return filters
}

// ToQuery translates a filter mapping into SQL over the listings table.
func (l *LLM) ToQuery(ctx context.Context, filters map[string]any) (string, error) {
	prompt := fmt.Sprintf(`You generate a single SQLite SELECT statement filtering a vacation-rental dataset.

Table name: listings
Dataset schema:
%s

Observed category values (use these exact values for location and property_type; expand broad property_type terms like "Shared" or "Private" to every matching value with IN):
%s

Filters to apply: %s

Rules:
1. Use only schema column names.
2. Apply filters as WHERE conditions combined with AND.
3. Quote string values with single quotes; use IN (...) for multi-value filters.
4. Use LIKE for the amenities and view columns.
5. Price filters are upper bounds (price <= value).

Return only the SQL, no markdown, no explanation.`,
		l.schema, l.categories, renderFilters(filters))

	out, err := l.invoke(ctx, "to_query", prompt, false)
	if err != nil {
		return "", err
	}
	return dataset.StripSQLFences(out), nil
}

// ExtractCoords pulls the most relevant coordinate pair from the
// conversation. Invalid output degrades to the (0, 0) sentinel.
func (l *LLM) ExtractCoords(ctx context.Context, history []Turn) geo.Point {
	prompt := fmt.Sprintf(`Extract the latitude and longitude of the most relevant location in the last user message. If the last message names no location, use the most recently validated location earlier in the conversation. If a specific place is named (an airport, a landmark), return that place's coordinates rather than the city's.

Conversation:
%s

Return strictly the coordinates as (lat, lon) in WGS84, nothing else. Example: (37.7749, -122.4194)`,
		Transcript(history))

	out, err := l.invoke(ctx, "extract_coords", prompt, false)
	if err != nil {
		log.Printf("[oracle] coordinate extraction failed: %v", err)
		return geo.Point{}
	}
	p, err := ParseCoords(out)
	if err != nil {
		log.Printf("[oracle] malformed coordinates %q: %v", out, err)
		return geo.Point{}
	}
	return p
}

// ExtractCity pulls a supported city from the conversation, or "NA".
func (l *LLM) ExtractCity(ctx context.Context, history []Turn) string {
	prompt := fmt.Sprintf(`Extract the city from the user's messages, considering past context.

Rules:
- If the latest user message names one of [%s], return that city.
- If it names only a general place (airport, beach, downtown), return the most recent validated city from earlier messages.
- If no valid city is found, return NA.

Conversation:
%s

Return exactly one city name from the list above, or NA. No extra text.`,
		strings.Join(dataset.Cities, ", "), Transcript(history))

	out, err := l.invoke(ctx, "extract_city", prompt, false)
	if err != nil {
		log.Printf("[oracle] city extraction failed: %v", err)
		return "NA"
	}
	out = strings.Trim(strings.TrimSpace(out), `"'`)
	if !dataset.IsSupportedCity(out) {
		return "NA"
	}
	return out
}

// PropertyInfo answers a dataset-backed question about a shown property.
func (l *LLM) PropertyInfo(ctx context.Context, results []*dataset.ResultSet, history []Turn, last string) (string, error) {
	prompt := fmt.Sprintf(`You are a property analyst. The user is asking about a specific property from earlier search results.

Previously shown results:
%s

Conversation:
%s

Latest user message: %q

Give a friendly, conversational answer covering the relevant details (price, amenities, location, rating) from the shown results.`,
		ResultsDigest(results), Transcript(history), last)

	return l.invoke(ctx, "property_info", prompt, false)
}

// PropertyID resolves which shown listing the user means.
func (l *LLM) PropertyID(ctx context.Context, results []*dataset.ResultSet, history []Turn, last string) (int64, error) {
	prompt := fmt.Sprintf(`Identify the id of the property the user is referring to. The id is a numeric value present in the previously shown results.

Previously shown results:
%s

Conversation:
%s

Latest user message: %q

Output only the property id as a number, nothing else.`,
		ResultsDigest(results), Transcript(history), last)

	out, err := l.invoke(ctx, "property_id", prompt, false)
	if err != nil {
		return 0, err
	}
	return ParsePropertyID(out)
}

// Summarize produces a context-aware generic reply, optionally seeded with
// extra information (a computed distance, an empty-result notice).
func (l *LLM) Summarize(ctx context.Context, history []Turn, extra string) string {
	prompt := fmt.Sprintf(`You are a polite, context-aware travel assistant. Using the conversation and any extra information, answer the user's latest message. Greet greetings back and offer rental recommendations; gently ask for details when the message is vague.

Conversation:
%s%s

Write your response:`,
		Transcript(history), extra)

	out, err := l.invoke(ctx, "summarize", prompt, false)
	if err != nil {
		log.Printf("[oracle] generic summarizer failed: %v", err)
		return "I'm sorry, I couldn't put together a response just now. Could you try rephrasing that?"
	}
	return out
}

// SummarizeListing produces a short per-listing summary tailored to the
// user's stated preferences.
func (l *LLM) SummarizeListing(ctx context.Context, row dataset.Row, history []Turn) string {
	var details strings.Builder
	li := row.Listing
	fmt.Fprintf(&details, "name: %s\nlocation: %s\nproperty_type: %s\nprice: %.2f\naccommodates: %d\namenities: %s\n",
		li.Name, li.Location, li.PropertyType, li.Price, li.Accommodates, strings.Join(li.AmenityList(), ", "))
	if li.ReviewScoresRating != nil {
		fmt.Fprintf(&details, "review_scores_rating: %.2f\n", *li.ReviewScoresRating)
	}
	if row.Distance != nil {
		fmt.Fprintf(&details, "distance_km: %.3f\n", *row.Distance)
	}
	fmt.Fprintf(&details, "description: %s\nneighborhood_overview: %s\n", li.Description, li.NeighborhoodOverview)

	prompt := fmt.Sprintf(`Generate a concise summary of one vacation-rental listing for this user. Focus on the attributes the user asked about (distance if present, amenities, their other criteria) and produce short bullet points from the description and neighbourhood overview. No assumptions beyond the data.

User preferences from the conversation:
%s

Listing data:
%s`,
		Transcript(history), details.String())

	out, err := l.invoke(ctx, "summarize_listing", prompt, false)
	if err != nil {
		log.Printf("[oracle] listing summarizer failed: %v", err)
		return "Sorry, I couldn't generate a summary at the moment."
	}
	return out
}

// attributeHierarchy is the fixed priority order for follow-up questions.
var attributeHierarchy = []string{
	"location",
	"property_type",
	"price",
	"accommodates",
	"number_of_bedrooms",
	"amenities",
	"review_scores_rating",
}

// NextQuestion asks about the highest-priority filter not yet applied or
// discussed, or a soft preference question once all are present.
func (l *LLM) NextQuestion(ctx context.Context, filters map[string]any, history []Turn) string {
	prompt := fmt.Sprintf(`You are helping a user narrow down vacation-rental listings. Ask the next most relevant filter question without repeating yourself.

Already applied filters: %s
Dataset schema:
%s
Priority order for missing filters: %s
Conversation:
%s

Rules:
1. Never re-ask about a filter already applied or already discussed.
2. Ask about the highest-priority missing filter, phrased naturally.
3. If every priority filter is applied, ask a soft preference question instead (for example about a pool or a view).
4. Keep it conversational.

Generate only the question.`,
		renderFilters(filters), l.schema, strings.Join(attributeHierarchy, ", "), Transcript(history))

	out, err := l.invoke(ctx, "followup", prompt, false)
	if err != nil {
		log.Printf("[oracle] follow-up generation failed: %v", err)
		return "Could you tell me which city you'd like to stay in?"
	}
	return out
}
