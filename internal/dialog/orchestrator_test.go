package dialog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyago-dev/voyago/internal/dataset"
	"github.com/voyago-dev/voyago/internal/geo"
	"github.com/voyago-dev/voyago/internal/oracle"
)

func fptr(v float64) *float64 { return &v }

// seedListings fills an in-memory store with San Francisco and Tokyo
// listings, all with coordinates around their city centers.
func seedListings(t *testing.T) *dataset.Store {
	t.Helper()
	store, err := dataset.OpenMemory()
	require.NoError(t, err)

	listings := []dataset.Listing{
		{ID: 1, Name: "Marina Loft", Location: "San Francisco", PropertyType: "Apartment", Price: 220, Accommodates: 2,
			ReviewScoresRating: fptr(92), Latitude: fptr(37.80), Longitude: fptr(-122.44), Amenities: "['Wifi', 'Kitchen']"},
		{ID: 2, Name: "Mission Flat", Location: "San Francisco", PropertyType: "Apartment", Price: 180, Accommodates: 3,
			ReviewScoresRating: fptr(96), Latitude: fptr(37.76), Longitude: fptr(-122.42), Amenities: "['Wifi']"},
		{ID: 3, Name: "Sunset House", Location: "San Francisco", PropertyType: "House", Price: 300, Accommodates: 6,
			ReviewScoresRating: fptr(88), Latitude: fptr(37.75), Longitude: fptr(-122.49), Amenities: "['Pool', 'Parking']"},
		{ID: 4, Name: "Shinjuku Studio", Location: "Tokyo", PropertyType: "Apartment", Price: 150, Accommodates: 2,
			ReviewScoresRating: fptr(90), Latitude: fptr(35.69), Longitude: fptr(139.70)},
	}
	require.NoError(t, store.Insert(context.Background(), listings))
	return store
}

func TestDataQueryShowsTopResultsByRating(t *testing.T) {
	store := seedListings(t)
	stub := &stubOracles{
		intent:  oracle.IntentData,
		filters: map[string]any{"location": "San Francisco"},
		sql:     "SELECT * FROM listings WHERE location = 'San Francisco'",
	}
	searchLog := &memorySearchLog{}
	orc := NewOrchestrator(stub.suite(), store, WithSearchLog(searchLog))

	s := NewSession("test")
	produced := orc.HandleTurn(context.Background(), s, "a place in San Francisco")

	require.Len(t, produced, 1, "one rendered result message")
	require.True(t, produced[0].IsStructured())

	// Highest rating first.
	cards := produced[0].Properties
	require.Len(t, cards, 3)
	assert.Equal(t, int64(2), cards[0].ID)
	assert.Equal(t, int64(1), cards[1].ID)
	assert.Equal(t, int64(3), cards[2].ID)
	assert.Equal(t, "summary of 2", cards[0].Summary)

	require.Len(t, s.ResultHistory, 1)
	assert.Equal(t, []string{"San Francisco/0/0"}, searchLog.searches)
}

func TestDataQueryReplacesFiltersWholesale(t *testing.T) {
	store := seedListings(t)
	stub := &stubOracles{
		intent:  oracle.IntentData,
		filters: map[string]any{"location": "Tokyo", "mood": "cozy"},
		sql:     "SELECT * FROM listings WHERE location = 'Tokyo'",
	}
	orc := NewOrchestrator(stub.suite(), store)

	s := NewSession("test")
	s.Filters = map[string]any{"location": "San Francisco", "price": 250.0}

	orc.HandleTurn(context.Background(), s, "actually, Tokyo")

	// Old keys are gone and unknown keys from the oracle are dropped.
	assert.Equal(t, map[string]any{"location": "Tokyo"}, s.Filters)
}

func TestDataQueryOversizedAsksFollowUp(t *testing.T) {
	store := seedListings(t)
	stub := &stubOracles{
		intent:   oracle.IntentData,
		filters:  map[string]any{"location": "San Francisco"},
		sql:      "SELECT * FROM listings WHERE location = 'San Francisco'",
		question: "What's your budget per night?",
	}
	orc := NewOrchestrator(stub.suite(), store, WithDisplayThreshold(2))

	s := NewSession("test")
	produced := orc.HandleTurn(context.Background(), s, "a place in San Francisco")

	require.Len(t, produced, 1)
	assert.Equal(t, "What's your budget per night?", produced[0].Text)
	assert.Empty(t, s.ResultHistory, "oversized sets are never snapshotted")
}

func TestDataQueryNoResults(t *testing.T) {
	store := seedListings(t)
	stub := &stubOracles{
		intent:  oracle.IntentData,
		filters: map[string]any{"location": "Oslo"},
		sql:     "SELECT * FROM listings WHERE location = 'Oslo'",
	}
	orc := NewOrchestrator(stub.suite(), store)

	s := NewSession("test")
	produced := orc.HandleTurn(context.Background(), s, "a place in Oslo")

	require.Len(t, produced, 1)
	assert.Equal(t, "summary response", produced[0].Text)
	assert.Contains(t, stub.lastExtra, "No properties available")
	assert.Empty(t, s.ResultHistory)
}

func TestRenderDedupSkipsUnchangedResults(t *testing.T) {
	store := seedListings(t)
	stub := &stubOracles{
		intent:  oracle.IntentData,
		filters: map[string]any{"location": "San Francisco"},
		sql:     "SELECT * FROM listings WHERE location = 'San Francisco'",
	}
	orc := NewOrchestrator(stub.suite(), store)

	s := NewSession("test")
	first := orc.HandleTurn(context.Background(), s, "a place in San Francisco")
	require.Len(t, first, 1)

	second := orc.HandleTurn(context.Background(), s, "same again please")
	assert.Empty(t, second, "an unchanged result table is not rendered twice")
}

func TestGeoQueryDisambiguation(t *testing.T) {
	store := seedListings(t)
	for _, stub := range []*stubOracles{
		{intent: oracle.IntentNonData, point: geo.Point{}, city: "San Francisco"},
		{intent: oracle.IntentNonData, point: geo.Point{Lat: 37.77, Lon: -122.42}, city: "NA"},
	} {
		orc := NewOrchestrator(stub.suite(), store)
		s := NewSession("test")
		prevFilters := map[string]any{"price": 250.0}
		s.Filters = prevFilters

		produced := orc.HandleTurn(context.Background(), s, "near that famous tower")

		require.Len(t, produced, 1)
		assert.Equal(t, DisambiguationPrompt, produced[0].Text)

		// State is untouched: no geo flag, no results, filters intact.
		assert.False(t, s.GeoApplied)
		assert.Nil(t, s.ActiveResults)
		assert.Equal(t, prevFilters, s.Filters)
	}
}

func TestGeoQueryBuildsDistanceTable(t *testing.T) {
	store := seedListings(t)
	stub := &stubOracles{
		intent: oracle.IntentNonData,
		point:  geo.Point{Lat: 37.7749, Lon: -122.4194},
		city:   "San Francisco",
	}
	orc := NewOrchestrator(stub.suite(), store)

	s := NewSession("test")
	produced := orc.HandleTurn(context.Background(), s, "near Union Square")

	require.Len(t, produced, 1)
	require.True(t, produced[0].IsStructured())
	cards := produced[0].Properties

	// Only San Francisco listings, nearest first, distances attached.
	require.Len(t, cards, 3)
	assert.Equal(t, int64(2), cards[0].ID)
	require.NotNil(t, cards[0].DistanceKm)
	require.NotNil(t, cards[1].DistanceKm)
	assert.Less(t, *cards[0].DistanceKm, *cards[1].DistanceKm)
	assert.True(t, s.GeoApplied)
}

func TestGeoQueryIntersectsWithActiveResults(t *testing.T) {
	store := seedListings(t)
	stub := &stubOracles{
		intent:  oracle.IntentData,
		filters: map[string]any{"location": "San Francisco", "property_type": "Apartment"},
		sql:     "SELECT * FROM listings WHERE location = 'San Francisco' AND property_type = 'Apartment'",
	}
	orc := NewOrchestrator(stub.suite(), store)

	s := NewSession("test")
	orc.HandleTurn(context.Background(), s, "apartments in San Francisco")
	require.Equal(t, 2, s.ActiveResults.Len())

	stub.intent = oracle.IntentNonData
	stub.point = geo.Point{Lat: 37.7749, Lon: -122.4194}
	stub.city = "San Francisco"
	produced := orc.HandleTurn(context.Background(), s, "near Union Square")

	// The house (id 3) is filtered out by the intersection.
	require.Len(t, produced, 1)
	cards := produced[0].Properties
	require.Len(t, cards, 2)
	for _, c := range cards {
		assert.NotEqual(t, int64(3), c.ID)
		assert.NotNil(t, c.DistanceKm)
	}
}

func TestPropertyInfo(t *testing.T) {
	store := seedListings(t)
	stub := &stubOracles{intent: oracle.IntentPropertyData, info: "It has Wifi and a kitchen."}
	orc := NewOrchestrator(stub.suite(), store)

	s := NewSession("test")
	produced := orc.HandleTurn(context.Background(), s, "does the first one have wifi?")

	require.Len(t, produced, 1)
	assert.Equal(t, "It has Wifi and a kitchen.", produced[0].Text)
}

func TestPropertyDistance(t *testing.T) {
	store := seedListings(t)
	stub := &stubOracles{
		intent:     oracle.IntentPropertyNonData,
		propertyID: 2,
		point:      geo.Point{Lat: 37.7749, Lon: -122.4194},
	}
	orc := NewOrchestrator(stub.suite(), store)

	s := NewSession("test")
	produced := orc.HandleTurn(context.Background(), s, "how far is it from Union Square?")

	require.Len(t, produced, 1)
	assert.Equal(t, "summary response", produced[0].Text)
	assert.Contains(t, stub.lastExtra, "km away")
}

func TestPropertyDistanceApologies(t *testing.T) {
	store := seedListings(t)
	cases := []*stubOracles{
		{intent: oracle.IntentPropertyNonData, idErr: assert.AnError},
		{intent: oracle.IntentPropertyNonData, propertyID: 999, point: geo.Point{Lat: 37.77, Lon: -122.42}},
		{intent: oracle.IntentPropertyNonData, propertyID: 2, point: geo.Point{}},
	}
	for _, stub := range cases {
		orc := NewOrchestrator(stub.suite(), store)
		s := NewSession("test")
		produced := orc.HandleTurn(context.Background(), s, "how far is it?")
		require.Len(t, produced, 1)
		assert.Equal(t, DistanceApology, produced[0].Text)
	}
}

func TestOthersIntentSummarizes(t *testing.T) {
	store := seedListings(t)
	stub := &stubOracles{intent: oracle.IntentOther}
	orc := NewOrchestrator(stub.suite(), store)

	s := NewSession("test")
	produced := orc.HandleTurn(context.Background(), s, "hi there!")

	require.Len(t, produced, 1)
	assert.Equal(t, "summary response", produced[0].Text)
	assert.Equal(t, 1, stub.summarizeCalls)
}

func TestSessionReset(t *testing.T) {
	s := NewSession("test")
	s.AppendUser("hello")
	s.Filters["location"] = "Tokyo"
	s.GeoApplied = true
	s.ResultHistory = append(s.ResultHistory, &dataset.ResultSet{})

	s.Reset()

	require.Len(t, s.Messages, 1)
	assert.Equal(t, Greeting, s.Messages[0].Text)
	assert.Empty(t, s.Filters)
	assert.False(t, s.GeoApplied)
	assert.Nil(t, s.ResultHistory)
	assert.Nil(t, s.LastRendered)
}

func TestTranscriptContentFlattensCards(t *testing.T) {
	msg := Message{Role: RoleAssistant, Properties: []PropertyCard{
		{ID: 7, Name: "Marina Loft", Price: 220, Location: "San Francisco"},
	}}
	out := msg.TranscriptContent()
	assert.Contains(t, out, "id=7")
	assert.Contains(t, out, "Marina Loft")
}
