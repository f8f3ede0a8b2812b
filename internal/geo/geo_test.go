package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyago-dev/voyago/internal/dataset"
)

func TestKilometers(t *testing.T) {
	sf := Point{Lat: 37.7749, Lon: -122.4194}
	la := Point{Lat: 34.0522, Lon: -118.2437}

	d := Kilometers(sf, la)
	assert.InDelta(t, 559.12, d, 1.0)

	// Symmetric and zero on identical points.
	assert.Equal(t, d, Kilometers(la, sf))
	assert.Equal(t, 0.0, Kilometers(sf, sf))
}

func TestKilometersRounding(t *testing.T) {
	a := Point{Lat: 37.7749, Lon: -122.4194}
	b := Point{Lat: 37.7750, Lon: -122.4195}

	d := Kilometers(a, b)
	assert.Equal(t, d, float64(int(d*1000))/1000, "distance should carry at most 3 decimals")
}

func TestPointZero(t *testing.T) {
	assert.True(t, Point{}.Zero())
	assert.False(t, Point{Lat: 37.7}.Zero())
	assert.False(t, Point{Lon: -122.4}.Zero())
}

func coord(v float64) *float64 { return &v }

func TestComputeDistances(t *testing.T) {
	listings := []dataset.Listing{
		{ID: 1, Location: "San Francisco", Latitude: coord(37.80), Longitude: coord(-122.41)},
		{ID: 2, Location: "San Francisco", Latitude: coord(37.77), Longitude: coord(-122.42)},
		{ID: 3, Location: "Seattle", Latitude: coord(47.61), Longitude: coord(-122.33)},
		{ID: 4, Location: "San Francisco"}, // no coordinates
	}
	origin := Point{Lat: 37.7749, Lon: -122.4194}

	rs := ComputeDistances(listings, "San Francisco", origin)
	require.Equal(t, 3, rs.Len(), "only San Francisco listings should be included")

	// Nearest first, coordinate-less rows last with nil distance.
	assert.Equal(t, int64(2), rs.Rows[0].Listing.ID)
	assert.Equal(t, int64(1), rs.Rows[1].Listing.ID)
	assert.Equal(t, int64(4), rs.Rows[2].Listing.ID)
	require.NotNil(t, rs.Rows[0].Distance)
	require.NotNil(t, rs.Rows[1].Distance)
	assert.Nil(t, rs.Rows[2].Distance)
	assert.Less(t, *rs.Rows[0].Distance, *rs.Rows[1].Distance)
}

func TestComputeDistancesIdempotent(t *testing.T) {
	listings := []dataset.Listing{
		{ID: 1, Location: "Oslo", Latitude: coord(59.91), Longitude: coord(10.75)},
	}
	origin := Point{Lat: 59.9139, Lon: 10.7522}

	first := ComputeDistances(listings, "Oslo", origin)
	second := ComputeDistances(listings, "Oslo", origin)
	require.Equal(t, first.Len(), second.Len())
	assert.Equal(t, *first.Rows[0].Distance, *second.Rows[0].Distance)
}
