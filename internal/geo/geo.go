// Package geo computes great-circle distances between listings and resolved
// landmark coordinates.
package geo

import (
	"math"

	"github.com/voyago-dev/voyago/internal/dataset"
)

// earthRadiusKm is the IUGG mean Earth radius.
const earthRadiusKm = 6371.0088

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Zero reports whether the point is the (0,0) sentinel used for an
// unresolvable location.
func (p Point) Zero() bool { return p.Lat == 0 && p.Lon == 0 }

// Kilometers returns the haversine distance between two points, rounded to
// three decimals so equal inputs compare equal across turns.
func Kilometers(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	d := 2 * earthRadiusKm * math.Asin(math.Sqrt(h))

	return math.Round(d*1000) / 1000
}

// ComputeDistances builds a distance table for every listing in the given
// city, sorted nearest first. Listings without coordinates keep a nil
// distance and sort last. The input is not modified.
func ComputeDistances(listings []dataset.Listing, city string, point Point) *dataset.ResultSet {
	var rows []dataset.Row
	for _, li := range listings {
		if li.Location != city {
			continue
		}
		row := dataset.Row{Listing: li}
		if li.HasCoordinates() {
			d := Kilometers(Point{Lat: *li.Latitude, Lon: *li.Longitude}, point)
			row.Distance = &d
		}
		rows = append(rows, row)
	}

	rs := &dataset.ResultSet{Rows: rows}
	rs.SortByDistanceThenRating()
	return rs
}
