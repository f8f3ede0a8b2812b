package dataset

import (
	"sort"
)

// Row is one listing in a working result table, optionally carrying a
// distance in kilometers from a geo turn.
type Row struct {
	Listing  Listing  `json:"listing"`
	Distance *float64 `json:"distance_km,omitempty"`
}

// ResultSet is an ordered table of candidate listings. Methods are nil-safe
// so an unset working set behaves as empty.
type ResultSet struct {
	Rows []Row `json:"rows"`
}

// Len returns the number of rows.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rows)
}

// Empty reports whether the set has no rows.
func (rs *ResultSet) Empty() bool { return rs.Len() == 0 }

// HasDistance reports whether any row carries a distance.
func (rs *ResultSet) HasDistance() bool {
	if rs == nil {
		return false
	}
	for _, row := range rs.Rows {
		if row.Distance != nil {
			return true
		}
	}
	return false
}

// Top returns a copy of the first n rows (all rows if n exceeds the size).
func (rs *ResultSet) Top(n int) *ResultSet {
	if rs == nil || n < 0 {
		return &ResultSet{}
	}
	if n > len(rs.Rows) {
		n = len(rs.Rows)
	}
	out := make([]Row, n)
	copy(out, rs.Rows[:n])
	return &ResultSet{Rows: out}
}

// SortByRating orders rows by review score descending. Rows without a
// rating sort last. The sort is stable so query order breaks ties.
func (rs *ResultSet) SortByRating() {
	if rs == nil {
		return
	}
	sort.SliceStable(rs.Rows, func(i, j int) bool {
		return ratingLess(rs.Rows[j].Listing, rs.Rows[i].Listing)
	})
}

// SortByDistanceThenRating orders rows by distance ascending, breaking ties
// by rating descending. Rows without a distance sort last.
func (rs *ResultSet) SortByDistanceThenRating() {
	if rs == nil {
		return
	}
	sort.SliceStable(rs.Rows, func(i, j int) bool {
		di, dj := rs.Rows[i].Distance, rs.Rows[j].Distance
		switch {
		case di == nil && dj == nil:
			return ratingLess(rs.Rows[j].Listing, rs.Rows[i].Listing)
		case di == nil:
			return false
		case dj == nil:
			return true
		case *di != *dj:
			return *di < *dj
		default:
			return ratingLess(rs.Rows[j].Listing, rs.Rows[i].Listing)
		}
	})
}

// Join intersects the set with a distance table by listing id, attaching
// each matched row's distance. Row order follows the distance table.
func (rs *ResultSet) Join(distances *ResultSet) *ResultSet {
	if rs == nil || distances == nil {
		return &ResultSet{}
	}
	ids := make(map[int64]bool, len(rs.Rows))
	for _, row := range rs.Rows {
		ids[row.Listing.ID] = true
	}

	var out []Row
	for _, row := range distances.Rows {
		if ids[row.Listing.ID] {
			out = append(out, row)
		}
	}
	return &ResultSet{Rows: out}
}

// Equal compares two sets by content, row by row. Used to suppress
// re-rendering an unchanged table.
func (rs *ResultSet) Equal(other *ResultSet) bool {
	if rs.Len() != other.Len() {
		return false
	}
	if rs == nil || other == nil {
		return true
	}
	for i := range rs.Rows {
		if !rowEqual(rs.Rows[i], other.Rows[i]) {
			return false
		}
	}
	return true
}

func rowEqual(a, b Row) bool {
	if !floatPtrEqual(a.Distance, b.Distance) {
		return false
	}
	la, lb := a.Listing, b.Listing
	return la.ID == lb.ID &&
		la.Name == lb.Name &&
		la.Location == lb.Location &&
		la.PropertyType == lb.PropertyType &&
		la.Price == lb.Price &&
		la.Accommodates == lb.Accommodates &&
		la.NumberOfBedrooms == lb.NumberOfBedrooms &&
		la.Amenities == lb.Amenities &&
		la.View == lb.View &&
		floatPtrEqual(la.ReviewScoresRating, lb.ReviewScoresRating) &&
		floatPtrEqual(la.Latitude, lb.Latitude) &&
		floatPtrEqual(la.Longitude, lb.Longitude)
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func ratingLess(a, b Listing) bool {
	ra, rb := a.ReviewScoresRating, b.ReviewScoresRating
	switch {
	case ra == nil:
		return rb != nil
	case rb == nil:
		return false
	default:
		return *ra < *rb
	}
}
