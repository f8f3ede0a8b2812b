package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 { return &v }

func ratedRow(id int64, rating *float64) Row {
	return Row{Listing: Listing{ID: id, ReviewScoresRating: rating}}
}

func TestResultSetNilSafe(t *testing.T) {
	var rs *ResultSet
	assert.Equal(t, 0, rs.Len())
	assert.True(t, rs.Empty())
	assert.False(t, rs.HasDistance())
	assert.Equal(t, 0, rs.Top(5).Len())
	rs.SortByRating() // must not panic
}

func TestTopCopies(t *testing.T) {
	rs := &ResultSet{Rows: []Row{ratedRow(1, fptr(90)), ratedRow(2, fptr(80)), ratedRow(3, nil)}}

	top := rs.Top(2)
	require.Equal(t, 2, top.Len())

	top.Rows[0].Listing.ID = 99
	assert.Equal(t, int64(1), rs.Rows[0].Listing.ID, "Top must not alias the source rows")

	assert.Equal(t, 3, rs.Top(10).Len())
}

func TestSortByRating(t *testing.T) {
	rs := &ResultSet{Rows: []Row{
		ratedRow(1, fptr(80)),
		ratedRow(2, nil),
		ratedRow(3, fptr(95)),
		ratedRow(4, fptr(95)),
	}}
	rs.SortByRating()

	ids := []int64{rs.Rows[0].Listing.ID, rs.Rows[1].Listing.ID, rs.Rows[2].Listing.ID, rs.Rows[3].Listing.ID}
	// Ties keep input order (3 before 4); unrated rows sort last.
	assert.Equal(t, []int64{3, 4, 1, 2}, ids)
}

func TestSortByDistanceThenRating(t *testing.T) {
	rs := &ResultSet{Rows: []Row{
		{Listing: Listing{ID: 1, ReviewScoresRating: fptr(80)}, Distance: fptr(2.5)},
		{Listing: Listing{ID: 2, ReviewScoresRating: fptr(95)}, Distance: fptr(2.5)},
		{Listing: Listing{ID: 3}, Distance: nil},
		{Listing: Listing{ID: 4}, Distance: fptr(0.7)},
	}}
	rs.SortByDistanceThenRating()

	ids := []int64{rs.Rows[0].Listing.ID, rs.Rows[1].Listing.ID, rs.Rows[2].Listing.ID, rs.Rows[3].Listing.ID}
	assert.Equal(t, []int64{4, 2, 1, 3}, ids)
}

func TestJoinIntersectsOnID(t *testing.T) {
	base := &ResultSet{Rows: []Row{ratedRow(1, nil), ratedRow(2, nil), ratedRow(3, nil)}}
	distances := &ResultSet{Rows: []Row{
		{Listing: Listing{ID: 3}, Distance: fptr(1.2)},
		{Listing: Listing{ID: 1}, Distance: fptr(4.8)},
		{Listing: Listing{ID: 9}, Distance: fptr(0.1)},
	}}

	joined := base.Join(distances)
	require.Equal(t, 2, joined.Len())

	// Order follows the distance table; distances are attached.
	assert.Equal(t, int64(3), joined.Rows[0].Listing.ID)
	assert.Equal(t, 1.2, *joined.Rows[0].Distance)
	assert.Equal(t, int64(1), joined.Rows[1].Listing.ID)
	assert.Equal(t, 4.8, *joined.Rows[1].Distance)
}

func TestEqualComparesContent(t *testing.T) {
	a := &ResultSet{Rows: []Row{{Listing: Listing{ID: 1, Name: "Loft"}, Distance: fptr(2)}}}
	b := &ResultSet{Rows: []Row{{Listing: Listing{ID: 1, Name: "Loft"}, Distance: fptr(2)}}}
	c := &ResultSet{Rows: []Row{{Listing: Listing{ID: 1, Name: "Loft"}, Distance: fptr(3)}}}
	d := &ResultSet{Rows: []Row{{Listing: Listing{ID: 1, Name: "Cabin"}, Distance: fptr(2)}}}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(d))
	assert.False(t, a.Equal(&ResultSet{}))

	var nilSet *ResultSet
	assert.True(t, nilSet.Equal(&ResultSet{}))
}

func TestAmenityList(t *testing.T) {
	li := Listing{Amenities: `['Wifi', 'Pool', "Kitchen", 'Wifi']`}
	assert.Equal(t, []string{"Wifi", "Pool", "Kitchen"}, li.AmenityList())

	assert.Nil(t, Listing{}.AmenityList())
	assert.Nil(t, Listing{Amenities: "[]"}.AmenityList())
}
