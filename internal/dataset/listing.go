// Package dataset holds the vacation-rental listing model, the SQLite-backed
// store serving ad-hoc queries, and the CSV ingestion path.
package dataset

import (
	"strings"
)

// Listing is one vacation-rental property. Optional columns are pointers so
// missing source data survives round-trips as NULL instead of zero values.
type Listing struct {
	ID                   int64    `gorm:"column:id;primaryKey" json:"id"`
	Name                 string   `gorm:"column:name" json:"name"`
	Location             string   `gorm:"column:location;index" json:"location"`
	PropertyType         string   `gorm:"column:property_type" json:"property_type"`
	Price                float64  `gorm:"column:price" json:"price"`
	Accommodates         int      `gorm:"column:accommodates" json:"accommodates"`
	NumberOfBedrooms     int      `gorm:"column:number_of_bedrooms" json:"number_of_bedrooms"`
	Amenities            string   `gorm:"column:amenities" json:"amenities"`
	View                 string   `gorm:"column:view" json:"view"`
	ReviewScoresRating   *float64 `gorm:"column:review_scores_rating" json:"review_scores_rating,omitempty"`
	Latitude             *float64 `gorm:"column:latitude" json:"latitude,omitempty"`
	Longitude            *float64 `gorm:"column:longitude" json:"longitude,omitempty"`
	PictureURL           string   `gorm:"column:picture_url" json:"picture_url"`
	ListingURL           string   `gorm:"column:listing_url" json:"listing_url"`
	Summary              string   `gorm:"column:summary" json:"summary"`
	Description          string   `gorm:"column:description" json:"description"`
	NeighborhoodOverview string   `gorm:"column:neighborhood_overview" json:"neighborhood_overview"`
}

// TableName fixes the table name queried by the translation oracle.
func (Listing) TableName() string { return "listings" }

// AmenityList parses the serialized amenities column. The source data stores
// it as a Python-style list literal, e.g. ['Wifi', 'Pool'].
func (l Listing) AmenityList() []string {
	s := strings.TrimSpace(l.Amenities)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	for _, part := range strings.Split(s, ",") {
		item := strings.TrimSpace(part)
		item = strings.Trim(item, `'"`)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}

// HasCoordinates reports whether the listing carries a usable coordinate.
func (l Listing) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}
