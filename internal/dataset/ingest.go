package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
)

// requiredFields must be present and parseable for a row to be ingested.
var requiredFields = []string{
	"id", "property_type", "price", "accommodates", "latitude", "longitude", "name",
}

// IngestCSV loads one city's export into the store and returns the number
// of listings ingested. Rows missing required fields are dropped, not
// fatal: the source exports are scraped and uneven.
func (s *Store) IngestCSV(ctx context.Context, city, path string) (int, error) {
	f, err := os.Open(path) // #nosec G304 - operator-supplied path
	if err != nil {
		return 0, fmt.Errorf("open csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	listings, dropped, err := parseCSV(f, city)
	if err != nil {
		return 0, err
	}
	if dropped > 0 {
		log.Printf("[dataset] %s: dropped %d incomplete rows", city, dropped)
	}

	if err := s.Insert(ctx, listings); err != nil {
		return 0, err
	}
	return len(listings), nil
}

func parseCSV(r io.Reader, city string) ([]Listing, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredFields {
		if _, ok := cols[name]; !ok {
			return nil, 0, fmt.Errorf("csv missing required column %q", name)
		}
	}

	field := func(record []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var (
		listings []Listing
		dropped  int
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read csv row: %w", err)
		}

		id, err := parseInt64(field(record, "id"))
		if err != nil {
			dropped++
			continue
		}
		price, err := parseFloat(field(record, "price"))
		if err != nil {
			dropped++
			continue
		}
		accommodates, err := strconv.Atoi(field(record, "accommodates"))
		if err != nil {
			dropped++
			continue
		}
		lat, latErr := parseFloat(field(record, "latitude"))
		lon, lonErr := parseFloat(field(record, "longitude"))
		name := field(record, "name")
		propertyType := field(record, "property_type")
		if latErr != nil || lonErr != nil || name == "" || propertyType == "" {
			dropped++
			continue
		}

		location := field(record, "location")
		if location == "" {
			location = city
		}
		bedrooms, _ := strconv.Atoi(field(record, "number_of_bedrooms"))

		listings = append(listings, Listing{
			ID:                   id,
			Name:                 name,
			Location:             location,
			PropertyType:         propertyType,
			Price:                price,
			Accommodates:         accommodates,
			NumberOfBedrooms:     bedrooms,
			Amenities:            field(record, "amenities"),
			View:                 field(record, "view"),
			ReviewScoresRating:   parseFloatPtr(field(record, "review_scores_rating")),
			Latitude:             &lat,
			Longitude:            &lon,
			PictureURL:           field(record, "picture_url"),
			ListingURL:           field(record, "listing_url"),
			Summary:              field(record, "summary"),
			Description:          field(record, "description"),
			NeighborhoodOverview: field(record, "neighborhood_overview"),
		})
	}
	return listings, dropped, nil
}

func parseInt64(s string) (int64, error) {
	// Scraped ids sometimes arrive as "123.0".
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	return strconv.ParseInt(s, 10, 64)
}

// parseFloat handles currency formatting like "$1,250.00".
func parseFloat(s string) (float64, error) {
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty numeric field")
	}
	return strconv.ParseFloat(s, 64)
}

func parseFloatPtr(s string) *float64 {
	v, err := parseFloat(s)
	if err != nil {
		return nil
	}
	return &v
}
