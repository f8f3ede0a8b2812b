package dataset

import (
	"fmt"
	"strings"
)

// Cities is the closed set of supported destinations. Location resolution
// validates against this list; anything else triggers disambiguation.
var Cities = []string{
	"San Francisco",
	"New Jersey",
	"Seattle",
	"Oslo",
	"Singapore",
	"Tokyo",
	"Taipei",
}

// IsSupportedCity reports whether city is in the supported set.
func IsSupportedCity(city string) bool {
	for _, c := range Cities {
		if c == city {
			return true
		}
	}
	return false
}

// Column describes one listing column for prompt construction.
type Column struct {
	Name        string
	Type        string
	Description string
}

// Columns is the data dictionary embedded into oracle prompts. Filter keys
// outside this set are dropped on ingestion into the session state.
var Columns = []Column{
	{"id", "INTEGER", "unique listing identifier"},
	{"name", "TEXT", "listing title"},
	{"location", "TEXT", "city the property is in"},
	{"property_type", "TEXT", "kind of property (Apartment, House, ...)"},
	{"price", "REAL", "nightly price in dollars"},
	{"accommodates", "INTEGER", "maximum number of guests"},
	{"number_of_bedrooms", "INTEGER", "bedroom count"},
	{"amenities", "TEXT", "list of amenities (Wifi, Pool, Kitchen, ...)"},
	{"view", "TEXT", "notable view from the property, if any"},
	{"review_scores_rating", "REAL", "guest rating out of 100"},
	{"latitude", "REAL", "property latitude"},
	{"longitude", "REAL", "property longitude"},
	{"picture_url", "TEXT", "cover photo URL"},
	{"listing_url", "TEXT", "listing page URL"},
	{"summary", "TEXT", "short marketing summary"},
	{"description", "TEXT", "full property description"},
	{"neighborhood_overview", "TEXT", "description of the surrounding area"},
}

// KnownColumn reports whether name is a dataset column.
func KnownColumn(name string) bool {
	for _, c := range Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// SchemaDescription renders the data dictionary for oracle prompts.
func SchemaDescription() string {
	var b strings.Builder
	b.WriteString("Table listings:\n")
	for _, c := range Columns {
		fmt.Fprintf(&b, "  %s (%s): %s\n", c.Name, c.Type, c.Description)
	}
	return b.String()
}

// CategoryValues holds the observed values of the categorical columns,
// embedded into prompts so the oracles emit values that actually occur.
type CategoryValues struct {
	Locations     []string
	PropertyTypes []string
}

// Describe renders the category values for oracle prompts.
func (cv CategoryValues) Describe() string {
	return fmt.Sprintf("location values: %s\nproperty_type values: %s",
		strings.Join(cv.Locations, ", "), strings.Join(cv.PropertyTypes, ", "))
}
