package oracle

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/voyago-dev/voyago/internal/dataset"
	"github.com/voyago-dev/voyago/internal/geo"
)

// Transcript renders conversation turns the way every prompt embeds them.
func Transcript(history []Turn) string {
	var b strings.Builder
	for _, t := range history {
		role := t.Role
		if role != "" {
			role = strings.ToUpper(role[:1]) + role[1:]
		}
		fmt.Fprintf(&b, "%s: %s\n", role, t.Content)
	}
	return b.String()
}

// ResultsDigest renders previously shown result sets compactly for prompts
// that reason over them.
func ResultsDigest(results []*dataset.ResultSet) string {
	if len(results) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for i, rs := range results {
		fmt.Fprintf(&b, "Result set %d:\n", i+1)
		for _, row := range rs.Rows {
			li := row.Listing
			fmt.Fprintf(&b, "  id=%d | %s | %s | %s | $%.0f | guests=%d",
				li.ID, li.Name, li.Location, li.PropertyType, li.Price, li.Accommodates)
			if li.ReviewScoresRating != nil {
				fmt.Fprintf(&b, " | rating=%.2f", *li.ReviewScoresRating)
			}
			if row.Distance != nil {
				fmt.Fprintf(&b, " | distance_km=%.3f", *row.Distance)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// ParseFilterJSON parses the extraction oracle's output, stripping markdown
// fences first.
func ParseFilterJSON(s string) (map[string]any, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```json"); i >= 0 {
		s = s[i+len("```json"):]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &out); err != nil {
		return nil, fmt.Errorf("parse filter JSON: %w", err)
	}
	return out, nil
}

// ParseCoords parses the "(lat, lon)" answer format.
func ParseCoords(s string) (geo.Point, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geo.Point{}, fmt.Errorf("expected 2 coordinates, got %d", len(parts))
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("parse latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("parse longitude: %w", err)
	}
	return geo.Point{Lat: lat, Lon: lon}, nil
}

// ParsePropertyID normalizes the resolver's numeric answer. The oracle is
// asked for a number but sometimes answers in float form; "123.0" and "123"
// both resolve to 123.
func ParsePropertyID(s string) (int64, error) {
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	if i := strings.Index(s, "."); i >= 0 {
		s = s[:i]
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse property id %q: %w", s, err)
	}
	return id, nil
}

// renderFilters renders a filter mapping deterministically for prompts.
func renderFilters(filters map[string]any) string {
	if len(filters) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		v, err := json.Marshal(filters[k])
		if err != nil {
			fmt.Fprintf(&b, "%q: %v", k, filters[k])
			continue
		}
		fmt.Fprintf(&b, "%q: %s", k, v)
	}
	b.WriteString("}")
	return b.String()
}
