package index

import (
	"math"
	"strconv"
	"strings"

	"github.com/voxlab/cv-transcriber/internal/dataset"
)

// Document is one search-index entry derived from an enriched dataset row.
// Missing or unusable values are nil and omitted from the JSON entirely;
// sentinel zeros or empty strings never stand in for absent data.
type Document struct {
	GeneratedText  *string  `json:"generated_text,omitempty"`
	Duration       *float64 `json:"duration,omitempty"`
	DurationBucket string   `json:"duration_bucket"`
	Age            *string  `json:"age,omitempty"`
	Gender         *string  `json:"gender,omitempty"`
	Accent         *string  `json:"accent,omitempty"`
	Path           *string  `json:"path,omitempty"`
	ClientID       *string  `json:"client_id,omitempty"`
	Text           *string  `json:"text,omitempty"`
	UpVotes        *int     `json:"up_votes,omitempty"`
	DownVotes      *int     `json:"down_votes,omitempty"`
}

// DurationBucket maps a duration to its search-facet label. Buckets are
// half-open on the lower bound, so 5.0 lands in "5-10 seconds".
func DurationBucket(d *float64) string {
	switch {
	case d == nil:
		return "Unknown"
	case *d < 5:
		return "0-5 seconds"
	case *d < 10:
		return "5-10 seconds"
	case *d < 15:
		return "10-15 seconds"
	case *d < 20:
		return "15-20 seconds"
	default:
		return "20+ seconds"
	}
}

// cleanString normalizes empty and "nan"-like values to absence.
func cleanString(s string) *string {
	t := strings.TrimSpace(s)
	if t == "" || strings.EqualFold(t, "nan") {
		return nil
	}
	return &t
}

// cleanFloat parses a numeric value, treating unparsable input and
// non-finite values as absent.
func cleanFloat(s string) *float64 {
	c := cleanString(s)
	if c == nil {
		return nil
	}
	v, err := strconv.ParseFloat(*c, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// cleanInt parses an integer, accepting float renderings like "1.0" since
// tabular tools write counts that way.
func cleanInt(s string) *int {
	f := cleanFloat(s)
	if f == nil {
		return nil
	}
	v := int(*f)
	return &v
}

// BuildDocument derives the search document and its identity from row i.
// The returned id is empty when neither path nor filename nor file is set;
// such documents get an engine-assigned identity and cannot be deduplicated
// across runs.
func BuildDocument(t *dataset.Table, i int) (Document, string) {
	get := func(col string) string {
		v, _ := t.Get(i, col)
		return v
	}

	duration := cleanFloat(get("duration"))
	doc := Document{
		GeneratedText:  cleanString(get("generated_text")),
		Duration:       duration,
		DurationBucket: DurationBucket(duration),
		Age:            cleanString(get("age")),
		Gender:         cleanString(get("gender")),
		Accent:         cleanString(get("accent")),
		Text:           cleanString(get("text")),
		ClientID:       cleanString(get("client_id")),
		UpVotes:        cleanInt(get("up_votes")),
		DownVotes:      cleanInt(get("down_votes")),
	}

	var id string
	if ref, ok := t.AudioRef(i); ok {
		if cleaned := cleanString(ref); cleaned != nil {
			doc.Path = cleaned
			id = *cleaned
		}
	}
	return doc, id
}
