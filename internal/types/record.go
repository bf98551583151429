package types

import (
	"encoding/json"
	"strings"
	"time"
)

// Record represents a single extracted item. Field names and order are
// declared by the configured schema; values are kept as strings because the
// canonical sink is a flat CSV row.
type Record struct {
	// Fields stores the extracted values keyed by schema field name.
	Fields map[string]string

	// Source is the page URL this record was extracted from.
	Source string

	// Fallback marks a degraded record built only from a link's label and
	// target after a failed fetch or extraction.
	Fallback bool

	// ScrapedAt is when this record was produced.
	ScrapedAt time.Time
}

// NewRecord creates an empty Record for a source URL.
func NewRecord(source string) *Record {
	return &Record{
		Fields:    make(map[string]string),
		Source:    source,
		ScrapedAt: time.Now(),
	}
}

// Set sets a field value.
func (r *Record) Set(field, value string) {
	r.Fields[field] = value
}

// Get retrieves a field value, empty when absent.
func (r *Record) Get(field string) string {
	return r.Fields[field]
}

// Key returns the trimmed identity value for the given key field.
func (r *Record) Key(keyField string) string {
	return strings.TrimSpace(r.Fields[keyField])
}

// Complete reports whether every required field is present and non-blank.
func (r *Record) Complete(required []string) bool {
	for _, f := range required {
		if strings.TrimSpace(r.Fields[f]) == "" {
			return false
		}
	}
	return true
}

// Row returns the record's values in the given field order, suitable for a
// CSV writer.
func (r *Record) Row(fields []string) []string {
	row := make([]string, len(fields))
	for i, f := range fields {
		row[i] = r.Fields[f]
	}
	return row
}

// ToJSON serializes the record for mirror sinks and debug logging.
func (r *Record) ToJSON() ([]byte, error) {
	return json.Marshal(struct {
		Fields    map[string]string `json:"fields"`
		Source    string            `json:"source"`
		Fallback  bool              `json:"fallback,omitempty"`
		ScrapedAt time.Time         `json:"scraped_at"`
	}{
		Fields:    r.Fields,
		Source:    r.Source,
		Fallback:  r.Fallback,
		ScrapedAt: r.ScrapedAt,
	})
}

// Clone creates a deep copy of the record.
func (r *Record) Clone() *Record {
	clone := &Record{
		Fields:    make(map[string]string, len(r.Fields)),
		Source:    r.Source,
		Fallback:  r.Fallback,
		ScrapedAt: r.ScrapedAt,
	}
	for k, v := range r.Fields {
		clone.Fields[k] = v
	}
	return clone
}
