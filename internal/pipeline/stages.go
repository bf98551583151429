package pipeline

import (
	"html"
	"regexp"
	"strings"

	"github.com/IshaanNene/GrazeGoat/internal/types"
)

// --- Normalization Stages ---
//
// Optional stages for cleaning up model output before validation. Not part
// of the ForSchema chain; callers compose them with Use when a schema needs
// them.

var (
	tagRe    = regexp.MustCompile(`<[^>]*>`)
	nonNumRe = regexp.MustCompile(`[^0-9.,\-]`)
)

// SanitizeStage strips stray markup from field values: tags removed, HTML
// entities decoded, whitespace runs collapsed. The model occasionally echoes
// fragments of the source page into short fields; sanitizing keeps those
// cells single-line. An empty Fields list cleans every field — avoid that
// for schemas with a markdown body, collapsing destroys its line structure.
type SanitizeStage struct {
	Fields []string
}

func (s *SanitizeStage) Name() string { return "sanitize" }

func (s *SanitizeStage) Process(rec *types.Record) (*types.Record, error) {
	if len(s.Fields) == 0 {
		for k, v := range rec.Fields {
			rec.Fields[k] = sanitize(v)
		}
		return rec, nil
	}
	for _, f := range s.Fields {
		if v := rec.Get(f); v != "" {
			rec.Set(f, sanitize(v))
		}
	}
	return rec, nil
}

func sanitize(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// NumericStage reduces price-like values to bare numbers: currency symbols
// and unit text dropped, thousands separators removed, a decimal comma
// turned into a dot.
type NumericStage struct {
	Fields []string
}

func (s *NumericStage) Name() string { return "numeric" }

func (s *NumericStage) Process(rec *types.Record) (*types.Record, error) {
	for _, f := range s.Fields {
		if v := rec.Get(f); v != "" {
			rec.Set(f, normalizeNumber(v))
		}
	}
	return rec, nil
}

func normalizeNumber(s string) string {
	n := nonNumRe.ReplaceAllString(s, "")
	// Separators left dangling by stripped words ("Rs. 100" -> ".100")
	n = strings.Trim(n, ".,")
	lastComma := strings.LastIndex(n, ",")
	if lastComma < 0 {
		return n
	}
	lastDot := strings.LastIndex(n, ".")
	if lastDot > lastComma {
		// 1,234.56 — commas are thousands separators
		return strings.ReplaceAll(n, ",", "")
	}
	if lastDot >= 0 || len(n)-lastComma-1 != 3 {
		// 1.234,56 or 10,5 — the comma is the decimal mark
		n = strings.ReplaceAll(n, ".", "")
		return strings.Replace(n, ",", ".", 1)
	}
	// 1,200 — thousands separator with no decimal part
	return strings.ReplaceAll(n, ",", "")
}
