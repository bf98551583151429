package pipeline

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/IshaanNene/GrazeGoat/internal/config"
	"github.com/IshaanNene/GrazeGoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestPipelineTrim(t *testing.T) {
	p := New(testLogger)
	p.Use(&TrimStage{})

	rec := types.NewRecord("https://example.com/post")
	rec.Set("title", "  Hello World  ")
	rec.Set("body", "\ttext\n")

	result, err := p.Process(rec)
	if err != nil {
		t.Fatalf("pipeline error: %v", err)
	}
	if result.Get("title") != "Hello World" {
		t.Errorf("expected trimmed title, got %q", result.Get("title"))
	}
	if result.Get("body") != "text" {
		t.Errorf("expected trimmed body, got %q", result.Get("body"))
	}
}

func TestRequiredFieldsStage(t *testing.T) {
	st := &RequiredFieldsStage{Fields: []string{"title", "link"}}

	complete := types.NewRecord("https://example.com/post")
	complete.Set("title", "Hello")
	complete.Set("link", "https://example.com/post")
	if _, err := st.Process(complete); err != nil {
		t.Errorf("complete record should pass: %v", err)
	}

	// Whitespace-only values count as missing.
	incomplete := types.NewRecord("https://example.com/post")
	incomplete.Set("title", "   ")
	incomplete.Set("link", "https://example.com/post")
	_, err := st.Process(incomplete)
	if err == nil {
		t.Fatal("record with blank required field should be rejected")
	}
	if !errors.Is(err, types.ErrIncompleteRecord) {
		t.Errorf("expected ErrIncompleteRecord, got %v", err)
	}
	if !strings.Contains(err.Error(), "title") {
		t.Errorf("error should name the missing field, got %q", err)
	}
	if strings.Contains(err.Error(), "link") {
		t.Errorf("error should not name present fields, got %q", err)
	}
}

func TestForSchema(t *testing.T) {
	schema := config.SchemaConfig{
		Fields:   []string{"title", "body", "link"},
		Required: []string{"title", "link"},
	}
	p := ForSchema(schema, testLogger)
	if p.Len() != 2 {
		t.Fatalf("expected 2 stages, got %d", p.Len())
	}

	rec := types.NewRecord("https://example.com/post")
	rec.Set("title", "  Hello  ")
	rec.Set("link", "https://example.com/post")

	result, err := p.Process(rec)
	if err != nil {
		t.Fatalf("pipeline error: %v", err)
	}
	if result.Get("title") != "Hello" {
		t.Errorf("expected trimmed title, got %q", result.Get("title"))
	}

	// Trim runs before the required check, so whitespace-only required
	// fields are rejected.
	blank := types.NewRecord("https://example.com/other")
	blank.Set("title", " \n ")
	blank.Set("link", "https://example.com/other")
	_, err = p.Process(blank)
	if !errors.Is(err, types.ErrIncompleteRecord) {
		t.Errorf("expected ErrIncompleteRecord, got %v", err)
	}

	var perr *types.PipelineError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PipelineError, got %T", err)
	}
	if perr.Stage != "required_fields" {
		t.Errorf("expected stage required_fields, got %q", perr.Stage)
	}
}

func TestForSchemaRejectsFallback(t *testing.T) {
	schema := config.SchemaConfig{
		Fields:   []string{"title", "body", "link"},
		Required: []string{"title", "body", "link"},
	}
	p := ForSchema(schema, testLogger)

	// A fallback record carries only label + locator; with body required it
	// must not survive validation.
	rec := types.NewRecord("https://example.com/post")
	rec.Fallback = true
	rec.Set("title", "Some Post")
	rec.Set("link", "https://example.com/post")

	if _, err := p.Process(rec); !errors.Is(err, types.ErrIncompleteRecord) {
		t.Errorf("fallback record missing body should be rejected, got %v", err)
	}
}

type dropStage struct{}

func (dropStage) Name() string { return "drop" }

func (dropStage) Process(*types.Record) (*types.Record, error) { return nil, nil }

func TestPipelineDrop(t *testing.T) {
	p := New(testLogger)
	p.Use(dropStage{})

	rec := types.NewRecord("https://example.com/post")
	result, err := p.Process(rec)
	if err != nil {
		t.Fatalf("drop should not error: %v", err)
	}
	if result != nil {
		t.Error("expected nil result for dropped record")
	}
}

func TestSanitizeStage(t *testing.T) {
	st := &SanitizeStage{Fields: []string{"title"}}

	rec := types.NewRecord("https://example.com/post")
	rec.Set("title", `<p>Hello <b>World</b></p> &amp; <a href="x">link</a>`)
	rec.Set("body", "# Heading\n\nuntouched <i>markup</i>")

	result, err := st.Process(rec)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if got := result.Get("title"); got != "Hello World & link" {
		t.Errorf("expected 'Hello World & link', got %q", got)
	}
	if got := result.Get("body"); !strings.Contains(got, "\n") {
		t.Errorf("body outside Fields must keep its line structure, got %q", got)
	}
}

func TestNumericStage(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"$1,234.56", "1234.56"},
		{"€1.234,56", "1234.56"},
		{"£99.99", "99.99"},
		{"¥10000", "10000"},
		{"1,200", "1200"},
		{"Rs. 1,50,000", "150000"},
		{"10,5", "10.5"},
		{"4.8", "4.8"},
	}

	st := &NumericStage{Fields: []string{"price"}}
	for _, tt := range tests {
		rec := types.NewRecord("https://example.com/venue")
		rec.Set("price", tt.input)

		result, _ := st.Process(rec)
		if got := result.Get("price"); got != tt.expected {
			t.Errorf("price %q: expected %q, got %q", tt.input, tt.expected, got)
		}
	}
}

// --- Benchmarks ---

func BenchmarkPipeline(b *testing.B) {
	schema := config.SchemaConfig{
		Fields:   []string{"title", "body", "link"},
		Required: []string{"title", "link"},
	}
	p := ForSchema(schema, testLogger)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := types.NewRecord("https://example.com/post")
		rec.Set("title", "  Hello World  ")
		rec.Set("body", "  content  ")
		rec.Set("link", "https://example.com/post")
		p.Process(rec)
	}
}
