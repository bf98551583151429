package markdown

import (
	"strings"
	"testing"
)

// --- Conversion Tests ---

func TestConvertBasicMarkup(t *testing.T) {
	c := NewConverter()

	got := c.Convert("<h1>Grand Palace</h1><p>A venue with <strong>lawns</strong>.</p>", "https://example.com")
	if !strings.Contains(got, "# Grand Palace") {
		t.Errorf("heading not converted: %s", got)
	}
	if !strings.Contains(got, "**lawns**") {
		t.Errorf("bold not converted: %s", got)
	}
}

func TestConvertResolvesRelativeLinks(t *testing.T) {
	c := NewConverter()

	got := c.Convert(`<a href="/venues/grand-palace">Grand Palace</a>`, "https://example.com/venues")
	if !strings.Contains(got, "https://example.com/venues/grand-palace") {
		t.Errorf("relative link not resolved: %s", got)
	}
}

func TestConvertTable(t *testing.T) {
	c := NewConverter()

	html := `<table>
<thead><tr><th>Venue</th><th>Price</th></tr></thead>
<tbody><tr><td>Grand Palace</td><td>1200</td></tr></tbody>
</table>`
	got := c.Convert(html, "https://example.com")
	if !strings.Contains(got, "Venue") || !strings.Contains(got, "1200") {
		t.Errorf("table content lost: %s", got)
	}
	if !strings.Contains(got, "|") {
		t.Errorf("table not rendered as pipe table: %s", got)
	}
}

func TestConvertEmptyInput(t *testing.T) {
	c := NewConverter()
	if got := c.Convert("   ", "https://example.com"); got != "" {
		t.Errorf("blank input should yield empty output, got %q", got)
	}
}

func TestConvertFallsBackToRawInput(t *testing.T) {
	c := NewConverter()

	// Script-only markup converts to nothing, so the raw input comes back.
	in := "<script>var x = 1;</script>"
	if got := c.Convert(in, "https://example.com"); got != in {
		t.Errorf("empty conversion should fall back to raw input, got %q", got)
	}
}

// --- Truncation Tests ---

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 100); got != "short" {
		t.Errorf("under-limit content should pass through: %q", got)
	}
	if got := Truncate("anything", 0); got != "anything" {
		t.Errorf("non-positive max should disable truncation: %q", got)
	}

	// Cut lands on a line boundary when one falls in the second half.
	got := Truncate("aaaa\nbbbb\ncccc", 12)
	if got != "aaaa\nbbbb" {
		t.Errorf("expected line-boundary cut, got %q", got)
	}

	// No usable boundary means a hard cut.
	got = Truncate("aaaaaaaaaa", 5)
	if got != "aaaaa" {
		t.Errorf("expected hard cut, got %q", got)
	}

	// A boundary in the first half is ignored so the cut keeps most of the
	// budget.
	got = Truncate("a\nbbbbbbbbbb", 10)
	if len(got) != 10 {
		t.Errorf("early boundary should not shrink the cut, got %q", got)
	}
}

// --- Benchmarks ---

func BenchmarkConvert(b *testing.B) {
	c := NewConverter()
	html := `<div><h2>Venue</h2><p>Some <em>description</em> text with a <a href="/x">link</a>.</p>
<ul><li>Lawn</li><li>Banquet hall</li></ul></div>`

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Convert(html, "https://example.com")
	}
}
