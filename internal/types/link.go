package types

import (
	"net/url"
	"strings"
)

// LinkEntry is a candidate detail-page link discovered on a listing page.
// Entries are ephemeral: produced by discovery, consumed once by the crawl
// loop.
type LinkEntry struct {
	// Label is the human-readable anchor text (or title/aria-label).
	Label string

	// Target is the absolute URL of the detail page.
	Target string
}

// Valid reports whether the entry has a usable target.
func (e LinkEntry) Valid() bool {
	return strings.TrimSpace(e.Target) != ""
}

// PathDepth returns the number of non-empty path segments of the target.
// Deeper paths tend to be genuine item pages rather than category or
// listing pages, so discovery sorts on this.
func (e LinkEntry) PathDepth() int {
	u, err := url.Parse(e.Target)
	if err != nil {
		return 0
	}
	depth := 0
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			depth++
		}
	}
	return depth
}
