// Package discovery extracts candidate detail-page links from listing
// markup. Engines (CSS, XPath) collect raw anchors; the selection policy —
// stoplist filtering, absolute-URL normalization, target dedupe and
// deeper-path-first ordering — is shared.
package discovery

import (
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"unicode"

	"github.com/IshaanNene/GrazeGoat/internal/config"
	"github.com/IshaanNene/GrazeGoat/internal/types"
)

// Discoverer extracts candidate detail links from a fetched listing page.
type Discoverer interface {
	// Discover returns at most limit entries with unique absolute targets.
	// A limit <= 0 means no cap.
	Discover(resp *types.Response, limit int) ([]types.LinkEntry, error)
}

// New creates the discoverer selected by selector.type.
func New(sel config.SelectorConfig, logger *slog.Logger) (Discoverer, error) {
	switch sel.Type {
	case "css":
		return NewCSSDiscoverer(sel, logger), nil
	case "xpath":
		return NewXPathDiscoverer(sel, logger), nil
	default:
		return nil, fmt.Errorf("unsupported selector type %q", sel.Type)
	}
}

// Narrow cuts a page down to its configured container markup using the
// configured selector engine. Pages without a match pass through whole.
func Narrow(resp *types.Response, sel config.SelectorConfig) string {
	if sel.Type == "xpath" {
		return NarrowXPath(resp, sel.Container)
	}
	return NarrowCSS(resp, sel.Container)
}

// rawLink is an anchor as collected by an engine, before the policy pass.
type rawLink struct {
	label string
	href  string
}

// policy applies the shared selection policy to collected anchors.
type policy struct {
	stoplist []string
	sameHost bool
}

func newPolicy(sel config.SelectorConfig) policy {
	stop := make([]string, 0, len(sel.Stoplist))
	for _, s := range sel.Stoplist {
		stop = append(stop, normalizeLabel(s))
	}
	return policy{stoplist: stop, sameHost: sel.SameHost}
}

// apply normalizes, filters, dedupes and orders raw anchors.
func (p policy) apply(raw []rawLink, pageURL string, limit int) ([]types.LinkEntry, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page URL %q: %w", pageURL, err)
	}
	pageStr := base.String()

	seen := make(map[string]bool, len(raw))
	entries := make([]types.LinkEntry, 0, len(raw))

	for _, link := range raw {
		href := strings.TrimSpace(link.href)
		if href == "" ||
			strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") ||
			strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") ||
			strings.HasPrefix(href, "data:") {
			continue
		}

		parsed, err := url.Parse(href)
		if err != nil {
			continue
		}
		resolved := base.ResolveReference(parsed)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			continue
		}
		resolved.Fragment = ""
		if p.sameHost && resolved.Hostname() != base.Hostname() {
			continue
		}

		target := resolved.String()
		if target == pageStr || seen[target] {
			continue
		}

		label := strings.TrimSpace(link.label)
		if p.stopped(label) {
			continue
		}

		seen[target] = true
		entries = append(entries, types.LinkEntry{Label: label, Target: target})
	}

	// Deeper paths first: item pages over category/listing pages. Stable so
	// ties keep document order.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].PathDepth() > entries[j].PathDepth()
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// stopped reports whether a label matches the navigation stoplist.
func (p policy) stopped(label string) bool {
	norm := normalizeLabel(label)
	if norm == "" {
		return false
	}
	for _, s := range p.stoplist {
		if norm == s {
			return true
		}
	}
	return false
}

// normalizeLabel lowercases a label and strips decoration like arrows or
// chevrons from the edges, so "Next »" matches a "next" stoplist entry.
func normalizeLabel(label string) string {
	lower := strings.ToLower(strings.TrimSpace(label))
	return strings.TrimFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
