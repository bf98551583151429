package discovery

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/GrazeGoat/internal/config"
	"github.com/IshaanNene/GrazeGoat/internal/types"
)

// CSSDiscoverer collects anchors using CSS selectors via goquery.
type CSSDiscoverer struct {
	container string
	policy    policy
	logger    *slog.Logger
}

// NewCSSDiscoverer creates a CSS selector discoverer.
func NewCSSDiscoverer(sel config.SelectorConfig, logger *slog.Logger) *CSSDiscoverer {
	return &CSSDiscoverer{
		container: sel.Container,
		policy:    newPolicy(sel),
		logger:    logger.With("component", "css_discovery"),
	}
}

// Discover implements Discoverer.
func (d *CSSDiscoverer) Discover(resp *types.Response, limit int) ([]types.LinkEntry, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ExtractError{URL: resp.FinalURL, Stage: "parse", Err: err}
	}

	// Restrict the anchor search to the listing container when it matches;
	// fall back to the whole document otherwise.
	scope := doc.Selection
	if d.container != "" {
		if matched := doc.Find(d.container); matched.Length() > 0 {
			scope = matched
		} else {
			d.logger.Debug("container selector matched nothing, scanning whole page",
				"selector", d.container)
		}
	}

	var raw []rawLink
	scope.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		raw = append(raw, rawLink{label: anchorLabel(sel), href: href})
	})

	entries, err := d.policy.apply(raw, resp.FinalURL, limit)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("links discovered",
		"anchors", len(raw),
		"entries", len(entries),
		"page", resp.FinalURL,
	)
	return entries, nil
}

// anchorLabel extracts a human label from an anchor: its text, falling back
// to title and aria-label for image-only links.
func anchorLabel(sel *goquery.Selection) string {
	if label := strings.TrimSpace(sel.Text()); label != "" {
		return label
	}
	if title, ok := sel.Attr("title"); ok && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}
	if aria, ok := sel.Attr("aria-label"); ok {
		return strings.TrimSpace(aria)
	}
	return ""
}

// NarrowCSS returns the combined outer HTML of every container match, used
// to cut a listing page down to its item cards before markdown conversion.
// When nothing matches, the original body is returned.
func NarrowCSS(resp *types.Response, container string) string {
	if container == "" {
		return string(resp.Body)
	}
	doc, err := resp.Document()
	if err != nil {
		return string(resp.Body)
	}
	matched := doc.Find(container)
	if matched.Length() == 0 {
		return string(resp.Body)
	}

	var b strings.Builder
	matched.Each(func(_ int, sel *goquery.Selection) {
		if fragment, err := goquery.OuterHtml(sel); err == nil {
			b.WriteString(fragment)
			b.WriteString("\n")
		}
	})
	if b.Len() == 0 {
		return string(resp.Body)
	}
	return b.String()
}
