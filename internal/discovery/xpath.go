package discovery

import (
	"bytes"
	"log/slog"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/GrazeGoat/internal/config"
	"github.com/IshaanNene/GrazeGoat/internal/types"
)

// XPathDiscoverer collects anchors using XPath expressions via htmlquery.
type XPathDiscoverer struct {
	container string
	policy    policy
	logger    *slog.Logger
}

// NewXPathDiscoverer creates an XPath discoverer.
func NewXPathDiscoverer(sel config.SelectorConfig, logger *slog.Logger) *XPathDiscoverer {
	return &XPathDiscoverer{
		container: sel.Container,
		policy:    newPolicy(sel),
		logger:    logger.With("component", "xpath_discovery"),
	}
}

// Discover implements Discoverer.
func (d *XPathDiscoverer) Discover(resp *types.Response, limit int) ([]types.LinkEntry, error) {
	doc, err := html.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, &types.ExtractError{URL: resp.FinalURL, Stage: "parse", Err: err}
	}

	scopes := []*html.Node{doc}
	if d.container != "" {
		if nodes, err := htmlquery.QueryAll(doc, d.container); err != nil {
			d.logger.Warn("invalid container xpath", "selector", d.container, "error", err)
		} else if len(nodes) > 0 {
			scopes = nodes
		}
	}

	var raw []rawLink
	for _, scope := range scopes {
		anchors, err := htmlquery.QueryAll(scope, ".//a[@href]")
		if err != nil {
			continue
		}
		for _, a := range anchors {
			raw = append(raw, rawLink{
				label: xpathLabel(a),
				href:  htmlquery.SelectAttr(a, "href"),
			})
		}
	}

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

// xpathLabel extracts a human label from an anchor node.
func xpathLabel(node *html.Node) string {
	if label := strings.TrimSpace(htmlquery.InnerText(node)); label != "" {
		return label
	}
	if title := strings.TrimSpace(htmlquery.SelectAttr(node, "title")); title != "" {
		return title
	}
	return strings.TrimSpace(htmlquery.SelectAttr(node, "aria-label"))
}

// NarrowXPath returns the combined outer HTML of every container match, the
// XPath counterpart of NarrowCSS. When nothing matches, the original body is
// returned.
func NarrowXPath(resp *types.Response, container string) string {
	if container == "" {
		return string(resp.Body)
	}
	doc, err := html.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return string(resp.Body)
	}
	nodes, err := htmlquery.QueryAll(doc, container)
	if err != nil || len(nodes) == 0 {
		return string(resp.Body)
	}

	var b strings.Builder
	for _, node := range nodes {
		b.WriteString(htmlquery.OutputHTML(node, true))
		b.WriteString("\n")
	}
	return b.String()
}
