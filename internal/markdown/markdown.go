// Package markdown converts fetched HTML into markdown, the input format the
// extraction model works best with.
package markdown

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// Converter turns page markup into markdown. Safe to reuse across pages.
type Converter struct {
	conv *converter.Converter
}

// NewConverter creates a Converter with the commonmark and table plugins,
// so listing tables (prices, capacities) survive the conversion.
func NewConverter() *Converter {
	return &Converter{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Convert renders HTML as markdown. The source URL resolves relative links
// in the output. Conversion failures and empty results fall back to the raw
// input so extraction always has something to work on.
func (c *Converter) Convert(html, sourceURL string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	result, err := c.conv.ConvertString(html, converter.WithDomain(sourceURL))
	if err != nil || strings.TrimSpace(result) == "" {
		return html
	}
	return strings.TrimSpace(result)
}

// Truncate caps content length for the model prompt, cutting at a line
// boundary where possible.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := s[:max]
	if idx := strings.LastIndexByte(cut, '\n'); idx > max/2 {
		cut = cut[:idx]
	}
	return cut
}
