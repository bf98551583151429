package extract

import (
	"context"
	"log/slog"
	"strings"

	"github.com/IshaanNene/GrazeGoat/internal/config"
	"github.com/IshaanNene/GrazeGoat/internal/discovery"
	"github.com/IshaanNene/GrazeGoat/internal/markdown"
	"github.com/IshaanNene/GrazeGoat/internal/types"
)

// ListingExtractor pulls every record off an already-fetched listing page in
// one model call. Used by the listing crawl mode, where item cards live on
// the paginated listing itself instead of behind detail links.
type ListingExtractor struct {
	llm         *LLMClient
	conv        *markdown.Converter
	selector    config.SelectorConfig
	schema      config.SchemaConfig
	instruction string
	maxChars    int
	logger      *slog.Logger
}

// NewListingExtractor creates a ListingExtractor.
func NewListingExtractor(llm *LLMClient, conv *markdown.Converter, cfg *config.Config, logger *slog.Logger) *ListingExtractor {
	return &ListingExtractor{
		llm:         llm,
		conv:        conv,
		selector:    cfg.Selector,
		schema:      cfg.Schema,
		instruction: instructionFor(cfg.LLM.Instruction, cfg.Schema),
		maxChars:    cfg.LLM.MaxContentChars,
		logger:      logger.With("component", "listing_extractor"),
	}
}

// ExtractPage returns the records found on a listing page plus the number of
// results the model flagged as failed. A zero-record, zero-flagged return
// means the page was genuinely empty.
func (x *ListingExtractor) ExtractPage(ctx context.Context, resp *types.Response) ([]*types.Record, int, error) {
	// Cut the page down to its item cards before conversion so the model
	// sees listings, not site chrome.
	content := x.conv.Convert(discovery.Narrow(resp, x.selector), resp.FinalURL)
	if strings.TrimSpace(content) == "" {
		return nil, 0, &types.ExtractError{URL: resp.FinalURL, Stage: "convert", Err: types.ErrEmptyResponse}
	}
	content = markdown.Truncate(content, x.maxChars)

	raw, err := x.llm.Generate(ctx, buildPrompt(x.instruction, x.schema.Fields, content, true))
	if err != nil {
		return nil, 0, &types.ExtractError{URL: resp.FinalURL, Stage: "llm", Err: err}
	}

	objs, err := parseObjects(raw)
	if err != nil {
		return nil, 0, &types.ExtractError{URL: resp.FinalURL, Stage: "parse", Err: err}
	}

	records := make([]*types.Record, 0, len(objs))
	flagged := 0
	for _, obj := range objs {
		if resultFlagged(obj) {
			flagged++
			continue
		}
		records = append(records, recordFromFields(obj, x.schema, resp.FinalURL))
	}

	x.logger.Debug("listing page extracted",
		"page", resp.FinalURL,
		"records", len(records),
		"flagged", flagged,
	)
	return records, flagged, nil
}
