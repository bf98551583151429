package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/IshaanNene/GrazeGoat/internal/config"
	"github.com/IshaanNene/GrazeGoat/internal/fetcher"
	"github.com/IshaanNene/GrazeGoat/internal/markdown"
	"github.com/IshaanNene/GrazeGoat/internal/types"
)

// ItemExtractor fetches one detail page and extracts a record from it.
// Extract never fails outward: any error on the way — fetch, conversion,
// model call, unparseable output — degrades to a fallback record built from
// the link's label and target, so an unreachable page still leaves a trace
// in the output rather than vanishing.
type ItemExtractor struct {
	fetcher     fetcher.Fetcher
	llm         *LLMClient
	conv        *markdown.Converter
	schema      config.SchemaConfig
	instruction string
	maxChars    int
	logger      *slog.Logger
}

// NewItemExtractor creates an ItemExtractor.
func NewItemExtractor(f fetcher.Fetcher, llm *LLMClient, conv *markdown.Converter, cfg *config.Config, logger *slog.Logger) *ItemExtractor {
	return &ItemExtractor{
		fetcher:     f,
		llm:         llm,
		conv:        conv,
		schema:      cfg.Schema,
		instruction: instructionFor(cfg.LLM.Instruction, cfg.Schema),
		maxChars:    cfg.LLM.MaxContentChars,
		logger:      logger.With("component", "item_extractor"),
	}
}

// Extract produces a record for one discovered entry. The returned record is
// complete when extraction succeeded and a labeled fallback otherwise.
func (x *ItemExtractor) Extract(ctx context.Context, entry types.LinkEntry, session string) *types.Record {
	rec, err := x.extract(ctx, entry, session)
	if err != nil {
		var xerr *types.ExtractError
		stage := "fetch"
		if errors.As(err, &xerr) {
			stage = xerr.Stage
		}
		x.logger.Warn("extraction degraded to fallback",
			"url", entry.Target,
			"stage", stage,
			"error", err,
		)
		return x.fallback(entry)
	}
	return rec
}

func (x *ItemExtractor) extract(ctx context.Context, entry types.LinkEntry, session string) (*types.Record, error) {
	req, err := types.NewRequest(entry.Target)
	if err != nil {
		return nil, &types.ExtractError{URL: entry.Target, Stage: "fetch", Err: err}
	}
	req.Tag = "detail"
	req.Session = session

	resp, err := x.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, &types.ExtractError{URL: entry.Target, Stage: "fetch", Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &types.ExtractError{
			URL:   entry.Target,
			Stage: "fetch",
			Err:   fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	content := x.conv.Convert(string(resp.Body), resp.FinalURL)
	if strings.TrimSpace(content) == "" {
		return nil, &types.ExtractError{URL: entry.Target, Stage: "convert", Err: types.ErrEmptyResponse}
	}
	content = markdown.Truncate(content, x.maxChars)

	raw, err := x.llm.Generate(ctx, buildPrompt(x.instruction, x.schema.Fields, content, false))
	if err != nil {
		return nil, &types.ExtractError{URL: entry.Target, Stage: "llm", Err: err}
	}

	objs, err := parseObjects(raw)
	if err != nil {
		return nil, &types.ExtractError{URL: entry.Target, Stage: "parse", Err: err}
	}
	if len(objs) == 0 {
		return nil, &types.ExtractError{URL: entry.Target, Stage: "parse", Err: fmt.Errorf("no objects in response")}
	}
	obj := objs[0]
	if resultFlagged(obj) {
		return nil, &types.ExtractError{URL: entry.Target, Stage: "result", Err: fmt.Errorf("extractor reported failure")}
	}

	rec := recordFromFields(obj, x.schema, resp.FinalURL)

	// The crawl knows the authoritative locator; the model's copy of it is
	// unreliable. The anchor label backfills a missing title-equivalent.
	if x.schema.LinkField != "" {
		rec.Set(x.schema.LinkField, entry.Target)
	}
	if rec.Get(x.schema.LabelField) == "" && entry.Label != "" {
		rec.Set(x.schema.LabelField, entry.Label)
	}
	return rec, nil
}

// fallback builds the degraded record for a failed entry: label and locator
// only, marked so validation can still reject it when the schema requires
// more.
func (x *ItemExtractor) fallback(entry types.LinkEntry) *types.Record {
	rec := types.NewRecord(entry.Target)
	rec.Fallback = true
	rec.Set(x.schema.LabelField, entry.Label)
	if x.schema.LinkField != "" {
		rec.Set(x.schema.LinkField, entry.Target)
	}
	return rec
}

// instructionFor returns the configured extraction instruction, or one built
// from the schema's field list.
func instructionFor(override string, schema config.SchemaConfig) string {
	if strings.TrimSpace(override) != "" {
		return strings.TrimSpace(override)
	}
	quoted := make([]string, len(schema.Fields))
	for i, f := range schema.Fields {
		quoted[i] = "'" + f + "'"
	}
	return fmt.Sprintf("Extract the item's %s from the following content.", strings.Join(quoted, ", "))
}

// buildPrompt assembles the model prompt. Listing pages ask for an array,
// detail pages for a single object.
func buildPrompt(instruction string, fields []string, content string, list bool) string {
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = `"` + f + `"`
	}

	shape := "Return ONLY a JSON object"
	if list {
		shape = "Return ONLY a JSON array of objects, one per item"
	}

	return fmt.Sprintf(`%s

%s with these string keys: %s. Use "" for anything missing. No commentary.

Content:
%s`, instruction, shape, strings.Join(keys, ", "), content)
}

// recordFromFields maps an extraction result onto the schema. Only declared
// fields are copied; non-string values are rendered as JSON.
func recordFromFields(obj map[string]any, schema config.SchemaConfig, source string) *types.Record {
	rec := types.NewRecord(source)
	for _, field := range schema.Fields {
		v, ok := obj[field]
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case string:
			rec.Set(field, strings.TrimSpace(val))
		default:
			if b, err := json.Marshal(val); err == nil {
				rec.Set(field, string(b))
			}
		}
	}
	return rec
}
