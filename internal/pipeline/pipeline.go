package pipeline

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/IshaanNene/GrazeGoat/internal/config"
	"github.com/IshaanNene/GrazeGoat/internal/types"
)

// Stage processes a record and returns the (possibly modified) record.
// Return nil to drop the record from the pipeline.
type Stage interface {
	// Name returns the stage's identifier.
	Name() string

	// Process transforms a record. Return nil to drop it.
	Process(rec *types.Record) (*types.Record, error)
}

// Pipeline chains record stages together. The crawler runs every
// extracted record through it before persisting; a rejected record is
// counted as failed, never written.
type Pipeline struct {
	stages []Stage
	logger *slog.Logger
}

// New creates an empty Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// ForSchema builds the standard validation chain for a record schema:
// whitespace trimming, then required-field enforcement.
func ForSchema(schema config.SchemaConfig, logger *slog.Logger) *Pipeline {
	p := New(logger)
	p.Use(&TrimStage{})
	p.Use(&RequiredFieldsStage{Fields: schema.Required})
	return p
}

// Use appends a stage to the chain.
func (p *Pipeline) Use(st Stage) {
	p.stages = append(p.stages, st)
	p.logger.Debug("stage added", "name", st.Name(), "position", len(p.stages))
}

// Process runs the record through all stages in order.
func (p *Pipeline) Process(rec *types.Record) (*types.Record, error) {
	current := rec

	for _, st := range p.stages {
		result, err := st.Process(current)
		if err != nil {
			return nil, &types.PipelineError{Stage: st.Name(), Err: err}
		}
		if result == nil {
			p.logger.Debug("record dropped", "stage", st.Name(), "source", rec.Source)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// Len returns the number of stages in the chain.
func (p *Pipeline) Len() int {
	return len(p.stages)
}

// --- Built-in Stages ---

// TrimStage trims whitespace from every field value.
type TrimStage struct{}

func (s *TrimStage) Name() string { return "trim" }

func (s *TrimStage) Process(rec *types.Record) (*types.Record, error) {
	for k, v := range rec.Fields {
		rec.Fields[k] = strings.TrimSpace(v)
	}
	return rec, nil
}

// RequiredFieldsStage rejects records missing any required field. The
// error names the missing fields so the caller can log a useful reason;
// fallback records with empty required fields are rejected here too.
type RequiredFieldsStage struct {
	Fields []string
}

func (s *RequiredFieldsStage) Name() string { return "required_fields" }

func (s *RequiredFieldsStage) Process(rec *types.Record) (*types.Record, error) {
	var missing []string
	for _, field := range s.Fields {
		if strings.TrimSpace(rec.Get(field)) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrIncompleteRecord, strings.Join(missing, ", "))
	}
	return rec, nil
}
