package store

import (
	"context"
	"log/slog"

	"github.com/IshaanNene/GrazeGoat/internal/types"
)

// MultiStore writes through a primary store and best-effort mirrors.
// ExistingKeys consults only the primary, which is the source of truth
// for refresh decisions. Mirror write failures are logged and
// swallowed, so a dead replica cannot fail a crawl; a primary failure
// propagates.
type MultiStore struct {
	primary Store
	mirrors []Store
	logger  *slog.Logger
}

// NewMultiStore wraps a primary store and zero or more mirrors.
func NewMultiStore(primary Store, mirrors []Store, logger *slog.Logger) *MultiStore {
	return &MultiStore{
		primary: primary,
		mirrors: mirrors,
		logger:  logger.With("component", "multi_store"),
	}
}

func (s *MultiStore) Name() string { return "multi" }

func (s *MultiStore) ExistingKeys(ctx context.Context) (map[string]struct{}, error) {
	return s.primary.ExistingKeys(ctx)
}

func (s *MultiStore) Merge(ctx context.Context, records []*types.Record, appendMode bool) error {
	if err := s.primary.Merge(ctx, records, appendMode); err != nil {
		return err
	}
	for _, m := range s.mirrors {
		if err := m.Merge(ctx, records, appendMode); err != nil {
			s.logger.Error("mirror merge failed", "backend", m.Name(), "error", err)
		}
	}
	return nil
}

func (s *MultiStore) Close() error {
	var firstErr error
	for _, m := range s.mirrors {
		if err := m.Close(); err != nil {
			s.logger.Error("mirror close failed", "backend", m.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if err := s.primary.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
