package store

import (
	"context"
	"log/slog"

	"github.com/IshaanNene/GrazeGoat/internal/config"
	"github.com/IshaanNene/GrazeGoat/internal/types"
)

// Store persists extracted records and reports the identity keys already
// saved, so the crawler can tell refreshed records from new ones.
type Store interface {
	// ExistingKeys returns the set of key-field values already persisted.
	// A store with no prior data returns an empty set, not an error.
	ExistingKeys(ctx context.Context) (map[string]struct{}, error)
	// Merge upserts records by identity key. With appendMode false any
	// prior contents are discarded; with appendMode true existing rows
	// are replaced in place and new keys land at the end. After a
	// successful call the store holds exactly one entry per distinct key.
	Merge(ctx context.Context, records []*types.Record, appendMode bool) error
	// Name returns the backend identifier for logging.
	Name() string
	// Close releases any held resources.
	Close() error
}

// New builds the configured persistence: a CSV primary, plus MongoDB and
// Postgres mirrors when their connection strings are set, fanned out
// behind a MultiStore.
func New(cfg *config.Config, logger *slog.Logger) (Store, error) {
	primary, err := NewCSVStore(cfg.Storage.Output, cfg.Schema, logger)
	if err != nil {
		return nil, err
	}

	var mirrors []Store
	if cfg.Storage.MongoURI != "" {
		m, err := NewMongoStore(cfg.Storage.MongoURI, cfg.Storage.MongoDatabase, cfg.Storage.MongoCollection, cfg.Schema.KeyField, logger)
		if err != nil {
			return nil, err
		}
		mirrors = append(mirrors, m)
	}
	if cfg.Storage.PostgresDSN != "" {
		p, err := NewPostgresStore(cfg.Storage.PostgresDSN, cfg.Storage.PostgresTable, cfg.Schema.KeyField, logger)
		if err != nil {
			return nil, err
		}
		mirrors = append(mirrors, p)
	}

	if len(mirrors) == 0 {
		return primary, nil
	}
	return NewMultiStore(primary, mirrors, logger), nil
}
