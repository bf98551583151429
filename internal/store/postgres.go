package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/IshaanNene/GrazeGoat/internal/types"
)

// PostgresStore mirrors records into a Postgres table with one row per
// identity key. Field values are kept as a jsonb document so schema
// changes never require a migration.
type PostgresStore struct {
	pool     *pgxpool.Pool
	table    string
	keyField string
	count    int
	logger   *slog.Logger
}

// NewPostgresStore connects to Postgres and creates the target table if
// it does not exist.
func NewPostgresStore(dsn, table, keyField string, logger *slog.Logger) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, &types.StoreError{Backend: "postgres", Op: "connect", Err: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &types.StoreError{Backend: "postgres", Op: "connect", Err: err}
	}

	s := &PostgresStore{
		pool:     pool,
		table:    pgx.Identifier{table}.Sanitize(),
		keyField: keyField,
		logger:   logger.With("component", "postgres_store"),
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key text PRIMARY KEY,
		fields jsonb NOT NULL,
		source text NOT NULL DEFAULT '',
		scraped_at timestamptz NOT NULL
	)`, s.table)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		pool.Close()
		return nil, &types.StoreError{Backend: "postgres", Op: "write", Err: fmt.Errorf("create table: %w", err)}
	}

	return s, nil
}

func (s *PostgresStore) Name() string { return "postgres" }

// ExistingKeys returns every identity key present in the table.
func (s *PostgresStore) ExistingKeys(ctx context.Context) (map[string]struct{}, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT key FROM %s`, s.table))
	if err != nil {
		return nil, &types.StoreError{Backend: "postgres", Op: "keys", Err: err}
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, &types.StoreError{Backend: "postgres", Op: "keys", Err: err}
		}
		keys[k] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, &types.StoreError{Backend: "postgres", Op: "keys", Err: err}
	}
	return keys, nil
}

// Merge upserts all records inside a single transaction.
func (s *PostgresStore) Merge(ctx context.Context, records []*types.Record, _ bool) error {
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &types.StoreError{Backend: "postgres", Op: "write", Err: err}
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`INSERT INTO %s (key, fields, source, scraped_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET
			fields = EXCLUDED.fields,
			source = EXCLUDED.source,
			scraped_at = EXCLUDED.scraped_at`, s.table)

	upserted := 0
	for _, rec := range records {
		key := rec.Key(s.keyField)
		if key == "" {
			continue
		}
		fields, err := json.Marshal(rec.Fields)
		if err != nil {
			return &types.StoreError{Backend: "postgres", Op: "write", Err: err}
		}
		if _, err := tx.Exec(ctx, stmt, key, fields, rec.Source, rec.ScrapedAt); err != nil {
			return &types.StoreError{Backend: "postgres", Op: "write", Err: fmt.Errorf("upsert %q: %w", key, err)}
		}
		upserted++
	}

	if err := tx.Commit(ctx); err != nil {
		return &types.StoreError{Backend: "postgres", Op: "write", Err: err}
	}

	s.count += upserted
	s.logger.Debug("records mirrored to postgres", "count", upserted, "total", s.count)
	return nil
}

func (s *PostgresStore) Close() error {
	s.logger.Info("postgres mirror closing", "records_mirrored", s.count)
	s.pool.Close()
	return nil
}
