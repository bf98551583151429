package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/IshaanNene/GrazeGoat/internal/config"
	"github.com/IshaanNene/GrazeGoat/internal/types"
)

// CSVStore persists records to a single CSV file with merge-on-write
// semantics: every save re-reads the file, replaces rows whose identity
// key matches an incoming record, appends the remaining records at the
// end, and rewrites the whole file through a temp file and rename. The
// file never accumulates duplicate keys, and a crash mid-save leaves
// the previous file intact.
type CSVStore struct {
	path     string
	fields   []string
	keyField string
	mu       sync.Mutex
	saved    int
	logger   *slog.Logger
}

// NewCSVStore creates a CSV store writing to path, with the schema's
// field order as header.
func NewCSVStore(path string, schema config.SchemaConfig, logger *slog.Logger) (*CSVStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &types.StoreError{Backend: "csv", Op: "write", Err: fmt.Errorf("create output dir: %w", err)}
		}
	}

	return &CSVStore{
		path:     path,
		fields:   schema.Fields,
		keyField: schema.KeyField,
		logger:   logger.With("component", "csv_store"),
	}, nil
}

func (s *CSVStore) Name() string { return "csv" }

// ExistingKeys reads the output file and returns the set of identity
// keys already saved. A missing file yields an empty set. An unreadable
// or malformed file also degrades to an empty set rather than blocking
// the run; Merge will rewrite it.
func (s *CSVStore) ExistingKeys(_ context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make(map[string]struct{})

	header, rows, err := s.readAll()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("output file unreadable, treating as empty", "path", s.path, "error", err)
		}
		return keys, nil
	}

	idx := columnIndex(header, s.keyField)
	if idx < 0 {
		return keys, nil
	}
	for _, row := range rows {
		if idx >= len(row) {
			continue
		}
		if k := strings.TrimSpace(row[idx]); k != "" {
			keys[k] = struct{}{}
		}
	}

	s.logger.Debug("existing keys loaded", "path", s.path, "count", len(keys))
	return keys, nil
}

// Merge applies the read-merge-rewrite strategy. With appendMode false,
// or when no file exists yet, the file is written fresh with header
// plus the given records. Otherwise existing rows are read into an
// ordered map keyed by the identity field, incoming records replace
// rows carrying the same key, new keys go to the end, and the whole
// file is rewritten atomically.
func (s *CSVStore) Merge(_ context.Context, records []*types.Record, appendMode bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(records) == 0 {
		return nil
	}

	var order []string
	rows := make(map[string][]string)

	if appendMode {
		header, existing, err := s.readAll()
		switch {
		case err == nil:
			idx := columnIndex(header, s.keyField)
			for _, row := range existing {
				if idx < 0 || idx >= len(row) {
					continue
				}
				key := strings.TrimSpace(row[idx])
				if key == "" {
					continue
				}
				if _, ok := rows[key]; !ok {
					order = append(order, key)
				}
				rows[key] = projectRow(row, header, s.fields)
			}
		case errors.Is(err, os.ErrNotExist):
			// First save of a fresh run.
		default:
			s.logger.Warn("existing output unreadable, rewriting from scratch", "path", s.path, "error", err)
		}
	}

	replaced := 0
	for _, rec := range records {
		key := rec.Key(s.keyField)
		if key == "" {
			continue
		}
		if _, ok := rows[key]; ok {
			replaced++
		} else {
			order = append(order, key)
		}
		rows[key] = rec.Row(s.fields)
	}

	if err := s.rewrite(order, rows); err != nil {
		return err
	}

	s.saved += len(records)
	s.logger.Debug("records merged", "path", s.path, "incoming", len(records), "replaced", replaced, "total", len(order))
	return nil
}

func (s *CSVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Info("csv store closed", "path", s.path, "records_merged", s.saved)
	return nil
}

// rewrite writes header plus rows (in order) to a temp file next to the
// output and renames it into place, so readers never see a half-written
// file and a crash cannot corrupt the previous contents.
func (s *CSVStore) rewrite(order []string, rows map[string][]string) error {
	tmp := s.path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return &types.StoreError{Backend: "csv", Op: "write", Err: fmt.Errorf("create temp file: %w", err)}
	}

	w := csv.NewWriter(f)
	writeErr := w.Write(s.fields)
	for _, key := range order {
		if writeErr != nil {
			break
		}
		writeErr = w.Write(rows[key])
	}
	if writeErr == nil {
		w.Flush()
		writeErr = w.Error()
	}
	if closeErr := f.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		os.Remove(tmp)
		return &types.StoreError{Backend: "csv", Op: "write", Err: writeErr}
	}

	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return &types.StoreError{Backend: "csv", Op: "write", Err: fmt.Errorf("rename into place: %w", err)}
	}
	return nil
}

// readAll loads the file's header and data rows. The reader is lenient
// on per-row field counts so a hand-edited file does not abort a run,
// and a UTF-8 BOM on the header is tolerated.
func (s *CSVStore) readAll() ([]string, [][]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	if len(all) == 0 {
		return nil, nil, nil
	}

	header := all[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}
	return header, all[1:], nil
}

// projectRow re-maps a row from the on-disk header onto the schema's
// field order, dropping columns the schema does not know about.
func projectRow(row, header, fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		if j := columnIndex(header, f); j >= 0 && j < len(row) {
			out[i] = row[j]
		}
	}
	return out
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}
