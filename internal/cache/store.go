// Package cache persists symbol-keyed tables as flat CSV files with an
// atomic write discipline. Caches are resumable: a missing or corrupt file
// degrades to a cold cache, never to a failed run.
package cache

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/wonny/ussymbols/pkg/logger"
)

// Codec describes how one record type maps to and from a CSV row.
type Codec[T any] struct {
	// Header is the stable column set; it never changes across versions
	// so long-lived cache files stay readable.
	Header []string

	// Key extracts the canonical symbol used as the table key.
	Key func(T) string

	// Encode renders one record as a row matching Header.
	Encode func(T) []string

	// Decode parses one row. A row-level error skips the row.
	Decode func([]string) (T, error)

	// Merge combines an existing record with an incoming one on upsert.
	// nil means last-write-wins (incoming replaces existing).
	Merge func(old, incoming T) T
}

// Store is a persisted key→record table.
type Store[T any] struct {
	path  string
	codec Codec[T]
	log   *logger.Logger
}

// NewStore creates a store backed by the CSV file at path.
func NewStore[T any](path string, codec Codec[T], log *logger.Logger) *Store[T] {
	return &Store[T]{path: path, codec: codec, log: log.WithField("cache", filepath.Base(path))}
}

// Path returns the backing file path.
func (s *Store[T]) Path() string { return s.path }

// Load reads the table from disk. A missing file yields an empty map.
// A corrupt file (unreadable, bad header) is logged and also yields an
// empty map: the cache degrades to cold rather than failing the run.
// Individual malformed rows are skipped.
func (s *Store[T]) Load() map[string]T {
	out := make(map[string]T)

	f, err := os.Open(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.WithError(err).Warn("Cache unreadable, starting cold")
		}
		return out
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil || !headerMatches(header, s.codec.Header) {
		s.log.Warn("Cache header mismatch or unreadable, starting cold")
		return make(map[string]T)
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.log.WithError(err).Warn("Cache row unreadable, skipping remainder")
			break
		}
		rec, err := s.codec.Decode(row)
		if err != nil {
			s.log.WithError(err).Debug("Skipping malformed cache row")
			continue
		}
		out[s.codec.Key(rec)] = rec
	}

	return out
}

// Upsert inserts or updates one record in the in-memory table, applying
// the codec's merge rule when an entry already exists.
func (s *Store[T]) Upsert(table map[string]T, rec T) {
	key := s.codec.Key(rec)
	if old, ok := table[key]; ok && s.codec.Merge != nil {
		table[key] = s.codec.Merge(old, rec)
		return
	}
	table[key] = rec
}

// Save atomically persists the full table: rows are written to a temp file
// in the same directory and renamed into place, so a crash mid-write never
// leaves a partially written cache. Rows are sorted by key so that
// Load followed by Save is a content no-op.
func (s *Store[T]) Save(table map[string]T) error {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return WriteAtomic(s.path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(s.codec.Header); err != nil {
			return err
		}
		for _, k := range keys {
			if err := cw.Write(s.codec.Encode(table[k])); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// WriteAtomic writes a file via write-to-temp-then-rename in the target's
// directory. The directory is created when missing.
func WriteAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func headerMatches(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
