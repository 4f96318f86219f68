package storage

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// CSVStore keeps interactions in a flat CSV table with a header row.
// Every mutation rewrites the whole table. The mutex serialises writers
// inside one process; separate processes sharing the file can still
// overwrite each other's updates.
type CSVStore struct {
	path string
	mu   sync.Mutex
}

var _ Store = (*CSVStore)(nil)

func NewCSVStore(path string) (*CSVStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure history dir: %w", err)
	}
	return &CSVStore{path: path}, nil
}

func (s *CSVStore) Path() string { return s.path }

func (s *CSVStore) Exists(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := os.Stat(s.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, &PersistenceError{Op: "stat", Path: s.path, Err: err}
}

func (s *CSVStore) Load(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadUnlocked()
}

func (s *CSVStore) Append(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.loadUnlocked()
	if err != nil {
		return err
	}
	records = append(records, rec)
	return s.saveUnlocked(records)
}

func (s *CSVStore) SetFeedback(ctx context.Context, timestamp string, feedback Rating) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.loadUnlocked()
	if err != nil {
		return 0, err
	}
	matched := 0
	for i := range records {
		if records[i].Timestamp == timestamp {
			records[i].Feedback = feedback
			matched++
		}
	}
	if matched == 0 {
		return 0, nil
	}
	return matched, s.saveUnlocked(records)
}

func (s *CSVStore) loadUnlocked() ([]Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Record{}, nil
		}
		return nil, &PersistenceError{Op: "open", Path: s.path, Err: err}
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []Record{}, nil
		}
		return nil, &PersistenceError{Op: "read", Path: s.path, Err: err}
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	cell := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	records := []Record{}
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &PersistenceError{Op: "read", Path: s.path, Err: err}
		}
		records = append(records, Record{
			Timestamp:   cell(row, "timestamp"),
			User:        cell(row, "user"),
			Challenge:   cell(row, "challenge"),
			Suggestions: DecodeSuggestions(cell(row, "suggestions")),
			Feedback:    Rating(cell(row, "feedback")),
		})
	}
	return records, nil
}

func (s *CSVStore) saveUnlocked(records []Record) error {
	return WriteFileAtomic(s.path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(Columns); err != nil {
			return err
		}
		for _, rec := range records {
			row := []string{rec.Timestamp, rec.User, rec.Challenge, EncodeSuggestions(rec.Suggestions), string(rec.Feedback)}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// WriteFileAtomic writes a sibling temp file and renames it over path,
// so readers never observe a half-written table.
func WriteFileAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return &PersistenceError{Op: "create", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		_ = tmp.Close()
		cleanup()
		return &PersistenceError{Op: "write", Path: path, Err: err}
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		cleanup()
		return &PersistenceError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return &PersistenceError{Op: "close", Path: path, Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return &PersistenceError{Op: "chmod", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return &PersistenceError{Op: "rename", Path: path, Err: err}
	}
	return nil
}
