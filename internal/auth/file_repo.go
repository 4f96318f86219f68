package auth

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"counselor-assistant/internal/storage"
)

var accountColumns = []string{"username", "password", "is_admin"}

// FileRepository keeps accounts in a CSV table. The file is created on the first insert.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

func NewFileRepository(path string) (*FileRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	return &FileRepository{path: path}, nil
}

func (r *FileRepository) Exists() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := os.Stat(r.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, &storage.PersistenceError{Op: "stat", Path: r.path, Err: err}
}

func (r *FileRepository) LoadAll() ([]Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadUnlocked()
}

func (r *FileRepository) Insert(acc Account) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	accounts, err := r.loadUnlocked()
	if err != nil {
		return false, err
	}
	for _, a := range accounts {
		if a.Username == acc.Username {
			return false, nil
		}
	}
	accounts = append(accounts, acc)
	if err := r.saveUnlocked(accounts); err != nil {
		return false, err
	}
	return true, nil
}

func (r *FileRepository) loadUnlocked() ([]Account, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Account{}, nil
		}
		return nil, &storage.PersistenceError{Op: "open", Path: r.path, Err: err}
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	cr := csv.NewReader(bufio.NewReader(f))
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, &storage.PersistenceError{Op: "read", Path: r.path, Err: err}
	}
	accounts := []Account{}
	if len(rows) == 0 {
		return accounts, nil
	}
	idx := map[string]int{}
	for i, name := range rows[0] {
		idx[strings.TrimSpace(name)] = i
	}
	cell := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}
	for _, row := range rows[1:] {
		username := cell(row, "username")
		if username == "" {
			continue
		}
		accounts = append(accounts, Account{
			Username:     username,
			PasswordHash: cell(row, "password"),
			IsAdmin:      parseBool(cell(row, "is_admin")),
		})
	}
	return accounts, nil
}

func (r *FileRepository) saveUnlocked(accounts []Account) error {
	return storage.WriteFileAtomic(r.path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(accountColumns); err != nil {
			return err
		}
		for _, a := range accounts {
			admin := "False"
			if a.IsAdmin {
				admin = "True"
			}
			if err := cw.Write([]string{a.Username, a.PasswordHash, admin}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	}
	return false
}
