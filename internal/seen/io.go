package seen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Entry is one key in the JSON history file.
type Entry struct {
	Key    string    `json:"key"`
	SeenAt time.Time `json:"seen_at"`
}

// FileStore keeps the seen history as a pretty-printed JSON array, rewritten
// atomically on every insert.
type FileStore struct {
	path string

	mu      sync.Mutex
	entries []Entry
	keys    map[string]struct{}
}

func OpenFile(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("path is required")
	}
	entries, err := ReadEntriesAllowMissing(path)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		keys[e.Key] = struct{}{}
	}
	return &FileStore{path: path, entries: entries, keys: keys}, nil
}

func (s *FileStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok, nil
}

func (s *FileStore) Insert(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return nil
	}
	next := append(s.entries, Entry{Key: key, SeenAt: time.Now().UTC()})
	if err := WriteEntries(s.path, next); err != nil {
		return err
	}
	s.entries = next
	s.keys[key] = struct{}{}
	return nil
}

func (s *FileStore) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

func (s *FileStore) Close() error { return nil }

// ReadEntries reads a JSON array of entries from path.
func ReadEntries(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return []Entry{}, nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if entries == nil {
		return []Entry{}, nil
	}
	return entries, nil
}

// ReadEntriesAllowMissing treats a missing file as empty history.
func ReadEntriesAllowMissing(path string) ([]Entry, error) {
	entries, err := ReadEntries(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Entry{}, nil
		}
		return nil, err
	}
	return entries, nil
}

// WriteEntries writes entries as pretty JSON through a temp file and rename.
func WriteEntries(path string, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
