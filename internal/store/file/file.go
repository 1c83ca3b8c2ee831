// Package file provides a Store backed by a single JSON document on
// disk, mirroring the original scores.json layout: a mapping from game
// id to its versioned entry list. Writes go through a temp file and
// rename so a crash never leaves a partially written document.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/scorezilla/scorezilla/internal/domain"
)

type gameRecord struct {
	Version uint64              `json:"version"`
	Entries []domain.ScoreEntry `json:"entries"`
}

// Store persists all game ledgers in one JSON file
type Store struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// New creates a file store at path, creating the parent directory if
// missing. Directory creation is best-effort and idempotent.
func New(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("file store path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Warn("failed to create data directory", "dir", filepath.Dir(path), "error", err)
	}
	return &Store{path: path, logger: logger}, nil
}

// Load returns the game's entries and version from the document
func (s *Store) Load(ctx context.Context, gameID string) ([]domain.ScoreEntry, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, 0, err
	}
	rec, ok := doc[gameID]
	if !ok {
		return nil, 0, nil
	}
	return rec.Entries, rec.Version, nil
}

// Save replaces the game's record and rewrites the whole document
func (s *Store) Save(ctx context.Context, gameID string, entries []domain.ScoreEntry, expectedVersion uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if doc[gameID].Version != expectedVersion {
		return domain.ErrConflict
	}
	doc[gameID] = gameRecord{Version: expectedVersion + 1, Entries: entries}
	return s.write(doc)
}

// Close is a no-op for the file store
func (s *Store) Close() error {
	return nil
}

// read loads the full document; a missing file is an empty document
func (s *Store) read() (map[string]gameRecord, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return make(map[string]gameRecord), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", domain.ErrStorage, s.path, err)
	}
	doc := make(map[string]gameRecord)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %v", domain.ErrStorage, s.path, err)
		}
	}
	return doc, nil
}

// write replaces the document atomically via temp file and rename
func (s *Store) write(doc map[string]gameRecord) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding document: %v", domain.ErrStorage, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", domain.ErrStorage, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: writing temp file: %v", domain.ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: closing temp file: %v", domain.ErrStorage, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: replacing %s: %v", domain.ErrStorage, s.path, err)
	}
	return nil
}
