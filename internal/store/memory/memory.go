// Package memory provides an in-process Store used for development and
// tests. It honors the same versioning contract as the durable backends.
package memory

import (
	"context"
	"sync"

	"github.com/scorezilla/scorezilla/internal/domain"
)

type record struct {
	entries []domain.ScoreEntry
	version uint64
}

// Store keeps per-game ledgers in a map guarded by a RWMutex
type Store struct {
	mu    sync.RWMutex
	games map[string]record
}

// New creates an empty in-memory store
func New() *Store {
	return &Store{games: make(map[string]record)}
}

// Load returns a copy of the game's entries and its version
func (s *Store) Load(ctx context.Context, gameID string) ([]domain.ScoreEntry, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.games[gameID]
	if !ok {
		return nil, 0, nil
	}
	entries := make([]domain.ScoreEntry, len(rec.entries))
	copy(entries, rec.entries)
	return entries, rec.version, nil
}

// Save replaces the game's entries if expectedVersion matches
func (s *Store) Save(ctx context.Context, gameID string, entries []domain.ScoreEntry, expectedVersion uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.games[gameID]
	if rec.version != expectedVersion {
		return domain.ErrConflict
	}
	stored := make([]domain.ScoreEntry, len(entries))
	copy(stored, entries)
	s.games[gameID] = record{entries: stored, version: rec.version + 1}
	return nil
}

// Close is a no-op for the in-memory store
func (s *Store) Close() error {
	return nil
}
