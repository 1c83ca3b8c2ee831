// Package store defines the durable storage contract for per-game score
// ledgers. Each game's ledger is read and written as one atomic unit; a
// save is accepted only when the caller's expected version matches the
// stored one, so concurrent read-modify-write cycles surface as
// domain.ErrConflict instead of lost updates.
package store

import (
	"context"

	"github.com/scorezilla/scorezilla/internal/domain"
)

// Store loads and saves a game's full ledger with optimistic versioning
type Store interface {
	// Load returns the game's entries and current version. An unknown
	// game yields an empty ledger at version zero.
	Load(ctx context.Context, gameID string) ([]domain.ScoreEntry, uint64, error)

	// Save atomically replaces the game's ledger. It fails with
	// domain.ErrConflict if the stored version no longer matches
	// expectedVersion (version zero means "create").
	Save(ctx context.Context, gameID string, entries []domain.ScoreEntry, expectedVersion uint64) error

	// Close releases any underlying resources
	Close() error
}
