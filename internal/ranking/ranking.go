// Package ranking defines the comparator and admission rule for the
// bounded high-score ledger: higher scores rank first, earlier
// submissions win ties, and a full ledger only admits scores that beat
// the current minimum.
package ranking

import (
	"sort"

	"github.com/scorezilla/scorezilla/internal/domain"
)

// DefaultCapacity is the maximum number of entries kept per game
const DefaultCapacity = 100

// Compare orders two entries: score descending, createdAt ascending,
// then id ascending so repeated sorts of identical input are stable.
func Compare(a, b domain.ScoreEntry) int {
	switch {
	case a.Score > b.Score:
		return -1
	case a.Score < b.Score:
		return 1
	}
	switch {
	case a.CreatedAt.Before(b.CreatedAt):
		return -1
	case a.CreatedAt.After(b.CreatedAt):
		return 1
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

// Sort orders entries in place per Compare
func Sort(entries []domain.ScoreEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return Compare(entries[i], entries[j]) < 0
	})
}

// Admits reports whether a candidate score would currently enter a
// ledger bounded to capacity entries. The entries slice must already be
// sorted per Compare. A full ledger admits only scores strictly above
// the current minimum.
func Admits(score float64, entries []domain.ScoreEntry, capacity int) bool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if len(entries) < capacity {
		return true
	}
	return score > entries[len(entries)-1].Score
}
