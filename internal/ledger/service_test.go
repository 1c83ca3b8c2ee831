package ledger_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scorezilla/scorezilla/internal/config"
	"github.com/scorezilla/scorezilla/internal/domain"
	"github.com/scorezilla/scorezilla/internal/ledger"
	"github.com/scorezilla/scorezilla/internal/store"
	"github.com/scorezilla/scorezilla/internal/store/memory"
)

func testConfig() *config.LedgerConfig {
	return &config.LedgerConfig{
		Capacity:     100,
		DefaultLimit: 10,
		MaxLimit:     100,
		WriteRetries: 3,
	}
}

// newService builds a ledger over st with sequential ids and a clock
// that advances one second per call, so insertion order is observable
// in createdAt.
func newService(t *testing.T, st store.Store, cfg *config.LedgerConfig) *ledger.Service {
	t.Helper()
	var idSeq, tickSeq int
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return ledger.NewService(st, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)),
		ledger.WithIDFunc(func() string {
			idSeq++
			return fmt.Sprintf("id-%03d", idSeq)
		}),
		ledger.WithClock(func() time.Time {
			tickSeq++
			return base.Add(time.Duration(tickSeq) * time.Second)
		}),
	)
}

func TestInsertValidation(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, memory.New(), testConfig())

	cases := []struct {
		name  string
		entry string
		score float64
	}{
		{"empty name", "", 10},
		{"blank name", "   ", 10},
		{"nan score", "Ann", math.NaN()},
		{"infinite score", "Ann", math.Inf(1)},
		{"negative score", "Ann", -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Insert(ctx, "g1", tc.entry, tc.score)
			assert.ErrorIs(t, err, domain.ErrInvalidPayload)
		})
	}

	t.Run("invalid payload leaves the ledger empty", func(t *testing.T) {
		entries, err := svc.List(ctx, "g1", 0)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestInsert(t *testing.T) {
	ctx := context.Background()

	t.Run("trims the name and assigns id and timestamp", func(t *testing.T) {
		svc := newService(t, memory.New(), testConfig())

		entry, err := svc.Insert(ctx, "g1", "  Ann  ", 50)
		require.NoError(t, err)
		assert.Equal(t, "id-001", entry.ID)
		assert.Equal(t, "Ann", entry.Name)
		assert.Equal(t, float64(50), entry.Score)
		assert.False(t, entry.CreatedAt.IsZero())
		assert.Nil(t, entry.UpdatedAt)
	})

	t.Run("keeps entries ranked by score", func(t *testing.T) {
		svc := newService(t, memory.New(), testConfig())

		_, err := svc.Insert(ctx, "g1", "Ann", 50)
		require.NoError(t, err)
		_, err = svc.Insert(ctx, "g1", "Bob", 80)
		require.NoError(t, err)

		entries, err := svc.List(ctx, "g1", 0)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "Bob", entries[0].Name)
		assert.Equal(t, "Ann", entries[1].Name)
	})

	t.Run("earlier submission wins score ties", func(t *testing.T) {
		svc := newService(t, memory.New(), testConfig())

		_, err := svc.Insert(ctx, "g1", "First", 80)
		require.NoError(t, err)
		_, err = svc.Insert(ctx, "g1", "Second", 80)
		require.NoError(t, err)

		entries, err := svc.List(ctx, "g1", 0)
		require.NoError(t, err)
		assert.Equal(t, "First", entries[0].Name)
	})

	t.Run("zero score is accepted", func(t *testing.T) {
		svc := newService(t, memory.New(), testConfig())
		_, err := svc.Insert(ctx, "g1", "Ann", 0)
		assert.NoError(t, err)
	})
}

func TestInsertCapacity(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Capacity = 3

	t.Run("evicts the lowest-ranked entry beyond capacity", func(t *testing.T) {
		svc := newService(t, memory.New(), cfg)

		for i, score := range []float64{40, 80, 60, 70} {
			_, err := svc.Insert(ctx, "g1", fmt.Sprintf("P%d", i), score)
			require.NoError(t, err)
		}

		entries, err := svc.List(ctx, "g1", 0)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, float64(80), entries[0].Score)
		assert.Equal(t, float64(70), entries[1].Score)
		assert.Equal(t, float64(60), entries[2].Score)
	})

	t.Run("score below the minimum leaves membership unchanged", func(t *testing.T) {
		svc := newService(t, memory.New(), cfg)

		for i, score := range []float64{80, 70, 60} {
			_, err := svc.Insert(ctx, "g1", fmt.Sprintf("P%d", i), score)
			require.NoError(t, err)
		}

		before, err := svc.List(ctx, "g1", 0)
		require.NoError(t, err)

		qualifies, err := svc.CheckAdmission(ctx, "g1", 40)
		require.NoError(t, err)
		assert.False(t, qualifies)

		_, err = svc.Insert(ctx, "g1", "Late", 40)
		require.NoError(t, err)

		after, err := svc.List(ctx, "g1", 0)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})
}

func TestList(t *testing.T) {
	ctx := context.Background()

	t.Run("empty game yields an empty slice", func(t *testing.T) {
		svc := newService(t, memory.New(), testConfig())
		entries, err := svc.List(ctx, "nope", 0)
		require.NoError(t, err)
		assert.NotNil(t, entries)
		assert.Empty(t, entries)
	})

	t.Run("applies the default and maximum limits", func(t *testing.T) {
		cfg := testConfig()
		cfg.DefaultLimit = 2
		cfg.MaxLimit = 3
		svc := newService(t, memory.New(), cfg)

		for i := 0; i < 5; i++ {
			_, err := svc.Insert(ctx, "g1", fmt.Sprintf("P%d", i), float64(i*10))
			require.NoError(t, err)
		}

		entries, err := svc.List(ctx, "g1", 0)
		require.NoError(t, err)
		assert.Len(t, entries, 2)

		entries, err = svc.List(ctx, "g1", 100)
		require.NoError(t, err)
		assert.Len(t, entries, 3)

		entries, err = svc.List(ctx, "g1", 1)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, float64(40), entries[0].Score)
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown id is not found and leaves the ledger unchanged", func(t *testing.T) {
		svc := newService(t, memory.New(), testConfig())
		_, err := svc.Insert(ctx, "g1", "Ann", 50)
		require.NoError(t, err)

		before, err := svc.List(ctx, "g1", 0)
		require.NoError(t, err)

		_, err = svc.Update(ctx, "g1", "missing", "Bob", 80)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		after, err := svc.List(ctx, "g1", 0)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("replaces name and score and re-ranks", func(t *testing.T) {
		svc := newService(t, memory.New(), testConfig())
		ann, err := svc.Insert(ctx, "g1", "Ann", 50)
		require.NoError(t, err)
		_, err = svc.Insert(ctx, "g1", "Bob", 80)
		require.NoError(t, err)

		updated, err := svc.Update(ctx, "g1", ann.ID, "Annie", 90)
		require.NoError(t, err)
		assert.Equal(t, "Annie", updated.Name)
		assert.Equal(t, float64(90), updated.Score)
		require.NotNil(t, updated.UpdatedAt)

		entries, err := svc.List(ctx, "g1", 0)
		require.NoError(t, err)
		assert.Equal(t, "Annie", entries[0].Name)
	})

	t.Run("validates the new payload", func(t *testing.T) {
		svc := newService(t, memory.New(), testConfig())
		ann, err := svc.Insert(ctx, "g1", "Ann", 50)
		require.NoError(t, err)

		_, err = svc.Update(ctx, "g1", ann.ID, " ", 50)
		assert.ErrorIs(t, err, domain.ErrInvalidPayload)

		_, err = svc.Update(ctx, "g1", ann.ID, "Ann", math.NaN())
		assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown id is not found", func(t *testing.T) {
		svc := newService(t, memory.New(), testConfig())
		_, err := svc.Delete(ctx, "g1", "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("removes and returns the entry", func(t *testing.T) {
		svc := newService(t, memory.New(), testConfig())
		ann, err := svc.Insert(ctx, "g1", "Ann", 50)
		require.NoError(t, err)
		_, err = svc.Insert(ctx, "g1", "Bob", 80)
		require.NoError(t, err)

		removed, err := svc.Delete(ctx, "g1", ann.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ann", removed.Name)

		entries, err := svc.List(ctx, "g1", 0)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "Bob", entries[0].Name)
	})
}

func TestCheckAdmission(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Capacity = 2

	t.Run("admits while a slot is free", func(t *testing.T) {
		svc := newService(t, memory.New(), cfg)
		_, err := svc.Insert(ctx, "g1", "Ann", 50)
		require.NoError(t, err)

		qualifies, err := svc.CheckAdmission(ctx, "g1", 40)
		require.NoError(t, err)
		assert.True(t, qualifies)
	})

	t.Run("full ledger admits only above the minimum", func(t *testing.T) {
		svc := newService(t, memory.New(), cfg)
		_, err := svc.Insert(ctx, "g1", "Ann", 50)
		require.NoError(t, err)
		_, err = svc.Insert(ctx, "g1", "Bob", 80)
		require.NoError(t, err)

		qualifies, err := svc.CheckAdmission(ctx, "g1", 40)
		require.NoError(t, err)
		assert.False(t, qualifies)

		qualifies, err = svc.CheckAdmission(ctx, "g1", 60)
		require.NoError(t, err)
		assert.True(t, qualifies)
	})

	t.Run("admitted score enters the ledger when submitted", func(t *testing.T) {
		svc := newService(t, memory.New(), cfg)
		_, err := svc.Insert(ctx, "g1", "Ann", 50)
		require.NoError(t, err)
		_, err = svc.Insert(ctx, "g1", "Bob", 80)
		require.NoError(t, err)

		qualifies, err := svc.CheckAdmission(ctx, "g1", 60)
		require.NoError(t, err)
		require.True(t, qualifies)

		entry, err := svc.Insert(ctx, "g1", "Cid", 60)
		require.NoError(t, err)

		entries, err := svc.List(ctx, "g1", 0)
		require.NoError(t, err)
		ids := []string{entries[0].ID, entries[1].ID}
		assert.Contains(t, ids, entry.ID)
	})

	t.Run("rejects invalid scores", func(t *testing.T) {
		svc := newService(t, memory.New(), cfg)
		_, err := svc.CheckAdmission(ctx, "g1", math.NaN())
		assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	})
}

// flakyStore injects version conflicts before delegating to the real store
type flakyStore struct {
	*memory.Store
	mu       sync.Mutex
	failures int
}

func (s *flakyStore) Save(ctx context.Context, gameID string, entries []domain.ScoreEntry, expectedVersion uint64) error {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return domain.ErrConflict
	}
	s.mu.Unlock()
	return s.Store.Save(ctx, gameID, entries, expectedVersion)
}

func TestWriteConflictRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("retries transient conflicts", func(t *testing.T) {
		st := &flakyStore{Store: memory.New(), failures: 2}
		svc := newService(t, st, testConfig())

		_, err := svc.Insert(ctx, "g1", "Ann", 50)
		require.NoError(t, err)

		entries, err := svc.List(ctx, "g1", 0)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("surfaces the conflict once retries are exhausted", func(t *testing.T) {
		st := &flakyStore{Store: memory.New(), failures: 10}
		svc := newService(t, st, testConfig())

		_, err := svc.Insert(ctx, "g1", "Ann", 50)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})
}

func TestSubmitScore(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, memory.New(), testConfig())

	t.Run("requires a game id", func(t *testing.T) {
		err := svc.SubmitScore(ctx, domain.ScoreSubmission{Name: "Ann", Score: 50})
		assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	})

	t.Run("inserts the submission", func(t *testing.T) {
		err := svc.SubmitScore(ctx, domain.ScoreSubmission{GameID: "g1", Name: "Ann", Score: 50})
		require.NoError(t, err)

		entries, err := svc.List(ctx, "g1", 0)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

// recordingHub captures broadcasts from the ledger service
type recordingHub struct {
	mu      sync.Mutex
	updates []string
}

func (h *recordingHub) BroadcastLedgerUpdate(gameID string, entries []domain.ScoreEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, gameID)
}

func TestBroadcast(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, memory.New(), testConfig())
	hub := &recordingHub{}
	svc.SetHub(hub)

	entry, err := svc.Insert(ctx, "g1", "Ann", 50)
	require.NoError(t, err)
	_, err = svc.Delete(ctx, "g1", entry.ID)
	require.NoError(t, err)

	hub.mu.Lock()
	defer hub.mu.Unlock()
	assert.Equal(t, []string{"g1", "g1"}, hub.updates)
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, memory.New(), testConfig())

	ann, err := svc.Insert(ctx, "g1", "Ann", 50)
	require.NoError(t, err)

	entries, err := svc.List(ctx, "g1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, err = svc.Insert(ctx, "g1", "Bob", 80)
	require.NoError(t, err)

	entries, err = svc.List(ctx, "g1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Bob", entries[0].Name)
	assert.Equal(t, "Ann", entries[1].Name)

	qualifies, err := svc.CheckAdmission(ctx, "g1", 40)
	require.NoError(t, err)
	assert.True(t, qualifies)

	removed, err := svc.Delete(ctx, "g1", ann.ID)
	require.NoError(t, err)
	assert.Equal(t, ann.ID, removed.ID)

	entries, err = svc.List(ctx, "g1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Bob", entries[0].Name)
}
