package file_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scorezilla/scorezilla/internal/domain"
	"github.com/scorezilla/scorezilla/internal/store/file"
)

func newStore(t *testing.T) *file.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "scores.json")
	st, err := file.New(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return st
}

func TestNew(t *testing.T) {
	t.Run("rejects empty path", func(t *testing.T) {
		_, err := file.New("", slog.New(slog.NewTextHandler(io.Discard, nil)))
		assert.Error(t, err)
	})

	t.Run("creates the parent directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested")
		_, err := file.New(filepath.Join(dir, "scores.json"), slog.New(slog.NewTextHandler(io.Discard, nil)))
		require.NoError(t, err)

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	entry := domain.ScoreEntry{ID: "e1", Name: "Ann", Score: 50, CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}

	t.Run("missing file is an empty ledger", func(t *testing.T) {
		st := newStore(t)
		entries, version, err := st.Load(ctx, "g1")
		require.NoError(t, err)
		assert.Empty(t, entries)
		assert.Zero(t, version)
	})

	t.Run("save then load round-trips", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Save(ctx, "g1", []domain.ScoreEntry{entry}, 0))

		entries, version, err := st.Load(ctx, "g1")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "Ann", entries[0].Name)
		assert.Equal(t, uint64(1), version)
	})

	t.Run("stale version is rejected", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Save(ctx, "g1", []domain.ScoreEntry{entry}, 0))

		err := st.Save(ctx, "g1", nil, 0)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("one document holds multiple games", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Save(ctx, "g1", []domain.ScoreEntry{entry}, 0))
		require.NoError(t, st.Save(ctx, "g2", nil, 0))

		entries, version, err := st.Load(ctx, "g1")
		require.NoError(t, err)
		assert.Len(t, entries, 1)
		assert.Equal(t, uint64(1), version)

		entries, version, err = st.Load(ctx, "g2")
		require.NoError(t, err)
		assert.Empty(t, entries)
		assert.Equal(t, uint64(1), version)
	})

	t.Run("corrupt document surfaces a storage failure", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scores.json")
		st, err := file.New(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

		_, _, err = st.Load(ctx, "g1")
		assert.ErrorIs(t, err, domain.ErrStorage)
	})

	t.Run("leaves no temp files behind", func(t *testing.T) {
		dir := t.TempDir()
		st, err := file.New(filepath.Join(dir, "scores.json"), slog.New(slog.NewTextHandler(io.Discard, nil)))
		require.NoError(t, err)
		require.NoError(t, st.Save(ctx, "g1", []domain.ScoreEntry{entry}, 0))

		files, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, "scores.json", files[0].Name())
	})
}
