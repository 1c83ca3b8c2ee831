// Package ledger implements the capacity-bounded, ranked high-score
// ledger. Every mutation is a full read-modify-write of one game's
// collection against the store, retried a bounded number of times when
// a concurrent writer wins the version race.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scorezilla/scorezilla/internal/config"
	"github.com/scorezilla/scorezilla/internal/domain"
	"github.com/scorezilla/scorezilla/internal/ranking"
	"github.com/scorezilla/scorezilla/internal/store"
)

// Broadcaster pushes ledger updates to subscribed clients
type Broadcaster interface {
	BroadcastLedgerUpdate(gameID string, entries []domain.ScoreEntry)
}

// Service provides ranked, capacity-bounded score operations per game
type Service struct {
	store  store.Store
	config *config.LedgerConfig
	logger *slog.Logger
	hub    Broadcaster
	now    func() time.Time
	newID  func() string
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source, used by tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithIDFunc overrides entry id generation, used by tests
func WithIDFunc(newID func() string) Option {
	return func(s *Service) {
		s.newID = newID
	}
}

// NewService creates a ledger service backed by the given store
func NewService(st store.Store, cfg *config.LedgerConfig, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  st,
		config: cfg,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetHub sets the broadcaster notified after successful mutations
func (s *Service) SetHub(hub Broadcaster) {
	s.hub = hub
}

// List returns up to limit entries sorted by rank
func (s *Service) List(ctx context.Context, gameID string, limit int) ([]domain.ScoreEntry, error) {
	if limit <= 0 {
		limit = s.config.DefaultLimit
	}
	if limit > s.config.MaxLimit {
		limit = s.config.MaxLimit
	}

	entries, _, err := s.store.Load(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("loading ledger: %w", err)
	}

	ranking.Sort(entries)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	if entries == nil {
		entries = []domain.ScoreEntry{}
	}
	return entries, nil
}

// Insert validates and adds a new score, evicting the lowest-ranked
// entry when the ledger exceeds capacity. The created entry is returned
// even when it did not make the board.
func (s *Service) Insert(ctx context.Context, gameID, name string, score float64) (*domain.ScoreEntry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name must not be empty", domain.ErrInvalidPayload)
	}
	if err := validateScore(score); err != nil {
		return nil, err
	}

	entry := domain.ScoreEntry{
		ID:        s.newID(),
		Name:      name,
		Score:     score,
		CreatedAt: s.now().UTC(),
	}

	entries, err := s.mutate(ctx, gameID, func(entries []domain.ScoreEntry) ([]domain.ScoreEntry, error) {
		entries = append(entries, entry)
		ranking.Sort(entries)
		if len(entries) > s.config.Capacity {
			entries = entries[:s.config.Capacity]
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(gameID, entries)
	return &entry, nil
}

// Update replaces an entry's name and score, keeping its position in
// the ledger consistent with the new rank
func (s *Service) Update(ctx context.Context, gameID, id, name string, score float64) (*domain.ScoreEntry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name must not be empty", domain.ErrInvalidPayload)
	}
	if err := validateScore(score); err != nil {
		return nil, err
	}

	var updated domain.ScoreEntry
	entries, err := s.mutate(ctx, gameID, func(entries []domain.ScoreEntry) ([]domain.ScoreEntry, error) {
		idx := findEntry(entries, id)
		if idx < 0 {
			return nil, domain.ErrNotFound
		}
		now := s.now().UTC()
		entries[idx].Name = name
		entries[idx].Score = score
		entries[idx].UpdatedAt = &now
		updated = entries[idx]
		ranking.Sort(entries)
		return entries, nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(gameID, entries)
	return &updated, nil
}

// Delete removes an entry by id and returns it
func (s *Service) Delete(ctx context.Context, gameID, id string) (*domain.ScoreEntry, error) {
	var removed domain.ScoreEntry
	entries, err := s.mutate(ctx, gameID, func(entries []domain.ScoreEntry) ([]domain.ScoreEntry, error) {
		idx := findEntry(entries, id)
		if idx < 0 {
			return nil, domain.ErrNotFound
		}
		removed = entries[idx]
		return append(entries[:idx], entries[idx+1:]...), nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(gameID, entries)
	return &removed, nil
}

// CheckAdmission reports whether a score would currently enter the
// ledger, without mutating state
func (s *Service) CheckAdmission(ctx context.Context, gameID string, score float64) (bool, error) {
	if err := validateScore(score); err != nil {
		return false, err
	}

	entries, _, err := s.store.Load(ctx, gameID)
	if err != nil {
		return false, fmt.Errorf("loading ledger: %w", err)
	}

	ranking.Sort(entries)
	return ranking.Admits(score, entries, s.config.Capacity), nil
}

// SubmitScore inserts a score from an async submission, used by the
// Kafka consumer path
func (s *Service) SubmitScore(ctx context.Context, submission domain.ScoreSubmission) error {
	if submission.GameID == "" {
		return fmt.Errorf("%w: game_id must not be empty", domain.ErrInvalidPayload)
	}
	_, err := s.Insert(ctx, submission.GameID, submission.Name, submission.Score)
	return err
}

// mutate runs a read-modify-write cycle with bounded retry on version
// conflicts. apply receives the current entries and returns the full
// replacement collection.
func (s *Service) mutate(ctx context.Context, gameID string, apply func([]domain.ScoreEntry) ([]domain.ScoreEntry, error)) ([]domain.ScoreEntry, error) {
	attempts := s.config.WriteRetries
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		entries, version, err := s.store.Load(ctx, gameID)
		if err != nil {
			return nil, fmt.Errorf("loading ledger: %w", err)
		}

		next, err := apply(entries)
		if err != nil {
			return nil, err
		}

		err = s.store.Save(ctx, gameID, next, version)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("saving ledger: %w", err)
		}

		lastErr = err
		s.logger.Debug("ledger write conflict, retrying",
			"game_id", gameID,
			"attempt", attempt+1,
		)
	}

	return nil, fmt.Errorf("ledger write for game %s: %w", gameID, lastErr)
}

// broadcast pushes the current top entries to subscribed clients
func (s *Service) broadcast(gameID string, entries []domain.ScoreEntry) {
	if s.hub == nil {
		return
	}
	top := entries
	if len(top) > s.config.DefaultLimit {
		top = top[:s.config.DefaultLimit]
	}
	s.hub.BroadcastLedgerUpdate(gameID, top)
}

// validateScore rejects NaN, infinite and negative scores
func validateScore(score float64) error {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return fmt.Errorf("%w: score must be a finite number", domain.ErrInvalidPayload)
	}
	if score < 0 {
		return fmt.Errorf("%w: score must not be negative", domain.ErrInvalidPayload)
	}
	return nil
}

// findEntry returns the index of the entry with the given id, or -1
func findEntry(entries []domain.ScoreEntry, id string) int {
	for i := range entries {
		if entries[i].ID == id {
			return i
		}
	}
	return -1
}
