// Package redis provides a Store keeping each game's ledger as one JSON
// document in Redis. Optimistic concurrency uses WATCH on the game key:
// a competing write between load and save fails the transaction, which
// surfaces as domain.ErrConflict for the caller to retry.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/scorezilla/scorezilla/internal/config"
	"github.com/scorezilla/scorezilla/internal/domain"
)

type document struct {
	Version uint64              `json:"version"`
	Entries []domain.ScoreEntry `json:"entries"`
}

// Store persists game ledgers in Redis
type Store struct {
	client *redis.Client
	logger *slog.Logger
}

// New connects to Redis and verifies the connection
func New(cfg *config.RedisConfig, logger *slog.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Store{client: client, logger: logger}, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// ledgerKey returns the Redis key for a game's ledger document
func (s *Store) ledgerKey(gameID string) string {
	return fmt.Sprintf("ledger:%s", gameID)
}

// Load fetches and decodes the game's ledger document
func (s *Store) Load(ctx context.Context, gameID string) ([]domain.ScoreEntry, uint64, error) {
	data, err := s.client.Get(ctx, s.ledgerKey(gameID)).Bytes()
	if err == redis.Nil {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: loading ledger: %v", domain.ErrStorage, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, fmt.Errorf("%w: decoding ledger document: %v", domain.ErrStorage, err)
	}
	return doc.Entries, doc.Version, nil
}

// Save replaces the game's ledger document inside a WATCH transaction
func (s *Store) Save(ctx context.Context, gameID string, entries []domain.ScoreEntry, expectedVersion uint64) error {
	key := s.ledgerKey(gameID)

	data, err := json.Marshal(document{Version: expectedVersion + 1, Entries: entries})
	if err != nil {
		return fmt.Errorf("%w: encoding ledger document: %v", domain.ErrStorage, err)
	}

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		var stored uint64
		switch {
		case err == redis.Nil:
			stored = 0
		case err != nil:
			return fmt.Errorf("%w: loading ledger: %v", domain.ErrStorage, err)
		default:
			var doc document
			if err := json.Unmarshal(current, &doc); err != nil {
				return fmt.Errorf("%w: decoding ledger document: %v", domain.ErrStorage, err)
			}
			stored = doc.Version
		}
		if stored != expectedVersion {
			return domain.ErrConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return domain.ErrConflict
	}
	if err != nil && !errors.Is(err, domain.ErrConflict) && !errors.Is(err, domain.ErrStorage) {
		return fmt.Errorf("%w: saving ledger: %v", domain.ErrStorage, err)
	}
	return err
}
