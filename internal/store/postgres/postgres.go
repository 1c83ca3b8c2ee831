// Package postgres provides a Store keeping each game's ledger as a
// single JSONB row. Saves are compare-and-swap updates on a version
// column, so a lost race reports domain.ErrConflict instead of
// overwriting a concurrent write.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scorezilla/scorezilla/internal/config"
	"github.com/scorezilla/scorezilla/internal/domain"
)

// Store persists game ledgers in PostgreSQL
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects to PostgreSQL and verifies the connection
func New(cfg *config.PostgresConfig, logger *slog.Logger) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Store{pool: pool, logger: logger}, nil
}

// Close closes the connection pool
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// RunMigrations creates the ledger table if missing
func (s *Store) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS game_ledgers (
			game_id VARCHAR(64) PRIMARY KEY,
			entries JSONB NOT NULL,
			version BIGINT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	s.logger.Info("database migrations completed")
	return nil
}

// Load fetches the game's entries and version
func (s *Store) Load(ctx context.Context, gameID string) ([]domain.ScoreEntry, uint64, error) {
	query := `SELECT entries, version FROM game_ledgers WHERE game_id = $1`

	var data []byte
	var version uint64
	err := s.pool.QueryRow(ctx, query, gameID).Scan(&data, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: loading ledger: %v", domain.ErrStorage, err)
	}

	var entries []domain.ScoreEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, 0, fmt.Errorf("%w: decoding ledger row: %v", domain.ErrStorage, err)
	}
	return entries, version, nil
}

// Save replaces the game's row, guarded by the version column
func (s *Store) Save(ctx context.Context, gameID string, entries []domain.ScoreEntry, expectedVersion uint64) error {
	if entries == nil {
		entries = []domain.ScoreEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("%w: encoding ledger row: %v", domain.ErrStorage, err)
	}

	if expectedVersion == 0 {
		query := `
			INSERT INTO game_ledgers (game_id, entries, version, updated_at)
			VALUES ($1, $2, 1, NOW())
			ON CONFLICT (game_id) DO NOTHING
		`
		tag, err := s.pool.Exec(ctx, query, gameID, data)
		if err != nil {
			return fmt.Errorf("%w: inserting ledger: %v", domain.ErrStorage, err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrConflict
		}
		return nil
	}

	query := `
		UPDATE game_ledgers
		SET entries = $1, version = version + 1, updated_at = NOW()
		WHERE game_id = $2 AND version = $3
	`
	tag, err := s.pool.Exec(ctx, query, data, gameID, expectedVersion)
	if err != nil {
		return fmt.Errorf("%w: updating ledger: %v", domain.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}
