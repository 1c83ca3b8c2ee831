package domain

import "time"

// ScoreEntry represents a single high score on a game's ledger
type ScoreEntry struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Score     float64    `json:"score"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// ScoreSubmission represents a score submission received over HTTP or Kafka
type ScoreSubmission struct {
	GameID string  `json:"game_id"`
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
}

// AdmissionResult is the answer to a pre-flight leaderboard qualification check
type AdmissionResult struct {
	GameID    string  `json:"game_id"`
	Score     float64 `json:"score"`
	Qualifies bool    `json:"qualifies"`
}

// TokenPayload holds the decoded claims of a verified credential
type TokenPayload struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Claims    map[string]interface{}
}
