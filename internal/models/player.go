package models

import "time"

// PlayerAccount holds information about a player that persists between sessions.
type PlayerAccount struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	HashedPassword string `json:"hashed_password"` // bcrypted
	Trophies       int    `json:"trophies"`
}

// MatchRecord is the persisted outcome of one match.
type MatchRecord struct {
	ID         string     `json:"id"`
	Player1ID  string     `json:"player1_id"`
	Player2ID  string     `json:"player2_id"`
	WinnerID   string     `json:"winner_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// MatchRef identifies a match record either by ID or, when the ID is unknown, by its
// participants. A participant match only hits records that have no winner yet.
type MatchRef struct {
	ID        string
	Player1ID string
	Player2ID string
}
