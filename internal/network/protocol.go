package network

import (
	"tcr-arena/internal/game"
	"tcr-arena/internal/models"
)

// Client to server message types.
const (
	MsgIdentify  = "identify"
	MsgJoinQueue = "join_queue"
	MsgPlayCard  = "play_card"
)

// Server to client message types.
const (
	MsgGameStart    = "game_start"
	MsgGameState    = "game_state"
	MsgGameEnd      = "game_end"
	MsgIdentified   = "identified"
	MsgQueued       = "queued"
	MsgPlayRejected = "play_rejected"
	MsgQueueTimeout = "queue_timeout"
	MsgError        = "error"
)

// Envelope is a decoded frame whose payload has not been unpacked yet.
type Envelope struct {
	Type    string
	Payload []byte
}

// --- Client to Server (C2S) Messages ---

// IdentifyRequest binds the connection to a previously registered player.
type IdentifyRequest struct {
	PlayerID string `json:"playerId"`
	Password string `json:"password"`
}

// JoinQueueRequest asks for matchmaking. It carries nothing.
type JoinQueueRequest struct{}

// PlayCardRequest asks to spawn a unit.
type PlayCardRequest = models.CardRequest

// --- Server to Client (S2C) Messages ---

// GameStart is sent to each participant once the match is running.
type GameStart struct {
	GameID      string `json:"gameId"`
	PlayerIndex int    `json:"playerIndex"`
}

// GameState is broadcast every tick while the match runs.
type GameState = game.Snapshot

// GameEnd is broadcast once when the match ends.
type GameEnd struct {
	Winner int `json:"winner"`
}

// Identified acknowledges an identify request.
type Identified struct {
	PlayerID string `json:"playerId"`
}

// Queued acknowledges a join_queue request.
type Queued struct {
	Position int `json:"position"` // 1-based place in the waiting list
}

// PlayRejected tells a participant their card was not played.
type PlayRejected struct {
	UnitType string `json:"unitType"`
	Reason   string `json:"reason"`
}

// QueueTimeout tells a waiting connection it was dropped from matchmaking.
type QueueTimeout struct {
	WaitedSeconds float64 `json:"waitedSeconds"`
}

// ErrorMessage reports a refused request.
type ErrorMessage struct {
	Message string `json:"message"`
}
