package session

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusWaitingForReady Status = "waiting_for_ready"
	StatusInProgress      Status = "in_progress"
	StatusFinished        Status = "finished"
)

// Mode decides whether turns are enforced.
type Mode string

const (
	ModeTurnBased    Mode = "turn_based"
	ModeSimultaneous Mode = "simultaneous"
)

var emptyGameData = json.RawMessage(`{}`)

// Pairing is what the matchmaking queue hands over to open a session.
type Pairing struct {
	MatchID   string
	GameType  string
	Stake     string
	Player1   string
	Player2   string
	StartTime time.Time
}

type Slot struct {
	PlayerID    string `json:"playerId"`
	Score       *int   `json:"score"`
	Ready       bool   `json:"ready"`
	CurrentTurn bool   `json:"currentTurn"`
}

// Snapshot is a copy of a session's state, safe to hold after the lock is
// released.
type Snapshot struct {
	MatchID       string          `json:"matchId"`
	GameType      string          `json:"gameType"`
	Stake         string          `json:"stake"`
	Mode          Mode            `json:"mode"`
	Status        Status          `json:"status"`
	Player1       Slot            `json:"player1"`
	Player2       Slot            `json:"player2"`
	CurrentPlayer *string         `json:"currentPlayer"`
	GameData      json.RawMessage `json:"gameData"`
	Seq           int64           `json:"seq"`
	Winner        *string         `json:"winner"`
	Draw          bool            `json:"draw"`
	CreatedAt     time.Time       `json:"createdAt"`
	StartTime     time.Time       `json:"startTime"`
	EndTime       *time.Time      `json:"endTime,omitempty"`
}

// Summary is the health-endpoint view of a session.
type Summary struct {
	MatchID       string  `json:"matchId"`
	GameType      string  `json:"gameType"`
	Status        Status  `json:"status"`
	Player1       string  `json:"player1"`
	Player2       string  `json:"player2"`
	CurrentPlayer *string `json:"currentPlayer"`
}

// Result is the final outcome handed to settlement once a session finishes.
// Winner is nil exactly when Draw is true.
type Result struct {
	MatchID      string    `json:"matchId"`
	GameType     string    `json:"gameType"`
	Stake        string    `json:"stake"`
	Player1      string    `json:"player1"`
	Player2      string    `json:"player2"`
	Player1Score *int      `json:"player1Score"`
	Player2Score *int      `json:"player2Score"`
	Winner       *string   `json:"winner"`
	Draw         bool      `json:"draw"`
	EndedAt      time.Time `json:"endedAt"`
}

func NewMatchID() string {
	return "match_" + uuid.NewString()
}
