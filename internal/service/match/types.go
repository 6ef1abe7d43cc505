package match

import (
	"time"

	"surge-service/internal/service/registry"
)

// QueueKey is the pairing bucket: only players with the same game type and
// stake are paired.
type QueueKey struct {
	GameType string
	Stake    string
}

func (k QueueKey) String() string {
	return k.GameType + "_" + k.Stake
}

type JoinQueueRequest struct {
	PlayerID string
	GameType string
	Stake    string
	Conn     registry.Conn
}

type JoinStatus string

const (
	JoinStatusQueued    JoinStatus = "queued"
	JoinStatusRefreshed JoinStatus = "refreshed"
	JoinStatusMatched   JoinStatus = "matched"
)

type JoinResult struct {
	Status  JoinStatus
	MatchID string
}

type waitingEntry struct {
	PlayerID string
	Key      QueueKey
	Conn     registry.Conn
	JoinedAt time.Time
}

// QueueSummary is the health view of one non-empty queue.
type QueueSummary struct {
	Key      string `json:"key"`
	GameType string `json:"gameType"`
	Stake    string `json:"stake"`
	Players  int    `json:"players"`
}

type Stats struct {
	ActiveQueues int            `json:"activeQueues"`
	TotalPlayers int            `json:"totalPlayers"`
	Queues       []QueueSummary `json:"queues"`
}
