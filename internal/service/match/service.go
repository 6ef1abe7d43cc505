package match

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"surge-service/internal/metrics"
	"surge-service/internal/service/registry"
	"surge-service/internal/service/session"
	appErr "surge-service/pkg/errors"
	"surge-service/pkg/logger"
	"surge-service/pkg/protocol"

	"go.uber.org/zap"
)

// SessionOpener creates the match session for a fresh pairing.
type SessionOpener interface {
	Create(p session.Pairing) error
}

type Config struct {
	StartDelay time.Duration
	StaleAfter time.Duration
}

func DefaultConfig() Config {
	return Config{
		StartDelay: 3 * time.Second,
		StaleAfter: 5 * time.Minute,
	}
}

// Service pairs waiting players FIFO per queue key. All queue mutation runs
// under mu, which keeps pairing order correct under concurrent joins.
type Service struct {
	mu     sync.Mutex
	queues map[QueueKey][]*waitingEntry

	sessions SessionOpener
	cfg      Config
	now      func() time.Time
	newID    func() string
}

func NewService(sessions SessionOpener, cfg Config) *Service {
	return &Service{
		queues:   make(map[QueueKey][]*waitingEntry),
		sessions: sessions,
		cfg:      cfg,
		now:      time.Now,
		newID:    session.NewMatchID,
	}
}

// JoinQueue enqueues a player and pairs eagerly. Joining again under the
// same key only refreshes the stored connection.
func (s *Service) JoinQueue(req JoinQueueRequest) (JoinResult, error) {
	req.PlayerID = strings.TrimSpace(req.PlayerID)
	req.GameType = strings.TrimSpace(req.GameType)
	req.Stake = strings.TrimSpace(req.Stake)
	if req.PlayerID == "" || req.GameType == "" || req.Stake == "" || req.Conn == nil {
		return JoinResult{}, fmt.Errorf("%w: playerAddress, gameType and stake are required", appErr.ErrMalformedMessage)
	}
	key := QueueKey{GameType: req.GameType, Stake: req.Stake}

	s.mu.Lock()
	queue := s.queues[key]
	for _, e := range queue {
		if e.PlayerID == req.PlayerID {
			e.Conn = req.Conn
			s.mu.Unlock()
			logger.Log.Info("player reconnected to queue",
				zap.String("player", req.PlayerID),
				zap.String("queue", key.String()),
			)
			return JoinResult{Status: JoinStatusRefreshed}, nil
		}
	}

	s.queues[key] = append(queue, &waitingEntry{
		PlayerID: req.PlayerID,
		Key:      key,
		Conn:     req.Conn,
		JoinedAt: s.now(),
	})
	logger.Log.Info("player joined queue",
		zap.String("player", req.PlayerID),
		zap.String("queue", key.String()),
		zap.Int("queueSize", len(s.queues[key])),
	)
	pairs := s.popPairsLocked(key)
	s.refreshGaugeLocked()
	s.mu.Unlock()

	result := JoinResult{Status: JoinStatusQueued}
	for _, pair := range pairs {
		matchID, err := s.openMatch(pair[0], pair[1])
		if err != nil {
			return JoinResult{}, err
		}
		if pair[0].PlayerID == req.PlayerID || pair[1].PlayerID == req.PlayerID {
			result = JoinResult{Status: JoinStatusMatched, MatchID: matchID}
		}
	}
	return result, nil
}

// popPairsLocked takes the two oldest entries while at least two wait.
func (s *Service) popPairsLocked(key QueueKey) [][2]*waitingEntry {
	var pairs [][2]*waitingEntry
	queue := s.queues[key]
	for len(queue) >= 2 {
		pairs = append(pairs, [2]*waitingEntry{queue[0], queue[1]})
		queue = queue[2:]
	}
	if len(queue) == 0 {
		delete(s.queues, key)
	} else {
		s.queues[key] = queue
	}
	return pairs
}

func (s *Service) openMatch(first, second *waitingEntry) (string, error) {
	pairing := session.Pairing{
		MatchID:   s.newID(),
		GameType:  first.Key.GameType,
		Stake:     first.Key.Stake,
		Player1:   first.PlayerID,
		Player2:   second.PlayerID,
		StartTime: s.now().Add(s.cfg.StartDelay),
	}
	if err := s.sessions.Create(pairing); err != nil {
		logger.Log.Error("failed to open session for pairing",
			zap.String("player1", first.PlayerID),
			zap.String("player2", second.PlayerID),
			zap.Error(err),
		)
		return "", err
	}
	metrics.Pairings.Inc()

	msg := protocol.Message{
		Type: protocol.TypeMatchFound,
		Payload: protocol.MatchFoundPayload{
			Player1:       pairing.Player1,
			Player2:       pairing.Player2,
			GameType:      pairing.GameType,
			Stake:         pairing.Stake,
			MatchID:       pairing.MatchID,
			GameStartTime: pairing.StartTime.UnixMilli(),
		},
	}
	for _, e := range []*waitingEntry{first, second} {
		if err := e.Conn.Send(msg); err != nil {
			logger.Log.Info("match found not delivered",
				zap.String("player", e.PlayerID),
				zap.String("matchID", pairing.MatchID),
				zap.Error(err),
			)
		}
	}

	logger.Log.Info("match found",
		zap.String("matchID", pairing.MatchID),
		zap.String("player1", pairing.Player1),
		zap.String("player2", pairing.Player2),
		zap.Time("gameStartTime", pairing.StartTime),
	)
	return pairing.MatchID, nil
}

// LeaveByPlayer removes playerID from every queue.
func (s *Service) LeaveByPlayer(playerID string, reason string) int {
	return s.removeWhere(reason, func(e *waitingEntry) bool { return e.PlayerID == playerID })
}

// LeaveByConn removes every entry whose connection is c.
func (s *Service) LeaveByConn(c registry.Conn, reason string) int {
	id := c.ID()
	return s.removeWhere(reason, func(e *waitingEntry) bool { return e.Conn != nil && e.Conn.ID() == id })
}

// SweepStale evicts entries that waited longer than StaleAfter.
func (s *Service) SweepStale() int {
	if s.cfg.StaleAfter <= 0 {
		return 0
	}
	deadline := s.now().Add(-s.cfg.StaleAfter)
	return s.removeWhere("timeout", func(e *waitingEntry) bool { return e.JoinedAt.Before(deadline) })
}

func (s *Service) removeWhere(reason string, match func(*waitingEntry) bool) int {
	if reason == "" {
		reason = "user"
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, queue := range s.queues {
		kept := queue[:0]
		for _, e := range queue {
			if match(e) {
				removed++
				logger.Log.Info("queue entry removed",
					zap.String("player", e.PlayerID),
					zap.String("queue", key.String()),
					zap.String("reason", reason),
				)
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(s.queues, key)
		} else {
			s.queues[key] = kept
		}
	}
	if removed > 0 {
		s.refreshGaugeLocked()
	}
	return removed
}

func (s *Service) refreshGaugeLocked() {
	total := 0
	for _, q := range s.queues {
		total += len(q)
	}
	metrics.QueuedPlayers.Set(float64(total))
}

// Waiting returns the player ids queued under key in arrival order.
func (s *Service) Waiting(gameType, stake string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.queues[QueueKey{GameType: gameType, Stake: stake}]
	ids := make([]string, len(queue))
	for i, e := range queue {
		ids[i] = e.PlayerID
	}
	return ids
}

func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{ActiveQueues: len(s.queues), Queues: make([]QueueSummary, 0, len(s.queues))}
	for key, q := range s.queues {
		stats.TotalPlayers += len(q)
		stats.Queues = append(stats.Queues, QueueSummary{
			Key:      key.String(),
			GameType: key.GameType,
			Stake:    key.Stake,
			Players:  len(q),
		})
	}
	sort.Slice(stats.Queues, func(i, j int) bool { return stats.Queues[i].Key < stats.Queues[j].Key })
	return stats
}
