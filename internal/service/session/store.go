package session

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"surge-service/internal/metrics"
	appErr "surge-service/pkg/errors"
	"surge-service/pkg/logger"
	"surge-service/pkg/protocol"

	"go.uber.org/zap"
)

// Broadcaster resolves a player identity to its live connection and sends.
type Broadcaster interface {
	SendTo(playerID string, msg protocol.Message) error
}

type Config struct {
	FinishedGrace  time.Duration
	TurnBasedGames []string
}

func DefaultConfig() Config {
	return Config{
		FinishedGrace:  30 * time.Second,
		TurnBasedGames: []string{"number-memory"},
	}
}

type stopper interface {
	Stop() bool
}

// Store owns every live session. The map is guarded by mu; each session's
// state is guarded by its own lock, so sessions never contend with each other.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	out       Broadcaster
	cfg       Config
	turnBased map[string]bool
	onFinish  []func(Result)

	now       func() time.Time
	afterFunc func(time.Duration, func()) stopper
}

func NewStore(out Broadcaster, cfg Config) *Store {
	turnBased := make(map[string]bool, len(cfg.TurnBasedGames))
	for _, g := range cfg.TurnBasedGames {
		turnBased[g] = true
	}
	return &Store{
		sessions:  make(map[string]*Session),
		out:       out,
		cfg:       cfg,
		turnBased: turnBased,
		now:       time.Now,
		afterFunc: func(d time.Duration, f func()) stopper { return time.AfterFunc(d, f) },
	}
}

// OnFinish registers a hook that receives the final result of every session.
// Hooks run on their own goroutine and never hold session locks.
func (s *Store) OnFinish(fn func(Result)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFinish = append(s.onFinish, fn)
}

func (s *Store) ModeFor(gameType string) Mode {
	if s.turnBased[gameType] {
		return ModeTurnBased
	}
	return ModeSimultaneous
}

// Create opens a session for a pairing. Both player slots are always filled.
func (s *Store) Create(p Pairing) error {
	if p.MatchID == "" || p.Player1 == "" || p.Player2 == "" {
		return fmt.Errorf("%w: pairing needs a match id and two players", appErr.ErrMalformedMessage)
	}
	if p.Player1 == p.Player2 {
		return fmt.Errorf("%w: a player cannot be paired with itself", appErr.ErrMalformedMessage)
	}

	sess := newSession(p, s.ModeFor(p.GameType), s.now())

	s.mu.Lock()
	if _, exists := s.sessions[p.MatchID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: match %s already exists", appErr.ErrInvalidState, p.MatchID)
	}
	s.sessions[p.MatchID] = sess
	count := len(s.sessions)
	s.mu.Unlock()

	metrics.ActiveSessions.Set(float64(count))
	logger.Log.Info("session created",
		zap.String("matchID", p.MatchID),
		zap.String("gameType", p.GameType),
		zap.String("stake", p.Stake),
		zap.String("player1", p.Player1),
		zap.String("player2", p.Player2),
		zap.String("mode", string(sess.mode)),
	)
	return nil
}

func (s *Store) lookup(matchID string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[matchID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", appErr.ErrSessionNotFound, matchID)
	}
	return sess, nil
}

// withSession runs fn under the session lock, after the not-found and
// membership checks every operation shares.
func (s *Store) withSession(matchID, playerID string, fn func(sess *Session, idx int) error) error {
	sess, err := s.lookup(matchID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.evicted {
		return fmt.Errorf("%w: %s", appErr.ErrSessionNotFound, matchID)
	}
	idx, err := sess.slotLocked(playerID)
	if err != nil {
		return err
	}
	return fn(sess, idx)
}

// MarkReady flags playerID ready. Once both are ready the session starts and
// GAME_START goes to both players.
func (s *Store) MarkReady(matchID, playerID string) error {
	return s.withSession(matchID, playerID, func(sess *Session, idx int) error {
		if err := sess.requireStatusLocked(StatusWaitingForReady); err != nil {
			return err
		}
		sess.slots[idx].Ready = true
		if !sess.slots[0].Ready || !sess.slots[1].Ready {
			return nil
		}

		sess.status = StatusInProgress
		if sess.mode == ModeTurnBased {
			sess.setCurrentLocked(0)
		} else {
			sess.setCurrentLocked(-1)
		}
		seq := sess.nextSeqLocked()
		sess.broadcastLocked(s.out, protocol.Message{
			Type: protocol.TypeGameStart,
			Payload: protocol.GameStartPayload{
				MatchID:       sess.matchID,
				GameType:      sess.gameType,
				Stake:         sess.stake,
				Player1:       sess.slots[0].PlayerID,
				Player2:       sess.slots[1].PlayerID,
				CurrentPlayer: copyString(sess.currentPlayer),
				GameData:      sess.gameData,
				Seq:           seq,
			},
		})
		logger.Log.Info("session started",
			zap.String("matchID", sess.matchID),
			zap.Int64("seq", seq),
		)
		return nil
	})
}

// SubmitTurn records a turn. Turn-based games require playerID to hold the
// turn and pass it to the other slot; data replaces the shared game data.
func (s *Store) SubmitTurn(matchID, playerID string, data json.RawMessage) error {
	return s.withSession(matchID, playerID, func(sess *Session, idx int) error {
		if err := sess.requireStatusLocked(StatusInProgress); err != nil {
			return err
		}
		if sess.mode == ModeTurnBased {
			if sess.currentIdxLocked() != idx {
				return fmt.Errorf("%w: %s", appErr.ErrNotYourTurn, playerID)
			}
			sess.setCurrentLocked(1 - idx)
		}
		sess.replaceGameDataLocked(data)

		seq := sess.nextSeqLocked()
		sess.broadcastLocked(s.out, protocol.Message{
			Type: protocol.TypeTurnChange,
			Payload: protocol.TurnChangePayload{
				MatchID:       sess.matchID,
				CurrentPlayer: copyString(sess.currentPlayer),
				GameData:      sess.gameData,
				Seq:           seq,
			},
		})
		return nil
	})
}

// UpdateScore sets playerID's score. Either player may report at any time
// while the session is in progress.
func (s *Store) UpdateScore(matchID, playerID string, score int, gameData json.RawMessage) error {
	return s.withSession(matchID, playerID, func(sess *Session, idx int) error {
		if err := sess.requireStatusLocked(StatusInProgress); err != nil {
			return err
		}
		v := score
		sess.slots[idx].Score = &v
		sess.replaceGameDataLocked(gameData)

		seq := sess.nextSeqLocked()
		sess.broadcastLocked(s.out, protocol.Message{
			Type: protocol.TypeScoreUpdate,
			Payload: protocol.ScoreUpdatePayload{
				MatchID:      sess.matchID,
				Player1Score: copyInt(sess.slots[0].Score),
				Player2Score: copyInt(sess.slots[1].Score),
				GameData:     sess.gameData,
				Seq:          seq,
			},
		})
		return nil
	})
}

// DeclareGameOver finishes the session, broadcasts the final scores and
// schedules eviction. A nil or empty winner is derived from the scores.
func (s *Store) DeclareGameOver(matchID, playerID string, winner *string, gameData json.RawMessage) error {
	var result Result
	err := s.withSession(matchID, playerID, func(sess *Session, _ int) error {
		if err := sess.requireStatusLocked(StatusInProgress); err != nil {
			return err
		}
		if err := sess.settleOutcomeLocked(winner); err != nil {
			return err
		}
		sess.status = StatusFinished
		sess.endTime = s.now()
		sess.setCurrentLocked(-1)
		sess.replaceGameDataLocked(gameData)

		seq := sess.nextSeqLocked()
		sess.broadcastLocked(s.out, protocol.Message{
			Type: protocol.TypeGameOver,
			Payload: protocol.GameOverPayload{
				MatchID:      sess.matchID,
				Winner:       copyString(sess.winner),
				Draw:         sess.draw,
				Status:       string(sess.status),
				Player1Score: copyInt(sess.slots[0].Score),
				Player2Score: copyInt(sess.slots[1].Score),
				GameData:     sess.gameData,
				Seq:          seq,
			},
		})

		id := sess.matchID
		sess.evictTimer = s.afterFunc(s.cfg.FinishedGrace, func() { s.Evict(id) })
		result = sess.resultLocked()

		winnerField := "draw"
		if sess.winner != nil {
			winnerField = *sess.winner
		}
		logger.Log.Info("session finished",
			zap.String("matchID", sess.matchID),
			zap.String("winner", winnerField),
			zap.Int64("seq", seq),
		)
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.RLock()
	hooks := append([]func(Result){}, s.onFinish...)
	s.mu.RUnlock()
	for _, fn := range hooks {
		go fn(result)
	}
	return nil
}

// Evict drops a session from the store. It reports false for unknown ids.
func (s *Store) Evict(matchID string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[matchID]
	if ok {
		delete(s.sessions, matchID)
	}
	count := len(s.sessions)
	s.mu.Unlock()
	if !ok {
		return false
	}

	sess.mu.Lock()
	sess.evicted = true
	if sess.evictTimer != nil {
		sess.evictTimer.Stop()
		sess.evictTimer = nil
	}
	sess.mu.Unlock()

	metrics.ActiveSessions.Set(float64(count))
	logger.Log.Info("session evicted", zap.String("matchID", matchID))
	return true
}

func (s *Store) Get(matchID string) (Snapshot, error) {
	sess, err := s.lookup(matchID)
	if err != nil {
		return Snapshot{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshotLocked(), nil
}

// Health lists a summary of every held session, oldest first.
func (s *Store) Health() []Summary {
	s.mu.RLock()
	all := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	s.mu.RUnlock()

	type row struct {
		created time.Time
		summary Summary
	}
	rows := make([]row, 0, len(all))
	for _, sess := range all {
		sess.mu.Lock()
		rows = append(rows, row{created: sess.createdAt, summary: sess.summaryLocked()})
		sess.mu.Unlock()
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].created.Equal(rows[j].created) {
			return rows[i].summary.MatchID < rows[j].summary.MatchID
		}
		return rows[i].created.Before(rows[j].created)
	})

	out := make([]Summary, len(rows))
	for i, r := range rows {
		out[i] = r.summary
	}
	return out
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
