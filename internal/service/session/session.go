package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"surge-service/internal/metrics"
	appErr "surge-service/pkg/errors"
	"surge-service/pkg/logger"
	"surge-service/pkg/protocol"

	"go.uber.org/zap"
)

// Session is the authoritative state of one match. Every mutation runs under
// mu, and broadcasts for a change go out to both slots before mu is released.
type Session struct {
	matchID  string
	gameType string
	stake    string
	mode     Mode

	slots         [2]Slot
	status        Status
	currentPlayer *string
	gameData      json.RawMessage
	seq           int64
	winner        *string
	draw          bool

	createdAt time.Time
	startTime time.Time
	endTime   time.Time

	evicted    bool
	evictTimer stopper

	mu sync.Mutex
}

func newSession(p Pairing, mode Mode, now time.Time) *Session {
	return &Session{
		matchID:  p.MatchID,
		gameType: p.GameType,
		stake:    p.Stake,
		mode:     mode,
		slots: [2]Slot{
			{PlayerID: p.Player1},
			{PlayerID: p.Player2},
		},
		status:    StatusWaitingForReady,
		gameData:  emptyGameData,
		createdAt: now,
		startTime: p.StartTime,
	}
}

func (s *Session) slotLocked(playerID string) (int, error) {
	for i := range s.slots {
		if s.slots[i].PlayerID == playerID {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s is not in %s", appErr.ErrPlayerNotInSession, playerID, s.matchID)
}

func (s *Session) requireStatusLocked(want Status) error {
	if s.status != want {
		return fmt.Errorf("%w: session %s is %s", appErr.ErrInvalidState, s.matchID, s.status)
	}
	return nil
}

func (s *Session) nextSeqLocked() int64 {
	s.seq++
	return s.seq
}

func (s *Session) setCurrentLocked(idx int) {
	for i := range s.slots {
		s.slots[i].CurrentTurn = i == idx
	}
	if idx < 0 {
		s.currentPlayer = nil
		return
	}
	p := s.slots[idx].PlayerID
	s.currentPlayer = &p
}

func (s *Session) currentIdxLocked() int {
	for i := range s.slots {
		if s.slots[i].CurrentTurn {
			return i
		}
	}
	return -1
}

func (s *Session) replaceGameDataLocked(data json.RawMessage) {
	if len(data) == 0 || string(data) == "null" {
		return
	}
	s.gameData = append(json.RawMessage(nil), data...)
}

// settleOutcomeLocked fills winner/draw. A supplied winner must be one of the
// two players; otherwise the higher score wins and equal scores are a draw.
func (s *Session) settleOutcomeLocked(winner *string) error {
	if winner != nil && *winner != "" {
		if _, err := s.slotLocked(*winner); err != nil {
			return fmt.Errorf("%w: %s", appErr.ErrInvalidWinner, *winner)
		}
		w := *winner
		s.winner = &w
		s.draw = false
		return nil
	}

	p1, p2 := scoreOf(s.slots[0].Score), scoreOf(s.slots[1].Score)
	switch {
	case p1 > p2:
		w := s.slots[0].PlayerID
		s.winner = &w
	case p2 > p1:
		w := s.slots[1].PlayerID
		s.winner = &w
	default:
		s.winner = nil
		s.draw = true
	}
	return nil
}

func scoreOf(v *int) int {
	if v == nil {
		return -1
	}
	return *v
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		MatchID:       s.matchID,
		GameType:      s.gameType,
		Stake:         s.stake,
		Mode:          s.mode,
		Status:        s.status,
		Player1:       s.slots[0],
		Player2:       s.slots[1],
		CurrentPlayer: copyString(s.currentPlayer),
		GameData:      append(json.RawMessage(nil), s.gameData...),
		Seq:           s.seq,
		Winner:        copyString(s.winner),
		Draw:          s.draw,
		CreatedAt:     s.createdAt,
		StartTime:     s.startTime,
	}
	snap.Player1.Score = copyInt(s.slots[0].Score)
	snap.Player2.Score = copyInt(s.slots[1].Score)
	if !s.endTime.IsZero() {
		end := s.endTime
		snap.EndTime = &end
	}
	return snap
}

func (s *Session) summaryLocked() Summary {
	return Summary{
		MatchID:       s.matchID,
		GameType:      s.gameType,
		Status:        s.status,
		Player1:       s.slots[0].PlayerID,
		Player2:       s.slots[1].PlayerID,
		CurrentPlayer: copyString(s.currentPlayer),
	}
}

func (s *Session) resultLocked() Result {
	return Result{
		MatchID:      s.matchID,
		GameType:     s.gameType,
		Stake:        s.stake,
		Player1:      s.slots[0].PlayerID,
		Player2:      s.slots[1].PlayerID,
		Player1Score: copyInt(s.slots[0].Score),
		Player2Score: copyInt(s.slots[1].Score),
		Winner:       copyString(s.winner),
		Draw:         s.draw,
		EndedAt:      s.endTime,
	}
}

// broadcastLocked sends msg to both players back to back. Delivery failures
// are logged and swallowed so one gone peer never fails the other.
func (s *Session) broadcastLocked(out Broadcaster, msg protocol.Message) {
	metrics.Broadcasts.WithLabelValues(string(msg.Type)).Inc()
	for _, slot := range s.slots {
		if err := out.SendTo(slot.PlayerID, msg); err != nil {
			logger.Log.Info("broadcast delivery failed",
				zap.String("matchID", s.matchID),
				zap.String("player", slot.PlayerID),
				zap.String("type", string(msg.Type)),
				zap.Int64("seq", s.seq),
				zap.Error(err),
			)
		}
	}
}
