package settle

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"surge-service/internal/metrics"
	"surge-service/internal/model"
	"surge-service/internal/service/session"
	appErr "surge-service/pkg/errors"
	"surge-service/pkg/logger"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrStopped = errors.New("settlement dispatcher stopped")

type Config struct {
	Workers   int
	QueueSize int
	Retry     RetryPolicy
	Confirm   RetryPolicy
}

func DefaultConfig() Config {
	return Config{
		Workers:   4,
		QueueSize: 256,
		Retry:     RetryPolicy{MaxAttempts: 5, InitialDelay: 2 * time.Second, MaxDelay: 30 * time.Second, Multiplier: 2},
		Confirm:   RetryPolicy{MaxAttempts: 15, InitialDelay: 2 * time.Second, MaxDelay: 2 * time.Second, Multiplier: 1},
	}
}

// Service hands finished matches to the Bridge off the session path. Each
// handoff is a ledger row; oracle writes are serialized through writeMu so
// the backend wallet never has two transactions in flight.
type Service struct {
	db     *gorm.DB
	bridge Bridge
	cfg    Config

	queue chan string

	mu       sync.Mutex
	inflight map[string]struct{}
	stopped  bool

	writeMu sync.Mutex
	wg      conc.WaitGroup
	cancel  context.CancelFunc
	now     func() time.Time
}

func NewService(db *gorm.DB, bridge Bridge, cfg Config) *Service {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	return &Service{
		db:       db,
		bridge:   bridge,
		cfg:      cfg,
		queue:    make(chan string, cfg.QueueSize),
		inflight: make(map[string]struct{}),
		now:      time.Now,
	}
}

// Start launches the workers and re-queues handoffs a previous run left open.
func (s *Service) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Go(func() { s.work(ctx) })
	}
	_, err := s.ResumeOpen(ctx)
	return err
}

// Stop cancels in-flight work and waits for the workers to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.queue)
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Enqueue records a finished match and schedules its settlement. The row is
// written before returning, so a full queue only delays the work until the
// next ResumeOpen.
func (s *Service) Enqueue(ctx context.Context, res session.Result) error {
	row := model.Settlement{
		MatchID:      res.MatchID,
		GameType:     res.GameType,
		Stake:        res.Stake,
		Player1:      res.Player1,
		Player2:      res.Player2,
		Player1Score: res.Player1Score,
		Player2Score: res.Player2Score,
		Winner:       res.Winner,
		Draw:         res.Draw,
		Status:       model.SettlementPending,
		TxHashesJSON: datatypes.JSON([]byte("{}")),
		EndedAt:      res.EndedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return errors.Wrapf(err, "record settlement %s", res.MatchID)
	}
	logger.Log.Info("settlement recorded",
		zap.String("matchID", res.MatchID),
		zap.Bool("draw", res.Draw),
	)
	if !s.schedule(res.MatchID) {
		s.mu.Lock()
		stopped := s.stopped
		s.mu.Unlock()
		if stopped {
			return ErrStopped
		}
		logger.Log.Warn("settlement queue full, left pending", zap.String("matchID", res.MatchID))
	}
	return nil
}

func (s *Service) schedule(matchID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	if _, busy := s.inflight[matchID]; busy {
		return true
	}
	select {
	case s.queue <- matchID:
		s.inflight[matchID] = struct{}{}
		return true
	default:
		return false
	}
}

// ResumeOpen re-queues every non-terminal ledger row not already in flight.
func (s *Service) ResumeOpen(ctx context.Context) (int, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&model.Settlement{}).
		Where("status IN ?", []model.SettlementStatus{
			model.SettlementPending,
			model.SettlementSubmitting,
			model.SettlementSubmitted,
		}).
		Order("id").
		Pluck("match_id", &ids).Error
	if err != nil {
		return 0, errors.Wrap(err, "list open settlements")
	}
	queued := 0
	for _, id := range ids {
		if s.schedule(id) {
			queued++
		}
	}
	if queued > 0 {
		logger.Log.Info("resumed open settlements", zap.Int("count", queued))
	}
	return queued, nil
}

func (s *Service) Get(ctx context.Context, matchID string) (*model.Settlement, error) {
	var row model.Settlement
	err := s.db.WithContext(ctx).Where("match_id = ?", matchID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, appErr.ErrSettlementNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load settlement %s", matchID)
	}
	return &row, nil
}

func (s *Service) work(ctx context.Context) {
	for matchID := range s.queue {
		if ctx.Err() != nil {
			s.mu.Lock()
			delete(s.inflight, matchID)
			s.mu.Unlock()
			continue
		}
		var pc panics.Catcher
		pc.Try(func() { s.settle(ctx, matchID) })
		if r := pc.Recovered(); r != nil {
			logger.Log.Error("settlement worker panic",
				zap.String("matchID", matchID),
				zap.String("panic", r.String()),
			)
		}
		s.mu.Lock()
		delete(s.inflight, matchID)
		s.mu.Unlock()
	}
}

func (s *Service) settle(ctx context.Context, matchID string) {
	row, err := s.Get(ctx, matchID)
	if err != nil {
		logger.Log.Error("settlement row unavailable", zap.String("matchID", matchID), zap.Error(err))
		return
	}
	if row.Status.Terminal() {
		return
	}

	hashes := map[string]string{}
	_ = json.Unmarshal(row.TxHashesJSON, &hashes)
	attempts := row.Attempts

	if row.Status != model.SettlementSubmitted {
		s.update(ctx, row.MatchID, map[string]interface{}{"status": model.SettlementSubmitting})

		for _, p := range []struct {
			addr  string
			score *int
		}{{row.Player1, row.Player1Score}, {row.Player2, row.Player2Score}} {
			key := "submitScore:" + p.addr
			if hashes[key] != "" {
				continue
			}
			score := 0
			if p.score != nil {
				score = *p.score
			}
			n, tx, err := s.write(ctx, "submit_score", func(ctx context.Context) (TxHandle, error) {
				return s.bridge.SubmitScore(ctx, row.MatchID, p.addr, score)
			})
			attempts += n
			if err != nil {
				s.fail(ctx, row, attempts, hashes, err)
				return
			}
			hashes[key] = tx.Hash
		}

		req := DeclareWinnerRequest{
			MatchID: row.MatchID,
			Draw:    row.Draw,
			Player1: row.Player1,
			Player2: row.Player2,
		}
		if row.Winner != nil {
			req.Winner = *row.Winner
		}
		if row.Player1Score != nil {
			req.Player1Score = *row.Player1Score
		}
		if row.Player2Score != nil {
			req.Player2Score = *row.Player2Score
		}
		n, tx, err := s.write(ctx, "declare_winner", func(ctx context.Context) (TxHandle, error) {
			return s.bridge.DeclareWinner(ctx, req)
		})
		attempts += n
		if err != nil {
			s.fail(ctx, row, attempts, hashes, err)
			return
		}
		hashes["declareWinner"] = tx.Hash

		s.update(ctx, row.MatchID, map[string]interface{}{
			"status":         model.SettlementSubmitted,
			"attempts":       attempts,
			"tx_hashes_json": encodeJSON(hashes),
			"last_error":     "",
		})
		logger.Log.Info("settlement submitted", zap.String("matchID", row.MatchID), zap.Int("attempts", attempts))
	}

	s.reconcile(ctx, row)
}

// write runs one oracle write under the retry policy. Each attempt holds
// writeMu; the backoff between attempts does not.
func (s *Service) write(ctx context.Context, op string, call func(ctx context.Context) (TxHandle, error)) (int, TxHandle, error) {
	var tx TxHandle
	n, err := s.cfg.Retry.Do(ctx, func(ctx context.Context, attempt int) error {
		s.writeMu.Lock()
		handle, err := call(ctx)
		s.writeMu.Unlock()
		if err != nil {
			metrics.SettlementAttempts.WithLabelValues(op, "error").Inc()
			logger.Log.Warn("settlement write failed",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Bool("permanent", IsPermanent(err)),
				zap.Error(err),
			)
			return err
		}
		metrics.SettlementAttempts.WithLabelValues(op, "ok").Inc()
		tx = handle
		return nil
	})
	return n, tx, err
}

// reconcile polls the chain until the match reaches a final state and
// compares it with the recorded outcome.
func (s *Service) reconcile(ctx context.Context, row *model.Settlement) {
	var state MatchState
	_, err := s.cfg.Confirm.Do(ctx, func(ctx context.Context, attempt int) error {
		st, err := s.bridge.GetMatchOnChainStatus(ctx, row.MatchID)
		if err != nil {
			metrics.SettlementAttempts.WithLabelValues("match_status", "error").Inc()
			return err
		}
		metrics.SettlementAttempts.WithLabelValues("match_status", "ok").Inc()
		state = st
		switch st.Status {
		case OnChainCompleted, OnChainDraw, OnChainCancelled:
			return nil
		}
		return ErrNotYet
	})

	fields := map[string]interface{}{}
	if state.Status != "" {
		fields["on_chain_json"] = encodeJSON(state)
	}

	var status model.SettlementStatus
	switch {
	case err == nil && matchesOutcome(row, state):
		status = model.SettlementConfirmed
	case err == nil:
		status = model.SettlementDisputed
		fields["last_error"] = "on-chain outcome differs: " + string(state.Status) + " " + state.Winner
	case ctx.Err() != nil:
		// shutting down; the row stays Submitted and is resumed next start
		return
	case IsPermanent(err):
		status = model.SettlementFailed
		fields["last_error"] = truncate(err.Error())
	default:
		status = model.SettlementTimedOut
		fields["last_error"] = truncate(err.Error())
	}
	s.finish(ctx, row, status, fields)
}

func matchesOutcome(row *model.Settlement, state MatchState) bool {
	if row.Draw {
		return state.Status == OnChainDraw
	}
	return state.Status == OnChainCompleted && row.Winner != nil && strings.EqualFold(state.Winner, *row.Winner)
}

func (s *Service) fail(ctx context.Context, row *model.Settlement, attempts int, hashes map[string]string, err error) {
	if ctx.Err() != nil {
		s.update(context.Background(), row.MatchID, map[string]interface{}{
			"attempts":       attempts,
			"tx_hashes_json": encodeJSON(hashes),
		})
		return
	}
	s.finish(ctx, row, model.SettlementFailed, map[string]interface{}{
		"attempts":       attempts,
		"tx_hashes_json": encodeJSON(hashes),
		"last_error":     truncate(err.Error()),
	})
}

func (s *Service) finish(ctx context.Context, row *model.Settlement, status model.SettlementStatus, fields map[string]interface{}) {
	now := s.now()
	fields["status"] = status
	fields["settled_at"] = now
	s.update(ctx, row.MatchID, fields)

	metrics.SettlementDuration.WithLabelValues(string(status)).Observe(now.Sub(row.CreatedAt).Seconds())
	logger.Log.Info("settlement finished",
		zap.String("matchID", row.MatchID),
		zap.String("status", string(status)),
	)
}

func (s *Service) update(ctx context.Context, matchID string, fields map[string]interface{}) {
	err := s.db.WithContext(ctx).Model(&model.Settlement{}).
		Where("match_id = ?", matchID).
		Updates(fields).Error
	if err != nil {
		logger.Log.Error("failed to update settlement", zap.String("matchID", matchID), zap.Error(err))
	}
}

func encodeJSON(v interface{}) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(raw)
}

func truncate(msg string) string {
	if len(msg) > 512 {
		return msg[:512]
	}
	return msg
}
