package settle_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"surge-service/internal/model"
	"surge-service/internal/service/session"
	"surge-service/internal/service/settle"
	"surge-service/internal/service/settle/mocks"
	appErr "surge-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	alice = "0x1111111111111111111111111111111111111111"
	bob   = "0x2222222222222222222222222222222222222222"
)

func newLedger(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Settlement{}))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func fastConfig() settle.Config {
	return settle.Config{
		Workers:   2,
		QueueSize: 8,
		Retry:     settle.RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2},
		Confirm:   settle.RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1},
	}
}

func startService(t *testing.T, db *gorm.DB, bridge settle.Bridge) *settle.Service {
	t.Helper()
	svc := settle.NewService(db, bridge, fastConfig())
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(svc.Stop)
	return svc
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func result(matchID string, p1, p2 int, winner *string) session.Result {
	return session.Result{
		MatchID:      matchID,
		GameType:     "number-memory",
		Stake:        "1",
		Player1:      alice,
		Player2:      bob,
		Player1Score: intPtr(p1),
		Player2Score: intPtr(p2),
		Winner:       winner,
		Draw:         winner == nil,
		EndedAt:      time.Now(),
	}
}

func waitTerminal(t *testing.T, svc *settle.Service, matchID string) *model.Settlement {
	t.Helper()
	var row *model.Settlement
	require.Eventually(t, func() bool {
		r, err := svc.Get(context.Background(), matchID)
		if err != nil {
			return false
		}
		row = r
		return r.Status.Terminal()
	}, 3*time.Second, 5*time.Millisecond)
	return row
}

func TestSettlementConfirmed(t *testing.T) {
	ctrl := gomock.NewController(t)
	bridge := mocks.NewMockBridge(ctrl)
	svc := startService(t, newLedger(t), bridge)

	bridge.EXPECT().SubmitScore(gomock.Any(), "match_1", alice, 5).Return(settle.TxHandle{Hash: "0xs1"}, nil)
	bridge.EXPECT().SubmitScore(gomock.Any(), "match_1", bob, 3).Return(settle.TxHandle{Hash: "0xs2"}, nil)
	bridge.EXPECT().DeclareWinner(gomock.Any(), settle.DeclareWinnerRequest{
		MatchID:      "match_1",
		Winner:       alice,
		Player1:      alice,
		Player2:      bob,
		Player1Score: 5,
		Player2Score: 3,
	}).Return(settle.TxHandle{Hash: "0xdw"}, nil)
	gomock.InOrder(
		bridge.EXPECT().GetMatchOnChainStatus(gomock.Any(), "match_1").Return(settle.MatchState{Status: settle.OnChainActive}, nil),
		bridge.EXPECT().GetMatchOnChainStatus(gomock.Any(), "match_1").Return(settle.MatchState{Status: settle.OnChainCompleted, Winner: alice}, nil),
	)

	require.NoError(t, svc.Enqueue(context.Background(), result("match_1", 5, 3, strPtr(alice))))

	row := waitTerminal(t, svc, "match_1")
	assert.Equal(t, model.SettlementConfirmed, row.Status)
	assert.Equal(t, 3, row.Attempts)
	assert.JSONEq(t, `{"submitScore:`+alice+`":"0xs1","submitScore:`+bob+`":"0xs2","declareWinner":"0xdw"}`, string(row.TxHashesJSON))
	assert.NotNil(t, row.SettledAt)
}

func TestSettlementDrawPassesDrawSignal(t *testing.T) {
	ctrl := gomock.NewController(t)
	bridge := mocks.NewMockBridge(ctrl)
	svc := startService(t, newLedger(t), bridge)

	bridge.EXPECT().SubmitScore(gomock.Any(), "match_draw", gomock.Any(), 4).Return(settle.TxHandle{Hash: "0xs"}, nil).Times(2)
	bridge.EXPECT().DeclareWinner(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req settle.DeclareWinnerRequest) (settle.TxHandle, error) {
			assert.True(t, req.Draw)
			assert.Empty(t, req.Winner)
			return settle.TxHandle{Hash: "0xdw"}, nil
		})
	bridge.EXPECT().GetMatchOnChainStatus(gomock.Any(), "match_draw").Return(settle.MatchState{Status: settle.OnChainDraw}, nil)

	require.NoError(t, svc.Enqueue(context.Background(), result("match_draw", 4, 4, nil)))

	row := waitTerminal(t, svc, "match_draw")
	assert.Equal(t, model.SettlementConfirmed, row.Status)
	assert.True(t, row.Draw)
	assert.Nil(t, row.Winner)
}

func TestSettlementDisputedOnDifferentWinner(t *testing.T) {
	ctrl := gomock.NewController(t)
	bridge := mocks.NewMockBridge(ctrl)
	svc := startService(t, newLedger(t), bridge)

	bridge.EXPECT().SubmitScore(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(settle.TxHandle{}, nil).Times(2)
	bridge.EXPECT().DeclareWinner(gomock.Any(), gomock.Any()).Return(settle.TxHandle{}, nil)
	bridge.EXPECT().GetMatchOnChainStatus(gomock.Any(), gomock.Any()).Return(settle.MatchState{Status: settle.OnChainCompleted, Winner: bob}, nil)

	require.NoError(t, svc.Enqueue(context.Background(), result("match_x", 5, 3, strPtr(alice))))

	row := waitTerminal(t, svc, "match_x")
	assert.Equal(t, model.SettlementDisputed, row.Status)
	assert.Contains(t, row.LastError, bob)
	assert.Contains(t, string(row.OnChainJSON), "Completed")
}

func TestSettlementRetriesTooEarly(t *testing.T) {
	ctrl := gomock.NewController(t)
	bridge := mocks.NewMockBridge(ctrl)
	svc := startService(t, newLedger(t), bridge)

	gomock.InOrder(
		bridge.EXPECT().SubmitScore(gomock.Any(), gomock.Any(), alice, gomock.Any()).Return(settle.TxHandle{}, &settle.StatusError{Code: 425}),
		bridge.EXPECT().SubmitScore(gomock.Any(), gomock.Any(), alice, gomock.Any()).Return(settle.TxHandle{Hash: "0xa"}, nil),
	)
	bridge.EXPECT().SubmitScore(gomock.Any(), gomock.Any(), bob, gomock.Any()).Return(settle.TxHandle{Hash: "0xb"}, nil)
	bridge.EXPECT().DeclareWinner(gomock.Any(), gomock.Any()).Return(settle.TxHandle{Hash: "0xc"}, nil)
	bridge.EXPECT().GetMatchOnChainStatus(gomock.Any(), gomock.Any()).Return(settle.MatchState{Status: settle.OnChainCompleted, Winner: alice}, nil)

	require.NoError(t, svc.Enqueue(context.Background(), result("match_r", 2, 1, strPtr(alice))))

	row := waitTerminal(t, svc, "match_r")
	assert.Equal(t, model.SettlementConfirmed, row.Status)
	assert.Equal(t, 4, row.Attempts)
}

func TestSettlementPermanentFailureStops(t *testing.T) {
	ctrl := gomock.NewController(t)
	bridge := mocks.NewMockBridge(ctrl)
	svc := startService(t, newLedger(t), bridge)

	bridge.EXPECT().SubmitScore(gomock.Any(), gomock.Any(), alice, gomock.Any()).
		Return(settle.TxHandle{}, settle.Permanent(&settle.StatusError{Code: 400, Message: "Match is not Active"})).
		Times(1)

	require.NoError(t, svc.Enqueue(context.Background(), result("match_p", 2, 1, strPtr(alice))))

	row := waitTerminal(t, svc, "match_p")
	assert.Equal(t, model.SettlementFailed, row.Status)
	assert.Equal(t, 1, row.Attempts)
	assert.Contains(t, row.LastError, "Match is not Active")
}

func TestSettlementTimesOutWhenChainNeverSettles(t *testing.T) {
	ctrl := gomock.NewController(t)
	bridge := mocks.NewMockBridge(ctrl)
	svc := startService(t, newLedger(t), bridge)

	bridge.EXPECT().SubmitScore(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(settle.TxHandle{}, nil).Times(2)
	bridge.EXPECT().DeclareWinner(gomock.Any(), gomock.Any()).Return(settle.TxHandle{}, nil)
	bridge.EXPECT().GetMatchOnChainStatus(gomock.Any(), gomock.Any()).Return(settle.MatchState{Status: settle.OnChainActive}, nil).Times(3)

	require.NoError(t, svc.Enqueue(context.Background(), result("match_t", 2, 1, strPtr(alice))))

	row := waitTerminal(t, svc, "match_t")
	assert.Equal(t, model.SettlementTimedOut, row.Status)
}

func TestGetUnknownSettlement(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := startService(t, newLedger(t), mocks.NewMockBridge(ctrl))

	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, appErr.ErrSettlementNotFound)
}

func TestResumeOpenPicksUpPendingRows(t *testing.T) {
	db := newLedger(t)
	require.NoError(t, db.Create(&model.Settlement{
		MatchID:      "match_old",
		Player1:      alice,
		Player2:      bob,
		Player1Score: intPtr(1),
		Player2Score: intPtr(9),
		Winner:       strPtr(bob),
		Status:       model.SettlementPending,
	}).Error)

	ctrl := gomock.NewController(t)
	bridge := mocks.NewMockBridge(ctrl)
	bridge.EXPECT().SubmitScore(gomock.Any(), "match_old", gomock.Any(), gomock.Any()).Return(settle.TxHandle{}, nil).Times(2)
	bridge.EXPECT().DeclareWinner(gomock.Any(), gomock.Any()).Return(settle.TxHandle{}, nil)
	bridge.EXPECT().GetMatchOnChainStatus(gomock.Any(), "match_old").Return(settle.MatchState{Status: settle.OnChainCompleted, Winner: bob}, nil)

	svc := startService(t, db, bridge)

	row := waitTerminal(t, svc, "match_old")
	assert.Equal(t, model.SettlementConfirmed, row.Status)
}

func TestEnqueueAfterStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := settle.NewService(newLedger(t), mocks.NewMockBridge(ctrl), fastConfig())
	require.NoError(t, svc.Start(context.Background()))
	svc.Stop()
	svc.Stop()

	err := svc.Enqueue(context.Background(), result("match_late", 1, 0, strPtr(alice)))
	assert.ErrorIs(t, err, settle.ErrStopped)

	row, err := svc.Get(context.Background(), "match_late")
	require.NoError(t, err)
	assert.Equal(t, model.SettlementPending, row.Status)
}

// serialBridge fails the test if two oracle writes ever overlap.
type serialBridge struct {
	mu      sync.Mutex
	writing bool
	overlap bool
	writes  int
}

func (b *serialBridge) enter() {
	b.mu.Lock()
	if b.writing {
		b.overlap = true
	}
	b.writing = true
	b.writes++
	b.mu.Unlock()
	time.Sleep(time.Millisecond)
	b.mu.Lock()
	b.writing = false
	b.mu.Unlock()
}

func (b *serialBridge) SubmitScore(context.Context, string, string, int) (settle.TxHandle, error) {
	b.enter()
	return settle.TxHandle{}, nil
}

func (b *serialBridge) DeclareWinner(context.Context, settle.DeclareWinnerRequest) (settle.TxHandle, error) {
	b.enter()
	return settle.TxHandle{}, nil
}

func (b *serialBridge) GetMatchOnChainStatus(context.Context, string) (settle.MatchState, error) {
	return settle.MatchState{Status: settle.OnChainCompleted, Winner: alice}, nil
}

func TestOracleWritesAreSerialized(t *testing.T) {
	bridge := &serialBridge{}
	cfg := fastConfig()
	cfg.Workers = 4
	svc := settle.NewService(newLedger(t), bridge, cfg)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(svc.Stop)

	for i := 0; i < 4; i++ {
		require.NoError(t, svc.Enqueue(context.Background(), result(fmt.Sprintf("match_%d", i), 3, 1, strPtr(alice))))
	}
	for i := 0; i < 4; i++ {
		row := waitTerminal(t, svc, fmt.Sprintf("match_%d", i))
		assert.Equal(t, model.SettlementConfirmed, row.Status)
	}

	bridge.mu.Lock()
	defer bridge.mu.Unlock()
	assert.False(t, bridge.overlap)
	assert.Equal(t, 12, bridge.writes)
}

func TestPermanentWrapping(t *testing.T) {
	base := errors.New("boom")
	err := fmt.Errorf("declare: %w", settle.Permanent(base))
	assert.True(t, settle.IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, settle.IsPermanent(base))
	assert.Nil(t, settle.Permanent(nil))
}
