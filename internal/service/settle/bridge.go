package settle

import (
	"context"
	"errors"
)

//go:generate mockgen -destination=mocks/bridge_mock.go -package=mocks surge-service/internal/service/settle Bridge

// OnChainStatus mirrors the contract's match status enum.
type OnChainStatus string

const (
	OnChainPending   OnChainStatus = "Pending"
	OnChainActive    OnChainStatus = "Active"
	OnChainCompleted OnChainStatus = "Completed"
	OnChainCancelled OnChainStatus = "Cancelled"
	OnChainDraw      OnChainStatus = "Draw"
)

// TxHandle identifies a submitted oracle write.
type TxHandle struct {
	Hash string `json:"txHash"`
}

type DeclareWinnerRequest struct {
	MatchID      string
	Winner       string // empty for a draw
	Draw         bool
	Player1      string
	Player2      string
	Player1Score int
	Player2Score int
}

type MatchState struct {
	Status       OnChainStatus `json:"status"`
	Player1      string        `json:"player1"`
	Player2      string        `json:"player2"`
	Player1Score int           `json:"player1Score"`
	Player2Score int           `json:"player2Score"`
	Winner       string        `json:"winner"`
}

// Bridge is the settlement collaborator. SubmitScore and DeclareWinner are
// oracle writes; GetMatchOnChainStatus is a read.
type Bridge interface {
	SubmitScore(ctx context.Context, matchID, playerAddress string, score int) (TxHandle, error)
	DeclareWinner(ctx context.Context, req DeclareWinnerRequest) (TxHandle, error)
	GetMatchOnChainStatus(ctx context.Context, matchID string) (MatchState, error)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// NormalizeScore maps an off-chain score onto the contract's uint8 range.
// Zero means "not submitted" on chain, so the floor is 1.
func NormalizeScore(score int) int {
	switch {
	case score < 1:
		return 1
	case score > 0xff:
		return 0xff
	}
	return score
}
