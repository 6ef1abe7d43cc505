package settle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

const maxResponseBody = 1 << 20

type HTTPConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPBridge talks to the contract routes of the settlement API.
type HTTPBridge struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPBridge(cfg HTTPConfig) *HTTPBridge {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPBridge{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// StatusError is a non-2xx reply from the settlement API.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("settlement api: status %d", e.Code)
	}
	return fmt.Sprintf("settlement api: status %d: %s", e.Code, e.Message)
}

// Retryable reports whether the call may succeed later. 425 means the chain
// has not caught up with the match yet.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooEarly || e.Code >= 500
}

type submitScoreBody struct {
	MatchID       string `json:"matchId"`
	PlayerAddress string `json:"playerAddress"`
	Score         int    `json:"score"`
}

type declareWinnerBody struct {
	MatchID         string `json:"matchId"`
	WinnerAddress   string `json:"winnerAddress"`
	Draw            bool   `json:"draw"`
	OffChainPlayer1 string `json:"offChainPlayer1"`
	OffChainPlayer2 string `json:"offChainPlayer2"`
	OffChainP1Score int    `json:"offChainP1Score"`
	OffChainP2Score int    `json:"offChainP2Score"`
}

type txReply struct {
	Success bool   `json:"success"`
	TxHash  string `json:"txHash"`
	Error   string `json:"error"`
}

func (b *HTTPBridge) SubmitScore(ctx context.Context, matchID, playerAddress string, score int) (TxHandle, error) {
	addr, err := checksumAddress(playerAddress)
	if err != nil {
		return TxHandle{}, err
	}
	var reply txReply
	err = b.do(ctx, http.MethodPost, "/api/contract/submit-score", submitScoreBody{
		MatchID:       matchID,
		PlayerAddress: addr,
		Score:         NormalizeScore(score),
	}, &reply)
	if err != nil {
		return TxHandle{}, errors.Wrapf(err, "submit score %s/%s", matchID, addr)
	}
	return TxHandle{Hash: reply.TxHash}, nil
}

func (b *HTTPBridge) DeclareWinner(ctx context.Context, req DeclareWinnerRequest) (TxHandle, error) {
	p1, err := checksumAddress(req.Player1)
	if err != nil {
		return TxHandle{}, err
	}
	p2, err := checksumAddress(req.Player2)
	if err != nil {
		return TxHandle{}, err
	}
	winner := common.Address{}.Hex()
	if !req.Draw {
		if winner, err = checksumAddress(req.Winner); err != nil {
			return TxHandle{}, err
		}
	}

	var reply txReply
	err = b.do(ctx, http.MethodPost, "/api/contract/declare-winner", declareWinnerBody{
		MatchID:         req.MatchID,
		WinnerAddress:   winner,
		Draw:            req.Draw,
		OffChainPlayer1: p1,
		OffChainPlayer2: p2,
		OffChainP1Score: req.Player1Score,
		OffChainP2Score: req.Player2Score,
	}, &reply)
	if err != nil {
		return TxHandle{}, errors.Wrapf(err, "declare winner %s", req.MatchID)
	}
	return TxHandle{Hash: reply.TxHash}, nil
}

func (b *HTTPBridge) GetMatchOnChainStatus(ctx context.Context, matchID string) (MatchState, error) {
	var state MatchState
	path := "/api/contract/match-status?matchId=" + url.QueryEscape(matchID)
	if err := b.do(ctx, http.MethodGet, path, nil, &state); err != nil {
		return MatchState{}, errors.Wrapf(err, "match status %s", matchID)
	}
	return state, nil
}

func (b *HTTPBridge) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return Permanent(errors.Wrap(err, "encode request"))
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return Permanent(errors.Wrap(err, "build request"))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.apiKey != "" {
		req.Header.Set("X-API-Key", b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var reply txReply
		_ = json.Unmarshal(raw, &reply)
		statusErr := &StatusError{Code: resp.StatusCode, Message: reply.Error}
		if statusErr.Retryable() {
			return statusErr
		}
		return Permanent(statusErr)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func checksumAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if !common.IsHexAddress(addr) {
		return "", Permanent(errors.Errorf("invalid address %q", addr))
	}
	return common.HexToAddress(addr).Hex(), nil
}
