package settle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	lowerAlice = "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd"
	lowerBob   = "0x00000000000000000000000000000000000000b0"
)

func newTestBridge(t *testing.T, h http.HandlerFunc) *HTTPBridge {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPBridge(HTTPConfig{BaseURL: srv.URL + "/", APIKey: "secret", Timeout: time.Second})
}

func TestSubmitScoreRequest(t *testing.T) {
	var got submitScoreBody
	bridge := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/contract/submit-score", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"txHash":"0xfeed"}`))
	})

	tx, err := bridge.SubmitScore(context.Background(), "match_1", lowerAlice, 0)
	require.NoError(t, err)
	assert.Equal(t, "0xfeed", tx.Hash)
	assert.Equal(t, "match_1", got.MatchID)
	assert.Equal(t, common.HexToAddress(lowerAlice).Hex(), got.PlayerAddress)
	assert.Equal(t, 1, got.Score)
}

func TestDeclareWinnerRequest(t *testing.T) {
	var got declareWinnerBody
	bridge := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/contract/declare-winner", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"txHash":"0xbeef"}`))
	})

	_, err := bridge.DeclareWinner(context.Background(), DeclareWinnerRequest{
		MatchID: "match_1", Winner: lowerBob, Player1: lowerAlice, Player2: lowerBob,
		Player1Score: 3, Player2Score: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(lowerBob).Hex(), got.WinnerAddress)
	assert.Equal(t, 7, got.OffChainP2Score)
	assert.False(t, got.Draw)

	_, err = bridge.DeclareWinner(context.Background(), DeclareWinnerRequest{
		MatchID: "match_2", Draw: true, Player1: lowerAlice, Player2: lowerBob,
	})
	require.NoError(t, err)
	assert.True(t, got.Draw)
	assert.Equal(t, common.Address{}.Hex(), got.WinnerAddress)
}

func TestBridgeErrorClassification(t *testing.T) {
	cases := []struct {
		status    int
		permanent bool
	}{
		{http.StatusTooEarly, false},
		{http.StatusBadGateway, false},
		{http.StatusInternalServerError, false},
		{http.StatusBadRequest, true},
		{http.StatusNotFound, true},
	}
	for _, tc := range cases {
		bridge := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
		})
		_, err := bridge.SubmitScore(context.Background(), "m", lowerAlice, 3)
		require.Error(t, err)
		assert.Equal(t, tc.permanent, IsPermanent(err), "status %d", tc.status)
		assert.Contains(t, err.Error(), "nope")
	}
}

func TestBridgeRejectsBadAddress(t *testing.T) {
	bridge := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := bridge.SubmitScore(context.Background(), "m", "player-one", 3)
	assert.True(t, IsPermanent(err))
}

func TestGetMatchOnChainStatus(t *testing.T) {
	bridge := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "match 1", r.URL.Query().Get("matchId"))
		_, _ = w.Write([]byte(`{"status":"Completed","player1Score":5,"player2Score":3,"winner":"` + lowerAlice + `"}`))
	})

	st, err := bridge.GetMatchOnChainStatus(context.Background(), "match 1")
	require.NoError(t, err)
	assert.Equal(t, OnChainCompleted, st.Status)
	assert.Equal(t, 5, st.Player1Score)
	assert.Equal(t, lowerAlice, st.Winner)
}
