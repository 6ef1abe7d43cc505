package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrSessionNotFound, "SessionNotFound"},
		{fmt.Errorf("%w: match_1", ErrPlayerNotInSession), "PlayerNotInSession"},
		{fmt.Errorf("ready: %w", ErrInvalidState), "InvalidState"},
		{ErrNotYourTurn, "NotYourTurn"},
		{ErrUnknownAction, "MalformedMessage"},
		{ErrInvalidWinner, "InvalidWinner"},
		{errors.New("boom"), "InternalError"},
	}
	for _, tc := range cases {
		if got := Code(tc.err); got != tc.want {
			t.Fatalf("Code(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
