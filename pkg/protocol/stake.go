package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Stake carries the stake amount as its literal text. Clients send it either
// as a JSON string ("0.5") or a JSON number (0.5); both decode to the same
// text so queue keys stay stable.
type Stake string

func (s *Stake) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Stake(strings.TrimSpace(str))
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("stake must be a string or number: %w", err)
	}
	*s = Stake(num.String())
	return nil
}

func (s Stake) String() string { return string(s) }
