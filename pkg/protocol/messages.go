package protocol

import "encoding/json"

type MessageType string

// Inbound (client -> server).
const (
	TypeJoinQueue  MessageType = "JOIN_QUEUE"
	TypeLeaveQueue MessageType = "LEAVE_QUEUE"
	TypeGameReady  MessageType = "GAME_READY"
	TypeGameAction MessageType = "GAME_ACTION"
	TypePing       MessageType = "PING"
)

// Outbound (server -> client).
const (
	TypeMatchFound  MessageType = "MATCH_FOUND"
	TypeGameStart   MessageType = "GAME_START"
	TypeTurnChange  MessageType = "TURN_CHANGE"
	TypeScoreUpdate MessageType = "SCORE_UPDATE"
	TypeGameOver    MessageType = "GAME_OVER"
	TypeError       MessageType = "ERROR"
	TypePong        MessageType = "PONG"
)

type Action string

const (
	ActionSubmitTurn  Action = "SUBMIT_TURN"
	ActionUpdateScore Action = "UPDATE_SCORE"
	ActionGameOver    Action = "GAME_OVER"
)

// Message is the outbound frame. Payload is marshalled as-is.
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Incoming is the inbound frame; the payload is decoded per type.
type Incoming struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type JoinQueuePayload struct {
	PlayerAddress string `json:"playerAddress"`
	GameType      string `json:"gameType"`
	Stake         Stake  `json:"stake"`
}

type LeaveQueuePayload struct {
	PlayerAddress string `json:"playerAddress"`
}

type GameReadyPayload struct {
	MatchID       string `json:"matchId"`
	PlayerAddress string `json:"playerAddress"`
}

type GameActionPayload struct {
	MatchID       string          `json:"matchId"`
	PlayerAddress string          `json:"playerAddress"`
	Action        Action          `json:"action"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// UpdateScoreData is the data of an UPDATE_SCORE action.
type UpdateScoreData struct {
	Score    *int            `json:"score"`
	GameData json.RawMessage `json:"gameData,omitempty"`
}

// GameOverData is the data of a GAME_OVER action. An empty winner lets the
// server derive the outcome from the recorded scores.
type GameOverData struct {
	Winner   *string         `json:"winner"`
	GameData json.RawMessage `json:"gameData,omitempty"`
}

type MatchFoundPayload struct {
	Player1       string `json:"player1"`
	Player2       string `json:"player2"`
	GameType      string `json:"gameType"`
	Stake         string `json:"stake"`
	MatchID       string `json:"matchId"`
	GameStartTime int64  `json:"gameStartTime"`
}

type GameStartPayload struct {
	MatchID       string          `json:"matchId"`
	GameType      string          `json:"gameType"`
	Stake         string          `json:"stake"`
	Player1       string          `json:"player1"`
	Player2       string          `json:"player2"`
	CurrentPlayer *string         `json:"currentPlayer"`
	GameData      json.RawMessage `json:"gameData"`
	Seq           int64           `json:"seq"`
}

type TurnChangePayload struct {
	MatchID       string          `json:"matchId"`
	CurrentPlayer *string         `json:"currentPlayer"`
	GameData      json.RawMessage `json:"gameData"`
	Seq           int64           `json:"seq"`
}

type ScoreUpdatePayload struct {
	MatchID      string          `json:"matchId"`
	Player1Score *int            `json:"player1Score"`
	Player2Score *int            `json:"player2Score"`
	GameData     json.RawMessage `json:"gameData"`
	Seq          int64           `json:"seq"`
}

type GameOverPayload struct {
	MatchID      string          `json:"matchId"`
	Winner       *string         `json:"winner"`
	Draw         bool            `json:"draw"`
	Status       string          `json:"status"`
	Player1Score *int            `json:"player1Score"`
	Player2Score *int            `json:"player2Score"`
	GameData     json.RawMessage `json:"gameData"`
	Seq          int64           `json:"seq"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func ErrorMessage(code, message string) Message {
	return Message{Type: TypeError, Payload: ErrorPayload{Message: message, Code: code}}
}
