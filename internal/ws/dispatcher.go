package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"surge-service/internal/metrics"
	"surge-service/internal/service/match"
	"surge-service/internal/service/registry"
	"surge-service/internal/service/session"
	appErr "surge-service/pkg/errors"
	"surge-service/pkg/logger"
	"surge-service/pkg/protocol"

	"go.uber.org/zap"
)

// Dispatcher decodes inbound frames and routes them to the queue and session
// store. Every failure becomes an ERROR reply to the sending connection only.
type Dispatcher struct {
	conns    *registry.Registry
	queue    *match.Service
	sessions *session.Store
}

func NewDispatcher(conns *registry.Registry, queue *match.Service, sessions *session.Store) *Dispatcher {
	return &Dispatcher{conns: conns, queue: queue, sessions: sessions}
}

func (d *Dispatcher) Handle(c registry.Conn, raw []byte) {
	var in protocol.Incoming
	if err := json.Unmarshal(raw, &in); err != nil {
		d.reply(c, "", fmt.Errorf("%w: invalid JSON", appErr.ErrMalformedMessage))
		return
	}
	if in.Type == "" {
		d.reply(c, in.Type, fmt.Errorf("%w: message type is required", appErr.ErrMalformedMessage))
		return
	}

	var err error
	switch in.Type {
	case protocol.TypeJoinQueue:
		err = d.joinQueue(c, in.Payload)
	case protocol.TypeLeaveQueue:
		err = d.leaveQueue(c, in.Payload)
	case protocol.TypeGameReady:
		err = d.gameReady(c, in.Payload)
	case protocol.TypeGameAction:
		err = d.gameAction(c, in.Payload)
	case protocol.TypePing:
		err = c.Send(protocol.Message{Type: protocol.TypePong})
	default:
		err = fmt.Errorf("%w: unknown message type: %s", appErr.ErrMalformedMessage, in.Type)
	}
	if err != nil {
		d.reply(c, in.Type, err)
	}
}

func decode(payload json.RawMessage, v interface{}) error {
	if len(payload) == 0 || string(payload) == "null" {
		return fmt.Errorf("%w: payload is required", appErr.ErrMalformedMessage)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrMalformedMessage, err)
	}
	return nil
}

func required(fields ...string) error {
	for i := 0; i+1 < len(fields); i += 2 {
		if strings.TrimSpace(fields[i+1]) == "" {
			return fmt.Errorf("%w: %s is required", appErr.ErrMalformedMessage, fields[i])
		}
	}
	return nil
}

func (d *Dispatcher) joinQueue(c registry.Conn, payload json.RawMessage) error {
	var p protocol.JoinQueuePayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	if err := required("playerAddress", p.PlayerAddress, "gameType", p.GameType, "stake", string(p.Stake)); err != nil {
		return err
	}
	player := strings.TrimSpace(p.PlayerAddress)
	d.conns.Bind(player, c)

	_, err := d.queue.JoinQueue(match.JoinQueueRequest{
		PlayerID: player,
		GameType: p.GameType,
		Stake:    string(p.Stake),
		Conn:     c,
	})
	return err
}

func (d *Dispatcher) leaveQueue(c registry.Conn, payload json.RawMessage) error {
	var p protocol.LeaveQueuePayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	if err := required("playerAddress", p.PlayerAddress); err != nil {
		return err
	}
	player := strings.TrimSpace(p.PlayerAddress)
	d.conns.Bind(player, c)
	d.queue.LeaveByPlayer(player, "user")
	return nil
}

func (d *Dispatcher) gameReady(c registry.Conn, payload json.RawMessage) error {
	var p protocol.GameReadyPayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	if err := required("matchId", p.MatchID, "playerAddress", p.PlayerAddress); err != nil {
		return err
	}
	d.conns.Bind(p.PlayerAddress, c)
	return d.sessions.MarkReady(p.MatchID, p.PlayerAddress)
}

func (d *Dispatcher) gameAction(c registry.Conn, payload json.RawMessage) error {
	var p protocol.GameActionPayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	if err := required("matchId", p.MatchID, "playerAddress", p.PlayerAddress, "action", string(p.Action)); err != nil {
		return err
	}
	d.conns.Bind(p.PlayerAddress, c)

	switch p.Action {
	case protocol.ActionSubmitTurn:
		return d.sessions.SubmitTurn(p.MatchID, p.PlayerAddress, p.Data)

	case protocol.ActionUpdateScore:
		var data protocol.UpdateScoreData
		if err := decode(p.Data, &data); err != nil {
			return err
		}
		if data.Score == nil {
			return fmt.Errorf("%w: score is required", appErr.ErrMalformedMessage)
		}
		return d.sessions.UpdateScore(p.MatchID, p.PlayerAddress, *data.Score, data.GameData)

	case protocol.ActionGameOver:
		var data protocol.GameOverData
		if len(p.Data) > 0 && string(p.Data) != "null" {
			if err := decode(p.Data, &data); err != nil {
				return err
			}
		}
		return d.sessions.DeclareGameOver(p.MatchID, p.PlayerAddress, data.Winner, data.GameData)

	default:
		return fmt.Errorf("%w: %s", appErr.ErrUnknownAction, p.Action)
	}
}

func (d *Dispatcher) reply(c registry.Conn, msgType protocol.MessageType, err error) {
	code := appErr.Code(err)
	metrics.ProtocolErrors.WithLabelValues(code).Inc()

	fields := []zap.Field{
		zap.String("connID", c.ID()),
		zap.String("type", string(msgType)),
		zap.String("code", code),
		zap.Error(err),
	}
	message := err.Error()
	if code == "InternalError" {
		logger.Log.Error("message handling failed", fields...)
		message = "internal error"
	} else {
		logger.Log.Debug("message rejected", fields...)
	}

	if sendErr := c.Send(protocol.ErrorMessage(code, message)); sendErr != nil && !errors.Is(sendErr, ErrClosed) {
		logger.Log.Info("error reply not delivered", zap.String("connID", c.ID()), zap.Error(sendErr))
	}
}
