package ws

import (
	"errors"
	"sync"
	"time"

	"surge-service/pkg/logger"
	"surge-service/pkg/protocol"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrClosed         = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// client is one upgraded socket. Outbound frames go through send so that
// callers holding session locks never block on the network.
type client struct {
	id        string
	conn      *websocket.Conn
	send      chan protocol.Message
	done      chan struct{}
	closeOnce sync.Once
	writeWait time.Duration
}

func newClient(conn *websocket.Conn, sendBuffer int, writeWait time.Duration) *client {
	if sendBuffer < 1 {
		sendBuffer = 1
	}
	return &client{
		id:        uuid.NewString(),
		conn:      conn,
		send:      make(chan protocol.Message, sendBuffer),
		done:      make(chan struct{}),
		writeWait: writeWait,
	}
}

func (c *client) ID() string { return c.id }

func (c *client) Send(msg protocol.Message) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		logger.Log.Warn("WS send buffer full, dropping message",
			zap.String("connID", c.id),
			zap.String("type", string(msg.Type)),
		)
		return ErrSendBufferFull
	}
}

func (c *client) Ping() error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait))
}

func (c *client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.writeWait))
		err = c.conn.Close()
	})
	return err
}

func (c *client) writePump() {
	defer c.Close()
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				logger.Log.Info("WS write error", zap.String("connID", c.id), zap.Error(err))
				return
			}
		case <-c.done:
			return
		}
	}
}
