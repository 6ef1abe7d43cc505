// Package registrytest provides an in-memory registry.Conn for tests.
package registrytest

import (
	"errors"
	"sync"

	"surge-service/pkg/protocol"

	"github.com/google/uuid"
)

var ErrClosed = errors.New("connection closed")

type Conn struct {
	id string

	mu      sync.Mutex
	sent    []protocol.Message
	pings   int
	closed  bool
	failing bool
}

func NewConn() *Conn {
	return &Conn{id: uuid.NewString()}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Send(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.failing {
		return ErrClosed
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *Conn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.pings++
	return nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// FailSends makes every later Send return ErrClosed without closing.
func (c *Conn) FailSends() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failing = true
}

func (c *Conn) Messages() []protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Message(nil), c.sent...)
}

// OfType returns the sent messages of type t in send order.
func (c *Conn) OfType(t protocol.MessageType) []protocol.Message {
	var out []protocol.Message
	for _, m := range c.Messages() {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

func (c *Conn) Pings() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
