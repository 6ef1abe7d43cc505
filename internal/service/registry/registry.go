package registry

import (
	"errors"
	"sync"
	"time"

	"surge-service/internal/metrics"
	"surge-service/pkg/logger"
	"surge-service/pkg/protocol"

	"go.uber.org/zap"
)

var ErrNotConnected = errors.New("player has no live connection")

// Conn is one bidirectional message channel. Send must not block: a slow or
// dead peer may drop messages but never stalls the caller.
type Conn interface {
	ID() string
	Send(msg protocol.Message) error
	Ping() error
	Close() error
}

type entry struct {
	conn     Conn
	alive    bool
	lastPong time.Time
	players  map[string]struct{}
}

// Status is a point-in-time view of a registered connection.
type Status struct {
	Alive    bool
	LastPong time.Time
	Players  []string
}

// Registry tracks live connections, their liveness, and which player identity
// currently resolves to which connection.
type Registry struct {
	mu        sync.RWMutex
	conns     map[string]*entry
	identity  map[string]Conn
	observers []func(Conn)
	now       func() time.Time
}

func New() *Registry {
	return &Registry{
		conns:    make(map[string]*entry),
		identity: make(map[string]Conn),
		now:      time.Now,
	}
}

// OnUnregister adds a callback fired after a connection leaves the registry.
// Callbacks run outside the registry lock.
func (r *Registry) OnUnregister(fn func(Conn)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

func (r *Registry) Register(c Conn) {
	r.mu.Lock()
	r.conns[c.ID()] = &entry{
		conn:     c,
		alive:    true,
		lastPong: r.now(),
		players:  make(map[string]struct{}),
	}
	count := len(r.conns)
	r.mu.Unlock()

	metrics.Connections.Set(float64(count))
	logger.Log.Debug("connection registered", zap.String("connID", c.ID()))
}

// Unregister removes c and every identity bound to it, then notifies
// observers. It reports false if c was not registered.
func (r *Registry) Unregister(c Conn) bool {
	r.mu.Lock()
	e, ok := r.conns[c.ID()]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.conns, c.ID())
	for playerID := range e.players {
		if bound, ok := r.identity[playerID]; ok && bound.ID() == c.ID() {
			delete(r.identity, playerID)
		}
	}
	observers := append([]func(Conn){}, r.observers...)
	count := len(r.conns)
	r.mu.Unlock()

	metrics.Connections.Set(float64(count))
	logger.Log.Info("connection unregistered", zap.String("connID", c.ID()))

	for _, fn := range observers {
		fn(c)
	}
	return true
}

func (r *Registry) OnPong(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[c.ID()]; ok {
		e.alive = true
		e.lastPong = r.now()
	}
}

// HeartbeatTick closes and unregisters every connection that did not answer
// the previous probe, then probes the rest. It returns the number dropped.
func (r *Registry) HeartbeatTick() int {
	var dead, probe []Conn

	r.mu.Lock()
	for _, e := range r.conns {
		if !e.alive {
			dead = append(dead, e.conn)
			continue
		}
		e.alive = false
		probe = append(probe, e.conn)
	}
	r.mu.Unlock()

	for _, c := range dead {
		logger.Log.Info("terminating dead connection", zap.String("connID", c.ID()))
		_ = c.Close()
		r.Unregister(c)
	}
	for _, c := range probe {
		if err := c.Ping(); err != nil {
			logger.Log.Debug("liveness probe failed", zap.String("connID", c.ID()), zap.Error(err))
		}
	}
	return len(dead)
}

// Bind points playerID at c. Binding to an unregistered connection is
// ignored so a late message from a closed socket cannot steal an identity.
func (r *Registry) Bind(playerID string, c Conn) {
	if playerID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[c.ID()]
	if !ok {
		return
	}
	if prev, ok := r.identity[playerID]; ok {
		if prev.ID() == c.ID() {
			return
		}
		if pe, ok := r.conns[prev.ID()]; ok {
			delete(pe.players, playerID)
		}
		logger.Log.Info("player rebound to new connection",
			zap.String("player", playerID),
			zap.String("from", prev.ID()),
			zap.String("to", c.ID()),
		)
	}
	r.identity[playerID] = c
	e.players[playerID] = struct{}{}
}

func (r *Registry) Lookup(playerID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.identity[playerID]
	return c, ok
}

// SendTo delivers msg to the connection currently bound to playerID.
func (r *Registry) SendTo(playerID string, msg protocol.Message) error {
	c, ok := r.Lookup(playerID)
	if !ok {
		return ErrNotConnected
	}
	return c.Send(msg)
}

func (r *Registry) Status(c Conn) (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[c.ID()]
	if !ok {
		return Status{}, false
	}
	players := make([]string, 0, len(e.players))
	for p := range e.players {
		players = append(players, p)
	}
	return Status{Alive: e.alive, LastPong: e.lastPong, Players: players}, true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
