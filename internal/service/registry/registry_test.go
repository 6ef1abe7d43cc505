package registry_test

import (
	"testing"

	"surge-service/internal/service/registry"
	"surge-service/internal/service/registry/registrytest"
	"surge-service/pkg/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterStartsAlive(t *testing.T) {
	r := registry.New()
	c := registrytest.NewConn()
	r.Register(c)

	st, ok := r.Status(c)
	require.True(t, ok)
	assert.True(t, st.Alive)
	assert.False(t, st.LastPong.IsZero())
	assert.Equal(t, 1, r.Count())
}

func TestHeartbeatDropsConnectionsThatMissedAProbe(t *testing.T) {
	r := registry.New()
	quiet := registrytest.NewConn()
	chatty := registrytest.NewConn()
	r.Register(quiet)
	r.Register(chatty)

	var dropped []string
	r.OnUnregister(func(c registry.Conn) { dropped = append(dropped, c.ID()) })

	// First tick probes both and marks them pending.
	assert.Equal(t, 0, r.HeartbeatTick())
	assert.Equal(t, 1, quiet.Pings())
	assert.Equal(t, 1, chatty.Pings())

	r.OnPong(chatty)

	// Second tick drops the one that never answered.
	assert.Equal(t, 1, r.HeartbeatTick())
	assert.True(t, quiet.Closed())
	assert.False(t, chatty.Closed())
	assert.Equal(t, []string{quiet.ID()}, dropped)
	assert.Equal(t, 1, r.Count())
	assert.Equal(t, 2, chatty.Pings())
}

func TestUnregisterIsIdempotentAndUnbinds(t *testing.T) {
	r := registry.New()
	c := registrytest.NewConn()
	r.Register(c)
	r.Bind("0xP1", c)

	calls := 0
	r.OnUnregister(func(registry.Conn) { calls++ })

	assert.True(t, r.Unregister(c))
	assert.False(t, r.Unregister(c))
	assert.Equal(t, 1, calls)

	_, ok := r.Lookup("0xP1")
	assert.False(t, ok)
	assert.ErrorIs(t, r.SendTo("0xP1", protocol.Message{Type: protocol.TypePong}), registry.ErrNotConnected)
}

func TestRebindKeepsNewestConnection(t *testing.T) {
	r := registry.New()
	oldConn := registrytest.NewConn()
	newConn := registrytest.NewConn()
	r.Register(oldConn)
	r.Register(newConn)

	r.Bind("0xP1", oldConn)
	r.Bind("0xP1", newConn)

	got, ok := r.Lookup("0xP1")
	require.True(t, ok)
	assert.Equal(t, newConn.ID(), got.ID())

	// Closing the stale socket must not drop the fresh binding.
	r.Unregister(oldConn)
	got, ok = r.Lookup("0xP1")
	require.True(t, ok)
	assert.Equal(t, newConn.ID(), got.ID())

	require.NoError(t, r.SendTo("0xP1", protocol.Message{Type: protocol.TypePong}))
	assert.Len(t, newConn.Messages(), 1)
	assert.Empty(t, oldConn.Messages())
}

func TestBindIgnoresUnregisteredConnection(t *testing.T) {
	r := registry.New()
	c := registrytest.NewConn()
	r.Bind("0xP1", c)
	_, ok := r.Lookup("0xP1")
	assert.False(t, ok)
}
