package main

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeConn struct {
	mu      sync.Mutex
	written []any
	failNext bool
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failNext {
		return errors.New("write failed")
	}
	c.written = append(c.written, v)
	return nil
}

func TestConnectionRegistrySendToRegisteredDriver(t *testing.T) {
	r := newConnectionRegistry(testLogger())
	conn := &fakeConn{}
	r.register("driver-1", conn)

	ok := r.send("driver-1", map[string]string{"event": "dispatch"})
	require.True(t, ok)
	require.Len(t, conn.written, 1)
}

func TestConnectionRegistrySendToUnknownDriverFails(t *testing.T) {
	r := newConnectionRegistry(testLogger())
	ok := r.send("ghost-driver", "payload")
	assert.False(t, ok)
}

func TestConnectionRegistryUnregisterRemovesDriver(t *testing.T) {
	r := newConnectionRegistry(testLogger())
	conn := &fakeConn{}
	r.register("driver-1", conn)
	r.unregister("driver-1", conn)

	ok := r.send("driver-1", "payload")
	assert.False(t, ok)
}

// A stale unregister (from a connection that a reconnect has already
// replaced) must not evict the new connection.
func TestConnectionRegistryUnregisterIgnoresStaleHandle(t *testing.T) {
	r := newConnectionRegistry(testLogger())
	oldConn := &fakeConn{}
	newConn := &fakeConn{}

	r.register("driver-1", oldConn)
	r.register("driver-1", newConn)
	r.unregister("driver-1", oldConn)

	ok := r.send("driver-1", "payload")
	require.True(t, ok)
	require.Len(t, newConn.written, 1)
}

func TestConnectionRegistrySendFailureImplicitlyUnregisters(t *testing.T) {
	r := newConnectionRegistry(testLogger())
	conn := &fakeConn{failNext: true}
	r.register("driver-1", conn)

	ok := r.send("driver-1", "payload")
	assert.False(t, ok)

	// The failed write should have unregistered driver-1 — a second
	// send attempt must find nothing registered at all, not retry the
	// now-broken connection.
	conn.failNext = false
	ok = r.send("driver-1", "payload")
	assert.False(t, ok)
	assert.Empty(t, conn.written)
}

func TestConnectionRegistryConcurrentRegisterAndSend(t *testing.T) {
	r := newConnectionRegistry(testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		driverID := "driver-concurrent"
		go func() {
			defer wg.Done()
			r.register(driverID, &fakeConn{})
		}()
		go func() {
			defer wg.Done()
			r.send(driverID, "ping")
		}()
	}
	wg.Wait()
}
