package main

import (
	"log/slog"
	"sync"
)

// pushConnection is the minimal surface the registry needs from a
// driver's live channel; *websocket.Conn satisfies it directly.
type pushConnection interface {
	WriteJSON(v any) error
}

// connectionRegistry is the thread-safe driver_id -> connection map C8
// describes. Grounded on original_source's ConnectionManager
// (threading.Lock-guarded dict); sync.Mutex + map is the idiomatic Go
// equivalent, since no example repo carries a generic pub/sub registry
// library.
type connectionRegistry struct {
	mu    sync.Mutex
	conns map[string]pushConnection
	log   *slog.Logger
}

func newConnectionRegistry(log *slog.Logger) *connectionRegistry {
	return &connectionRegistry{conns: make(map[string]pushConnection), log: log}
}

func (r *connectionRegistry) register(driverID string, conn pushConnection) {
	r.mu.Lock()
	r.conns[driverID] = conn
	count := len(r.conns)
	r.mu.Unlock()
	r.log.Info("driver connected", slog.String("driver_id", driverID), slog.Int("active_connections", count))
}

// unregister removes driverID's entry iff the currently registered
// connection is conn — a no-op otherwise. This prevents a stale
// deferred unregister (from a connection that has already been
// replaced by a reconnect) from evicting the new, live connection.
func (r *connectionRegistry) unregister(driverID string, conn pushConnection) {
	r.mu.Lock()
	current, ok := r.conns[driverID]
	matched := ok && current == conn
	if matched {
		delete(r.conns, driverID)
	}
	count := len(r.conns)
	r.mu.Unlock()
	if matched {
		r.log.Info("driver disconnected", slog.String("driver_id", driverID), slog.Int("active_connections", count))
	}
}

// send delivers data to driverID's live connection if one is
// registered. A write failure implicitly unregisters the connection —
// a later write elsewhere will simply find nothing registered, same as
// an explicit disconnect.
func (r *connectionRegistry) send(driverID string, data any) bool {
	r.mu.Lock()
	conn, ok := r.conns[driverID]
	r.mu.Unlock()

	if !ok {
		r.log.Warn("no active connection for driver", slog.String("driver_id", driverID))
		return false
	}

	if err := conn.WriteJSON(data); err != nil {
		r.log.Error("failed to send to driver, unregistering", slog.String("driver_id", driverID), slog.Any("error", err))
		r.unregister(driverID, conn)
		return false
	}
	return true
}

