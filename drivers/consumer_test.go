package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipetapasco/microservices-delivery-hub/common/domain"
	"github.com/pipetapasco/microservices-delivery-hub/common/metrics"
)

type fakeCandidateStore struct {
	fakeDriversStore
	candidates []*domain.Driver
	candErr    error
}

func (f *fakeCandidateStore) GetAvailableCandidates(ctx context.Context, limit int) ([]*domain.Driver, error) {
	if f.candErr != nil {
		return nil, f.candErr
	}
	return f.candidates, nil
}

func TestFanOutSendsToEveryConnectedCandidate(t *testing.T) {
	registry := newConnectionRegistry(testLogger())
	connected := &fakeConn{}
	registry.register("driver-connected", connected)
	// driver-offline is a candidate but has no live connection registered.

	store := &fakeCandidateStore{candidates: []*domain.Driver{
		{DriverID: "driver-connected"},
		{DriverID: "driver-offline"},
	}}

	c := NewConsumer(store, registry, metrics.NewDispatchMetrics("test-drivers-fanout-1"), testLogger())
	c.fanOut(context.Background(), domain.DispatchEvent{OrderID: "order-1"})

	require.Len(t, connected.written, 1)
	notif, ok := connected.written[0].(dispatchNotification)
	require.True(t, ok)
	assert.Equal(t, "nuevo_servicio_disponible", notif.Type)
	assert.Equal(t, "order-1", notif.Data.OrderID)
}

func TestFanOutWithNoCandidatesSendsNothing(t *testing.T) {
	registry := newConnectionRegistry(testLogger())
	store := &fakeCandidateStore{candidates: nil}

	c := NewConsumer(store, registry, metrics.NewDispatchMetrics("test-drivers-fanout-2"), testLogger())
	// Must not panic even with zero candidates and nothing registered.
	c.fanOut(context.Background(), domain.DispatchEvent{OrderID: "order-1"})
}

func TestFanOutLogsAndReturnsOnStoreError(t *testing.T) {
	registry := newConnectionRegistry(testLogger())
	conn := &fakeConn{}
	registry.register("driver-connected", conn)

	store := &fakeCandidateStore{candErr: errors.New("connection refused")}

	c := NewConsumer(store, registry, metrics.NewDispatchMetrics("test-drivers-fanout-3"), testLogger())
	c.fanOut(context.Background(), domain.DispatchEvent{OrderID: "order-1"})

	assert.Empty(t, conn.written, "a candidate-load failure must not attempt any sends")
}
