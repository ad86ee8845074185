package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipetapasco/microservices-delivery-hub/common/domain"
)

type fakeOrdersStore struct {
	orders map[string]*domain.Order
}

func newFakeOrdersStore() *fakeOrdersStore {
	return &fakeOrdersStore{orders: map[string]*domain.Order{}}
}

func (f *fakeOrdersStore) Create(ctx context.Context, order *domain.Order) error {
	f.orders[order.OrderID] = order
	return nil
}

func (f *fakeOrdersStore) Update(ctx context.Context, order *domain.Order) error {
	f.orders[order.OrderID] = order
	return nil
}

func (f *fakeOrdersStore) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	return f.orders[orderID], nil
}

func (f *fakeOrdersStore) GetByStatus(ctx context.Context, status domain.Status) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, o := range f.orders {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrdersStore) GetByDriver(ctx context.Context, driverID string) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, o := range f.orders {
		if o.AssignedDriverID == driverID {
			out = append(out, o)
		}
	}
	return out, nil
}

func testOrdersLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// CreateOrder now unconditionally publishes a dispatch event, so it
// always touches the broker channel — exercising it needs a real
// *amqp.Channel, which nothing in the example pack shows how to fake.
// UpdateStatus and AssignDriver below cover the transition logic that
// doesn't depend on the channel directly.

func TestUpdateStatusRejectsForbiddenTransition(t *testing.T) {
	store := newFakeOrdersStore()
	store.orders["order-1"] = &domain.Order{OrderID: "order-1", Status: domain.StatusSolicitado}
	svc := NewService(store, nil, testOrdersLogger())

	_, err := svc.UpdateStatus(context.Background(), "order-1", domain.StatusEntregado)
	require.ErrorIs(t, err, domain.ErrTransitionForbidden)
}

func TestUpdateStatusAppliesAllowedTransition(t *testing.T) {
	store := newFakeOrdersStore()
	store.orders["order-1"] = &domain.Order{OrderID: "order-1", Status: domain.StatusSolicitado}
	svc := NewService(store, nil, testOrdersLogger())

	updated, err := svc.UpdateStatus(context.Background(), "order-1", domain.StatusConfirmado)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmado, updated.Status)
	assert.Equal(t, domain.StatusConfirmado, store.orders["order-1"].Status)
}

func TestAssignDriverRejectsNonAssignableOrder(t *testing.T) {
	store := newFakeOrdersStore()
	store.orders["order-1"] = &domain.Order{OrderID: "order-1", Status: domain.StatusEntregado}
	svc := NewService(store, nil, testOrdersLogger())

	_, err := svc.AssignDriver(context.Background(), "order-1", "driver-1", "Carlos", "ABC-123")
	require.ErrorIs(t, err, domain.ErrTransitionForbidden)
}

func TestGetByStatusAndGetByDriver(t *testing.T) {
	store := newFakeOrdersStore()
	store.orders["order-1"] = &domain.Order{OrderID: "order-1", Status: domain.StatusConfirmado, AssignedDriverID: "driver-1"}
	store.orders["order-2"] = &domain.Order{OrderID: "order-2", Status: domain.StatusEntregado}
	svc := NewService(store, nil, testOrdersLogger())

	byStatus, err := svc.GetByStatus(context.Background(), domain.StatusConfirmado)
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "order-1", byStatus[0].OrderID)

	byDriver, err := svc.GetByDriver(context.Background(), "driver-1")
	require.NoError(t, err)
	require.Len(t, byDriver, 1)
	assert.Equal(t, "order-1", byDriver[0].OrderID)
}
