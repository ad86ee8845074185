package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipetapasco/microservices-delivery-hub/common/domain"
	"github.com/pipetapasco/microservices-delivery-hub/common/metrics"
)

// fakeDriversStore is an in-memory DriversStore double for exercising
// acceptanceService's branching without a Postgres connection.
type fakeDriversStore struct {
	driver          *domain.Driver
	vehicle         *domain.Vehicle
	vehicleErr      error
	setAvailability func(ctx context.Context, driverID string, expected, next domain.Availability, orderID string) (bool, error)
	setCalls        []domain.Availability
}

func (f *fakeDriversStore) GetDriver(ctx context.Context, driverID string) (*domain.Driver, error) {
	return f.driver, nil
}

func (f *fakeDriversStore) GetAvailableCandidates(ctx context.Context, limit int) ([]*domain.Driver, error) {
	return nil, nil
}

func (f *fakeDriversStore) GetActiveVehicle(ctx context.Context, driverID string) (*domain.Vehicle, error) {
	return f.vehicle, f.vehicleErr
}

func (f *fakeDriversStore) SetAvailability(ctx context.Context, driverID string, expected, next domain.Availability, orderID string) (bool, error) {
	f.setCalls = append(f.setCalls, next)
	return f.setAvailability(ctx, driverID, expected, next, orderID)
}

func (f *fakeDriversStore) ListStaleInService(ctx context.Context, graceCutoff time.Time) ([]*domain.Driver, error) {
	return nil, nil
}

func approvedAvailableDriver() *domain.Driver {
	return &domain.Driver{
		DriverID:        "driver-1",
		DisplayName:     "Carlos",
		AccountActive:   true,
		ValidationState: domain.ValidationApproved,
		Availability:    domain.AvailabilityAvailable,
	}
}

func TestAcceptRejectsIneligibleDriver(t *testing.T) {
	store := &fakeDriversStore{driver: &domain.Driver{
		AccountActive:   false,
		ValidationState: domain.ValidationApproved,
		Availability:    domain.AvailabilityAvailable,
	}}
	svc := NewAcceptanceService(store, nil, metrics.NewDispatchMetrics("test-drivers-1"), testLogger())

	err := svc.Accept(context.Background(), "driver-1", "order-1")
	require.ErrorIs(t, err, ErrDriverNotEligible)
	assert.Empty(t, store.setCalls, "must not attempt a CAS for an ineligible driver")
}

func TestAcceptRejectsUnapprovedValidationState(t *testing.T) {
	store := &fakeDriversStore{driver: &domain.Driver{
		AccountActive:   true,
		ValidationState: domain.ValidationRejected,
		Availability:    domain.AvailabilityAvailable,
	}}
	svc := NewAcceptanceService(store, nil, metrics.NewDispatchMetrics("test-drivers-2"), testLogger())

	err := svc.Accept(context.Background(), "driver-1", "order-1")
	require.ErrorIs(t, err, ErrDriverNotEligible)
}

func TestAcceptRejectsUnavailableDriver(t *testing.T) {
	store := &fakeDriversStore{driver: &domain.Driver{
		AccountActive:   true,
		ValidationState: domain.ValidationApproved,
		Availability:    domain.AvailabilityOnService,
	}}
	svc := NewAcceptanceService(store, nil, metrics.NewDispatchMetrics("test-drivers-3"), testLogger())

	err := svc.Accept(context.Background(), "driver-1", "order-1")
	require.ErrorIs(t, err, ErrDriverNotAvailable)
	assert.Empty(t, store.setCalls)
}

func TestAcceptReturnsRacedWhenCASLoses(t *testing.T) {
	store := &fakeDriversStore{
		driver: approvedAvailableDriver(),
		setAvailability: func(ctx context.Context, driverID string, expected, next domain.Availability, orderID string) (bool, error) {
			return false, nil
		},
	}
	svc := NewAcceptanceService(store, nil, metrics.NewDispatchMetrics("test-drivers-4"), testLogger())

	err := svc.Accept(context.Background(), "driver-1", "order-1")
	require.ErrorIs(t, err, ErrAcceptRaced)
	require.Len(t, store.setCalls, 1)
	assert.Equal(t, domain.AvailabilityOnService, store.setCalls[0])
}

func TestAcceptPropagatesStoreErrorFromCAS(t *testing.T) {
	boom := errors.New("connection reset")
	store := &fakeDriversStore{
		driver: approvedAvailableDriver(),
		setAvailability: func(ctx context.Context, driverID string, expected, next domain.Availability, orderID string) (bool, error) {
			return false, boom
		},
	}
	svc := NewAcceptanceService(store, nil, metrics.NewDispatchMetrics("test-drivers-5"), testLogger())

	err := svc.Accept(context.Background(), "driver-1", "order-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
