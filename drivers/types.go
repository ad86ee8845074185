package main

import (
	"context"
	"time"

	"github.com/pipetapasco/microservices-delivery-hub/common/domain"
)

// DriversStore is the persistence contract for driver/vehicle records.
type DriversStore interface {
	GetDriver(ctx context.Context, driverID string) (*domain.Driver, error)
	GetAvailableCandidates(ctx context.Context, limit int) ([]*domain.Driver, error)
	GetActiveVehicle(ctx context.Context, driverID string) (*domain.Vehicle, error)
	// SetAvailability performs a compare-and-swap: it only updates the row
	// when the current availability matches expected, returning false
	// (no error) when another writer already moved the driver elsewhere.
	// orderID is recorded alongside "en_servicio" and cleared otherwise.
	SetAvailability(ctx context.Context, driverID string, expected, next domain.Availability, orderID string) (bool, error)
	// ListStaleInService returns drivers whose on_service_since predates
	// the grace cutoff — candidates for the watchdog's release sweep.
	ListStaleInService(ctx context.Context, graceCutoff time.Time) ([]*domain.Driver, error)
}
