package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pipetapasco/microservices-delivery-hub/common/domain"
)

// store is the Postgres-backed DriversStore. Grounded on
// stock/store_postgres.go's query idiom.
type store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *store {
	return &store{db: db}
}

func (s *store) GetDriver(ctx context.Context, driverID string) (*domain.Driver, error) {
	query := `
		SELECT driver_id, display_name, account_active, validation_state, availability,
			assigned_order_id, on_service_since
		FROM drivers WHERE driver_id = $1`
	row := s.db.QueryRowContext(ctx, query, driverID)
	return scanDriver(row)
}

func (s *store) GetAvailableCandidates(ctx context.Context, limit int) ([]*domain.Driver, error) {
	query := `
		SELECT driver_id, display_name, account_active, validation_state, availability,
			assigned_order_id, on_service_since
		FROM drivers
		WHERE account_active = true AND validation_state = $1 AND availability = $2
		LIMIT $3`
	rows, err := s.db.QueryContext(ctx, query, domain.ValidationApproved, domain.AvailabilityAvailable, limit)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var drivers []*domain.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}

func (s *store) GetActiveVehicle(ctx context.Context, driverID string) (*domain.Vehicle, error) {
	var v domain.Vehicle
	query := `SELECT driver_id, plate, active FROM vehicles WHERE driver_id = $1 AND active = true LIMIT 1`
	err := s.db.QueryRowContext(ctx, query, driverID).Scan(&v.DriverID, &v.Plate, &v.Active)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no active vehicle for driver %s", driverID)
	}
	if err != nil {
		return nil, fmt.Errorf("get active vehicle: %w", err)
	}
	return &v, nil
}

// SetAvailability performs an atomic compare-and-swap: the UPDATE's
// WHERE clause folds the check and the write into one statement, so
// two concurrent acceptors of the same driver can never both succeed
// (invariant P3/P4).
func (s *store) SetAvailability(ctx context.Context, driverID string, expected, next domain.Availability, orderID string) (bool, error) {
	var onServiceSince any
	var assignedOrderID any
	if next == domain.AvailabilityOnService {
		onServiceSince = time.Now().UTC()
		assignedOrderID = orderID
	} else {
		onServiceSince = nil
		assignedOrderID = nil
	}

	query := `
		UPDATE drivers SET availability = $1, on_service_since = $2, assigned_order_id = $3
		WHERE driver_id = $4 AND availability = $5`
	result, err := s.db.ExecContext(ctx, query, next, onServiceSince, assignedOrderID, driverID, expected)
	if err != nil {
		return false, fmt.Errorf("set availability: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (s *store) ListStaleInService(ctx context.Context, graceCutoff time.Time) ([]*domain.Driver, error) {
	query := `
		SELECT driver_id, display_name, account_active, validation_state, availability,
			assigned_order_id, on_service_since
		FROM drivers
		WHERE availability = $1 AND on_service_since IS NOT NULL AND on_service_since < $2`
	rows, err := s.db.QueryContext(ctx, query, domain.AvailabilityOnService, graceCutoff)
	if err != nil {
		return nil, fmt.Errorf("query stale drivers: %w", err)
	}
	defer rows.Close()

	var drivers []*domain.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDriver(row scanner) (*domain.Driver, error) {
	var d domain.Driver
	var assignedOrderID sql.NullString
	var onServiceSince sql.NullTime

	err := row.Scan(
		&d.DriverID, &d.DisplayName, &d.AccountActive, &d.ValidationState, &d.Availability,
		&assignedOrderID, &onServiceSince,
	)
	if err != nil {
		return nil, err
	}

	d.AssignedOrderID = assignedOrderID.String
	if onServiceSince.Valid {
		d.OnServiceSince = &onServiceSince.Time
	}
	return &d, nil
}
