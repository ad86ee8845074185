package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pipetapasco/microservices-delivery-hub/common/domain"
)

var ErrOrderNotFound = errors.New("order not found")

// store is the Postgres-backed OrdersStore. Items are stored as a JSON
// column rather than a join table — they are always read/written as a
// whole with their parent order (spec §3: OrderItem cascade-deletes
// with Order) and never queried independently.
type store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *store {
	return &store{db: db}
}

func (s *store) Create(ctx context.Context, order *domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}

	query := `
		INSERT INTO orders (
			order_id, service_type, external_client_id, client_name, client_phone,
			origin_description, origin_lat, origin_lon,
			dest_description, dest_lat, dest_lon,
			merchant_id, items, payment_hint, amount_estimate, extra_notes,
			status, created_at, last_updated
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`

	_, err = s.db.ExecContext(ctx, query,
		order.OrderID, order.ServiceType, order.ExternalClientID, order.ClientName, order.ClientPhone,
		order.Origin.Description, order.Origin.Lat, order.Origin.Lon,
		order.Destination.Description, order.Destination.Lat, order.Destination.Lon,
		order.MerchantID, items, order.PaymentHint, order.AmountEstimate, order.ExtraNotes,
		order.Status, order.CreatedAt, order.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *store) Update(ctx context.Context, order *domain.Order) error {
	query := `
		UPDATE orders SET
			status = $2, assigned_driver_id = $3, last_updated = $4,
			assigned_at = $5, estimated_delivery_at = $6, actual_delivery_at = $7
		WHERE order_id = $1`

	result, err := s.db.ExecContext(ctx, query,
		order.OrderID, order.Status, nullIfEmpty(order.AssignedDriverID), order.LastUpdated,
		order.AssignedAt, order.EstimatedDeliveryAt, order.ActualDeliveryAt,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (s *store) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	query := `
		SELECT order_id, service_type, external_client_id, client_name, client_phone,
			origin_description, origin_lat, origin_lon,
			dest_description, dest_lat, dest_lon,
			merchant_id, items, payment_hint, amount_estimate, extra_notes,
			status, assigned_driver_id, created_at, last_updated,
			assigned_at, estimated_delivery_at, actual_delivery_at
		FROM orders WHERE order_id = $1`

	row := s.db.QueryRowContext(ctx, query, orderID)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	return order, err
}

func (s *store) GetByStatus(ctx context.Context, status domain.Status) ([]*domain.Order, error) {
	query := `
		SELECT order_id, service_type, external_client_id, client_name, client_phone,
			origin_description, origin_lat, origin_lon,
			dest_description, dest_lat, dest_lon,
			merchant_id, items, payment_hint, amount_estimate, extra_notes,
			status, assigned_driver_id, created_at, last_updated,
			assigned_at, estimated_delivery_at, actual_delivery_at
		FROM orders WHERE status = $1 ORDER BY created_at`
	return s.queryOrders(ctx, query, status)
}

func (s *store) GetByDriver(ctx context.Context, driverID string) ([]*domain.Order, error) {
	query := `
		SELECT order_id, service_type, external_client_id, client_name, client_phone,
			origin_description, origin_lat, origin_lon,
			dest_description, dest_lat, dest_lon,
			merchant_id, items, payment_hint, amount_estimate, extra_notes,
			status, assigned_driver_id, created_at, last_updated,
			assigned_at, estimated_delivery_at, actual_delivery_at
		FROM orders WHERE assigned_driver_id = $1 ORDER BY created_at`
	return s.queryOrders(ctx, query, driverID)
}

func (s *store) queryOrders(ctx context.Context, query string, arg any) ([]*domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*domain.Order, error) {
	var order domain.Order
	var items []byte
	var assignedDriverID sql.NullString

	err := row.Scan(
		&order.OrderID, &order.ServiceType, &order.ExternalClientID, &order.ClientName, &order.ClientPhone,
		&order.Origin.Description, &order.Origin.Lat, &order.Origin.Lon,
		&order.Destination.Description, &order.Destination.Lat, &order.Destination.Lon,
		&order.MerchantID, &items, &order.PaymentHint, &order.AmountEstimate, &order.ExtraNotes,
		&order.Status, &assignedDriverID, &order.CreatedAt, &order.LastUpdated,
		&order.AssignedAt, &order.EstimatedDeliveryAt, &order.ActualDeliveryAt,
	)
	if err != nil {
		return nil, err
	}

	order.AssignedDriverID = assignedDriverID.String
	if len(items) > 0 {
		if err := json.Unmarshal(items, &order.Items); err != nil {
			return nil, fmt.Errorf("unmarshal items: %w", err)
		}
	}
	return &order, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
