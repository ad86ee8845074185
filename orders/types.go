package main

import (
	"context"

	"github.com/pipetapasco/microservices-delivery-hub/common/domain"
)

// OrdersService is the order lifecycle contract (C5): creation,
// status transitions, and lookups for the HTTP surface and the
// accept-event consumer.
type OrdersService interface {
	CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, to domain.Status) (*domain.Order, error)
	AssignDriver(ctx context.Context, orderID, driverID, driverName, vehiclePlate string) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	GetByStatus(ctx context.Context, status domain.Status) ([]*domain.Order, error)
	GetByDriver(ctx context.Context, driverID string) ([]*domain.Order, error)
}

// OrdersStore is the persistence contract backing OrdersService.
type OrdersStore interface {
	Create(ctx context.Context, order *domain.Order) error
	Update(ctx context.Context, order *domain.Order) error
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	GetByStatus(ctx context.Context, status domain.Status) ([]*domain.Order, error)
	GetByDriver(ctx context.Context, driverID string) ([]*domain.Order, error)
}
