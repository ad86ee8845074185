package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/pipetapasco/microservices-delivery-hub/common/broker"
	"github.com/pipetapasco/microservices-delivery-hub/common/domain"
)

type service struct {
	store   OrdersStore
	channel *amqp.Channel
	logger  *slog.Logger
}

func NewService(store OrdersStore, channel *amqp.Channel, logger *slog.Logger) *service {
	return &service{store: store, channel: channel, logger: logger}
}

// CreateOrder persists a new order as "confirmado", then unconditionally
// advances it to "buscando_conductor" and publishes the dispatch event
// C6 fans out to candidate drivers (spec §4.5) — every service type is
// dispatched, not just mototaxi.
func (s *service) CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	now := time.Now().UTC()
	order.Status = domain.StatusConfirmado
	order.CreatedAt = now
	order.LastUpdated = now

	if err := s.store.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if _, err := s.UpdateStatus(ctx, order.OrderID, domain.StatusBuscandoConductor); err != nil {
		s.logger.Error("failed to advance order to buscando_conductor", slog.String("order_id", order.OrderID), slog.Any("error", err))
		return s.store.Get(ctx, order.OrderID)
	}
	if err := s.publishDispatchEvent(ctx, order); err != nil {
		s.logger.Error("failed to publish dispatch event", slog.String("order_id", order.OrderID), slog.Any("error", err))
	}

	return s.store.Get(ctx, order.OrderID)
}

// UpdateStatus applies a status transition, rejecting edges that are
// not in the allowed matrix (invariant P1).
func (s *service) UpdateStatus(ctx context.Context, orderID string, to domain.Status) (*domain.Order, error) {
	order, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !domain.CanTransition(order.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrTransitionForbidden, order.Status, to)
	}

	order.Status = to
	order.LastUpdated = time.Now().UTC()
	if err := s.store.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	return order, nil
}

// AssignDriver applies the accept event (C7): transitions the order to
// asignado_conductor and publishes the client notification event for
// the chatbot's outbound leg to pick up.
func (s *service) AssignDriver(ctx context.Context, orderID, driverID, driverName, vehiclePlate string) (*domain.Order, error) {
	order, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !domain.IsAssignable(order.Status) {
		return nil, fmt.Errorf("%w: order %s is not assignable from %s", domain.ErrTransitionForbidden, orderID, order.Status)
	}

	now := time.Now().UTC()
	order.Status = domain.StatusAsignadoConductor
	order.AssignedDriverID = driverID
	order.AssignedAt = &now
	order.LastUpdated = now

	if err := s.store.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("assign driver: %w", err)
	}

	if err := s.publishClientNotification(ctx, order, driverName, vehiclePlate); err != nil {
		s.logger.Error("failed to publish client notification event", slog.String("order_id", orderID), slog.Any("error", err))
	}

	return order, nil
}

func (s *service) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.store.Get(ctx, orderID)
}

func (s *service) GetByStatus(ctx context.Context, status domain.Status) ([]*domain.Order, error) {
	return s.store.GetByStatus(ctx, status)
}

func (s *service) GetByDriver(ctx context.Context, driverID string) ([]*domain.Order, error) {
	return s.store.GetByDriver(ctx, driverID)
}

func (s *service) publishDispatchEvent(ctx context.Context, order *domain.Order) error {
	event := domain.DispatchEvent{
		OrderID:           order.OrderID,
		ServiceType:       order.ServiceType,
		OriginDescription: order.Origin.Description,
		OriginLat:         order.Origin.Lat,
		OriginLon:         order.Origin.Lon,
		DestDescription:   order.Destination.Description,
		DestLat:           order.Destination.Lat,
		DestLon:           order.Destination.Lon,
		ClientName:        order.ClientName,
		ClientPhone:       order.ClientPhone,
		MerchantID:        order.MerchantID,
		Items:             order.Items,
		ExtraNotes:        order.ExtraNotes,
		PaymentHint:       order.PaymentHint,
		AmountEstimate:    order.AmountEstimate,
		CreatedAtUTC:      order.CreatedAt.Format(time.RFC3339),
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal dispatch event: %w", err)
	}

	headers := broker.InjectTraceContext(ctx)

	return s.channel.PublishWithContext(ctx,
		broker.DispatchExchange,
		broker.RoutingPedidoRequiereMototaxi,
		false, false,
		amqp.Publishing{ContentType: "application/json", Body: body, Headers: headers},
	)
}

func (s *service) publishClientNotification(ctx context.Context, order *domain.Order, driverName, vehiclePlate string) error {
	event := domain.ClientNotificationEvent{
		OrderID:      order.OrderID,
		ClientPhone:  order.ClientPhone,
		DriverName:   driverName,
		VehiclePlate: vehiclePlate,
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal client notification event: %w", err)
	}

	headers := broker.InjectTraceContext(ctx)

	return s.channel.PublishWithContext(ctx,
		broker.DispatchExchange,
		broker.RoutingAsignadoNotificar,
		false, false,
		amqp.Publishing{ContentType: "application/json", Body: body, Headers: headers},
	)
}
