package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/pipetapasco/microservices-delivery-hub/common/broker"
	"github.com/pipetapasco/microservices-delivery-hub/common/domain"
	"github.com/pipetapasco/microservices-delivery-hub/common/metrics"
)

var (
	ErrDriverNotEligible  = errors.New("driver not eligible to accept a service")
	ErrDriverNotAvailable = errors.New("driver not currently available")
	ErrAcceptRaced        = errors.New("another acceptance won the race for this driver")
)

// acceptanceService implements C7: a driver re-checked for candidacy,
// flipped to en_servicio via a CAS, and the win published as an
// AcceptEvent — with the CAS rolled back if the publish fails.
// Grounded on service_history_service.py's accept_service_by_driver.
type acceptanceService struct {
	store   DriversStore
	channel *amqp.Channel
	metrics *metrics.DispatchMetrics
	logger  *slog.Logger
}

func NewAcceptanceService(store DriversStore, channel *amqp.Channel, m *metrics.DispatchMetrics, logger *slog.Logger) *acceptanceService {
	return &acceptanceService{store: store, channel: channel, metrics: m, logger: logger}
}

// Accept runs the full C7 protocol for driverID accepting orderID.
func (a *acceptanceService) Accept(ctx context.Context, driverID, orderID string) error {
	driver, err := a.store.GetDriver(ctx, driverID)
	if err != nil {
		return fmt.Errorf("get driver: %w", err)
	}

	if !driver.AccountActive || driver.ValidationState != domain.ValidationApproved {
		a.metrics.AcceptAttempts.WithLabelValues("not_eligible").Inc()
		return ErrDriverNotEligible
	}
	if driver.Availability != domain.AvailabilityAvailable {
		a.metrics.AcceptAttempts.WithLabelValues("not_available").Inc()
		return ErrDriverNotAvailable
	}

	won, err := a.store.SetAvailability(ctx, driverID, domain.AvailabilityAvailable, domain.AvailabilityOnService, orderID)
	if err != nil {
		a.metrics.AcceptAttempts.WithLabelValues("store_error").Inc()
		return fmt.Errorf("set availability: %w", err)
	}
	if !won {
		a.metrics.AcceptAttempts.WithLabelValues("raced").Inc()
		return ErrAcceptRaced
	}

	vehicle, err := a.store.GetActiveVehicle(ctx, driverID)
	plate := ""
	if err != nil {
		a.logger.Warn("driver has no active vehicle with a plate", slog.String("driver_id", driverID), slog.Any("error", err))
	} else {
		plate = vehicle.Plate
	}

	event := domain.AcceptEvent{
		OrderID:       orderID,
		DriverID:      driverID,
		DriverName:    driver.DisplayName,
		VehiclePlate:  plate,
		AcceptedAtUTC: time.Now().UTC(),
	}

	if err := a.publishAccept(ctx, event); err != nil {
		a.logger.Error("failed to publish accept event, reverting driver availability",
			slog.String("driver_id", driverID), slog.String("order_id", orderID), slog.Any("error", err))

		reverted, revertErr := a.store.SetAvailability(ctx, driverID, domain.AvailabilityOnService, domain.AvailabilityAvailable, "")
		if revertErr != nil || !reverted {
			a.logger.Error("ERROR CRITICO: failed to revert driver availability after publish failure",
				slog.String("driver_id", driverID), slog.Any("revert_error", revertErr))
		} else {
			a.logger.Info("driver availability reverted to disponible", slog.String("driver_id", driverID))
		}

		a.metrics.AcceptAttempts.WithLabelValues("publish_failed").Inc()
		return fmt.Errorf("publish accept event: %w", err)
	}

	a.metrics.AcceptAttempts.WithLabelValues("accepted").Inc()
	return nil
}

func (a *acceptanceService) publishAccept(ctx context.Context, event domain.AcceptEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal accept event: %w", err)
	}

	headers := broker.InjectTraceContext(ctx)
	return a.channel.PublishWithContext(ctx,
		broker.DispatchExchange,
		broker.RoutingConductorAcepto,
		false, false,
		amqp.Publishing{ContentType: "application/json", Body: body, Headers: headers},
	)
}
