package main

import (
	"context"
	"encoding/json"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"

	"github.com/pipetapasco/microservices-delivery-hub/common/broker"
	"github.com/pipetapasco/microservices-delivery-hub/common/domain"
)

// consumer drains cola_actualizaciones_pedido for the accept event C7
// publishes once a driver wins a dispatch, applying it as an
// AssignDriver call against the order state machine.
type consumer struct {
	service OrdersService
	logger  *slog.Logger
}

func NewConsumer(service OrdersService, logger *slog.Logger) *consumer {
	return &consumer{service: service, logger: logger}
}

func (c *consumer) Listen(ch *amqp.Channel) {
	msgs, err := ch.Consume(
		broker.ActualizacionesQueue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		c.logger.Error("failed to start consuming", slog.String("queue", broker.ActualizacionesQueue), slog.Any("error", err))
		return
	}

	c.logger.Info("waiting for accept events", slog.String("queue", broker.ActualizacionesQueue))

	for d := range msgs {
		ctx := broker.ExtractTraceContext(context.Background(), d.Headers)
		tracer := otel.Tracer("orders")
		ctx, span := tracer.Start(ctx, "AMQP - consume - "+broker.RoutingConductorAcepto)

		var event domain.AcceptEvent
		if err := json.Unmarshal(d.Body, &event); err != nil {
			c.logger.Error("failed to unmarshal accept event", slog.Any("error", err))
			nacked, retryErr := broker.HandleRetry(ch, &d)
			if retryErr != nil {
				c.logger.Error("error handling retry", slog.Any("error", retryErr))
			}
			if !nacked {
				d.Nack(false, false)
			}
			span.End()
			continue
		}

		if _, err := c.service.AssignDriver(ctx, event.OrderID, event.DriverID, event.DriverName, event.VehiclePlate); err != nil {
			c.logger.Error("failed to assign driver",
				slog.String("order_id", event.OrderID),
				slog.String("driver_id", event.DriverID),
				slog.Any("error", err),
			)
			nacked, retryErr := broker.HandleRetry(ch, &d)
			if retryErr != nil {
				c.logger.Error("error handling retry", slog.Any("error", retryErr))
			}
			if !nacked {
				d.Nack(false, false)
			}
			span.End()
			continue
		}

		d.Ack(false)
		c.logger.Info("order assigned",
			slog.String("order_id", event.OrderID),
			slog.String("driver_id", event.DriverID),
		)
		span.End()
	}
}
