package main

import (
	"context"
	"encoding/json"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"

	"github.com/pipetapasco/microservices-delivery-hub/common/broker"
	"github.com/pipetapasco/microservices-delivery-hub/common/domain"
	"github.com/pipetapasco/microservices-delivery-hub/common/metrics"
)

// dispatchNotification is what gets pushed to each candidate driver's
// connection — the whole DispatchEvent plus a message discriminator,
// grounded on dispatch_event_consumer.py's notificacion_payload shape.
type dispatchNotification struct {
	Type string               `json:"type"`
	Data domain.DispatchEvent `json:"data"`
}

// consumer drains cola_despacho_mototaxis (C6): for each dispatch
// event it loads every available/validated/active driver and pushes a
// notification to whichever of them currently has a live connection.
type consumer struct {
	store    DriversStore
	registry *connectionRegistry
	metrics  *metrics.DispatchMetrics
	logger   *slog.Logger
}

func NewConsumer(store DriversStore, registry *connectionRegistry, m *metrics.DispatchMetrics, logger *slog.Logger) *consumer {
	return &consumer{store: store, registry: registry, metrics: m, logger: logger}
}

func (c *consumer) Listen(ch *amqp.Channel) {
	msgs, err := ch.Consume(broker.DespachoMototaxisQueue, "", false, false, false, false, nil)
	if err != nil {
		c.logger.Error("failed to start consuming", slog.String("queue", broker.DespachoMototaxisQueue), slog.Any("error", err))
		return
	}

	c.logger.Info("waiting for dispatch events", slog.String("queue", broker.DespachoMototaxisQueue))

	for d := range msgs {
		ctx := broker.ExtractTraceContext(context.Background(), d.Headers)
		tracer := otel.Tracer("drivers")
		ctx, span := tracer.Start(ctx, "AMQP - consume - "+broker.RoutingPedidoRequiereMototaxi)

		var event domain.DispatchEvent
		if err := json.Unmarshal(d.Body, &event); err != nil {
			c.logger.Error("failed to unmarshal dispatch event", slog.Any("error", err))
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

		c.fanOut(ctx, event)
		d.Ack(false)
		span.End()
	}
}

func (c *consumer) fanOut(ctx context.Context, event domain.DispatchEvent) {
	candidates, err := c.store.GetAvailableCandidates(ctx, 1000)
	if err != nil {
		c.logger.Error("failed to load candidates", slog.String("order_id", event.OrderID), slog.Any("error", err))
		return
	}
	if len(candidates) == 0 {
		c.logger.Warn("no candidate drivers found for order", slog.String("order_id", event.OrderID))
		return
	}

	notification := dispatchNotification{Type: "nuevo_servicio_disponible", Data: event}

	sent := 0
	for _, candidate := range candidates {
		if c.registry.send(candidate.DriverID, notification) {
			sent++
			c.metrics.PushesSent.Inc()
		} else {
			c.metrics.PushesDropped.Inc()
		}
	}

	c.logger.Info("dispatch notifications sent",
		slog.String("order_id", event.OrderID),
		slog.Int("sent", sent),
		slog.Int("candidates", len(candidates)),
	)
}
