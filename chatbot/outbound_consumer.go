package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"

	"github.com/pipetapasco/microservices-delivery-hub/common/broker"
	"github.com/pipetapasco/microservices-delivery-hub/common/domain"
)

// maxOutboundMessageLength is the outbound chat provider's body cap
// (spec §4.3 outbound leg; mirrors client_notification_consumer.py's
// MAX_MESSAGE_LENGTH).
const maxOutboundMessageLength = 1600

// outboundConsumer is C3's outbound leg: it drains
// cola_notificaciones_cliente_bot and calls the chat-send effect with a
// sanitized body. Grounded on consumers/client_notification_consumer.py.
type outboundConsumer struct {
	sender ChatSender
	log    *slog.Logger
}

func newOutboundConsumer(sender ChatSender, log *slog.Logger) *outboundConsumer {
	return &outboundConsumer{sender: sender, log: log}
}

func (c *outboundConsumer) Listen(ch *amqp.Channel) {
	msgs, err := ch.Consume(
		broker.NotificacionesQueue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		c.log.Error("failed to start consuming", slog.String("queue", broker.NotificacionesQueue), slog.Any("error", err))
		return
	}

	c.log.Info("waiting for client notification events", slog.String("queue", broker.NotificacionesQueue))

	for d := range msgs {
		ctx := broker.ExtractTraceContext(context.Background(), d.Headers)
		tracer := otel.Tracer("chatbot")
		_, span := tracer.Start(ctx, "AMQP - consume - "+broker.RoutingAsignadoNotificar)

		var event domain.ClientNotificationEvent
		if err := json.Unmarshal(d.Body, &event); err != nil {
			c.log.Error("invalid client notification payload", slog.Any("error", err))
			d.Ack(false)
			span.End()
			continue
		}

		if event.ClientPhone == "" {
			c.log.Error("client notification event missing phone number", slog.String("order_id", event.OrderID))
			d.Ack(false)
			span.End()
			continue
		}

		body := sanitizeOutbound(driverAssignedMessage(event.DriverName, event.VehiclePlate))

		// Best-effort notification: the send outcome is logged, not
		// retried — the event is informational, not the system of
		// record (spec §4.3 outbound leg).
		if !c.sender.Send(ctx, event.ClientPhone, body) {
			c.log.Warn("chat send failed", slog.String("order_id", event.OrderID))
		}

		d.Ack(false)
		span.End()
	}
}

func sanitizeOutbound(body string) string {
	trimmed := strings.TrimSpace(body)
	if len(trimmed) > maxOutboundMessageLength {
		trimmed = trimmed[:maxOutboundMessageLength]
	}
	return trimmed
}
