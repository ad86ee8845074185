package main

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"

	"github.com/pipetapasco/microservices-delivery-hub/common/broker"
	"github.com/pipetapasco/microservices-delivery-hub/common/domain"
)

// orderCreateConsumer drains cola_pedidos_nuevos, the queue the
// chatbot's dialogue engine publishes a completed slot-filling session
// to. It is one of the two paths that create orders; POST /api/v1/orders
// is the other.
type orderCreateConsumer struct {
	service OrdersService
	logger  *slog.Logger
}

func NewOrderCreateConsumer(service OrdersService, logger *slog.Logger) *orderCreateConsumer {
	return &orderCreateConsumer{service: service, logger: logger}
}

func (c *orderCreateConsumer) Listen(ch *amqp.Channel) {
	msgs, err := ch.Consume(
		broker.PedidosNuevosQueue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		c.logger.Error("failed to start consuming", slog.String("queue", broker.PedidosNuevosQueue), slog.Any("error", err))
		return
	}

	c.logger.Info("waiting for new order requests", slog.String("queue", broker.PedidosNuevosQueue))

	for d := range msgs {
		ctx := broker.ExtractTraceContext(context.Background(), d.Headers)
		tracer := otel.Tracer("orders")
		ctx, span := tracer.Start(ctx, "AMQP - consume - "+broker.RoutingPedidoNuevo)

		var req domain.OrderCreateRequest
		if err := json.Unmarshal(d.Body, &req); err != nil {
			c.logger.Error("failed to unmarshal order create request", slog.Any("error", err))
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

		order := requestToOrder(req)
		if _, err := c.service.CreateOrder(ctx, order); err != nil {
			c.logger.Error("failed to create order",
				slog.String("external_client_id", req.ExternalClientID),
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
		c.logger.Info("order created from chat request",
			slog.String("order_id", order.OrderID),
			slog.String("external_client_id", req.ExternalClientID),
		)
		span.End()
	}
}

func requestToOrder(req domain.OrderCreateRequest) *domain.Order {
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.OrderItem{ItemName: it.Name, Qty: it.Qty})
	}

	return &domain.Order{
		OrderID:          uuid.NewString(),
		ServiceType:      domain.NormalizeServiceType(string(req.ServiceType)),
		ExternalClientID: req.ExternalClientID,
		ClientName:       req.ClientName,
		ClientPhone:      req.ClientPhone,
		Origin:           domain.Point{Description: req.Origin},
		Destination:      domain.Point{Description: req.Destination},
		MerchantID:       req.MerchantID,
		Items:            items,
		PaymentHint:      req.PaymentHint,
		AmountEstimate:   req.AmountEstimate,
		ExtraNotes:       req.ExtraNotes,
	}
}
