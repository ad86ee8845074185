// Package broker owns RabbitMQ connection setup and the topology every
// service in the platform shares: three durable direct exchanges carrying
// five queue bindings, each queue paired with its own dead-letter
// exchange/queue (spec §4.2, P5).
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange names.
const (
	IncomingMessagesExchange = "incoming_messages_exchange"
	PedidosExchange          = "pedidos_exchange"
	DispatchExchange         = "dispatch_exchange"
)

// Queue names.
const (
	IncomingMessagesQueue  = "incoming_messages"
	PedidosNuevosQueue     = "cola_pedidos_nuevos"
	DespachoMototaxisQueue = "cola_despacho_mototaxis"
	ActualizacionesQueue   = "cola_actualizaciones_pedido"
	NotificacionesQueue    = "cola_notificaciones_cliente_bot"
)

// Routing keys.
const (
	RoutingMessageIncoming        = "message.incoming"
	RoutingPedidoNuevo            = "pedido.nuevo"
	RoutingPedidoRequiereMototaxi = "pedido.requiere_mototaxi"
	RoutingConductorAcepto        = "pedido.conductor_acepto"
	RoutingAsignadoNotificar      = "pedido.asignado_notificar_cliente"
)

// MaxRetryCount bounds HandleRetry's in-queue retries before a message
// is routed to its queue's dead-letter queue.
const MaxRetryCount = 3

// channel describes one (exchange, queue, routing key) binding. Each
// gets its own DLX/DLQ pair named "<exchange>_dlx" / "<queue>_dlx".
type channel struct {
	exchange   string
	queue      string
	routingKey string
}

var channels = []channel{
	{IncomingMessagesExchange, IncomingMessagesQueue, RoutingMessageIncoming},
	{PedidosExchange, PedidosNuevosQueue, RoutingPedidoNuevo},
	{DispatchExchange, DespachoMototaxisQueue, RoutingPedidoRequiereMototaxi},
	{DispatchExchange, ActualizacionesQueue, RoutingConductorAcepto},
	{DispatchExchange, NotificacionesQueue, RoutingAsignadoNotificar},
}

// Connect dials RabbitMQ, opens a channel, and idempotently declares
// every exchange/queue/DLX in the topology (R2: declaring twice is a
// no-op because amqp's Declare calls are themselves idempotent).
func Connect(user, pass, host, port string) (*amqp.Channel, func() error, error) {
	address := fmt.Sprintf("amqp://%s:%s@%s:%s/", user, pass, host, port)

	conn, err := amqp.Dial(address)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare topology: %w", err)
	}

	close := func() error {
		if err := ch.Close(); err != nil {
			return err
		}
		return conn.Close()
	}

	return ch, close, nil
}

func declareTopology(ch *amqp.Channel) error {
	exchanges := map[string]bool{}
	for _, c := range channels {
		exchanges[c.exchange] = true
	}
	for exchange := range exchanges {
		if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", exchange, err)
		}
	}

	for _, c := range channels {
		if _, err := ch.QueueDeclare(c.queue, true, false, false, false, amqp.Table{
			"x-dead-letter-exchange":    c.exchange + "_dlx",
			"x-dead-letter-routing-key": c.routingKey + ".dead",
		}); err != nil {
			return fmt.Errorf("declare queue %s: %w", c.queue, err)
		}
		if err := ch.QueueBind(c.queue, c.routingKey, c.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", c.queue, err)
		}

		dlx := c.exchange + "_dlx"
		if err := ch.ExchangeDeclare(dlx, "direct", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare dlx %s: %w", dlx, err)
		}
		dlq := c.queue + "_dlx"
		if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare dlq %s: %w", dlq, err)
		}
		if err := ch.QueueBind(dlq, c.routingKey+".dead", dlx, false, nil); err != nil {
			return fmt.Errorf("bind dlq %s: %w", dlq, err)
		}
	}

	slog.Info("broker topology declared", slog.Int("channels", len(channels)))
	return nil
}

// HandleRetry republishes a failed delivery with an incrementing
// x-retry-count header and exponential backoff, up to MaxRetryCount;
// past that it nacks without requeue so RabbitMQ routes the message to
// its queue's DLX. The nacked return reports whether HandleRetry already
// nacked d (the dead-letter branch) — callers must not nack d themselves
// when nacked is true, or they double-nack the same delivery tag, which
// RabbitMQ answers with a channel-closing protocol error.
func HandleRetry(ch *amqp.Channel, d *amqp.Delivery) (nacked bool, err error) {
	if d.Headers == nil {
		d.Headers = amqp.Table{}
	}

	retryCount, _ := d.Headers["x-retry-count"].(int64)
	retryCount++
	d.Headers["x-retry-count"] = retryCount

	if retryCount >= MaxRetryCount {
		slog.Warn("max retries reached, routing to dead-letter queue",
			slog.String("routing_key", d.RoutingKey), slog.Int64("retries", retryCount))
		return true, d.Nack(false, false)
	}

	time.Sleep(time.Second * time.Duration(retryCount))

	err = ch.PublishWithContext(
		context.Background(),
		d.Exchange,
		d.RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Headers:      d.Headers,
			Body:         d.Body,
			DeliveryMode: amqp.Persistent,
		},
	)
	return false, err
}
