package broker

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
)

// InjectTraceContext packs the current span's trace context into AMQP
// headers — RabbitMQ has no built-in propagation like gRPC metadata.
func InjectTraceContext(ctx context.Context) amqp.Table {
	headers := make(amqp.Table)
	carrier := &AMQPHeadersCarrier{headers: headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return headers
}

// ExtractTraceContext recovers the trace context a producer injected,
// so the consumer's span continues the same trace.
func ExtractTraceContext(ctx context.Context, headers amqp.Table) context.Context {
	carrier := &AMQPHeadersCarrier{headers: headers}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// AMQPHeadersCarrier adapts amqp.Table to propagation.TextMapCarrier.
type AMQPHeadersCarrier struct {
	headers amqp.Table
}

func (c *AMQPHeadersCarrier) Get(key string) string {
	if val, ok := c.headers[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func (c *AMQPHeadersCarrier) Set(key, value string) {
	c.headers[key] = value
}

func (c *AMQPHeadersCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for k := range c.headers {
		keys = append(keys, k)
	}
	return keys
}
