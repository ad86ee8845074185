package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"

	"github.com/pipetapasco/microservices-delivery-hub/common/broker"
	"github.com/pipetapasco/microservices-delivery-hub/common/domain"
	"github.com/pipetapasco/microservices-delivery-hub/common/metrics"
	"github.com/pipetapasco/microservices-delivery-hub/common/session"
)

// inboundConsumer is C4: the slot-filling state machine that drains
// incoming_messages and drives one dialogue turn per message. Grounded
// on workers/message_worker.py's process_message.
type inboundConsumer struct {
	sessions    *session.Store
	extractor   Extractor
	audio       *audioDownloader
	transcriber *transcriptionPool
	sender      ChatSender
	channel     *amqp.Channel
	metrics     *metrics.SessionMetrics
	log         *slog.Logger
}

func newInboundConsumer(sessions *session.Store, extractor Extractor, audio *audioDownloader, transcriber *transcriptionPool, sender ChatSender, channel *amqp.Channel, sessionMetrics *metrics.SessionMetrics, log *slog.Logger) *inboundConsumer {
	return &inboundConsumer{
		sessions:    sessions,
		extractor:   extractor,
		audio:       audio,
		transcriber: transcriber,
		sender:      sender,
		channel:     channel,
		metrics:     sessionMetrics,
		log:         log,
	}
}

func (c *inboundConsumer) Listen(ch *amqp.Channel) {
	msgs, err := ch.Consume(
		broker.IncomingMessagesQueue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		c.log.Error("failed to start consuming", slog.String("queue", broker.IncomingMessagesQueue), slog.Any("error", err))
		return
	}

	c.log.Info("waiting for incoming messages", slog.String("queue", broker.IncomingMessagesQueue))

	for d := range msgs {
		ctx := broker.ExtractTraceContext(context.Background(), d.Headers)
		tracer := otel.Tracer("chatbot")
		ctx, span := tracer.Start(ctx, "AMQP - consume - "+broker.RoutingMessageIncoming)

		var msg IncomingMessage
		if err := json.Unmarshal(d.Body, &msg); err != nil {
			c.log.Error("invalid incoming message payload, sending to DLX", slog.Any("error", err))
			d.Nack(false, false)
			span.End()
			continue
		}

		c.processMessage(ctx, msg)
		d.Ack(false)
		span.End()
	}
}

// processMessage runs one dialogue turn for msg (spec §4.4 steps 1-8).
// All paths release the processing lock; errors along the way are
// surfaced to the user as a chat reply, except a failed session load,
// which is only logged. None leads to a broker retry — the
// broker message is acked regardless, since the session store plus
// at-least-once delivery is the durability story, not queue redelivery.
func (c *inboundConsumer) processMessage(ctx context.Context, msg IncomingMessage) {
	sender := msg.SenderNumber

	acquired, err := c.sessions.TryAcquireProcessing(ctx, sender)
	if err != nil || !acquired {
		if err == nil {
			c.metrics.LockContentions.Inc()
		}
		c.sender.Send(ctx, sender, processingMessage)
		return
	}
	defer c.sessions.ReleaseProcessing(ctx, sender)

	data, err := c.sessions.Get(ctx, sender)
	if err != nil {
		c.log.Error("failed to load session", slog.String("sender", sender), slog.Any("error", err))
		return
	}

	dm := newDialogueManager(&data, msg.ProfileName)
	now := time.Now().UTC()

	if dm.shouldSendWelcome(now) {
		c.sender.Send(ctx, sender, welcomeMessage(dm.displayName()))
	}

	text, ok := c.resolveText(ctx, dm, msg)
	if !ok {
		data.LastSeen = now
		c.sessions.Save(ctx, sender, data)
		return
	}
	if text == "" {
		return
	}

	extracted, err := c.extractor.Extract(ctx, text)
	if err != nil {
		c.log.Warn("extraction failed", slog.String("sender", sender), slog.Any("error", err))
		c.sender.Send(ctx, sender, errorMessage("ai_error", dm.displayName()))
		return
	}
	dm.mergeFields(extracted)

	complete, prompt := dm.nextPrompt()
	if !complete {
		c.sender.Send(ctx, sender, prompt)
		data.LastSeen = now
		c.sessions.Save(ctx, sender, data)
		return
	}

	req := dm.buildOrderRequest(sender)
	if err := c.publishOrder(ctx, req); err != nil {
		c.log.Error("failed to publish order", slog.String("sender", sender), slog.Any("error", err))
		c.sender.Send(ctx, sender, errorMessage("order_failed", dm.displayName()))
		data.LastSeen = now
		c.sessions.Save(ctx, sender, data)
		return
	}

	c.sender.Send(ctx, sender, orderConfirmedMessage(string(req.ServiceType)))
	dm.clearOrder()
	data.LastSeen = now
	c.sessions.Save(ctx, sender, data)
}

// resolveText implements spec §4.4 step 3: text body used as-is, audio
// media validated/downloaded/transcribed, anything else unsupported.
// ok is false when a reply was already sent and no further processing
// should happen this turn.
func (c *inboundConsumer) resolveText(ctx context.Context, dm *dialogueManager, msg IncomingMessage) (string, bool) {
	switch {
	case msg.NumMedia > 0 && msg.MediaURL != "":
		if !strings.HasPrefix(msg.MediaContentType, "audio/") {
			c.sender.Send(ctx, msg.SenderNumber, errorMessage("unsupported_media", dm.displayName()))
			return "", false
		}

		path, err := c.audio.download(ctx, msg.MediaURL, msg.MediaContentType)
		if err != nil {
			c.log.Warn("audio download failed", slog.String("sender", msg.SenderNumber), slog.Any("error", err))
			c.sender.Send(ctx, msg.SenderNumber, errorMessage("audio_error", dm.displayName()))
			return "", false
		}

		text, err := c.transcriber.transcribe(ctx, path)
		if err != nil {
			c.log.Warn("transcription failed", slog.String("sender", msg.SenderNumber), slog.Any("error", err))
			c.sender.Send(ctx, msg.SenderNumber, errorMessage("audio_error", dm.displayName()))
			return "", false
		}
		if strings.TrimSpace(text) == "" {
			c.sender.Send(ctx, msg.SenderNumber, errorMessage("audio_not_understood", dm.displayName()))
			return "", false
		}
		return text, true

	case msg.MessageBody != "":
		return msg.MessageBody, true

	default:
		if !dm.shouldSendWelcome(time.Now().UTC()) {
			c.sender.Send(ctx, msg.SenderNumber, errorMessage("message_not_understood", dm.displayName()))
		}
		return "", false
	}
}

func (c *inboundConsumer) publishOrder(ctx context.Context, req domain.OrderCreateRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	headers := broker.InjectTraceContext(ctx)

	return c.channel.PublishWithContext(ctx,
		broker.PedidosExchange,
		broker.RoutingPedidoNuevo,
		false, false,
		amqp.Publishing{ContentType: "application/json", Body: body, Headers: headers, DeliveryMode: amqp.Persistent},
	)
}
