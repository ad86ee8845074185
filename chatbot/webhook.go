package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pipetapasco/microservices-delivery-hub/common/broker"
	"github.com/pipetapasco/microservices-delivery-hub/common/metrics"
	"github.com/pipetapasco/microservices-delivery-hub/common/session"
)

// webhookHandler implements C3: validate, rate-limit, parse, publish,
// respond immediately. All heavy work is deferred to the dialogue
// engine's queue consumer. Grounded on original_source's api/webhook.py.
type webhookHandler struct {
	sharedSecret string
	maxBodyBytes int64
	sessions     *session.Store
	channel      *amqp.Channel
	metrics      *metrics.SessionMetrics
	log          *slog.Logger
}

func newWebhookHandler(sharedSecret string, maxBodyBytes int64, sessions *session.Store, channel *amqp.Channel, sessionMetrics *metrics.SessionMetrics, log *slog.Logger) *webhookHandler {
	return &webhookHandler{
		sharedSecret: sharedSecret,
		maxBodyBytes: maxBodyBytes,
		sessions:     sessions,
		channel:      channel,
		metrics:      sessionMetrics,
		log:          log,
	}
}

const rateLimitRequests = 30
const rateLimitWindow = 60 * time.Second

func (h *webhookHandler) registerRoutes(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("POST /webhook", h.handleWebhook)
	mux.HandleFunc("GET /health", h.handleHealth)
}

// handleHealth reports 200 only if the session store is reachable,
// else 503 (spec §6) — the webhook can't validate rate limits or
// sessions at all once Redis is down, so a healthy response would lie.
func (h *webhookHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Ping(r.Context()); err != nil {
		h.log.Warn("health check failed: session store unreachable", slog.Any("error", err))
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleWebhook implements the exact error mapping from spec §4.3:
// missing secret -> 503, invalid signature or oversize -> 403, rate
// limit -> 429 with empty body, broker failure -> 503, anything else -> 500.
func (h *webhookHandler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if h.sharedSecret == "" {
		h.log.Error("webhook signature secret not configured, refusing to run unsigned")
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	if r.ContentLength > h.maxBodyBytes {
		h.log.Warn("webhook request too large", slog.Int64("content_length", r.ContentLength))
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.log.Warn("failed to parse webhook form", slog.Any("error", err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if !h.validSignature(r) {
		h.log.Warn("invalid webhook signature rejected")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	sender := r.Form.Get("From")
	if sender == "" {
		sender = r.RemoteAddr
	}

	if !h.sessions.Allow(r.Context(), sender, rateLimitRequests, rateLimitWindow) {
		h.metrics.RateLimitRejections.Inc()
		h.log.Warn("rate limit exceeded", slog.String("sender", sender))
		w.Header().Set("Content-Type", "text/xml")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("<Response/>"))
		return
	}

	msg := h.buildMessage(r)
	if msg.SenderNumber == "" {
		// No sender to reply to — acknowledge without publishing.
		h.respondXML(w)
		return
	}

	if err := h.publish(r.Context(), msg); err != nil {
		h.log.Error("failed to publish incoming message", slog.Any("error", err))
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	h.respondXML(w)
}

func (h *webhookHandler) respondXML(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/xml")
	w.Write([]byte("<Response/>"))
}

// validSignature verifies the provider's shared-secret signature using
// an HMAC-SHA1 construction over the request URL plus sorted form
// values, base64-encoded — the generic shape of a Twilio-style webhook
// signature (grounded on api/webhook.py's RequestValidator usage; the
// construction itself is stdlib since no signing SDK appears anywhere
// in the example pack).
func (h *webhookHandler) validSignature(r *http.Request) bool {
	signature := r.Header.Get("X-Signature")
	if signature == "" {
		return false
	}

	mac := hmac.New(sha1.New, []byte(h.sharedSecret))
	mac.Write([]byte(r.URL.String()))
	for _, key := range sortedKeys(r.Form) {
		for _, v := range r.Form[key] {
			mac.Write([]byte(key))
			mac.Write([]byte(v))
		}
	}
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func sortedKeys(values map[string][]string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

func (h *webhookHandler) buildMessage(r *http.Request) IncomingMessage {
	numMedia, _ := strconv.Atoi(r.Form.Get("NumMedia"))

	msg := IncomingMessage{
		SenderNumber: r.Form.Get("From"),
		ProfileName:  r.Form.Get("ProfileName"),
		MessageBody:  truncate(r.Form.Get("Body"), 2000),
		NumMedia:     numMedia,
		ReceivedAt:   time.Now().UTC(),
	}
	if numMedia > 0 {
		msg.MediaURL = r.Form.Get("MediaUrl0")
		msg.MediaContentType = r.Form.Get("MediaContentType0")
	}
	return msg
}

func (h *webhookHandler) publish(ctx context.Context, msg IncomingMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal incoming message: %w", err)
	}

	headers := broker.InjectTraceContext(ctx)

	return h.channel.PublishWithContext(ctx,
		broker.IncomingMessagesExchange,
		broker.RoutingMessageIncoming,
		false, false,
		amqp.Publishing{ContentType: "application/json", Body: body, Headers: headers, DeliveryMode: amqp.Persistent},
	)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
