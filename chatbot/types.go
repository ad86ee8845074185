package main

import (
	"context"
	"time"
)

// IncomingMessage is what the webhook (C3) parses the provider's
// form-encoded payload into before publishing to incoming_messages_exchange.
// Grounded on original_source's IncomingMessagePayload schema.
type IncomingMessage struct {
	SenderNumber      string    `json:"sender_number"`
	ProfileName       string    `json:"profile_name,omitempty"`
	MessageBody       string    `json:"message_body,omitempty"`
	NumMedia          int       `json:"num_media"`
	MediaURL          string    `json:"media_url,omitempty"`
	MediaContentType  string    `json:"media_content_type,omitempty"`
	ReceivedAt        time.Time `json:"received_at"`
}

// ExtractedData is the normalized result of running free text through
// the external extraction collaborator (spec §4.4 step 4). Field names
// mirror original_source's GeminiExtractedData.
type ExtractedData struct {
	ServiceType    string `json:"tipo_servicio,omitempty"`
	Origin         string `json:"origen,omitempty"`
	Destination    string `json:"destino,omitempty"`
	UserName       string `json:"nombre_usuario,omitempty"`
	Phone          string `json:"telefono,omitempty"`
	PaymentMethod  string `json:"metodo_pago,omitempty"`
	Amount         string `json:"monto,omitempty"`
	ExtraNotes     string `json:"detalles_adicionales,omitempty"`
}

// AsMap flattens ExtractedData into the free-form key/value shape
// session.Data.CurrentOrder uses, skipping empty fields so the caller
// can merge only what was actually extracted.
func (e ExtractedData) AsMap() map[string]string {
	out := map[string]string{}
	add := func(key, value string) {
		if value != "" {
			out[key] = value
		}
	}
	add("tipo_servicio", e.ServiceType)
	add("origen", e.Origin)
	add("destino", e.Destination)
	add("nombre_usuario", e.UserName)
	add("telefono", e.Phone)
	add("metodo_pago", e.PaymentMethod)
	add("monto", e.Amount)
	add("detalles_adicionales", e.ExtraNotes)
	return out
}

// Extractor is the external LLM-extraction collaborator (spec §4.4 step
// 4). Its actual inference is out of scope (spec.md Non-goals); this
// module owns only the interface and the merge/prompt logic downstream
// of it.
type Extractor interface {
	Extract(ctx context.Context, text string) (ExtractedData, error)
}

// Transcriber is the external STT collaborator (spec §4.4 step 3).
// Real inference is out of scope; audio.go owns download/validation,
// not transcription itself.
type Transcriber interface {
	Transcribe(ctx context.Context, filepath string) (string, error)
}

// ChatSender is the outbound chat-send effect (spec §4.3 outbound leg):
// a single best-effort send(to, body) bool, with no wire format opinion
// (spec.md Non-goals: "the outbound chat provider's wire format beyond
// a send(to, body) bool effect").
type ChatSender interface {
	Send(ctx context.Context, to, body string) bool
}
