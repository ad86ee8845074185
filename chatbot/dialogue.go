package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/pipetapasco/microservices-delivery-hub/common/domain"
	"github.com/pipetapasco/microservices-delivery-hub/common/session"
)

// requiredFieldsPerService is REQUIRED_FIELDS_PER_SERVICE from
// original_source/services/dialogue_manager.py, restated in spec §4.4.
var requiredFieldsPerService = map[string][]string{
	"mototaxi":  {"nombre_usuario", "origen", "destino", "metodo_pago"},
	"domicilio": {"nombre_usuario", "destino", "metodo_pago", "detalles_adicionales"},
	"compras":   {"nombre_usuario", "detalles_adicionales", "destino", "metodo_pago"},
	"otro":      {"nombre_usuario", "detalles_adicionales", "metodo_pago"},
}

// welcomeTimeout is the "no active order and last_seen older than
// WELCOME_TIMEOUT" gate from spec §4.4 step 2.
const welcomeTimeout = 20 * time.Minute

// dialogueManager wraps a session's order-building state with the
// slot-filling operations C4 runs for each incoming message. Grounded
// on services/dialogue_manager.py's DialogueManager.
type dialogueManager struct {
	session     *session.Data
	profileName string
}

func newDialogueManager(s *session.Data, profileName string) *dialogueManager {
	return &dialogueManager{session: s, profileName: profileName}
}

// displayName truncates the sender's profile name to 50 characters,
// falling back to "there" when absent (original falls back to "tú";
// this repo's ambient tone uses English fallback text).
func (d *dialogueManager) displayName() string {
	name := d.profileName
	if len(name) > 50 {
		name = name[:50]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "there"
	}
	return name
}

// shouldSendWelcome mirrors UserSession.should_send_welcome: no active
// order data, no pending prompt, and last_seen older than the timeout.
func (d *dialogueManager) shouldSendWelcome(now time.Time) bool {
	if len(d.session.CurrentOrder) > 0 || d.session.AwaitingMore {
		return false
	}
	return d.session.LastSeen.IsZero() || now.Sub(d.session.LastSeen) > welcomeTimeout
}

// mergeFields merges extracted non-empty fields into the session's
// order data, trimmed and capped at 500 characters each (spec §4.4
// step 5; mirrors update_order_data).
func (d *dialogueManager) mergeFields(extracted ExtractedData) {
	for key, value := range extracted.AsMap() {
		cleaned := strings.TrimSpace(value)
		if cleaned == "" {
			continue
		}
		if len(cleaned) > 500 {
			cleaned = cleaned[:500]
		}
		d.session.CurrentOrder[key] = cleaned
	}
}

// nextPrompt computes what to ask the user next (spec §4.4 step 6).
// Returns (complete, message) — message is empty when complete.
func (d *dialogueManager) nextPrompt() (bool, string) {
	raw := d.session.CurrentOrder["tipo_servicio"]
	if strings.TrimSpace(raw) == "" {
		d.session.AwaitingMore = true
		return false, serviceTypePrompt(d.displayName())
	}
	serviceType := domain.NormalizeServiceType(raw)

	var missing []string
	for _, field := range requiredFieldsPerService[string(serviceType)] {
		if strings.TrimSpace(d.session.CurrentOrder[field]) == "" {
			missing = append(missing, strings.ReplaceAll(field, "_", " "))
		}
	}

	if len(missing) > 0 {
		d.session.AwaitingMore = true
		return false, missingFieldsPrompt(d.displayName(), string(serviceType), strings.Join(missing, ", "))
	}

	return true, ""
}

// buildOrderRequest assembles the wire payload orders (C5) consumes
// from pedidos_exchange (spec §4.4 step 7; mirrors build_order_payload).
func (d *dialogueManager) buildOrderRequest(sender string) domain.OrderCreateRequest {
	data := d.session.CurrentOrder
	serviceType := domain.NormalizeServiceType(data["tipo_servicio"])

	var amount *float64
	if raw := data["monto"]; raw != "" {
		if v, ok := parseAmount(raw); ok {
			amount = &v
		}
	}

	var items []domain.OrderCreateItem
	details := data["detalles_adicionales"]
	if (serviceType == domain.ServiceCompras || serviceType == domain.ServiceDomicilio) && details != "" {
		items = append(items, domain.OrderCreateItem{Name: details, Qty: 1})
	}

	name := data["nombre_usuario"]
	if name == "" {
		name = d.profileName
	}

	return domain.OrderCreateRequest{
		ExternalClientID: sender,
		ClientName:       name,
		ClientPhone:      sender,
		ServiceType:      serviceType,
		Origin:           data["origen"],
		Destination:      data["destino"],
		ExtraNotes:       details,
		PaymentHint:      data["metodo_pago"],
		AmountEstimate:   amount,
		Items:            items,
	}
}

// clearOrder resets order-building state after a successful submission.
func (d *dialogueManager) clearOrder() {
	d.session.CurrentOrder = map[string]string{}
	d.session.AwaitingMore = false
}

// parseAmount keeps digits and the decimal point, mirroring the
// original's character-filter before float parsing.
func parseAmount(raw string) (float64, bool) {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
