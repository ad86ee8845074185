package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipetapasco/microservices-delivery-hub/common/domain"
	"github.com/pipetapasco/microservices-delivery-hub/common/session"
)

func newTestSession() *session.Data {
	return &session.Data{CurrentOrder: map[string]string{}}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name    string
		profile string
		want    string
	}{
		{"uses profile name", "Maria", "Maria"},
		{"falls back when empty", "", "there"},
		{"falls back when only whitespace", "   ", "there"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dm := newDialogueManager(newTestSession(), tt.profile)
			assert.Equal(t, tt.want, dm.displayName())
		})
	}
}

func TestDisplayNameTruncatesTo50Chars(t *testing.T) {
	long := strings.Repeat("a", 80)
	dm := newDialogueManager(newTestSession(), long)
	assert.Len(t, dm.displayName(), 50)
}

func TestShouldSendWelcome(t *testing.T) {
	now := time.Now().UTC()

	t.Run("zero last seen with no order sends welcome", func(t *testing.T) {
		dm := newDialogueManager(newTestSession(), "x")
		assert.True(t, dm.shouldSendWelcome(now))
	})

	t.Run("recent last seen does not send welcome", func(t *testing.T) {
		s := newTestSession()
		s.LastSeen = now.Add(-5 * time.Minute)
		dm := newDialogueManager(s, "x")
		assert.False(t, dm.shouldSendWelcome(now))
	})

	t.Run("last seen beyond timeout sends welcome again", func(t *testing.T) {
		s := newTestSession()
		s.LastSeen = now.Add(-welcomeTimeout - time.Minute)
		dm := newDialogueManager(s, "x")
		assert.True(t, dm.shouldSendWelcome(now))
	})

	t.Run("active order in progress suppresses welcome regardless of timeout", func(t *testing.T) {
		s := newTestSession()
		s.LastSeen = now.Add(-2 * welcomeTimeout)
		s.CurrentOrder["tipo_servicio"] = "mototaxi"
		dm := newDialogueManager(s, "x")
		assert.False(t, dm.shouldSendWelcome(now))
	})

	t.Run("awaiting more info suppresses welcome", func(t *testing.T) {
		s := newTestSession()
		s.LastSeen = now.Add(-2 * welcomeTimeout)
		s.AwaitingMore = true
		dm := newDialogueManager(s, "x")
		assert.False(t, dm.shouldSendWelcome(now))
	})
}

func TestMergeFields(t *testing.T) {
	dm := newDialogueManager(newTestSession(), "x")

	long := ""
	for i := 0; i < 600; i++ {
		long += "a"
	}

	dm.mergeFields(ExtractedData{
		ServiceType: "mototaxi",
		Origin:      "  avenida siempre viva 123  ",
		ExtraNotes:  long,
		Amount:      "",
	})

	assert.Equal(t, "mototaxi", dm.session.CurrentOrder["tipo_servicio"])
	assert.Equal(t, "avenida siempre viva 123", dm.session.CurrentOrder["origen"])
	assert.Len(t, dm.session.CurrentOrder["detalles_adicionales"], 500)
	_, hasAmount := dm.session.CurrentOrder["monto"]
	assert.False(t, hasAmount, "empty extracted fields must not be merged in")
}

func TestNextPrompt(t *testing.T) {
	t.Run("asks for service type first", func(t *testing.T) {
		dm := newDialogueManager(newTestSession(), "Maria")
		complete, prompt := dm.nextPrompt()
		assert.False(t, complete)
		assert.NotEmpty(t, prompt)
		assert.True(t, dm.session.AwaitingMore)
	})

	t.Run("lists missing fields for a partially filled mototaxi order", func(t *testing.T) {
		s := newTestSession()
		s.CurrentOrder["tipo_servicio"] = "mototaxi"
		s.CurrentOrder["nombre_usuario"] = "Maria"
		dm := newDialogueManager(s, "Maria")

		complete, prompt := dm.nextPrompt()
		assert.False(t, complete)
		assert.NotEmpty(t, prompt)
	})

	t.Run("complete once every required field for the service type is set", func(t *testing.T) {
		s := newTestSession()
		s.CurrentOrder["tipo_servicio"] = "mototaxi"
		s.CurrentOrder["nombre_usuario"] = "Maria"
		s.CurrentOrder["origen"] = "casa"
		s.CurrentOrder["destino"] = "trabajo"
		s.CurrentOrder["metodo_pago"] = "efectivo"
		dm := newDialogueManager(s, "Maria")

		complete, prompt := dm.nextPrompt()
		assert.True(t, complete)
		assert.Empty(t, prompt)
	})

	t.Run("unrecognized service type falls back to otro's required fields", func(t *testing.T) {
		s := newTestSession()
		s.CurrentOrder["tipo_servicio"] = "algo raro"
		s.CurrentOrder["nombre_usuario"] = "Maria"
		s.CurrentOrder["detalles_adicionales"] = "quiero un paquete"
		s.CurrentOrder["metodo_pago"] = "efectivo"
		dm := newDialogueManager(s, "Maria")

		complete, _ := dm.nextPrompt()
		assert.True(t, complete)
	})
}

func TestBuildOrderRequest(t *testing.T) {
	t.Run("compras order folds extra notes into a single line item", func(t *testing.T) {
		s := newTestSession()
		s.CurrentOrder["tipo_servicio"] = "compras"
		s.CurrentOrder["nombre_usuario"] = "Maria"
		s.CurrentOrder["destino"] = "casa"
		s.CurrentOrder["metodo_pago"] = "tarjeta"
		s.CurrentOrder["detalles_adicionales"] = "dos pizzas grandes"
		s.CurrentOrder["monto"] = "25.50 soles"
		dm := newDialogueManager(s, "Maria")

		req := dm.buildOrderRequest("+51999999999")

		assert.Equal(t, domain.ServiceCompras, req.ServiceType)
		assert.Equal(t, "+51999999999", req.ExternalClientID)
		assert.Equal(t, "+51999999999", req.ClientPhone)
		require.Len(t, req.Items, 1)
		assert.Equal(t, "dos pizzas grandes", req.Items[0].Name)
		require.NotNil(t, req.AmountEstimate)
		assert.InDelta(t, 25.50, *req.AmountEstimate, 0.001)
	})

	t.Run("mototaxi order has no synthesized line items", func(t *testing.T) {
		s := newTestSession()
		s.CurrentOrder["tipo_servicio"] = "mototaxi"
		s.CurrentOrder["nombre_usuario"] = "Maria"
		s.CurrentOrder["origen"] = "casa"
		s.CurrentOrder["destino"] = "trabajo"
		s.CurrentOrder["metodo_pago"] = "efectivo"
		dm := newDialogueManager(s, "Maria")

		req := dm.buildOrderRequest("+51999999999")
		assert.Empty(t, req.Items)
		assert.Nil(t, req.AmountEstimate)
	})

	t.Run("falls back to profile name when no name was extracted", func(t *testing.T) {
		s := newTestSession()
		s.CurrentOrder["tipo_servicio"] = "otro"
		dm := newDialogueManager(s, "Maria")

		req := dm.buildOrderRequest("+51999999999")
		assert.Equal(t, "Maria", req.ClientName)
	})
}

func TestClearOrder(t *testing.T) {
	s := newTestSession()
	s.CurrentOrder["tipo_servicio"] = "mototaxi"
	s.AwaitingMore = true
	dm := newDialogueManager(s, "Maria")

	dm.clearOrder()

	assert.Empty(t, dm.session.CurrentOrder)
	assert.False(t, dm.session.AwaitingMore)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw    string
		want   float64
		wantOK bool
	}{
		{"25.50", 25.50, true},
		{"25.50 soles", 25.50, true},
		{"100 soles", 100, true},
		{"", 0, false},
		{"no hay monto", 0, false},
		{"..", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := parseAmount(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.InDelta(t, tt.want, got, 0.001)
			}
		})
	}
}
