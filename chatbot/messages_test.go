package main

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "Mototaxi", capitalize("mototaxi"))
	assert.Equal(t, "Otro", capitalize("otro"))
	assert.Equal(t, "", capitalize(""))
	assert.Equal(t, "Ya Mayus", capitalize("Ya Mayus"))
}

func TestFormatServicesList(t *testing.T) {
	list := formatServicesList()
	lines := strings.Split(list, "\n")
	assert.Len(t, lines, len(serviceOptions))
	assert.Equal(t, "1. Mototaxi", lines[0])
	assert.Equal(t, "4. Otro servicio", lines[3])
}

func TestDriverAssignedMessage(t *testing.T) {
	msg := driverAssignedMessage("Carlos", "ABC-123")
	assert.Contains(t, msg, "Carlos")
	assert.Contains(t, msg, "ABC-123")
}

func TestDriverAssignedMessageDefaultsPlate(t *testing.T) {
	msg := driverAssignedMessage("Carlos", "")
	assert.Contains(t, msg, "pendiente")
}

func TestErrorMessageFallsBackToMessageNotUnderstood(t *testing.T) {
	msg := errorMessage("something_unrecognized", "Maria")
	assert.Equal(t, fmt.Sprintf(messageNotUnderstoodTmpl, "Maria"), msg)
}

func TestErrorMessageOrderFailedHasNoPlaceholder(t *testing.T) {
	assert.Equal(t, orderFailedMessage, errorMessage("order_failed", "Maria"))
}
