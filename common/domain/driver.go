package domain

import "time"

// ValidationState is a driver's vetting outcome.
type ValidationState string

const (
	ValidationPending  ValidationState = "pendiente"
	ValidationApproved ValidationState = "aprobado"
	ValidationRejected ValidationState = "rechazado"
)

// Availability is a driver's current dispatch eligibility.
type Availability string

const (
	AvailabilityAvailable    Availability = "disponible"
	AvailabilityUnavailable  Availability = "no_disponible"
	AvailabilityOnService    Availability = "en_servicio"
)

// Driver is the driver entity owned by the drivers service.
type Driver struct {
	DriverID        string          `json:"driver_id"`
	DisplayName     string          `json:"display_name"`
	AccountActive   bool            `json:"account_active"`
	ValidationState ValidationState `json:"validation_state"`
	Availability    Availability    `json:"availability"`
	AssignedOrderID string          `json:"assigned_order_id,omitempty"`
	// OnServiceSince is set when Availability flips to en_servicio and
	// cleared when it flips back; the watchdog sweep (spec §9) uses it
	// to detect a driver stuck in en_servicio past the grace period.
	OnServiceSince *time.Time `json:"on_service_since,omitempty"`
}

// IsCandidate reports whether d is a candidate for dispatch (spec §3).
func (d Driver) IsCandidate() bool {
	return d.AccountActive && d.ValidationState == ValidationApproved && d.Availability == AvailabilityAvailable
}

// Vehicle belongs to a driver; spec §4.7 step 3 needs "the first
// vehicle with active=true" for the accept event's plate field.
type Vehicle struct {
	DriverID string `json:"driver_id"`
	Plate    string `json:"plate"`
	Active   bool   `json:"active"`
}
