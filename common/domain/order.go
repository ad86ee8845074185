// Package domain holds the data model and invariants shared by the
// orders and drivers services: the Order/OrderItem/Driver/Vehicle
// shapes from spec §3 and the order status transition matrix from
// spec §4.5. It has no external dependency — it is pure domain logic,
// grounded on original_source/servicio_pedidos/app/services/order_service.py's
// TRANSICIONES_ESTADO_PERMITIDAS.
package domain

import (
	"errors"
	"time"
)

// ServiceType is the kind of service an order requests.
type ServiceType string

const (
	ServiceMototaxi  ServiceType = "mototaxi"
	ServiceDomicilio ServiceType = "domicilio"
	ServiceCompras   ServiceType = "compras"
	ServiceOtro      ServiceType = "otro"
)

// NormalizeServiceType maps an arbitrary extracted string to the
// canonical set, falling back to "otro" for anything unrecognized
// (spec §4.4 step 4).
func NormalizeServiceType(raw string) ServiceType {
	switch ServiceType(raw) {
	case ServiceMototaxi, ServiceDomicilio, ServiceCompras, ServiceOtro:
		return ServiceType(raw)
	default:
		return ServiceOtro
	}
}

// Status is an order's lifecycle state (ESTADOS_PEDIDO_VALIDOS).
type Status string

const (
	StatusSolicitado         Status = "solicitado"
	StatusConfirmado         Status = "confirmado"
	StatusBuscandoConductor  Status = "buscando_conductor"
	StatusAsignadoConductor  Status = "asignado_conductor"
	StatusEnProcesoEmpresa   Status = "en_proceso_empresa"
	StatusListoParaRecoger   Status = "listo_para_recoger"
	StatusEnCaminoOrigen     Status = "en_camino_origen"
	StatusEnOrigen           Status = "en_origen"
	StatusViajeIniciado      Status = "viaje_iniciado"
	StatusEnDestino          Status = "en_destino"
	StatusEntregado          Status = "entregado"
	StatusCompletado         Status = "completado"
	StatusCanceladoUsuario   Status = "cancelado_usuario"
	StatusCanceladoSistema   Status = "cancelado_sistema"
	StatusCanceladoConductor Status = "cancelado_conductor"
	StatusProblemaReportado  Status = "problema_reportado"
)

// transitions is the allowed from->to edge set (spec §4.5).
var transitions = map[Status][]Status{
	StatusSolicitado: {StatusConfirmado, StatusCanceladoUsuario, StatusCanceladoSistema},
	StatusConfirmado: {
		StatusBuscandoConductor, StatusAsignadoConductor, StatusEnProcesoEmpresa,
		StatusListoParaRecoger, StatusCanceladoSistema, StatusCanceladoUsuario,
	},
	StatusBuscandoConductor: {StatusAsignadoConductor, StatusCanceladoSistema, StatusConfirmado},
	StatusAsignadoConductor: {
		StatusEnCaminoOrigen, StatusCanceladoConductor, StatusCanceladoSistema, StatusCanceladoUsuario,
	},
	StatusEnProcesoEmpresa: {StatusListoParaRecoger, StatusCanceladoSistema},
	StatusListoParaRecoger: {StatusAsignadoConductor, StatusBuscandoConductor, StatusCanceladoSistema},
	StatusEnCaminoOrigen:   {StatusEnOrigen, StatusCanceladoConductor},
	StatusEnOrigen:         {StatusViajeIniciado, StatusCanceladoConductor},
	StatusViajeIniciado:    {StatusEnDestino, StatusProblemaReportado, StatusCanceladoConductor},
	StatusEnDestino:        {StatusEntregado, StatusCompletado, StatusProblemaReportado},
	StatusEntregado:        {StatusCompletado},
	StatusCompletado:       {},
	StatusCanceladoUsuario: {},
	StatusCanceladoSistema: {},
	StatusCanceladoConductor: {},
	StatusProblemaReportado:  {StatusCompletado, StatusCanceladoSistema},
}

// ErrTransitionForbidden is returned when a requested status change is
// not an edge in the transition matrix (spec §4.5, invariant P1).
var ErrTransitionForbidden = errors.New("order: transition forbidden")

// CanTransition reports whether from->to is an allowed edge.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsAssignable reports whether status is one of the statuses from which
// a driver can still be assigned via the accept event (spec §4.7 step 5).
func IsAssignable(status Status) bool {
	switch status {
	case StatusConfirmado, StatusBuscandoConductor, StatusListoParaRecoger:
		return true
	default:
		return false
	}
}

// Point is a geographic location with an optional coordinate — origin
// and destination may be description-only until geocoded.
type Point struct {
	Description string   `json:"description"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
}

// OrderItem belongs to an Order and is cascade-deleted with it.
type OrderItem struct {
	ItemName  string  `json:"item_name"`
	Qty       int     `json:"qty"`
	UnitPrice *float64 `json:"unit_price,omitempty"`
	Notes     string  `json:"notes,omitempty"`
}

// Order is the authoritative order entity owned by the orders service.
type Order struct {
	OrderID          string      `json:"order_id"`
	ServiceType      ServiceType `json:"service_type"`
	ExternalClientID string      `json:"external_client_id"`
	ClientName       string      `json:"client_name"`
	ClientPhone      string      `json:"client_phone"`
	Origin           Point       `json:"origin"`
	Destination      Point       `json:"destination"`
	MerchantID       string      `json:"merchant_id,omitempty"`
	Items            []OrderItem `json:"items,omitempty"`
	PaymentHint      string      `json:"payment_hint,omitempty"`
	AmountEstimate   *float64    `json:"amount_estimate,omitempty"`
	ExtraNotes       string      `json:"extra_notes,omitempty"`

	Status           Status     `json:"status"`
	AssignedDriverID string     `json:"assigned_driver_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	LastUpdated      time.Time  `json:"last_updated"`
	AssignedAt       *time.Time `json:"assigned_at,omitempty"`
	EstimatedDeliveryAt *time.Time `json:"estimated_delivery_at,omitempty"`
	ActualDeliveryAt    *time.Time `json:"actual_delivery_at,omitempty"`
}

// DispatchEvent is published on DispatchExchange/RoutingPedidoRequiereMototaxi
// once an order is confirmado (spec §4.5).
type DispatchEvent struct {
	OrderID             string      `json:"id_pedido"`
	ServiceType         ServiceType `json:"tipo_servicio"`
	OriginDescription   string      `json:"origen_descripcion"`
	OriginLat           *float64    `json:"origen_latitud,omitempty"`
	OriginLon           *float64    `json:"origen_longitud,omitempty"`
	DestDescription     string      `json:"destino_descripcion"`
	DestLat             *float64    `json:"destino_latitud,omitempty"`
	DestLon             *float64    `json:"destino_longitud,omitempty"`
	ClientName          string      `json:"nombre_cliente"`
	ClientPhone         string      `json:"telefono_cliente"`
	MerchantID          string      `json:"id_empresa_asociada,omitempty"`
	Items               []OrderItem `json:"items_pedido,omitempty"`
	ExtraNotes          string      `json:"detalles_adicionales_pedido,omitempty"`
	PaymentHint         string      `json:"metodo_pago_sugerido,omitempty"`
	AmountEstimate      *float64    `json:"monto_estimado_pedido,omitempty"`
	CreatedAtUTC        string      `json:"fecha_solicitud_utc"`
}

// AcceptEvent is published by the drivers service (C7) once a driver
// wins acceptance, and consumed by the orders service (C5).
type AcceptEvent struct {
	OrderID       string    `json:"order_id"`
	DriverID      string    `json:"driver_id"`
	DriverName    string    `json:"driver_name"`
	VehiclePlate  string    `json:"vehicle_plate"`
	AcceptedAtUTC time.Time `json:"accepted_at_utc"`
}

// OrderCreateItem is one line item inside an OrderCreateRequest.
type OrderCreateItem struct {
	Name string `json:"nombre_item"`
	Qty  int    `json:"cantidad"`
}

// OrderCreateRequest is published by the chatbot's dialogue engine (C4)
// on PedidosExchange/RoutingPedidoNuevo once slot-filling completes
// (spec §4.4 step 7), and consumed by the orders service (C5) to
// create the authoritative order record (spec §4.5). Field names
// mirror original_source's OrderPayload pydantic schema.
type OrderCreateRequest struct {
	ExternalClientID string            `json:"id_cliente_externo"`
	ClientName       string            `json:"nombre_cliente,omitempty"`
	ClientPhone      string            `json:"telefono_cliente"`
	ServiceType      ServiceType       `json:"tipo_servicio"`
	Origin           string            `json:"origen_descripcion,omitempty"`
	Destination      string            `json:"destino_descripcion,omitempty"`
	MerchantID       string            `json:"id_empresa_asociada,omitempty"`
	ExtraNotes       string            `json:"detalles_adicionales_pedido,omitempty"`
	PaymentHint      string            `json:"metodo_pago_sugerido,omitempty"`
	AmountEstimate   *float64          `json:"monto_estimado_pedido,omitempty"`
	Items            []OrderCreateItem `json:"items_pedido,omitempty"`
}

// ClientNotificationEvent is published on asignado_conductor and
// consumed by the chatbot's outbound leg (C3).
type ClientNotificationEvent struct {
	OrderID      string `json:"order_id"`
	ClientPhone  string `json:"client_phone"`
	DriverName   string `json:"driver_name"`
	VehiclePlate string `json:"vehicle_plate"`
}
