package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pipetapasco/microservices-delivery-hub/common/domain"
)

// httpHandler exposes the order CRUD surface spec §6 defines for
// internal tooling. The chatbot does not call it: its orders arrive over
// the broker (see orderCreateConsumer).
type httpHandler struct {
	service OrdersService
	log     *slog.Logger
}

func newHTTPHandler(service OrdersService, log *slog.Logger) *httpHandler {
	return &httpHandler{service: service, log: log}
}

func (h *httpHandler) registerRoutes(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("POST /api/v1/orders", h.handleCreate)
	mux.HandleFunc("GET /api/v1/orders/{id}", h.handleGet)
	mux.HandleFunc("PUT /api/v1/orders/{id}", h.handleUpdateStatus)
	mux.HandleFunc("GET /api/v1/orders/status/{status}", h.handleGetByStatus)
	mux.HandleFunc("GET /api/v1/orders/driver/{driverID}", h.handleGetByDriver)
}

func (h *httpHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *httpHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var order domain.Order
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	order.ServiceType = domain.NormalizeServiceType(string(order.ServiceType))
	if order.OrderID == "" {
		order.OrderID = uuid.NewString()
	}

	created, err := h.service.CreateOrder(r.Context(), &order)
	if err != nil {
		h.log.Error("create order failed", slog.Any("error", err))
		http.Error(w, "failed to create order", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

func (h *httpHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(order)
}

type updateStatusRequest struct {
	Status domain.Status `json:"status"`
}

func (h *httpHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		h.log.Error("update status failed", slog.String("order_id", r.PathValue("id")), slog.Any("error", err))
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(order)
}

func (h *httpHandler) handleGetByStatus(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.GetByStatus(r.Context(), domain.Status(r.PathValue("status")))
	if err != nil {
		http.Error(w, "failed to list orders", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(orders)
}

func (h *httpHandler) handleGetByDriver(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.GetByDriver(r.Context(), r.PathValue("driverID"))
	if err != nil {
		http.Error(w, "failed to list orders", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(orders)
}
