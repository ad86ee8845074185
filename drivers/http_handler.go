package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pipetapasco/microservices-delivery-hub/common/domain"
)

// ErrInvalidAvailability is returned when a status-change request names
// an availability value a driver cannot set for themselves (en_servicio
// is system-managed via the accept/watchdog paths only).
var ErrInvalidAvailability = errors.New("availability must be disponible or no_disponible")

// updateStatusRequest is the POST /api/v1/drivers/me/status body.
type updateStatusRequest struct {
	Availability domain.Availability `json:"availability"`
}

type driverIDContextKey struct{}

// httpHandler exposes the driver-facing REST surface: acceptance and
// status, both behind a JWT bearer middleware. Grounded on teacher's
// kitchen/http_handler.go routing idiom and original_source's
// drivers.py accept-endpoint status-code mapping.
type httpHandler struct {
	store      DriversStore
	acceptance *acceptanceService
	jwtSecret  []byte
	log        *slog.Logger
}

func newHTTPHandler(store DriversStore, acceptance *acceptanceService, jwtSecret []byte, log *slog.Logger) *httpHandler {
	return &httpHandler{store: store, acceptance: acceptance, jwtSecret: jwtSecret, log: log}
}

func (h *httpHandler) registerRoutes(mux *http.ServeMux, ws http.Handler) {
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.Handle("POST /api/v1/drivers/me/services/{orderID}/accept", h.requireAuth(h.handleAccept))
	mux.Handle("POST /api/v1/drivers/me/status", h.requireAuth(h.handleUpdateStatus))
	mux.Handle("GET /api/v1/drivers/{driverID}", h.requireAuth(h.handleGetDriver))
	mux.Handle("/ws/drivers/location", ws)
}

func (h *httpHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// requireAuth validates a bearer JWT and injects the driver ID (the
// token's "sub" claim) into the request context.
func (h *httpHandler) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader || tokenString == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
			return h.jwtSecret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), driverIDContextKey{}, sub)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *httpHandler) handleAccept(w http.ResponseWriter, r *http.Request) {
	driverID, _ := r.Context().Value(driverIDContextKey{}).(string)
	orderID := r.PathValue("orderID")

	err := h.acceptance.Accept(r.Context(), driverID, orderID)
	if err == nil {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"order_id": orderID, "driver_id": driverID, "status": "accepted"})
		return
	}

	switch {
	case errors.Is(err, ErrDriverNotEligible), errors.Is(err, ErrDriverNotAvailable):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, ErrAcceptRaced):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.log.Error("accept failed", slog.String("driver_id", driverID), slog.String("order_id", orderID), slog.Any("error", err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// handleUpdateStatus lets a driver toggle their own availability
// between disponible and no_disponible (spec §6). en_servicio is
// reachable only through the accept protocol (C7) and the watchdog
// sweep, never through this endpoint, so it is rejected here. The
// change itself is a CAS against the driver's current availability,
// the same race-safety invariant the accept path relies on.
func (h *httpHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	driverID, _ := r.Context().Value(driverIDContextKey{}).(string)

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Availability != domain.AvailabilityAvailable && req.Availability != domain.AvailabilityUnavailable {
		http.Error(w, ErrInvalidAvailability.Error(), http.StatusBadRequest)
		return
	}

	driver, err := h.store.GetDriver(r.Context(), driverID)
	if err != nil {
		http.Error(w, "driver not found", http.StatusNotFound)
		return
	}
	if driver.Availability == domain.AvailabilityOnService {
		http.Error(w, "cannot change availability while on a service", http.StatusConflict)
		return
	}

	won, err := h.store.SetAvailability(r.Context(), driverID, driver.Availability, req.Availability, "")
	if err != nil {
		h.log.Error("failed to update driver availability", slog.String("driver_id", driverID), slog.Any("error", err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if !won {
		http.Error(w, "availability changed concurrently, retry", http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"driver_id": driverID, "availability": string(req.Availability)})
}

func (h *httpHandler) handleGetDriver(w http.ResponseWriter, r *http.Request) {
	driverID := r.PathValue("driverID")
	driver, err := h.store.GetDriver(r.Context(), driverID)
	if err != nil {
		http.Error(w, "driver not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(driver)
}
