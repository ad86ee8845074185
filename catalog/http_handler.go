package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// httpHandler exposes read-only catalog lookups. Menu CRUD is an
// out-of-scope collaborator surface (spec §1); only the reads that C5
// needs when an order references a merchant are implemented.
type httpHandler struct {
	store Store
	cache *itemCache
	log   *slog.Logger
}

func newHTTPHandler(store Store, cache *itemCache, log *slog.Logger) *httpHandler {
	return &httpHandler{store: store, cache: cache, log: log}
}

func (h *httpHandler) registerRoutes(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /api/v1/merchants/{merchantID}/items", h.handleListMenuItems)
	mux.HandleFunc("GET /api/v1/items/{itemID}", h.handleGetMenuItem)
}

func (h *httpHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *httpHandler) handleListMenuItems(w http.ResponseWriter, r *http.Request) {
	merchantID := r.PathValue("merchantID")

	items, err := h.store.GetMenuItems(r.Context(), merchantID)
	if err != nil {
		h.log.Error("list menu items failed", slog.String("merchant_id", merchantID), slog.Any("error", err))
		http.Error(w, "failed to list menu items", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(items)
}

func (h *httpHandler) handleGetMenuItem(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("itemID")

	item, err := h.cache.GetMenuItem(r.Context(), itemID)
	if err != nil {
		http.Error(w, "item not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(item)
}
