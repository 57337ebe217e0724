package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"crypto-market-feed/internal/logger"
	"crypto-market-feed/internal/market"
	"crypto-market-feed/internal/metrics"
	"crypto-market-feed/internal/model"
)

type marketResponse struct {
	State     model.ConnectionState `json:"state"`
	UpdatedAt *time.Time            `json:"updatedAt"`
	Count     int                   `json:"count"`
	Tickers   model.MarketSnapshot  `json:"tickers"`
}

type statusResponse struct {
	State   model.ConnectionState `json:"state"`
	Symbols int                   `json:"symbols"`
	Metrics metrics.Snapshot      `json:"metrics"`
}

// Handler serves the read-only market API over the store.
type Handler struct {
	store   *market.Store
	tracker *metrics.Tracker
	mux     *http.ServeMux
}

func New(store *market.Store, tracker *metrics.Tracker) *Handler {
	h := &Handler{
		store:   store,
		tracker: tracker,
		mux:     http.NewServeMux(),
	}

	h.mux.HandleFunc("GET /api/health", h.health)
	h.mux.HandleFunc("GET /api/market", h.marketList)
	h.mux.HandleFunc("GET /api/market/{symbol}", h.marketSymbol)
	h.mux.HandleFunc("GET /api/status", h.status)
	h.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Endpoint not found")
	})
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"state":  h.store.State(),
	})
}

func (h *Handler) marketList(w http.ResponseWriter, r *http.Request) {
	snapshot := h.store.Snapshot()

	switch r.URL.Query().Get("sort") {
	case "", "volume":
		snapshot = snapshot.ByVolume()
	case "gainers":
		snapshot = snapshot.Gainers()
	case "losers":
		snapshot = snapshot.Losers()
	default:
		writeError(w, http.StatusBadRequest, "sort must be one of volume, gainers, losers")
		return
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		snapshot = snapshot.Top(limit)
	}

	resp := marketResponse{
		State:   h.store.State(),
		Count:   len(snapshot),
		Tickers: snapshot,
	}
	if updated := h.store.UpdatedAt(); !updated.IsZero() {
		resp.UpdatedAt = &updated
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) marketSymbol(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.store.Snapshot().Find(r.PathValue("symbol"))
	if !ok {
		writeError(w, http.StatusNotFound, "Symbol not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		State:   h.store.State(),
		Symbols: len(h.store.Snapshot()),
		Metrics: h.tracker.Snapshot(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
