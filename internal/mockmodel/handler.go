// Package mockmodel serves a stand-in for the remote prediction service used
// in development and load tests.
package mockmodel

import (
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Annmariya27/ctg-pro/internal/config"
	"github.com/Annmariya27/ctg-pro/internal/ctg"
	"github.com/Annmariya27/ctg-pro/internal/metrics"
)

// ModelName identifies the mock in health responses and logs.
const ModelName = "ctg-mock"

// Handler serves the mock model routes.
type Handler struct {
	cfg          *config.ModelConfig
	metrics      *metrics.ModelMetrics
	shuttingDown *atomic.Bool
	semaphore    chan struct{}
}

// NewHandler creates a handler. m and shuttingDown may be nil.
func NewHandler(cfg *config.ModelConfig, m *metrics.ModelMetrics, shuttingDown *atomic.Bool) *Handler {
	return &Handler{cfg: cfg, metrics: m, shuttingDown: shuttingDown, semaphore: make(chan struct{}, 1)}
}

// RegisterRoutes registers the model routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /predict", h.handlePredict)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /ready", h.handleReady)
	mux.HandleFunc("GET /ping", h.handlePing)
}

func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var payload map[string]float64
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.observe("error", startTime)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request"})
		return
	}

	v, missing, err := ctg.VectorFromPayload(payload)
	if err != nil {
		h.observe("error", startTime)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if len(missing) > 0 {
		h.observe("error", startTime)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing features: ['" + strings.Join(missing, "', '") + "']"})
		return
	}

	select {
	case h.semaphore <- struct{}{}:
	case <-r.Context().Done():
		h.observe("cancelled", startTime)
		return
	}
	defer func() { <-h.semaphore }()

	if h.cfg.InferenceDelayEnabled {
		span := h.cfg.InferenceDelayMaxMs - h.cfg.InferenceDelayMinMs
		if span < 0 {
			span = 0
		}
		delayMs := h.cfg.InferenceDelayMinMs + rand.Intn(span+1)
		select {
		case <-time.After(time.Duration(delayMs) * time.Millisecond):
		case <-r.Context().Done():
			h.observe("cancelled", startTime)
			return
		}
		log.Printf("[%s] Simulated delay: %dms", ModelName, delayMs)
	}

	resp := Classify(v)
	h.observe("success", startTime)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) observe(status string, start time.Time) {
	if h.metrics == nil {
		return
	}
	h.metrics.InferenceTotal.WithLabelValues(status).Inc()
	if status == "success" {
		h.metrics.InferenceLatency.Observe(time.Since(start).Seconds())
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, ctg.HealthResponse{Status: "healthy", Model: ModelName})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.shuttingDown != nil && h.shuttingDown.Load() {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "draining"})
		return
	}
	h.writeJSON(w, http.StatusOK, ctg.ReadyResponse{Status: "ready", Model: ModelName})
}

func (h *Handler) handlePing(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Backend is alive!"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[%s] write response: %v", ModelName, err)
	}
}
