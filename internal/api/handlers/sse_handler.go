package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/careconnect/backend/internal/domain/entities"
	"github.com/careconnect/backend/internal/domain/providers"
)

const defaultHeartbeat = 30 * time.Second

// SSEHandler streams newly stored insights as Server-Sent Events
type SSEHandler struct {
	eventBus  providers.EventBus
	heartbeat time.Duration
	clients   map[string]int
	mu        sync.RWMutex
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(eventBus providers.EventBus) *SSEHandler {
	return &SSEHandler{
		eventBus:  eventBus,
		heartbeat: defaultHeartbeat,
		clients:   make(map[string]int),
	}
}

// WithHeartbeat overrides the keep-alive interval.
func (h *SSEHandler) WithHeartbeat(d time.Duration) *SSEHandler {
	if d > 0 {
		h.heartbeat = d
	}
	return h
}

// StreamPatientInsights handles GET /api/stream/patients/{id}/insights
func (h *SSEHandler) StreamPatientInsights(w http.ResponseWriter, r *http.Request) {
	patientID := strings.TrimSpace(r.PathValue("id"))
	if patientID == "" {
		respondWithError(w, http.StatusBadRequest, "patient ID is required")
		return
	}
	h.stream(w, r, providers.GetPatientChannel(patientID), 0, map[string]interface{}{
		"patient_id": patientID,
	})
}

// StreamInsights handles GET /api/stream/insights?min_score=N
func (h *SSEHandler) StreamInsights(w http.ResponseWriter, r *http.Request) {
	minScore := 0
	if raw := r.URL.Query().Get("min_score"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < entities.MinRiskScore || parsed > entities.MaxRiskScore {
			respondWithError(w, http.StatusBadRequest, "min_score must be between 0 and 100")
			return
		}
		minScore = parsed
	}
	h.stream(w, r, providers.EventChannelInsightUpdates, minScore, map[string]interface{}{
		"min_score": minScore,
	})
}

func (h *SSEHandler) stream(w http.ResponseWriter, r *http.Request, channel string, minScore int, hello map[string]interface{}) {
	if h.eventBus == nil {
		respondWithError(w, http.StatusServiceUnavailable, "event streaming is not configured")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx := r.Context()
	events, err := h.eventBus.Subscribe(ctx, channel)
	if err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("Failed to subscribe to insight channel")
		respondWithError(w, http.StatusBadGateway, "unable to subscribe to insight updates")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Streams outlive the server write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		log.Debug().Err(err).Msg("Unable to clear write deadline for SSE stream")
	}

	h.registerClient(channel)
	defer h.unregisterClient(channel)

	hello["timestamp"] = time.Now().UTC()
	h.sendEvent(w, "connected", hello)
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// SSE comment line; EventSource clients never see it.
			fmt.Fprintf(w, ": heartbeat %s\n\n", time.Now().UTC().Format(time.RFC3339))
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}
			if event == nil || event.RiskScore < minScore {
				continue
			}
			h.sendEvent(w, string(event.EventType), event)
			flusher.Flush()
		}
	}
}

func (h *SSEHandler) registerClient(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[channel]++
	log.Debug().Str("channel", channel).Int("clients", h.clients[channel]).Msg("SSE client registered")
}

func (h *SSEHandler) unregisterClient(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[channel]--
	if h.clients[channel] <= 0 {
		delete(h.clients, channel)
	}
}

// sendEvent writes one SSE frame
func (h *SSEHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("Failed to marshal event data")
		return
	}
	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}

// GetClientCount returns the number of connected clients
func (h *SSEHandler) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, n := range h.clients {
		count += n
	}
	return count
}
