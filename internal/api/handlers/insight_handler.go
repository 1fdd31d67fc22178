package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/careconnect/backend/internal/domain/entities"
	apperrors "github.com/careconnect/backend/pkg/errors"
)

// MaxListLimit bounds the limit query parameter on list endpoints.
const MaxListLimit = 500

// InsightService is the application surface the insight endpoints depend on.
type InsightService interface {
	GeneratePatientInsight(ctx context.Context, patientID string, createdBy *string) (*entities.InsightView, string, error)
	GetPatientInsights(ctx context.Context, patientID string, limit int) ([]*entities.InsightView, string, error)
	ListLatestInsights(ctx context.Context, limit int) ([]entities.LatestInsight, string, error)
}

// InsightHandler handles AI insight HTTP requests
type InsightHandler struct {
	service InsightService
}

// NewInsightHandler creates a new insight handler
func NewInsightHandler(service InsightService) *InsightHandler {
	return &InsightHandler{service: service}
}

// envelope is the body shape shared by every insight endpoint.
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

type refreshRequest struct {
	CreatedBy *string `json:"created_by"`
}

// GetPatientInsights handles GET /api/patients/{id}/insights
func (h *InsightHandler) GetPatientInsights(w http.ResponseWriter, r *http.Request) {
	patientID := strings.TrimSpace(r.PathValue("id"))
	if patientID == "" {
		respondWithEnvelope(w, http.StatusBadRequest, false, "Patient ID is required", nil)
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		respondWithEnvelope(w, http.StatusBadRequest, false, err.Error(), nil)
		return
	}

	views, message, err := h.service.GetPatientInsights(r.Context(), patientID, limit)
	if err != nil {
		respondWithEnvelope(w, statusForError(err), false, message, views)
		return
	}

	respondWithEnvelope(w, http.StatusOK, true, message, views)
}

// RefreshPatientInsight handles POST /api/patients/{id}/insights/refresh
func (h *InsightHandler) RefreshPatientInsight(w http.ResponseWriter, r *http.Request) {
	patientID := strings.TrimSpace(r.PathValue("id"))
	if patientID == "" {
		respondWithEnvelope(w, http.StatusBadRequest, false, "Patient ID is required", nil)
		return
	}

	createdBy, err := requestedBy(r)
	if err != nil {
		respondWithEnvelope(w, http.StatusBadRequest, false, "Invalid request body", nil)
		return
	}

	view, message, err := h.service.GeneratePatientInsight(r.Context(), patientID, createdBy)
	if err != nil {
		respondWithEnvelope(w, statusForError(err), false, message, nil)
		return
	}

	respondWithEnvelope(w, http.StatusCreated, true, message, view)
}

// ListLatestInsights handles GET /api/insights/latest
func (h *InsightHandler) ListLatestInsights(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		respondWithEnvelope(w, http.StatusBadRequest, false, err.Error(), nil)
		return
	}

	latest, message, err := h.service.ListLatestInsights(r.Context(), limit)
	if err != nil {
		respondWithEnvelope(w, statusForError(err), false, message, nil)
		return
	}
	if latest == nil {
		latest = []entities.LatestInsight{}
	}

	respondWithEnvelope(w, http.StatusOK, true, message, latest)
}

// requestedBy reads the requesting user from the JSON body, falling back to
// the X-User-ID header. An empty body is allowed.
func requestedBy(r *http.Request) (*string, error) {
	var req refreshRequest
	if r.Body != nil {
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	}
	if req.CreatedBy != nil && strings.TrimSpace(*req.CreatedBy) != "" {
		v := strings.TrimSpace(*req.CreatedBy)
		return &v, nil
	}
	if header := strings.TrimSpace(r.Header.Get("X-User-ID")); header != "" {
		return &header, nil
	}
	return nil, nil
}

var errInvalidLimit = errors.New("limit must be a positive integer")

// parseLimit returns 0 when the parameter is absent so the service applies its default.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, errInvalidLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return limit, nil
}

func statusForError(err error) int {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.Type {
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeExtraction:
		return http.StatusUnprocessableEntity
	case apperrors.ErrorTypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondWithEnvelope(w http.ResponseWriter, status int, success bool, message string, data interface{}) {
	respondWithJSON(w, status, envelope{Success: success, Message: message, Data: data})
}

// respondWithJSON writes a JSON response
func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// respondWithError writes an error response
func respondWithError(w http.ResponseWriter, status int, message string) {
	respondWithJSON(w, status, map[string]string{"error": message})
}
