package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler exposes the reports over HTTP.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHTTPHandler wraps the report service.
func NewHTTPHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts the report routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/quality", h.Quality)
	r.Get("/api/promo", h.Promotion)
	r.Get("/api/pricing", h.Pricing)
}

func (h *Handler) Quality(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Quality(r.Context())
	h.respond(w, "quality", report, err)
}

func (h *Handler) Promotion(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var minUplift *float64
	if raw := strings.TrimSpace(query.Get("min_uplift")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid min_uplift %q", raw))
			return
		}
		minUplift = &v
	}

	report, err := h.service.Promotion(r.Context(), query.Get("supplier"), minUplift)
	h.respond(w, "promotion", report, err)
}

func (h *Handler) Pricing(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Pricing(r.Context(), r.URL.Query().Get("supplier"))
	h.respond(w, "pricing", report, err)
}

func (h *Handler) respond(w http.ResponseWriter, name string, payload any, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, payload)
	case errors.Is(err, ErrNoData):
		w.WriteHeader(http.StatusNoContent)
	default:
		h.logger.Error("report failed", zap.String("report", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Report %s failed: %v", name, err))
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
