package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rpattn/retailanalytics/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultMaxUploadBytes = 32 << 20

// Handler exposes ingestion and validation errors over HTTP.
type Handler struct {
	service        *Service
	logger         *zap.Logger
	maxUploadBytes int64
}

// NewHTTPHandler wraps the service. maxUploadBytes <= 0 uses 32 MiB.
func NewHTTPHandler(service *Service, logger *zap.Logger, maxUploadBytes int64) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{service: service, logger: logger, maxUploadBytes: maxUploadBytes}
}

// Register mounts the ingestion routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/ingest", h.Ingest)
	r.Get("/api/errors", h.Errors)
	r.Get("/api/errors/records", h.ErrorRecords)
}

// Ingest accepts a multipart upload in the "file" field.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid form data: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("file required: %v", err))
		return
	}
	defer file.Close()

	result, err := h.service.IngestFile(r.Context(), FileRequest{
		FileName: header.Filename,
		Data:     file,
	})
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, ErrUnsupportedFormat):
			status = http.StatusUnsupportedMediaType
		case errors.Is(err, ErrMalformedInput):
			status = http.StatusBadRequest
		}
		h.logger.Warn("ingestion failed",
			zap.String("file", header.Filename),
			zap.Int("status", status),
			zap.Error(err),
		)
		writeError(w, status, fmt.Sprintf("Ingestion failed: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Errors lists validation messages.
func (h *Handler) Errors(w http.ResponseWriter, r *http.Request) {
	messages, err := h.service.ValidationErrors(r.Context())
	if err != nil {
		h.logger.Error("validation errors read failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Validation errors read failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"errors": messages})
}

// ErrorRecords lists structured validation errors with paging.
func (h *Handler) ErrorRecords(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.service.ListValidationErrors(r.Context(), filter)
	if err != nil {
		h.logger.Error("validation error records read failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Validation errors read failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.ValidationError{"records": records})
}

func parseFilter(r *http.Request) (domain.ValidationErrorFilter, error) {
	var filter domain.ValidationErrorFilter
	query := r.URL.Query()

	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return filter, fmt.Errorf("invalid limit %q", raw)
		}
		filter.Limit = limit
	}
	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, fmt.Errorf("invalid offset %q", raw)
		}
		filter.Offset = offset
	}
	if raw := strings.TrimSpace(query.Get("row_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid row_id: %v", err)
		}
		filter.RowID = &id
	}
	return filter, nil
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
