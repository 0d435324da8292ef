package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/martinsuchenak/labeld/internal/export"
	"github.com/martinsuchenak/labeld/internal/layout"
	"github.com/martinsuchenak/labeld/internal/log"
	"github.com/martinsuchenak/labeld/internal/matching"
	"github.com/martinsuchenak/labeld/internal/model"
	"github.com/martinsuchenak/labeld/internal/storage"
)

// OwnerHeader carries the owner scope of a request.
const OwnerHeader = "X-Owner-ID"

// maxBodyBytes bounds request bodies; image uploads are the largest.
const maxBodyBytes = 8 << 20

// Options are the defaults applied when a request leaves them out.
type Options struct {
	Page    layout.Size
	Margins layout.Margins
}

// Handler handles HTTP requests
type Handler struct {
	storage storage.Storage
	engine  *matching.Engine
	matcher matching.Matcher
	exports *export.Service
	opts    Options
}

// NewHandler creates a new API handler. matcher serves single-device
// lookups and is normally a CachedMatcher around engine.
func NewHandler(s storage.Storage, engine *matching.Engine, matcher matching.Matcher, exports *export.Service, opts Options) *Handler {
	if matcher == nil {
		matcher = engine
	}
	return &Handler{storage: s, engine: engine, matcher: matcher, exports: exports, opts: opts}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Templates
	mux.HandleFunc("GET /api/templates", h.listTemplates)
	mux.HandleFunc("POST /api/templates", h.createTemplate)
	mux.HandleFunc("GET /api/templates/{id}", h.getTemplate)
	mux.HandleFunc("PUT /api/templates/{id}", h.updateTemplate)
	mux.HandleFunc("DELETE /api/templates/{id}", h.deleteTemplate)

	// Default mappings
	mux.HandleFunc("GET /api/defaults", h.listDefaults)
	mux.HandleFunc("PUT /api/defaults/{classification}", h.setDefault)
	mux.HandleFunc("DELETE /api/defaults/{classification}", h.deleteDefault)

	// Globals and images
	mux.HandleFunc("GET /api/globals", h.listGlobals)
	mux.HandleFunc("PUT /api/globals/{key}", h.setGlobal)
	mux.HandleFunc("DELETE /api/globals/{key}", h.deleteGlobal)
	mux.HandleFunc("GET /api/images", h.listImages)
	mux.HandleFunc("POST /api/images", h.createImage)
	mux.HandleFunc("DELETE /api/images/{id}", h.deleteImage)

	// Devices
	mux.HandleFunc("GET /api/devices", h.listDevices)
	mux.HandleFunc("POST /api/devices", h.upsertDevice)
	mux.HandleFunc("GET /api/devices/{id}", h.getDevice)
	mux.HandleFunc("PUT /api/devices/{id}", h.upsertDevice)

	// Matching and export
	mux.HandleFunc("GET /api/devices/{id}/match", h.matchDevice)
	mux.HandleFunc("GET /api/devices/{id}/alternates", h.alternateTemplates)
	mux.HandleFunc("GET /api/devices/{id}/sticker", h.getSticker)
	mux.HandleFunc("POST /api/match", h.matchDevices)
	mux.HandleFunc("POST /api/layout/validate", h.validateLayout)
	mux.HandleFunc("POST /api/export/plan", h.planExport)
}

// owner returns the caller's owner scope, writing a 400 when it is missing.
func (h *Handler) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
	if owner == "" {
		h.writeError(w, http.StatusBadRequest, OwnerHeader+" header required")
		return "", false
	}
	return owner, true
}

// decode reads a JSON body into v, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// handleError maps engine and storage errors to status codes.
func (h *Handler) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrConfiguration):
		log.Error("Configuration error", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
	case errors.Is(err, model.ErrValidation):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, model.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrAccessDenied):
		h.writeError(w, http.StatusForbidden, err.Error())
	default:
		h.internalError(w, err)
	}
}

// internalError logs the error and writes a generic 500 response
func (h *Handler) internalError(w http.ResponseWriter, err error) {
	log.Error("Internal server error", "error", err)
	h.writeError(w, http.StatusInternalServerError, "Internal Server Error")
}

// generateID generates a UUIDv7
func generateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
