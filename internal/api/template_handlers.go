package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/martinsuchenak/labeld/internal/log"
	"github.com/martinsuchenak/labeld/internal/model"
	"github.com/martinsuchenak/labeld/internal/templatefile"
)

// errSharedReadOnly is returned when an owner tries to change a shared template.
var errSharedReadOnly = fmt.Errorf("shared templates are read-only: %w", model.ErrAccessDenied)

// listTemplates handles GET /api/templates
func (h *Handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	templates, err := h.storage.ListVisibleTemplates(r.Context(), owner)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, templates)
}

// getTemplate handles GET /api/templates/{id}. ?format=yaml returns the
// template file form accepted by "labeld template import".
func (h *Handler) getTemplate(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	t, err := h.visibleTemplate(r, owner, r.PathValue("id"))
	if err != nil {
		h.handleError(w, err)
		return
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "yaml") {
		w.Header().Set("Content-Type", "application/yaml")
		if err := templatefile.Encode(w, t, templatefile.FormatYAML); err != nil {
			log.Error("Failed to encode template", "id", t.ID, "error", err)
		}
		return
	}
	h.writeJSON(w, http.StatusOK, t)
}

// createTemplate handles POST /api/templates. The body is JSON, or YAML
// when the content type says so. The template is owned by the caller.
func (h *Handler) createTemplate(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	t, err := templatefile.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes), bodyFormat(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	t.OwnerID = owner
	if t.ID == "" {
		t.ID = generateID()
	}

	if err := h.storage.CreateTemplate(r.Context(), t); err != nil {
		h.handleError(w, err)
		return
	}
	log.Info("Created template", "id", t.ID, "owner_id", owner, "name", t.Name)
	h.writeJSON(w, http.StatusCreated, t)
}

// updateTemplate handles PUT /api/templates/{id}
func (h *Handler) updateTemplate(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	existing, err := h.visibleTemplate(r, owner, id)
	if err != nil {
		h.handleError(w, err)
		return
	}
	if existing.IsShared() {
		h.handleError(w, errSharedReadOnly)
		return
	}

	t, err := templatefile.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes), bodyFormat(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	t.ID = id
	t.OwnerID = owner
	t.CreatedAt = existing.CreatedAt

	if err := h.storage.UpdateTemplate(r.Context(), t); err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, t)
}

// deleteTemplate handles DELETE /api/templates/{id}
func (h *Handler) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	existing, err := h.visibleTemplate(r, owner, id)
	if err != nil {
		h.handleError(w, err)
		return
	}
	if existing.IsShared() {
		h.handleError(w, errSharedReadOnly)
		return
	}

	if err := h.storage.DeleteTemplate(r.Context(), id); err != nil {
		h.handleError(w, err)
		return
	}
	log.Info("Deleted template", "id", id, "owner_id", owner)
	w.WriteHeader(http.StatusNoContent)
}

// visibleTemplate loads a template the owner may see: shared or their own.
func (h *Handler) visibleTemplate(r *http.Request, owner, id string) (*model.Template, error) {
	t, err := h.storage.GetTemplate(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if !t.IsShared() && t.OwnerID != owner {
		return nil, fmt.Errorf("template %s: %w", id, model.ErrAccessDenied)
	}
	return t, nil
}

func bodyFormat(r *http.Request) templatefile.Format {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if strings.Contains(ct, "yaml") {
		return templatefile.FormatYAML
	}
	return templatefile.FormatJSON
}

// listDefaults handles GET /api/defaults
func (h *Handler) listDefaults(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	mappings, err := h.storage.ListDefaultMappings(r.Context(), owner)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, mappings)
}

// setDefault handles PUT /api/defaults/{classification}
func (h *Handler) setDefault(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	var req struct {
		TemplateID string `json:"template_id"`
		Active     *bool  `json:"active"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.TemplateID == "" {
		h.writeError(w, http.StatusBadRequest, "template_id is required")
		return
	}

	m := &model.DefaultMapping{
		OwnerID:        owner,
		Classification: r.PathValue("classification"),
		TemplateID:     req.TemplateID,
		Active:         req.Active == nil || *req.Active,
	}
	if err := h.storage.SetDefaultMapping(r.Context(), m); err != nil {
		h.handleError(w, err)
		return
	}
	log.Info("Set default template", "owner_id", owner, "classification", m.Classification, "template_id", m.TemplateID)
	h.writeJSON(w, http.StatusOK, m)
}

// deleteDefault handles DELETE /api/defaults/{classification}
func (h *Handler) deleteDefault(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	if err := h.storage.DeleteDefaultMapping(r.Context(), owner, r.PathValue("classification")); err != nil {
		h.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
