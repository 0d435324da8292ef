package api

import (
	"fmt"
	"net/http"

	"github.com/martinsuchenak/labeld/internal/model"
)

// listGlobals handles GET /api/globals
func (h *Handler) listGlobals(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	globals, err := h.storage.ListGlobals(r.Context(), owner)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, globals)
}

// setGlobal handles PUT /api/globals/{key}
func (h *Handler) setGlobal(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	var req struct {
		Value string `json:"value"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	g := &model.GlobalVariable{OwnerID: owner, Key: r.PathValue("key"), Value: req.Value}
	if err := h.storage.SetGlobal(r.Context(), g); err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, g)
}

// deleteGlobal handles DELETE /api/globals/{key}
func (h *Handler) deleteGlobal(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	if err := h.storage.DeleteGlobal(r.Context(), owner, r.PathValue("key")); err != nil {
		h.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listImages handles GET /api/images
func (h *Handler) listImages(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	images, err := h.storage.ListImages(r.Context(), owner)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, images)
}

// createImage handles POST /api/images
func (h *Handler) createImage(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	var img model.ImageAsset
	if !h.decode(w, r, &img) {
		return
	}
	img.ID = generateID()
	img.OwnerID = owner

	if err := h.storage.CreateImage(r.Context(), &img); err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, img)
}

// deleteImage handles DELETE /api/images/{id}. Images are soft-deleted and
// stop resolving in templates immediately.
func (h *Handler) deleteImage(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	img, err := h.storage.GetImage(r.Context(), id)
	if err != nil {
		h.handleError(w, err)
		return
	}
	if img.OwnerID != owner {
		h.handleError(w, fmt.Errorf("image %s: %w", id, model.ErrAccessDenied))
		return
	}

	if err := h.storage.DeleteImage(r.Context(), id); err != nil {
		h.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
