package api

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/martinsuchenak/labeld/internal/export"
	"github.com/martinsuchenak/labeld/internal/log"
	"github.com/martinsuchenak/labeld/internal/model"
	"github.com/martinsuchenak/labeld/internal/storage"
)

// listDevices handles GET /api/devices
func (h *Handler) listDevices(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := &model.DeviceFilter{
		Classification: q.Get("classification"),
		NetworkID:      q.Get("network_id"),
		Tags:           q["tag"],
	}

	devices, err := h.storage.ListDevices(r.Context(), owner, filter)
	if err != nil {
		h.handleError(w, err)
		return
	}
	log.Debug("Listed devices", "owner_id", owner, "count", len(devices))
	h.writeJSON(w, http.StatusOK, devices)
}

// getDevice handles GET /api/devices/{id}
func (h *Handler) getDevice(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	device, err := h.ownedDevice(r, owner, r.PathValue("id"))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, device)
}

// upsertDevice handles POST /api/devices and PUT /api/devices/{id}
func (h *Handler) upsertDevice(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	var device model.Device
	if !h.decode(w, r, &device) {
		return
	}
	if id := r.PathValue("id"); id != "" {
		device.ID = id
	}
	if strings.TrimSpace(device.Name) == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	status := http.StatusCreated
	if device.ID != "" {
		existing, err := h.storage.GetDevice(r.Context(), device.ID)
		switch {
		case err == nil && existing.OwnerID != owner:
			h.handleError(w, fmt.Errorf("device %s: %w", device.ID, export.ErrForeignDevice))
			return
		case err == nil:
			device.CreatedAt = existing.CreatedAt
			status = http.StatusOK
		case !storage.IsNotFound(err):
			h.handleError(w, err)
			return
		}
	} else {
		device.ID = generateID()
	}
	device.OwnerID = owner

	if err := h.storage.UpsertDevice(r.Context(), &device); err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, status, device)
}

// ownedDevice loads a device and checks it belongs to owner.
func (h *Handler) ownedDevice(r *http.Request, owner, id string) (*model.Device, error) {
	device, err := h.storage.GetDevice(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if device.OwnerID != owner {
		return nil, fmt.Errorf("device %s: %w", id, export.ErrForeignDevice)
	}
	return device, nil
}

// matchDevice handles GET /api/devices/{id}/match
func (h *Handler) matchDevice(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	device, err := h.ownedDevice(r, owner, r.PathValue("id"))
	if err != nil {
		h.handleError(w, err)
		return
	}
	result, err := h.matcher.MatchOne(r.Context(), device)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// alternateTemplates handles GET /api/devices/{id}/alternates.
// ?exclude=<template id> drops one template, ?compatible=true keeps only
// templates compatible with the device classification.
func (h *Handler) alternateTemplates(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	device, err := h.ownedDevice(r, owner, r.PathValue("id"))
	if err != nil {
		h.handleError(w, err)
		return
	}

	q := r.URL.Query()
	compatibleOnly := false
	if v := q.Get("compatible"); v != "" {
		if compatibleOnly, err = strconv.ParseBool(v); err != nil {
			h.writeError(w, http.StatusBadRequest, "compatible must be a boolean")
			return
		}
	}

	templates, err := h.engine.AlternateTemplates(r.Context(), device, q.Get("exclude"), compatibleOnly)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, templates)
}

// matchDevices handles POST /api/match
func (h *Handler) matchDevices(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	var req struct {
		DeviceIDs []string `json:"device_ids"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	matches, err := h.exports.Match(r.Context(), owner, req.DeviceIDs)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, matches)
}

// getSticker handles GET /api/devices/{id}/sticker. The response carries an
// ETag over the resolved document so renderers can skip unchanged stickers.
func (h *Handler) getSticker(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	sticker, err := h.exports.Resolve(r.Context(), owner, r.PathValue("id"), r.URL.Query().Get("template_id"))
	if err != nil {
		h.handleError(w, err)
		return
	}

	body, err := json.Marshal(sticker)
	if err != nil {
		h.internalError(w, err)
		return
	}
	etag := stickerETag(body)
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func stickerETag(body []byte) string {
	sum := blake2b.Sum256(body)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}
