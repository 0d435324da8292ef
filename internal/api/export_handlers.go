package api

import (
	"errors"
	"net/http"

	"github.com/martinsuchenak/labeld/internal/export"
	"github.com/martinsuchenak/labeld/internal/layout"
)

// pageRequest names a page either by size name or by explicit dimensions.
type pageRequest struct {
	PageName string          `json:"page_name,omitempty"`
	Page     *layout.Size    `json:"page,omitempty"`
	Margins  *layout.Margins `json:"margins,omitempty"`
}

func (h *Handler) resolvePage(p pageRequest) (layout.Size, layout.Margins, error) {
	page := h.opts.Page
	switch {
	case p.Page != nil:
		page = *p.Page
	case p.PageName != "":
		size, err := layout.ParseSize(p.PageName)
		if err != nil {
			return layout.Size{}, layout.Margins{}, err
		}
		page = size
	}
	margins := h.opts.Margins
	if p.Margins != nil {
		margins = *p.Margins
	}
	return page, margins, nil
}

type validateResponse struct {
	layout.Fit
	Page    layout.Size    `json:"page"`
	Margins layout.Margins `json:"margins"`
	Columns int            `json:"columns,omitempty"`
	Rows    int            `json:"rows,omitempty"`
	PerPage int            `json:"per_page,omitempty"`
}

// validateLayout handles POST /api/layout/validate. A sticker that does not
// fit is a normal answer (fits=false); only malformed sizes are errors.
func (h *Handler) validateLayout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		pageRequest
		Sticker layout.Size `json:"sticker"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	page, margins, err := h.resolvePage(req.pageRequest)
	if err != nil {
		h.handleError(w, err)
		return
	}

	resp := validateResponse{Page: page, Margins: margins}
	fit, err := layout.Check(req.Sticker, page, margins)
	switch {
	case err == nil:
		grid := layout.GridFor(fit.Size, page, margins)
		resp.Fit = fit
		resp.Columns, resp.Rows, resp.PerPage = grid.Columns, grid.Rows, grid.PerPage()
	case errors.Is(err, layout.ErrStickerTooLarge):
		// reported as fits=false
	default:
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// planExport handles POST /api/export/plan
func (h *Handler) planExport(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	var req struct {
		pageRequest
		DeviceIDs  []string    `json:"device_ids"`
		TemplateID string      `json:"template_id,omitempty"`
		Mode       layout.Mode `json:"mode,omitempty"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	page, margins, err := h.resolvePage(req.pageRequest)
	if err != nil {
		h.handleError(w, err)
		return
	}

	result, err := h.exports.Plan(r.Context(), owner, export.PlanRequest{
		DeviceIDs:  req.DeviceIDs,
		TemplateID: req.TemplateID,
		Page:       page,
		Margins:    margins,
		Mode:       req.Mode,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}
