package mcp

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/paularlott/mcp"

	"github.com/martinsuchenak/labeld/internal/export"
	"github.com/martinsuchenak/labeld/internal/layout"
	"github.com/martinsuchenak/labeld/internal/log"
	"github.com/martinsuchenak/labeld/internal/matching"
	"github.com/martinsuchenak/labeld/internal/model"
)

const version = "1.0.0"

// Server exposes template matching, sticker resolution and layout planning
// as MCP tools.
type Server struct {
	mcpServer   *mcp.Server
	storage     Store
	engine      *matching.Engine
	exports     *export.Service
	defaults    Defaults
	bearerToken string
}

// Store is the persistence the tools read directly.
type Store interface {
	ListVisibleTemplates(ctx context.Context, ownerID string) ([]*model.Template, error)
	GetDevice(ctx context.Context, id string) (*model.Device, error)
}

// Defaults apply when a tool call leaves page or margins out.
type Defaults struct {
	Page    layout.Size
	Margins layout.Margins
}

// NewServer creates a new MCP server
func NewServer(store Store, engine *matching.Engine, exports *export.Service, defaults Defaults, bearerToken string) *Server {
	s := &Server{
		mcpServer:   mcp.NewServer("labeld", version),
		storage:     store,
		engine:      engine,
		exports:     exports,
		defaults:    defaults,
		bearerToken: bearerToken,
	}
	s.registerTools()
	return s
}

// Numeric parameters are declared as strings and parsed here, so clients
// may send "62" or "62.5" without caring about JSON number handling.
func (s *Server) registerTools() {
	s.mcpServer.RegisterTool(
		mcp.NewTool("template_list", "List the sticker templates visible to an owner (their own plus shared ones)",
			mcp.String("owner_id", "Owner scope", mcp.Required()),
		),
		s.handleTemplateList,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("template_match", "Pick the best sticker template for one device, or for several at once",
			mcp.String("owner_id", "Owner scope", mcp.Required()),
			mcp.String("device_id", "Device ID"),
			mcp.StringArray("device_ids", "Device IDs for a batch match"),
		),
		s.handleTemplateMatch,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("template_alternates", "List other templates a device could use instead of its match",
			mcp.String("owner_id", "Owner scope", mcp.Required()),
			mcp.String("device_id", "Device ID", mcp.Required()),
			mcp.String("exclude_template_id", "Template to leave out, usually the current match"),
			mcp.String("compatible_only", "true to list only templates compatible with the device classification"),
		),
		s.handleTemplateAlternates,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("sticker_resolve", "Resolve a device's sticker: pick the template and fill in every data reference",
			mcp.String("owner_id", "Owner scope", mcp.Required()),
			mcp.String("device_id", "Device ID", mcp.Required()),
			mcp.String("template_id", "Use this template instead of matching"),
		),
		s.handleStickerResolve,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("layout_validate", "Check whether a sticker fits a page and whether it must be rotated",
			mcp.String("sticker_width", "Sticker width in mm", mcp.Required()),
			mcp.String("sticker_height", "Sticker height in mm", mcp.Required()),
			mcp.String("page", "Page size name (a4, letter, 4x6, ...) or WxH in mm"),
			mcp.String("margin_h", "Horizontal margin in mm"),
			mcp.String("margin_v", "Vertical margin in mm"),
		),
		s.handleLayoutValidate,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("export_plan", "Resolve stickers for several devices and lay them out on pages",
			mcp.String("owner_id", "Owner scope", mcp.Required()),
			mcp.StringArray("device_ids", "Device IDs to print", mcp.Required()),
			mcp.String("template_id", "Use this template for every device instead of matching"),
			mcp.String("page", "Page size name (a4, letter, 4x6, ...) or WxH in mm"),
			mcp.String("margin_h", "Horizontal margin in mm"),
			mcp.String("margin_v", "Vertical margin in mm"),
			mcp.String("mode", "autofit (default) or one_per_page"),
		),
		s.handleExportPlan,
	)
}

// HandleRequest handles MCP HTTP requests with optional bearer token authentication
func (s *Server) HandleRequest(w http.ResponseWriter, r *http.Request) {
	if s.bearerToken != "" {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.bearerToken)) != 1 {
			log.Warn("MCP request rejected", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}
	s.mcpServer.HandleRequest(w, r)
}

// GetHTTPHandler returns the HTTP handler for the MCP server
func (s *Server) GetHTTPHandler() http.HandlerFunc {
	return s.HandleRequest
}

// LogStartup logs MCP server startup information
func (s *Server) LogStartup() {
	log.Info("MCP server initialized", "version", version, "auth", s.bearerToken != "")
}

func (s *Server) handleTemplateList(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	owner, err := req.String("owner_id")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("owner_id is required: " + err.Error())
	}
	templates, err := s.storage.ListVisibleTemplates(ctx, owner)
	if err != nil {
		return nil, toolError("listing templates", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d templates:\n", len(templates))
	for _, t := range templates {
		b.WriteString(templateSummary(t))
		b.WriteByte('\n')
	}
	return mcp.NewToolResponseText(b.String()), nil
}

func (s *Server) handleTemplateMatch(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	owner, err := req.String("owner_id")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("owner_id is required: " + err.Error())
	}
	ids, _ := req.StringSlice("device_ids")
	if id := req.StringOr("device_id", ""); id != "" {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, mcp.NewToolErrorInvalidParams("device_id or device_ids is required")
	}

	matches, err := s.exports.Match(ctx, owner, ids)
	if err != nil {
		return nil, toolError("matching templates", err)
	}
	log.Debug("MCP template match", "owner_id", owner, "devices", len(ids))

	var b strings.Builder
	for _, id := range ids {
		m := matches[id]
		if m == nil {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", id, matchSummary(m))
	}
	return mcp.NewToolResponseText(b.String()), nil
}

func (s *Server) handleTemplateAlternates(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	owner, err := req.String("owner_id")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("owner_id is required: " + err.Error())
	}
	deviceID, err := req.String("device_id")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("device_id is required: " + err.Error())
	}
	compatibleOnly, err := parseBool(req.StringOr("compatible_only", ""))
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("compatible_only: " + err.Error())
	}

	device, err := s.storage.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, toolError("loading device", err)
	}
	if device.OwnerID != owner {
		return nil, toolError("loading device", fmt.Errorf("device %s: %w", deviceID, export.ErrForeignDevice))
	}

	templates, err := s.engine.AlternateTemplates(ctx, device, req.StringOr("exclude_template_id", ""), compatibleOnly)
	if err != nil {
		return nil, toolError("listing alternates", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d alternative templates:\n", len(templates))
	for _, t := range templates {
		b.WriteString(templateSummary(t))
		b.WriteByte('\n')
	}
	return mcp.NewToolResponseText(b.String()), nil
}

func (s *Server) handleStickerResolve(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	owner, err := req.String("owner_id")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("owner_id is required: " + err.Error())
	}
	deviceID, err := req.String("device_id")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("device_id is required: " + err.Error())
	}

	sticker, err := s.exports.Resolve(ctx, owner, deviceID, req.StringOr("template_id", ""))
	if err != nil {
		return nil, toolError("resolving sticker", err)
	}
	return jsonResponse(matchSummary(sticker.Match), sticker)
}

func (s *Server) handleLayoutValidate(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	w, err := parseMM(req.StringOr("sticker_width", ""))
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("sticker_width: " + err.Error())
	}
	h, err := parseMM(req.StringOr("sticker_height", ""))
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("sticker_height: " + err.Error())
	}
	page, margins, err := s.pageParams(req)
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams(err.Error())
	}

	return mcp.NewToolResponseText(fitSummary(layout.Size{Width: w, Height: h}, page, margins)), nil
}

func (s *Server) handleExportPlan(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	owner, err := req.String("owner_id")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("owner_id is required: " + err.Error())
	}
	ids, err := req.StringSlice("device_ids")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("device_ids is required: " + err.Error())
	}
	page, margins, err := s.pageParams(req)
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams(err.Error())
	}

	result, err := s.exports.Plan(ctx, owner, export.PlanRequest{
		DeviceIDs:  ids,
		TemplateID: req.StringOr("template_id", ""),
		Page:       page,
		Margins:    margins,
		Mode:       layout.Mode(req.StringOr("mode", "")),
	})
	if err != nil {
		return nil, toolError("planning export", err)
	}
	summary := fmt.Sprintf("%d stickers on %d pages", len(result.Stickers), result.Layout.TotalPages)
	return jsonResponse(summary, result)
}

func (s *Server) pageParams(req *mcp.ToolRequest) (layout.Size, layout.Margins, error) {
	return resolvePage(s.defaults, req.StringOr("page", ""), req.StringOr("margin_h", ""), req.StringOr("margin_v", ""))
}

func resolvePage(d Defaults, page, marginH, marginV string) (layout.Size, layout.Margins, error) {
	size := d.Page
	if page != "" {
		var err error
		if size, err = layout.ParseSize(page); err != nil {
			return layout.Size{}, layout.Margins{}, err
		}
	}
	margins := d.Margins
	if marginH != "" {
		v, err := parseMM(marginH)
		if err != nil {
			return layout.Size{}, layout.Margins{}, fmt.Errorf("margin_h: %w", err)
		}
		margins.Horizontal = v
	}
	if marginV != "" {
		v, err := parseMM(marginV)
		if err != nil {
			return layout.Size{}, layout.Margins{}, fmt.Errorf("margin_v: %w", err)
		}
		margins.Vertical = v
	}
	return size, margins, nil
}

func parseMM(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "mm"), 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number of millimetres", s)
	}
	if v < 0 {
		return 0, fmt.Errorf("%q must not be negative", s)
	}
	return v, nil
}

func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

// toolError maps engine errors to MCP errors. Caller mistakes are invalid
// params; everything else is internal.
func toolError(action string, err error) error {
	if errors.Is(err, model.ErrConfiguration) {
		log.Error("MCP "+action+" failed", "error", err)
		return mcp.NewToolErrorInternal(action + ": " + err.Error())
	}
	if errors.Is(err, model.ErrValidation) || errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrAccessDenied) {
		return mcp.NewToolErrorInvalidParams(action + ": " + err.Error())
	}
	log.Error("MCP "+action+" failed", "error", err)
	return mcp.NewToolErrorInternal(action + ": " + err.Error())
}

func jsonResponse(summary string, v any) (*mcp.ToolResponse, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, mcp.NewToolErrorInternal("encoding response: " + err.Error())
	}
	return mcp.NewToolResponseText(summary + "\n\n" + string(data)), nil
}

func templateSummary(t *model.Template) string {
	scope := "owner"
	if t.IsShared() {
		scope = "shared"
	}
	compat := "universal"
	if !t.IsUniversal() {
		compat = strings.Join(t.Compatibility, ", ")
	}
	return fmt.Sprintf("- %s (ID: %s, %gx%gmm, %s, %s)", t.Name, t.ID, t.Document.Width, t.Document.Height, scope, compat)
}

func matchSummary(m *model.MatchResult) string {
	out := fmt.Sprintf("%s (ID: %s) reason=%s confidence=%.1f", m.Template.Name, m.Template.ID, m.Reason, m.Confidence)
	if m.MatchedBy != "" {
		out += " matched_by=" + m.MatchedBy
	}
	return out
}

func fitSummary(sticker, page layout.Size, margins layout.Margins) string {
	fit, err := layout.Check(sticker, page, margins)
	if err != nil {
		return fmt.Sprintf("Does not fit: %v", err)
	}
	grid := layout.GridFor(fit.Size, page, margins)
	orientation := "as designed"
	if fit.Rotated {
		orientation = "rotated 90°"
	}
	return fmt.Sprintf("Fits %s on %s: %d columns x %d rows, %d per page", orientation, page, grid.Columns, grid.Rows, grid.PerPage())
}
