// Package export composes matching, binding and layout into the sticker
// export flow.
package export

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/martinsuchenak/labeld/internal/binding"
	"github.com/martinsuchenak/labeld/internal/layout"
	"github.com/martinsuchenak/labeld/internal/log"
	"github.com/martinsuchenak/labeld/internal/model"
)

// ReasonSelected marks a template chosen explicitly by the caller.
const ReasonSelected = "selected"

var (
	ErrNoDevices = fmt.Errorf("no devices requested: %w", model.ErrValidation)
	// ErrForeignDevice is returned for a device that exists but belongs to
	// another owner.
	ErrForeignDevice = fmt.Errorf("device belongs to another owner: %w", model.ErrAccessDenied)
	// ErrForeignTemplate is returned for an explicit template the owner
	// cannot see.
	ErrForeignTemplate = fmt.Errorf("template belongs to another owner: %w", model.ErrAccessDenied)
)

// Store is the read side of persistence used by exports.
type Store interface {
	GetDevice(ctx context.Context, id string) (*model.Device, error)
	GetDevices(ctx context.Context, ids []string) ([]*model.Device, error)
	GetNetworks(ctx context.Context, ids []string) (map[string]*model.Network, error)
	GetOrganizations(ctx context.Context, ids []string) (map[string]*model.Organization, error)
	GetTemplate(ctx context.Context, id string) (*model.Template, error)
	ListGlobals(ctx context.Context, ownerID string) ([]model.GlobalVariable, error)
	ListImages(ctx context.Context, ownerID string) ([]model.ImageAsset, error)
}

// Matcher picks templates for devices.
type Matcher interface {
	MatchOne(ctx context.Context, device *model.Device) (*model.MatchResult, error)
	MatchBatch(ctx context.Context, ownerID string, devices []*model.Device) (map[string]*model.MatchResult, error)
}

// Sticker is one device's resolved label.
type Sticker struct {
	DeviceID string                    `json:"device_id"`
	Match    *model.MatchResult        `json:"match"`
	Document *binding.ResolvedDocument `json:"document"`
}

// Size returns the sticker's physical size.
func (s *Sticker) Size() layout.Size {
	return layout.Size{Width: s.Document.Width, Height: s.Document.Height}
}

// PlanRequest describes a batch print job.
type PlanRequest struct {
	DeviceIDs  []string       `json:"device_ids"`
	TemplateID string         `json:"template_id,omitempty"` // empty = match per device
	Page       layout.Size    `json:"page"`
	Margins    layout.Margins `json:"margins"`
	Mode       layout.Mode    `json:"mode,omitempty"`
}

// PlanResult is the resolved stickers plus where each one goes.
type PlanResult struct {
	Stickers []*Sticker        `json:"stickers"`
	Layout   *model.LayoutPlan `json:"layout"`
}

// Service runs exports.
type Service struct {
	store       Store
	matcher     Matcher
	builder     *binding.Builder
	parallelism int
	log         log.Logger
}

// NewService returns a Service. Parallelism bounds concurrent context
// building; zero or less uses GOMAXPROCS.
func NewService(store Store, matcher Matcher, qr binding.QRGenerator, parallelism int) *Service {
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	return &Service{
		store:       store,
		matcher:     matcher,
		builder:     binding.NewBuilder(qr),
		parallelism: parallelism,
		log:         log.With("component", "export"),
	}
}

// Resolve builds the sticker for one device. With an empty templateID the
// template is matched; otherwise the given template is used.
func (s *Service) Resolve(ctx context.Context, ownerID, deviceID, templateID string) (*Sticker, error) {
	device, err := s.store.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if device.OwnerID != ownerID {
		return nil, fmt.Errorf("device %s: %w", deviceID, ErrForeignDevice)
	}

	var match *model.MatchResult
	if templateID != "" {
		match, err = s.selected(ctx, ownerID, templateID)
	} else {
		match, err = s.matcher.MatchOne(ctx, device)
	}
	if err != nil {
		return nil, err
	}

	data, err := s.loadRelated(ctx, ownerID, []*model.Device{device})
	if err != nil {
		return nil, err
	}
	return s.sticker(ctx, device, match, data)
}

// Match picks templates for several devices of one owner with a single
// bulk device fetch and a single MatchBatch.
func (s *Service) Match(ctx context.Context, ownerID string, deviceIDs []string) (map[string]*model.MatchResult, error) {
	if len(deviceIDs) == 0 {
		return nil, ErrNoDevices
	}
	devices, err := s.loadDevices(ctx, ownerID, deviceIDs)
	if err != nil {
		return nil, err
	}
	return s.matcher.MatchBatch(ctx, ownerID, devices)
}

// Plan resolves every requested device and lays the stickers out on pages.
// Every sticker size is checked against the page before anything is placed,
// so a job either plans completely or fails.
func (s *Service) Plan(ctx context.Context, ownerID string, req PlanRequest) (*PlanResult, error) {
	if len(req.DeviceIDs) == 0 {
		return nil, ErrNoDevices
	}
	if req.Mode != "" && req.Mode != layout.ModeAutoFit && req.Mode != layout.ModeOnePerPage {
		return nil, fmt.Errorf("%q: %w", req.Mode, layout.ErrUnknownMode)
	}

	devices, err := s.loadDevices(ctx, ownerID, req.DeviceIDs)
	if err != nil {
		return nil, err
	}

	matches := make(map[string]*model.MatchResult, len(devices))
	if req.TemplateID != "" {
		match, err := s.selected(ctx, ownerID, req.TemplateID)
		if err != nil {
			return nil, err
		}
		for _, d := range devices {
			matches[d.ID] = match
		}
	} else if matches, err = s.matcher.MatchBatch(ctx, ownerID, devices); err != nil {
		return nil, err
	}

	// Sizes come from templates, so the page check needs no binding work.
	for _, d := range devices {
		doc := &matches[d.ID].Template.Document
		size := layout.Size{Width: doc.Width, Height: doc.Height}
		if _, err := layout.Check(size, req.Page, req.Margins); err != nil {
			return nil, fmt.Errorf("template %q: %w", matches[d.ID].Template.Name, err)
		}
	}

	data, err := s.loadRelated(ctx, ownerID, devices)
	if err != nil {
		return nil, err
	}

	stickers := make([]*Sticker, len(devices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, d := range devices {
		g.Go(func() error {
			st, err := s.sticker(gctx, d, matches[d.ID], data)
			if err != nil {
				return err
			}
			stickers[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	plan, err := planGroups(stickers, req)
	if err != nil {
		return nil, err
	}
	s.log.Info("Export planned", "owner_id", ownerID, "devices", len(stickers), "pages", plan.TotalPages, "mode", string(req.Mode))
	return &PlanResult{Stickers: stickers, Layout: plan}, nil
}

// planGroups lays out each sticker size separately, in order of first
// appearance, numbering pages continuously.
func planGroups(stickers []*Sticker, req PlanRequest) (*model.LayoutPlan, error) {
	var order []layout.Size
	groups := make(map[layout.Size][]string)
	for _, st := range stickers {
		size := st.Size()
		if _, ok := groups[size]; !ok {
			order = append(order, size)
		}
		groups[size] = append(groups[size], st.DeviceID)
	}

	out := &model.LayoutPlan{Placements: make([]model.Placement, 0, len(stickers))}
	for _, size := range order {
		plan, err := layout.Plan(req.Mode, groups[size], size, req.Page, req.Margins)
		if err != nil {
			return nil, err
		}
		for _, p := range plan.Placements {
			p.Page += out.TotalPages
			out.Placements = append(out.Placements, p)
		}
		out.TotalPages += plan.TotalPages
	}
	return out, nil
}

// loadDevices fetches all devices in one call and checks ownership.
func (s *Service) loadDevices(ctx context.Context, ownerID string, ids []string) ([]*model.Device, error) {
	devices, err := s.store.GetDevices(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading devices: %w", err)
	}
	found := make(map[string]bool, len(devices))
	for _, d := range devices {
		if d.OwnerID != ownerID {
			return nil, fmt.Errorf("device %s: %w", d.ID, ErrForeignDevice)
		}
		found[d.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return nil, fmt.Errorf("device %s: %w", id, model.ErrNotFound)
		}
	}
	return devices, nil
}

func (s *Service) selected(ctx context.Context, ownerID, templateID string) (*model.MatchResult, error) {
	t, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if !t.IsShared() && t.OwnerID != ownerID {
		return nil, fmt.Errorf("template %s: %w", templateID, ErrForeignTemplate)
	}
	return &model.MatchResult{Template: t, Reason: ReasonSelected, Confidence: 1.0}, nil
}

// related is the per-owner data shared by every sticker in a job.
type related struct {
	networks      map[string]*model.Network
	organizations map[string]*model.Organization
	globals       []model.GlobalVariable
	images        []model.ImageAsset
}

func (s *Service) loadRelated(ctx context.Context, ownerID string, devices []*model.Device) (*related, error) {
	var networkIDs []string
	seen := make(map[string]bool)
	for _, d := range devices {
		if d.NetworkID != "" && !seen[d.NetworkID] {
			seen[d.NetworkID] = true
			networkIDs = append(networkIDs, d.NetworkID)
		}
	}

	r := &related{}
	var err error
	if r.networks, err = s.store.GetNetworks(ctx, networkIDs); err != nil {
		return nil, fmt.Errorf("loading networks: %w", err)
	}

	var orgIDs []string
	for _, n := range r.networks {
		if n.OrganizationID != "" && !seen[n.OrganizationID] {
			seen[n.OrganizationID] = true
			orgIDs = append(orgIDs, n.OrganizationID)
		}
	}
	if r.organizations, err = s.store.GetOrganizations(ctx, orgIDs); err != nil {
		return nil, fmt.Errorf("loading organizations: %w", err)
	}
	if r.globals, err = s.store.ListGlobals(ctx, ownerID); err != nil {
		return nil, fmt.Errorf("loading globals: %w", err)
	}
	if r.images, err = s.store.ListImages(ctx, ownerID); err != nil {
		return nil, fmt.Errorf("loading images: %w", err)
	}
	return r, nil
}

func (s *Service) sticker(ctx context.Context, d *model.Device, match *model.MatchResult, r *related) (*Sticker, error) {
	if match == nil || match.Template == nil {
		return nil, fmt.Errorf("device %s has no template: %w", d.ID, model.ErrConfiguration)
	}
	in := binding.Input{
		Device:  d,
		Globals: r.globals,
		Images:  r.images,
		Refs:    binding.ExtractReferences(&match.Template.Document),
	}
	if n, ok := r.networks[d.NetworkID]; ok && n.OwnerID == d.OwnerID {
		in.Network = n
		if o, ok := r.organizations[n.OrganizationID]; ok && o.OwnerID == d.OwnerID {
			in.Organization = o
		}
	}

	bctx, err := s.builder.BuildContext(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", d.ID, err)
	}
	doc := binding.Merge(&match.Template.Document, bctx)
	if len(doc.Missing) > 0 {
		s.log.Debug("Unresolved references", "device_id", d.ID, "template_id", match.Template.ID, "missing", doc.Missing)
	}
	return &Sticker{DeviceID: d.ID, Match: match, Document: doc}, nil
}
