// Package matching selects the label template to use for a device.
package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/martinsuchenak/labeld/internal/log"
	"github.com/martinsuchenak/labeld/internal/model"
)

// Confidence per match reason.
const (
	ConfidenceDefault    = 1.0
	ConfidenceCompatible = 0.6
	ConfidenceFallback   = 0.1
)

// ErrNoTemplates means an owner can see no template at all, which only
// happens when the store was never seeded.
var ErrNoTemplates = fmt.Errorf("no templates visible: %w", model.ErrConfiguration)

// TemplateSource is the read side of the template store.
type TemplateSource interface {
	// ListVisibleTemplates returns the owner's templates plus shared ones.
	ListVisibleTemplates(ctx context.Context, ownerID string) ([]*model.Template, error)
	// GetDefaultMapping returns the active mapping for a classification, or
	// an error wrapping model.ErrNotFound.
	GetDefaultMapping(ctx context.Context, ownerID, classification string) (*model.DefaultMapping, error)
	// ListDefaultMappings returns every active mapping of the owner.
	ListDefaultMappings(ctx context.Context, ownerID string) ([]*model.DefaultMapping, error)
}

// Engine resolves devices to templates.
type Engine struct {
	source TemplateSource
	log    log.Logger
}

func NewEngine(source TemplateSource) *Engine {
	return &Engine{source: source, log: log.With("component", "matching")}
}

// MatchOne matches a single device against the templates visible to its
// owner.
func (e *Engine) MatchOne(ctx context.Context, device *model.Device) (*model.MatchResult, error) {
	if device == nil {
		return nil, fmt.Errorf("matching: nil device: %w", model.ErrValidation)
	}
	templates, err := e.source.ListVisibleTemplates(ctx, device.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}
	idx := newScopeIndex(templates)

	if class := model.NormalizeClassification(device.Classification); class != "" {
		m, err := e.source.GetDefaultMapping(ctx, device.OwnerID, class)
		switch {
		case err == nil:
			idx.addDefault(m)
		case !errors.Is(err, model.ErrNotFound):
			return nil, fmt.Errorf("loading default mapping: %w", err)
		}
	}

	res, err := idx.match(device.Classification)
	if err != nil {
		e.log.Error("no templates visible", "owner_id", device.OwnerID, "device_id", device.ID)
		return nil, err
	}
	return res, nil
}

// MatchBatch matches devices that share one owner. Templates and default
// mappings are loaded once, and devices resolving to the same template share
// the same *model.Template. A nil device is a validation error.
func (e *Engine) MatchBatch(ctx context.Context, ownerID string, devices []*model.Device) (map[string]*model.MatchResult, error) {
	templates, err := e.source.ListVisibleTemplates(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}
	mappings, err := e.source.ListDefaultMappings(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("loading default mappings: %w", err)
	}

	idx := newScopeIndex(templates)
	for _, m := range mappings {
		idx.addDefault(m)
	}
	if len(idx.templates) == 0 {
		e.log.Error("no templates visible", "owner_id", ownerID, "devices", len(devices))
		return nil, ErrNoTemplates
	}

	results := make(map[string]*model.MatchResult, len(devices))
	for i, d := range devices {
		if d == nil {
			return nil, fmt.Errorf("matching: nil device at index %d: %w", i, model.ErrValidation)
		}
		res, err := idx.match(d.Classification)
		if err != nil {
			return nil, err
		}
		results[d.ID] = res
	}
	e.log.Debug("batch matched", "owner_id", ownerID, "devices", len(results), "templates", len(idx.templates))
	return results, nil
}

// AlternateTemplates lists the templates a user could pick instead of the
// matched one, ordered by name. excludeID is never included.
func (e *Engine) AlternateTemplates(ctx context.Context, device *model.Device, excludeID string, compatibleOnly bool) ([]*model.Template, error) {
	if device == nil {
		return nil, fmt.Errorf("listing alternates: nil device: %w", model.ErrValidation)
	}
	templates, err := e.source.ListVisibleTemplates(ctx, device.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	out := make([]*model.Template, 0, len(templates))
	for _, t := range templates {
		if t == nil || (excludeID != "" && t.ID == excludeID) {
			continue
		}
		if compatibleOnly && !t.IsCompatibleWith(device.Classification) {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
