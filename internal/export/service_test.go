package export

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinsuchenak/labeld/internal/layout"
	"github.com/martinsuchenak/labeld/internal/matching"
	"github.com/martinsuchenak/labeld/internal/model"
	"github.com/martinsuchenak/labeld/internal/qr"
)

// memStore is an in-memory Store and matching.TemplateSource.
type memStore struct {
	devices       map[string]*model.Device
	networks      map[string]*model.Network
	organizations map[string]*model.Organization
	templates     []*model.Template
	mappings      []*model.DefaultMapping
	globals       []model.GlobalVariable
	images        []model.ImageAsset

	getDevice, getDevices atomic.Int32
}

func (m *memStore) GetDevice(_ context.Context, id string) (*model.Device, error) {
	m.getDevice.Add(1)
	if d, ok := m.devices[id]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("device %s: %w", id, model.ErrNotFound)
}

func (m *memStore) GetDevices(_ context.Context, ids []string) ([]*model.Device, error) {
	m.getDevices.Add(1)
	var out []*model.Device
	for _, id := range ids {
		if d, ok := m.devices[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memStore) GetNetworks(_ context.Context, ids []string) (map[string]*model.Network, error) {
	out := make(map[string]*model.Network)
	for _, id := range ids {
		if n, ok := m.networks[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

func (m *memStore) GetOrganizations(_ context.Context, ids []string) (map[string]*model.Organization, error) {
	out := make(map[string]*model.Organization)
	for _, id := range ids {
		if o, ok := m.organizations[id]; ok {
			out[id] = o
		}
	}
	return out, nil
}

func (m *memStore) GetTemplate(_ context.Context, id string) (*model.Template, error) {
	for _, t := range m.templates {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("template %s: %w", id, model.ErrNotFound)
}

func (m *memStore) ListGlobals(_ context.Context, ownerID string) ([]model.GlobalVariable, error) {
	return m.globals, nil
}

func (m *memStore) ListImages(_ context.Context, ownerID string) ([]model.ImageAsset, error) {
	return m.images, nil
}

func (m *memStore) ListVisibleTemplates(_ context.Context, ownerID string) ([]*model.Template, error) {
	var out []*model.Template
	for _, t := range m.templates {
		if t.OwnerID == "" || t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) GetDefaultMapping(_ context.Context, ownerID, class string) (*model.DefaultMapping, error) {
	for _, dm := range m.mappings {
		if dm.OwnerID == ownerID && strings.EqualFold(dm.Classification, class) {
			return dm, nil
		}
	}
	return nil, model.ErrNotFound
}

func (m *memStore) ListDefaultMappings(_ context.Context, ownerID string) ([]*model.DefaultMapping, error) {
	return m.mappings, nil
}

type stubQR struct{}

func (stubQR) DataURI(_ context.Context, content string) (string, error) {
	return "data:image/png;base64," + content, nil
}

const owner = "o1"

func sizedTemplate(id, ownerID string, w, h float64, compat ...string) *model.Template {
	return &model.Template{
		ID: id, OwnerID: ownerID, Name: id, Compatibility: compat,
		Document: model.TemplateDocument{Width: w, Height: h, Elements: []model.Element{
			{ID: "name", Kind: model.ElementText, Binding: "device.name", Text: &model.TextProps{}},
			{ID: "where", Kind: model.ElementText, Text: &model.TextProps{Content: "{{network.name}} / {{organization.name}} / {{global.site}}"}},
			{ID: "qr", Kind: model.ElementQR, Binding: "device.qrcode", QR: &model.QRProps{}},
			{ID: "logo", Kind: model.ElementImage, Image: &model.ImageProps{Src: "{{customimage.image_logo}}"}},
		}},
	}
}

func newFixture() *memStore {
	return &memStore{
		devices: map[string]*model.Device{
			"sw1":   {ID: "sw1", OwnerID: owner, Name: "core-sw-01", Classification: "switch", Serial: "S1", NetworkID: "n1"},
			"sw2":   {ID: "sw2", OwnerID: owner, Name: "core-sw-02", Classification: "Switch", Serial: "S2", NetworkID: "n1"},
			"ap1":   {ID: "ap1", OwnerID: owner, Name: "ap-01", Classification: "wireless", Serial: "A1"},
			"other": {ID: "other", OwnerID: "o2", Name: "theirs", Classification: "switch"},
		},
		networks:      map[string]*model.Network{"n1": {ID: "n1", OwnerID: owner, OrganizationID: "org1", Name: "HQ"}},
		organizations: map[string]*model.Organization{"org1": {ID: "org1", OwnerID: owner, Name: "Example"}},
		templates: []*model.Template{
			sizedTemplate("standard", "", 50, 25),
			sizedTemplate("big-switch", owner, 100, 50, "switch"),
			sizedTemplate("private", "o2", 50, 25),
		},
		globals: []model.GlobalVariable{{OwnerID: owner, Key: "site", Value: "AMS1"}},
		images:  []model.ImageAsset{{ID: "logo", OwnerID: owner, DataURI: "data:image/png;base64,LOGO"}},
	}
}

func newService(store *memStore) *Service {
	return NewService(store, matching.NewEngine(store), stubQR{}, 4)
}

func TestResolve(t *testing.T) {
	svc := newService(newFixture())

	st, err := svc.Resolve(context.Background(), owner, "sw1", "")
	require.NoError(t, err)
	assert.Equal(t, "big-switch", st.Match.Template.ID)
	assert.Equal(t, model.ReasonCompatible, st.Match.Reason)

	els := st.Document.Elements
	assert.Equal(t, "core-sw-01", els[0].Text.Content)
	assert.Equal(t, "HQ / Example / AMS1", els[1].Text.Content)
	assert.Equal(t, "data:image/png;base64,S1", els[2].QR.Data)
	assert.Equal(t, "data:image/png;base64,LOGO", els[3].Image.Src)
	assert.Empty(t, st.Document.Missing)
	assert.Equal(t, layout.Size{Width: 100, Height: 50}, st.Size())
}

func TestResolve_NoNetworkLeavesPlaceholders(t *testing.T) {
	st, err := newService(newFixture()).Resolve(context.Background(), owner, "ap1", "")
	require.NoError(t, err)
	assert.Equal(t, "[network.name] / [organization.name] / AMS1", st.Document.Elements[1].Text.Content)
	assert.Equal(t, []string{"network.name", "organization.name"}, st.Document.Missing)
}

func TestResolve_Errors(t *testing.T) {
	svc := newService(newFixture())
	ctx := context.Background()

	_, err := svc.Resolve(ctx, owner, "missing", "")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = svc.Resolve(ctx, owner, "other", "")
	assert.ErrorIs(t, err, model.ErrAccessDenied)
	assert.NotErrorIs(t, err, model.ErrNotFound)

	_, err = svc.Resolve(ctx, owner, "sw1", "private")
	assert.ErrorIs(t, err, ErrForeignTemplate)

	st, err := svc.Resolve(ctx, owner, "sw1", "standard")
	require.NoError(t, err)
	assert.Equal(t, ReasonSelected, st.Match.Reason)
}

func TestPlan_GroupsSizesWithContinuousPages(t *testing.T) {
	store := newFixture()
	svc := newService(store)

	res, err := svc.Plan(context.Background(), owner, PlanRequest{
		DeviceIDs: []string{"sw1", "ap1", "sw2"},
		Page:      layout.Size{Width: 101.6, Height: 152.4},
		Margins:   layout.Margins{Horizontal: 0, Vertical: 2},
		Mode:      layout.ModeAutoFit,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, store.getDevices.Load())
	assert.Zero(t, store.getDevice.Load())
	require.Len(t, res.Stickers, 3)
	assert.Same(t, res.Stickers[0].Match.Template, res.Stickers[2].Match.Template)

	// Two 100x50 switch stickers rotate to one per page; the 50x25 fits
	// unrotated on a page of its own group.
	byDevice := map[string]model.Placement{}
	for _, p := range res.Layout.Placements {
		byDevice[p.DeviceID] = p
	}
	assert.True(t, byDevice["sw1"].Rotated)
	assert.True(t, byDevice["sw2"].Rotated)
	assert.Equal(t, 0, byDevice["sw1"].Page)
	assert.Equal(t, 1, byDevice["sw2"].Page)
	assert.False(t, byDevice["ap1"].Rotated)
	assert.Equal(t, 2, byDevice["ap1"].Page)
	assert.Equal(t, 3, res.Layout.TotalPages)
}

func TestPlan_FailsBeforeLayout(t *testing.T) {
	svc := newService(newFixture())
	ctx := context.Background()

	_, err := svc.Plan(ctx, owner, PlanRequest{
		DeviceIDs: []string{"ap1", "sw1"},
		Page:      layout.Size{Width: 60, Height: 40},
	})
	assert.ErrorIs(t, err, layout.ErrStickerTooLarge)

	_, err = svc.Plan(ctx, owner, PlanRequest{DeviceIDs: []string{"sw1", "other"}, Page: layout.Size{Width: 210, Height: 297}})
	assert.ErrorIs(t, err, model.ErrAccessDenied)

	_, err = svc.Plan(ctx, owner, PlanRequest{DeviceIDs: []string{"sw1", "ghost"}, Page: layout.Size{Width: 210, Height: 297}})
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = svc.Plan(ctx, owner, PlanRequest{Page: layout.Size{Width: 210, Height: 297}})
	assert.ErrorIs(t, err, ErrNoDevices)

	_, err = svc.Plan(ctx, owner, PlanRequest{DeviceIDs: []string{"sw1"}, Page: layout.Size{Width: 210, Height: 297}, Mode: "spiral"})
	assert.ErrorIs(t, err, layout.ErrUnknownMode)
}

func TestPlan_OversizedSerialDegradesToPlaceholder(t *testing.T) {
	store := newFixture()
	store.devices["sw2"].Serial = strings.Repeat("x", qr.MaxContent+1)
	gen, err := qr.NewGenerator(64, "low")
	require.NoError(t, err)
	svc := NewService(store, matching.NewEngine(store), gen, 4)

	res, err := svc.Plan(context.Background(), owner, PlanRequest{
		DeviceIDs: []string{"sw1", "sw2"},
		Page:      layout.Size{Width: 210, Height: 297},
	})
	require.NoError(t, err)
	require.Len(t, res.Stickers, 2)
	assert.Len(t, res.Layout.Placements, 2)

	byDevice := map[string]*Sticker{}
	for _, st := range res.Stickers {
		byDevice[st.DeviceID] = st
	}
	assert.True(t, strings.HasPrefix(byDevice["sw1"].Document.Elements[2].QR.Data, "data:image/png;base64,"))
	assert.Empty(t, byDevice["sw1"].Document.Missing)
	assert.Equal(t, "[device.qrcode]", byDevice["sw2"].Document.Elements[2].QR.Data)
	assert.Equal(t, []string{"device.qrcode"}, byDevice["sw2"].Document.Missing)
}

func TestPlan_ExplicitTemplateOnePerPage(t *testing.T) {
	res, err := newService(newFixture()).Plan(context.Background(), owner, PlanRequest{
		DeviceIDs:  []string{"sw1", "sw2", "ap1"},
		TemplateID: "standard",
		Page:       layout.Size{Width: 100, Height: 100},
		Mode:       layout.ModeOnePerPage,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Layout.TotalPages)
	for i, p := range res.Layout.Placements {
		assert.Equal(t, i, p.Page)
		assert.Equal(t, 25.0, p.X)
		assert.Equal(t, 37.5, p.Y)
	}
	for _, st := range res.Stickers {
		assert.Equal(t, ReasonSelected, st.Match.Reason)
	}
}

func TestMatch(t *testing.T) {
	store := newFixture()
	svc := newService(store)
	ctx := context.Background()

	matches, err := svc.Match(ctx, owner, []string{"sw1", "ap1", "sw2"})
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "big-switch", matches["sw1"].Template.ID)
	assert.Same(t, matches["sw1"].Template, matches["sw2"].Template)
	assert.Equal(t, "standard", matches["ap1"].Template.ID)
	assert.EqualValues(t, 1, store.getDevices.Load())

	_, err = svc.Match(ctx, owner, nil)
	assert.ErrorIs(t, err, ErrNoDevices)

	_, err = svc.Match(ctx, owner, []string{"other"})
	assert.ErrorIs(t, err, model.ErrAccessDenied)
}
