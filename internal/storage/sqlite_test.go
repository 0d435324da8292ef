package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/martinsuchenak/labeld/internal/model"
)

// setupTestStorage creates a temporary storage instance for testing
func setupTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	storage, err := NewSQLiteStorage(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create test storage: %v", err)
	}
	t.Cleanup(func() { storage.Close() })
	return storage
}

func testTemplate(ownerID, name string, compat ...string) *model.Template {
	return &model.Template{
		OwnerID:       ownerID,
		Name:          name,
		Compatibility: compat,
		Document: model.TemplateDocument{
			Width:  50,
			Height: 25,
			Elements: []model.Element{
				{ID: "serial", Kind: model.ElementText, Width: 40, Height: 8, Binding: "device.serial", Text: &model.TextProps{}},
			},
		},
	}
}

func TestNewSQLiteStorage_SeedsAndMigrates(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	storage, err := NewSQLiteStorage(dir)
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	version, err := storage.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != migrations[len(migrations)-1].version {
		t.Errorf("Expected schema version %d, got %d", migrations[len(migrations)-1].version, version)
	}

	templates, err := storage.ListVisibleTemplates(ctx, "anyone")
	if err != nil {
		t.Fatalf("ListVisibleTemplates() error = %v", err)
	}
	if len(templates) != 1 || templates[0].Name != "Standard" || !templates[0].IsShared() || !templates[0].IsUniversal() {
		t.Fatalf("Expected the shared Standard template, got %+v", templates)
	}
	storage.Close()

	// Reopening must not seed a second copy.
	storage, err = NewSQLiteStorage(dir)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer storage.Close()
	templates, _ = storage.ListVisibleTemplates(ctx, "anyone")
	if len(templates) != 1 {
		t.Errorf("Expected 1 template after reopen, got %d", len(templates))
	}
}

func TestSQLiteStorage_Devices(t *testing.T) {
	ctx := context.Background()
	storage := setupTestStorage(t)

	network := &model.Network{OwnerID: "o1", Name: "HQ", URL: "https://dash/n/1"}
	if err := storage.UpsertNetwork(ctx, network); err != nil {
		t.Fatalf("UpsertNetwork() error = %v", err)
	}

	devices := []*model.Device{
		{OwnerID: "o1", Name: "sw-02", Classification: "Switch", Serial: "S2", NetworkID: network.ID, Tags: []string{"core"}},
		{OwnerID: "o1", Name: "sw-01", Classification: "switch", Serial: "S1"},
		{OwnerID: "o1", Name: "ap-01", Classification: "wireless", Serial: "A1", Tags: []string{"floor-2"}},
		{OwnerID: "o2", Name: "other", Classification: "switch"},
	}
	for _, d := range devices {
		if err := storage.UpsertDevice(ctx, d); err != nil {
			t.Fatalf("UpsertDevice() error = %v", err)
		}
		if d.ID == "" {
			t.Fatal("Expected an ID to be assigned")
		}
	}

	all, err := storage.ListDevices(ctx, "o1", nil)
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if len(all) != 3 || all[0].Name != "ap-01" {
		t.Errorf("Expected 3 devices ordered by name, got %+v", all)
	}

	switches, _ := storage.ListDevices(ctx, "o1", &model.DeviceFilter{Classification: "SWITCH"})
	if len(switches) != 2 {
		t.Errorf("Expected 2 switches, got %d", len(switches))
	}
	tagged, _ := storage.ListDevices(ctx, "o1", &model.DeviceFilter{Tags: []string{"CORE"}})
	if len(tagged) != 1 || tagged[0].Serial != "S2" {
		t.Errorf("Expected the core switch, got %+v", tagged)
	}
	onNetwork, _ := storage.ListDevices(ctx, "o1", &model.DeviceFilter{NetworkID: network.ID})
	if len(onNetwork) != 1 {
		t.Errorf("Expected 1 device on network, got %d", len(onNetwork))
	}

	got, err := storage.GetDevices(ctx, []string{devices[2].ID, "missing", devices[0].ID, devices[2].ID})
	if err != nil {
		t.Fatalf("GetDevices() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != devices[2].ID || got[1].ID != devices[0].ID {
		t.Errorf("Expected devices in request order without duplicates, got %+v", got)
	}

	devices[1].Name = "sw-01-renamed"
	if err := storage.UpsertDevice(ctx, devices[1]); err != nil {
		t.Fatalf("UpsertDevice() update error = %v", err)
	}
	updated, err := storage.GetDevice(ctx, devices[1].ID)
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	if updated.Name != "sw-01-renamed" || updated.Tags == nil {
		t.Errorf("Unexpected device after update: %+v", updated)
	}

	if err := storage.DeleteDevice(ctx, devices[1].ID); err != nil {
		t.Fatalf("DeleteDevice() error = %v", err)
	}
	if _, err := storage.GetDevice(ctx, devices[1].ID); !errors.Is(err, ErrDeviceNotFound) || !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Expected ErrDeviceNotFound, got %v", err)
	}
	if err := storage.DeleteDevice(ctx, devices[1].ID); !IsNotFound(err) {
		t.Errorf("Expected not found on second delete, got %v", err)
	}
}

func TestSQLiteStorage_NetworksAndOrganizations(t *testing.T) {
	ctx := context.Background()
	storage := setupTestStorage(t)

	org := &model.Organization{OwnerID: "o1", Name: "Example Corp", URL: "https://dash/o/1"}
	if err := storage.UpsertOrganization(ctx, org); err != nil {
		t.Fatalf("UpsertOrganization() error = %v", err)
	}
	n1 := &model.Network{OwnerID: "o1", OrganizationID: org.ID, Name: "HQ", Subnet: "10.0.0.0/24"}
	n2 := &model.Network{OwnerID: "o1", Name: "Branch"}
	for _, n := range []*model.Network{n1, n2} {
		if err := storage.UpsertNetwork(ctx, n); err != nil {
			t.Fatalf("UpsertNetwork() error = %v", err)
		}
	}

	networks, err := storage.GetNetworks(ctx, []string{n1.ID, n2.ID, "nope"})
	if err != nil {
		t.Fatalf("GetNetworks() error = %v", err)
	}
	if len(networks) != 2 || networks[n1.ID].OrganizationID != org.ID || networks[n1.ID].Subnet != "10.0.0.0/24" {
		t.Errorf("Unexpected networks: %+v", networks)
	}
	listed, _ := storage.ListNetworks(ctx, "o1")
	if len(listed) != 2 || listed[0].Name != "Branch" {
		t.Errorf("Expected networks ordered by name, got %+v", listed)
	}

	orgs, err := storage.GetOrganizations(ctx, []string{org.ID})
	if err != nil || orgs[org.ID] == nil || orgs[org.ID].URL != org.URL {
		t.Errorf("GetOrganizations() = %+v, %v", orgs, err)
	}
	if _, err := storage.GetOrganization(ctx, "nope"); !errors.Is(err, ErrOrganizationNotFound) {
		t.Errorf("Expected ErrOrganizationNotFound, got %v", err)
	}
	if _, err := storage.GetNetwork(ctx, "nope"); !errors.Is(err, ErrNetworkNotFound) {
		t.Errorf("Expected ErrNetworkNotFound, got %v", err)
	}
}

func TestSQLiteStorage_Templates(t *testing.T) {
	ctx := context.Background()
	storage := setupTestStorage(t)

	mine := testTemplate("o1", "Switch Label", "switch", "router")
	theirs := testTemplate("o2", "Theirs")
	for _, tpl := range []*model.Template{mine, theirs} {
		if err := storage.CreateTemplate(ctx, tpl); err != nil {
			t.Fatalf("CreateTemplate() error = %v", err)
		}
	}

	visible, err := storage.ListVisibleTemplates(ctx, "o1")
	if err != nil {
		t.Fatalf("ListVisibleTemplates() error = %v", err)
	}
	if len(visible) != 2 {
		t.Fatalf("Expected own + shared templates, got %d", len(visible))
	}
	for _, tpl := range visible {
		if tpl.ID == theirs.ID {
			t.Error("Another owner's template is visible")
		}
	}

	got, err := storage.GetTemplate(ctx, mine.ID)
	if err != nil {
		t.Fatalf("GetTemplate() error = %v", err)
	}
	if len(got.Compatibility) != 2 || len(got.Document.Elements) != 1 || got.Document.Elements[0].Text == nil {
		t.Errorf("Template did not round trip: %+v", got)
	}

	mine.Name = "Switch Label v2"
	if err := storage.UpdateTemplate(ctx, mine); err != nil {
		t.Fatalf("UpdateTemplate() error = %v", err)
	}
	hijack := *mine
	hijack.OwnerID = "o2"
	if err := storage.UpdateTemplate(ctx, &hijack); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("Expected ErrTemplateNotFound updating as another owner, got %v", err)
	}

	invalid := testTemplate("o1", "Broken")
	invalid.Document.Elements[0].Kind = "hologram"
	if err := storage.CreateTemplate(ctx, invalid); !errors.Is(err, model.ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestSQLiteStorage_DefaultMappings(t *testing.T) {
	ctx := context.Background()
	storage := setupTestStorage(t)

	mine := testTemplate("o1", "Switch Label", "switch")
	theirs := testTemplate("o2", "Theirs")
	storage.CreateTemplate(ctx, mine)
	storage.CreateTemplate(ctx, theirs)

	if err := storage.SetDefaultMapping(ctx, &model.DefaultMapping{OwnerID: "o1", Classification: " Switch ", TemplateID: mine.ID, Active: true}); err != nil {
		t.Fatalf("SetDefaultMapping() error = %v", err)
	}
	for _, class := range []string{"switch", "SWITCH", "Switch"} {
		m, err := storage.GetDefaultMapping(ctx, "o1", class)
		if err != nil {
			t.Fatalf("GetDefaultMapping(%q) error = %v", class, err)
		}
		if m.TemplateID != mine.ID || m.Classification != "switch" {
			t.Errorf("Unexpected mapping: %+v", m)
		}
	}

	err := storage.SetDefaultMapping(ctx, &model.DefaultMapping{OwnerID: "o1", Classification: "camera", TemplateID: theirs.ID, Active: true})
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("Expected mapping to another owner's template to fail, got %v", err)
	}

	// Replacing keeps a single row; inactive rows are not returned.
	storage.SetDefaultMapping(ctx, &model.DefaultMapping{OwnerID: "o1", Classification: "SWITCH", TemplateID: mine.ID, Active: false})
	if _, err := storage.GetDefaultMapping(ctx, "o1", "switch"); !errors.Is(err, ErrMappingNotFound) {
		t.Errorf("Expected inactive mapping to be hidden, got %v", err)
	}
	mappings, _ := storage.ListDefaultMappings(ctx, "o1")
	if len(mappings) != 0 {
		t.Errorf("Expected no active mappings, got %d", len(mappings))
	}

	storage.SetDefaultMapping(ctx, &model.DefaultMapping{OwnerID: "o1", Classification: "switch", TemplateID: mine.ID, Active: true})
	if err := storage.DeleteTemplate(ctx, mine.ID); err != nil {
		t.Fatalf("DeleteTemplate() error = %v", err)
	}
	if _, err := storage.GetDefaultMapping(ctx, "o1", "switch"); !errors.Is(err, ErrMappingNotFound) {
		t.Errorf("Expected mapping to be removed with its template, got %v", err)
	}
}

func TestSQLiteStorage_GlobalsAndImages(t *testing.T) {
	ctx := context.Background()
	storage := setupTestStorage(t)

	if err := storage.SetGlobal(ctx, &model.GlobalVariable{OwnerID: "o1", Key: "Site_Code", Value: "AMS1"}); err != nil {
		t.Fatalf("SetGlobal() error = %v", err)
	}
	storage.SetGlobal(ctx, &model.GlobalVariable{OwnerID: "o1", Key: "site_code", Value: "AMS2"})
	if err := storage.SetGlobal(ctx, &model.GlobalVariable{OwnerID: "o1", Key: "has space"}); !errors.Is(err, model.ErrValidation) {
		t.Errorf("Expected invalid key to be rejected, got %v", err)
	}
	globals, _ := storage.ListGlobals(ctx, "o1")
	if len(globals) != 1 || globals[0].Key != "site_code" || globals[0].Value != "AMS2" {
		t.Errorf("Unexpected globals: %+v", globals)
	}
	if err := storage.DeleteGlobal(ctx, "o1", "SITE_CODE"); err != nil {
		t.Errorf("DeleteGlobal() error = %v", err)
	}

	logo := &model.ImageAsset{OwnerID: "o1", Name: "logo", DataURI: "data:image/png;base64,AAAA"}
	old := &model.ImageAsset{OwnerID: "o1", Name: "old", DataURI: "data:image/png;base64,BBBB"}
	for _, img := range []*model.ImageAsset{logo, old} {
		if err := storage.CreateImage(ctx, img); err != nil {
			t.Fatalf("CreateImage() error = %v", err)
		}
	}
	if err := storage.CreateImage(ctx, &model.ImageAsset{OwnerID: "o1", DataURI: "https://x/y.png"}); !errors.Is(err, model.ErrValidation) {
		t.Errorf("Expected non data-URI to be rejected, got %v", err)
	}

	if err := storage.DeleteImage(ctx, old.ID); err != nil {
		t.Fatalf("DeleteImage() error = %v", err)
	}
	if err := storage.DeleteImage(ctx, old.ID); !errors.Is(err, ErrImageNotFound) {
		t.Errorf("Expected second delete to report not found, got %v", err)
	}

	images, _ := storage.ListImages(ctx, "o1")
	if len(images) != 1 || images[0].ID != logo.ID {
		t.Errorf("Expected only the live image, got %+v", images)
	}
	deleted, err := storage.GetImage(ctx, old.ID)
	if err != nil || !deleted.Deleted() {
		t.Errorf("Expected soft-deleted image to remain readable, got %+v, %v", deleted, err)
	}
}
