package model

import (
	"errors"
	"testing"
)

func TestTemplate_IsCompatibleWith(t *testing.T) {
	tests := []struct {
		name           string
		compatibility  []string
		classification string
		want           bool
	}{
		{"universal nil set", nil, "switch", true},
		{"universal empty set", []string{}, "camera", true},
		{"universal blank entries", []string{" ", ""}, "camera", true},
		{"member", []string{"switch", "router"}, "router", true},
		{"member case-insensitive", []string{"Switch"}, "SWITCH", true},
		{"member with padding", []string{" wireless "}, "wireless", true},
		{"not a member", []string{"switch"}, "camera", false},
		{"empty classification on universal", nil, "", false},
		{"empty classification on explicit set", []string{"switch"}, "  ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := &Template{Compatibility: tt.compatibility}
			if got := tmpl.IsCompatibleWith(tt.classification); got != tt.want {
				t.Errorf("IsCompatibleWith(%q) = %v, want %v", tt.classification, got, tt.want)
			}
		})
	}
}

func TestTemplate_IsShared(t *testing.T) {
	if !(&Template{}).IsShared() {
		t.Error("template without owner should be shared")
	}
	if (&Template{OwnerID: "owner-1"}).IsShared() {
		t.Error("owned template should not be shared")
	}
}

func TestTemplateDocument_Validate(t *testing.T) {
	valid := func() TemplateDocument {
		return TemplateDocument{
			Width:  100,
			Height: 50,
			Elements: []Element{
				{ID: "t1", Kind: ElementText, Width: 40, Height: 10, Binding: "device.name", Text: &TextProps{}},
				{ID: "q1", Kind: ElementQR, Width: 20, Height: 20, Binding: "{{device.qrcode}}", QR: &QRProps{}},
				{ID: "i1", Kind: ElementImage, Width: 20, Height: 20, Image: &ImageProps{Src: "{{customimage.image_1}}"}},
				{ID: "s1", Kind: ElementShape, Width: 100, Height: 1, Shape: &ShapeProps{Type: "line"}},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(d *TemplateDocument)
		wantErr bool
	}{
		{"valid document", func(d *TemplateDocument) {}, false},
		{"zero width", func(d *TemplateDocument) { d.Width = 0 }, true},
		{"negative element geometry", func(d *TemplateDocument) { d.Elements[0].X = -1 }, true},
		{"unknown kind", func(d *TemplateDocument) { d.Elements[0].Kind = "barcode" }, true},
		{"missing properties", func(d *TemplateDocument) { d.Elements[0].Text = nil }, true},
		{"extra properties", func(d *TemplateDocument) { d.Elements[0].QR = &QRProps{} }, true},
		{"bound shape", func(d *TemplateDocument) { d.Elements[3].Binding = "device.name" }, true},
		{"malformed binding", func(d *TemplateDocument) { d.Elements[0].Binding = "devicename" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := valid()
			tt.mutate(&doc)
			err := doc.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestValidBinding(t *testing.T) {
	for _, s := range []string{"device.serial", "{{ Device.QRCode }}", "customimage.image_42", "global.site-code"} {
		if !ValidBinding(s) {
			t.Errorf("ValidBinding(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"", "device", ".serial", "device.", "device.se rial", "{{device}}"} {
		if ValidBinding(s) {
			t.Errorf("ValidBinding(%q) = true, want false", s)
		}
	}
}
