package templatefile

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/martinsuchenak/labeld/internal/model"
)

const switchYAML = `
name: Switch Port Label
description: Rack switch with QR
compatibility: [switch, router]
document:
  width: 100
  height: 50
  elements:
    - id: title
      kind: text
      x: 2
      y: 2
      width: 60
      height: 10
      binding: device.name
      text:
        font_size: 12
        bold: true
    - id: code
      kind: qr
      x: 70
      y: 2
      width: 28
      height: 28
      binding: "{{device.qrcode}}"
      qr:
        level: high
    - id: border
      kind: shape
      width: 100
      height: 50
      shape:
        type: rect
        stroke: "#000"
`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "switch.yaml")
	if err := os.WriteFile(path, []byte(switchYAML), 0644); err != nil {
		t.Fatal(err)
	}

	tpl, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if tpl.Name != "Switch Port Label" || len(tpl.Compatibility) != 2 {
		t.Errorf("Unexpected template header: %+v", tpl)
	}
	if len(tpl.Document.Elements) != 3 || tpl.Document.Elements[1].QR == nil || tpl.Document.Elements[1].QR.Level != "high" {
		t.Errorf("Unexpected elements: %+v", tpl.Document.Elements)
	}
	if !tpl.IsCompatibleWith("ROUTER") {
		t.Error("Expected compatibility with router")
	}
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		format Format
	}{
		{"empty", "", FormatYAML},
		{"unknown field", "name: x\ndocument: {width: 10, height: 10}\ncolour: red\n", FormatYAML},
		{"missing name", "document: {width: 10, height: 10}\n", FormatYAML},
		{"zero size", "name: x\ndocument: {width: 0, height: 10}\n", FormatYAML},
		{"bound shape", `{"name":"x","document":{"width":10,"height":10,"elements":[{"kind":"shape","binding":"device.name","shape":{"type":"rect"}}]}}`, FormatJSON},
		{"bad json", `{"name":`, FormatJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input), tt.format)
			if !errors.Is(err, model.ErrValidation) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	tpl, err := Decode(strings.NewReader(switchYAML), FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	for _, format := range []Format{FormatYAML, FormatJSON} {
		var buf bytes.Buffer
		if err := Encode(&buf, tpl, format); err != nil {
			t.Fatalf("Encode(%s) error = %v", format, err)
		}
		if format == FormatJSON {
			// JSON output carries timestamps, which Decode accepts.
			if !strings.Contains(buf.String(), `"created_at"`) {
				t.Errorf("Expected timestamps in JSON output")
			}
		}
		back, err := Decode(&buf, format)
		if err != nil {
			t.Fatalf("Decode(%s) error = %v", format, err)
		}
		if back.Name != tpl.Name || len(back.Document.Elements) != len(tpl.Document.Elements) {
			t.Errorf("%s round trip lost data", format)
		}
	}
}

func TestFormatFor(t *testing.T) {
	if FormatFor("a/b.JSON") != FormatJSON || FormatFor("a.yml") != FormatYAML || FormatFor("noext") != FormatYAML {
		t.Error("Unexpected format detection")
	}
}
