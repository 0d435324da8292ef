package model

import (
	"fmt"
	"math"
	"strings"
)

// ElementKind discriminates template elements.
type ElementKind string

const (
	ElementQR    ElementKind = "qr"
	ElementText  ElementKind = "text"
	ElementImage ElementKind = "image"
	ElementShape ElementKind = "shape"
)

// TemplateDocument is the printable content of a template. Dimensions are in
// millimetres.
type TemplateDocument struct {
	Width    float64   `json:"width" yaml:"width"`
	Height   float64   `json:"height" yaml:"height"`
	Elements []Element `json:"elements" yaml:"elements"`
}

// Element is a positioned item on a sticker. Exactly one of the property
// blocks matching Kind is set. Binding optionally names a symbolic reference
// (prefix.field) that supplies the element's value at export time.
type Element struct {
	ID       string      `json:"id" yaml:"id"`
	Kind     ElementKind `json:"kind" yaml:"kind"`
	X        float64     `json:"x" yaml:"x"`
	Y        float64     `json:"y" yaml:"y"`
	Width    float64     `json:"width" yaml:"width"`
	Height   float64     `json:"height" yaml:"height"`
	Rotation float64     `json:"rotation,omitempty" yaml:"rotation,omitempty"`
	Binding  string      `json:"binding,omitempty" yaml:"binding,omitempty"`

	Text  *TextProps  `json:"text,omitempty" yaml:"text,omitempty"`
	QR    *QRProps    `json:"qr,omitempty" yaml:"qr,omitempty"`
	Image *ImageProps `json:"image,omitempty" yaml:"image,omitempty"`
	Shape *ShapeProps `json:"shape,omitempty" yaml:"shape,omitempty"`
}

type TextProps struct {
	Content    string  `json:"content" yaml:"content"` // may embed {{prefix.field}} placeholders
	FontFamily string  `json:"font_family,omitempty" yaml:"font_family,omitempty"`
	FontSize   float64 `json:"font_size,omitempty" yaml:"font_size,omitempty"`
	Bold       bool    `json:"bold,omitempty" yaml:"bold,omitempty"`
	Align      string  `json:"align,omitempty" yaml:"align,omitempty"`
}

type QRProps struct {
	Data  string `json:"data" yaml:"data"` // data-URI once resolved
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
}

type ImageProps struct {
	Src string `json:"src" yaml:"src"`
	Fit string `json:"fit,omitempty" yaml:"fit,omitempty"` // contain, cover, stretch
}

type ShapeProps struct {
	Type        string  `json:"type" yaml:"type"` // rect, ellipse, line
	Stroke      string  `json:"stroke,omitempty" yaml:"stroke,omitempty"`
	Fill        string  `json:"fill,omitempty" yaml:"fill,omitempty"`
	StrokeWidth float64 `json:"stroke_width,omitempty" yaml:"stroke_width,omitempty"`
}

// Validate checks the document shape. The returned error wraps ErrValidation.
func (d *TemplateDocument) Validate() error {
	if !positive(d.Width) || !positive(d.Height) {
		return fmt.Errorf("document size %gx%g: %w", d.Width, d.Height, ErrValidation)
	}
	for i := range d.Elements {
		if err := d.Elements[i].Validate(); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// Validate checks a single element.
func (e *Element) Validate() error {
	if !nonNegative(e.X) || !nonNegative(e.Y) || !nonNegative(e.Width) || !nonNegative(e.Height) {
		return fmt.Errorf("invalid geometry: %w", ErrValidation)
	}

	set := map[ElementKind]bool{
		ElementText:  e.Text != nil,
		ElementQR:    e.QR != nil,
		ElementImage: e.Image != nil,
		ElementShape: e.Shape != nil,
	}
	present, known := set[e.Kind]
	if !known {
		return fmt.Errorf("unknown kind %q: %w", e.Kind, ErrValidation)
	}
	if !present {
		return fmt.Errorf("%s element without %s properties: %w", e.Kind, e.Kind, ErrValidation)
	}
	for kind, ok := range set {
		if ok && kind != e.Kind {
			return fmt.Errorf("%s element carries %s properties: %w", e.Kind, kind, ErrValidation)
		}
	}

	if e.Binding != "" {
		if e.Kind == ElementShape {
			return fmt.Errorf("shape elements cannot be bound: %w", ErrValidation)
		}
		if !ValidBinding(e.Binding) {
			return fmt.Errorf("invalid binding %q: %w", e.Binding, ErrValidation)
		}
	}
	return nil
}

// ValidBinding reports whether s has the form prefix.field, optionally
// wrapped in {{ }}.
func ValidBinding(s string) bool {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{{") && strings.HasSuffix(s, "}}") {
		s = strings.TrimSpace(s[2 : len(s)-2])
	}
	prefix, field, ok := strings.Cut(s, ".")
	return ok && isIdent(prefix) && isIdent(field)
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

func positive(v float64) bool    { return v > 0 && !math.IsInf(v, 0) }
func nonNegative(v float64) bool { return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v) }
