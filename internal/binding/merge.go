package binding

import (
	"strings"

	"github.com/martinsuchenak/labeld/internal/model"
)

// ResolvedDocument is a template document with every reference substituted.
type ResolvedDocument struct {
	model.TemplateDocument
	// Missing lists references that had no value and were replaced by a
	// placeholder.
	Missing []string `json:"missing,omitempty"`
}

// Merge substitutes context values into a copy of doc. References without a
// value become "[prefix.field]"; the output never contains {{...}}. The
// input document is not modified.
func Merge(doc *model.TemplateDocument, c *Context) *ResolvedDocument {
	if c == nil {
		c = NewContext()
	}
	m := merger{ctx: c, missing: make(ReferenceSet)}

	out := &ResolvedDocument{TemplateDocument: model.TemplateDocument{
		Width:    doc.Width,
		Height:   doc.Height,
		Elements: make([]model.Element, len(doc.Elements)),
	}}
	for i := range doc.Elements {
		out.Elements[i] = m.element(doc.Elements[i])
	}

	for _, ref := range m.missing.Sorted() {
		out.Missing = append(out.Missing, ref.String())
	}
	return out
}

type merger struct {
	ctx     *Context
	missing ReferenceSet
}

func (m *merger) resolve(ref Reference) string {
	if v, ok := m.ctx.Lookup(ref); ok {
		return v
	}
	m.missing.Add(ref)
	return ref.Placeholder()
}

// substitute resolves every {{prefix.field}} span in s, then neutralizes
// whatever {{...}} syntax is left (malformed spans, nested braces, or braces
// that came in through a resolved value).
func (m *merger) substitute(s string) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	s = placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		inner := strings.TrimSpace(match[2 : len(match)-2])
		if ref, ok := ParseReference(inner); ok {
			return m.resolve(ref)
		}
		return "[" + inner + "]"
	})
	return neutralize(s)
}

// neutralize rewrites {{x}} as [x] until no span is left, then turns any
// unclosed "{{" into "[". It never looks up values, and each pass removes at
// least one "{{", so it terminates.
func neutralize(s string) string {
	for strings.Contains(s, "{{") && placeholderPattern.MatchString(s) {
		s = placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
			return "[" + strings.TrimSpace(match[2:len(match)-2]) + "]"
		})
	}
	return strings.ReplaceAll(s, "{{", "[")
}

func (m *merger) element(el model.Element) model.Element {
	// Property blocks are pointers; copy them so the template is untouched.
	if el.Text != nil {
		t := *el.Text
		el.Text = &t
	}
	if el.QR != nil {
		q := *el.QR
		el.QR = &q
	}
	if el.Image != nil {
		img := *el.Image
		el.Image = &img
	}
	if el.Shape != nil {
		s := *el.Shape
		el.Shape = &s
	}

	for _, s := range embeddedStrings(&el) {
		*s = m.substitute(*s)
	}

	if el.Binding == "" {
		return el
	}
	ref, ok := ParseReference(el.Binding)
	if !ok {
		el.Binding = ""
		return el
	}
	el.Binding = ref.String()
	value := neutralize(m.resolve(ref))
	switch {
	case el.Text != nil:
		el.Text.Content = value
	case el.QR != nil:
		el.QR.Data = value
	case el.Image != nil:
		el.Image.Src = value
	}
	return el
}
