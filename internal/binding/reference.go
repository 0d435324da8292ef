// Package binding resolves the symbolic references in a template document
// (device.serial, global.site, customimage.image_12, ...) to concrete values.
package binding

import (
	"regexp"
	"sort"
	"strings"

	"github.com/martinsuchenak/labeld/internal/model"
)

// Reference prefixes with dedicated handling.
const (
	PrefixDevice       = "device"
	PrefixNetwork      = "network"
	PrefixOrganization = "organization"
	PrefixGlobal       = "global"
	PrefixCustomImage  = "customimage"

	// FieldQRCode is resolved to an image data-URI rather than text.
	FieldQRCode = "qrcode"
)

// Reference is a normalized prefix.field pair.
type Reference struct {
	Prefix string
	Field  string
}

func (r Reference) String() string {
	return r.Prefix + "." + r.Field
}

// Placeholder is substituted for references with no value.
func (r Reference) Placeholder() string {
	return "[" + r.String() + "]"
}

// ParseReference parses "prefix.field", optionally wrapped in {{ }}. The
// result is lowercased.
func ParseReference(s string) (Reference, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{{") && strings.HasSuffix(s, "}}") {
		s = strings.TrimSpace(s[2 : len(s)-2])
	}
	if !model.ValidBinding(s) {
		return Reference{}, false
	}
	prefix, field, _ := strings.Cut(strings.ToLower(s), ".")
	return Reference{Prefix: prefix, Field: field}, true
}

// ReferenceSet is a set of distinct references.
type ReferenceSet map[Reference]struct{}

func (s ReferenceSet) Add(r Reference) { s[r] = struct{}{} }

func (s ReferenceSet) Has(r Reference) bool {
	_, ok := s[r]
	return ok
}

// Sorted returns the references in lexical order.
func (s ReferenceSet) Sorted() []Reference {
	out := make([]Reference, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// placeholderPattern matches any {{...}} span, well-formed or not.
var placeholderPattern = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// ExtractReferences returns the distinct references used by a document,
// through element bindings or {{prefix.field}} placeholders in text content,
// QR data and image sources.
func ExtractReferences(doc *model.TemplateDocument) ReferenceSet {
	refs := make(ReferenceSet)
	for i := range doc.Elements {
		el := &doc.Elements[i]
		if ref, ok := ParseReference(el.Binding); ok {
			refs.Add(ref)
		}
		for _, s := range embeddedStrings(el) {
			for _, m := range placeholderPattern.FindAllStringSubmatch(*s, -1) {
				if ref, ok := ParseReference(m[1]); ok {
					refs.Add(ref)
				}
			}
		}
	}
	return refs
}

// embeddedStrings returns the element fields that may carry placeholders.
func embeddedStrings(el *model.Element) []*string {
	var out []*string
	if el.Text != nil {
		out = append(out, &el.Text.Content)
	}
	if el.QR != nil {
		out = append(out, &el.QR.Data)
	}
	if el.Image != nil {
		out = append(out, &el.Image.Src)
	}
	return out
}
