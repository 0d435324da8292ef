package binding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/martinsuchenak/labeld/internal/log"
	"github.com/martinsuchenak/labeld/internal/model"
)

// QRGenerator turns text into a data-URI of a scannable image.
type QRGenerator interface {
	DataURI(ctx context.Context, content string) (string, error)
}

// Input is everything known about one device at export time. Network and
// Organization may be nil.
type Input struct {
	Device       *model.Device
	Network      *model.Network
	Organization *model.Organization
	Globals      []model.GlobalVariable
	Images       []model.ImageAsset

	// Refs limits QR generation to the *.qrcode references a document
	// actually uses. Nil generates every QR code.
	Refs ReferenceSet
}

// Builder builds binding contexts.
type Builder struct {
	qr  QRGenerator
	log log.Logger
}

// NewBuilder returns a Builder. A nil generator leaves *.qrcode unbound.
func NewBuilder(qr QRGenerator) *Builder {
	return &Builder{qr: qr, log: log.With("component", "binding")}
}

// BuildContext assembles the values for one device.
func (b *Builder) BuildContext(ctx context.Context, in Input) (*Context, error) {
	if in.Device == nil {
		return nil, fmt.Errorf("building context: nil device: %w", model.ErrValidation)
	}
	c := NewContext()

	d := in.Device
	c.Set(PrefixDevice, "id", d.ID)
	c.Set(PrefixDevice, "name", d.Name)
	c.Set(PrefixDevice, "classification", d.Classification)
	c.Set(PrefixDevice, "type", d.Classification)
	c.Set(PrefixDevice, "model", d.MakeModel)
	c.Set(PrefixDevice, "serial", d.Serial)
	c.Set(PrefixDevice, "mac", d.MAC)
	c.Set(PrefixDevice, "ip", d.IP)
	c.Set(PrefixDevice, "url", d.URL)
	c.Set(PrefixDevice, "notes", d.Notes)
	c.Set(PrefixDevice, "tags", strings.Join(d.Tags, ", "))
	if err := b.setQR(ctx, c, in.Refs, PrefixDevice, firstNonEmpty(d.Serial, d.URL)); err != nil {
		return nil, err
	}

	if n := in.Network; n != nil {
		c.Set(PrefixNetwork, "id", n.ID)
		c.Set(PrefixNetwork, "name", n.Name)
		c.Set(PrefixNetwork, "subnet", n.Subnet)
		c.Set(PrefixNetwork, "url", n.URL)
		c.Set(PrefixNetwork, "description", n.Description)
		if err := b.setQR(ctx, c, in.Refs, PrefixNetwork, n.URL); err != nil {
			return nil, err
		}
	}

	if o := in.Organization; o != nil {
		c.Set(PrefixOrganization, "id", o.ID)
		c.Set(PrefixOrganization, "name", o.Name)
		c.Set(PrefixOrganization, "url", o.URL)
		c.Set(PrefixOrganization, "description", o.Description)
		if err := b.setQR(ctx, c, in.Refs, PrefixOrganization, o.URL); err != nil {
			return nil, err
		}
	}

	for _, g := range in.Globals {
		if g.OwnerID != "" && g.OwnerID != d.OwnerID {
			continue
		}
		c.Set(PrefixGlobal, g.Key, g.Value)
	}

	for i := range in.Images {
		img := &in.Images[i]
		// Deleted or foreign images must never be reachable from a template.
		if img.Deleted() || (img.OwnerID != "" && img.OwnerID != d.OwnerID) {
			continue
		}
		c.Set(PrefixCustomImage, ImageField(img.ID), img.DataURI)
	}

	return c, nil
}

// ImageField returns the customimage field name for an image id.
func ImageField(id string) string {
	return "image_" + strings.ToLower(id)
}

func (b *Builder) setQR(ctx context.Context, c *Context, refs ReferenceSet, prefix, content string) error {
	if b.qr == nil || content == "" {
		return nil
	}
	ref := Reference{Prefix: prefix, Field: FieldQRCode}
	if refs != nil && !refs.Has(ref) {
		return nil
	}
	uri, err := b.qr.DataURI(ctx, content)
	switch {
	case errors.Is(err, model.ErrValidation):
		// Unencodable content leaves the code unbound; Merge reports it missing.
		b.log.Warn("QR code skipped", "ref", ref.String(), "bytes", len(content), "error", err)
		return nil
	case err != nil:
		return fmt.Errorf("generating %s: %w", ref, err)
	}
	b.log.Trace("QR code generated", "ref", ref.String(), "bytes", len(uri))
	c.Set(prefix, FieldQRCode, uri)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
