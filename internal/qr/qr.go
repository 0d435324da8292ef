// Package qr renders QR codes as PNG data-URIs.
package qr

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/martinsuchenak/labeld/internal/model"
)

const (
	DefaultSize = 256
	// MaxContent is the byte capacity of a version 40 code at medium recovery.
	MaxContent = 2331
)

// Generator encodes text as a QR code image.
type Generator struct {
	size  int
	level qrcode.RecoveryLevel
}

// NewGenerator returns a Generator producing size x size pixel images. Level
// is one of low, medium, high, highest; empty means medium.
func NewGenerator(size int, level string) (*Generator, error) {
	if size <= 0 {
		size = DefaultSize
	}
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return &Generator{size: size, level: lvl}, nil
}

// ParseLevel maps a recovery level name to the encoder's constant.
func ParseLevel(level string) (qrcode.RecoveryLevel, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "m", "medium":
		return qrcode.Medium, nil
	case "l", "low":
		return qrcode.Low, nil
	case "q", "high":
		return qrcode.High, nil
	case "h", "highest":
		return qrcode.Highest, nil
	}
	return 0, fmt.Errorf("unknown QR recovery level %q: %w", level, model.ErrValidation)
}

// PNG encodes content as a PNG image.
func (g *Generator) PNG(content string) ([]byte, error) {
	if content == "" {
		return nil, fmt.Errorf("empty QR content: %w", model.ErrValidation)
	}
	if len(content) > MaxContent {
		return nil, fmt.Errorf("QR content is %d bytes, limit %d: %w", len(content), MaxContent, model.ErrValidation)
	}
	png, err := qrcode.Encode(content, g.level, g.size)
	if err != nil {
		return nil, fmt.Errorf("encoding QR code: %w", err)
	}
	return png, nil
}

// DataURI returns content encoded as a data:image/png;base64 URI.
func (g *Generator) DataURI(ctx context.Context, content string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	png, err := g.PNG(content)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
