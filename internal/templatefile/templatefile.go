// Package templatefile reads and writes template definitions as YAML or
// JSON files, the format used by "labeld template import".
package templatefile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/martinsuchenak/labeld/internal/model"
)

type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFor picks the format from a file extension. Anything that is not
// .json is read as YAML, which also accepts JSON.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Load reads and validates a template file.
func Load(path string) (*model.Template, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := Decode(f, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Decode parses and validates one template. Unknown fields are rejected so
// typos in element properties do not silently vanish.
func Decode(r io.Reader, format Format) (*model.Template, error) {
	var t model.Template
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&t); err != nil {
			return nil, fmt.Errorf("parsing template: %v: %w", err, model.ErrValidation)
		}
	default:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&t); err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("empty template file: %w", model.ErrValidation)
			}
			return nil, fmt.Errorf("parsing template: %v: %w", err, model.ErrValidation)
		}
	}

	if strings.TrimSpace(t.Name) == "" {
		return nil, fmt.Errorf("template name is required: %w", model.ErrValidation)
	}
	if err := t.Document.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Encode writes a template. Timestamps are omitted in YAML.
func Encode(w io.Writer, t *model.Template, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	default:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("encoding template: %w", err)
		}
		if err := enc.Close(); err != nil {
			return err
		}
		_, err := w.Write(buf.Bytes())
		return err
	}
}
