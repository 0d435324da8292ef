package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/martinsuchenak/labeld/internal/model"
)

type migration struct {
	version int
	name    string
	up      func(ctx context.Context, tx *sql.Tx) error
}

// migrations run in order on top of schema.sql. Append only.
var migrations = []migration{
	{version: 1, name: "baseline", up: func(context.Context, *sql.Tx) error { return nil }},
	{version: 2, name: "seed shared template", up: seedSharedTemplate},
	{version: 3, name: "normalize mapping classifications", up: normalizeMappings},
}

// SchemaVersion returns the highest applied migration.
func (ss *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64
	if err := ss.db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version); err != nil {
		return 0, fmt.Errorf("checking migration version: %w", err)
	}
	return int(version.Int64), nil
}

func (ss *SQLiteStorage) migrate(ctx context.Context) error {
	current, err := ss.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := ss.apply(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		ss.log.Info("Applied migration", "version", m.version, "name", m.name)
	}
	return nil
}

func (ss *SQLiteStorage) apply(ctx context.Context, m migration) error {
	tx, err := ss.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.up(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, m.version); err != nil {
		return fmt.Errorf("setting migration version: %w", err)
	}
	return tx.Commit()
}

// StandardTemplate is the shared universal template every installation
// starts with, so matching always has a fallback.
func StandardTemplate() *model.Template {
	return &model.Template{
		Name:        "Standard",
		Description: "Device name, serial number and QR code",
		Document: model.TemplateDocument{
			Width:  62,
			Height: 29,
			Elements: []model.Element{
				{ID: "name", Kind: model.ElementText, X: 2, Y: 2, Width: 34, Height: 8, Binding: "device.name",
					Text: &model.TextProps{FontSize: 11, Bold: true}},
				{ID: "model", Kind: model.ElementText, X: 2, Y: 11, Width: 34, Height: 6,
					Text: &model.TextProps{Content: "{{device.model}}", FontSize: 8}},
				{ID: "serial", Kind: model.ElementText, X: 2, Y: 18, Width: 34, Height: 6,
					Text: &model.TextProps{Content: "S/N {{device.serial}}", FontSize: 8}},
				{ID: "qr", Kind: model.ElementQR, X: 37, Y: 2, Width: 23, Height: 23, Binding: "device.qrcode",
					QR: &model.QRProps{Level: "medium"}},
			},
		},
	}
}

func seedSharedTemplate(ctx context.Context, tx *sql.Tx) error {
	var shared int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM templates WHERE owner_id = ''`).Scan(&shared); err != nil {
		return fmt.Errorf("counting shared templates: %w", err)
	}
	if shared > 0 {
		return nil
	}

	t := StandardTemplate()
	document, err := encodeJSON(t.Document)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO templates (`+templateColumns+`)
		VALUES (?, '', ?, ?, '[]', ?, ?, ?)
	`, newID(), t.Name, t.Description, document, now, now)
	if err != nil {
		return fmt.Errorf("inserting standard template: %w", err)
	}
	return nil
}

// normalizeMappings lowercases classifications written before keys were
// normalized on save. Where two rows collapse to the same key the most
// recently updated one survives.
func normalizeMappings(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM default_mappings
		WHERE classification != LOWER(TRIM(classification))
		  AND EXISTS (
			SELECT 1 FROM default_mappings other
			WHERE other.owner_id = default_mappings.owner_id
			  AND other.classification = LOWER(TRIM(default_mappings.classification))
			  AND other.updated_at >= default_mappings.updated_at
		  )
	`)
	if err != nil {
		return fmt.Errorf("dropping superseded mappings: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE OR REPLACE default_mappings
		SET classification = LOWER(TRIM(classification))
		WHERE classification != LOWER(TRIM(classification))
	`)
	if err != nil {
		return fmt.Errorf("lowercasing mappings: %w", err)
	}
	return nil
}
