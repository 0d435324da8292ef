package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/martinsuchenak/labeld/internal/model"
)

const templateColumns = `id, owner_id, name, description, compatibility, document, created_at, updated_at`

func scanTemplate(row rowScanner) (*model.Template, error) {
	var (
		t                model.Template
		desc             sql.NullString
		compat, document string
	)
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Name, &desc, &compat, &document, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Description = desc.String
	if err := decodeJSON(compat, &t.Compatibility); err != nil {
		return nil, fmt.Errorf("template %s compatibility: %w", t.ID, err)
	}
	if err := decodeJSON(document, &t.Document); err != nil {
		return nil, fmt.Errorf("template %s document: %w", t.ID, err)
	}
	return &t, nil
}

// ListVisibleTemplates returns the owner's templates and the shared ones,
// ordered by name.
func (ss *SQLiteStorage) ListVisibleTemplates(ctx context.Context, ownerID string) ([]*model.Template, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.QueryContext(ctx, `
		SELECT `+templateColumns+` FROM templates
		WHERE owner_id = '' OR owner_id = ?
		ORDER BY LOWER(name), id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying templates: %w", err)
	}
	defer rows.Close()

	templates := make([]*model.Template, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (ss *SQLiteStorage) GetTemplate(ctx context.Context, id string) (*model.Template, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	t, err := scanTemplate(ss.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying template: %w", err)
	}
	return t, nil
}

func validateTemplate(t *model.Template) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("template name is required: %w", model.ErrValidation)
	}
	return t.Document.Validate()
}

// CreateTemplate stores a new template. An empty ID is assigned.
func (ss *SQLiteStorage) CreateTemplate(ctx context.Context, t *model.Template) error {
	if err := validateTemplate(t); err != nil {
		return err
	}
	compat, err := encodeJSON(stringList(t.Compatibility))
	if err != nil {
		return err
	}
	document, err := encodeJSON(t.Document)
	if err != nil {
		return err
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	if t.ID == "" {
		t.ID = newID()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err = ss.db.ExecContext(ctx, `
		INSERT INTO templates (`+templateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.OwnerID, t.Name, t.Description, compat, document, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting template: %w", err)
	}
	return nil
}

// UpdateTemplate replaces a template's content. Ownership cannot change.
func (ss *SQLiteStorage) UpdateTemplate(ctx context.Context, t *model.Template) error {
	if err := validateTemplate(t); err != nil {
		return err
	}
	compat, err := encodeJSON(stringList(t.Compatibility))
	if err != nil {
		return err
	}
	document, err := encodeJSON(t.Document)
	if err != nil {
		return err
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	t.UpdatedAt = time.Now().UTC()
	result, err := ss.db.ExecContext(ctx, `
		UPDATE templates
		SET name = ?, description = ?, compatibility = ?, document = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?
	`, t.Name, t.Description, compat, document, t.UpdatedAt, t.ID, t.OwnerID)
	if err != nil {
		return fmt.Errorf("updating template: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

// DeleteTemplate removes a template and any default mapping pointing at it.
func (ss *SQLiteStorage) DeleteTemplate(ctx context.Context, id string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	result, err := ss.db.ExecContext(ctx, "DELETE FROM templates WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting template: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

// Default mappings

func scanMapping(row rowScanner) (*model.DefaultMapping, error) {
	var m model.DefaultMapping
	if err := row.Scan(&m.OwnerID, &m.Classification, &m.TemplateID, &m.Active, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetDefaultMapping returns the active mapping for a classification. The
// classification is compared case-insensitively.
func (ss *SQLiteStorage) GetDefaultMapping(ctx context.Context, ownerID, classification string) (*model.DefaultMapping, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	m, err := scanMapping(ss.db.QueryRowContext(ctx, `
		SELECT owner_id, classification, template_id, active, updated_at
		FROM default_mappings
		WHERE owner_id = ? AND classification = ? AND active = 1
	`, ownerID, model.NormalizeClassification(classification)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMappingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying default mapping: %w", err)
	}
	return m, nil
}

func (ss *SQLiteStorage) ListDefaultMappings(ctx context.Context, ownerID string) ([]*model.DefaultMapping, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.QueryContext(ctx, `
		SELECT owner_id, classification, template_id, active, updated_at
		FROM default_mappings
		WHERE owner_id = ? AND active = 1
		ORDER BY classification
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying default mappings: %w", err)
	}
	defer rows.Close()

	mappings := make([]*model.DefaultMapping, 0)
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning default mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

// SetDefaultMapping creates or replaces the mapping for (owner,
// classification). The template must be visible to the owner.
func (ss *SQLiteStorage) SetDefaultMapping(ctx context.Context, m *model.DefaultMapping) error {
	class := model.NormalizeClassification(m.Classification)
	if m.OwnerID == "" || class == "" {
		return fmt.Errorf("mapping needs an owner and a classification: %w", model.ErrValidation)
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	tx, err := ss.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var templateOwner string
	err = tx.QueryRowContext(ctx, `SELECT owner_id FROM templates WHERE id = ?`, m.TemplateID).Scan(&templateOwner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && templateOwner != "" && templateOwner != m.OwnerID) {
		return ErrTemplateNotFound
	}
	if err != nil {
		return fmt.Errorf("checking template: %w", err)
	}

	m.Classification = class
	m.UpdatedAt = time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO default_mappings (owner_id, classification, template_id, active, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, classification) DO UPDATE SET
			template_id = excluded.template_id, active = excluded.active, updated_at = excluded.updated_at
	`, m.OwnerID, class, m.TemplateID, m.Active, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving default mapping: %w", err)
	}
	return tx.Commit()
}

func (ss *SQLiteStorage) DeleteDefaultMapping(ctx context.Context, ownerID, classification string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	result, err := ss.db.ExecContext(ctx, `DELETE FROM default_mappings WHERE owner_id = ? AND classification = ?`,
		ownerID, model.NormalizeClassification(classification))
	if err != nil {
		return fmt.Errorf("deleting default mapping: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrMappingNotFound
	}
	return nil
}
