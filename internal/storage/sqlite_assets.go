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

// Global variables

func (ss *SQLiteStorage) ListGlobals(ctx context.Context, ownerID string) ([]model.GlobalVariable, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.QueryContext(ctx, `
		SELECT owner_id, key, value, updated_at FROM global_variables
		WHERE owner_id = ? ORDER BY key
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying globals: %w", err)
	}
	defer rows.Close()

	globals := make([]model.GlobalVariable, 0)
	for rows.Next() {
		var g model.GlobalVariable
		if err := rows.Scan(&g.OwnerID, &g.Key, &g.Value, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning global: %w", err)
		}
		globals = append(globals, g)
	}
	return globals, rows.Err()
}

// SetGlobal creates or replaces a variable. Keys are stored lowercase since
// references are case-insensitive.
func (ss *SQLiteStorage) SetGlobal(ctx context.Context, g *model.GlobalVariable) error {
	key := strings.ToLower(strings.TrimSpace(g.Key))
	if g.OwnerID == "" || !model.ValidBinding("global."+key) {
		return fmt.Errorf("invalid global variable key %q: %w", g.Key, model.ErrValidation)
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	g.Key = key
	g.UpdatedAt = time.Now().UTC()
	_, err := ss.db.ExecContext(ctx, `
		INSERT INTO global_variables (owner_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (owner_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, g.OwnerID, g.Key, g.Value, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving global: %w", err)
	}
	return nil
}

func (ss *SQLiteStorage) DeleteGlobal(ctx context.Context, ownerID, key string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	result, err := ss.db.ExecContext(ctx, `DELETE FROM global_variables WHERE owner_id = ? AND key = ?`,
		ownerID, strings.ToLower(strings.TrimSpace(key)))
	if err != nil {
		return fmt.Errorf("deleting global: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrGlobalNotFound
	}
	return nil
}

// Images

const imageColumns = `id, owner_id, name, data_uri, created_at, deleted_at`

func scanImage(row rowScanner) (*model.ImageAsset, error) {
	var (
		img     model.ImageAsset
		deleted sql.NullTime
	)
	if err := row.Scan(&img.ID, &img.OwnerID, &img.Name, &img.DataURI, &img.CreatedAt, &deleted); err != nil {
		return nil, err
	}
	if deleted.Valid {
		t := deleted.Time
		img.DeletedAt = &t
	}
	return &img, nil
}

func (ss *SQLiteStorage) ListImages(ctx context.Context, ownerID string) ([]model.ImageAsset, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.QueryContext(ctx, `
		SELECT `+imageColumns+` FROM images
		WHERE owner_id = ? AND deleted_at IS NULL
		ORDER BY name, id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying images: %w", err)
	}
	defer rows.Close()

	images := make([]model.ImageAsset, 0)
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning image: %w", err)
		}
		images = append(images, *img)
	}
	return images, rows.Err()
}

// GetImage returns an image, including soft-deleted ones.
func (ss *SQLiteStorage) GetImage(ctx context.Context, id string) (*model.ImageAsset, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	img, err := scanImage(ss.db.QueryRowContext(ctx, `SELECT `+imageColumns+` FROM images WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrImageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying image: %w", err)
	}
	return img, nil
}

func (ss *SQLiteStorage) CreateImage(ctx context.Context, img *model.ImageAsset) error {
	if img.OwnerID == "" {
		return fmt.Errorf("image owner is required: %w", model.ErrValidation)
	}
	if !strings.HasPrefix(img.DataURI, "data:image/") {
		return fmt.Errorf("image must be a data:image URI: %w", model.ErrValidation)
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	if img.ID == "" {
		img.ID = newID()
	}
	img.CreatedAt = time.Now().UTC()
	img.DeletedAt = nil
	_, err := ss.db.ExecContext(ctx, `
		INSERT INTO images (id, owner_id, name, data_uri, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, img.ID, img.OwnerID, img.Name, img.DataURI, img.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting image: %w", err)
	}
	return nil
}

// DeleteImage soft-deletes an image. Deleting twice reports not found.
func (ss *SQLiteStorage) DeleteImage(ctx context.Context, id string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	result, err := ss.db.ExecContext(ctx, `UPDATE images SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrImageNotFound
	}
	return nil
}
