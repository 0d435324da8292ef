package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/martinsuchenak/labeld/internal/model"
)

const networkColumns = `id, owner_id, organization_id, name, subnet, url, description, created_at, updated_at`

func scanNetwork(row rowScanner) (*model.Network, error) {
	var (
		n                        model.Network
		orgID, subnet, url, desc sql.NullString
	)
	if err := row.Scan(&n.ID, &n.OwnerID, &orgID, &n.Name, &subnet, &url, &desc, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.OrganizationID = orgID.String
	n.Subnet = subnet.String
	n.URL = url.String
	n.Description = desc.String
	return &n, nil
}

func (ss *SQLiteStorage) GetNetwork(ctx context.Context, id string) (*model.Network, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	n, err := scanNetwork(ss.db.QueryRowContext(ctx, `SELECT `+networkColumns+` FROM networks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNetworkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying network: %w", err)
	}
	return n, nil
}

// GetNetworks returns the networks found among ids, keyed by ID.
func (ss *SQLiteStorage) GetNetworks(ctx context.Context, ids []string) (map[string]*model.Network, error) {
	out := make(map[string]*model.Network, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	in, args := placeholders(ids)
	rows, err := ss.db.QueryContext(ctx, `SELECT `+networkColumns+` FROM networks WHERE id IN (`+in+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying networks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		n, err := scanNetwork(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning network: %w", err)
		}
		out[n.ID] = n
	}
	return out, rows.Err()
}

func (ss *SQLiteStorage) ListNetworks(ctx context.Context, ownerID string) ([]model.Network, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.QueryContext(ctx, `SELECT `+networkColumns+` FROM networks WHERE owner_id = ? ORDER BY name`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying networks: %w", err)
	}
	defer rows.Close()

	networks := make([]model.Network, 0)
	for rows.Next() {
		n, err := scanNetwork(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning network: %w", err)
		}
		networks = append(networks, *n)
	}
	return networks, rows.Err()
}

func (ss *SQLiteStorage) UpsertNetwork(ctx context.Context, n *model.Network) error {
	if n.OwnerID == "" {
		return fmt.Errorf("network owner is required: %w", model.ErrValidation)
	}
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if n.ID == "" {
		n.ID = newID()
	}
	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now

	_, err := ss.db.ExecContext(ctx, `
		INSERT INTO networks (`+networkColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = excluded.owner_id, organization_id = excluded.organization_id,
			name = excluded.name, subnet = excluded.subnet, url = excluded.url,
			description = excluded.description, updated_at = excluded.updated_at
	`, n.ID, n.OwnerID, nullIfEmpty(n.OrganizationID), n.Name, n.Subnet, n.URL, n.Description, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting network: %w", err)
	}
	return nil
}

// Organizations

const organizationColumns = `id, owner_id, name, url, description, created_at, updated_at`

func scanOrganization(row rowScanner) (*model.Organization, error) {
	var (
		o         model.Organization
		url, desc sql.NullString
	)
	if err := row.Scan(&o.ID, &o.OwnerID, &o.Name, &url, &desc, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.URL = url.String
	o.Description = desc.String
	return &o, nil
}

func (ss *SQLiteStorage) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	o, err := scanOrganization(ss.db.QueryRowContext(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying organization: %w", err)
	}
	return o, nil
}

func (ss *SQLiteStorage) GetOrganizations(ctx context.Context, ids []string) (map[string]*model.Organization, error) {
	out := make(map[string]*model.Organization, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	in, args := placeholders(ids)
	rows, err := ss.db.QueryContext(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE id IN (`+in+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying organizations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		o, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning organization: %w", err)
		}
		out[o.ID] = o
	}
	return out, rows.Err()
}

func (ss *SQLiteStorage) UpsertOrganization(ctx context.Context, o *model.Organization) error {
	if o.OwnerID == "" {
		return fmt.Errorf("organization owner is required: %w", model.ErrValidation)
	}
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if o.ID == "" {
		o.ID = newID()
	}
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now

	_, err := ss.db.ExecContext(ctx, `
		INSERT INTO organizations (`+organizationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = excluded.owner_id, name = excluded.name, url = excluded.url,
			description = excluded.description, updated_at = excluded.updated_at
	`, o.ID, o.OwnerID, o.Name, o.URL, o.Description, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting organization: %w", err)
	}
	return nil
}
