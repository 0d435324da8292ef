package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/martinsuchenak/labeld/internal/log"
	"github.com/martinsuchenak/labeld/internal/model"
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLiteStorage implements Storage with a SQLite backend.
type SQLiteStorage struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
	log  log.Logger
}

// NewSQLiteStorage opens (creating if needed) labels.db in dataDir and
// brings the schema up to date.
func NewSQLiteStorage(dataDir string) (*SQLiteStorage, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dataDir, "labels.db")
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	db.SetMaxOpenConns(1) // single writer
	db.SetMaxIdleConns(1)

	ss := &SQLiteStorage{
		db:   db,
		path: dbPath,
		log:  log.With("component", "storage"),
	}
	if err := ss.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	if err := ss.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return ss, nil
}

func (ss *SQLiteStorage) initSchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("reading schema: %w", err)
	}
	_, err = ss.db.Exec(string(schema))
	return err
}

// Close closes the database connection.
func (ss *SQLiteStorage) Close() error {
	return ss.db.Close()
}

// Path returns the database file location.
func (ss *SQLiteStorage) Path() string {
	return ss.path
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// placeholders returns "?, ?, ?" for n arguments along with ids as []any.
func placeholders(ids []string) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", "), args
}

// Devices

const deviceColumns = `id, owner_id, name, classification, make_model, serial, mac, ip,
	network_id, url, notes, tags, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*model.Device, error) {
	var (
		d                                     model.Device
		makeModel, serial, mac, ip, networkID sql.NullString
		url, notes                            sql.NullString
		tags                                  string
	)
	err := row.Scan(&d.ID, &d.OwnerID, &d.Name, &d.Classification, &makeModel, &serial, &mac, &ip,
		&networkID, &url, &notes, &tags, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.MakeModel = makeModel.String
	d.Serial = serial.String
	d.MAC = mac.String
	d.IP = ip.String
	d.NetworkID = networkID.String
	d.URL = url.String
	d.Notes = notes.String
	if err := decodeJSON(tags, &d.Tags); err != nil {
		return nil, fmt.Errorf("device %s tags: %w", d.ID, err)
	}
	return &d, nil
}

// ListDevices returns the owner's devices ordered by name.
func (ss *SQLiteStorage) ListDevices(ctx context.Context, ownerID string, filter *model.DeviceFilter) ([]model.Device, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	query := `SELECT ` + deviceColumns + ` FROM devices WHERE owner_id = ?`
	args := []any{ownerID}
	if filter != nil {
		if filter.Classification != "" {
			query += ` AND LOWER(classification) = ?`
			args = append(args, model.NormalizeClassification(filter.Classification))
		}
		if filter.NetworkID != "" {
			query += ` AND network_id = ?`
			args = append(args, filter.NetworkID)
		}
	}
	query += ` ORDER BY name, id`

	rows, err := ss.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	devices := make([]model.Device, 0)
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		if filter != nil && len(filter.Tags) > 0 && !hasAnyTag(d.Tags, filter.Tags) {
			continue
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}

func hasAnyTag(tags, want []string) bool {
	for _, w := range want {
		for _, t := range tags {
			if strings.EqualFold(t, w) {
				return true
			}
		}
	}
	return false
}

// GetDevice returns a device by ID regardless of owner. Callers check
// ownership.
func (ss *SQLiteStorage) GetDevice(ctx context.Context, id string) (*model.Device, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	row := ss.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id)
	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying device: %w", err)
	}
	return d, nil
}

func (ss *SQLiteStorage) GetDevices(ctx context.Context, ids []string) ([]*model.Device, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	in, args := placeholders(ids)
	rows, err := ss.db.QueryContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id IN (`+in+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*model.Device, len(ids))
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		byID[d.ID] = d
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*model.Device, 0, len(byID))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if d, ok := byID[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, d)
		}
	}
	return out, nil
}

// UpsertDevice inserts or replaces a device, as the inventory sync does. An
// empty ID is assigned.
func (ss *SQLiteStorage) UpsertDevice(ctx context.Context, d *model.Device) error {
	if d.OwnerID == "" {
		return fmt.Errorf("device owner is required: %w", model.ErrValidation)
	}
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if d.ID == "" {
		d.ID = newID()
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	tags, err := encodeJSON(stringList(d.Tags))
	if err != nil {
		return err
	}

	_, err = ss.db.ExecContext(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = excluded.owner_id, name = excluded.name,
			classification = excluded.classification, make_model = excluded.make_model,
			serial = excluded.serial, mac = excluded.mac, ip = excluded.ip,
			network_id = excluded.network_id, url = excluded.url, notes = excluded.notes,
			tags = excluded.tags, updated_at = excluded.updated_at
	`, d.ID, d.OwnerID, d.Name, d.Classification, d.MakeModel, d.Serial, d.MAC, d.IP,
		nullIfEmpty(d.NetworkID), d.URL, d.Notes, tags, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting device: %w", err)
	}
	return nil
}

func (ss *SQLiteStorage) DeleteDevice(ctx context.Context, id string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	result, err := ss.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
