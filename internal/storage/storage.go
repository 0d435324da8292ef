package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/martinsuchenak/labeld/internal/model"
)

var (
	ErrDeviceNotFound       = fmt.Errorf("device %w", model.ErrNotFound)
	ErrNetworkNotFound      = fmt.Errorf("network %w", model.ErrNotFound)
	ErrOrganizationNotFound = fmt.Errorf("organization %w", model.ErrNotFound)
	ErrTemplateNotFound     = fmt.Errorf("template %w", model.ErrNotFound)
	ErrMappingNotFound      = fmt.Errorf("default mapping %w", model.ErrNotFound)
	ErrGlobalNotFound       = fmt.Errorf("global variable %w", model.ErrNotFound)
	ErrImageNotFound        = fmt.Errorf("image %w", model.ErrNotFound)

	ErrInvalidID = fmt.Errorf("invalid ID: %w", model.ErrValidation)
)

// IsNotFound reports whether err is any of the not-found errors.
func IsNotFound(err error) bool {
	return errors.Is(err, model.ErrNotFound)
}

// DeviceStore holds the inventory side: devices and what they point at.
type DeviceStore interface {
	ListDevices(ctx context.Context, ownerID string, filter *model.DeviceFilter) ([]model.Device, error)
	GetDevice(ctx context.Context, id string) (*model.Device, error)
	// GetDevices returns the devices that exist among ids, in ids order.
	GetDevices(ctx context.Context, ids []string) ([]*model.Device, error)
	UpsertDevice(ctx context.Context, device *model.Device) error
	DeleteDevice(ctx context.Context, id string) error

	GetNetwork(ctx context.Context, id string) (*model.Network, error)
	GetNetworks(ctx context.Context, ids []string) (map[string]*model.Network, error)
	ListNetworks(ctx context.Context, ownerID string) ([]model.Network, error)
	UpsertNetwork(ctx context.Context, network *model.Network) error

	GetOrganization(ctx context.Context, id string) (*model.Organization, error)
	GetOrganizations(ctx context.Context, ids []string) (map[string]*model.Organization, error)
	UpsertOrganization(ctx context.Context, org *model.Organization) error
}

// TemplateStore holds templates and per-owner default mappings.
type TemplateStore interface {
	ListVisibleTemplates(ctx context.Context, ownerID string) ([]*model.Template, error)
	GetTemplate(ctx context.Context, id string) (*model.Template, error)
	CreateTemplate(ctx context.Context, t *model.Template) error
	UpdateTemplate(ctx context.Context, t *model.Template) error
	DeleteTemplate(ctx context.Context, id string) error

	GetDefaultMapping(ctx context.Context, ownerID, classification string) (*model.DefaultMapping, error)
	ListDefaultMappings(ctx context.Context, ownerID string) ([]*model.DefaultMapping, error)
	SetDefaultMapping(ctx context.Context, m *model.DefaultMapping) error
	DeleteDefaultMapping(ctx context.Context, ownerID, classification string) error
}

// AssetStore holds globals and uploaded images.
type AssetStore interface {
	ListGlobals(ctx context.Context, ownerID string) ([]model.GlobalVariable, error)
	SetGlobal(ctx context.Context, g *model.GlobalVariable) error
	DeleteGlobal(ctx context.Context, ownerID, key string) error

	// ListImages returns the owner's images that are not deleted.
	ListImages(ctx context.Context, ownerID string) ([]model.ImageAsset, error)
	GetImage(ctx context.Context, id string) (*model.ImageAsset, error)
	CreateImage(ctx context.Context, img *model.ImageAsset) error
	DeleteImage(ctx context.Context, id string) error
}

// Storage is everything the service needs from persistence.
type Storage interface {
	DeviceStore
	TemplateStore
	AssetStore
	Close() error
}
