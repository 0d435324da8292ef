// Package config loads labeld settings from LABELD_* environment variables,
// with command-line flags taking precedence.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/paularlott/cli"

	"github.com/martinsuchenak/labeld/internal/layout"
	"github.com/martinsuchenak/labeld/internal/qr"
)

// EnvPrefix is prepended to every variable name below.
const EnvPrefix = "LABELD_"

// Config holds all configuration for the application.
type Config struct {
	Server ServerConfig
	Match  MatchConfig
	Export ExportConfig
	SNMP   SNMPConfig
}

// ServerConfig holds HTTP server and storage settings.
type ServerConfig struct {
	DataDir      string `env:"DATA_DIR" envDefault:"./data"`
	ListenAddr   string `env:"LISTEN_ADDR" envDefault:":8080"`
	APIAuthToken string `env:"API_AUTH_TOKEN"`
	MCPAuthToken string `env:"MCP_AUTH_TOKEN"`
}

// MatchConfig holds template matching cache settings.
type MatchConfig struct {
	CacheTTL      time.Duration `env:"MATCH_CACHE_TTL" envDefault:"30m"`
	SweepSchedule string        `env:"MATCH_CACHE_SWEEP" envDefault:"@every 5m"`
}

// ExportConfig holds sticker export defaults.
type ExportConfig struct {
	PageSize    string  `env:"PAGE_SIZE" envDefault:"a4"`
	MarginH     float64 `env:"MARGIN_H" envDefault:"5"`
	MarginV     float64 `env:"MARGIN_V" envDefault:"5"`
	QRSize      int     `env:"QR_SIZE" envDefault:"256"`
	QRLevel     string  `env:"QR_LEVEL" envDefault:"medium"`
	Parallelism int     `env:"BATCH_PARALLELISM" envDefault:"0"`
}

// SNMPConfig holds settings for classification probes.
type SNMPConfig struct {
	Community string        `env:"SNMP_COMMUNITY" envDefault:"public"`
	Port      uint16        `env:"SNMP_PORT" envDefault:"161"`
	Timeout   time.Duration `env:"SNMP_TIMEOUT" envDefault:"2s"`
	Retries   int           `env:"SNMP_RETRIES" envDefault:"1"`
}

// Load reads configuration from the environment. A .env file, if any, must
// already have been loaded into the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	opts := env.Options{Prefix: EnvPrefix}

	if err := env.ParseWithOptions(&cfg.Server, opts); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := env.ParseWithOptions(&cfg.Match, opts); err != nil {
		return nil, fmt.Errorf("parsing match config: %w", err)
	}
	if err := env.ParseWithOptions(&cfg.Export, opts); err != nil {
		return nil, fmt.Errorf("parsing export config: %w", err)
	}
	if err := env.ParseWithOptions(&cfg.SNMP, opts); err != nil {
		return nil, fmt.Errorf("parsing snmp config: %w", err)
	}
	return cfg, nil
}

// Validate checks values that the environment parser cannot.
func (c *Config) Validate() error {
	if _, err := layout.ParseSize(c.Export.PageSize); err != nil {
		return fmt.Errorf("%sPAGE_SIZE: %w", EnvPrefix, err)
	}
	if c.Export.MarginH < 0 || c.Export.MarginV < 0 {
		return fmt.Errorf("%sMARGIN_H and %sMARGIN_V must not be negative", EnvPrefix, EnvPrefix)
	}
	if _, err := qr.ParseLevel(c.Export.QRLevel); err != nil {
		return fmt.Errorf("%sQR_LEVEL: %w", EnvPrefix, err)
	}
	if c.Match.CacheTTL < 0 {
		return fmt.Errorf("%sMATCH_CACHE_TTL must not be negative", EnvPrefix)
	}
	return nil
}

// Page returns the configured default page size.
func (c *ExportConfig) Page() layout.Size {
	size, err := layout.ParseSize(c.PageSize)
	if err != nil {
		return layout.Size{Width: 210, Height: 297}
	}
	return size
}

// Margins returns the configured default margins.
func (c *ExportConfig) Margins() layout.Margins {
	return layout.Margins{Horizontal: c.MarginH, Vertical: c.MarginV}
}

// IsAPIAuthEnabled reports whether API requests need a bearer token.
func (c *ServerConfig) IsAPIAuthEnabled() bool {
	return c.APIAuthToken != ""
}

// IsMCPAuthEnabled reports whether MCP requests need a bearer token.
func (c *ServerConfig) IsMCPAuthEnabled() bool {
	return c.MCPAuthToken != ""
}

// Overrides are command-line values. Zero values leave the loaded
// configuration untouched.
type Overrides struct {
	DataDir      string
	ListenAddr   string
	APIAuthToken string
	MCPAuthToken string
	PageSize     string
}

// Apply copies non-empty overrides into c.
func (c *Config) Apply(o Overrides) {
	if o.DataDir != "" {
		c.Server.DataDir = o.DataDir
	}
	if o.ListenAddr != "" {
		c.Server.ListenAddr = o.ListenAddr
	}
	if o.APIAuthToken != "" {
		c.Server.APIAuthToken = o.APIAuthToken
	}
	if o.MCPAuthToken != "" {
		c.Server.MCPAuthToken = o.MCPAuthToken
	}
	if o.PageSize != "" {
		c.Export.PageSize = o.PageSize
	}
}

// GetFlags returns the flags accepted by commands that open the store or
// serve requests. Defaults live in the environment layer, so flags default
// to empty.
func GetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "data-dir",
			Usage: "Data directory path (default ./data)",
		},
		&cli.StringFlag{
			Name:  "addr",
			Usage: "Server listen address (default :8080)",
		},
		&cli.StringFlag{
			Name:  "api-token",
			Usage: "API bearer token for authentication",
		},
		&cli.StringFlag{
			Name:  "mcp-token",
			Usage: "MCP bearer token for authentication",
		},
		&cli.StringFlag{
			Name:  "page",
			Usage: "Default page size: a name (" + pageNames() + ") or WxH in mm",
		},
	}
}

// FromCommand loads the environment and applies the flags of cmd.
func FromCommand(cmd *cli.Command) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	cfg.Apply(Overrides{
		DataDir:      cmd.GetString("data-dir"),
		ListenAddr:   cmd.GetString("addr"),
		APIAuthToken: cmd.GetString("api-token"),
		MCPAuthToken: cmd.GetString("mcp-token"),
		PageSize:     cmd.GetString("page"),
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func pageNames() string {
	names := layout.PageSizeNames()
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}
