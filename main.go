package main

import (
	"context"
	"os"

	"github.com/martinsuchenak/labeld/cmd/defaults"
	"github.com/martinsuchenak/labeld/cmd/device"
	"github.com/martinsuchenak/labeld/cmd/export"
	"github.com/martinsuchenak/labeld/cmd/server"
	"github.com/martinsuchenak/labeld/cmd/template"
	"github.com/martinsuchenak/labeld/internal/log"
	"github.com/paularlott/cli"
	"github.com/paularlott/cli/env"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	env.Load()

	log.Configure("info", "console")

	rootCmd := &cli.Command{
		Name:        "labeld",
		Version:     version,
		Usage:       "Sticker label templates and print layouts for network devices",
		Description: "Matches label templates to devices, resolves their data bindings and lays stickers out for printing. Runs as an HTTP/MCP server or from the command line.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:         "log-level",
				Usage:        "Log level (trace, debug, info, warn, error)",
				DefaultValue: "info",
				EnvVars:      []string{"LABELD_LOG_LEVEL"},
				Global:       true,
			},
			&cli.StringFlag{
				Name:         "log-format",
				Usage:        "Log format (console, json)",
				DefaultValue: "console",
				EnvVars:      []string{"LABELD_LOG_FORMAT"},
				Global:       true,
			},
		},
		PreRun: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			log.Configure(cmd.GetString("log-level"), cmd.GetString("log-format"))
			log.Debug("labeld starting", "version", version, "commit", commit, "date", date)
			return ctx, nil
		},
		Commands: []*cli.Command{
			server.Command(),
			{
				Name:        "template",
				Usage:       "Label template commands",
				Description: "List, import, export and delete label templates",
				Commands:    template.Commands(),
			},
			{
				Name:        "default",
				Usage:       "Default template commands",
				Description: "Map device classifications to default templates",
				Commands:    defaults.Commands(),
			},
			{
				Name:        "device",
				Usage:       "Device commands",
				Description: "Inspect devices, test template matching and probe classifications over SNMP",
				Commands:    device.Commands(),
			},
			{
				Name:        "export",
				Usage:       "Print export commands",
				Description: "Plan sticker print jobs",
				Commands:    export.Commands(),
			},
		},
	}

	if err := rootCmd.Execute(context.Background()); err != nil {
		log.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
