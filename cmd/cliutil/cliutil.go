// Package cliutil holds the pieces shared by the labeld subcommands: store
// access, owner scope and output formatting.
package cliutil

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/paularlott/cli"
	"golang.org/x/term"

	"github.com/martinsuchenak/labeld/internal/config"
	"github.com/martinsuchenak/labeld/internal/storage"
)

// OwnerFlag selects the owner scope of a command.
func OwnerFlag(required bool) cli.Flag {
	return &cli.StringFlag{
		Name:     "owner",
		Usage:    "Owner scope",
		EnvVars:  []string{config.EnvPrefix + "OWNER"},
		Required: required,
	}
}

// JSONFlag forces JSON output even on a terminal.
func JSONFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Print JSON instead of a table",
	}
}

// Flags returns the store flags plus extra.
func Flags(extra ...cli.Flag) []cli.Flag {
	return append(config.GetFlags(), extra...)
}

// OpenStore loads configuration for cmd and opens the SQLite store.
func OpenStore(cmd *cli.Command) (*config.Config, *storage.SQLiteStorage, error) {
	cfg, err := config.FromCommand(cmd)
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.NewSQLiteStorage(cfg.Server.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	return cfg, store, nil
}

// Output writes either a table or JSON.
type Output struct {
	w    io.Writer
	json bool
}

// NewOutput writes tables to a terminal and JSON anywhere else, unless
// --json is given.
func NewOutput(cmd *cli.Command) *Output {
	return &Output{
		w:    os.Stdout,
		json: cmd.GetBool("json") || !term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// NewWriterOutput is Output over an explicit writer.
func NewWriterOutput(w io.Writer, asJSON bool) *Output {
	return &Output{w: w, json: asJSON}
}

// JSON reports whether the output is JSON.
func (o *Output) JSON() bool { return o.json }

// Print writes v as JSON, or calls table with a tab-aligned writer.
func (o *Output) Print(v any, table func(w io.Writer)) error {
	if o.json {
		enc := json.NewEncoder(o.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(o.w, 0, 4, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}

// Message writes a line for humans; it is suppressed in JSON mode.
func (o *Output) Message(format string, args ...any) {
	if o.json {
		return
	}
	fmt.Fprintf(o.w, format+"\n", args...)
}

// ParseList splits a comma-separated flag value.
func ParseList(s string) []string {
	if s == "" {
		return nil
	}
	var result []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
