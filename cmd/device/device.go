package device

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/paularlott/cli"

	"github.com/martinsuchenak/labeld/cmd/cliutil"
	"github.com/martinsuchenak/labeld/internal/export"
	"github.com/martinsuchenak/labeld/internal/matching"
	"github.com/martinsuchenak/labeld/internal/model"
	"github.com/martinsuchenak/labeld/internal/snmpprobe"
)

// Commands returns the device subcommands.
func Commands() []*cli.Command {
	return []*cli.Command{
		listCommand(),
		matchCommand(),
		probeCommand(),
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:        "list",
		Usage:       "List devices",
		Description: "List an owner's devices, optionally filtered",
		Flags: cliutil.Flags(
			cliutil.OwnerFlag(true),
			cliutil.JSONFlag(),
			&cli.StringFlag{Name: "classification", Usage: "Only devices of this classification"},
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags (any match)"},
		),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			_, store, err := cliutil.OpenStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			devices, err := store.ListDevices(ctx, cmd.GetString("owner"), &model.DeviceFilter{
				Classification: cmd.GetString("classification"),
				Tags:           cliutil.ParseList(cmd.GetString("tags")),
			})
			if err != nil {
				return fmt.Errorf("listing devices: %w", err)
			}
			return cliutil.NewOutput(cmd).Print(devices, func(w io.Writer) { printDevices(w, devices) })
		},
	}
}

func printDevices(w io.Writer, devices []model.Device) {
	if len(devices) == 0 {
		fmt.Fprintln(w, "No devices found")
		return
	}
	fmt.Fprintln(w, "ID\tNAME\tCLASSIFICATION\tMODEL\tSERIAL")
	for _, d := range devices {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.Name, d.Classification, d.MakeModel, d.Serial)
	}
}

func matchCommand() *cli.Command {
	return &cli.Command{
		Name:        "match",
		Usage:       "Show which template a device gets",
		Description: "Run template matching for a device and optionally list the alternatives",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id", Required: true},
		},
		Flags: cliutil.Flags(
			cliutil.OwnerFlag(true),
			cliutil.JSONFlag(),
			&cli.BoolFlag{Name: "alternates", Usage: "Also list the other visible templates"},
		),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			_, store, err := cliutil.OpenStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			id := cmd.GetStringArg("id")
			d, err := store.GetDevice(ctx, id)
			if err != nil {
				return err
			}
			if d.OwnerID != cmd.GetString("owner") {
				return fmt.Errorf("device %s: %w", id, export.ErrForeignDevice)
			}

			engine := matching.NewEngine(store)
			result, err := engine.MatchOne(ctx, d)
			if err != nil {
				return err
			}
			report := matchReport{Device: d.ID, Match: result}
			if cmd.GetBool("alternates") {
				if report.Alternates, err = engine.AlternateTemplates(ctx, d, result.Template.ID, false); err != nil {
					return err
				}
			}
			return cliutil.NewOutput(cmd).Print(report, func(w io.Writer) { printMatch(w, report) })
		},
	}
}

type matchReport struct {
	Device     string             `json:"device_id"`
	Match      *model.MatchResult `json:"match"`
	Alternates []*model.Template  `json:"alternates,omitempty"`
}

func printMatch(w io.Writer, r matchReport) {
	m := r.Match
	fmt.Fprintf(w, "Template:\t%s (%s)\n", m.Template.Name, m.Template.ID)
	fmt.Fprintf(w, "Reason:\t%s\n", m.Reason)
	fmt.Fprintf(w, "Confidence:\t%.1f\n", m.Confidence)
	if m.MatchedBy != "" {
		fmt.Fprintf(w, "Matched by:\t%s\n", m.MatchedBy)
	}
	if len(r.Alternates) > 0 {
		names := make([]string, len(r.Alternates))
		for i, t := range r.Alternates {
			names[i] = t.Name
		}
		fmt.Fprintf(w, "Alternates:\t%s\n", strings.Join(names, ", "))
	}
}

func probeCommand() *cli.Command {
	return &cli.Command{
		Name:        "probe",
		Usage:       "Classify a device over SNMP",
		Description: "Read the SNMP system group of a host and guess its classification. With --device-id the result is saved on that device.",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "target", Required: true},
		},
		Flags: cliutil.Flags(
			cliutil.OwnerFlag(false),
			cliutil.JSONFlag(),
			&cli.StringFlag{Name: "device-id", Usage: "Device to update with the result"},
			&cli.StringFlag{Name: "community", Usage: "SNMPv2c community (default from LABELD_SNMP_COMMUNITY)"},
		),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			cfg, store, err := cliutil.OpenStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			snmpCfg := snmpprobe.Config{
				Community: cfg.SNMP.Community,
				Port:      cfg.SNMP.Port,
				Timeout:   cfg.SNMP.Timeout,
				Retries:   cfg.SNMP.Retries,
			}
			if c := cmd.GetString("community"); c != "" {
				snmpCfg.Community = c
			}

			info, err := snmpprobe.NewProber(snmpCfg).Probe(ctx, cmd.GetStringArg("target"))
			if err != nil {
				return err
			}
			result := probeResult{SystemInfo: info, Classification: snmpprobe.Classify(info)}

			if id := cmd.GetString("device-id"); id != "" {
				d, err := store.GetDevice(ctx, id)
				if err != nil {
					return err
				}
				if d.OwnerID != cmd.GetString("owner") {
					return fmt.Errorf("device %s: %w", id, export.ErrForeignDevice)
				}
				if result.Updated = applyProbe(d, result); result.Updated {
					if err := store.UpsertDevice(ctx, d); err != nil {
						return fmt.Errorf("saving device: %w", err)
					}
				}
			}
			return cliutil.NewOutput(cmd).Print(result, func(w io.Writer) { printProbe(w, result) })
		},
	}
}

type probeResult struct {
	*snmpprobe.SystemInfo
	Classification string `json:"classification"`
	Updated        bool   `json:"updated"`
}

// applyProbe copies what the probe learned onto d without overwriting values
// set by hand. It reports whether d changed.
func applyProbe(d *model.Device, r probeResult) bool {
	changed := false
	if d.Classification == "" && r.Classification != "" {
		d.Classification = r.Classification
		changed = true
	}
	if d.MakeModel == "" && r.Description != "" {
		d.MakeModel = firstLine(r.Description)
		changed = true
	}
	return changed
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}

func printProbe(w io.Writer, r probeResult) {
	fmt.Fprintf(w, "Target:\t%s\n", r.Target)
	fmt.Fprintf(w, "Name:\t%s\n", r.Name)
	fmt.Fprintf(w, "Description:\t%s\n", firstLine(r.Description))
	fmt.Fprintf(w, "Object ID:\t%s\n", r.ObjectID)
	class := r.Classification
	if class == "" {
		class = "(unknown)"
	}
	fmt.Fprintf(w, "Classification:\t%s\n", class)
	if r.Updated {
		fmt.Fprintln(w, "Device updated")
	}
}
