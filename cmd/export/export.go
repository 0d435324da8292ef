package export

import (
	"context"
	"fmt"
	"io"

	"github.com/paularlott/cli"

	"github.com/martinsuchenak/labeld/cmd/cliutil"
	"github.com/martinsuchenak/labeld/internal/export"
	"github.com/martinsuchenak/labeld/internal/layout"
	"github.com/martinsuchenak/labeld/internal/matching"
	"github.com/martinsuchenak/labeld/internal/qr"
)

// Commands returns the export subcommands.
func Commands() []*cli.Command {
	return []*cli.Command{planCommand()}
}

func planCommand() *cli.Command {
	return &cli.Command{
		Name:        "plan",
		Usage:       "Plan a sticker print job",
		Description: "Resolve stickers for the given devices and lay them out on pages",
		Flags: cliutil.Flags(
			cliutil.OwnerFlag(true),
			cliutil.JSONFlag(),
			&cli.StringFlag{Name: "devices", Usage: "Comma-separated device IDs", Required: true},
			&cli.StringFlag{Name: "template", Usage: "Use this template for every device instead of matching"},
			&cli.StringFlag{Name: "mode", Usage: "autofit or one_per_page", DefaultValue: string(layout.ModeAutoFit)},
		),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			cfg, store, err := cliutil.OpenStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			generator, err := qr.NewGenerator(cfg.Export.QRSize, cfg.Export.QRLevel)
			if err != nil {
				return err
			}
			svc := export.NewService(store, matching.NewEngine(store), generator, cfg.Export.Parallelism)

			result, err := svc.Plan(ctx, cmd.GetString("owner"), export.PlanRequest{
				DeviceIDs:  cliutil.ParseList(cmd.GetString("devices")),
				TemplateID: cmd.GetString("template"),
				Page:       cfg.Export.Page(),
				Margins:    cfg.Export.Margins(),
				Mode:       layout.Mode(cmd.GetString("mode")),
			})
			if err != nil {
				return err
			}
			return cliutil.NewOutput(cmd).Print(result, func(w io.Writer) { printPlan(w, result) })
		},
	}
}

func printPlan(w io.Writer, res *export.PlanResult) {
	templates := make(map[string]string, len(res.Stickers))
	missing := 0
	for _, st := range res.Stickers {
		templates[st.DeviceID] = st.Match.Template.Name
		missing += len(st.Document.Missing)
	}

	fmt.Fprintln(w, "DEVICE\tTEMPLATE\tPAGE\tX\tY\tSIZE\tROTATED")
	for _, p := range res.Layout.Placements {
		fmt.Fprintf(w, "%s\t%s\t%d\t%g\t%g\t%gx%g\t%t\n",
			p.DeviceID, templates[p.DeviceID], p.Page+1, p.X, p.Y, p.Width, p.Height, p.Rotated)
	}
	fmt.Fprintf(w, "\n%d stickers on %d pages", len(res.Stickers), res.Layout.TotalPages)
	if missing > 0 {
		fmt.Fprintf(w, ", %d unresolved references", missing)
	}
	fmt.Fprintln(w)
}
