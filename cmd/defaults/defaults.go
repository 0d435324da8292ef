package defaults

import (
	"context"
	"fmt"
	"io"

	"github.com/paularlott/cli"

	"github.com/martinsuchenak/labeld/cmd/cliutil"
	"github.com/martinsuchenak/labeld/internal/model"
)

// Commands returns the default-mapping subcommands.
func Commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:        "set",
			Usage:       "Set the default template for a classification",
			Description: "Devices of this classification use the template before any compatibility matching",
			Arguments: []cli.Argument{
				&cli.StringArg{Name: "classification", Required: true},
				&cli.StringArg{Name: "template-id", Required: true},
			},
			Flags: cliutil.Flags(
				cliutil.OwnerFlag(true),
				&cli.BoolFlag{Name: "inactive", Usage: "Store the mapping without applying it"},
			),
			Run: func(ctx context.Context, cmd *cli.Command) error {
				_, store, err := cliutil.OpenStore(cmd)
				if err != nil {
					return err
				}
				defer store.Close()

				m := &model.DefaultMapping{
					OwnerID:        cmd.GetString("owner"),
					Classification: cmd.GetStringArg("classification"),
					TemplateID:     cmd.GetStringArg("template-id"),
					Active:         !cmd.GetBool("inactive"),
				}
				if err := store.SetDefaultMapping(ctx, m); err != nil {
					return fmt.Errorf("setting default: %w", err)
				}
				fmt.Printf("Default for %s: %s\n", m.Classification, m.TemplateID)
				return nil
			},
		},
		{
			Name:        "list",
			Usage:       "List default templates",
			Description: "List an owner's classification to template mappings",
			Flags:       cliutil.Flags(cliutil.OwnerFlag(true), cliutil.JSONFlag()),
			Run: func(ctx context.Context, cmd *cli.Command) error {
				_, store, err := cliutil.OpenStore(cmd)
				if err != nil {
					return err
				}
				defer store.Close()

				mappings, err := store.ListDefaultMappings(ctx, cmd.GetString("owner"))
				if err != nil {
					return fmt.Errorf("listing defaults: %w", err)
				}
				return cliutil.NewOutput(cmd).Print(mappings, func(w io.Writer) { printMappings(w, mappings) })
			},
		},
		{
			Name:        "delete",
			Usage:       "Remove the default template for a classification",
			Description: "Remove a classification mapping",
			Arguments: []cli.Argument{
				&cli.StringArg{Name: "classification", Required: true},
			},
			Flags: cliutil.Flags(cliutil.OwnerFlag(true)),
			Run: func(ctx context.Context, cmd *cli.Command) error {
				_, store, err := cliutil.OpenStore(cmd)
				if err != nil {
					return err
				}
				defer store.Close()

				class := cmd.GetStringArg("classification")
				if err := store.DeleteDefaultMapping(ctx, cmd.GetString("owner"), class); err != nil {
					return fmt.Errorf("deleting default: %w", err)
				}
				fmt.Printf("Default removed: %s\n", class)
				return nil
			},
		},
	}
}

func printMappings(w io.Writer, mappings []*model.DefaultMapping) {
	if len(mappings) == 0 {
		fmt.Fprintln(w, "No defaults configured")
		return
	}
	fmt.Fprintln(w, "CLASSIFICATION\tTEMPLATE\tACTIVE")
	for _, m := range mappings {
		fmt.Fprintf(w, "%s\t%s\t%t\n", m.Classification, m.TemplateID, m.Active)
	}
}
