package template

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/paularlott/cli"

	"github.com/martinsuchenak/labeld/cmd/cliutil"
	"github.com/martinsuchenak/labeld/internal/log"
	"github.com/martinsuchenak/labeld/internal/model"
	"github.com/martinsuchenak/labeld/internal/storage"
	"github.com/martinsuchenak/labeld/internal/templatefile"
)

// Commands returns the template subcommands.
func Commands() []*cli.Command {
	return []*cli.Command{
		listCommand(),
		importCommand(),
		exportCommand(),
		deleteCommand(),
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:        "list",
		Usage:       "List templates",
		Description: "List the templates visible to an owner; without --owner only shared templates are shown",
		Flags:       cliutil.Flags(cliutil.OwnerFlag(false), cliutil.JSONFlag()),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			_, store, err := cliutil.OpenStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			templates, err := store.ListVisibleTemplates(ctx, cmd.GetString("owner"))
			if err != nil {
				return fmt.Errorf("listing templates: %w", err)
			}
			out := cliutil.NewOutput(cmd)
			return out.Print(templates, func(w io.Writer) { printTemplates(w, templates) })
		},
	}
}

func printTemplates(w io.Writer, templates []*model.Template) {
	if len(templates) == 0 {
		fmt.Fprintln(w, "No templates found")
		return
	}
	fmt.Fprintln(w, "ID\tNAME\tSIZE\tSCOPE\tCOMPATIBILITY")
	for _, t := range templates {
		scope := t.OwnerID
		if t.IsShared() {
			scope = "shared"
		}
		compat := "universal"
		if !t.IsUniversal() {
			compat = strings.Join(t.Compatibility, ",")
		}
		fmt.Fprintf(w, "%s\t%s\t%gx%gmm\t%s\t%s\n", t.ID, t.Name, t.Document.Width, t.Document.Height, scope, compat)
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:        "import",
		Usage:       "Import a template file",
		Description: "Create or replace a template from a YAML or JSON file. Without --owner the template is shared.",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "file", Required: true},
		},
		Flags: cliutil.Flags(cliutil.OwnerFlag(false)),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			t, err := templatefile.Load(cmd.GetStringArg("file"))
			if err != nil {
				return err
			}
			t.OwnerID = cmd.GetString("owner")

			_, store, err := cliutil.OpenStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			created, err := Import(ctx, store, t)
			if err != nil {
				return err
			}
			verb := "Updated"
			if created {
				verb = "Imported"
			}
			fmt.Printf("%s template: %s (ID: %s)\n", verb, t.Name, t.ID)
			return nil
		},
	}
}

// Import creates t, or replaces the existing template with the same ID and
// owner. It reports whether a new template was created.
func Import(ctx context.Context, store storage.TemplateStore, t *model.Template) (bool, error) {
	if t.ID != "" {
		existing, err := store.GetTemplate(ctx, t.ID)
		switch {
		case err == nil && existing.OwnerID != t.OwnerID:
			return false, fmt.Errorf("template %s belongs to another scope: %w", t.ID, model.ErrAccessDenied)
		case err == nil:
			if err := store.UpdateTemplate(ctx, t); err != nil {
				return false, fmt.Errorf("updating template: %w", err)
			}
			log.Debug("Template replaced", "id", t.ID)
			return false, nil
		case !storage.IsNotFound(err):
			return false, err
		}
	}
	if err := store.CreateTemplate(ctx, t); err != nil {
		return false, fmt.Errorf("creating template: %w", err)
	}
	return true, nil
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:        "export",
		Usage:       "Write a template file",
		Description: "Print a template in the file format accepted by import",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id", Required: true},
		},
		Flags: cliutil.Flags(&cli.StringFlag{
			Name:         "format",
			Usage:        "yaml or json",
			DefaultValue: "yaml",
		}),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			_, store, err := cliutil.OpenStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			t, err := store.GetTemplate(ctx, cmd.GetStringArg("id"))
			if err != nil {
				return err
			}
			format := templatefile.FormatYAML
			if strings.EqualFold(cmd.GetString("format"), "json") {
				format = templatefile.FormatJSON
			}
			return templatefile.Encode(os.Stdout, t, format)
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:        "delete",
		Usage:       "Delete a template",
		Description: "Delete a template and every default mapping that points at it",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id", Required: true},
		},
		Flags: cliutil.Flags(),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			_, store, err := cliutil.OpenStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			id := cmd.GetStringArg("id")
			if err := store.DeleteTemplate(ctx, id); err != nil {
				return fmt.Errorf("deleting template: %w", err)
			}
			fmt.Printf("Template deleted: %s\n", id)
			return nil
		},
	}
}
