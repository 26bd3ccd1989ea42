package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/clinrag/clinrag/internal/templates"
)

// newTemplatesCmd creates the templates command. It works offline: the
// registry is built in without a store or LLM connection.
func newTemplatesCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "templates [name]",
		Short: "List the structural query templates",
		Long: `List the allow-listed graph templates, or show one template's
parameters in detail. A template file from config is merged in first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			registry := templates.NewRegistry()
			if cfg.Templates.File != "" {
				if err := templates.LoadFile(registry, cfg.Templates.File); err != nil {
					return err
				}
			}

			if len(args) == 1 {
				tmpl, ok := registry.Get(args[0])
				if !ok {
					return fmt.Errorf("unknown template: %s", args[0])
				}
				return printTemplate(cmd, tmpl, jsonOutput)
			}

			list := registry.List()
			if jsonOutput || !isatty.IsTerminal(os.Stdout.Fd()) {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}

			w := cmd.OutOrStdout()
			for _, tmpl := range list {
				fmt.Fprintf(w, "%-36s %s\n", tmpl.Name, tmpl.Description)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Force JSON output")

	return cmd
}

func printTemplate(cmd *cobra.Command, tmpl *templates.Template, jsonOutput bool) error {
	if jsonOutput || !isatty.IsTerminal(os.Stdout.Fd()) {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(tmpl)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s\n  %s\n  Use case: %s\n", tmpl.Name, tmpl.Description, tmpl.UseCase)
	if len(tmpl.Params) == 0 {
		fmt.Fprintln(w, "  Parameters: none")
		return nil
	}
	fmt.Fprintln(w, "  Parameters:")
	for _, p := range tmpl.Params {
		required := "optional"
		if p.Required {
			required = "required"
		}
		fmt.Fprintf(w, "    %-20s %-12s %-9s %s\n", p.Name, p.Type, required, p.Description)
	}
	return nil
}
