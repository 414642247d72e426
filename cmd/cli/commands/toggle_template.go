package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/opsdesk/pkg/audit"
)

// ToggleTemplateCmd creates the toggleTemplate command
func ToggleTemplateCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toggleTemplate <name>",
		Short: "Activate or deactivate a pooled-task template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			active, _ := cmd.Flags().GetBool("active")
			actor, _ := cmd.Flags().GetString("actor")

			if err := app.Store.SetTemplateActive(app.Ctx, args[0], active); err != nil {
				return err
			}

			app.Audit.Record(app.Ctx, audit.ActionTemplateToggled, actor, args[0], map[string]any{
				"active": active,
			})

			if active {
				color.Green("\n✓ Template %s activated\n", args[0])
			} else {
				color.Yellow("\n✓ Template %s deactivated\n", args[0])
			}
			return nil
		},
	}

	cmd.Flags().Bool("active", true, "Whether the template is in the pool")
	cmd.Flags().String("actor", "", "Acting admin's user ID")
	cmd.MarkFlagRequired("actor")
	return cmd
}
