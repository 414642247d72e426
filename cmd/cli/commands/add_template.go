package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/opsdesk/pkg/audit"
	"github.com/example/opsdesk/pkg/store"
)

// AddTemplateCmd creates the addTemplate command
func AddTemplateCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "addTemplate <name>",
		Short: "Add a pooled-task template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			priority, _ := cmd.Flags().GetInt("priority")
			instructions, _ := cmd.Flags().GetString("instructions")
			actor, _ := cmd.Flags().GetString("actor")

			tpl := &store.TaskTemplate{
				Name:         args[0],
				Priority:     priority,
				Instructions: instructions,
				IsActive:     true,
			}
			if err := app.Store.CreateTaskTemplate(app.Ctx, tpl); err != nil {
				return err
			}

			app.Audit.Record(app.Ctx, audit.ActionTemplateCreated, actor, tpl.ID, map[string]any{
				"name":     tpl.Name,
				"priority": tpl.Priority,
			})

			color.Green("\n✓ Template created\n")
			fmt.Printf("ID:       %s\n", tpl.ID)
			fmt.Printf("Name:     %s\n", tpl.Name)
			fmt.Printf("Priority: %d\n\n", tpl.Priority)
			return nil
		},
	}

	cmd.Flags().Int("priority", 100, "Pool ordering priority, lower is more urgent")
	cmd.Flags().String("instructions", "", "Operator-facing instructions")
	cmd.Flags().String("actor", "", "Acting admin's user ID")
	cmd.MarkFlagRequired("actor")
	return cmd
}
