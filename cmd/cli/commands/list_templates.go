package commands

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// ListTemplatesCmd creates the listTemplates command
func ListTemplatesCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listTemplates",
		Short: "List pooled-task templates in pool order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			activeOnly, _ := cmd.Flags().GetBool("active-only")

			templates, err := app.Store.ListTaskTemplates(app.Ctx, activeOnly)
			if err != nil {
				return err
			}
			if len(templates) == 0 {
				fmt.Println("No templates found.")
				return nil
			}

			bold := color.New(color.Bold)
			bold.Printf("\n%-24s %-8s %-8s %s\n", "NAME", "PRIORITY", "ACTIVE", "WINDOW")
			for _, tpl := range templates {
				window := "always"
				if tpl.WindowStart != nil || tpl.WindowEnd != nil {
					from, until := "...", "..."
					if tpl.WindowStart != nil {
						from = tpl.WindowStart.Format(time.RFC3339)
					}
					if tpl.WindowEnd != nil {
						until = tpl.WindowEnd.Format(time.RFC3339)
					}
					window = from + " to " + until
				}
				fmt.Printf("%-24s %-8d %-8t %s\n", tpl.Name, tpl.Priority, tpl.IsActive, window)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().Bool("active-only", false, "Only show templates currently in the pool")
	return cmd
}
