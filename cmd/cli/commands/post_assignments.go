package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// PostAssignmentsCmd creates the postAssignments command, a manual trigger
// for the hourly generation pass
func PostAssignmentsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "postAssignments",
		Short: "Post this hour's assignments now instead of waiting for the hour boundary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Scheduler.PostHourlyAssignments(app.Ctx); err != nil {
				return err
			}
			color.Green("\n✓ Assignment pass complete\n")
			return nil
		},
	}
}
