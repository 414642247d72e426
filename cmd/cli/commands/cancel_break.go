package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// CancelBreakCmd creates the cancelBreak command
func CancelBreakCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancelBreak <assignment_id>",
		Short: "Return from a break early, resuming the task immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")

			if err := app.Breaks.Cancel(app.Ctx, args[0], userID); err != nil {
				return err
			}

			color.Green("\n✓ Break cancelled, task resumed\n")
			return nil
		},
	}

	cmd.Flags().String("user", "", "Acting operator's user ID")
	cmd.MarkFlagRequired("user")
	return cmd
}
