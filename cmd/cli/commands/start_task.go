package commands

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// StartTaskCmd creates the startTask command
func StartTaskCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "startTask <assignment_id>",
		Short: "Acknowledge and start an assignment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")

			a, err := app.Engine.Start(app.Ctx, args[0], userID)
			if err != nil {
				return err
			}

			color.Green("\n✓ Task started\n")
			fmt.Printf("Task:  %s (hour %d)\n", a.TaskName, a.HourIndex)
			if a.EndsAt != nil {
				fmt.Printf("Until: %s\n\n", a.EndsAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().String("user", "", "Acting operator's user ID")
	cmd.MarkFlagRequired("user")
	return cmd
}
