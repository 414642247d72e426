package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// CompleteTaskCmd creates the completeTask command
func CompleteTaskCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completeTask <assignment_id>",
		Short: "Mark an active assignment completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")

			a, err := app.Engine.Complete(app.Ctx, args[0], userID)
			if err != nil {
				return err
			}

			color.Green("\n✓ Task completed\n")
			fmt.Printf("Task: %s (hour %d)\n\n", a.TaskName, a.HourIndex)
			return nil
		},
	}

	cmd.Flags().String("user", "", "Acting operator's user ID")
	cmd.MarkFlagRequired("user")
	return cmd
}
