package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// RequestEndEarlyCmd creates the requestEndEarly command
func RequestEndEarlyCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requestEndEarly <assignment_id>",
		Short: "Request admin approval to end an assignment before the hour is up",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			reason, _ := cmd.Flags().GetString("reason")

			req, err := app.Engine.RequestEndEarly(app.Ctx, args[0], userID, reason)
			if err != nil {
				return err
			}

			color.Green("\n✓ End-early request filed\n")
			fmt.Printf("Request ID: %s\n", req.ID)
			fmt.Println("An admin will approve or deny it.")
			return nil
		},
	}

	cmd.Flags().String("user", "", "Acting operator's user ID")
	cmd.Flags().String("reason", "", "Why the task should end early")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("reason")
	return cmd
}
