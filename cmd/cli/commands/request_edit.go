package commands

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// RequestEditCmd creates the requestEdit command
func RequestEditCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requestEdit <assignment_id> <key=value>...",
		Short: "Request an admin-approved change to assignment parameters",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			reason, _ := cmd.Flags().GetString("reason")

			changes := make(map[string]any)
			for _, pair := range args[1:] {
				key, value, found := strings.Cut(pair, "=")
				if !found || key == "" {
					return fmt.Errorf("parameter %q is not key=value", pair)
				}
				changes[key] = value
			}

			req, err := app.Engine.RequestEdit(app.Ctx, args[0], userID, changes, reason)
			if err != nil {
				return err
			}

			color.Green("\n✓ Edit request filed\n")
			fmt.Printf("Request ID: %s\n", req.ID)
			fmt.Println("An admin will approve or deny it.")
			return nil
		},
	}

	cmd.Flags().String("user", "", "Acting operator's user ID")
	cmd.Flags().String("reason", "", "Why the change is needed")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("reason")
	return cmd
}
