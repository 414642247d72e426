package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/opsdesk/pkg/store"
)

// RequestBreakCmd creates the requestBreak command
func RequestBreakCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requestBreak <assignment_id>",
		Short: "Request a 15 minute break, or a 60 minute lunch with --lunch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			reason, _ := cmd.Flags().GetString("reason")
			lunch, _ := cmd.Flags().GetBool("lunch")

			breakType := store.ApprovalBreak15
			duration := 15
			if lunch {
				breakType = store.ApprovalLunch60
				duration = 60
			}

			req, err := app.Breaks.Request(app.Ctx, args[0], userID, breakType, reason, duration)
			if err != nil {
				return err
			}

			if req.Status == store.ApprovalQueued {
				color.Yellow("\n⧖ Request queued for capacity\n")
				fmt.Println("Approving it now would drop staffing below the minimum.")
				fmt.Println("It will surface for approval as soon as capacity allows.")
			} else {
				color.Green("\n✓ Break request filed\n")
				fmt.Println("An admin will approve or deny it.")
			}
			fmt.Printf("Request ID: %s\n\n", req.ID)
			return nil
		},
	}

	cmd.Flags().String("user", "", "Acting operator's user ID")
	cmd.Flags().String("reason", "", "Why the break is needed")
	cmd.Flags().Bool("lunch", false, "Request a 60 minute lunch instead of a 15 minute break")
	cmd.MarkFlagRequired("user")
	return cmd
}
