package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// ResolveCmd creates the resolve command for actioning pending requests
func ResolveCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <request_id> <approve|deny>",
		Short: "Approve or deny a pending request as an admin",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolverID, _ := cmd.Flags().GetString("resolver")
			note, _ := cmd.Flags().GetString("note")

			var approved bool
			switch args[1] {
			case "approve":
				approved = true
			case "deny":
				approved = false
			default:
				return fmt.Errorf("decision must be approve or deny, got %q", args[1])
			}

			req, err := app.Store.GetApproval(app.Ctx, args[0])
			if err != nil {
				return err
			}

			// Break requests run through arbitration so coverage and the
			// countdown start atomically with the approval.
			if req.IsBreakType() {
				if err := app.Breaks.ResolveBreak(app.Ctx, req.ID, approved, resolverID, note); err != nil {
					return err
				}
			} else {
				if _, err := app.Engine.Resolve(app.Ctx, req.ID, approved, resolverID, note); err != nil {
					return err
				}
			}

			if approved {
				color.Green("\n✓ Request %s approved\n", req.ID)
			} else {
				color.Red("\n✗ Request %s denied\n", req.ID)
			}
			fmt.Printf("Type:     %s\n", req.Type)
			fmt.Printf("Operator: %s\n\n", req.UserID)
			return nil
		},
	}

	cmd.Flags().String("resolver", "", "Resolving admin's user ID")
	cmd.Flags().String("note", "", "Resolution note shown to the operator")
	cmd.MarkFlagRequired("resolver")
	return cmd
}
