package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// ClockInCmd creates the clockIn command
func ClockInCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clockIn <user_id> [display_name...]",
		Short: "Clock an operator in, opening their shift window",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := args[0]
			displayName := userID
			if len(args) > 1 {
				displayName = strings.Join(args[1:], " ")
			}

			shift, err := app.Shifts.ClockIn(app.Ctx, userID, displayName)
			if err != nil {
				return err
			}

			color.Green("\n✓ Clocked in\n")
			fmt.Printf("Shift ID:  %s\n", shift.ID)
			fmt.Printf("Starts:    %s\n", shift.StartAt.Format(time.RFC3339))
			fmt.Printf("Ends:      %s\n\n", shift.StartAt.Add(9*time.Hour).Format(time.RFC3339))
			return nil
		},
	}
}
