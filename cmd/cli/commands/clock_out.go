package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// ClockOutCmd creates the clockOut command
func ClockOutCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clockOut <user_id>",
		Short: "Clock an operator out, closing their shift window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shift, err := app.Shifts.ClockOut(app.Ctx, args[0])
			if err != nil {
				return err
			}

			color.Green("\n✓ Clocked out\n")
			fmt.Printf("Shift ID: %s\n", shift.ID)
			if shift.EndAt != nil {
				fmt.Printf("Worked:   %.1f hours\n\n", shift.EndAt.Sub(shift.StartAt).Hours())
			}
			return nil
		},
	}
}
