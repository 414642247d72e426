package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// RunCmd creates the run command, the long-running coordinator loop
func RunCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the coordinator loop (hourly assignments, reminders, escalation, break countdowns)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(app.Ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := app.Scheduler.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}
