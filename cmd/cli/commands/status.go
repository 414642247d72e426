package commands

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/opsdesk/pkg/store"
)

// StatusCmd creates the status command, the CLI rendering of the staffing
// dashboard
func StatusCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current staffing picture: assignments, breaks, pending requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := app.Reporter.Snapshot(app.Ctx)
			if err != nil {
				return err
			}

			bold := color.New(color.Bold)
			bold.Printf("\nStaffing at %s\n\n", snap.TakenAt.Format(time.RFC3339))

			staffing := fmt.Sprintf("%d working / %d minimum", snap.WorkingCount, snap.MinOnDuty)
			if snap.StaffingOK {
				color.Green("On duty:      %s", staffing)
			} else {
				color.Red("On duty:      %s (BELOW FLOOR)", staffing)
			}
			fmt.Printf("On shift:     %d\n", snap.OnShiftCount)
			fmt.Printf("Pending ack:  %d\n", snap.StatusCounts[store.StatusPendingAck])
			fmt.Printf("Approvals:    %d pending, %d queued for capacity\n", snap.PendingCount, snap.QueuedBreaks)
			if snap.NextPoolTask != "" {
				fmt.Printf("Next in pool: %s\n", snap.NextPoolTask)
			}
			fmt.Println()

			if len(snap.Assignments) > 0 {
				bold.Println("Assignments:")
				for _, line := range snap.Assignments {
					marker := " "
					if line.Status == store.StatusPendingAck {
						marker = "?"
					}
					covering := ""
					if line.CoveringFor != "" {
						covering = fmt.Sprintf(" (covering for %s)", line.CoveringFor)
					}
					fmt.Printf("  %s %-20s hour %d  %-14s %s%s\n",
						marker, line.DisplayName, line.HourIndex, line.Status, line.TaskName, covering)
				}
				fmt.Println()
			}

			if len(snap.OnBreak) > 0 {
				bold.Println("On break:")
				for _, line := range snap.OnBreak {
					resumes := "unknown"
					if line.ResumesAt != nil {
						resumes = line.ResumesAt.Format("15:04:05")
					}
					coverage := "uncovered"
					if line.CoveredBy != "" {
						coverage = "covered by " + line.CoveredBy
					}
					fmt.Printf("  %-20s %-12s resumes %s, %s\n",
						line.DisplayName, line.Status, resumes, coverage)
				}
				fmt.Println()
			}

			return nil
		},
	}
}
