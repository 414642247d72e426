package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/opsdesk/pkg/store"
)

// AuditLogCmd creates the audit command
func AuditLogCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List audit trail entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, _ := cmd.Flags().GetString("actor")
			action, _ := cmd.Flags().GetString("action")
			limit, _ := cmd.Flags().GetInt("limit")

			entries, err := app.Store.ListAudit(app.Ctx, store.AuditFilter{
				ActorID: actor,
				Action:  action,
				Limit:   limit,
			})
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Println("No audit entries match.")
				return nil
			}

			for _, e := range entries {
				actorID := e.ActorID
				if actorID == "" {
					actorID = "system"
				}
				fmt.Printf("%s  %-28s %-12s %s\n",
					e.At.Format(time.RFC3339), e.Action, actorID, e.Target)
			}
			return nil
		},
	}

	cmd.Flags().String("actor", "", "Filter by acting user ID")
	cmd.Flags().String("action", "", "Filter by action name")
	cmd.Flags().Int("limit", 50, "Maximum entries to show")
	return cmd
}
