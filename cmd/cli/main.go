package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/opsdesk/cmd/cli/commands"
	"github.com/example/opsdesk/internal/config"
	"github.com/example/opsdesk/pkg/audit"
	"github.com/example/opsdesk/pkg/core/breaks"
	"github.com/example/opsdesk/pkg/core/dashboard"
	"github.com/example/opsdesk/pkg/core/lifecycle"
	"github.com/example/opsdesk/pkg/core/scheduler"
	"github.com/example/opsdesk/pkg/core/shifts"
	"github.com/example/opsdesk/pkg/notify"
	"github.com/example/opsdesk/pkg/store/memstore"
	"github.com/example/opsdesk/pkg/store/postgres"
	"github.com/example/opsdesk/pkg/utils/logging"
)

var app *commands.AppContext

func main() {
	rootCmd := &cobra.Command{
		Use:   "opsdesk",
		Short: "OpsDesk - hourly task assignment coordinator for shift crews",
		Long: `OpsDesk coordinates hourly task assignments for an operations crew:
rotating the comms lead, chasing unacknowledged assignments, and arbitrating
break and lunch coverage against the staffing floor.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp(cmd.Name())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil && app.Logger != nil {
				app.Logger.Sync()
			}
		},
	}

	rootCmd.AddCommand(commands.RunCmd(appRef()))
	rootCmd.AddCommand(commands.ClockInCmd(appRef()))
	rootCmd.AddCommand(commands.ClockOutCmd(appRef()))
	rootCmd.AddCommand(commands.PostAssignmentsCmd(appRef()))
	rootCmd.AddCommand(commands.StartTaskCmd(appRef()))
	rootCmd.AddCommand(commands.CompleteTaskCmd(appRef()))
	rootCmd.AddCommand(commands.RequestEditCmd(appRef()))
	rootCmd.AddCommand(commands.RequestEndEarlyCmd(appRef()))
	rootCmd.AddCommand(commands.RequestBreakCmd(appRef()))
	rootCmd.AddCommand(commands.CancelBreakCmd(appRef()))
	rootCmd.AddCommand(commands.ResolveCmd(appRef()))
	rootCmd.AddCommand(commands.StatusCmd(appRef()))
	rootCmd.AddCommand(commands.AuditLogCmd(appRef()))
	rootCmd.AddCommand(commands.AddTemplateCmd(appRef()))
	rootCmd.AddCommand(commands.ToggleTemplateCmd(appRef()))
	rootCmd.AddCommand(commands.ListTemplatesCmd(appRef()))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// appRef returns a pointer the commands can capture before initApp fills it
// in during PersistentPreRunE.
func appRef() *commands.AppContext {
	if app == nil {
		app = &commands.AppContext{}
	}
	return app
}

// initApp sets up logger, config, store, and services
func initApp(commandName string) error {
	a := appRef()
	a.Ctx = context.Background()

	var err error
	a.Logger, err = logging.Init(commandName)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.Cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.Logger.Debug("Configuration loaded",
		zap.String("timezone", a.Cfg.Timezone),
		zap.Int("min_on_duty", a.Cfg.MinOnDuty))

	if a.Cfg.DatabaseURL != "" {
		pg, err := postgres.New(a.Ctx, a.Cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := pg.RunMigrations(a.Ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		a.Store = pg
		a.Logger.Info("Connected to PostgreSQL store")
	} else {
		a.Store = memstore.New()
		a.Logger.Warn("No databaseURL configured, using in-memory store; state will not survive this process")
	}

	if err := applyConfigSettings(a); err != nil {
		return err
	}

	a.Notifier = notify.NewConsoleNotifier(a.Logger)
	a.Audit = audit.NewRecorder(a.Store, a.Logger)
	a.Engine = lifecycle.NewEngine(a.Store, a.Audit, a.Notifier, a.Logger)
	a.Breaks = breaks.NewManager(a.Store, a.Audit, a.Notifier, a.Logger)
	a.Shifts = shifts.NewService(a.Store, a.Audit, a.Logger, a.Cfg.ShiftStartHours)
	a.Reporter = dashboard.NewReporter(a.Store, a.Breaks.ActiveBreak)
	a.Scheduler = scheduler.New(a.Store, a.Breaks, a.Reporter, a.Audit, a.Notifier, a.Logger)

	return nil
}

// applyConfigSettings pushes file-level configuration into the settings
// record so services read one source of truth.
func applyConfigSettings(a *commands.AppContext) error {
	settings, err := a.Store.GetSettings(a.Ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	settings.Timezone = a.Cfg.Timezone
	settings.MinOnDuty = a.Cfg.MinOnDuty
	settings.CooldownEditSec = a.Cfg.CooldownEditSec
	settings.CooldownEndEarlySec = a.Cfg.CooldownEndEarlySec
	if err := a.Store.UpdateSettings(a.Ctx, settings); err != nil {
		return fmt.Errorf("failed to apply settings: %w", err)
	}
	return nil
}
