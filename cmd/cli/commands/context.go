package commands

import (
	"context"

	"go.uber.org/zap"

	"github.com/example/opsdesk/internal/config"
	"github.com/example/opsdesk/pkg/audit"
	"github.com/example/opsdesk/pkg/core/breaks"
	"github.com/example/opsdesk/pkg/core/dashboard"
	"github.com/example/opsdesk/pkg/core/lifecycle"
	"github.com/example/opsdesk/pkg/core/scheduler"
	"github.com/example/opsdesk/pkg/core/shifts"
	"github.com/example/opsdesk/pkg/notify"
	"github.com/example/opsdesk/pkg/store"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Cfg       *config.Config
	Store     store.Store
	Engine    *lifecycle.Engine
	Breaks    *breaks.Manager
	Shifts    *shifts.Service
	Scheduler *scheduler.Scheduler
	Reporter  *dashboard.Reporter
	Audit     *audit.Recorder
	Notifier  notify.Notifier
	Logger    *zap.Logger
	Ctx       context.Context
}
