// Package notify defines the outbound notification contract. Delivery is
// best-effort: the core fires notifications and never waits on or retries
// them. The chat-platform integration implements Notifier elsewhere; this
// package ships a console implementation for the CLI and a no-op for tests.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// ApprovalSummary is the renderable content of an admin approval prompt.
type ApprovalSummary struct {
	RequestID    string
	RequestType  string
	OperatorName string
	TaskName     string
	HourIndex    int
	Reason       string
	Detail       string
}

// Notifier delivers operator and admin notifications.
type Notifier interface {
	NotifyOperator(ctx context.Context, userID, message string)
	NotifyAdmins(ctx context.Context, message string)
	// RequestApproval surfaces a pending request to admins. Resolution comes
	// back later through the lifecycle Resolve entry point, not through this
	// call.
	RequestApproval(ctx context.Context, summary ApprovalSummary)
}

// ConsoleNotifier writes notifications to the structured log. It stands in
// for the chat platform when running from the CLI.
type ConsoleNotifier struct {
	logger *zap.Logger
}

// NewConsoleNotifier creates a ConsoleNotifier.
func NewConsoleNotifier(logger *zap.Logger) *ConsoleNotifier {
	return &ConsoleNotifier{logger: logger}
}

func (n *ConsoleNotifier) NotifyOperator(ctx context.Context, userID, message string) {
	n.logger.Info("Operator notification",
		zap.String("user_id", userID),
		zap.String("message", message))
}

func (n *ConsoleNotifier) NotifyAdmins(ctx context.Context, message string) {
	n.logger.Info("Admin notification", zap.String("message", message))
}

func (n *ConsoleNotifier) RequestApproval(ctx context.Context, summary ApprovalSummary) {
	n.logger.Info("Approval requested",
		zap.String("request_id", summary.RequestID),
		zap.String("request_type", summary.RequestType),
		zap.String("operator", summary.OperatorName),
		zap.String("task", summary.TaskName),
		zap.Int("hour_index", summary.HourIndex),
		zap.String("reason", summary.Reason))
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) NotifyOperator(ctx context.Context, userID, message string) {}
func (NopNotifier) NotifyAdmins(ctx context.Context, message string)           {}
func (NopNotifier) RequestApproval(ctx context.Context, summary ApprovalSummary) {
}
