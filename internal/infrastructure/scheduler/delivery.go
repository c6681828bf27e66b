package scheduler

import (
	"context"

	"github.com/attendance-hub/attendance-tracker/internal/domain/reminder"
	"github.com/attendance-hub/attendance-tracker/pkg/logger"
)

// Permission is the notification permission reported by a delivery agent.
type Permission int

const (
	PermissionUndetermined Permission = iota
	PermissionGranted
	PermissionDenied
)

func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "default"
	}
}

// DeliveryAgent shows fired reminders to the user.
type DeliveryAgent interface {
	Permission() Permission
	RequestPermission(ctx context.Context) Permission
	Notify(ctx context.Context, n reminder.Notification) error
	// Alert blocks until the user has seen text.
	Alert(ctx context.Context, text string)
}

// Deliver shows r through agent: a notification when permitted, otherwise
// (or when the notification fails) a blocking alert.
func Deliver(ctx context.Context, agent DeliveryAgent, r reminder.Reminder) (notified bool) {
	perm := agent.Permission()
	if perm == PermissionUndetermined {
		perm = agent.RequestPermission(ctx)
	}
	if perm == PermissionGranted {
		if err := agent.Notify(ctx, reminder.NewNotification(r)); err == nil {
			return true
		}
	}
	agent.Alert(ctx, reminder.AlertText(r))
	return false
}

// LogAgent delivers reminders as structured log lines. It always has
// permission.
type LogAgent struct {
	log *logger.Logger
}

// NewLogAgent creates a log-backed agent.
func NewLogAgent(log *logger.Logger) *LogAgent {
	if log == nil {
		log = logger.Nop()
	}
	return &LogAgent{log: log.With(logger.Component("reminders"))}
}

func (a *LogAgent) Permission() Permission { return PermissionGranted }

func (a *LogAgent) RequestPermission(context.Context) Permission { return PermissionGranted }

func (a *LogAgent) Notify(_ context.Context, n reminder.Notification) error {
	a.log.Info(n.Title,
		logger.String("body", n.Body),
		logger.String("tag", n.Tag),
	)
	return nil
}

func (a *LogAgent) Alert(_ context.Context, text string) {
	a.log.Warn(text)
}
