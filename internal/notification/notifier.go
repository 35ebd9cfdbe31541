// Package notification delivers report lifecycle events to users.
// Delivery is best-effort: a failing channel is logged and never surfaces to the caller.
package notification

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/verustcode/stagereport/internal/config"
	"github.com/verustcode/stagereport/internal/store"
	"github.com/verustcode/stagereport/pkg/logger"
	"github.com/verustcode/stagereport/pkg/telemetry"
)

// EventType represents the type of notification event
type EventType string

const (
	// EventReportRequested is emitted when a generation request is accepted
	EventReportRequested EventType = "report.requested"
	// EventReportStarted is emitted when a worker starts generating
	EventReportStarted EventType = "report.started"
	// EventReportCompleted is emitted when the artifact is stored
	EventReportCompleted EventType = "report.completed"
	// EventReportFailed is emitted when generation fails
	EventReportFailed EventType = "report.failed"
)

// Event represents a notification event with context information
type Event struct {
	Type      EventType `json:"type"`
	UserID    uint      `json:"user_id"`
	ProjectID uint      `json:"project_id"`
	ReportID  uint      `json:"report_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier is the interface that all notification channels must implement
type Notifier interface {
	// Name returns the name of the notifier (e.g., "inbox", "webhook")
	Name() string
	// Send sends a notification for the given event
	Send(ctx context.Context, event *Event) error
}

// ReportNotifier is the single operation report components consume
type ReportNotifier interface {
	Notify(ctx context.Context, userID, projectID, reportID uint, eventType EventType, message string)
}

// Dispatcher fans an event out to every configured channel.
// Each channel runs inside its own timeout and panic boundary.
type Dispatcher struct {
	notifiers []Notifier
	timeout   time.Duration
}

// NewDispatcher creates a dispatcher over the given channels
func NewDispatcher(timeout time.Duration, notifiers ...Notifier) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{notifiers: notifiers, timeout: timeout}
}

// New wires the channels enabled in cfg.
// pusher may be nil when live push is disabled.
func New(cfg config.NotificationConfig, s store.Store, pusher Pusher) *Dispatcher {
	var notifiers []Notifier

	if cfg.Inbox.Enabled {
		notifiers = append(notifiers, NewInboxNotifier(s, pusher))
	} else if pusher != nil {
		notifiers = append(notifiers, NewPushNotifier(pusher))
	}
	if cfg.Webhook.IsEnabled() {
		notifiers = append(notifiers, NewWebhookNotifier(&cfg.Webhook))
	}

	names := make([]string, len(notifiers))
	for i, n := range notifiers {
		names[i] = n.Name()
	}
	logger.Info("Notification dispatcher initialized", zap.Strings("channels", names))

	return NewDispatcher(time.Duration(cfg.TimeoutSeconds)*time.Second, notifiers...)
}

// Channels returns the names of the configured channels
func (d *Dispatcher) Channels() []string {
	names := make([]string, len(d.notifiers))
	for i, n := range d.notifiers {
		names[i] = n.Name()
	}
	return names
}

// Notify delivers a report event to the user.
// It never returns an error and never panics; failures are logged at warn level.
func (d *Dispatcher) Notify(ctx context.Context, userID, projectID, reportID uint, eventType EventType, message string) {
	d.NotifyEvent(ctx, &Event{
		Type:      eventType,
		UserID:    userID,
		ProjectID: projectID,
		ReportID:  reportID,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// NotifyEvent delivers a prepared event to every channel
func (d *Dispatcher) NotifyEvent(ctx context.Context, event *Event) {
	if d == nil || event == nil {
		return
	}
	// notifications outlive the request that triggered them
	ctx = context.WithoutCancel(ctx)

	for _, n := range d.notifiers {
		err := d.send(ctx, n, event)
		telemetry.GetMetrics().RecordNotification(ctx, n.Name(), err == nil)
		if err != nil {
			logger.Warn("Failed to send notification",
				zap.String("channel", n.Name()),
				zap.String("event_type", string(event.Type)),
				zap.Uint(logger.FieldReportID, event.ReportID),
				zap.Uint(logger.FieldUserID, event.UserID),
				zap.Error(err),
			)
			continue
		}
		logger.Debug("Notification sent",
			zap.String("channel", n.Name()),
			zap.String("event_type", string(event.Type)),
			zap.Uint(logger.FieldReportID, event.ReportID),
		)
	}
}

func (d *Dispatcher) send(ctx context.Context, n Notifier, event *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier %s panicked: %v", n.Name(), r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return n.Send(ctx, event)
}
