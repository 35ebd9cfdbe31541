package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/verustcode/stagereport/internal/model"
	"github.com/verustcode/stagereport/internal/store"
)

// PushMessage is what connected clients receive
type PushMessage struct {
	// ID is the inbox notification id, zero when the message was not persisted
	ID        uint      `json:"id,omitempty"`
	Event     EventType `json:"event"`
	ProjectID uint      `json:"project_id"`
	ReportID  uint      `json:"report_id,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Pusher delivers a message to every live connection of a user
type Pusher interface {
	Publish(ctx context.Context, userID uint, msg *PushMessage) error
}

// InboxNotifier persists a notification for the user and pushes it live
type InboxNotifier struct {
	store  store.Store
	pusher Pusher
}

// NewInboxNotifier creates an inbox channel; pusher may be nil
func NewInboxNotifier(s store.Store, pusher Pusher) *InboxNotifier {
	return &InboxNotifier{store: s, pusher: pusher}
}

// Name returns the notifier name
func (n *InboxNotifier) Name() string {
	return "inbox"
}

// Send stores the notification, then pushes it.
// A push failure is reported after the row is committed.
func (n *InboxNotifier) Send(ctx context.Context, event *Event) error {
	row := &model.Notification{
		UserID:    event.UserID,
		ProjectID: event.ProjectID,
		Event:     string(event.Type),
		Message:   event.Message,
	}
	if event.ReportID != 0 {
		reportID := event.ReportID
		row.ReportID = &reportID
	}
	if err := n.store.WithContext(ctx).Notification().Create(row); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}

	if n.pusher == nil {
		return nil
	}
	msg := messageFromEvent(event)
	msg.ID = row.ID
	msg.CreatedAt = row.CreatedAt
	if err := n.pusher.Publish(ctx, event.UserID, msg); err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	return nil
}

// PushNotifier pushes events live without persisting them
type PushNotifier struct {
	pusher Pusher
}

// NewPushNotifier creates a push-only channel
func NewPushNotifier(pusher Pusher) *PushNotifier {
	return &PushNotifier{pusher: pusher}
}

// Name returns the notifier name
func (n *PushNotifier) Name() string {
	return "push"
}

// Send pushes the event to the user's connections
func (n *PushNotifier) Send(ctx context.Context, event *Event) error {
	return n.pusher.Publish(ctx, event.UserID, messageFromEvent(event))
}

func messageFromEvent(event *Event) *PushMessage {
	return &PushMessage{
		Event:     event.Type,
		ProjectID: event.ProjectID,
		ReportID:  event.ReportID,
		Message:   event.Message,
		CreatedAt: event.Timestamp,
	}
}
