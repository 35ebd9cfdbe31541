package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verustcode/stagereport/internal/config"
	"github.com/verustcode/stagereport/internal/store"
	"github.com/verustcode/stagereport/pkg/logger"
)

func init() {
	logger.Init(logger.Config{
		Level:  "error",
		Format: "text",
	})
}

// recordingNotifier records every event it receives
type recordingNotifier struct {
	name string
	err  error

	mu     sync.Mutex
	events []*Event
}

func (r *recordingNotifier) Name() string { return r.name }

func (r *recordingNotifier) Send(_ context.Context, event *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingNotifier) received() []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Event(nil), r.events...)
}

type panickingNotifier struct{}

func (panickingNotifier) Name() string { return "panic" }

func (panickingNotifier) Send(context.Context, *Event) error {
	panic("boom")
}

// blockingNotifier waits until its context is done
type blockingNotifier struct{}

func (blockingNotifier) Name() string { return "blocking" }

func (blockingNotifier) Send(ctx context.Context, _ *Event) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestDispatcher_Notify(t *testing.T) {
	rec := &recordingNotifier{name: "rec"}
	d := NewDispatcher(time.Second, rec)

	d.Notify(context.Background(), 3, 7, 42, EventReportCompleted, "Report 42 is ready")

	events := rec.received()
	require.Len(t, events, 1)
	assert.Equal(t, EventReportCompleted, events[0].Type)
	assert.Equal(t, uint(3), events[0].UserID)
	assert.Equal(t, uint(7), events[0].ProjectID)
	assert.Equal(t, uint(42), events[0].ReportID)
	assert.Equal(t, "Report 42 is ready", events[0].Message)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestDispatcher_FailureIsolation(t *testing.T) {
	failing := &recordingNotifier{name: "failing", err: errors.New("unreachable")}
	after := &recordingNotifier{name: "after"}
	d := NewDispatcher(50*time.Millisecond, failing, panickingNotifier{}, blockingNotifier{}, after)

	assert.NotPanics(t, func() {
		d.Notify(context.Background(), 1, 1, 1, EventReportFailed, "boom")
	})

	assert.Len(t, failing.received(), 1)
	assert.Len(t, after.received(), 1, "channels after a failing one still run")
}

func TestDispatcher_CanceledContext(t *testing.T) {
	rec := &recordingNotifier{name: "rec"}
	d := NewDispatcher(time.Second, rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Notify(ctx, 1, 1, 1, EventReportRequested, "queued")

	assert.Len(t, rec.received(), 1)
}

func TestDispatcher_NilSafe(t *testing.T) {
	var d *Dispatcher
	assert.NotPanics(t, func() {
		d.Notify(context.Background(), 1, 1, 1, EventReportStarted, "x")
	})
}

func TestNew_Channels(t *testing.T) {
	s, cleanup := store.SetupTestDB(t)
	defer cleanup()

	cfg := config.NotificationConfig{TimeoutSeconds: 5}
	assert.Empty(t, New(cfg, s, nil).Channels())

	cfg.Inbox.Enabled = true
	cfg.Webhook.URL = "http://hooks.example.com/reports"
	assert.Equal(t, []string{"inbox", "webhook"}, New(cfg, s, nil).Channels())

	cfg.Inbox.Enabled = false
	hub := NewHub(config.WebSocketConfig{})
	assert.Equal(t, []string{"push", "webhook"}, New(cfg, s, hub).Channels())
}
