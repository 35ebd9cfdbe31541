package notification

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verustcode/stagereport/internal/store"
)

type recordingPusher struct {
	err error

	mu   sync.Mutex
	sent map[uint][]*PushMessage
}

func (p *recordingPusher) Publish(_ context.Context, userID uint, msg *PushMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sent == nil {
		p.sent = make(map[uint][]*PushMessage)
	}
	p.sent[userID] = append(p.sent[userID], msg)
	return p.err
}

func TestInboxNotifier_PersistsAndPushes(t *testing.T) {
	s, cleanup := store.SetupTestDB(t)
	defer cleanup()

	user := store.CreateTestUser(t, s)
	project := store.CreateTestProject(t, s, user.ID)

	pusher := &recordingPusher{}
	n := NewInboxNotifier(s, pusher)

	ev := testEvent()
	ev.UserID = user.ID
	ev.ProjectID = project.ID
	require.NoError(t, n.Send(context.Background(), ev))

	items, total, err := s.Notification().ListByUser(user.ID, false, 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, "render failed", items[0].Message)
	assert.Equal(t, "report.failed", items[0].Event)
	require.NotNil(t, items[0].ReportID)
	assert.Equal(t, uint(42), *items[0].ReportID)
	assert.False(t, items[0].IsRead)

	require.Len(t, pusher.sent[user.ID], 1)
	msg := pusher.sent[user.ID][0]
	assert.Equal(t, items[0].ID, msg.ID)
	assert.Equal(t, EventReportFailed, msg.Event)
}

func TestInboxNotifier_PushFailureKeepsRow(t *testing.T) {
	s, cleanup := store.SetupTestDB(t)
	defer cleanup()

	user := store.CreateTestUser(t, s)
	n := NewInboxNotifier(s, &recordingPusher{err: errors.New("redis down")})

	ev := testEvent()
	ev.UserID = user.ID
	require.Error(t, n.Send(context.Background(), ev))

	count, err := s.Notification().CountUnread(user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestInboxNotifier_WithoutPusher(t *testing.T) {
	s, cleanup := store.SetupTestDB(t)
	defer cleanup()

	user := store.CreateTestUser(t, s)
	ev := testEvent()
	ev.UserID = user.ID
	ev.ReportID = 0

	require.NoError(t, NewInboxNotifier(s, nil).Send(context.Background(), ev))

	items, _, err := s.Notification().ListByUser(user.ID, true, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].ReportID)
}

func TestPushNotifier(t *testing.T) {
	pusher := &recordingPusher{}
	require.NoError(t, NewPushNotifier(pusher).Send(context.Background(), testEvent()))

	require.Len(t, pusher.sent[3], 1)
	assert.Zero(t, pusher.sent[3][0].ID)
	assert.Equal(t, uint(42), pusher.sent[3][0].ReportID)
}
