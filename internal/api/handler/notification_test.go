package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verustcode/stagereport/internal/model"
	"github.com/verustcode/stagereport/internal/store"
)

func TestNotificationHandler_ListAndMarkRead(t *testing.T) {
	s, cleanup := store.SetupTestDB(t)
	defer cleanup()

	owner := store.CreateTestUser(t, s)
	other := store.CreateTestUser(t, s, func(u *model.User) { u.Username = "other" })
	for _, msg := range []string{"queued", "ready"} {
		require.NoError(t, s.Notification().Create(&model.Notification{UserID: owner.ID, Message: msg}))
	}
	foreign := &model.Notification{UserID: other.ID, Message: "not yours"}
	require.NoError(t, s.Notification().Create(foreign))

	h := NewNotificationHandler(s, nil)
	r := WithUser(SetupTestRouter(), owner.ID)
	r.GET("/api/v1/notifications", h.ListNotifications)
	r.POST("/api/v1/notifications/:id/read", h.MarkRead)
	r.GET("/api/v1/ws", h.Subscribe)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, CreateTestRequest("GET", "/api/v1/notifications", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data   []model.Notification `json:"data"`
		Total  int64                `json:"total"`
		Unread int64                `json:"unread"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 2, resp.Total)
	assert.EqualValues(t, 2, resp.Unread)
	require.Len(t, resp.Data, 2)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, CreateTestRequest("POST", "/api/v1/notifications/"+itoa(resp.Data[0].ID)+"/read", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	unread, err := s.Notification().CountUnread(owner.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, CreateTestRequest("POST", "/api/v1/notifications/"+itoa(foreign.ID)+"/read", nil))
	AssertErrorResponse(t, w, http.StatusNotFound)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, CreateTestRequest("GET", "/api/v1/ws", nil))
	AssertErrorResponse(t, w, http.StatusNotFound)
}

func TestNotificationHandler_RequiresUser(t *testing.T) {
	s, cleanup := store.SetupTestDB(t)
	defer cleanup()

	h := NewNotificationHandler(s, nil)
	r := SetupTestRouter()
	r.GET("/api/v1/notifications", h.ListNotifications)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, CreateTestRequest("GET", "/api/v1/notifications", nil))
	AssertErrorResponse(t, w, http.StatusUnauthorized)
}
