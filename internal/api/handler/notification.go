package handler

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/verustcode/stagereport/internal/notification"
	"github.com/verustcode/stagereport/internal/store"
	"github.com/verustcode/stagereport/pkg/errors"
	"github.com/verustcode/stagereport/pkg/logger"
)

// NotificationHandler serves the user inbox and the live push socket
type NotificationHandler struct {
	store store.Store
	// hub is nil when live push is disabled
	hub *notification.Hub
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(s store.Store, hub *notification.Hub) *NotificationHandler {
	return &NotificationHandler{
		store: s,
		hub:   hub,
	}
}

// ListNotifications handles GET /api/v1/notifications
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	limit, offset, page := pagination(c)
	unreadOnly := c.Query("unread") == "true"

	notifications := h.store.WithContext(c.Request.Context()).Notification()
	items, total, err := notifications.ListByUser(userID, unreadOnly, limit, offset)
	if err != nil {
		abortWithError(c, errors.Wrap(errors.ErrCodeDBQuery, "failed to list notifications", err))
		return
	}
	unread, err := notifications.CountUnread(userID)
	if err != nil {
		abortWithError(c, errors.Wrap(errors.ErrCodeDBQuery, "failed to count notifications", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      items,
		"total":     total,
		"unread":    unread,
		"page":      page,
		"page_size": limit,
	})
}

// MarkRead handles POST /api/v1/notifications/:id/read.
// Notifications of other users look missing.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	err := h.store.WithContext(c.Request.Context()).Notification().MarkRead(id, userID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			abortWithError(c, errors.ErrNotFound(fmt.Sprintf("notification %d", id)))
			return
		}
		abortWithError(c, errors.Wrap(errors.ErrCodeDBQuery, "failed to mark notification read", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "is_read": true})
}

// Subscribe handles GET /api/v1/ws and upgrades to a push connection
func (h *NotificationHandler) Subscribe(c *gin.Context) {
	if h.hub == nil {
		abortWithError(c, errors.ErrNotFound("push channel"))
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	// the upgrader already answered the client when this fails
	if err := h.hub.ServeWS(c.Writer, c.Request, userID); err != nil {
		logger.Debug("WebSocket upgrade failed",
			zap.Uint(logger.FieldUserID, userID),
			zap.Error(err),
		)
	}
}
