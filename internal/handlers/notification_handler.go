package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"github.com/anonto42/eyewitness/backend/internal/models"
	"github.com/anonto42/eyewitness/backend/internal/notify"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// NotificationStream delivers a user's notifications as they are written.
type NotificationStream interface {
	Subscribe(ctx context.Context, userID string, handler func(models.Notification)) error
}

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	inbox  *notify.Inbox
	stream NotificationStream
	logger *zap.Logger
}

// NewNotificationHandler creates a new NotificationHandler. stream may be nil,
// which disables the live stream.
func NewNotificationHandler(inbox *notify.Inbox, stream NotificationStream, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{inbox: inbox, stream: stream, logger: logger}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/grouped", h.GetGroupedNotifications)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.GET("/notifications/stream", h.Stream)
	g.PUT("/notifications/read-all", h.MarkAllAsRead)
	g.PUT("/notifications/:id/read", h.MarkAsRead)
	g.POST("/notifications/:id/open", h.Open)
	g.DELETE("/notifications/:id", h.Delete)
	g.DELETE("/notifications", h.DeleteAll)
}

// GetNotifications returns paginated notifications
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	page, limit := pagination(c)

	notifications, total, err := h.inbox.List(c.Request().Context(), uid, page, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"notifications": notifications,
		},
		"meta": echo.Map{
			"currentPage":     page,
			"totalPages":      totalPages,
			"totalItems":      total,
			"itemsPerPage":    limit,
			"hasNextPage":     page < totalPages,
			"hasPreviousPage": page > 1,
		},
	})
}

// GetGroupedNotifications returns notifications grouped by time period
func (h *NotificationHandler) GetGroupedNotifications(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}

	groups, unread, err := h.inbox.Grouped(c.Request().Context(), uid)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"notifications": groups,
			"unreadCount":   unread,
		},
	})
}

// GetUnreadCount returns the number of unread notifications
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}

	count, err := h.inbox.UnreadCount(c.Request().Context(), uid)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"unreadCount": count}})
}

// MarkAsRead marks a single notification as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	if err := h.inbox.MarkRead(c.Request().Context(), uid, c.Param("id")); err != nil {
		return storeError(err, "Notification not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Notification marked as read"})
}

// MarkAllAsRead marks all notifications as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	if err := h.inbox.MarkAllRead(c.Request().Context(), uid); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "All notifications marked as read"})
}

// Open consumes a notification and returns the post it points to
func (h *NotificationHandler) Open(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	postID, err := h.inbox.Open(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return storeError(err, "Notification not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"postId": postID}})
}

// Delete removes a single notification
func (h *NotificationHandler) Delete(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	if err := h.inbox.Delete(c.Request().Context(), uid, c.Param("id")); err != nil {
		return storeError(err, "Notification not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteAll clears the caller's inbox
func (h *NotificationHandler) DeleteAll(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	n, err := h.inbox.DeleteAll(c.Request().Context(), uid)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"deleted": n}})
}

// Stream pushes new notifications as server-sent events until the client leaves.
func (h *NotificationHandler) Stream(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	if h.stream == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Live notifications are not configured")
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	err = h.stream.Subscribe(c.Request().Context(), uid, func(n models.Notification) {
		data, err := json.Marshal(n)
		if err != nil {
			return
		}
		if _, err := fmt.Fprintf(w, "id: %s\nevent: notification\ndata: %s\n\n", n.ID, data); err != nil {
			return
		}
		w.Flush()
	})
	if err != nil {
		h.logger.Warn("notification stream ended", zap.String("user_id", uid), zap.Error(err))
	}
	return nil
}
