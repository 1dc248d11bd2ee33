package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/anonto42/eyewitness/backend/internal/models"
	"go.uber.org/zap"
)

// InboxStore is the read and delete side of the notification store.
type InboxStore interface {
	Notifications
	ListNotifications(ctx context.Context, recipientID string, page, limit int) ([]models.Notification, int64, error)
	GroupNotifications(ctx context.Context, recipientID string, now time.Time) (*models.NotificationGroups, error)
	GetNotification(ctx context.Context, recipientID, id string) (*models.Notification, error)
	MarkAsRead(ctx context.Context, recipientID, id string) error
	MarkAllAsRead(ctx context.Context, recipientID string) error
	DeleteNotification(ctx context.Context, recipientID, id string) error
	DeleteAllNotifications(ctx context.Context, recipientID string) (int64, error)
}

// Inbox serves a user's own notifications and recomputes the unread counter
// after every change.
type Inbox struct {
	store    InboxStore
	profiles Profiles
	logger   *zap.Logger
	now      func() time.Time
}

// NewInbox creates an Inbox.
func NewInbox(store InboxStore, profiles Profiles, logger *zap.Logger) *Inbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inbox{store: store, profiles: profiles, logger: logger, now: time.Now}
}

// List returns one page of notifications, newest first, and the total count.
func (b *Inbox) List(ctx context.Context, userID string, page, limit int) ([]models.Notification, int64, error) {
	return b.store.ListNotifications(ctx, userID, page, limit)
}

// Grouped returns notifications bucketed by age along with the unread count.
func (b *Inbox) Grouped(ctx context.Context, userID string) (*models.NotificationGroups, int64, error) {
	groups, err := b.store.GroupNotifications(ctx, userID, b.now())
	if err != nil {
		return nil, 0, err
	}
	unread, err := b.Sync(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return groups, unread, nil
}

// UnreadCount returns the live unread count.
func (b *Inbox) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return b.store.CountUnread(ctx, userID)
}

// MarkRead flips one notification to read.
func (b *Inbox) MarkRead(ctx context.Context, userID, id string) error {
	if err := b.store.MarkAsRead(ctx, userID, id); err != nil {
		return err
	}
	b.resync(ctx, userID)
	return nil
}

// MarkAllRead flips every unread notification to read.
func (b *Inbox) MarkAllRead(ctx context.Context, userID string) error {
	if err := b.store.MarkAllAsRead(ctx, userID); err != nil {
		return err
	}
	b.resync(ctx, userID)
	return nil
}

// Delete removes one notification.
func (b *Inbox) Delete(ctx context.Context, userID, id string) error {
	if err := b.store.DeleteNotification(ctx, userID, id); err != nil {
		return err
	}
	b.resync(ctx, userID)
	return nil
}

// DeleteAll removes every notification of the user and returns how many were removed.
func (b *Inbox) DeleteAll(ctx context.Context, userID string) (int64, error) {
	n, err := b.store.DeleteAllNotifications(ctx, userID)
	if err != nil {
		return 0, err
	}
	b.resync(ctx, userID)
	return n, nil
}

// Open consumes a notification: it is marked read, then deleted, and the post
// it points to is returned.
func (b *Inbox) Open(ctx context.Context, userID, id string) (string, error) {
	n, err := b.store.GetNotification(ctx, userID, id)
	if err != nil {
		return "", err
	}
	if !n.Read {
		if err := b.store.MarkAsRead(ctx, userID, id); err != nil {
			return "", err
		}
	}
	if err := b.store.DeleteNotification(ctx, userID, id); err != nil {
		return "", err
	}
	b.resync(ctx, userID)
	return n.PostID, nil
}

// Sync recomputes the unread counter from the stored notifications.
func (b *Inbox) Sync(ctx context.Context, userID string) (int64, error) {
	count, err := b.store.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	if err := b.profiles.SetNotificationCount(ctx, userID, count); err != nil {
		return 0, fmt.Errorf("update notification count: %w", err)
	}
	return count, nil
}

func (b *Inbox) resync(ctx context.Context, userID string) {
	if _, err := b.Sync(ctx, userID); err != nil {
		b.logger.Warn("notification counter not refreshed", zap.String("user_id", userID), zap.Error(err))
	}
}
