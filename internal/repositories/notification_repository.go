package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/anonto42/eyewitness/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationRepository defines the interface for notification operations.
// Every operation is scoped to the recipient that owns the notification.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	CountUnread(ctx context.Context, recipientID string) (int64, error)
	HasDedupKey(ctx context.Context, recipientID, key string) (bool, error)
	UpdatePostNotification(ctx context.Context, from string, n *models.Notification) (bool, error)
	ListNotifications(ctx context.Context, recipientID string, page, limit int) ([]models.Notification, int64, error)
	GroupNotifications(ctx context.Context, recipientID string, now time.Time) (*models.NotificationGroups, error)
	GetNotification(ctx context.Context, recipientID, id string) (*models.Notification, error)
	MarkAsRead(ctx context.Context, recipientID, id string) error
	MarkAllAsRead(ctx context.Context, recipientID string) error
	DeleteNotification(ctx context.Context, recipientID, id string) error
	DeleteAllNotifications(ctx context.Context, recipientID string) (int64, error)
}

// olderLimit caps the "older" bucket of the grouped view.
const olderLimit = 50

type postgresNotificationRepository struct {
	db *gorm.DB
}

func NewPostgresNotificationRepository(db *gorm.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *postgresNotificationRepository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = false", recipientID).
		Count(&count).Error
	return count, err
}

func (r *postgresNotificationRepository) HasDedupKey(ctx context.Context, recipientID, key string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND dedup_key = ?", recipientID, key).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

func (r *postgresNotificationRepository) UpdatePostNotification(ctx context.Context, from string, n *models.Notification) (bool, error) {
	var existing models.Notification
	err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND post_id = ? AND type = ?", n.RecipientID, n.PostID, from).
		Order("created_at DESC").
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	err = r.db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
		"type":             n.Type,
		"message":          n.Message,
		"rejection_reason": n.RejectionReason,
	}).Error
	if err != nil {
		return false, err
	}
	n.ID = existing.ID
	n.Read = existing.Read
	n.Timestamp = existing.Timestamp
	return true, nil
}

func (r *postgresNotificationRepository) ListNotifications(ctx context.Context, recipientID string, page, limit int) ([]models.Notification, int64, error) {
	var notifications []models.Notification
	var total int64

	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Notification{}).Where("recipient_id = ?", recipientID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := db.Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&notifications).Error

	return notifications, total, err
}

func (r *postgresNotificationRepository) GroupNotifications(ctx context.Context, recipientID string, now time.Time) (*models.NotificationGroups, error) {
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterdayStart := todayStart.AddDate(0, 0, -1)
	weekStart := todayStart.AddDate(0, 0, -7)

	db := r.db.WithContext(ctx)
	groups := &models.NotificationGroups{}

	if err := db.Where("recipient_id = ? AND created_at >= ?", recipientID, todayStart).
		Order("created_at DESC").Find(&groups.Today).Error; err != nil {
		return nil, err
	}

	if err := db.Where("recipient_id = ? AND created_at >= ? AND created_at < ?", recipientID, yesterdayStart, todayStart).
		Order("created_at DESC").Find(&groups.Yesterday).Error; err != nil {
		return nil, err
	}

	// excludes today and yesterday
	if err := db.Where("recipient_id = ? AND created_at >= ? AND created_at < ?", recipientID, weekStart, yesterdayStart).
		Order("created_at DESC").Find(&groups.ThisWeek).Error; err != nil {
		return nil, err
	}

	if err := db.Where("recipient_id = ? AND created_at < ?", recipientID, weekStart).
		Order("created_at DESC").Limit(olderLimit).Find(&groups.Older).Error; err != nil {
		return nil, err
	}

	return groups, nil
}

func (r *postgresNotificationRepository) GetNotification(ctx context.Context, recipientID, id string) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.WithContext(ctx).Where("id = ? AND recipient_id = ?", id, recipientID).First(&n).Error; err != nil {
		return nil, gormErr(err)
	}
	return &n, nil
}

func (r *postgresNotificationRepository) MarkAsRead(ctx context.Context, recipientID, id string) error {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresNotificationRepository) MarkAllAsRead(ctx context.Context, recipientID string) error {
	return r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = false", recipientID).
		Update("is_read", true).Error
}

func (r *postgresNotificationRepository) DeleteNotification(ctx context.Context, recipientID, id string) error {
	res := r.db.WithContext(ctx).Where("id = ? AND recipient_id = ?", id, recipientID).Delete(&models.Notification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresNotificationRepository) DeleteAllNotifications(ctx context.Context, recipientID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("recipient_id = ?", recipientID).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
