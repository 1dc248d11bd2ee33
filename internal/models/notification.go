package models

import "time"

// Notification is one alert in a recipient's inbox.
type Notification struct {
	ID                   string    `json:"id" gorm:"primaryKey;size:64" firestore:"-"`
	RecipientID          string    `json:"recipientId" gorm:"size:128;index:idx_notification_recipient_read" firestore:"-"`
	Type                 string    `json:"type" gorm:"size:30;index" firestore:"type"`
	TriggeringUserID     string    `json:"triggeringUserId,omitempty" gorm:"size:128" firestore:"triggeringUserId,omitempty"`
	TriggeringUserName   string    `json:"triggeringUserName,omitempty" firestore:"triggeringUserName,omitempty"`
	TriggeringUserAvatar string    `json:"triggeringUserAvatar,omitempty" firestore:"triggeringUserAvatar,omitempty"`
	PostID               string    `json:"postId,omitempty" gorm:"size:64" firestore:"postId,omitempty"`
	PostTitle            string    `json:"postTitle,omitempty" firestore:"postTitle,omitempty"`
	PostImage            string    `json:"postImage,omitempty" firestore:"postImage,omitempty"`
	CommentID            string    `json:"commentId,omitempty" firestore:"commentId,omitempty"`
	Message              string    `json:"message" firestore:"message"`
	MatchedTags          Tags      `json:"matchedTags,omitempty" gorm:"type:text" firestore:"matchedTags,omitempty"`
	DistanceKm           float64   `json:"distance,omitempty" firestore:"distance,omitempty"`
	RejectionReason      string    `json:"rejectionReason,omitempty" firestore:"rejectionReason,omitempty"`
	DedupKey             string    `json:"-" gorm:"size:64;index" firestore:"dedupKey,omitempty"`
	Read                 bool      `json:"read" gorm:"column:is_read;default:false;index:idx_notification_recipient_read" firestore:"read"`
	Timestamp            time.Time `json:"timestamp" gorm:"column:created_at;index" firestore:"timestamp"`
}

// NotificationGroups buckets an inbox by age for the grouped view.
type NotificationGroups struct {
	Today     []Notification `json:"today"`
	Yesterday []Notification `json:"yesterday"`
	ThisWeek  []Notification `json:"thisWeek"`
	Older     []Notification `json:"older"`
}
