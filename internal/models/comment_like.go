package models

import "time"

// CommentLike represents a like on a comment or reply
type CommentLike struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CommentID uint      `json:"commentId" gorm:"index;uniqueIndex:idx_comment_user_like"`
	UserID    string    `json:"userId" gorm:"size:128;index;uniqueIndex:idx_comment_user_like"`
	CreatedAt time.Time `json:"createdAt"`
}
