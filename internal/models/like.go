package models

import "time"

// Like represents a like on a post
type Like struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	PostID    string    `json:"postId" gorm:"size:64;uniqueIndex:idx_post_user_like"`
	UserID    string    `json:"userId" gorm:"size:128;uniqueIndex:idx_post_user_like"`
	CreatedAt time.Time `json:"createdAt"`
}
