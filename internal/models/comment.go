package models

import "time"

// Comment is a comment on a post; replies carry the ID of their parent comment.
type Comment struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	PostID     string    `json:"postId" gorm:"size:64;index"`
	ParentID   *uint     `json:"parentId,omitempty" gorm:"index"`
	SenderID   string    `json:"senderId" gorm:"size:128;index"`
	Username   string    `json:"username"`
	UserAvatar string    `json:"userAvatar,omitempty"`
	Text       string    `json:"text"`
	Likes      int       `json:"likes" gorm:"default:0"`
	CreatedAt  time.Time `json:"timestamp"`
	Replies    []Comment `json:"replies,omitempty" gorm:"-"`
}

// IsReply reports whether the comment answers another comment.
func (c *Comment) IsReply() bool {
	return c.ParentID != nil
}

// CreateCommentRequest defines the request body for creating a comment or a reply
type CreateCommentRequest struct {
	Text string `json:"text" validate:"required,min=1,max=500"`
}
