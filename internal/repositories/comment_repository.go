package repositories

import (
	"context"

	"github.com/anonto42/eyewitness/backend/internal/models"
	"gorm.io/gorm"
)

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	CreateComment(ctx context.Context, comment *models.Comment) error
	GetCommentByID(ctx context.Context, id uint) (*models.Comment, error)
	// GetThread returns the top-level comments of a post, oldest first, with their replies attached.
	GetThread(ctx context.Context, postID string) ([]models.Comment, error)
	IncrementLikes(ctx context.Context, id uint, delta int) error
	// DeleteComment removes a comment and its replies and returns how many rows went.
	DeleteComment(ctx context.Context, id uint) (int64, error)
}

// PostgresCommentRepository implements CommentRepository for PostgreSQL
type PostgresCommentRepository struct {
	db *gorm.DB
}

// NewPostgresCommentRepository creates a new PostgresCommentRepository
func NewPostgresCommentRepository(db *gorm.DB) *PostgresCommentRepository {
	return &PostgresCommentRepository{db: db}
}

func (r *PostgresCommentRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *PostgresCommentRepository) GetCommentByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return nil, gormErr(err)
	}
	return &comment, nil
}

func (r *PostgresCommentRepository) GetThread(ctx context.Context, postID string) ([]models.Comment, error) {
	var all []models.Comment
	if err := r.db.WithContext(ctx).Where("post_id = ?", postID).Order("created_at ASC, id ASC").Find(&all).Error; err != nil {
		return nil, err
	}
	return Thread(all), nil
}

// Thread nests replies under their parents. Replies whose parent is missing are dropped.
func Thread(all []models.Comment) []models.Comment {
	replies := make(map[uint][]models.Comment)
	for _, c := range all {
		if c.ParentID != nil {
			replies[*c.ParentID] = append(replies[*c.ParentID], c)
		}
	}
	top := []models.Comment{}
	for _, c := range all {
		if c.ParentID == nil {
			c.Replies = replies[c.ID]
			top = append(top, c)
		}
	}
	return top
}

func (r *PostgresCommentRepository) IncrementLikes(ctx context.Context, id uint, delta int) error {
	res := r.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).
		UpdateColumn("likes", gorm.Expr("GREATEST(likes + ?, 0)", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresCommentRepository) DeleteComment(ctx context.Context, id uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ? OR parent_id = ?", id, id).Delete(&models.Comment{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrNotFound
	}
	return res.RowsAffected, nil
}
