package repositories

import (
	"context"
	"strings"

	"github.com/anonto42/eyewitness/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository defines the interface for profile data operations
type UserRepository interface {
	// EnsureUser creates the profile unless one with the same ID exists.
	EnsureUser(ctx context.Context, user *models.User) (bool, error)
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	SetNotificationCount(ctx context.Context, userID string, count int64) error
	ListDirectory(ctx context.Context) ([]models.DirectoryEntry, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error)
	// FindTagSubscribers returns located users interested in any of tags.
	FindTagSubscribers(ctx context.Context, tags []string) ([]models.User, error)
	// AliasInUse reports whether a user other than excludeID has alias as
	// nickname, ignoring case. withNames also checks display names.
	AliasInUse(ctx context.Context, alias, excludeID string, withNames bool) (bool, error)
}

// PostgresUserRepository implements UserRepository for PostgreSQL
type PostgresUserRepository struct {
	db *gorm.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository
func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// EnsureIndexes makes nicknames unique regardless of case.
func (r *PostgresUserRepository) EnsureIndexes(ctx context.Context) error {
	return r.db.WithContext(ctx).Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_users_nickname_lower ON users (LOWER(nickname)) WHERE nickname <> ''",
	).Error
}

func (r *PostgresUserRepository) EnsureUser(ctx context.Context, user *models.User) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(user)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *PostgresUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	return gormErr(r.db.WithContext(ctx).Create(user).Error)
}

func (r *PostgresUserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, gormErr(err)
	}
	return &user, nil
}

func (r *PostgresUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&user).Error; err != nil {
		return nil, gormErr(err)
	}
	return &user, nil
}

// UpdateUser returns ErrAlreadyExists when the nickname is taken.
func (r *PostgresUserRepository) UpdateUser(ctx context.Context, user *models.User) error {
	return gormErr(r.db.WithContext(ctx).Save(user).Error)
}

func (r *PostgresUserRepository) AliasInUse(ctx context.Context, alias, excludeID string, withNames bool) (bool, error) {
	if alias == "" {
		return false, nil
	}
	q := r.db.WithContext(ctx).Model(&models.User{}).Where("id <> ?", excludeID)
	if withNames {
		q = q.Where("(LOWER(nickname) = LOWER(?) OR LOWER(display_name) = LOWER(?))", alias, alias)
	} else {
		q = q.Where("LOWER(nickname) = LOWER(?)", alias)
	}
	var count int64
	if err := q.Limit(1).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PostgresUserRepository) SetNotificationCount(ctx context.Context, userID string, count int64) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("notification_count", count)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepository) ListDirectory(ctx context.Context) ([]models.DirectoryEntry, error) {
	var entries []models.DirectoryEntry
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Select("id", "display_name", "nickname", "photo_url").
		Where("display_name <> ''").
		Order("created_at ASC").
		Scan(&entries).Error
	return entries, err
}

// SearchUsers searches for users by display name, nickname or email
func (r *PostgresUserRepository) SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error) {
	var users []models.User
	like := "%" + strings.ToLower(query) + "%"
	err := r.db.WithContext(ctx).
		Where("LOWER(display_name) LIKE ? OR LOWER(nickname) LIKE ? OR LOWER(email) LIKE ?", like, like, like).
		Order("display_name ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}

func (r *PostgresUserRepository) FindTagSubscribers(ctx context.Context, tags []string) ([]models.User, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	var located []models.User
	err := r.db.WithContext(ctx).
		Where("latitude IS NOT NULL AND longitude IS NOT NULL AND interests <> '[]'").
		Find(&located).Error
	if err != nil {
		return nil, err
	}
	out := located[:0]
	for _, u := range located {
		if len(MatchTags(u.Interests, tags)) > 0 {
			out = append(out, u)
		}
	}
	return out, nil
}

// MatchTags returns the tags of a post a user subscribed to, compared case-insensitively.
func MatchTags(interests, tags []string) []string {
	var matched []string
	for _, t := range tags {
		for _, i := range interests {
			if strings.EqualFold(t, i) {
				matched = append(matched, t)
				break
			}
		}
	}
	return matched
}
