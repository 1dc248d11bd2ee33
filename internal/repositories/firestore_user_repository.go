package repositories

import (
	"context"
	"sort"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/anonto42/eyewitness/backend/internal/models"
)

const usersCollection = "users"

// FirestoreUserRepository implements UserRepository on the users collection,
// keyed by the identity uid.
type FirestoreUserRepository struct {
	client *firestore.Client
}

// NewFirestoreUserRepository creates a new FirestoreUserRepository
func NewFirestoreUserRepository(client *firestore.Client) *FirestoreUserRepository {
	return &FirestoreUserRepository{client: client}
}

func (r *FirestoreUserRepository) users() *firestore.CollectionRef {
	return r.client.Collection(usersCollection)
}

func (r *FirestoreUserRepository) EnsureUser(ctx context.Context, user *models.User) (bool, error) {
	_, err := r.users().Doc(user.ID).Create(ctx, user)
	switch err := firestoreErr(err); err {
	case nil:
		return true, nil
	case ErrAlreadyExists:
		return false, nil
	default:
		return false, err
	}
}

func (r *FirestoreUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	_, err := r.users().Doc(user.ID).Create(ctx, user)
	return firestoreErr(err)
}

func (r *FirestoreUserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	snap, err := r.users().Doc(id).Get(ctx)
	if err != nil {
		return nil, firestoreErr(err)
	}
	return userFromSnapshot(snap)
}

func (r *FirestoreUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	snaps, err := r.users().Where("email", "==", strings.ToLower(email)).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, ErrNotFound
	}
	return userFromSnapshot(snaps[0])
}

func (r *FirestoreUserRepository) UpdateUser(ctx context.Context, user *models.User) error {
	_, err := r.users().Doc(user.ID).Set(ctx, user)
	return err
}

func (r *FirestoreUserRepository) SetNotificationCount(ctx context.Context, userID string, count int64) error {
	_, err := r.users().Doc(userID).Update(ctx, []firestore.Update{
		{Path: "notificationCount", Value: count},
	})
	return firestoreErr(err)
}

func (r *FirestoreUserRepository) ListDirectory(ctx context.Context) ([]models.DirectoryEntry, error) {
	snaps, err := r.users().Select("displayName", "nickname", "photoURL").Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	entries := make([]models.DirectoryEntry, 0, len(snaps))
	for _, s := range snaps {
		u, err := userFromSnapshot(s)
		if err != nil {
			return nil, err
		}
		if u.DisplayName == "" {
			continue
		}
		entries = append(entries, u.ToDirectoryEntry())
	}
	return entries, nil
}

// SearchUsers scans the collection; Firestore has no substring index.
func (r *FirestoreUserRepository) SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error) {
	snaps, err := r.users().Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var users []models.User
	for _, s := range snaps {
		u, err := userFromSnapshot(s)
		if err != nil {
			return nil, err
		}
		if strings.Contains(strings.ToLower(u.DisplayName), q) ||
			strings.Contains(strings.ToLower(u.Nickname), q) ||
			strings.Contains(strings.ToLower(u.Email), q) {
			users = append(users, *u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].DisplayName < users[j].DisplayName })
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (r *FirestoreUserRepository) FindTagSubscribers(ctx context.Context, tags []string) ([]models.User, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	lower := make([]string, len(tags))
	for i, t := range tags {
		lower[i] = strings.ToLower(t)
	}
	// interests are stored lower-cased by the profile handler
	snaps, err := r.users().Where("interests", "array-contains-any", lower).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	var users []models.User
	for _, s := range snaps {
		u, err := userFromSnapshot(s)
		if err != nil {
			return nil, err
		}
		if u.HasLocation() {
			users = append(users, *u)
		}
	}
	return users, nil
}

// AliasInUse scans names; Firestore equality filters are case-sensitive.
func (r *FirestoreUserRepository) AliasInUse(ctx context.Context, alias, excludeID string, withNames bool) (bool, error) {
	if alias == "" {
		return false, nil
	}
	snaps, err := r.users().Select("displayName", "nickname").Documents(ctx).GetAll()
	if err != nil {
		return false, err
	}
	for _, s := range snaps {
		if s.Ref.ID == excludeID {
			continue
		}
		u, err := userFromSnapshot(s)
		if err != nil {
			return false, err
		}
		if strings.EqualFold(u.Nickname, alias) || (withNames && strings.EqualFold(u.DisplayName, alias)) {
			return true, nil
		}
	}
	return false, nil
}

func userFromSnapshot(snap *firestore.DocumentSnapshot) (*models.User, error) {
	var u models.User
	if err := snap.DataTo(&u); err != nil {
		return nil, err
	}
	u.ID = snap.Ref.ID
	return &u, nil
}
