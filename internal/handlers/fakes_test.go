package handlers

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/anonto42/eyewitness/backend/internal/models"
	"github.com/anonto42/eyewitness/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
	order []string
}

func newMemUsers(users ...models.User) *memUsers {
	m := &memUsers{users: map[string]*models.User{}}
	for i := range users {
		_ = m.CreateUser(context.Background(), &users[i])
	}
	return m
}

func (m *memUsers) EnsureUser(_ context.Context, u *models.User) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; ok {
		return false, nil
	}
	cp := *u
	m.users[u.ID] = &cp
	m.order = append(m.order, u.ID)
	return true, nil
}

func (m *memUsers) CreateUser(ctx context.Context, u *models.User) error {
	created, _ := m.EnsureUser(ctx, u)
	if !created {
		return repositories.ErrAlreadyExists
	}
	return nil
}

func (m *memUsers) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		if strings.EqualFold(m.users[id].Email, email) {
			cp := *m.users[id]
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memUsers) UpdateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return repositories.ErrNotFound
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) SetNotificationCount(_ context.Context, id string, count int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	u.NotificationCount = count
	return nil
}

func (m *memUsers) ListDirectory(context.Context) ([]models.DirectoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.DirectoryEntry
	for _, id := range m.order {
		if u := m.users[id]; u.DisplayName != "" {
			out = append(out, u.ToDirectoryEntry())
		}
	}
	return out, nil
}

func (m *memUsers) SearchUsers(_ context.Context, query string, limit int) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := strings.ToLower(query)
	var out []models.User
	for _, id := range m.order {
		u := m.users[id]
		if strings.Contains(strings.ToLower(u.DisplayName), q) || strings.Contains(strings.ToLower(u.Email), q) {
			out = append(out, *u)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memUsers) AliasInUse(_ context.Context, alias, excludeID string, withNames bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if id == excludeID {
			continue
		}
		if strings.EqualFold(u.Nickname, alias) || (withNames && strings.EqualFold(u.DisplayName, alias)) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) FindTagSubscribers(context.Context, []string) ([]models.User, error) {
	return nil, nil
}

func (m *memUsers) count(id string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u.NotificationCount
	}
	return -1
}

type memNotifications struct {
	mu    sync.Mutex
	items []models.Notification
	seq   int
}

func (m *memNotifications) CreateNotification(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	n.ID = "n" + strconv.Itoa(m.seq)
	m.items = append(m.items, *n)
	return nil
}

func (m *memNotifications) CountUnread(_ context.Context, rid string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c int64
	for _, n := range m.items {
		if n.RecipientID == rid && !n.Read {
			c++
		}
	}
	return c, nil
}

func (m *memNotifications) HasDedupKey(_ context.Context, rid, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.items {
		if n.RecipientID == rid && n.DedupKey == key {
			return true, nil
		}
	}
	return false, nil
}

func (m *memNotifications) UpdatePostNotification(_ context.Context, from string, n *models.Notification) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		it := &m.items[i]
		if it.RecipientID == n.RecipientID && it.PostID == n.PostID && it.Type == from {
			it.Type, it.Message, it.RejectionReason = n.Type, n.Message, n.RejectionReason
			n.ID, n.Read, n.Timestamp = it.ID, it.Read, it.Timestamp
			return true, nil
		}
	}
	return false, nil
}

func (m *memNotifications) ListNotifications(_ context.Context, rid string, page, limit int) ([]models.Notification, int64, error) {
	all := m.inbox(rid)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp.After(all[j].Timestamp) })
	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

func (m *memNotifications) GroupNotifications(_ context.Context, rid string, _ time.Time) (*models.NotificationGroups, error) {
	return &models.NotificationGroups{Today: m.inbox(rid)}, nil
}

func (m *memNotifications) GetNotification(_ context.Context, rid, id string) (*models.Notification, error) {
	for _, n := range m.inbox(rid) {
		if n.ID == id {
			return &n, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memNotifications) MarkAsRead(_ context.Context, rid, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].RecipientID == rid && m.items[i].ID == id {
			m.items[i].Read = true
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (m *memNotifications) MarkAllAsRead(_ context.Context, rid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].RecipientID == rid {
			m.items[i].Read = true
		}
	}
	return nil
}

func (m *memNotifications) DeleteNotification(_ context.Context, rid, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].RecipientID == rid && m.items[i].ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (m *memNotifications) DeleteAllNotifications(_ context.Context, rid string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.items[:0]
	var n int64
	for _, it := range m.items {
		if it.RecipientID == rid {
			n++
			continue
		}
		kept = append(kept, it)
	}
	m.items = kept
	return n, nil
}

func (m *memNotifications) inbox(rid string) []models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Notification
	for _, n := range m.items {
		if n.RecipientID == rid {
			out = append(out, n)
		}
	}
	return out
}

// kinds lists the notification types a recipient holds, in write order.
func (m *memNotifications) kinds(rid string) []string {
	var out []string
	for _, n := range m.inbox(rid) {
		out = append(out, n.Type)
	}
	return out
}

type memPosts struct {
	mu    sync.Mutex
	posts map[string]*models.Post
}

func newMemPosts(posts ...*models.Post) *memPosts {
	m := &memPosts{posts: map[string]*models.Post{}}
	for _, p := range posts {
		if p.ID.IsZero() {
			p.ID = primitive.NewObjectID()
		}
		m.posts[p.ID.Hex()] = p
	}
	return m
}

func (m *memPosts) CreatePost(_ context.Context, p *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = primitive.NewObjectID()
	cp := *p
	m.posts[p.ID.Hex()] = &cp
	return nil
}

func (m *memPosts) GetPostByID(_ context.Context, id string) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *p
	cp.EyewitnessedBy = append([]string(nil), p.EyewitnessedBy...)
	return &cp, nil
}

func (m *memPosts) GetPostsByCreator(_ context.Context, creatorID string, _, _ int64) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Post
	for _, p := range m.posts {
		if p.CreatorID == creatorID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memPosts) GetNearbyPosts(context.Context, float64, float64, float64, int64, time.Time) ([]models.Post, error) {
	return nil, nil
}

func (m *memPosts) DeletePost(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.posts, id)
	return nil
}

func (m *memPosts) IncrementLikes(_ context.Context, id string, delta int) error {
	return m.update(id, func(p *models.Post) { p.Likes += delta })
}

func (m *memPosts) IncrementCommentCount(_ context.Context, id string, delta int) error {
	return m.update(id, func(p *models.Post) { p.CommentCount += delta })
}

func (m *memPosts) AddEyewitness(_ context.Context, id, uid string) (bool, error) {
	changed := false
	err := m.update(id, func(p *models.Post) {
		if !models.Has(p.EyewitnessedBy, uid) {
			p.EyewitnessedBy = append(p.EyewitnessedBy, uid)
			p.Eyewitnesses++
			changed = true
		}
	})
	return changed, err
}

func (m *memPosts) RemoveEyewitness(_ context.Context, id, uid string) (bool, error) {
	changed := false
	err := m.update(id, func(p *models.Post) {
		for i, v := range p.EyewitnessedBy {
			if v == uid {
				p.EyewitnessedBy = append(p.EyewitnessedBy[:i], p.EyewitnessedBy[i+1:]...)
				p.Eyewitnesses--
				changed = true
				return
			}
		}
	})
	return changed, err
}

func (m *memPosts) SetVerification(_ context.Context, id, status, reason string) error {
	return m.update(id, func(p *models.Post) {
		p.VerificationStatus = status
		p.RejectionReason = reason
		p.IsVisible = status == models.VerificationApproved
	})
}

func (m *memPosts) WatchVerification(ctx context.Context, _ func(models.Post)) error {
	<-ctx.Done()
	return nil
}

func (m *memPosts) update(id string, fn func(*models.Post)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	fn(p)
	return nil
}

func (m *memPosts) only() *models.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.posts {
		cp := *p
		return &cp
	}
	return nil
}

type memComments struct {
	mu       sync.Mutex
	comments []models.Comment
	likes    map[string]bool
}

func newMemComments() *memComments {
	return &memComments{likes: map[string]bool{}}
}

func (m *memComments) CreateComment(_ context.Context, c *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = uint(len(m.comments) + 1)
	c.CreatedAt = time.Now()
	m.comments = append(m.comments, *c)
	return nil
}

func (m *memComments) GetCommentByID(_ context.Context, id uint) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.comments {
		if c.ID == id {
			cp := c
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memComments) GetThread(_ context.Context, postID string) ([]models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []models.Comment
	for _, c := range m.comments {
		if c.PostID == postID {
			all = append(all, c)
		}
	}
	return repositories.Thread(all), nil
}

func (m *memComments) IncrementLikes(_ context.Context, id uint, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.comments {
		if m.comments[i].ID == id {
			m.comments[i].Likes += delta
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (m *memComments) DeleteComment(_ context.Context, id uint) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.comments[:0]
	var n int64
	for _, c := range m.comments {
		if c.ID == id || (c.ParentID != nil && *c.ParentID == id) {
			n++
			continue
		}
		kept = append(kept, c)
	}
	m.comments = kept
	return n, nil
}

func likeKey(id uint, uid string) string { return strconv.FormatUint(uint64(id), 10) + "/" + uid }

func (m *memComments) CreateCommentLike(_ context.Context, l *models.CommentLike) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.likes[likeKey(l.CommentID, l.UserID)] {
		return repositories.ErrAlreadyExists
	}
	m.likes[likeKey(l.CommentID, l.UserID)] = true
	return nil
}

func (m *memComments) DeleteCommentLike(_ context.Context, id uint, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.likes[likeKey(id, uid)] {
		return repositories.ErrNotFound
	}
	delete(m.likes, likeKey(id, uid))
	return nil
}

func (m *memComments) HasUserLikedComment(_ context.Context, id uint, uid string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.likes[likeKey(id, uid)], nil
}

type memLikes struct {
	mu    sync.Mutex
	likes map[string]bool
}

func newMemLikes() *memLikes { return &memLikes{likes: map[string]bool{}} }

func (m *memLikes) CreateLike(_ context.Context, l *models.Like) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := l.PostID + "/" + l.UserID
	if m.likes[k] {
		return repositories.ErrAlreadyExists
	}
	m.likes[k] = true
	return nil
}

func (m *memLikes) DeleteLike(_ context.Context, postID, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := postID + "/" + uid
	if !m.likes[k] {
		return repositories.ErrNotFound
	}
	delete(m.likes, k)
	return nil
}

func (m *memLikes) HasUserLikedPost(_ context.Context, postID, uid string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.likes[postID+"/"+uid], nil
}

func (m *memLikes) GetLikesCountByPostID(_ context.Context, postID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.likes {
		if strings.HasPrefix(k, postID+"/") {
			n++
		}
	}
	return n, nil
}
