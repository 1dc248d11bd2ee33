package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/anonto42/eyewitness/backend/internal/models"
)

var errNotFound = errors.New("not found")

// memStore is an in-memory profile and notification store.
type memStore struct {
	mu            sync.Mutex
	seq           int
	users         map[string]*models.User
	notifications map[string][]*models.Notification

	failCreate map[string]error
	failEnsure map[string]error
	failCount  map[string]error
	failUpdate map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		users:         make(map[string]*models.User),
		notifications: make(map[string][]*models.Notification),
		failCreate:    make(map[string]error),
		failEnsure:    make(map[string]error),
		failCount:     make(map[string]error),
		failUpdate:    make(map[string]error),
	}
}

func (s *memStore) EnsureUser(_ context.Context, u *models.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failEnsure[u.ID]; err != nil {
		return false, err
	}
	if _, ok := s.users[u.ID]; ok {
		return false, nil
	}
	cp := *u
	s.users[u.ID] = &cp
	return true, nil
}

func (s *memStore) SetNotificationCount(_ context.Context, userID string, count int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return errNotFound
	}
	u.NotificationCount = count
	return nil
}

func (s *memStore) counter(userID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		return u.NotificationCount
	}
	return -1
}

func (s *memStore) inbox(userID string) []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Notification, 0, len(s.notifications[userID]))
	for _, n := range s.notifications[userID] {
		out = append(out, *n)
	}
	return out
}

func (s *memStore) CreateNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failCreate[n.RecipientID]; err != nil {
		return err
	}
	s.seq++
	n.ID = fmt.Sprintf("n%d", s.seq)
	cp := *n
	s.notifications[n.RecipientID] = append(s.notifications[n.RecipientID], &cp)
	return nil
}

func (s *memStore) CountUnread(_ context.Context, recipientID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failCount[recipientID]; err != nil {
		return 0, err
	}
	var c int64
	for _, n := range s.notifications[recipientID] {
		if !n.Read {
			c++
		}
	}
	return c, nil
}

func (s *memStore) HasDedupKey(_ context.Context, recipientID, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications[recipientID] {
		if n.DedupKey == key {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) UpdatePostNotification(_ context.Context, from string, n *models.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failUpdate[n.RecipientID]; err != nil {
		return false, err
	}
	for _, it := range s.notifications[n.RecipientID] {
		if it.PostID == n.PostID && it.Type == from {
			it.Type, it.Message, it.RejectionReason = n.Type, n.Message, n.RejectionReason
			n.ID, n.Read, n.Timestamp = it.ID, it.Read, it.Timestamp
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) ListNotifications(_ context.Context, recipientID string, page, limit int) ([]models.Notification, int64, error) {
	all := s.inbox(recipientID)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp.After(all[j].Timestamp) })
	start := (page - 1) * limit
	if start >= len(all) {
		return []models.Notification{}, int64(len(all)), nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

func (s *memStore) GroupNotifications(_ context.Context, recipientID string, now time.Time) (*models.NotificationGroups, error) {
	groups := &models.NotificationGroups{}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for _, n := range s.inbox(recipientID) {
		switch {
		case !n.Timestamp.Before(today):
			groups.Today = append(groups.Today, n)
		case !n.Timestamp.Before(today.AddDate(0, 0, -1)):
			groups.Yesterday = append(groups.Yesterday, n)
		case !n.Timestamp.Before(today.AddDate(0, 0, -7)):
			groups.ThisWeek = append(groups.ThisWeek, n)
		default:
			groups.Older = append(groups.Older, n)
		}
	}
	return groups, nil
}

func (s *memStore) find(recipientID, id string) *models.Notification {
	for _, n := range s.notifications[recipientID] {
		if n.ID == id {
			return n
		}
	}
	return nil
}

func (s *memStore) GetNotification(_ context.Context, recipientID, id string) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.find(recipientID, id)
	if n == nil {
		return nil, errNotFound
	}
	cp := *n
	return &cp, nil
}

func (s *memStore) MarkAsRead(_ context.Context, recipientID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.find(recipientID, id)
	if n == nil {
		return errNotFound
	}
	n.Read = true
	return nil
}

func (s *memStore) MarkAllAsRead(_ context.Context, recipientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications[recipientID] {
		n.Read = true
	}
	return nil
}

func (s *memStore) DeleteNotification(_ context.Context, recipientID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.notifications[recipientID]
	for i, n := range list {
		if n.ID == id {
			s.notifications[recipientID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return errNotFound
}

func (s *memStore) DeleteAllNotifications(_ context.Context, recipientID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.notifications[recipientID]))
	delete(s.notifications, recipientID)
	return n, nil
}
