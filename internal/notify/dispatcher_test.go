package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/eyewitness/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	alice = Actor{ID: "u-alice", Name: "Alice", AvatarURL: "https://img/alice.png"}
	fixed = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
)

func newTestDispatcher(store *memStore, opts ...Option) *Dispatcher {
	opts = append([]Option{WithClock(func() time.Time { return fixed })}, opts...)
	return NewDispatcher(store, store, zap.NewNop(), opts...)
}

func TestDispatch_WritesOneNotificationPerRecipient(t *testing.T) {
	store := newMemStore()
	d := newTestDispatcher(store)

	report := d.Dispatch(context.Background(), alice, []string{"u-bob", "u-carol"}, Event{
		Kind:      KindLike,
		PostID:    "p1",
		PostTitle: "Fire downtown",
		PostImage: "https://img/p1.jpg",
	})

	assert.Equal(t, 2, report.Delivered())
	assert.Empty(t, report.Failed())
	assert.ElementsMatch(t, []string{"u-bob", "u-carol"}, report.Recipients())

	bob := store.inbox("u-bob")
	require.Len(t, bob, 1)
	n := bob[0]
	assert.Equal(t, "like", n.Type)
	assert.Equal(t, "u-alice", n.TriggeringUserID)
	assert.Equal(t, "Alice", n.TriggeringUserName)
	assert.Equal(t, "https://img/alice.png", n.TriggeringUserAvatar)
	assert.Equal(t, "p1", n.PostID)
	assert.Equal(t, "Fire downtown", n.PostTitle)
	assert.Equal(t, "liked your post", n.Message)
	assert.False(t, n.Read)
	assert.Equal(t, fixed, n.Timestamp)
	assert.Empty(t, n.DedupKey)
}

func TestDispatch_SuppressesSender(t *testing.T) {
	store := newMemStore()
	d := newTestDispatcher(store)

	report := d.Dispatch(context.Background(), alice, []string{"u-alice"}, Event{Kind: KindComment, PostID: "p1"})

	assert.Empty(t, report.Results)
	assert.Empty(t, store.inbox("u-alice"))
	assert.Equal(t, int64(-1), store.counter("u-alice"))
}

func TestDispatch_CollapsesDuplicatesAndEmptyIDs(t *testing.T) {
	store := newMemStore()
	d := newTestDispatcher(store)

	report := d.Dispatch(context.Background(), alice, []string{"u-bob", "", "u-bob"}, Event{Kind: KindMention, PostID: "p1"})

	assert.Equal(t, 1, report.Delivered())
	assert.Len(t, store.inbox("u-bob"), 1)
	assert.Equal(t, int64(1), store.counter("u-bob"))
}

func TestDispatch_ProvisionsMissingRecipient(t *testing.T) {
	store := newMemStore()
	d := newTestDispatcher(store)

	d.Dispatch(context.Background(), alice, []string{"u-new"}, Event{Kind: KindLike, PostID: "p1"})

	store.mu.Lock()
	u, ok := store.users["u-new"]
	store.mu.Unlock()
	require.True(t, ok)
	assert.Equal(t, int64(1), u.NotificationCount)
	assert.Equal(t, fixed, u.CreatedAt)
}

func TestDispatch_CounterTracksUnread(t *testing.T) {
	store := newMemStore()
	store.users["u-bob"] = &models.User{ID: "u-bob", DisplayName: "Bob"}
	store.notifications["u-bob"] = []*models.Notification{
		{ID: "old-1", RecipientID: "u-bob", Read: false},
		{ID: "old-2", RecipientID: "u-bob", Read: true},
	}
	d := newTestDispatcher(store)

	report := d.Dispatch(context.Background(), alice, []string{"u-bob"}, Event{Kind: KindLike, PostID: "p1"})

	require.Len(t, report.Results, 1)
	assert.Equal(t, int64(2), report.Results[0].UnreadCount)
	assert.Equal(t, int64(2), store.counter("u-bob"))
	assert.Equal(t, "Bob", store.users["u-bob"].DisplayName)
}

func TestDispatch_RepeatedEventWritesTwice(t *testing.T) {
	store := newMemStore()
	d := newTestDispatcher(store)
	ev := Event{Kind: KindLike, PostID: "p1"}

	d.Dispatch(context.Background(), alice, []string{"u-bob"}, ev)
	d.Dispatch(context.Background(), alice, []string{"u-bob"}, ev)

	assert.Len(t, store.inbox("u-bob"), 2)
	assert.Equal(t, int64(2), store.counter("u-bob"))
}

func TestDispatch_IdempotencySkipsRepeat(t *testing.T) {
	store := newMemStore()
	d := newTestDispatcher(store, WithIdempotency())
	ev := Event{Kind: KindComment, PostID: "p1", CommentID: "c1", Text: "nice"}

	first := d.Dispatch(context.Background(), alice, []string{"u-bob"}, ev)
	second := d.Dispatch(context.Background(), alice, []string{"u-bob"}, ev)

	assert.Equal(t, 1, first.Delivered())
	assert.Equal(t, 0, second.Delivered())
	require.Len(t, second.Results, 1)
	assert.True(t, second.Results[0].Skipped)
	inbox := store.inbox("u-bob")
	require.Len(t, inbox, 1)
	assert.Equal(t, DedupKey("u-alice", "u-bob", ev), inbox[0].DedupKey)

	other := ev
	other.Text = "nice!"
	third := d.Dispatch(context.Background(), alice, []string{"u-bob"}, other)
	assert.Equal(t, 1, third.Delivered())
}

func TestDispatch_FailureIsIsolated(t *testing.T) {
	store := newMemStore()
	boom := errors.New("write refused")
	store.failCreate["u-bob"] = boom
	d := newTestDispatcher(store)

	report := d.Dispatch(context.Background(), alice, []string{"u-bob", "u-carol", "u-dave"}, Event{Kind: KindLike, PostID: "p1"})

	assert.Equal(t, 2, report.Delivered())
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "u-bob", failed[0].RecipientID)
	assert.ErrorIs(t, failed[0].Err, boom)
	assert.Len(t, store.inbox("u-carol"), 1)
	assert.Len(t, store.inbox("u-dave"), 1)
}

func TestDispatch_CounterFailureKeepsNotification(t *testing.T) {
	store := newMemStore()
	store.failCount["u-bob"] = errors.New("count unavailable")
	d := newTestDispatcher(store)

	report := d.Dispatch(context.Background(), alice, []string{"u-bob"}, Event{Kind: KindLike, PostID: "p1"})

	require.Len(t, report.Results, 1)
	assert.True(t, report.Results[0].Delivered)
	assert.Error(t, report.Results[0].Err)
	assert.Len(t, store.inbox("u-bob"), 1)
}

func TestDispatch_UnknownKind(t *testing.T) {
	store := newMemStore()
	d := newTestDispatcher(store)

	report := d.Dispatch(context.Background(), alice, []string{"u-bob"}, Event{Kind: "poke"})

	require.Len(t, report.Results, 1)
	assert.ErrorIs(t, report.Results[0].Err, ErrUnknownKind)
	assert.Empty(t, store.inbox("u-bob"))
}

func TestDispatch_SystemActor(t *testing.T) {
	store := newMemStore()
	d := newTestDispatcher(store)

	d.Dispatch(context.Background(), System, []string{"u-bob"}, Event{Kind: KindPostRejected, PostID: "p1"})

	inbox := store.inbox("u-bob")
	require.Len(t, inbox, 1)
	assert.Empty(t, inbox[0].TriggeringUserID)
	assert.Equal(t, DefaultRejectionReason, inbox[0].RejectionReason)
	assert.Equal(t, "Your post was rejected: "+DefaultRejectionReason, inbox[0].Message)
}

func TestDispatch_AnonymousActorHidden(t *testing.T) {
	store := newMemStore()
	d := newTestDispatcher(store)

	report := d.Dispatch(context.Background(), Anonymously("u-alice"), []string{"u-alice", "u-bob"}, Event{Kind: KindTaggedInPost, PostID: "p1"})

	assert.Equal(t, []string{"u-bob"}, report.Recipients())
	bob := store.inbox("u-bob")
	require.Len(t, bob, 1)
	assert.Empty(t, bob[0].TriggeringUserID)
	assert.Empty(t, bob[0].TriggeringUserAvatar)
	assert.Equal(t, "Anonymous User", bob[0].TriggeringUserName)
	assert.Equal(t, "You were tagged in a post by Anonymous User", bob[0].Message)
}

func TestTransition_RewritesPendingInPlace(t *testing.T) {
	store := newMemStore()
	d := newTestDispatcher(store)
	d.Dispatch(context.Background(), System, []string{"u-bob"}, Event{Kind: KindPostPending, PostID: "p1"})
	d.Dispatch(context.Background(), System, []string{"u-bob"}, Event{Kind: KindPostPending, PostID: "p2"})
	pending := store.inbox("u-bob")[0]
	require.NoError(t, store.MarkAsRead(context.Background(), "u-bob", pending.ID))

	report := d.Transition(context.Background(), System, "u-bob", KindPostPending, Event{Kind: KindPostApproved, PostID: "p1"})

	require.Len(t, report.Results, 1)
	assert.Equal(t, pending.ID, report.Results[0].NotificationID)
	assert.Equal(t, int64(1), report.Results[0].UnreadCount)
	bob := store.inbox("u-bob")
	require.Len(t, bob, 2)
	assert.Equal(t, "post_approved", bob[0].Type)
	assert.Equal(t, "Your post has been approved and is now visible to others.", bob[0].Message)
	assert.True(t, bob[0].Read)
	assert.Equal(t, "post_pending", bob[1].Type)
	assert.Equal(t, int64(1), store.counter("u-bob"))
}

func TestTransition_DispatchesWithoutPending(t *testing.T) {
	store := newMemStore()
	d := newTestDispatcher(store)

	report := d.Transition(context.Background(), System, "u-bob", KindPostPending, Event{Kind: KindPostRejected, PostID: "p1", RejectionReason: "spam"})
	assert.Equal(t, 1, report.Delivered())

	store.failUpdate["u-carol"] = errors.New("index missing")
	report = d.Transition(context.Background(), System, "u-carol", KindPostPending, Event{Kind: KindPostApproved, PostID: "p1"})
	assert.Equal(t, 1, report.Delivered())

	bob := store.inbox("u-bob")
	require.Len(t, bob, 1)
	assert.Equal(t, "post_rejected", bob[0].Type)
	assert.Equal(t, "Your post was rejected: spam", bob[0].Message)
	assert.Len(t, store.inbox("u-carol"), 1)
}

func TestDispatch_PublishesToSinks(t *testing.T) {
	store := newMemStore()
	var mu sync.Mutex
	var seen []string
	record := SinkFunc(func(_ context.Context, n *models.Notification) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, n.RecipientID+":"+n.ID)
		return nil
	})
	failing := SinkFunc(func(context.Context, *models.Notification) error { return errors.New("offline") })
	d := newTestDispatcher(store, WithSinks(failing, record, nil))

	report := d.Dispatch(context.Background(), alice, []string{"u-bob"}, Event{Kind: KindLike, PostID: "p1"})

	assert.Equal(t, 1, report.Delivered())
	assert.Empty(t, report.Failed())
	require.Len(t, seen, 1)
	assert.Equal(t, "u-bob:"+report.Results[0].NotificationID, seen[0])
}

func TestDispatch_ManyRecipientsBounded(t *testing.T) {
	store := newMemStore()
	d := newTestDispatcher(store, WithConcurrency(3))
	ids := make([]string, 50)
	for i := range ids {
		ids[i] = "u-" + string(rune('a'+i%26)) + string(rune('a'+i/26))
	}

	report := d.Dispatch(context.Background(), alice, ids, Event{Kind: KindTagMatch, PostID: "p1"})

	assert.Equal(t, 50, report.Delivered())
	for _, id := range ids {
		assert.Equal(t, int64(1), store.counter(id), id)
	}
}

func TestDedupKey_Distinguishes(t *testing.T) {
	ev := Event{Kind: KindLike, PostID: "p1"}
	base := DedupKey("a", "b", ev)

	assert.Equal(t, base, DedupKey("a", "b", ev))
	assert.NotEqual(t, base, DedupKey("b", "a", ev))
	assert.NotEqual(t, base, DedupKey("a", "b", Event{Kind: KindUnlike, PostID: "p1"}))
	assert.NotEqual(t, base, DedupKey("a", "b", Event{Kind: KindLike, PostID: "p2"}))
	assert.Len(t, base, 64)
}
