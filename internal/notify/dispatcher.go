// Package notify writes notifications to recipients' inboxes and keeps their
// unread counters in line with the stored notifications.
package notify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anonto42/eyewitness/backend/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownKind is reported for every recipient of an event with an unknown kind.
var ErrUnknownKind = errors.New("unknown notification kind")

const (
	anonymousName      = "Anonymous User"
	defaultConcurrency = 8
)

// Actor is the user who triggered an event. The zero Actor stands for the
// system (moderation results, tag alerts) and is never suppressed.
// An Anonymous actor is still suppressed by ID, but its ID, name and avatar
// never reach the stored notification.
type Actor struct {
	ID        string
	Name      string
	AvatarURL string
	Anonymous bool
}

// Anonymously returns the actor with its identity hidden from recipients.
func Anonymously(id string) Actor {
	return Actor{ID: id, Anonymous: true}
}

// System is the actor for events nobody in particular triggered.
var System = Actor{}

// DisplayName returns the name shown to recipients.
func (a Actor) DisplayName() string {
	if a.Anonymous || a.Name == "" {
		return anonymousName
	}
	return a.Name
}

// Event is the immutable context of one interaction.
type Event struct {
	Kind            Kind
	PostID          string
	PostTitle       string
	PostImage       string
	CommentID       string
	Text            string
	MatchedTags     []string
	DistanceKm      float64
	RejectionReason string
}

// Profiles is the profile store as seen by the dispatcher.
type Profiles interface {
	// EnsureUser creates user unless a profile with the same ID exists.
	EnsureUser(ctx context.Context, user *models.User) (created bool, err error)
	SetNotificationCount(ctx context.Context, userID string, count int64) error
}

// Notifications is the per-recipient notification store as seen by the dispatcher.
type Notifications interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	CountUnread(ctx context.Context, recipientID string) (int64, error)
	HasDedupKey(ctx context.Context, recipientID, key string) (bool, error)
	// UpdatePostNotification finds the recipient's notification of type from
	// about n.PostID and overwrites its type, message and rejection reason with
	// n's. On success n takes the stored ID, read flag and timestamp. It reports
	// false when there is no such notification.
	UpdatePostNotification(ctx context.Context, from string, n *models.Notification) (bool, error)
}

// Result is the outcome for one recipient.
type Result struct {
	RecipientID    string
	NotificationID string
	Delivered      bool
	Skipped        bool
	UnreadCount    int64
	Err            error
}

// Report collects per-recipient results of one dispatch.
type Report struct {
	Kind    Kind
	Results []Result
}

// Delivered returns how many notifications were written.
func (r Report) Delivered() int {
	n := 0
	for _, res := range r.Results {
		if res.Delivered {
			n++
		}
	}
	return n
}

// Failed returns the results that carry an error.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Recipients lists the recipients the dispatch targeted.
func (r Report) Recipients() []string {
	out := make([]string, len(r.Results))
	for i, res := range r.Results {
		out[i] = res.RecipientID
	}
	return out
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithConcurrency bounds the number of recipients written in parallel.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.limit = n
		}
	}
}

// WithIdempotency stores a dedup key on every notification and skips
// recipients that already hold the key for the same logical event.
func WithIdempotency() Option {
	return func(d *Dispatcher) { d.idempotent = true }
}

// WithSinks adds sinks that observe stored notifications.
func WithSinks(sinks ...Sink) Option {
	return func(d *Dispatcher) {
		for _, s := range sinks {
			if s != nil {
				d.sinks = append(d.sinks, s)
			}
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// Dispatcher fans one event out to a set of recipients.
type Dispatcher struct {
	profiles      Profiles
	notifications Notifications
	sinks         []Sink
	logger        *zap.Logger
	limit         int
	idempotent    bool
	now           func() time.Time
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(profiles Profiles, notifications Notifications, logger *zap.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		profiles:      profiles,
		notifications: notifications,
		logger:        logger,
		limit:         defaultConcurrency,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch writes one notification per recipient. The sender and empty or
// repeated IDs are dropped first. Recipients are handled independently: a
// failure is logged and reported in its Result and never stops the others.
func (d *Dispatcher) Dispatch(ctx context.Context, sender Actor, recipients []string, ev Event) Report {
	targets := NewRecipientSet(sender.ID).AddAll(recipients)
	report := Report{Kind: ev.Kind, Results: make([]Result, len(targets))}

	if !ev.Kind.Valid() {
		for i, rid := range targets {
			report.Results[i] = Result{RecipientID: rid, Err: ErrUnknownKind}
		}
		d.logger.Warn("dropping notification with unknown kind", zap.String("kind", string(ev.Kind)))
		return report
	}

	var g errgroup.Group
	g.SetLimit(d.limit)
	for i, rid := range targets {
		i, rid := i, rid
		g.Go(func() error {
			report.Results[i] = d.deliver(ctx, sender, rid, ev)
			return nil
		})
	}
	_ = g.Wait()

	d.logger.Debug("notifications dispatched",
		zap.String("kind", string(ev.Kind)),
		zap.Strings("recipients", report.Recipients()),
		zap.Int("delivered", report.Delivered()))
	return report
}

func (d *Dispatcher) deliver(ctx context.Context, sender Actor, recipientID string, ev Event) Result {
	res := Result{RecipientID: recipientID}
	n := d.build(sender, recipientID, ev)

	if d.idempotent {
		n.DedupKey = DedupKey(sender.ID, recipientID, ev)
		seen, err := d.notifications.HasDedupKey(ctx, recipientID, n.DedupKey)
		if err != nil {
			return d.fail(res, ev, fmt.Errorf("check dedup key: %w", err))
		}
		if seen {
			res.Skipped = true
			return res
		}
	}

	if _, err := d.profiles.EnsureUser(ctx, &models.User{
		ID:        recipientID,
		CreatedAt: n.Timestamp,
		UpdatedAt: n.Timestamp,
	}); err != nil {
		return d.fail(res, ev, fmt.Errorf("ensure recipient profile: %w", err))
	}

	if err := d.notifications.CreateNotification(ctx, n); err != nil {
		return d.fail(res, ev, fmt.Errorf("create notification: %w", err))
	}
	res.Delivered = true
	res.NotificationID = n.ID

	d.publish(ctx, n)

	count, err := d.syncCounter(ctx, recipientID)
	if err != nil {
		return d.fail(res, ev, err)
	}
	res.UnreadCount = count
	return res
}

// Transition rewrites the recipient's notification of kind from about
// ev.PostID into ev, keeping its read state, and recomputes the counter.
// Without such a notification ev is dispatched as a new one.
func (d *Dispatcher) Transition(ctx context.Context, sender Actor, recipientID string, from Kind, ev Event) Report {
	if !ev.Kind.Valid() || recipientID == "" || recipientID == sender.ID {
		return d.Dispatch(ctx, sender, []string{recipientID}, ev)
	}

	n := d.build(sender, recipientID, ev)
	updated, err := d.notifications.UpdatePostNotification(ctx, string(from), n)
	if err != nil {
		d.logger.Warn("notification update failed, dispatching instead",
			zap.String("recipient", recipientID),
			zap.String("post_id", ev.PostID),
			zap.Error(err))
	}
	if err != nil || !updated {
		return d.Dispatch(ctx, sender, []string{recipientID}, ev)
	}

	res := Result{RecipientID: recipientID, NotificationID: n.ID, Delivered: true}
	d.publish(ctx, n)
	count, err := d.syncCounter(ctx, recipientID)
	if err != nil {
		res = d.fail(res, ev, err)
	} else {
		res.UnreadCount = count
	}
	return Report{Kind: ev.Kind, Results: []Result{res}}
}

func (d *Dispatcher) publish(ctx context.Context, n *models.Notification) {
	for _, s := range d.sinks {
		if err := s.Publish(ctx, n); err != nil {
			d.logger.Warn("notification sink failed",
				zap.String("recipient", n.RecipientID),
				zap.String("notification_id", n.ID),
				zap.Error(err))
		}
	}
}

func (d *Dispatcher) syncCounter(ctx context.Context, recipientID string) (int64, error) {
	count, err := d.notifications.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	if err := d.profiles.SetNotificationCount(ctx, recipientID, count); err != nil {
		return 0, fmt.Errorf("update notification count: %w", err)
	}
	return count, nil
}

func (d *Dispatcher) fail(res Result, ev Event, err error) Result {
	res.Err = err
	d.logger.Warn("notification dispatch failed",
		zap.String("recipient", res.RecipientID),
		zap.String("kind", string(ev.Kind)),
		zap.String("post_id", ev.PostID),
		zap.Error(err))
	return res
}

func (d *Dispatcher) build(sender Actor, recipientID string, ev Event) *models.Notification {
	n := &models.Notification{
		RecipientID:     recipientID,
		Type:            string(ev.Kind),
		PostID:          ev.PostID,
		PostTitle:       ev.PostTitle,
		PostImage:       ev.PostImage,
		CommentID:       ev.CommentID,
		Message:         Message(sender, ev),
		DistanceKm:      ev.DistanceKm,
		RejectionReason: ev.RejectionReason,
		Read:            false,
		Timestamp:       d.now().UTC(),
	}
	if len(ev.MatchedTags) > 0 {
		n.MatchedTags = append(models.Tags(nil), ev.MatchedTags...)
	}
	switch {
	case sender.Anonymous:
		n.TriggeringUserName = sender.DisplayName()
	case sender.ID != "":
		n.TriggeringUserID = sender.ID
		n.TriggeringUserName = sender.DisplayName()
		n.TriggeringUserAvatar = sender.AvatarURL
	}
	if ev.Kind == KindPostRejected && n.RejectionReason == "" {
		n.RejectionReason = DefaultRejectionReason
	}
	return n
}

// DedupKey identifies one logical event for one recipient.
func DedupKey(senderID, recipientID string, ev Event) string {
	text := sha256.Sum256([]byte(ev.Text))
	raw := strings.Join([]string{
		senderID,
		recipientID,
		string(ev.Kind),
		ev.PostID,
		ev.CommentID,
		hex.EncodeToString(text[:]),
	}, "\x1f")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
