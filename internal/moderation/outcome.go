// Package moderation reacts to content verification: it submits new posts to
// the moderation service and notifies users once a verdict lands.
package moderation

import (
	"context"

	"github.com/anonto42/eyewitness/backend/internal/geo"
	"github.com/anonto42/eyewitness/backend/internal/models"
	"github.com/anonto42/eyewitness/backend/internal/notify"
	"github.com/anonto42/eyewitness/backend/internal/repositories"
	"go.uber.org/zap"
)

// DefaultTagRadiusKm applies to subscribers who never picked a radius.
const DefaultTagRadiusKm = 10.0

// Subscribers finds users interested in a post's tags.
type Subscribers interface {
	FindTagSubscribers(ctx context.Context, tags []string) ([]models.User, error)
}

// Outcomes turns verification results into notifications.
type Outcomes struct {
	dispatcher    *notify.Dispatcher
	subscribers   Subscribers
	defaultRadius float64
	logger        *zap.Logger
}

// NewOutcomes creates Outcomes. defaultRadiusKm <= 0 means DefaultTagRadiusKm.
func NewOutcomes(dispatcher *notify.Dispatcher, subscribers Subscribers, defaultRadiusKm float64, logger *zap.Logger) *Outcomes {
	if defaultRadiusKm <= 0 {
		defaultRadiusKm = DefaultTagRadiusKm
	}
	return &Outcomes{
		dispatcher:    dispatcher,
		subscribers:   subscribers,
		defaultRadius: defaultRadiusKm,
		logger:        logger,
	}
}

// Handle turns the creator's pending notice into the verdict and, for approved posts, alerts
// nearby users subscribed to its tags. Posts without a verdict are ignored.
func (o *Outcomes) Handle(ctx context.Context, post models.Post) {
	ev := notify.Event{
		PostID:    post.ID.Hex(),
		PostTitle: post.Title,
		PostImage: post.ImageURL,
	}

	switch post.VerificationStatus {
	case models.VerificationApproved:
		ev.Kind = notify.KindPostApproved
		o.dispatcher.Transition(ctx, notify.System, post.CreatorID, notify.KindPostPending, ev)
		o.alertSubscribers(ctx, post, ev)
	case models.VerificationRejected:
		ev.Kind = notify.KindPostRejected
		ev.RejectionReason = post.RejectionReason
		o.dispatcher.Transition(ctx, notify.System, post.CreatorID, notify.KindPostPending, ev)
	default:
		o.logger.Debug("ignoring verification status", zap.String("post_id", ev.PostID), zap.String("status", post.VerificationStatus))
	}
}

func (o *Outcomes) alertSubscribers(ctx context.Context, post models.Post, ev notify.Event) {
	if len(post.Tags) == 0 {
		return
	}
	users, err := o.subscribers.FindTagSubscribers(ctx, post.Tags)
	if err != nil {
		o.logger.Warn("tag subscribers lookup failed", zap.String("post_id", ev.PostID), zap.Error(err))
		return
	}

	creator := notify.Anonymously(post.CreatorID)
	if !post.IsAnonymous {
		creator = notify.Actor{ID: post.CreatorID, Name: post.Username, AvatarURL: post.UserAvatar}
	}

	for _, u := range users {
		if u.ID == post.CreatorID || !u.HasLocation() {
			continue
		}
		matched := repositories.MatchTags(u.Interests, post.Tags)
		if len(matched) == 0 {
			continue
		}
		radius := u.TagRadiusKm
		if radius <= 0 {
			radius = o.defaultRadius
		}
		dist := geo.DistanceKm(*u.Latitude, *u.Longitude, post.Location.Lat(), post.Location.Lng())
		if dist > radius {
			continue
		}

		alert := ev
		alert.Kind = notify.KindTagMatch
		alert.MatchedTags = matched
		alert.DistanceKm = dist
		o.dispatcher.Dispatch(ctx, creator, []string{u.ID}, alert)
	}
}
