package moderation

import (
	"context"

	"github.com/anonto42/eyewitness/backend/internal/clients"
	"github.com/anonto42/eyewitness/backend/internal/models"
	"go.uber.org/zap"
)

// Verifier submits content for verification.
type Verifier interface {
	Enabled() bool
	Verify(ctx context.Context, image []byte, filename, title, caption string) (*clients.Verdict, error)
}

// StatusWriter stores a verdict on a post.
type StatusWriter interface {
	SetVerification(ctx context.Context, postID, status, reason string) error
}

// Reviewer submits new posts for verification. The call is best effort: a
// failing or slow moderation service leaves the post pending.
type Reviewer struct {
	verifier Verifier
	posts    StatusWriter
	outcomes *Outcomes
	notify   bool
	logger   *zap.Logger
}

// NewReviewer creates a Reviewer. When notifyOutcome is set the reviewer
// dispatches outcome notifications itself; leave it unset when a Watcher
// observes the post store.
func NewReviewer(verifier Verifier, posts StatusWriter, outcomes *Outcomes, notifyOutcome bool, logger *zap.Logger) *Reviewer {
	return &Reviewer{verifier: verifier, posts: posts, outcomes: outcomes, notify: notifyOutcome, logger: logger}
}

// Review sends the post to the moderation service and records a synchronous verdict.
func (r *Reviewer) Review(ctx context.Context, post models.Post, image []byte, filename string) {
	if r.verifier == nil || !r.verifier.Enabled() {
		return
	}
	postID := post.ID.Hex()

	verdict, err := r.verifier.Verify(ctx, image, filename, post.Title, post.Caption)
	if err != nil {
		r.logger.Warn("content verification request failed, post stays pending",
			zap.String("post_id", postID), zap.Error(err))
		return
	}
	if verdict.Status != models.VerificationApproved && verdict.Status != models.VerificationRejected {
		r.logger.Debug("content verification acknowledged", zap.String("post_id", postID))
		return
	}

	if err := r.posts.SetVerification(ctx, postID, verdict.Status, verdict.Reason); err != nil {
		r.logger.Error("storing verification result failed", zap.String("post_id", postID), zap.Error(err))
		return
	}
	r.logger.Info("post verified", zap.String("post_id", postID), zap.String("status", verdict.Status))

	if r.notify {
		post.VerificationStatus = verdict.Status
		post.RejectionReason = verdict.Reason
		post.IsVisible = verdict.Status == models.VerificationApproved
		r.outcomes.Handle(ctx, post)
	}
}
