package moderation

import (
	"context"
	"errors"
	"time"

	"github.com/anonto42/eyewitness/backend/internal/models"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

var errStreamClosed = errors.New("verification stream closed")

// StatusStream delivers posts whose verification status changed.
type StatusStream interface {
	WatchVerification(ctx context.Context, fn func(models.Post)) error
}

// Watcher follows verification changes made by the moderation service and
// dispatches the outcome notifications.
type Watcher struct {
	stream   StatusStream
	outcomes *Outcomes
	logger   *zap.Logger
	backoff  func() backoff.BackOff
}

// NewWatcher creates a Watcher
func NewWatcher(stream StatusStream, outcomes *Outcomes, logger *zap.Logger) *Watcher {
	return &Watcher{
		stream:   stream,
		outcomes: outcomes,
		logger:   logger,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = time.Minute
			b.MaxElapsedTime = 0
			return b
		},
	}
}

// Run watches until ctx is done, reopening the stream with exponential backoff.
func (w *Watcher) Run(ctx context.Context) error {
	op := func() error {
		err := w.stream.WatchVerification(ctx, func(p models.Post) {
			w.outcomes.Handle(ctx, p)
		})
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err == nil {
			err = errStreamClosed
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		w.logger.Warn("verification watcher interrupted", zap.Error(err), zap.Duration("retry_in", next))
	}

	err := backoff.RetryNotify(op, backoff.WithContext(w.backoff(), ctx), notify)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
