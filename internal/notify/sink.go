package notify

import (
	"context"

	"github.com/anonto42/eyewitness/backend/internal/models"
)

// Sink receives every notification after it has been stored.
type Sink interface {
	Publish(ctx context.Context, n *models.Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n *models.Notification) error

func (f SinkFunc) Publish(ctx context.Context, n *models.Notification) error { return f(ctx, n) }
