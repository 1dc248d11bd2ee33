package notify

import (
	"context"

	"github.com/anonto42/eyewitness/backend/internal/directory"
	"github.com/anonto42/eyewitness/backend/internal/mentions"
	"github.com/anonto42/eyewitness/backend/internal/models"
	"go.uber.org/zap"
)

// Request describes the notifications owed for one submitted action.
type Request struct {
	Sender Actor
	// Event is sent to Primary recipients.
	Event   Event
	Primary []string
	// Text is scanned for @mentions when MentionKind is set; resolved users
	// not already notified get Event with MentionKind.
	Text        string
	MentionKind Kind
	Directory   *directory.Snapshot
}

// Outcome is what Notify did.
type Outcome struct {
	Primary    Report
	Mentions   Report
	Resolved   []models.DirectoryEntry
	Unresolved []string
}

// Delivered counts notifications written for both stages.
func (o Outcome) Delivered() int {
	return o.Primary.Delivered() + o.Mentions.Delivered()
}

// Failed lists the recipients of both stages whose notification was not stored
// or whose counter was not refreshed.
func (o Outcome) Failed() []Result {
	return append(o.Primary.Failed(), o.Mentions.Failed()...)
}

// Notifier runs the mention pipeline in front of a Dispatcher.
type Notifier struct {
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(dispatcher *Dispatcher, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{dispatcher: dispatcher, logger: logger}
}

// Dispatcher exposes the underlying dispatcher for single-stage events.
func (n *Notifier) Dispatcher() *Dispatcher { return n.dispatcher }

// Notify notifies direct recipients first, then anyone mentioned in the text
// who resolves against the directory and was not already notified.
func (n *Notifier) Notify(ctx context.Context, req Request) Outcome {
	var out Outcome
	notified := NewRecipientSet(req.Sender.ID)

	primary := notified.AddAll(req.Primary)
	if len(primary) > 0 {
		out.Primary = n.dispatcher.Dispatch(ctx, req.Sender, primary, req.Event)
	}

	if req.MentionKind == "" || req.Text == "" {
		return out
	}

	var mentioned []string
	for _, handle := range mentions.Parse(req.Text) {
		entry, ok := req.Directory.Resolve(handle)
		if !ok {
			out.Unresolved = append(out.Unresolved, handle)
			continue
		}
		if notified.Add(entry.ID) {
			mentioned = append(mentioned, entry.ID)
			out.Resolved = append(out.Resolved, entry)
		}
	}

	if len(out.Unresolved) > 0 {
		n.logger.Debug("unresolved mentions", zap.Strings("handles", out.Unresolved))
	}
	if len(mentioned) == 0 {
		return out
	}

	ev := req.Event
	ev.Kind = req.MentionKind
	out.Mentions = n.dispatcher.Dispatch(ctx, req.Sender, mentioned, ev)
	return out
}
