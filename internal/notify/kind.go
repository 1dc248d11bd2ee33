package notify

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the interaction a notification reports.
type Kind string

const (
	KindLike             Kind = "like"
	KindUnlike           Kind = "unlike"
	KindComment          Kind = "comment"
	KindReply            Kind = "reply"
	KindEyewitness       Kind = "eyewitness"
	KindRemoveEyewitness Kind = "remove_eyewitness"
	KindCommentLike      Kind = "comment_like"
	KindReplyLike        Kind = "reply_like"
	KindPostPending      Kind = "post_pending"
	KindPostApproved     Kind = "post_approved"
	KindPostRejected     Kind = "post_rejected"
	KindTagMatch         Kind = "tag_match"
	KindTaggedInPost     Kind = "tagged_in_post"
	KindMention          Kind = "mention"
)

// DefaultRejectionReason is used when moderation gives no reason.
const DefaultRejectionReason = "Content violates community guidelines"

var templates = map[Kind]string{
	KindLike:             "liked your post",
	KindUnlike:           "unliked your post",
	KindComment:          "commented on your post",
	KindReply:            "replied to your comment",
	KindEyewitness:       "marked themselves as an eyewitness on your post",
	KindRemoveEyewitness: "removed eyewitness status",
	KindCommentLike:      "liked your comment",
	KindReplyLike:        "liked your reply",
	KindPostPending:      "New post created. awaiting verification.",
	KindPostApproved:     "Your post has been approved and is now visible to others.",
	KindPostRejected:     "Your post was rejected: %s",
	KindTagMatch:         "created a post with your subscribed tags (%s) within %skm",
	KindTaggedInPost:     "You were tagged in a post by %s",
	KindMention:          "mentioned you in a comment",
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := templates[k]
	return ok
}

func (k Kind) String() string { return string(k) }

// Message renders the fixed template for the event's kind.
func Message(sender Actor, ev Event) string {
	tmpl, ok := templates[ev.Kind]
	if !ok {
		return "interacted with your post"
	}
	switch ev.Kind {
	case KindPostRejected:
		reason := ev.RejectionReason
		if reason == "" {
			reason = DefaultRejectionReason
		}
		return fmt.Sprintf(tmpl, reason)
	case KindTagMatch:
		return fmt.Sprintf(tmpl, strings.Join(ev.MatchedTags, ", "), strconv.FormatFloat(ev.DistanceKm, 'f', 1, 64))
	case KindTaggedInPost:
		return fmt.Sprintf(tmpl, sender.DisplayName())
	default:
		return tmpl
	}
}
