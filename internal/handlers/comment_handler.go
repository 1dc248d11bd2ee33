package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/anonto42/eyewitness/backend/internal/models"
	"github.com/anonto42/eyewitness/backend/internal/notify"
	"github.com/anonto42/eyewitness/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CommentHandler handles HTTP requests related to comments and replies
type CommentHandler struct {
	commentRepository     repositories.CommentRepository
	commentLikeRepository repositories.CommentLikeRepository
	postRepository        repositories.PostRepository
	userRepository        repositories.UserRepository
	notifier              *notify.Notifier
	logger                *zap.Logger
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(commentRepo repositories.CommentRepository, commentLikeRepo repositories.CommentLikeRepository, postRepo repositories.PostRepository, userRepo repositories.UserRepository, notifier *notify.Notifier, logger *zap.Logger) *CommentHandler {
	return &CommentHandler{
		commentRepository:     commentRepo,
		commentLikeRepository: commentLikeRepo,
		postRepository:        postRepo,
		userRepository:        userRepo,
		notifier:              notifier,
		logger:                logger,
	}
}

// RegisterCommentRoutes registers comment-related routes
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group) {
	g.POST("/posts/:post_id/comments", h.CreateComment)
	g.GET("/posts/:post_id/comments", h.GetCommentsByPostID)
	g.POST("/comments/:id/replies", h.CreateReply)
	g.DELETE("/comments/:id", h.DeleteComment)
	g.POST("/comments/:id/likes", h.LikeComment)
	g.DELETE("/comments/:id/likes", h.UnlikeComment)
}

// CreateComment creates a new comment on a post, notifies the post owner and
// anyone mentioned in the text.
func (h *CommentHandler) CreateComment(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req models.CreateCommentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	post, err := h.postRepository.GetPostByID(ctx, c.Param("post_id"))
	if err != nil {
		return storeError(err, "Post not found")
	}

	sender, _ := actorFor(ctx, h.userRepository, uid)
	comment := &models.Comment{
		PostID:     post.ID.Hex(),
		SenderID:   uid,
		Username:   sender.DisplayName(),
		UserAvatar: sender.AvatarURL,
		Text:       strings.TrimSpace(req.Text),
	}
	if err := h.commentRepository.CreateComment(ctx, comment); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.postRepository.IncrementCommentCount(ctx, comment.PostID, 1); err != nil {
		h.logger.Warn("post comment counter not updated", zap.String("post_id", comment.PostID), zap.Error(err))
	}

	out := h.notify(c, sender, post, comment, notify.KindComment, post.CreatorID)
	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"data":    comment,
		"meta":    echo.Map{"notified": out.Delivered(), "failed": len(out.Failed()), "unresolvedMention": out.Unresolved},
	})
}

// CreateReply answers a comment. Replies stay one level deep: answering a
// reply attaches to the same top-level comment but notifies the reply's author.
func (h *CommentHandler) CreateReply(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	id, err := commentID(c)
	if err != nil {
		return err
	}
	var req models.CreateCommentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	parent, err := h.commentRepository.GetCommentByID(ctx, id)
	if err != nil {
		return storeError(err, "Comment not found")
	}
	post, err := h.postRepository.GetPostByID(ctx, parent.PostID)
	if err != nil {
		return storeError(err, "Post not found")
	}

	root := parent.ID
	if parent.IsReply() {
		root = *parent.ParentID
	}

	sender, _ := actorFor(ctx, h.userRepository, uid)
	reply := &models.Comment{
		PostID:     parent.PostID,
		ParentID:   &root,
		SenderID:   uid,
		Username:   sender.DisplayName(),
		UserAvatar: sender.AvatarURL,
		Text:       strings.TrimSpace(req.Text),
	}
	if err := h.commentRepository.CreateComment(ctx, reply); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.postRepository.IncrementCommentCount(ctx, reply.PostID, 1); err != nil {
		h.logger.Warn("post comment counter not updated", zap.String("post_id", reply.PostID), zap.Error(err))
	}

	out := h.notify(c, sender, post, reply, notify.KindReply, parent.SenderID)
	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"data":    reply,
		"meta":    echo.Map{"notified": out.Delivered(), "failed": len(out.Failed()), "unresolvedMention": out.Unresolved},
	})
}

// GetCommentsByPostID returns the comment thread of a post
func (h *CommentHandler) GetCommentsByPostID(c echo.Context) error {
	comments, err := h.commentRepository.GetThread(c.Request().Context(), c.Param("post_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": comments})
}

// DeleteComment deletes a comment together with its replies
func (h *CommentHandler) DeleteComment(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	id, err := commentID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	comment, err := h.commentRepository.GetCommentByID(ctx, id)
	if err != nil {
		return storeError(err, "Comment not found")
	}
	if comment.SenderID != uid {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to delete this comment")
	}

	n, err := h.commentRepository.DeleteComment(ctx, id)
	if err != nil {
		return storeError(err, "Comment not found")
	}
	if err := h.postRepository.IncrementCommentCount(ctx, comment.PostID, -int(n)); err != nil {
		h.logger.Warn("post comment counter not updated", zap.String("post_id", comment.PostID), zap.Error(err))
	}

	return c.NoContent(http.StatusNoContent)
}

// LikeComment likes a comment or reply and notifies its author
func (h *CommentHandler) LikeComment(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	id, err := commentID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	comment, err := h.commentRepository.GetCommentByID(ctx, id)
	if err != nil {
		return storeError(err, "Comment not found")
	}

	like := &models.CommentLike{CommentID: id, UserID: uid}
	if err := h.commentLikeRepository.CreateCommentLike(ctx, like); err != nil {
		if errors.Is(err, repositories.ErrAlreadyExists) {
			return echo.NewHTTPError(http.StatusConflict, "Comment already liked by this user")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.commentRepository.IncrementLikes(ctx, id, 1); err != nil {
		h.logger.Warn("comment like counter not updated", zap.Uint("comment_id", id), zap.Error(err))
	}

	kind := notify.KindCommentLike
	if comment.IsReply() {
		kind = notify.KindReplyLike
	}
	ev := notify.Event{Kind: kind, PostID: comment.PostID, CommentID: strconv.FormatUint(uint64(id), 10)}
	bg := detached(c)
	if post, err := h.postRepository.GetPostByID(bg, comment.PostID); err == nil {
		ev.PostTitle = post.Title
		ev.PostImage = post.ImageURL
	}
	sender, _ := actorFor(bg, h.userRepository, uid)
	h.notifier.Dispatcher().Dispatch(bg, sender, []string{comment.SenderID}, ev)

	return c.JSON(http.StatusCreated, like)
}

// UnlikeComment removes the caller's like from a comment or reply
func (h *CommentHandler) UnlikeComment(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	id, err := commentID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	if err := h.commentLikeRepository.DeleteCommentLike(ctx, id, uid); err != nil {
		return storeError(err, "Like not found")
	}
	if err := h.commentRepository.IncrementLikes(ctx, id, -1); err != nil {
		h.logger.Warn("comment like counter not updated", zap.Uint("comment_id", id), zap.Error(err))
	}
	return c.NoContent(http.StatusNoContent)
}

// notify sends kind to the direct recipient and mention to users named in the text.
func (h *CommentHandler) notify(c echo.Context, sender notify.Actor, post *models.Post, comment *models.Comment, kind notify.Kind, recipient string) notify.Outcome {
	ctx := detached(c)
	snapshot, err := loadDirectory(ctx, h.userRepository)
	if err != nil {
		h.logger.Warn("directory unavailable, mentions skipped", zap.Error(err))
	}
	return h.notifier.Notify(ctx, notify.Request{
		Sender: sender,
		Event: notify.Event{
			Kind:      kind,
			PostID:    post.ID.Hex(),
			PostTitle: post.Title,
			PostImage: post.ImageURL,
			CommentID: strconv.FormatUint(uint64(comment.ID), 10),
			Text:      comment.Text,
		},
		Primary:     []string{recipient},
		Text:        comment.Text,
		MentionKind: notify.KindMention,
		Directory:   snapshot,
	})
}

func commentID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid comment ID")
	}
	return uint(id), nil
}
