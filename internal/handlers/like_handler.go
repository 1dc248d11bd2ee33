package handlers

import (
	"errors"
	"net/http"

	"github.com/anonto42/eyewitness/backend/internal/models"
	"github.com/anonto42/eyewitness/backend/internal/notify"
	"github.com/anonto42/eyewitness/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// LikeHandler handles likes and eyewitness marks on posts
type LikeHandler struct {
	likeRepository repositories.LikeRepository
	postRepository repositories.PostRepository
	userRepository repositories.UserRepository
	dispatcher     *notify.Dispatcher
	logger         *zap.Logger
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(likeRepo repositories.LikeRepository, postRepo repositories.PostRepository, userRepo repositories.UserRepository, dispatcher *notify.Dispatcher, logger *zap.Logger) *LikeHandler {
	return &LikeHandler{
		likeRepository: likeRepo,
		postRepository: postRepo,
		userRepository: userRepo,
		dispatcher:     dispatcher,
		logger:         logger,
	}
}

// RegisterLikeRoutes registers like-related routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group) {
	g.POST("/posts/:post_id/likes", h.LikePost)
	g.DELETE("/posts/:post_id/likes", h.UnlikePost)
	g.GET("/posts/:post_id/likes/count", h.GetLikesCountForPost)
	g.GET("/posts/:post_id/likes/status", h.GetUserLikeStatusForPost)
	g.POST("/posts/:post_id/eyewitness", h.ToggleEyewitness)
}

// LikePost handles liking a post
func (h *LikeHandler) LikePost(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	postID := c.Param("post_id")

	post, err := h.postRepository.GetPostByID(ctx, postID)
	if err != nil {
		return storeError(err, "Post not found")
	}

	like := &models.Like{PostID: postID, UserID: uid}
	if err := h.likeRepository.CreateLike(ctx, like); err != nil {
		if errors.Is(err, repositories.ErrAlreadyExists) {
			return echo.NewHTTPError(http.StatusConflict, "Post already liked by this user")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if err := h.postRepository.IncrementLikes(ctx, postID, 1); err != nil {
		h.logger.Warn("post like counter not updated", zap.String("post_id", postID), zap.Error(err))
	}
	h.notifyOwner(c, uid, post, notify.KindLike)

	return c.JSON(http.StatusCreated, like)
}

// UnlikePost handles unliking a post
func (h *LikeHandler) UnlikePost(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	postID := c.Param("post_id")

	post, err := h.postRepository.GetPostByID(ctx, postID)
	if err != nil {
		return storeError(err, "Post not found")
	}

	if err := h.likeRepository.DeleteLike(ctx, postID, uid); err != nil {
		return storeError(err, "Like not found")
	}

	if err := h.postRepository.IncrementLikes(ctx, postID, -1); err != nil {
		h.logger.Warn("post like counter not updated", zap.String("post_id", postID), zap.Error(err))
	}
	h.notifyOwner(c, uid, post, notify.KindUnlike)

	return c.NoContent(http.StatusNoContent)
}

// GetLikesCountForPost retrieves the total number of likes for a specific post
func (h *LikeHandler) GetLikesCountForPost(c echo.Context) error {
	postID := c.Param("post_id")

	count, err := h.likeRepository.GetLikesCountByPostID(c.Request().Context(), postID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"post_id": postID, "likes_count": count})
}

// GetUserLikeStatusForPost checks if the authenticated user has liked a specific post
func (h *LikeHandler) GetUserLikeStatusForPost(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	postID := c.Param("post_id")

	hasLiked, err := h.likeRepository.HasUserLikedPost(c.Request().Context(), postID, uid)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"post_id": postID, "user_id": uid, "has_liked": hasLiked})
}

// ToggleEyewitness marks the caller as an eyewitness of a post, or removes
// the mark when it is already set.
func (h *LikeHandler) ToggleEyewitness(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	postID := c.Param("post_id")

	post, err := h.postRepository.GetPostByID(ctx, postID)
	if err != nil {
		return storeError(err, "Post not found")
	}

	marked := !models.Has(post.EyewitnessedBy, uid)
	kind := notify.KindEyewitness
	var changed bool
	if marked {
		changed, err = h.postRepository.AddEyewitness(ctx, postID, uid)
	} else {
		kind = notify.KindRemoveEyewitness
		changed, err = h.postRepository.RemoveEyewitness(ctx, postID, uid)
	}
	if err != nil {
		return storeError(err, "Post not found")
	}

	count := post.Eyewitnesses
	if changed {
		if marked {
			count++
		} else {
			count--
		}
		h.notifyOwner(c, uid, post, kind)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"post_id":      postID,
		"eyewitnessed": marked,
		"eyewitnesses": count,
	})
}

func (h *LikeHandler) notifyOwner(c echo.Context, uid string, post *models.Post, kind notify.Kind) {
	ctx := detached(c)
	sender, _ := actorFor(ctx, h.userRepository, uid)
	h.dispatcher.Dispatch(ctx, sender, []string{post.CreatorID}, notify.Event{
		Kind:      kind,
		PostID:    post.ID.Hex(),
		PostTitle: post.Title,
		PostImage: post.ImageURL,
	})
}
