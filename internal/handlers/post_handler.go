package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anonto42/eyewitness/backend/internal/directory"
	"github.com/anonto42/eyewitness/backend/internal/media"
	"github.com/anonto42/eyewitness/backend/internal/middleware"
	"github.com/anonto42/eyewitness/backend/internal/models"
	"github.com/anonto42/eyewitness/backend/internal/notify"
	"github.com/anonto42/eyewitness/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	defaultNearbyRadiusKm = 10
	defaultNearbyLimit    = 50
)

// ImageUploader stores post images.
type ImageUploader interface {
	Upload(ctx context.Context, userID string, data []byte) (*media.Image, error)
	DeleteURL(ctx context.Context, rawURL string) error
}

// PostReviewer submits a stored post for content verification.
type PostReviewer interface {
	Review(ctx context.Context, post models.Post, image []byte, filename string)
}

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	postRepository repositories.PostRepository
	userRepository repositories.UserRepository
	images         ImageUploader
	notifier       *notify.Notifier
	reviewer       PostReviewer
	logger         *zap.Logger

	now   func() time.Time
	async func(func())
}

// NewPostHandler creates a new PostHandler. images and reviewer may be nil.
func NewPostHandler(postRepo repositories.PostRepository, userRepo repositories.UserRepository, images ImageUploader, notifier *notify.Notifier, reviewer PostReviewer, logger *zap.Logger) *PostHandler {
	return &PostHandler{
		postRepository: postRepo,
		userRepository: userRepo,
		images:         images,
		notifier:       notifier,
		reviewer:       reviewer,
		logger:         logger,
		now:            time.Now,
		async:          func(f func()) { go f() },
	}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.POST("/posts", h.CreatePost)
	g.GET("/posts/nearby", h.GetNearbyPosts)
	g.GET("/posts/mine", h.GetMyPosts)
	g.GET("/posts/:id", h.GetPost)
	g.DELETE("/posts/:id", h.DeletePost)
}

// CreatePost stores a new post, notifies its creator and tagged or mentioned
// users, then hands it to moderation.
func (h *PostHandler) CreatePost(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req models.CreatePostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	file, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Image is required")
	}
	if h.images == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Image storage is not configured")
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Unable to read image")
	}
	data, err := io.ReadAll(io.LimitReader(src, media.MaxImageBytes+1))
	src.Close()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Unable to read image")
	}

	ctx := c.Request().Context()
	img, err := h.images.Upload(ctx, uid, data)
	if err != nil {
		return imageError(err)
	}

	sender, _ := actorFor(ctx, h.userRepository, uid)
	snapshot, err := loadDirectory(ctx, h.userRepository)
	if err != nil {
		h.logger.Warn("directory unavailable, tags unchecked and caption mentions skipped", zap.Error(err))
	}
	now := h.now().UTC()
	post := &models.Post{
		Title:              strings.TrimSpace(req.Title),
		Caption:            strings.TrimSpace(req.Caption),
		Tags:               normalizeTags(req.Tags),
		DurationHours:      req.DurationHours,
		IsAnonymous:        req.IsAnonymous,
		ImageURL:           img.URL,
		CreatorID:          uid,
		Location:           models.NewGeoPoint(req.Latitude, req.Longitude),
		CreatedAt:          now,
		ExpiresAt:          now.Add(time.Duration(req.DurationHours) * time.Hour),
		EyewitnessedBy:     []string{},
		VerificationStatus: models.VerificationNone,
		TaggedUserIDs:      taggedUsers(snapshot, uid, req.TaggedUserIDs),
	}
	if req.IsAnonymous {
		sender = notify.Anonymously(uid)
	} else {
		post.Username = sender.Name
		post.UserAvatar = sender.AvatarURL
	}

	if err := h.postRepository.CreatePost(ctx, post); err != nil {
		if derr := h.images.DeleteURL(detached(c), img.URL); derr != nil {
			h.logger.Warn("orphaned post image", zap.String("url", img.URL), zap.Error(derr))
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	bg := detached(c)
	ev := notify.Event{
		Kind:      notify.KindPostPending,
		PostID:    post.ID.Hex(),
		PostTitle: post.Title,
		PostImage: post.ImageURL,
	}
	h.notifier.Dispatcher().Dispatch(bg, notify.System, []string{uid}, ev)

	ev.Kind = notify.KindTaggedInPost
	out := h.notifier.Notify(bg, notify.Request{
		Sender:      sender,
		Event:       ev,
		Primary:     post.TaggedUserIDs,
		Text:        post.Caption,
		MentionKind: notify.KindTaggedInPost,
		Directory:   snapshot,
	})

	if h.reviewer != nil {
		stored := *post
		h.async(func() { h.reviewer.Review(bg, stored, data, file.Filename) })
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"data":    post,
		"meta": echo.Map{
			"notified":          out.Delivered(),
			"failed":            len(out.Failed()),
			"unresolvedMention": out.Unresolved,
		},
	})
}

// GetPost retrieves a post by ID. Posts awaiting or failing verification are
// only shown to their creator.
func (h *PostHandler) GetPost(c echo.Context) error {
	post, err := h.postRepository.GetPostByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "Post not found")
	}
	viewer := middleware.UserID(c)
	if !post.IsVisible && post.CreatorID != viewer {
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": publicView(*post, viewer)})
}

// GetNearbyPosts returns visible, unexpired posts around a point
func (h *PostHandler) GetNearbyPosts(c echo.Context) error {
	var q models.NearbyQuery
	if err := bindAndValidate(c, &q); err != nil {
		return err
	}
	if q.RadiusKm == 0 {
		q.RadiusKm = defaultNearbyRadiusKm
	}
	if q.Limit == 0 {
		q.Limit = defaultNearbyLimit
	}

	posts, err := h.postRepository.GetNearbyPosts(c.Request().Context(), q.Latitude, q.Longitude, q.RadiusKm, q.Limit, h.now())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	viewer := middleware.UserID(c)
	for i := range posts {
		posts[i] = publicView(posts[i], viewer)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": posts})
}

// GetMyPosts lists the caller's posts, newest first
func (h *PostHandler) GetMyPosts(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	skip, _ := strconv.ParseInt(c.QueryParam("skip"), 10, 64)
	limit, _ := strconv.ParseInt(c.QueryParam("limit"), 10, 64)
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	if skip < 0 {
		skip = 0
	}

	posts, err := h.postRepository.GetPostsByCreator(c.Request().Context(), uid, skip, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": posts})
}

// DeletePost deletes a post and its image
func (h *PostHandler) DeletePost(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	postID := c.Param("id")

	post, err := h.postRepository.GetPostByID(ctx, postID)
	if err != nil {
		return storeError(err, "Post not found")
	}
	if post.CreatorID != uid {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to delete this post")
	}

	if err := h.postRepository.DeletePost(ctx, postID); err != nil {
		return storeError(err, "Post not found")
	}
	if h.images != nil {
		if err := h.images.DeleteURL(detached(c), post.ImageURL); err != nil {
			h.logger.Warn("post image not removed", zap.String("post_id", postID), zap.Error(err))
		}
	}

	return c.NoContent(http.StatusNoContent)
}

// taggedUsers keeps the tagged identities found in the directory, minus the
// creator and repeats. Without a directory every identity is kept.
func taggedUsers(snapshot *directory.Snapshot, creatorID string, ids []string) []string {
	tagged := notify.NewRecipientSet(creatorID)
	for _, id := range ids {
		if _, ok := snapshot.Lookup(id); ok || snapshot == nil {
			tagged.Add(id)
		}
	}
	return tagged.IDs()
}

// publicView drops the creator of an anonymous post for everyone but the creator.
func publicView(post models.Post, viewer string) models.Post {
	if post.IsAnonymous && post.CreatorID != viewer {
		post.CreatorID = ""
	}
	return post
}

func imageError(err error) error {
	switch {
	case errors.Is(err, media.ErrImageTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, media.ErrNotAnImage), errors.Is(err, media.ErrEmptyImage):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to upload image")
	}
}

// normalizeTags lower-cases post tags and profile interests, strips a leading
// '#' and drops blanks and repeats, so every store matches them the same way.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "#")))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
