package router

import (
	"time"

	"github.com/anonto42/eyewitness/backend/internal/handlers"
	"github.com/anonto42/eyewitness/backend/internal/middleware"
	"github.com/anonto42/eyewitness/backend/internal/notify"
	"github.com/anonto42/eyewitness/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Dependencies are the stores and services the routes are built from. The
// optional ones (Verifier, Images, Reviewer, Stream, Assistant) may be left
// nil; their routes then answer 503 or are not registered.
type Dependencies struct {
	Users         repositories.UserRepository
	Notifications repositories.NotificationRepository
	Posts         repositories.PostRepository
	Comments      repositories.CommentRepository
	CommentLikes  repositories.CommentLikeRepository
	Likes         repositories.LikeRepository

	Notifier  *notify.Notifier
	Verifier  middleware.TokenVerifier
	Images    handlers.ImageUploader
	Reviewer  handlers.PostReviewer
	Stream    handlers.NotificationStream
	Assistant handlers.Assistant

	JWTSecret string
	JWTTTL    time.Duration
	Logger    *zap.Logger
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, d Dependencies) {
	log := d.Logger

	e.GET("/health", handlers.HealthCheck)

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("/api/v1/auth")
	handlers.NewAuthHandler(d.Users, d.Verifier, d.JWTSecret, d.JWTTTL, log).RegisterAuthRoutes(authGroup)
	log.Debug("auth routes configured")

	// --- Protected routes (local JWT or Firebase ID token) ---
	api := e.Group("/api/v1")
	api.Use(middleware.Authenticate(d.JWTSecret, d.Verifier))

	handlers.NewUserHandler(d.Users).RegisterProfileRoutes(api)

	handlers.NewPostHandler(d.Posts, d.Users, d.Images, d.Notifier, d.Reviewer, log).RegisterPostRoutes(api)

	handlers.NewLikeHandler(d.Likes, d.Posts, d.Users, d.Notifier.Dispatcher(), log).RegisterLikeRoutes(api)

	handlers.NewCommentHandler(d.Comments, d.CommentLikes, d.Posts, d.Users, d.Notifier, log).RegisterCommentRoutes(api)

	inbox := notify.NewInbox(d.Notifications, d.Users, log)
	handlers.NewNotificationHandler(inbox, d.Stream, log).RegisterNotificationRoutes(api)

	if d.Assistant != nil {
		handlers.NewAssistantHandler(d.Assistant, log).RegisterAssistantRoutes(api)
	}

	log.Info("routes configured",
		zap.Bool("firebase_auth", d.Verifier != nil),
		zap.Bool("image_uploads", d.Images != nil),
		zap.Bool("live_notifications", d.Stream != nil),
		zap.Bool("assistant", d.Assistant != nil))
}
