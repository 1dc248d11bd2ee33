package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/eyewitness/backend/internal/clients"
	"github.com/anonto42/eyewitness/backend/internal/events"
	"github.com/anonto42/eyewitness/backend/internal/media"
	"github.com/anonto42/eyewitness/backend/internal/models"
	"github.com/anonto42/eyewitness/backend/internal/moderation"
	"github.com/anonto42/eyewitness/backend/internal/notify"
	"github.com/anonto42/eyewitness/backend/internal/realtime"
	"github.com/anonto42/eyewitness/backend/internal/repositories"
	"github.com/anonto42/eyewitness/backend/internal/router"
	"github.com/anonto42/eyewitness/backend/pkg/config"
	"github.com/anonto42/eyewitness/backend/pkg/firebase"
	"github.com/anonto42/eyewitness/backend/pkg/logger"
	"github.com/anonto42/eyewitness/backend/validators"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.InitDB(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("Failed to initialize databases", zap.Error(err))
	}
	defer db.CloseDB()

	if err := db.Postgres.AutoMigrate(
		&models.User{},
		&models.Notification{},
		&models.Comment{},
		&models.Like{},
		&models.CommentLike{},
	); err != nil {
		zl.Fatal("Failed to auto migrate models", zap.Error(err))
	}

	posts := repositories.NewMongoPostRepository(db.Mongo.Database(cfg.MongoDatabase))
	if err := posts.EnsureIndexes(ctx); err != nil {
		zl.Fatal("Failed to create post indexes", zap.Error(err))
	}

	users := repositories.NewPostgresUserRepository(db.Postgres)
	if err := users.EnsureIndexes(ctx); err != nil {
		zl.Fatal("Failed to create user indexes", zap.Error(err))
	}

	deps := router.Dependencies{
		Users:         users,
		Notifications: repositories.NewPostgresNotificationRepository(db.Postgres),
		Posts:         posts,
		Comments:      repositories.NewPostgresCommentRepository(db.Postgres),
		CommentLikes:  repositories.NewPostgresCommentLikeRepository(db.Postgres),
		Likes:         repositories.NewPostgresLikeRepository(db.Postgres),
		JWTSecret:     cfg.JWTSecret,
		JWTTTL:        cfg.JWTTTL,
		Logger:        zl,
	}

	var fb *firebase.App
	if cfg.FirebaseCredentialsPath != "" {
		if fb, err = firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.FirebaseStorageBucket); err != nil {
			zl.Fatal("Failed to initialize Firebase", zap.Error(err))
		}
		deps.Verifier = fb.AuthClient
		if fb.Bucket != nil {
			deps.Images = media.NewImageStore(fb.Bucket, fb.BucketName)
		}
	} else {
		zl.Warn("Firebase is not configured: Firebase login and image uploads are disabled")
	}

	if cfg.StoreDriver == config.StoreFirestore {
		fs, err := fb.Firestore(ctx)
		if err != nil {
			zl.Fatal("Failed to open Firestore", zap.Error(err))
		}
		defer fs.Close()
		deps.Users = repositories.NewFirestoreUserRepository(fs)
		deps.Notifications = repositories.NewFirestoreNotificationRepository(fs)
	}
	zl.Info("profile and notification store selected", zap.String("driver", cfg.StoreDriver))

	opts := []notify.Option{notify.WithConcurrency(cfg.DispatchConcurrency)}
	if cfg.DispatchIdempotent {
		opts = append(opts, notify.WithIdempotency())
	}
	if db.Redis != nil {
		hub := realtime.NewRedisHub(db.Redis, zl)
		opts = append(opts, notify.WithSinks(hub))
		deps.Stream = hub
	}
	if len(cfg.KafkaBrokers) > 0 {
		sink := events.NewKafkaSink(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic), zl)
		defer sink.Close()
		opts = append(opts, notify.WithSinks(sink))
	}
	dispatcher := notify.NewDispatcher(deps.Users, deps.Notifications, zl, opts...)
	deps.Notifier = notify.NewNotifier(dispatcher, zl)

	outcomes := moderation.NewOutcomes(dispatcher, deps.Users, cfg.TagMatchRadiusKm, zl)
	deps.Reviewer = moderation.NewReviewer(
		clients.NewModerationClient(cfg.ModerationURL, cfg.ModerationTimeout),
		posts, outcomes, !cfg.ModerationWatch, zl)
	if cfg.ModerationWatch {
		watcher := moderation.NewWatcher(posts, outcomes, zl)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				zl.Error("verification watcher stopped", zap.Error(err))
			}
		}()
	}

	if cfg.ChatbotURL != "" {
		deps.Assistant = clients.NewChatbotClient(cfg.ChatbotURL, 0)
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()
	config.SetupMiddleware(e, zl)
	router.SetupRoutes(e, deps)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Error("Graceful shutdown failed", zap.Error(err))
	}
}
