package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/anonto42/eyewitness/backend/internal/directory"
	"github.com/anonto42/eyewitness/backend/internal/middleware"
	"github.com/anonto42/eyewitness/backend/internal/models"
	"github.com/anonto42/eyewitness/backend/internal/notify"
	"github.com/anonto42/eyewitness/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// currentUserID returns the authenticated uid or a 401.
func currentUserID(c echo.Context) (string, error) {
	uid := middleware.UserID(c)
	if uid == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	return uid, nil
}

// bindAndValidate binds the request into req and runs e.Validator on it.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	return nil
}

// storeError maps repository errors to HTTP errors.
func storeError(err error, notFound string) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, notFound)
	case errors.Is(err, repositories.ErrAlreadyExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// pagination reads page and limit query params with defaults.
func pagination(c echo.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	return page, limit
}

// detached keeps request values but survives the client hanging up, so
// notifications already being written are not cut off.
func detached(c echo.Context) context.Context {
	return context.WithoutCancel(c.Request().Context())
}

// actorFor loads the profile behind uid as a notification actor. A missing
// profile still yields an actor carrying the uid.
func actorFor(ctx context.Context, users repositories.UserRepository, uid string) (notify.Actor, *models.User) {
	user, err := users.GetUserByID(ctx, uid)
	if err != nil {
		return notify.Actor{ID: uid}, nil
	}
	return notify.Actor{ID: uid, Name: user.DisplayName, AvatarURL: user.PhotoURL}, user
}

// loadDirectory snapshots the user directory for mention resolution.
func loadDirectory(ctx context.Context, users repositories.UserRepository) (*directory.Snapshot, error) {
	entries, err := users.ListDirectory(ctx)
	if err != nil {
		return nil, err
	}
	return directory.New(entries), nil
}

// HealthCheck reports liveness.
func HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "eyewitness-api",
	})
}
