package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anonto42/eyewitness/backend/internal/directory"
	"github.com/anonto42/eyewitness/backend/internal/mentions"
	"github.com/anonto42/eyewitness/backend/internal/models"
	"github.com/anonto42/eyewitness/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// UserHandler handles HTTP requests related to users
type UserHandler struct {
	userRepository repositories.UserRepository
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userRepo repositories.UserRepository) *UserHandler {
	return &UserHandler{userRepository: userRepo}
}

// RegisterProfileRoutes registers user profile-related routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/profile", h.GetProfile)
	g.PUT("/profile", h.UpdateProfile)
	g.GET("/users/directory", h.GetDirectory)
	g.GET("/users/search", h.SearchUsers)
	g.GET("/users/suggest", h.SuggestUsers)
	g.GET("/users/:id", h.GetUser)
}

// GetUser returns another user's public profile
func (h *UserHandler) GetUser(c echo.Context) error {
	user, err := h.userRepository.GetUserByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "User profile not found")
	}
	return c.JSON(http.StatusOK, user.ToDirectoryEntry())
}

// GetProfile retrieves the authenticated user's profile
func (h *UserHandler) GetProfile(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	user, err := h.userRepository.GetUserByID(c.Request().Context(), uid)
	if err != nil {
		return storeError(err, "User profile not found")
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateProfile updates the authenticated user's profile; onboarding uses it too.
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req models.UpdateUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return echo.NewHTTPError(http.StatusBadRequest, "latitude and longitude must be set together")
	}

	ctx := c.Request().Context()
	user, err := h.userRepository.GetUserByID(ctx, uid)
	if err != nil {
		return storeError(err, "User profile not found")
	}

	applyProfileUpdate(user, &req)
	user.UpdatedAt = time.Now().UTC()

	if req.Nickname != nil {
		taken, err := h.userRepository.AliasInUse(ctx, user.Nickname, uid, true)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if taken {
			return echo.NewHTTPError(http.StatusConflict, "Nickname is already taken")
		}
	}
	if req.DisplayName != nil {
		taken, err := h.userRepository.AliasInUse(ctx, user.DisplayName, uid, false)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if taken {
			return echo.NewHTTPError(http.StatusConflict, "Display name is another user's nickname")
		}
	}

	if err := h.userRepository.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrAlreadyExists) {
			return echo.NewHTTPError(http.StatusConflict, "Nickname is already taken")
		}
		return storeError(err, "User profile not found")
	}
	return c.JSON(http.StatusOK, user)
}

func applyProfileUpdate(user *models.User, req *models.UpdateUserRequest) {
	if req.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if req.Nickname != nil {
		user.Nickname = strings.TrimSpace(*req.Nickname)
	}
	if req.PhotoURL != nil {
		user.PhotoURL = *req.PhotoURL
	}
	if req.Interests != nil {
		user.Interests = models.Tags(normalizeTags(req.Interests))
	}
	if req.Latitude != nil && req.Longitude != nil {
		user.Latitude = req.Latitude
		user.Longitude = req.Longitude
	}
	if req.TagRadiusKm != nil {
		user.TagRadiusKm = *req.TagRadiusKm
	}
	if req.Onboarded != nil {
		user.Onboarded = *req.Onboarded
	}
}

// GetDirectory returns the directory snapshot used to compose mentions
func (h *UserHandler) GetDirectory(c echo.Context) error {
	entries, err := h.userRepository.ListDirectory(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": entries})
}

// SearchUsers searches for users by a query string (email or name)
func (h *UserHandler) SearchUsers(c echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Search query 'q' is required")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}

	users, err := h.userRepository.SearchUsers(c.Request().Context(), query, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	results := make([]models.DirectoryEntry, len(users))
	for i := range users {
		results[i] = users[i].ToDirectoryEntry()
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": results})
}

// suggestion is one row of the tag-user and mention dropdowns. Text and Caret
// preview the compose box after picking the row.
type suggestion struct {
	models.DirectoryEntry
	Handle string `json:"handle,omitempty"`
	Text   string `json:"text,omitempty"`
	Caret  int    `json:"caret,omitempty"`
}

// SuggestUsers backs the tag-user and mention dropdowns: display names or
// nicknames containing q, minus the users already tagged (exclude, comma
// separated) and the caller. With text (and caret, a rune offset defaulting to
// the end) the query is the mention being typed before the caret, and each row
// carries the completed text.
func (h *UserHandler) SuggestUsers(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	query := c.QueryParam("q")
	text := c.QueryParam("text")
	caret := len([]rune(text))
	if text != "" {
		if raw := c.QueryParam("caret"); raw != "" {
			if caret, err = strconv.Atoi(raw); err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "caret must be a number")
			}
		}
		active, ok := mentions.ActiveQuery(text, caret)
		if !ok {
			return c.JSON(http.StatusOK, echo.Map{"success": true, "data": []suggestion{}})
		}
		query = active
	}

	snapshot, err := loadDirectory(ctx, h.userRepository)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	exclude := map[string]struct{}{uid: {}}
	for _, id := range strings.Split(c.QueryParam("exclude"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			exclude[id] = struct{}{}
		}
	}

	entries := snapshot.Suggest(query, exclude, directory.DefaultSuggestLimit)
	rows := make([]suggestion, 0, len(entries))
	for _, e := range entries {
		row := suggestion{DirectoryEntry: e, Handle: directory.Handle(e)}
		if text != "" && row.Handle != "" {
			row.Text, row.Caret = mentions.Complete(text, caret, row.Handle)
		}
		rows = append(rows, row)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": rows})
}
