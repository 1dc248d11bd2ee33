package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/anonto42/eyewitness/backend/internal/clients"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Assistant answers questions about what is happening around the user.
type Assistant interface {
	Ask(ctx context.Context, userID, question string, lat, lng float64) (string, error)
	History(ctx context.Context, userID string) ([]clients.HistoryEntry, error)
	ClearHistory(ctx context.Context, userID string) error
}

// AskRequest is a question for the assistant
type AskRequest struct {
	Question  string  `json:"question" validate:"required,min=1,max=1000"`
	Latitude  float64 `json:"lat" validate:"latitude"`
	Longitude float64 `json:"lng" validate:"longitude"`
}

type historyMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// AssistantHandler proxies the chat assistant
type AssistantHandler struct {
	assistant Assistant
	logger    *zap.Logger
}

// NewAssistantHandler creates a new AssistantHandler
func NewAssistantHandler(assistant Assistant, logger *zap.Logger) *AssistantHandler {
	return &AssistantHandler{assistant: assistant, logger: logger}
}

// RegisterAssistantRoutes registers assistant routes
func (h *AssistantHandler) RegisterAssistantRoutes(g *echo.Group) {
	g.POST("/assistant/chat", h.Ask)
	g.GET("/assistant/history", h.History)
	g.DELETE("/assistant/history", h.ClearHistory)
}

// Ask forwards a question with the caller's position
func (h *AssistantHandler) Ask(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req AskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	answer, err := h.assistant.Ask(c.Request().Context(), uid, strings.TrimSpace(req.Question), req.Latitude, req.Longitude)
	if err != nil {
		return h.upstreamError(uid, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"answer": answer}})
}

// History returns the stored conversation
func (h *AssistantHandler) History(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}

	entries, err := h.assistant.History(c.Request().Context(), uid)
	if err != nil {
		return h.upstreamError(uid, err)
	}
	out := make([]historyMessage, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyMessage{Role: e.Role, Text: e.Text()})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": out})
}

// ClearHistory forgets the stored conversation
func (h *AssistantHandler) ClearHistory(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	if err := h.assistant.ClearHistory(c.Request().Context(), uid); err != nil {
		return h.upstreamError(uid, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AssistantHandler) upstreamError(uid string, err error) error {
	h.logger.Warn("assistant request failed", zap.String("user_id", uid), zap.Error(err))
	return echo.NewHTTPError(http.StatusBadGateway, "Assistant is unavailable")
}
