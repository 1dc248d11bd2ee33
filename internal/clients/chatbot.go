package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrEmptyAnswer is returned when the assistant replies without text.
var ErrEmptyAnswer = errors.New("invalid response from assistant")

// HistoryEntry is one turn of the stored conversation.
type HistoryEntry struct {
	Role  string `json:"role"`
	Parts []struct {
		Text string `json:"text"`
	} `json:"parts"`
}

// Text returns the first part of the turn.
func (h HistoryEntry) Text() string {
	if len(h.Parts) == 0 {
		return ""
	}
	return h.Parts[0].Text
}

// ChatbotClient talks to the location-aware assistant.
type ChatbotClient struct {
	baseURL string
	http    *http.Client
}

// NewChatbotClient creates a ChatbotClient.
func NewChatbotClient(baseURL string, timeout time.Duration) *ChatbotClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChatbotClient{baseURL: strings.TrimRight(baseURL, "/"), http: &http.Client{Timeout: timeout}}
}

// Ask sends a question together with the asker's position.
func (c *ChatbotClient) Ask(ctx context.Context, userID, question string, lat, lng float64) (string, error) {
	q := url.Values{}
	q.Set("question", question)
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("long", strconv.FormatFloat(lng, 'f', -1, 64))
	if userID != "" {
		q.Set("user_id", userID)
	}

	var out struct {
		Response string `json:"response"`
	}
	if err := c.do(ctx, http.MethodPost, "/chat?"+q.Encode(), &out); err != nil {
		return "", err
	}
	if out.Response == "" {
		return "", ErrEmptyAnswer
	}
	return out.Response, nil
}

// History returns the stored conversation for userID.
func (c *ChatbotClient) History(ctx context.Context, userID string) ([]HistoryEntry, error) {
	var out struct {
		Status  string         `json:"status"`
		History []HistoryEntry `json:"history"`
	}
	if err := c.do(ctx, http.MethodGet, "/user/history?"+userQuery(userID), &out); err != nil {
		return nil, err
	}
	if out.Status != "success" {
		return []HistoryEntry{}, nil
	}
	return out.History, nil
}

// ClearHistory drops the stored conversation for userID.
func (c *ChatbotClient) ClearHistory(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, "/user/history?"+userQuery(userID), nil)
}

func userQuery(userID string) string {
	return url.Values{"user_id": []string{userID}}.Encode()
}

func (c *ChatbotClient) do(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("assistant request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("assistant returned %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode assistant response: %w", err)
	}
	return nil
}
