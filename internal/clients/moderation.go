// Package clients talks to the external services the backend depends on:
// content moderation and the location-aware assistant.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// DefaultModerationTimeout bounds a verification request.
const DefaultModerationTimeout = 10 * time.Second

// Verdict is the moderation result, when the service answers synchronously.
// Status is empty when the service only acknowledged the request.
type Verdict struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// ModerationClient submits new posts for content verification.
type ModerationClient struct {
	url  string
	http *http.Client
}

// NewModerationClient creates a ModerationClient posting to url.
func NewModerationClient(url string, timeout time.Duration) *ModerationClient {
	if timeout <= 0 {
		timeout = DefaultModerationTimeout
	}
	return &ModerationClient{url: url, http: &http.Client{Timeout: timeout}}
}

// Enabled reports whether a moderation endpoint is configured.
func (c *ModerationClient) Enabled() bool {
	return c != nil && c.url != ""
}

// Verify sends the image and text of a post as a multipart form.
func (c *ModerationClient) Verify(ctx context.Context, image []byte, filename, title, caption string) (*Verdict, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(image); err != nil {
		return nil, err
	}
	if err := w.WriteField("title", title); err != nil {
		return nil, err
	}
	if err := w.WriteField("caption", caption); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("moderation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("moderation service returned %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var v Verdict
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode moderation response: %w", err)
		}
	}
	return &v, nil
}
