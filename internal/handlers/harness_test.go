package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anonto42/eyewitness/backend/internal/middleware"
	"github.com/anonto42/eyewitness/backend/internal/models"
	"github.com/anonto42/eyewitness/backend/internal/notify"
	"github.com/anonto42/eyewitness/backend/validators"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testUserHeader = "X-Test-User"

// env wires handlers onto in-memory stores.
type env struct {
	e        *echo.Echo
	api      *echo.Group
	users    *memUsers
	notes    *memNotifications
	posts    *memPosts
	comments *memComments
	likes    *memLikes
	notifier *notify.Notifier
}

func newEnv(t *testing.T, users ...models.User) *env {
	t.Helper()
	e := echo.New()
	e.Validator = validators.NewValidator()

	v := &env{
		e:        e,
		users:    newMemUsers(users...),
		notes:    &memNotifications{},
		posts:    newMemPosts(),
		comments: newMemComments(),
		likes:    newMemLikes(),
	}
	v.notifier = notify.NewNotifier(notify.NewDispatcher(v.users, v.notes, zap.NewNop()), zap.NewNop())

	v.api = e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if uid := c.Request().Header.Get(testUserHeader); uid != "" {
				c.Set(middleware.UserIDKey, uid)
			}
			return next(c)
		}
	})
	return v
}

func (v *env) do(t *testing.T, method, path, uid string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = strings.NewReader(string(b))
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return v.send(req, uid)
}

func (v *env) send(req *http.Request, uid string) *httptest.ResponseRecorder {
	if uid != "" {
		req.Header.Set(testUserHeader, uid)
	}
	rec := httptest.NewRecorder()
	v.e.ServeHTTP(rec, req)
	return rec
}

// decode unmarshals the "data" field of a success envelope.
func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

var (
	alice = models.User{ID: "u-alice", DisplayName: "Alice", Email: "alice@example.com", PhotoURL: "https://img/alice.png"}
	bob   = models.User{ID: "u-bob", DisplayName: "Bob", Email: "bob@example.com"}
	carol = models.User{ID: "u-carol", DisplayName: "Carol Danvers", Nickname: "carol", Email: "carol@example.com"}
)

func decodeRaw(rec *httptest.ResponseRecorder, out interface{}) error {
	return json.Unmarshal(rec.Body.Bytes(), out)
}
