package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/eyewitness/backend/internal/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error) {
	args := m.Called(ctx, idToken)
	if args.Get(0) != nil {
		return args.Get(0).(*auth.Token), args.Error(1)
	}
	return nil, args.Error(1)
}

func signed(t *testing.T, uid, key string, exp time.Time) string {
	t.Helper()
	claims := &models.JwtCustomClaims{
		UserID: uid,
		Email:  uid + "@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func run(t *testing.T, mw echo.MiddlewareFunc, header, target string) (string, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	c := e.NewContext(req, httptest.NewRecorder())

	var uid string
	err := mw(func(c echo.Context) error {
		uid = UserID(c)
		return nil
	})(c)
	return uid, err
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	require.True(t, errors.As(err, &he), "expected echo.HTTPError, got %v", err)
	return he.Code
}

func TestJWTAuthMiddleware(t *testing.T) {
	mw := JWTAuthMiddleware(secret)

	uid, err := run(t, mw, "Bearer "+signed(t, "u-bob", secret, time.Now().Add(time.Hour)), "/")
	require.NoError(t, err)
	assert.Equal(t, "u-bob", uid)

	_, err = run(t, mw, "Bearer "+signed(t, "u-bob", "other", time.Now().Add(time.Hour)), "/")
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))

	_, err = run(t, mw, "Bearer "+signed(t, "u-bob", secret, time.Now().Add(-time.Minute)), "/")
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))

	_, err = run(t, mw, "", "/")
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))

	_, err = run(t, mw, "Token abc", "/")
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

func TestJWTAuthMiddleware_QueryToken(t *testing.T) {
	uid, err := run(t, JWTAuthMiddleware(secret), "", "/stream?access_token="+signed(t, "u-carol", secret, time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "u-carol", uid)
}

func TestFirebaseAuthMiddleware(t *testing.T) {
	v := new(MockVerifier)
	v.On("VerifyIDToken", mock.Anything, "good").Return(&auth.Token{UID: "fb-1"}, nil)
	v.On("VerifyIDToken", mock.Anything, "bad").Return(nil, errors.New("expired"))
	mw := FirebaseAuthMiddleware(v)

	uid, err := run(t, mw, "Bearer good", "/")
	require.NoError(t, err)
	assert.Equal(t, "fb-1", uid)

	_, err = run(t, mw, "Bearer bad", "/")
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
	v.AssertExpectations(t)
}

func TestAuthenticate(t *testing.T) {
	v := new(MockVerifier)
	v.On("VerifyIDToken", mock.Anything, "firebase-token").Return(&auth.Token{UID: "fb-2"}, nil)
	v.On("VerifyIDToken", mock.Anything, "garbage").Return(nil, errors.New("malformed"))
	mw := Authenticate(secret, v)

	uid, err := run(t, mw, "Bearer "+signed(t, "u-bob", secret, time.Now().Add(time.Hour)), "/")
	require.NoError(t, err)
	assert.Equal(t, "u-bob", uid)

	uid, err = run(t, mw, "Bearer firebase-token", "/")
	require.NoError(t, err)
	assert.Equal(t, "fb-2", uid)

	_, err = run(t, mw, "Bearer garbage", "/")
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))

	_, err = run(t, Authenticate(secret, nil), "Bearer firebase-token", "/")
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}
