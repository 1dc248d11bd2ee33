package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/anonto42/eyewitness/backend/internal/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	// UserIDKey holds the authenticated user's uid in the Echo context.
	UserIDKey        = "uid"
	claimsKey        = "user"
	firebaseTokenKey = "firebaseToken"
)

var errInvalidToken = errors.New("invalid token")

// UserID returns the uid set by the auth middlewares.
func UserID(c echo.Context) string {
	uid, _ := c.Get(UserIDKey).(string)
	return uid
}

// JWTAuthMiddleware checks for a valid JWT and extracts user claims.
func JWTAuthMiddleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := bearerToken(c)
			if err != nil {
				return err
			}

			claims, err := ParseJWT(tokenString, secret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			c.Set(claimsKey, claims)
			c.Set(UserIDKey, claims.UserID)
			return next(c)
		}
	}
}

// Authenticate accepts either a local JWT or a Firebase ID token. A nil
// verifier disables Firebase tokens.
func Authenticate(secret string, verifier TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := bearerToken(c)
			if err != nil {
				return err
			}

			if claims, err := ParseJWT(tokenString, secret); err == nil {
				c.Set(claimsKey, claims)
				c.Set(UserIDKey, claims.UserID)
				return next(c)
			}

			if verifier == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}
			token, err := verifier.VerifyIDToken(c.Request().Context(), tokenString)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}
			c.Set(firebaseTokenKey, token)
			c.Set(UserIDKey, token.UID)
			return next(c)
		}
	}
}

// ParseJWT validates an HS256 token and returns its claims.
func ParseJWT(tokenString, secret string) (*models.JwtCustomClaims, error) {
	claims := &models.JwtCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == "" {
		return nil, errInvalidToken
	}
	return claims, nil
}

// bearerToken reads "Authorization: Bearer <token>". Streams opened with
// EventSource cannot set headers, so access_token in the query is accepted too.
func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		if t := c.QueryParam("access_token"); t != "" {
			return t, nil
		}
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
	}
	return parts[1], nil
}
