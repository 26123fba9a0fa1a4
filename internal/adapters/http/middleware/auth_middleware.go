package middleware

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type Mode string

const (
	ModeNone    Mode = "none"
	ModeAPIKey  Mode = "api_key"
	ModeCognito Mode = "cognito"
)

const (
	UserIDKey    = "user_id"
	UserIDHeader = "X-User-ID"
	APIKeyHeader = "X-API-Key"
)

var publicPaths = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}

func ParseAuthMode(raw string) (Mode, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(raw)))
	switch mode {
	case "":
		return ModeNone, nil
	case ModeNone, ModeAPIKey, ModeCognito:
		return mode, nil
	default:
		return "", fmt.Errorf("invalid auth mode %q", raw)
	}
}

type AuthOptions struct {
	Mode    Mode
	APIKey  string
	Cognito echo.MiddlewareFunc
}

// AuthMiddleware resolves the acting user and stores it under UserIDKey.
// In none and api_key modes the user id is taken from X-User-ID.
func AuthMiddleware(opts AuthOptions) (echo.MiddlewareFunc, error) {
	switch opts.Mode {
	case ModeNone:
	case ModeAPIKey:
		if opts.APIKey == "" {
			return nil, errors.New("api key is required when AUTH_MODE=api_key")
		}
	case ModeCognito:
		if opts.Cognito == nil {
			return nil, errors.New("cognito middleware is required when AUTH_MODE=cognito")
		}
	default:
		return nil, fmt.Errorf("invalid auth mode %q", opts.Mode)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		var cognito echo.HandlerFunc
		if opts.Cognito != nil {
			cognito = opts.Cognito(next)
		}
		return func(c echo.Context) error {
			if publicPaths[c.Request().URL.Path] {
				return next(c)
			}
			switch opts.Mode {
			case ModeCognito:
				return cognito(c)
			case ModeAPIKey:
				got := c.Request().Header.Get(APIKeyHeader)
				if subtle.ConstantTimeCompare([]byte(got), []byte(opts.APIKey)) != 1 {
					return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
				}
			}
			userID := strings.TrimSpace(c.Request().Header.Get(UserIDHeader))
			if userID == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing " + UserIDHeader + " header"})
			}
			c.Set(UserIDKey, userID)
			return next(c)
		}
	}, nil
}

// UserID returns the authenticated user id, or "" when the request is anonymous.
func UserID(c echo.Context) string {
	id, _ := c.Get(UserIDKey).(string)
	return id
}
