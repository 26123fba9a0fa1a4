package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, mw echo.MiddlewareFunc, req *http.Request) (*httptest.ResponseRecorder, string, bool) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen string
	called := false
	h := mw(func(c echo.Context) error {
		called = true
		seen = UserID(c)
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	return rec, seen, called
}

func TestAuthMiddleware_None(t *testing.T) {
	mw, err := AuthMiddleware(AuthOptions{Mode: ModeNone})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/companies", nil)
	req.Header.Set(UserIDHeader, "u1")
	_, userID, called := serve(t, mw, req)

	assert.True(t, called)
	assert.Equal(t, "u1", userID)
}

func TestAuthMiddleware_NoneRequiresUserHeader(t *testing.T) {
	mw, err := AuthMiddleware(AuthOptions{Mode: ModeNone})
	require.NoError(t, err)

	rec, _, called := serve(t, mw, httptest.NewRequest(http.MethodGet, "/companies", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_PublicPathsSkipAuth(t *testing.T) {
	mw, err := AuthMiddleware(AuthOptions{Mode: ModeAPIKey, APIKey: "secret"})
	require.NoError(t, err)

	_, userID, called := serve(t, mw, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.True(t, called)
	assert.Empty(t, userID)
}

func TestAuthMiddleware_APIKey(t *testing.T) {
	mw, err := AuthMiddleware(AuthOptions{Mode: ModeAPIKey, APIKey: "secret"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/sales", nil)
	req.Header.Set(APIKeyHeader, "secret")
	req.Header.Set(UserIDHeader, "u2")
	_, userID, called := serve(t, mw, req)
	assert.True(t, called)
	assert.Equal(t, "u2", userID)

	bad := httptest.NewRequest(http.MethodGet, "/sales", nil)
	bad.Header.Set(APIKeyHeader, "wrong")
	bad.Header.Set(UserIDHeader, "u2")
	rec, _, called := serve(t, mw, bad)
	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_APIKeyRequiresKey(t *testing.T) {
	mw, err := AuthMiddleware(AuthOptions{Mode: ModeAPIKey})
	assert.Nil(t, mw)
	assert.Error(t, err)
}

func TestAuthMiddleware_Cognito(t *testing.T) {
	cognitoCalled := false
	mockCognito := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cognitoCalled = true
			c.Set(UserIDKey, "sub-1")
			return next(c)
		}
	}

	mw, err := AuthMiddleware(AuthOptions{Mode: ModeCognito, Cognito: mockCognito})
	require.NoError(t, err)

	_, userID, _ := serve(t, mw, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, cognitoCalled)
	assert.Equal(t, "sub-1", userID)
}

func TestAuthMiddleware_CognitoRequiresMiddleware(t *testing.T) {
	mw, err := AuthMiddleware(AuthOptions{Mode: ModeCognito})
	assert.Nil(t, mw)
	assert.Error(t, err)
}

func TestParseAuthMode(t *testing.T) {
	mode, err := ParseAuthMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeNone, mode)

	mode, err = ParseAuthMode("API_KEY")
	require.NoError(t, err)
	assert.Equal(t, ModeAPIKey, mode)

	_, err = ParseAuthMode("invalid")
	assert.Error(t, err)
}
