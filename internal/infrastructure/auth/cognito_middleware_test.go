package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPool   = "eu-central-1_abc"
	testRegion = "eu-central-1"
	testIssuer = "https://cognito-idp.eu-central-1.amazonaws.com/eu-central-1_abc"
)

func newTestKeySet(t *testing.T) (*rsa.PrivateKey, *httptest.Server) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	body, err := json.Marshal(jwksResponse{Keys: []jwk{{
		Kty: "RSA",
		Kid: "k1",
		Use: "sig",
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
	}}})
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return key, srv
}

func sign(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "k1"
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func run(t *testing.T, m *CognitoMiddleware, authorization string) (int, string) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var userID string
	err := m.Handler(func(c echo.Context) error {
		userID, _ = c.Get("user_id").(string)
		return c.NoContent(http.StatusOK)
	})(c)
	require.NoError(t, err)
	return rec.Code, userID
}

func TestCognitoMiddleware_AcceptsValidAccessToken(t *testing.T) {
	key, srv := newTestKeySet(t)
	m, err := NewCognitoMiddleware(CognitoOptions{UserPoolID: testPool, Region: testRegion, ClientID: "app", JWKSURL: srv.URL})
	require.NoError(t, err)

	token := sign(t, key, jwt.MapClaims{
		"sub":       "user-1",
		"iss":       testIssuer,
		"exp":       time.Now().Add(time.Hour).Unix(),
		"token_use": "access",
		"client_id": "app",
	})

	code, userID := run(t, m, "Bearer "+token)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "user-1", userID)
}

func TestCognitoMiddleware_AcceptsIDTokenAudience(t *testing.T) {
	key, srv := newTestKeySet(t)
	m, err := NewCognitoMiddleware(CognitoOptions{UserPoolID: testPool, Region: testRegion, ClientID: "app", JWKSURL: srv.URL})
	require.NoError(t, err)

	token := sign(t, key, jwt.MapClaims{
		"sub":       "user-2",
		"iss":       testIssuer,
		"exp":       time.Now().Add(time.Hour).Unix(),
		"token_use": "id",
		"aud":       "app",
	})

	code, userID := run(t, m, "Bearer "+token)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "user-2", userID)
}

func TestCognitoMiddleware_Rejects(t *testing.T) {
	key, srv := newTestKeySet(t)
	m, err := NewCognitoMiddleware(CognitoOptions{UserPoolID: testPool, Region: testRegion, ClientID: "app", JWKSURL: srv.URL})
	require.NoError(t, err)

	valid := jwt.MapClaims{
		"sub":       "user-1",
		"iss":       testIssuer,
		"exp":       time.Now().Add(time.Hour).Unix(),
		"token_use": "access",
		"client_id": "app",
	}
	with := func(k string, v any) jwt.MapClaims {
		out := jwt.MapClaims{}
		for key, val := range valid {
			out[key] = val
		}
		if v == nil {
			delete(out, k)
		} else {
			out[k] = v
		}
		return out
	}

	cases := map[string]string{
		"missing header": "",
		"empty bearer":   "Bearer ",
		"expired":        "Bearer " + sign(t, key, with("exp", time.Now().Add(-time.Hour).Unix())),
		"wrong issuer":   "Bearer " + sign(t, key, with("iss", "https://example.com")),
		"other client":   "Bearer " + sign(t, key, with("client_id", "other")),
		"missing sub":    "Bearer " + sign(t, key, with("sub", nil)),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			code, userID := run(t, m, header)
			assert.Equal(t, http.StatusUnauthorized, code)
			assert.Empty(t, userID)
		})
	}
}

func TestNewCognitoMiddleware_RequiresPool(t *testing.T) {
	_, err := NewCognitoMiddleware(CognitoOptions{Region: testRegion})
	assert.Error(t, err)
}

func TestRSAFromJWK_RejectsZeroExponent(t *testing.T) {
	_, err := rsaFromJWK("AQAB", "")
	assert.Error(t, err)
}

func TestKeySet_LimitsRefetchOnUnknownKid(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	body, err := json.Marshal(jwksResponse{Keys: []jwk{{
		Kty: "RSA",
		Kid: "k1",
		N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		E:   "AQAB",
	}}})
	require.NoError(t, err)

	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches.Add(1)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	ks := newKeySet(srv.URL)
	ctx := context.Background()

	pub, err := ks.lookup(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, 65537, pub.E)

	for range 3 {
		_, err = ks.lookup(ctx, "forged")
		assert.ErrorIs(t, err, errUnknownKid)
	}
	assert.Equal(t, int32(1), fetches.Load())

	ks.minRefresh = 0
	_, err = ks.lookup(ctx, "forged")
	assert.ErrorIs(t, err, errUnknownKid)
	assert.Equal(t, int32(2), fetches.Load())
}

func TestKeySet_ServesKnownKeyWhenRefetchFails(t *testing.T) {
	key, srv := newTestKeySet(t)
	ks := newKeySet(srv.URL)
	ctx := context.Background()

	_, err := ks.lookup(ctx, "k1")
	require.NoError(t, err)

	srv.Close()
	ks.ttl = 0
	pub, err := ks.lookup(ctx, "k1")
	require.NoError(t, err)
	assert.Zero(t, key.N.Cmp(pub.N))
}
