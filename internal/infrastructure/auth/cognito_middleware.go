package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"accountx/internal/domain"
)

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwksResponse struct {
	Keys []jwk `json:"keys"`
}

var errUnknownKid = errors.New("signing key not in user pool key set")

// keySet holds the user pool's RSA signing keys. An unknown kid triggers a
// refetch at most once per minRefresh; a failed refetch keeps serving known keys.
type keySet struct {
	url        string
	client     *http.Client
	ttl        time.Duration
	minRefresh time.Duration

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func newKeySet(url string) *keySet {
	return &keySet{
		url:        url,
		client:     &http.Client{Timeout: 5 * time.Second},
		ttl:        15 * time.Minute,
		minRefresh: 30 * time.Second,
	}
}

func (s *keySet) lookup(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	age := time.Since(s.fetchedAt)
	key, known := s.keys[kid]
	if known && age < s.ttl {
		return key, nil
	}
	if s.keys == nil || age >= s.ttl || age >= s.minRefresh {
		keys, err := s.fetch(ctx)
		if err != nil {
			if known {
				return key, nil
			}
			return nil, err
		}
		s.keys, s.fetchedAt = keys, time.Now()
	}
	if key, ok := s.keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: %s", errUnknownKid, kid)
}

func (s *keySet) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch jwks: unexpected status %d", resp.StatusCode)
	}
	var set jwksResponse
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("decode jwks: %w", err)
	}
	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" || k.Kid == "" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		pub, err := rsaFromJWK(k.N, k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return nil, errors.New("jwks holds no usable RSA signing keys")
	}
	return keys, nil
}

func rsaFromJWK(n, e string) (*rsa.PublicKey, error) {
	modulus, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil || len(modulus) == 0 {
		return nil, errors.New("invalid jwk modulus")
	}
	exponent, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, errors.New("invalid jwk exponent")
	}
	exp := new(big.Int).SetBytes(exponent)
	if exp.Sign() == 0 || !exp.IsInt64() || exp.Int64() > math.MaxInt32 {
		return nil, errors.New("invalid jwk exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(modulus), E: int(exp.Int64())}, nil
}

type CognitoOptions struct {
	UserPoolID string
	Region     string
	// ClientID, when set, must match the token's client_id (access) or aud (id) claim.
	ClientID string
	// JWKSURL overrides the user pool's well-known key set location.
	JWKSURL string
}

type CognitoMiddleware struct {
	issuer   string
	clientID string
	keys     *keySet
}

func NewCognitoMiddleware(opts CognitoOptions) (*CognitoMiddleware, error) {
	if opts.UserPoolID == "" || opts.Region == "" {
		return nil, errors.New("cognito user pool id and region are required")
	}
	issuer := "https://cognito-idp." + opts.Region + ".amazonaws.com/" + opts.UserPoolID
	jwksURL := opts.JWKSURL
	if jwksURL == "" {
		jwksURL = issuer + "/.well-known/jwks.json"
	}
	return &CognitoMiddleware{
		issuer:   issuer,
		clientID: opts.ClientID,
		keys:     newKeySet(jwksURL),
	}, nil
}

// Handler rejects requests without a valid user pool token and stores the
// token subject under "user_id".
func (m *CognitoMiddleware) Handler(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sub, err := m.subject(c.Request().Context(), c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
		}
		c.Set("user_id", sub)
		return next(c)
	}
}

func (m *CognitoMiddleware) subject(ctx context.Context, header string) (string, error) {
	if header == "" {
		return "", errors.New("missing authorization token")
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", errors.New("invalid authorization token")
	}
	claims := jwt.MapClaims{}
	keyFunc := func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token header has no kid")
		}
		return m.keys.lookup(ctx, kid)
	}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}
	if !m.clientMatches(claims) {
		return "", errors.New("token issued for another client")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: token has no subject", domain.ErrInvalidInput)
	}
	return sub, nil
}

func (m *CognitoMiddleware) clientMatches(claims jwt.MapClaims) bool {
	if m.clientID == "" {
		return true
	}
	switch use, _ := claims["token_use"].(string); use {
	case "access":
		id, _ := claims["client_id"].(string)
		return id == m.clientID
	case "id":
		aud, err := claims.GetAudience()
		if err != nil {
			return false
		}
		for _, a := range aud {
			if a == m.clientID {
				return true
			}
		}
	}
	return false
}
