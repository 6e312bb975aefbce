package middleware

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/farellandr/ridehail/internal/helpers"
)

const clerkUserIDKey = "clerk_user_id"

type AuthConfig struct {
	JWKSURL        string
	ExpectedIssuer string
}

type jwksVerifier struct {
	jwksURL    string
	httpClient *http.Client
	cacheTTL   time.Duration

	mu       sync.RWMutex
	expires  time.Time
	keyByKID map[string]*rsa.PublicKey
}

func newJWKSVerifier(jwksURL string) *jwksVerifier {
	return &jwksVerifier{
		jwksURL:    strings.TrimSpace(jwksURL),
		httpClient: &http.Client{Timeout: 5 * time.Second},
		cacheTTL:   10 * time.Minute,
		keyByKID:   map[string]*rsa.PublicKey{},
	}
}

// ClerkAuthMiddleware validates Clerk session tokens and stores the Clerk
// user id (the sub claim) in the gin context.
func ClerkAuthMiddleware(cfg AuthConfig) gin.HandlerFunc {
	verifier := newJWKSVerifier(cfg.JWKSURL)
	issuer := strings.TrimSpace(cfg.ExpectedIssuer)

	return func(c *gin.Context) {
		tokenString, ok := bearerToken(strings.TrimSpace(c.GetHeader("Authorization")))
		if !ok {
			helpers.RespondWithError(c, http.StatusUnauthorized, "Authorization required")
			return
		}

		userID, err := verifier.validateToken(c.Request.Context(), tokenString, issuer)
		if err != nil {
			helpers.RespondWithError(c, http.StatusUnauthorized, "Invalid token")
			return
		}

		c.Set(clerkUserIDKey, userID)
		c.Next()
	}
}

// RequireSelf rejects requests whose :id path parameter is not the caller's Clerk user id.
func RequireSelf() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetClerkUserID(c)
		if !ok || userID != c.Param("id") {
			helpers.RespondWithError(c, http.StatusForbidden, "You don't have permission to access this user")
			return
		}
		c.Next()
	}
}

func GetClerkUserID(c *gin.Context) (string, bool) {
	value, exists := c.Get(clerkUserIDKey)
	if !exists {
		return "", false
	}
	userID, ok := value.(string)
	return userID, ok
}

func bearerToken(authHeader string) (string, bool) {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}

	return token, true
}

func (v *jwksVerifier) validateToken(ctx context.Context, tokenString, expectedIssuer string) (string, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}), jwt.WithLeeway(30*time.Second))
	claims := jwt.MapClaims{}

	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || strings.TrimSpace(kid) == "" {
			return nil, errors.New("missing kid in token")
		}
		return v.getPublicKey(ctx, kid)
	})
	if err != nil || !token.Valid {
		return "", errors.New("token validation failed")
	}

	if expectedIssuer != "" {
		issuer, ok := claims["iss"].(string)
		if !ok || issuer != expectedIssuer {
			return "", errors.New("issuer mismatch")
		}
	}

	sub, ok := claims["sub"].(string)
	if !ok || strings.TrimSpace(sub) == "" {
		return "", errors.New("subject claim missing")
	}

	return sub, nil
}

func (v *jwksVerifier) getPublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if key := v.getCachedKey(kid); key != nil {
		return key, nil
	}

	if err := v.refreshKeys(ctx); err != nil {
		return nil, err
	}

	if key := v.getCachedKey(kid); key != nil {
		return key, nil
	}

	return nil, fmt.Errorf("key not found for kid %s", kid)
}

func (v *jwksVerifier) getCachedKey(kid string) *rsa.PublicKey {
	now := time.Now()

	v.mu.RLock()
	defer v.mu.RUnlock()

	if now.After(v.expires) {
		return nil
	}
	return v.keyByKID[kid]
}

func (v *jwksVerifier) refreshKeys(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return err
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks endpoint returned %d", resp.StatusCode)
	}

	var payload struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return err
	}

	keys := map[string]*rsa.PublicKey{}
	for _, key := range payload.Keys {
		if key.Kid == "" || key.Kty != "RSA" || key.N == "" || key.E == "" {
			continue
		}
		pub, err := parseRSAPublicKey(key.N, key.E)
		if err != nil {
			continue
		}
		keys[key.Kid] = pub
	}
	if len(keys) == 0 {
		return errors.New("no usable RSA keys in JWKS")
	}

	v.mu.Lock()
	v.keyByKID = keys
	v.expires = time.Now().Add(v.cacheTTL)
	v.mu.Unlock()

	return nil
}

func parseRSAPublicKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	var exp uint64
	for _, b := range eb {
		exp = (exp << 8) | uint64(b)
	}
	if exp == 0 {
		return nil, errors.New("invalid exponent")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nb),
		E: int(exp),
	}, nil
}
