// middleware/jwt.go
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sstpro/backend/models"
)

// Claims are the custom payload in the JWT.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Typ    string `json:"typ,omitempty"` // "refresh" on refresh tokens
	jwt.RegisteredClaims
}

// unexported type prevents collisions in context
type ctxKey int

const userClaimsKey ctxKey = iota

const (
	accessTokenTTL  = 24 * time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour
)

// TokenManager signs and verifies tokens. It is passed to handlers explicitly
// instead of reading JWT_SECRET from a package global, so tests can mint
// tokens against a known secret.
type TokenManager struct {
	secret []byte
}

func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret)}
}

// GenerateToken creates a signed access token valid for 24 h.
func (m *TokenManager) GenerateToken(u models.User) (string, error) {
	return m.sign(u, "", accessTokenTTL)
}

// GenerateRefreshToken creates a refresh token valid for 7 d. Refresh tokens
// carry typ=refresh and are rejected by the auth middleware.
func (m *TokenManager) GenerateRefreshToken(u models.User) (string, error) {
	return m.sign(u, "refresh", refreshTokenTTL)
}

func (m *TokenManager) sign(u models.User, typ string, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID: u.ID.String(),
		Email:  u.Email,
		Name:   u.Name,
		Typ:    typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Parse validates a token string and returns its claims.
func (m *TokenManager) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// Middleware validates the bearer token and stashes the Claims in ctx.
func (m *TokenManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			http.Error(w, "missing Authorization header", http.StatusUnauthorized)
			return
		}
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			http.Error(w, "invalid auth header", http.StatusUnauthorized)
			return
		}

		claims, err := m.Parse(parts[1])
		if err != nil {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}
		if claims.Typ == "refresh" {
			http.Error(w, "refresh token not accepted here", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClaims pulls the *Claims out of the request context (or nil).
func GetClaims(r *http.Request) *Claims {
	if c, ok := r.Context().Value(userClaimsKey).(*Claims); ok {
		return c
	}
	return nil
}

// GetUserID returns the authenticated user's id, or uuid.Nil.
func GetUserID(r *http.Request) uuid.UUID {
	if c := GetClaims(r); c != nil {
		if id, err := uuid.Parse(c.UserID); err == nil {
			return id
		}
	}
	return uuid.Nil
}
