// Package auth verifies caller sessions. Supabase issues HS256 access
// tokens signed with the project's JWT secret; both the user identity and
// the session are derived from the token the caller supplies, never from
// any ambient server-side session.
package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/smilecloud/smilecloud/internal/gateway"
)

const expectedAudience = "authenticated"

// Claims is the subset of the Supabase access-token payload we use.
type Claims struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// User is the caller identity in session responses.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Session describes the verified session in session responses.
type Session struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Adapter handles /api/auth/session.
type Adapter struct {
	secret []byte
	logger zerolog.Logger
}

// NewAdapter creates the adapter with the shared signing secret.
func NewAdapter(secret string, logger zerolog.Logger) *Adapter {
	return &Adapter{secret: []byte(secret), logger: logger}
}

// Handle implements gateway.Adapter.
func (a *Adapter) Handle(_ context.Context, req *gateway.Request) (*gateway.Response, error) {
	if req.Method != http.MethodPost {
		return gateway.BadRequest("method " + req.Method + " not supported for auth routes"), nil
	}

	token := bearerToken(req)
	if token == "" {
		return gateway.Fail(http.StatusUnauthorized, gateway.CodeAuthError, "missing bearer token"), nil
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(expectedAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		a.logger.Debug().Err(err).Msg("session token rejected")
		return gateway.Fail(http.StatusUnauthorized, gateway.CodeAuthError, "invalid or expired session token"), nil
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return gateway.OK(http.StatusOK, map[string]interface{}{
		"user": User{
			ID:    claims.Subject,
			Email: claims.Email,
			Role:  claims.Role,
		},
		"session": Session{
			ID:        claims.SessionID,
			ExpiresAt: expiresAt,
		},
	}), nil
}

// bearerToken pulls the token from the Authorization header, falling back
// to a {"token": "..."} body for clients that cannot set headers.
func bearerToken(req *gateway.Request) string {
	header := req.Header("Authorization")
	if header == "" {
		header = req.Header("authorization")
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if body, ok := req.Body.(map[string]interface{}); ok {
		if tok, ok := body["token"].(string); ok {
			return tok
		}
	}
	return ""
}
