package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// contextKey is a custom type for context keys
type contextKey string

// AdminContextKey is the key for storing admin claims in context
const AdminContextKey contextKey = "admin"

const adminRole = "admin"

var ErrNotAdmin = errors.New("token does not carry the admin role")

// AdminClaims are the claims expected in an admin bearer token
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminAuthenticator validates HS256 admin bearer tokens
type AdminAuthenticator struct {
	secret []byte
}

// NewAdminAuthenticator creates an authenticator for tokens signed with secret
func NewAdminAuthenticator(secret string) *AdminAuthenticator {
	return &AdminAuthenticator{secret: []byte(secret)}
}

// IssueToken signs an admin token for subject, valid for ttl.
// Used by operators' tooling and tests; the service itself never issues sessions.
func (a *AdminAuthenticator) IssueToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &AdminClaims{
		Role: adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign admin token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses tokenString and checks signature, expiry and role
func (a *AdminAuthenticator) ValidateToken(tokenString string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("invalid admin token: %w", err)
	}

	if claims.Role != adminRole {
		return nil, ErrNotAdmin
	}
	return claims, nil
}

// RequireAdmin rejects requests without a valid admin bearer token
func RequireAdmin(a *AdminAuthenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := a.ValidateToken(parts[1])
			if err != nil {
				if errors.Is(err, ErrNotAdmin) {
					http.Error(w, "admin role required", http.StatusForbidden)
					return
				}
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), AdminContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAdminFromContext returns the admin claims stored by RequireAdmin
func GetAdminFromContext(r *http.Request) *AdminClaims {
	claims, _ := r.Context().Value(AdminContextKey).(*AdminClaims)
	return claims
}
