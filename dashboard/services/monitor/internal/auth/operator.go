// Package auth guards the dashboard's mutating endpoints with a single operator password.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// ErrInvalidCredentials is returned for a wrong password.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Operator checks the operator password and issues tokens. With no password hash configured
// every request is allowed.
type Operator struct {
	hasher       Hasher
	passwordHash string
	tokens       *TokenService
}

// NewOperator builds the operator guard.
func NewOperator(hasher Hasher, passwordHash string, tokens *TokenService) *Operator {
	return &Operator{hasher: hasher, passwordHash: passwordHash, tokens: tokens}
}

// Enabled reports whether login is required.
func (o *Operator) Enabled() bool {
	return o.passwordHash != ""
}

// Login returns a bearer token for the right password.
func (o *Operator) Login(password string) (string, time.Time, error) {
	if !o.Enabled() {
		return "", time.Time{}, errors.New("auth: operator login is disabled")
	}
	if err := o.hasher.Compare(o.passwordHash, password); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return o.tokens.GenerateToken(RoleOperator, RoleOperator)
}

type contextKey string

const claimsKey contextKey = "claims"

// Middleware rejects requests without a valid operator token.
func (o *Operator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !o.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "missing authorization header", http.StatusUnauthorized)
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			http.Error(w, "invalid authorization header", http.StatusUnauthorized)
			return
		}
		claims, err := o.tokens.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil || claims.Role != RoleOperator {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFromContext retrieves the validated claims.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}
