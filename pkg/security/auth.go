package security

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrMissingToken is returned when a request carries no credential.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken is returned for any credential that fails verification.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Principal is an authenticated user.
type Principal struct {
	UserID   string
	Username string
	Role     string
}

// AuthContext carries the caller's identity through a request.
type AuthContext struct {
	Principal   *Principal
	IPAddress   string
	UserAgent   string
	RequestTime time.Time
}

// Authenticator verifies a bearer credential.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Principal, error)
}

// NoAuthAuthenticator accepts every request as an anonymous principal.
type NoAuthAuthenticator struct {
	principal *Principal
}

// NewNoAuthAuthenticator creates an authenticator for profiles without auth.
func NewNoAuthAuthenticator() *NoAuthAuthenticator {
	return &NoAuthAuthenticator{principal: &Principal{UserID: "", Username: "anonymous", Role: "guest"}}
}

// Authenticate returns the anonymous principal.
func (a *NoAuthAuthenticator) Authenticate(ctx context.Context, token string) (*Principal, error) {
	return a.principal, nil
}

type contextKey string

const authContextKey contextKey = "auth_context"

// WithAuthContext adds authentication context to the context.
func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

// GetAuthContext retrieves authentication context from the context.
func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	authCtx, ok := ctx.Value(authContextKey).(*AuthContext)
	return authCtx, ok && authCtx != nil
}

// GetPrincipal retrieves the principal from the context.
func GetPrincipal(ctx context.Context) (*Principal, bool) {
	authCtx, ok := GetAuthContext(ctx)
	if !ok || authCtx.Principal == nil {
		return nil, false
	}
	return authCtx.Principal, true
}
