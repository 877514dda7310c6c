package auth

import (
	"fmt"
	"net/http"
	"strings"

	"restaurant-orders/internal/models"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// Authenticator extracts the caller from a request. A nil actor with a nil
// error means the request is anonymous.
type Authenticator interface {
	Authenticate(r *http.Request) (*Actor, error)
}

// HeaderAuthenticator trusts identity headers set by the upstream gateway
type HeaderAuthenticator struct{}

func (HeaderAuthenticator) Authenticate(r *http.Request) (*Actor, error) {
	id := strings.TrimSpace(r.Header.Get(HeaderActorID))
	roleHeader := strings.TrimSpace(r.Header.Get(HeaderActorRole))

	if id == "" && roleHeader == "" {
		return nil, nil
	}
	if id == "" {
		return nil, fmt.Errorf("missing %s header: %w", HeaderActorID, models.ErrUnauthorized)
	}

	role, ok := ParseRole(roleHeader)
	if !ok {
		return nil, fmt.Errorf("unknown role %q: %w", roleHeader, models.ErrForbidden)
	}
	return &Actor{ID: id, Role: role}, nil
}

// Middleware attaches the authenticated actor to the request context.
// Authentication failures are passed to onError and the chain stops.
func Middleware(authn Authenticator, onError func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := authn.Authenticate(r)
			if err != nil {
				onError(w, r, err)
				return
			}
			if actor != nil {
				r = r.WithContext(WithActor(r.Context(), actor))
			}
			next.ServeHTTP(w, r)
		})
	}
}
