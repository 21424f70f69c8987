package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AnonymousActor is the actor recorded when authentication is disabled.
const AnonymousActor = "anonymous"

var errMissingToken = errors.New("missing bearer token")

type actorKey struct{}

// WithActor returns a context carrying the acting user's id.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the acting user's id stored in ctx.
func ActorFrom(ctx context.Context) (string, bool) {
	actor, ok := ctx.Value(actorKey{}).(string)
	return actor, ok && actor != ""
}

// Authenticator resolves the acting user from an HS256 bearer token. The
// token's subject becomes the actor id. With no secret every request runs
// as AnonymousActor.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator creates an Authenticator for the given shared secret.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Enabled reports whether tokens are verified.
func (a *Authenticator) Enabled() bool {
	return len(a.secret) > 0
}

// Actor verifies the request's bearer token and returns its subject.
func (a *Authenticator) Actor(r *http.Request) (string, error) {
	if !a.Enabled() {
		return AnonymousActor, nil
	}

	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", errMissingToken
	}

	token, err := jwt.Parse(strings.TrimSpace(raw), func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}

// Require rejects requests without a valid token and passes the actor on
// through the request context.
func (a *Authenticator) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := a.Actor(r)
		if err != nil {
			writeEnvelope(w, http.StatusUnauthorized, nil, "Please login first", err.Error())
			return
		}
		next(w, r.WithContext(WithActor(r.Context(), actor)))
	}
}
