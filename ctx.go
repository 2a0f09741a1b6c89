package identity

import (
	"context"

	"github.com/goliatone/go-router"
)

var userCtxKey = &contextKey{"user"}
var claimsCtxKey = &contextKey{"claims"}
var actorCtxKey = &contextKey{"actor"}

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok
}

// WithClaimsContext sets the AuthClaims in the given context
func WithClaimsContext(r context.Context, claims AuthClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the AuthClaims from the standard context
func GetClaims(ctx context.Context) (AuthClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(AuthClaims)
	return raw, ok
}

// GetRouterClaims extracts the AuthClaims from the router context
func GetRouterClaims(ctx router.Context, key string) (AuthClaims, bool) {
	if key == "" {
		key = "user" // Default key used by JWT middleware
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	claims, ok := raw.(AuthClaims)
	return claims, ok
}

// ActorContext is the request scoped view of the authenticated user. It is
// derived from session claims so handlers can read identity attributes
// without touching the token again.
type ActorContext struct {
	ActorID   string         `json:"actor_id"`
	Email     string         `json:"email,omitempty"`
	FirstName string         `json:"first_name,omitempty"`
	LastName  string         `json:"last_name,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ActorContextFromClaims builds an ActorContext from session claims.
// Returns nil when there is no usable subject.
func ActorContextFromClaims(claims AuthClaims) *ActorContext {
	if claims == nil {
		return nil
	}

	actorID := claims.UserID()
	if actorID == "" {
		actorID = claims.Subject()
	}

	if actorID == "" {
		return nil
	}

	actor := &ActorContext{
		ActorID:   actorID,
		Email:     claims.Email(),
		FirstName: claims.FirstName(),
		LastName:  claims.LastName(),
	}

	if meta, ok := claims.(interface{ ClaimsMetadata() map[string]any }); ok {
		actor.Metadata = meta.ClaimsMetadata()
	}

	return actor
}

// WithActorContext sets the ActorContext in the given context
func WithActorContext(ctx context.Context, actor *ActorContext) context.Context {
	return context.WithValue(ctx, actorCtxKey, actor)
}

// ActorFromContext finds the actor from the context.
func ActorFromContext(ctx context.Context) (*ActorContext, bool) {
	raw, ok := ctx.Value(actorCtxKey).(*ActorContext)
	return raw, ok
}

// ActorFromRouterContext finds the actor from the router context.
func ActorFromRouterContext(ctx router.Context) (*ActorContext, bool) {
	return ActorFromContext(ctx.Context())
}
