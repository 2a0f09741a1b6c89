package identityadapter

import (
	"context"
	"strings"

	"github.com/goliatone/go-featuregate/gate"
	identity "github.com/goliatone/go-identity"
)

const defaultActorRefType = "user"

// Metadata keys consulted when deriving tenancy claims from actor metadata.
// The claims decorator is the usual writer of these keys.
const (
	MetadataKeyTenantID = "tenant_id"
	MetadataKeyOrgID    = "org_id"
)

// ActorExtractor extracts an identity.ActorContext from context.
type ActorExtractor func(context.Context) (*identity.ActorContext, bool)

// ClaimsMapper builds gate claims from an ActorContext.
type ClaimsMapper func(actor *identity.ActorContext) gate.ActorClaims

// Option customizes ClaimsProvider behavior.
type Option func(*ClaimsProvider)

// ClaimsProvider derives feature claims from the identity actor context.
// Session claims carry no role material, so gate targeting works off the
// subject id plus whatever tenancy hints were decorated into claim metadata.
type ClaimsProvider struct {
	extractor ActorExtractor
	mapper    ClaimsMapper
}

// NewClaimsProvider builds a claims provider using the identity actor context extractor.
func NewClaimsProvider(opts ...Option) *ClaimsProvider {
	provider := &ClaimsProvider{
		extractor: identity.ActorFromContext,
		mapper:    ClaimsFromActor,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(provider)
		}
	}
	if provider.extractor == nil {
		provider.extractor = identity.ActorFromContext
	}
	if provider.mapper == nil {
		provider.mapper = ClaimsFromActor
	}
	return provider
}

// WithActorExtractor overrides the actor context extractor.
func WithActorExtractor(extractor ActorExtractor) Option {
	return func(provider *ClaimsProvider) {
		if provider == nil {
			return
		}
		provider.extractor = extractor
	}
}

// WithClaimsMapper overrides how an actor context maps to gate claims.
func WithClaimsMapper(mapper ClaimsMapper) Option {
	return func(provider *ClaimsProvider) {
		if provider == nil {
			return
		}
		provider.mapper = mapper
	}
}

// ClaimsFromContext implements gate.ClaimsProvider.
func (p *ClaimsProvider) ClaimsFromContext(ctx context.Context) (gate.ActorClaims, error) {
	if p == nil || p.extractor == nil {
		return gate.ActorClaims{}, nil
	}
	actor, ok := p.extractor(ctx)
	if !ok || actor == nil {
		return gate.ActorClaims{}, nil
	}
	mapper := p.mapper
	if mapper == nil {
		mapper = ClaimsFromActor
	}
	return mapper(actor), nil
}

// ClaimsFromActor builds ActorClaims from an identity.ActorContext using defaults.
func ClaimsFromActor(actor *identity.ActorContext) gate.ActorClaims {
	if actor == nil {
		return gate.ActorClaims{}
	}
	return gate.ActorClaims{
		SubjectID: actor.ActorID,
		TenantID:  metadataString(actor, MetadataKeyTenantID),
		OrgID:     metadataString(actor, MetadataKeyOrgID),
	}
}

func metadataString(actor *identity.ActorContext, key string) string {
	if actor == nil || len(actor.Metadata) == 0 {
		return ""
	}
	if value, ok := actor.Metadata[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

// ActorRefFromActor builds an ActorRef from an identity.ActorContext.
func ActorRefFromActor(actor *identity.ActorContext) gate.ActorRef {
	if actor == nil {
		return gate.ActorRef{}
	}
	return gate.ActorRef{
		ID:   actor.ActorID,
		Type: defaultActorRefType,
		Name: actorDisplayName(actor),
	}
}

// ActorRefFromContext extracts an ActorRef from context.
func ActorRefFromContext(ctx context.Context) (gate.ActorRef, bool) {
	actor, ok := identity.ActorFromContext(ctx)
	if !ok || actor == nil {
		return gate.ActorRef{}, false
	}
	return ActorRefFromActor(actor), true
}

func actorDisplayName(actor *identity.ActorContext) string {
	name := strings.TrimSpace(strings.TrimSpace(actor.FirstName) + " " + strings.TrimSpace(actor.LastName))
	if name != "" {
		return name
	}
	return actor.Email
}

var _ gate.ClaimsProvider = (*ClaimsProvider)(nil)
