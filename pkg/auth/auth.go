package auth

import (
	"context"
	"errors"
	"net/http"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("access denied")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// Identity describes an authenticated caller.
type Identity struct {
	// Subject uniquely names the caller. A Yes result always has one.
	Subject string

	// ServiceTier selects the caller's rate-limit tier.
	ServiceTier string

	// Scopes are the granted authorization scopes.
	Scopes []string

	// Metadata holds provider-specific attributes. The "tenant_id"
	// key scopes the caller's answers and documents in the store.
	Metadata map[string]string
}

// TenantID returns the tenant from metadata; "" means single-tenant.
func (id *Identity) TenantID() string {
	if id == nil {
		return ""
	}
	return id.Metadata["tenant_id"]
}

// AuthDecision is one authenticator's vote on a request.
type AuthDecision int

const (
	// Yes: credentials verified; stop the chain and use the identity.
	Yes AuthDecision = iota

	// No: credentials present but invalid; stop the chain and reject.
	No

	// Abstain: not this authenticator's credential type; ask the next one.
	Abstain
)

// AuthResult is the outcome of an authentication attempt. Identity is
// set only on Yes, Err only on No.
type AuthResult struct {
	Decision AuthDecision
	Identity *Identity
	Err      error
}

// Authenticator inspects a request's credentials and votes.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) AuthResult
}

// AuthChain runs authenticators left to right until one votes Yes or
// No. DefaultDecision settles an all-abstain run: Yes leaves the API
// open (development), No locks it down.
type AuthChain struct {
	Authenticators  []Authenticator
	DefaultDecision AuthDecision
}

// Authenticate evaluates the chain. When everything abstains and the
// default is Yes, the caller proceeds as an anonymous default-tier
// identity with no tenant.
func (c *AuthChain) Authenticate(ctx context.Context, r *http.Request) AuthResult {
	for _, authn := range c.Authenticators {
		if result := authn.Authenticate(ctx, r); result.Decision != Abstain {
			return result
		}
	}

	if c.DefaultDecision == Yes {
		return AuthResult{
			Decision: Yes,
			Identity: &Identity{Subject: "anonymous", ServiceTier: "default"},
		}
	}
	return AuthResult{Decision: No, Err: ErrUnauthenticated}
}
