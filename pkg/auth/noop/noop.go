// Package noop implements the authenticator used when auth is turned
// off: every request is accepted as anonymous.
package noop

import (
	"context"
	"net/http"

	"github.com/antwort-dev/auskunft/pkg/auth"
)

// Authenticator votes Yes for every request with an anonymous
// identity on the default tier.
type Authenticator struct{}

var anonymous = auth.Identity{Subject: "anonymous", ServiceTier: "default"}

func (a *Authenticator) Authenticate(_ context.Context, _ *http.Request) auth.AuthResult {
	id := anonymous
	return auth.AuthResult{Decision: auth.Yes, Identity: &id}
}
