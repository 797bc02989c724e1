// Package apikey authenticates bearer tokens against a static set of
// API keys. Keys are held as SHA-256 digests and matched with
// constant-time comparison.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/antwort-dev/auskunft/pkg/auth"
)

// RawKeyEntry pairs a plaintext key with the identity it grants. This
// is the shape the config layer produces.
type RawKeyEntry struct {
	Key      string
	Identity auth.Identity
}

// KeyEntry is the stored form: digest plus identity.
type KeyEntry struct {
	KeyHash  [32]byte
	Identity auth.Identity
}

// Authenticator matches bearer tokens against the configured keys.
type Authenticator struct {
	keys []KeyEntry
}

// New hashes the given keys and returns an authenticator over them.
// Plaintext keys are discarded after hashing.
func New(entries []RawKeyEntry) *Authenticator {
	keys := make([]KeyEntry, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, KeyEntry{
			KeyHash:  sha256.Sum256([]byte(e.Key)),
			Identity: e.Identity,
		})
	}
	return &Authenticator{keys: keys}
}

// Authenticate checks the request's bearer token. Abstains when there
// is no bearer token at all (another authenticator may handle the
// request); votes No when a token is present but does not match.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	digest := sha256.Sum256([]byte(token))
	for _, entry := range a.keys {
		if subtle.ConstantTimeCompare(digest[:], entry.KeyHash[:]) == 1 {
			// Hand out a copy so callers cannot mutate the stored identity.
			id := entry.Identity
			return auth.AuthResult{Decision: auth.Yes, Identity: &id}
		}
	}
	return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
}
