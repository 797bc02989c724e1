// Package auth authenticates callers of the auskunft HTTP API.
//
// Authenticators form a chain with three-outcome voting: Yes accepts
// with an identity, No rejects, Abstain defers to the next link. The
// chain's default decision handles the case where nothing claims the
// request, so a deployment can run wide open or locked down.
//
// The package ships as HTTP middleware rather than engine logic. On a
// Yes vote the middleware puts the identity in the request context and,
// when the identity names a tenant, tags the context so the store
// scopes all queries to that tenant.
package auth
