package storage

import "context"

type tenantKey struct{}

// SetTenant marks the context as belonging to a tenant. Stores use it
// to scope every query to that tenant's rows.
func SetTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// GetTenant returns the context's tenant, or "" when no tenant is set
// and the store runs single-tenant.
func GetTenant(ctx context.Context) string {
	tenant, _ := ctx.Value(tenantKey{}).(string)
	return tenant
}
