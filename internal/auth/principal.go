package auth

import "context"

// contextKey is unexported so no other package can read or overwrite the
// values this package stores in a request context.
type contextKey string

const principalKey contextKey = "principal"

// Principal is the verified identity behind a request.
type Principal struct {
	UID         string
	Email       *string // nil when the token carries no email
	IsSiteAdmin bool
	Claims      map[string]any
}

// CanAccess reports whether p may act on resources owned by ownerID: either
// they are the owner or they are a site admin.
func (p *Principal) CanAccess(ownerID string) bool {
	if p == nil {
		return false
	}
	return p.UID == ownerID || p.IsSiteAdmin
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the principal stored by RequireAuth.
// Returns (nil, false) on routes that are not behind RequireAuth.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}
