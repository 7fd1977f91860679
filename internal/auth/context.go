package auth

import "context"

type contextKey string

const contextKeyPrincipal contextKey = "principal"

// Principal identifies an authenticated admin caller.
type Principal struct {
	Subject string
	Email   string
	// Method is "token" or "oidc".
	Method string
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(contextKeyPrincipal).(*Principal)
	return p, ok
}
