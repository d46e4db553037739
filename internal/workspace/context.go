package workspace

import "context"

type grantContextKey struct{}

// ContextWithGrant attaches a successful authorization outcome to the
// request context.
func ContextWithGrant(ctx context.Context, grant *Grant) context.Context {
	if grant == nil {
		return ctx
	}
	return context.WithValue(ctx, grantContextKey{}, grant)
}

// GrantFromContext extracts the authorization outcome resolved earlier in
// the request.
func GrantFromContext(ctx context.Context) (*Grant, bool) {
	if ctx == nil {
		return nil, false
	}
	g, ok := ctx.Value(grantContextKey{}).(*Grant)
	if !ok || g == nil {
		return nil, false
	}
	return g, true
}
