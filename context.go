package authcore

import "context"

type clientIPContextKey struct{}
type identityContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine uses it
// for per-IP login throttling and audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithIdentity stores id in ctx. The auth middleware calls it before the
// next handler runs.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the identity stored by WithIdentity. A context
// without one yields Anonymous.
func IdentityFromContext(ctx context.Context) Identity {
	if ctx == nil {
		return Anonymous()
	}

	id, _ := ctx.Value(identityContextKey{}).(Identity)
	return id
}

// RequireIdentity is the explicit entry check for handlers that are not
// mounted behind the required gate. It fails with ErrMissingCredential unless
// ctx carries an authenticated identity.
func RequireIdentity(ctx context.Context) (Identity, error) {
	id := IdentityFromContext(ctx)
	if !id.IsAuthenticated() {
		return Identity{}, ErrMissingCredential
	}
	return id, nil
}

// ClientIPFromContext returns the address stored by WithClientIP, or "".
func ClientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
