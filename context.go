package tierauth

import "context"

type clientAddressContextKey struct{}
type userAgentContextKey struct{}

// WithClientAddress attaches the caller's network address to ctx. The
// Lifecycle uses it to bind token records to their originating client and to
// derive the anonymous visitor hash.
func WithClientAddress(ctx context.Context, address string) context.Context {
	return context.WithValue(ctx, clientAddressContextKey{}, address)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx. Used together
// with the client address for record binding and visitor hashing.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

func clientAddressFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	address, _ := ctx.Value(clientAddressContextKey{}).(string)
	return address
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}
