package sessionauth

import "context"

type requestKey int

const (
	clientIPKey requestKey = iota
	userAgentKey
)

// WithClientIP records the caller address on ctx. Login throttling and audit
// events read it back.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// WithUserAgent records the raw User-Agent header on ctx so Login can derive
// the device of the new session.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentKey, userAgent)
}

func requestValue(ctx context.Context, key requestKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func clientIPFromContext(ctx context.Context) string { return requestValue(ctx, clientIPKey) }

func userAgentFromContext(ctx context.Context) string { return requestValue(ctx, userAgentKey) }
