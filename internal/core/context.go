package core

import "context"

type contextKey string

const (
	ctxKeyIPAddress contextKey = "audit_ip"
	ctxKeyUserAgent contextKey = "audit_ua"
	ctxKeyActor     contextKey = "audit_actor"
)

// RequestMeta is the caller information copied into audit entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
	Actor     string // "admin" for the dashboard, "cli" for opticctl
}

// WithRequestMeta attaches request metadata to ctx for audit logging.
func WithRequestMeta(ctx context.Context, m RequestMeta) context.Context {
	if m.IPAddress != "" {
		ctx = context.WithValue(ctx, ctxKeyIPAddress, m.IPAddress)
	}
	if m.UserAgent != "" {
		ctx = context.WithValue(ctx, ctxKeyUserAgent, m.UserAgent)
	}
	if m.Actor != "" {
		ctx = context.WithValue(ctx, ctxKeyActor, m.Actor)
	}
	return ctx
}

// GetIPAddressFromContext extracts the client IP address.
func GetIPAddressFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyIPAddress).(string)
	return v
}

// GetUserAgentFromContext extracts the client User-Agent.
func GetUserAgentFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyUserAgent).(string)
	return v
}

// GetActorFromContext extracts who performed the action.
func GetActorFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyActor).(string)
	return v
}
