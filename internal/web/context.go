package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/opticfit/internal/core"
	mw "github.com/JonMunkholm/opticfit/internal/web/middleware"
)

// requestContext attaches the caller's IP, user agent and session subject to
// the request context for audit logging.
func requestContext(r *http.Request) context.Context {
	actor := ""
	if claims, ok := mw.ClaimsFromContext(r.Context()); ok {
		actor = claims.Subject
	}
	return core.WithRequestMeta(r.Context(), core.RequestMeta{
		IPAddress: mw.ClientIP(r),
		UserAgent: r.UserAgent(),
		Actor:     actor,
	})
}
