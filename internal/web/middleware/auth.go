package middleware

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/opticfit/internal/auth"
	"github.com/JonMunkholm/opticfit/internal/logging"
)

// TokenVerifier checks an admin session token.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type claimsKey struct{}

// ClaimsFromContext returns the session claims set by RequireAdmin.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return c, ok
}

// RequireAdmin rejects requests without a valid session cookie. Page requests
// are redirected to loginPath; API requests get a 401 JSON body. Nothing
// downstream runs for a rejected request.
func RequireAdmin(verifier TokenVerifier, cookieName, loginPath string, api bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				reject(w, r, loginPath, api)
				return
			}

			claims, err := verifier.Verify(cookie.Value)
			if err != nil {
				logging.FromContext(r.Context()).Warn("auth: invalid session",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
					"error", err,
				)
				reject(w, r, loginPath, api)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func reject(w http.ResponseWriter, r *http.Request, loginPath string, api bool) {
	if api {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"unauthorized","message":"Please sign in","code":"AUTH002"}`))
		return
	}
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}
