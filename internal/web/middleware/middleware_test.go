package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/opticfit/internal/auth"
	"github.com/JonMunkholm/opticfit/internal/ratelimit"
)

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		realIP  string
		xff     string
		trusted []string
		want    string
	}{
		{"untrusted peer keeps remote", "203.0.113.9:5000", "1.2.3.4", "", []string{"10.0.0.0/8"}, "203.0.113.9:5000"},
		{"trusted peer uses X-Real-IP", "10.0.0.2:5000", "1.2.3.4", "", []string{"10.0.0.0/8"}, "1.2.3.4"},
		{"right-most untrusted hop", "10.0.0.2:5000", "", "6.6.6.6, 1.2.3.4, 10.0.0.7", []string{"10.0.0.0/8"}, "1.2.3.4"},
		{"single IP entry", "127.0.0.1:80", "", "1.2.3.4", []string{"127.0.0.1"}, "1.2.3.4"},
		{"garbage header ignored", "10.0.0.2:5000", "not-an-ip", "", []string{"10.0.0.0/8"}, "10.0.0.2:5000"},
		{"no trusted proxies", "10.0.0.2:5000", "1.2.3.4", "", nil, "10.0.0.2:5000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[::ffff:192.0.2.1]:443"
	assert.Equal(t, "192.0.2.1", ClientIP(req))
}

type fakeVerifier struct{}

func (fakeVerifier) Verify(token string) (*auth.Claims, error) {
	if token == "good" {
		return &auth.Claims{Role: auth.RoleAdmin}, nil
	}
	return nil, auth.ErrUnauthorized
}

func TestRequireAdmin(t *testing.T) {
	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		_, ok := ClaimsFromContext(r.Context())
		assert.True(t, ok)
	})

	page := RequireAdmin(fakeVerifier{}, "admin_auth", "/admin/login", false)(next)
	api := RequireAdmin(fakeVerifier{}, "admin_auth", "/admin/login", true)(next)

	rec := httptest.NewRecorder()
	page.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/login", rec.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/admin/api/makes", nil)
	req.AddCookie(&http.Cookie{Name: "admin_auth", Value: "forged"})
	rec = httptest.NewRecorder()
	api.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "AUTH002")
	assert.False(t, reached)

	req = httptest.NewRequest(http.MethodGet, "/admin/api/makes", nil)
	req.AddCookie(&http.Cookie{Name: "admin_auth", Value: "good"})
	rec = httptest.NewRecorder()
	api.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, reached)
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(ratelimit.NewMemoryLimiter(), 2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 3)
	for i := range codes {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes[i] = rec.Code
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}

type failingLimiter struct{ ratelimit.Limiter }

func (failingLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func TestRateLimit_FailsOpen(t *testing.T) {
	h := RateLimit(failingLimiter{}, 1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogger_RecordsStatus(t *testing.T) {
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusTeapot, rec.Code, "only the first WriteHeader counts")
}
