package web

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/opticfit/internal/auth"
	"github.com/JonMunkholm/opticfit/internal/core"
	"github.com/JonMunkholm/opticfit/internal/logging"
	mw "github.com/JonMunkholm/opticfit/internal/web/middleware"
	"github.com/JonMunkholm/opticfit/internal/web/templates"
)

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	render(w, r, templates.Page("Admin sign in", templates.Login("")))
}

// handleLogin accepts {"password": "..."} as JSON or a form post from the
// login page. On success the admin session cookie is set.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	form := !strings.Contains(r.Header.Get("Content-Type"), "application/json")

	var req struct {
		Password string `json:"password"`
	}
	if form {
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		req.Password = r.PostFormValue("password")
	} else if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := requestContext(r)
	token, expires, err := s.login.Login(ctx, mw.ClientIP(r), req.Password)
	if err != nil {
		if form && (errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrTooManyAttempts)) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(statusFor(err))
			if rerr := templates.Page("Admin sign in", templates.Login(core.MapError(err).Message)).Render(r.Context(), w); rerr != nil {
				logging.FromContext(ctx).Error("render login page", "error", rerr)
			}
			return
		}
		s.respondError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.Auth.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	if _, err := s.service.LogAudit(ctx, core.AuditLogParams{Action: core.ActionLogin, TableKey: "admin"}); err != nil {
		logging.FromContext(ctx).Error("audit login", "error", err)
	}

	if form {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	writeJSON(w, map[string]any{"status": "ok", "expires_at": expires})
}

// handleLogout clears the admin session cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.Auth.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, map[string]string{"status": "logged_out"})
}
