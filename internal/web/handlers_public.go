package web

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/opticfit/internal/web/templates"
)

// handleHome renders the make picker.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	makes, err := s.service.ListMakes(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	render(w, r, templates.Page("Find an optic for your pistol", templates.Home(makes)))
}

// handleHealth reports whether the store is reachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.service.Ping(ctx); err != nil {
		writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleListMakes(w http.ResponseWriter, r *http.Request) {
	makes, err := s.service.ListMakes(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, makes)
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	makeID, err := idParam(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	models, err := s.service.ListModelsByMake(r.Context(), makeID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, models)
}

// handleResolve returns the three compatibility pools for a model. Requests
// are tracked per browser session, so when a visitor changes selection
// quickly only the newest request's answer is kept; a superseded request
// gets 409.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	modelID, err := idParam(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := s.service.ResolveForSession(r.Context(), s.browserSession(w, r), modelID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// browserSession returns the visitor's sid cookie, issuing one if absent.
func (s *Server) browserSession(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	sid := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Auth.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return sid
}
