package web

import "net/http"

// handleAuditLog returns the newest audit entries, ?limit= capped at 500.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.ListAudit(r.Context(), parseIntParam(r, "limit", 100))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"entries": entries, "count": len(entries)})
}
