package web

import (
	"net/http"

	"github.com/JonMunkholm/opticfit/internal/catalog"
	"github.com/JonMunkholm/opticfit/internal/core"
	"github.com/JonMunkholm/opticfit/internal/logging"
	"github.com/JonMunkholm/opticfit/internal/web/templates"
)

// handleAdminHome renders the dashboard: catalog tables with their CSV
// actions, import slot usage and the latest audit entries.
func (s *Server) handleAdminHome(w http.ResponseWriter, r *http.Request) {
	imports := s.service.ImportLimiterStatus()
	data := templates.AdminParams{
		ImportOrder:   catalog.ImportOrder,
		ImportsActive: imports.Active,
		ImportsMax:    imports.MaxConcurrent,
		MaxImageKB:    s.images.MaxSize() >> 10,
	}
	for _, table := range catalog.CatalogTables {
		_, ok := core.Get(table)
		data.Tables = append(data.Tables, templates.AdminTable{Name: table, HasTemplate: ok})
	}

	entries, err := s.service.ListAudit(r.Context(), 10)
	if err != nil {
		logging.FromContext(r.Context()).Warn("admin: audit unavailable", "error", err)
	}
	data.Audit = entries

	render(w, r, templates.Page("Catalog admin", templates.Admin(data)))
}
