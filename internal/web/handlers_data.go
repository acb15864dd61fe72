package web

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/opticfit/internal/core"
	"github.com/JonMunkholm/opticfit/internal/logging"
)

// handleExport downloads every stored row of a table as CSV. The body is
// built before any header is sent so a store failure still gets an error
// response.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	var buf bytes.Buffer
	n, err := s.service.ExportCSV(r.Context(), table, &buf)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	timestamp := time.Now().Format("20060102_150405")
	sendCSV(w, r, fmt.Sprintf("%s_%s.csv", table, timestamp), buf.Bytes())
	logging.FromContext(r.Context()).Info("export", "table", table, "rows", n)
}

// handleTemplate downloads the header row an import of table expects.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	var buf bytes.Buffer
	if err := core.Template(table, &buf); err != nil {
		s.respondError(w, r, err)
		return
	}
	sendCSV(w, r, table+"_template.csv", buf.Bytes())
}

func sendCSV(w http.ResponseWriter, r *http.Request, filename string, body []byte) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	if _, err := w.Write(body); err != nil {
		logging.FromContext(r.Context()).Warn("csv write interrupted", "file", filename, "error", err)
	}
}
