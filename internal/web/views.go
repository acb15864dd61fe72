package web

import (
	"net/http"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/opticfit/internal/logging"
)

// render writes c as an HTML page.
func render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render page", "path", r.URL.Path, "error", err)
	}
}
