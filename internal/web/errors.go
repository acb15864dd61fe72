package web

// errors.go turns handler errors into responses. The technical error is
// logged with the request id; the client sees the message core.MapError
// picks for it, as JSON for API routes and as an HTML alert for pages.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/opticfit/internal/auth"
	"github.com/JonMunkholm/opticfit/internal/core"
	"github.com/JonMunkholm/opticfit/internal/logging"
	"github.com/JonMunkholm/opticfit/internal/storage"
	"github.com/JonMunkholm/opticfit/internal/store"
	"github.com/JonMunkholm/opticfit/internal/web/templates"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string                `json:"error"`
	Message string                `json:"message"`
	Action  string                `json:"action,omitempty"`
	Code    string                `json:"code"`
	Fields  core.ValidationErrors `json:"fields,omitempty"`
	// Partial holds the rows an interrupted import had already written.
	Partial *ImportResponse `json:"partial,omitempty"`
}

// respondError logs err and writes its user-facing form with the status
// statusFor picks.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	s.respondImportError(w, r, err, nil)
}

// respondImportError is respondError with the counts of an import that was
// cut short. JSON clients get them under "partial".
func (s *Server) respondImportError(w http.ResponseWriter, r *http.Request, err error, partial *ImportResponse) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err,
		"code", userMsg.Code,
	}
	if partial != nil {
		attrs = append(attrs, "inserted", partial.Inserted, "updated", partial.Updated, "skipped", len(partial.Skipped))
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request rejected", attrs...)
	}

	if wantsJSON(r) {
		resp := ErrorResponse{
			Error:   userMsg.Message,
			Message: userMsg.Message,
			Action:  userMsg.Action,
			Code:    userMsg.Code,
		}
		if fields, ok := core.AsValidationErrors(err); ok {
			resp.Fields = fields
		}
		resp.Partial = partial
		writeJSONStatus(w, status, resp)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.Page("Error", templates.ErrorAlert(userMsg.Message, userMsg.Action, userMsg.Code)).Render(r.Context(), w); err != nil {
		logger.Error("render error page", "error", err)
	}
}

// statusFor maps an error to an HTTP status.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrUnknownTable), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicate), errors.Is(err, store.ErrConflict), errors.Is(err, core.ErrStaleResolution):
		return http.StatusConflict
	case errors.Is(err, core.ErrFileTooLarge), errors.Is(err, storage.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, storage.ErrUnsupportedImage):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, errBadRequest),
		errors.Is(err, core.ErrNotWritable),
		errors.Is(err, core.ErrInvalidCSV),
		errors.Is(err, core.ErrEmptyFile),
		errors.Is(err, core.ErrMissingColumns),
		errors.Is(err, core.ErrAmbiguousReference):
		return http.StatusBadRequest
	}
	if _, ok := core.AsValidationErrors(err); ok {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// wantsJSON reports whether the client expects a JSON error body.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/admin/api/")
}

// writeJSON encodes v with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
