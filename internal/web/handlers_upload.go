package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/opticfit/internal/catalog"
	"github.com/JonMunkholm/opticfit/internal/core"
	"github.com/JonMunkholm/opticfit/internal/logging"
	"github.com/JonMunkholm/opticfit/internal/storage"
)

// ImportResponse is the outcome of a CSV import.
type ImportResponse struct {
	Table    string   `json:"table"`
	FileName string   `json:"file_name"`
	Total    int      `json:"total"`
	Inserted int      `json:"inserted"`
	Updated  int      `json:"updated"`
	Skipped  []string `json:"skipped"`
}

// handleImport upserts an uploaded CSV ("file" field) into a table. Row
// failures are listed in the response; only file-level problems and an
// interrupted batch fail it.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	maxSize := s.cfg.Import.MaxFileSize

	file, header, err := formFile(w, r, "file", maxSize, core.ErrFileTooLarge)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer file.Close()

	result, err := s.service.ImportCSV(requestContext(r), table, file, maxSize)
	if err != nil {
		// a timeout or cancel mid-batch still reports what was written
		var partial *ImportResponse
		if result != nil {
			partial = importResponse(result, header.Filename)
		}
		s.respondImportError(w, r, err, partial)
		return
	}
	writeJSON(w, importResponse(result, header.Filename))
}

func importResponse(result *core.ImportResult, fileName string) *ImportResponse {
	skipped := result.Skipped
	if skipped == nil {
		skipped = []string{}
	}
	return &ImportResponse{
		Table:    result.Table,
		FileName: fileName,
		Total:    result.Total(),
		Inserted: result.Inserted,
		Updated:  result.Updated,
		Skipped:  skipped,
	}
}

// handlePreview reports what importing the uploaded CSV would do, without
// writing anything.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	maxSize := s.cfg.Import.MaxFileSize

	file, _, err := formFile(w, r, "file", maxSize, core.ErrFileTooLarge)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer file.Close()

	result, err := s.service.PreviewCSV(r.Context(), table, file, maxSize)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// handleImageUpload stores an optic image ("image" field) and returns its
// public URL for optics.image_url.
func (s *Server) handleImageUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := formFile(w, r, "image", s.images.MaxSize(), storage.ErrImageTooLarge)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer file.Close()

	ctx := requestContext(r)
	img, err := s.images.Upload(ctx, header.Filename, file)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if _, err := s.service.LogAudit(ctx, core.AuditLogParams{
		Action:   core.ActionImageUpload,
		TableKey: catalog.TableOptics,
		Details:  map[string]any{"key": img.Key, "url": img.URL, "size": img.Size, "content_type": img.ContentType},
	}); err != nil {
		logging.FromContext(ctx).Error("audit image upload", "error", err)
	}
	writeJSONStatus(w, http.StatusCreated, img)
}
