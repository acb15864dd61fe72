package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/opticfit/internal/core"
)

// handleListTable returns every stored row of a catalog table.
func (s *Server) handleListTable(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	rows, err := s.service.ListRows(r.Context(), table)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"table": table, "rows": rows, "count": len(rows)})
}

func (s *Server) handleCreateModel(w http.ResponseWriter, r *http.Request) {
	var in core.ModelInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}
	model, err := s.service.CreateModel(requestContext(r), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, model)
}

func (s *Server) handleCreateOptic(w http.ResponseWriter, r *http.Request) {
	var in core.OpticInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}
	optic, err := s.service.CreateOptic(requestContext(r), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, optic)
}

func (s *Server) handleCreatePlate(w http.ResponseWriter, r *http.Request) {
	var in core.PlateInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}
	plate, err := s.service.CreatePlate(requestContext(r), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, plate)
}

// handleUpdateModelFootprints replaces a model's direct footprint links.
func (s *Server) handleUpdateModelFootprints(w http.ResponseWriter, r *http.Request) {
	modelID, err := idParam(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req struct {
		FootprintIDs []int64 `json:"footprint_ids"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.service.UpdateModelFootprints(requestContext(r), modelID, req.FootprintIDs); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"status": "updated", "model_id": modelID, "footprint_ids": req.FootprintIDs})
}

func (s *Server) handleCreateRow(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	var data map[string]any
	if err := decodeJSON(w, r, &data); err != nil {
		s.respondError(w, r, err)
		return
	}
	id, err := s.service.Create(requestContext(r), table, data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]any{"table": table, "id": id})
}

func (s *Server) handleUpdateRow(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	id, err := idParam(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var data map[string]any
	if err := decodeJSON(w, r, &data); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.service.Update(requestContext(r), table, id, data); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"status": "updated", "table": table, "id": id})
}

// handleDeleteRow deletes a row and its dependents. The response counts
// every removed row.
func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	id, err := idParam(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	n, err := s.service.Delete(requestContext(r), table, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"status": "deleted", "table": table, "id": id, "deleted": n})
}
