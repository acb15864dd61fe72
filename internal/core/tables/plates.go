package tables

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/opticfit/internal/catalog"
	"github.com/JonMunkholm/opticfit/internal/core"
	"github.com/JonMunkholm/opticfit/internal/store"
)

func init() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:         catalog.TablePlates,
			Label:       "Plates",
			ScopeColumn: "model_id",
			Order:       5,
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "name", Required: true, Description: "Plate name"},
			{Name: "model", Required: true, Description: "Existing model name (case-insensitive)"},
			{Name: "footprint", Required: true, Description: "Footprint the plate presents"},
			{Name: "make", Description: "Make of the model, needed when the model name exists under several makes"},
			{Name: "purchase_url"},
			{Name: "notes", Description: "Free text"},
		},
		Build: buildPlate,
	})
}

func buildPlate(rec core.Record, refs *core.Snapshot) (core.Prepared, error) {
	name, err := required(rec, "name")
	if err != nil {
		return core.Prepared{}, err
	}
	modelName, err := required(rec, "model")
	if err != nil {
		return core.Prepared{}, err
	}
	modelID, err := refs.ModelID(modelName, rec.Get("make"))
	if err != nil {
		return core.Prepared{}, err
	}
	fp, err := required(rec, "footprint")
	if err != nil {
		return core.Prepared{}, err
	}
	footprintID, ok := refs.FootprintID(fp)
	if !ok {
		return core.Prepared{}, fmt.Errorf("footprint %q not found", fp)
	}

	row := store.Row{
		"name":         name,
		"model_id":     modelID,
		"footprint_id": footprintID,
	}
	setOptional(row, rec, "purchase_url", strings.TrimSpace)
	setOptional(row, rec, "notes", sanitizeNotes)

	return core.Prepared{Name: name, Scope: modelID, Row: row}, nil
}
