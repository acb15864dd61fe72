package tables

import (
	"fmt"

	"github.com/JonMunkholm/opticfit/internal/catalog"
	"github.com/JonMunkholm/opticfit/internal/core"
	"github.com/JonMunkholm/opticfit/internal/store"
)

func init() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:         catalog.TableModels,
			Label:       "Models",
			ScopeColumn: "make_id",
			Order:       3,
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "name", Required: true, Description: "Model name, unique within its make"},
			{Name: "make", Required: true, Description: "Existing make name (case-insensitive)"},
			{Name: "fit_type", Description: "single, multi, plate_based or mixed (default single)"},
			{Name: "notes", Description: "Free text"},
		},
		Build: buildModel,
	})
}

func buildModel(rec core.Record, refs *core.Snapshot) (core.Prepared, error) {
	name, err := required(rec, "name")
	if err != nil {
		return core.Prepared{}, err
	}
	makeName, err := required(rec, "make")
	if err != nil {
		return core.Prepared{}, err
	}
	makeID, ok := refs.MakeID(makeName)
	if !ok {
		return core.Prepared{}, fmt.Errorf("make %q not found", makeName)
	}

	fit := catalog.DefaultFitType
	if v := rec.Get("fit_type"); v != "" {
		fit, err = catalog.ParseFitType(v)
		if err != nil {
			return core.Prepared{}, err
		}
	}

	row := store.Row{
		"name":     name,
		"make_id":  makeID,
		"fit_type": fit.String(),
	}
	setOptional(row, rec, "notes", sanitizeNotes)

	return core.Prepared{Name: name, Scope: makeID, Row: row}, nil
}
