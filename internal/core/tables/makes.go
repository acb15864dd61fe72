// Package tables registers the CSV import definitions of every importable
// catalog table with the core registry. Import it for side effects.
package tables

import (
	"github.com/JonMunkholm/opticfit/internal/catalog"
	"github.com/JonMunkholm/opticfit/internal/core"
	"github.com/JonMunkholm/opticfit/internal/store"
)

func init() {
	registerNamed(catalog.TableMakes, "Makes", 0, "Firearm manufacturer, e.g. Glock")
	registerNamed(catalog.TableOpticMakes, "Optic makes", 1, "Optic manufacturer, e.g. Trijicon")
	registerFootprints()
}

// registerNamed registers a table whose only column is its name.
func registerNamed(key, label string, order int, desc string) {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{Key: key, Label: label, Order: order},
		FieldSpecs: []core.FieldSpec{
			{Name: "name", Required: true, Description: desc},
		},
		Build: func(rec core.Record, _ *core.Snapshot) (core.Prepared, error) {
			name, err := required(rec, "name")
			if err != nil {
				return core.Prepared{}, err
			}
			return core.Prepared{Name: name, Row: store.Row{"name": name}}, nil
		},
	})
}

func registerFootprints() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{Key: catalog.TableFootprints, Label: "Footprints", Order: 2},
		FieldSpecs: []core.FieldSpec{
			{Name: "name", Required: true, Description: "Mounting pattern, e.g. RMR"},
			{Name: "description", Description: "Free text"},
		},
		Build: func(rec core.Record, _ *core.Snapshot) (core.Prepared, error) {
			name, err := required(rec, "name")
			if err != nil {
				return core.Prepared{}, err
			}
			row := store.Row{"name": name}
			setOptional(row, rec, "description", sanitizeNotes)
			return core.Prepared{Name: name, Row: row}, nil
		},
	})
}
