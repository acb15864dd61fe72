package core

import (
	"github.com/JonMunkholm/opticfit/internal/store"
)

// Record is one parsed CSV data row: lowercase column name -> trimmed value.
type Record map[string]string

// Get returns the trimmed value for column, "" when absent.
func (r Record) Get(column string) string {
	return r[column]
}

// FieldSpec describes one CSV input column of an importable table.
type FieldSpec struct {
	Name        string // lowercase CSV header
	Required    bool   // row is skipped when the value is empty
	Description string // shown on the import template page
}

// TableInfo describes an importable table.
type TableInfo struct {
	Key   string // store table name, also the URL key
	Label string // display name

	// Columns are the expected CSV headers, filled from FieldSpecs.
	Columns []string

	// ScopeColumn narrows natural-key matching to one parent, e.g. make_id
	// for models. Empty means the name alone identifies a row.
	ScopeColumn string

	// Order is the position of the table in the documented import order.
	Order int
}

// Link is a join row created after a new row is inserted, unless an
// identical join already exists. OwnerColumn receives the new row's id.
type Link struct {
	Table       string
	OwnerColumn string
	Row         store.Row
}

// Prepared is the store-ready form of an imported record.
type Prepared struct {
	// Name is the natural key value.
	Name string

	// Scope is the value for TableInfo.ScopeColumn (ignored when unset).
	Scope int64

	// Row holds the columns written on insert and on update.
	Row store.Row

	// OnInsert lists joins to create when the row is new.
	OnInsert []Link
}

// TableDefinition is everything the reconciliation engine needs for one table.
type TableDefinition struct {
	Info       TableInfo
	FieldSpecs []FieldSpec

	// Build validates rec and resolves its natural-name references against
	// the batch snapshot. A returned error becomes the row's skip reason.
	Build func(rec Record, refs *Snapshot) (Prepared, error)
}

// RequiredColumns returns the names of required fields.
func (d TableDefinition) RequiredColumns() []string {
	var cols []string
	for _, f := range d.FieldSpecs {
		if f.Required {
			cols = append(cols, f.Name)
		}
	}
	return cols
}
