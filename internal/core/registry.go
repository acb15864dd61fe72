package core

import (
	"fmt"
	"slices"
	"sync"
)

// tables holds every importable table definition. Definitions register
// themselves from package tables at init.
var tables = struct {
	sync.RWMutex
	defs map[string]TableDefinition
}{defs: make(map[string]TableDefinition)}

// Register adds a table definition. It panics on a duplicate key or a
// definition without a Build function, both programming errors.
func Register(def TableDefinition) {
	if def.Build == nil {
		panic(fmt.Sprintf("core: table %q registered without Build", def.Info.Key))
	}
	if len(def.Info.Columns) == 0 {
		for _, spec := range def.FieldSpecs {
			def.Info.Columns = append(def.Info.Columns, spec.Name)
		}
	}

	tables.Lock()
	defer tables.Unlock()
	if _, dup := tables.defs[def.Info.Key]; dup {
		panic(fmt.Sprintf("core: table %q registered twice", def.Info.Key))
	}
	tables.defs[def.Info.Key] = def
}

// Get looks up a table definition by key.
func Get(key string) (TableDefinition, bool) {
	tables.RLock()
	defer tables.RUnlock()
	def, ok := tables.defs[key]
	return def, ok
}

// All returns the registered definitions in import order.
func All() []TableDefinition {
	tables.RLock()
	out := make([]TableDefinition, 0, len(tables.defs))
	for _, def := range tables.defs {
		out = append(out, def)
	}
	tables.RUnlock()

	slices.SortFunc(out, func(a, b TableDefinition) int {
		if a.Info.Order != b.Info.Order {
			return a.Info.Order - b.Info.Order
		}
		if a.Info.Key < b.Info.Key {
			return -1
		}
		return 1
	})
	return out
}

// TableCount returns the number of registered tables.
func TableCount() int {
	tables.RLock()
	defer tables.RUnlock()
	return len(tables.defs)
}
