package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/opticfit/internal/catalog"
	"github.com/JonMunkholm/opticfit/internal/core"
	_ "github.com/JonMunkholm/opticfit/internal/core/tables"
	"github.com/JonMunkholm/opticfit/internal/store"
)

// newTestService returns a Service over an in-memory store carrying the same
// unique constraints as the Postgres schema.
func newTestService(t *testing.T) (*core.Service, *store.Memory) {
	t.Helper()

	mem := store.NewMemory()
	mem.Unique(catalog.TableMakes, "name")
	mem.Unique(catalog.TableOpticMakes, "name")
	mem.Unique(catalog.TableFootprints, "name")
	mem.Unique(catalog.TableModels, "make_id", "name")
	mem.Unique(catalog.TableModelFootprints, "model_id", "footprint_id")
	mem.Unique(catalog.TablePlates, "model_id", "name")
	mem.Unique(catalog.TableOptics, "optic_make_id", "name")
	mem.Unique(catalog.TableOpticFootprints, "optic_id", "footprint_id")
	mem.Unique(catalog.TableOpticModelCompat, "optic_id", "model_id")

	svc, err := core.NewService(mem, core.Options{})
	require.NoError(t, err)
	return svc, mem
}

func insert(t *testing.T, st store.Store, table string, row store.Row) int64 {
	t.Helper()
	id, err := st.Insert(context.Background(), table, row)
	require.NoError(t, err, "insert %s", table)
	return id
}

// fixture is a small catalog:
//
//	Glock: G19 (single, RMR), G45 (mixed, RMSc + plate to RMR), G17 (plate_based)
//	Trijicon RMR (standard, RMR), Holosun 507K (standard, RMSc),
//	Shield RMSc (direct_mount, linked to G19 and wrongly joined to RMSc)
type fixture struct {
	glock, sig                     int64
	trijicon, holosun, shield      int64
	rmr, rmsc, acro                int64
	g19, g45, g17, p365            int64
	opticRMR, optic507K, opticSMSc int64
	g45Plate, g17Plate             int64
}

func seedCatalog(t *testing.T, st store.Store) fixture {
	t.Helper()
	var f fixture

	f.glock = insert(t, st, catalog.TableMakes, store.Row{"name": "Glock"})
	f.sig = insert(t, st, catalog.TableMakes, store.Row{"name": "Sig Sauer"})
	f.trijicon = insert(t, st, catalog.TableOpticMakes, store.Row{"name": "Trijicon"})
	f.holosun = insert(t, st, catalog.TableOpticMakes, store.Row{"name": "Holosun"})
	f.shield = insert(t, st, catalog.TableOpticMakes, store.Row{"name": "Shield"})

	f.rmr = insert(t, st, catalog.TableFootprints, store.Row{"name": "RMR"})
	f.rmsc = insert(t, st, catalog.TableFootprints, store.Row{"name": "RMSc"})
	f.acro = insert(t, st, catalog.TableFootprints, store.Row{"name": "ACRO"})

	f.g19 = insert(t, st, catalog.TableModels, store.Row{"name": "G19", "make_id": f.glock, "fit_type": "single"})
	f.g45 = insert(t, st, catalog.TableModels, store.Row{"name": "G45", "make_id": f.glock, "fit_type": "mixed"})
	f.g17 = insert(t, st, catalog.TableModels, store.Row{"name": "G17", "make_id": f.glock, "fit_type": "plate_based"})
	f.p365 = insert(t, st, catalog.TableModels, store.Row{"name": "P365", "make_id": f.sig, "fit_type": "single"})

	insert(t, st, catalog.TableModelFootprints, store.Row{"model_id": f.g19, "footprint_id": f.rmr})
	insert(t, st, catalog.TableModelFootprints, store.Row{"model_id": f.g45, "footprint_id": f.rmsc})
	insert(t, st, catalog.TableModelFootprints, store.Row{"model_id": f.g17, "footprint_id": f.rmr})
	insert(t, st, catalog.TableModelFootprints, store.Row{"model_id": f.p365, "footprint_id": f.acro})

	f.opticRMR = insert(t, st, catalog.TableOptics, store.Row{"name": "RMR Type 2", "optic_make_id": f.trijicon, "mount_type": "standard", "msrp": 499.0})
	f.optic507K = insert(t, st, catalog.TableOptics, store.Row{"name": "507K", "optic_make_id": f.holosun, "mount_type": "standard"})
	f.opticSMSc = insert(t, st, catalog.TableOptics, store.Row{"name": "SMSc", "optic_make_id": f.shield, "mount_type": "direct_mount"})

	insert(t, st, catalog.TableOpticFootprints, store.Row{"optic_id": f.opticRMR, "footprint_id": f.rmr})
	insert(t, st, catalog.TableOpticFootprints, store.Row{"optic_id": f.optic507K, "footprint_id": f.rmsc})
	insert(t, st, catalog.TableOpticFootprints, store.Row{"optic_id": f.opticSMSc, "footprint_id": f.rmsc})
	insert(t, st, catalog.TableOpticModelCompat, store.Row{"optic_id": f.opticSMSc, "model_id": f.g19})

	f.g45Plate = insert(t, st, catalog.TablePlates, store.Row{"name": "G45 RMR plate", "model_id": f.g45, "footprint_id": f.rmr})
	f.g17Plate = insert(t, st, catalog.TablePlates, store.Row{"name": "G17 ACRO plate", "model_id": f.g17, "footprint_id": f.acro})

	return f
}

func opticNames(optics []catalog.Optic) []string {
	names := make([]string, len(optics))
	for i, o := range optics {
		names[i] = o.Name
	}
	return names
}
