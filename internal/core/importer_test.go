package core_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/opticfit/internal/catalog"
	"github.com/JonMunkholm/opticfit/internal/core"
	"github.com/JonMunkholm/opticfit/internal/store"
)

func selectAll(t *testing.T, st store.Store, table string, filters ...store.Filter) []store.Row {
	t.Helper()
	rows, err := st.Select(context.Background(), table, store.Where(filters...))
	require.NoError(t, err)
	return rows
}

func TestImportRows_InsertThenUpdate(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	rows := []core.Record{{"name": "Glock"}, {"name": "Sig Sauer"}}

	res, err := svc.ImportRows(ctx, catalog.TableMakes, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 0, res.Updated)
	assert.Empty(t, res.Skipped)

	res, err = svc.ImportRows(ctx, catalog.TableMakes, rows)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted, "re-importing the same file inserts nothing")
	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 2, mem.Len(catalog.TableMakes))
}

func TestImportRows_ModelsScopedByMake(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	glock := insert(t, mem, catalog.TableMakes, store.Row{"name": "Glock"})
	sig := insert(t, mem, catalog.TableMakes, store.Row{"name": "Sig Sauer"})

	res, err := svc.ImportRows(ctx, catalog.TableModels, []core.Record{
		{"name": "Compact", "make": "Glock"},
		{"name": "Compact", "make": "Sig Sauer"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted, "same name under two makes is two models")

	res, err = svc.ImportRows(ctx, catalog.TableModels, []core.Record{
		{"name": "Compact", "make": "glock", "fit_type": "multi"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	g := selectAll(t, mem, catalog.TableModels, store.Eq("make_id", glock))
	require.Len(t, g, 1)
	assert.Equal(t, "multi", g[0].String("fit_type"))

	s := selectAll(t, mem, catalog.TableModels, store.Eq("make_id", sig))
	require.Len(t, s, 1)
	assert.Equal(t, "single", s[0].String("fit_type"))
}

func TestImportRows_ReferencesAreCaseInsensitive(t *testing.T) {
	svc, mem := newTestService(t)
	insert(t, mem, catalog.TableMakes, store.Row{"name": "Smith & Wesson"})

	res, err := svc.ImportRows(context.Background(), catalog.TableModels, []core.Record{
		{"name": "M&P9 2.0", "make": "SMITH & WESSON"},
		{"name": "Shield Plus", "make": "  smith & wesson "},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	assert.Empty(t, res.Skipped)
}

func TestImportRows_RowFailuresAreIsolated(t *testing.T) {
	svc, mem := newTestService(t)
	insert(t, mem, catalog.TableMakes, store.Row{"name": "Glock"})

	res, err := svc.ImportRows(context.Background(), catalog.TableModels, []core.Record{
		{"name": "G19", "make": "Glock"},
		{"name": "PDP", "make": "Walther"},
		{"name": "", "make": "Glock"},
		{"name": "G48", "make": "Glock", "fit_type": "rail"},
		{"name": "G43X", "make": "Glock"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Inserted)
	require.Len(t, res.Skipped, 3)
	assert.Contains(t, res.Skipped[0], "row 2 (PDP)")
	assert.Contains(t, res.Skipped[0], `make "Walther" not found`)
	assert.Contains(t, res.Skipped[1], "row 3 (no name)")
	assert.Contains(t, res.Skipped[2], "row 4 (G48)")
	assert.Contains(t, res.Skipped[2], "invalid fit_type")
	assert.Equal(t, res.Total(), 5)
}

// selectCounter counts Select calls per table on the wrapped store.
type selectCounter struct {
	*store.Memory
	mu    sync.Mutex
	calls map[string]int
}

func (c *selectCounter) Select(ctx context.Context, table string, q store.Query) ([]store.Row, error) {
	c.mu.Lock()
	c.calls[table]++
	c.mu.Unlock()
	return c.Memory.Select(ctx, table, q)
}

func TestImportRows_ReferencesLoadedOncePerBatch(t *testing.T) {
	_, mem := newTestService(t)
	counter := &selectCounter{Memory: mem, calls: map[string]int{}}
	svc, err := core.NewService(counter, core.Options{})
	require.NoError(t, err)
	insert(t, mem, catalog.TableMakes, store.Row{"name": "Glock"})

	rows := make([]core.Record, 20)
	for i := range rows {
		rows[i] = core.Record{"name": "Model " + string(rune('A'+i)), "make": "Glock"}
	}
	res, err := svc.ImportRows(context.Background(), catalog.TableModels, rows)
	require.NoError(t, err)
	assert.Equal(t, 20, res.Inserted)
	assert.Equal(t, 1, counter.calls[catalog.TableMakes])
}

func TestImportRows_PlatesSeeModelsFromBeforeTheBatch(t *testing.T) {
	svc, mem := newTestService(t)
	f := seedCatalog(t, mem)
	ctx := context.Background()

	res, err := svc.ImportRows(ctx, catalog.TablePlates, []core.Record{
		{"name": "G19 ACRO plate", "model": "g19", "footprint": "acro"},
		{"name": "G99 plate", "model": "G99", "footprint": "RMR"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	require.Len(t, res.Skipped, 1)
	assert.Contains(t, res.Skipped[0], `model "G99" not found`)

	plates := selectAll(t, mem, catalog.TablePlates, store.Eq("name", "G19 ACRO plate"))
	require.Len(t, plates, 1)
	assert.Equal(t, f.g19, plates[0].Int64("model_id"))
	assert.Equal(t, f.acro, plates[0].Int64("footprint_id"))
}

func TestImportRows_PlatesScopedByModel(t *testing.T) {
	svc, mem := newTestService(t)
	f := seedCatalog(t, mem)
	ctx := context.Background()

	res, err := svc.ImportRows(ctx, catalog.TablePlates, []core.Record{
		{"name": "RMR plate", "model": "G17", "footprint": "RMR"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)

	res, err = svc.ImportRows(ctx, catalog.TablePlates, []core.Record{
		{"name": "RMR plate", "model": "P365", "footprint": "RMR"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted, "same plate name under another model is a new plate")
	assert.Equal(t, 0, res.Updated)

	plates := selectAll(t, mem, catalog.TablePlates, store.Eq("name", "RMR plate"))
	require.Len(t, plates, 2)
	owners := []int64{plates[0].Int64("model_id"), plates[1].Int64("model_id")}
	assert.ElementsMatch(t, []int64{f.g17, f.p365}, owners)

	res, err = svc.ImportRows(ctx, catalog.TablePlates, []core.Record{
		{"name": "RMR plate", "model": "g17", "footprint": "ACRO", "notes": "v2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	g17 := selectAll(t, mem, catalog.TablePlates, store.Eq("model_id", f.g17), store.Eq("name", "RMR plate"))
	require.Len(t, g17, 1)
	assert.Equal(t, f.acro, g17[0].Int64("footprint_id"))
}

func TestImportRows_OpticFootprintLinkedOnInsertOnly(t *testing.T) {
	svc, mem := newTestService(t)
	f := seedCatalog(t, mem)
	ctx := context.Background()

	res, err := svc.ImportRows(ctx, catalog.TableOptics, []core.Record{
		{"name": "SRO", "optic_make": "trijicon", "footprint": "RMR"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Inserted)

	optic := selectAll(t, mem, catalog.TableOptics, store.Eq("name", "SRO"))[0]
	links := selectAll(t, mem, catalog.TableOpticFootprints, store.Eq("optic_id", optic.ID()))
	require.Len(t, links, 1)
	assert.Equal(t, f.rmr, links[0].Int64("footprint_id"))

	res, err = svc.ImportRows(ctx, catalog.TableOptics, []core.Record{
		{"name": "SRO", "optic_make": "Trijicon", "footprint": "RMSc"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	links = selectAll(t, mem, catalog.TableOpticFootprints, store.Eq("optic_id", optic.ID()))
	require.Len(t, links, 1, "updates never touch footprint links")
	assert.Equal(t, f.rmr, links[0].Int64("footprint_id"))
}

func TestImportRows_DirectMountWithFootprintIsSkipped(t *testing.T) {
	svc, mem := newTestService(t)
	seedCatalog(t, mem)
	ctx := context.Background()
	joins := mem.Len(catalog.TableOpticFootprints)

	res, err := svc.ImportRows(ctx, catalog.TableOptics, []core.Record{
		{"name": "RMRcc", "optic_make": "Trijicon", "mount_type": "direct_mount", "footprint": "RMR"},
		{"name": "K-Series", "optic_make": "Shield", "mount_type": "direct_mount"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	require.Len(t, res.Skipped, 1)
	assert.Contains(t, res.Skipped[0], "RMRcc")
	assert.Contains(t, res.Skipped[0], "direct_mount optic cannot have a footprint")

	assert.Empty(t, selectAll(t, mem, catalog.TableOptics, store.Eq("name", "RMRcc")))
	assert.Equal(t, joins, mem.Len(catalog.TableOpticFootprints), "no footprint join was written")
}

func TestImportRows_AbsentColumnsAreKept(t *testing.T) {
	svc, mem := newTestService(t)
	seedCatalog(t, mem)
	ctx := context.Background()

	_, err := svc.ImportRows(ctx, catalog.TableOptics, []core.Record{
		{"name": "SRO", "optic_make": "Trijicon", "msrp": "$579.00", "notes": "<i>large window</i>"},
	})
	require.NoError(t, err)

	res, err := svc.ImportRows(ctx, catalog.TableOptics, []core.Record{
		{"name": "SRO", "optic_make": "Trijicon", "reticle": "2.5 MOA"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	row := selectAll(t, mem, catalog.TableOptics, store.Eq("name", "SRO"))[0]
	require.NotNil(t, row.Float("msrp"))
	assert.Equal(t, 579.0, *row.Float("msrp"))
	assert.Equal(t, "large window", row.String("notes"))
	assert.Equal(t, "2.5 MOA", row.String("reticle"))
}

func TestImportRows_FailedLinkRollsBackRow(t *testing.T) {
	svc, mem := newTestService(t)
	seedCatalog(t, mem)
	before := mem.Len(catalog.TableOptics)

	mem.FailOn = func(op, table string, _ store.Row) error {
		if op == "insert" && table == catalog.TableOpticFootprints {
			return errors.New("disk full")
		}
		return nil
	}

	res, err := svc.ImportRows(context.Background(), catalog.TableOptics, []core.Record{
		{"name": "SRO", "optic_make": "Trijicon", "footprint": "RMR"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted)
	require.Len(t, res.Skipped, 1)
	assert.Contains(t, res.Skipped[0], "disk full")
	assert.Equal(t, before, mem.Len(catalog.TableOptics), "no half-written optic remains")
}

func TestImportRows_UnknownTable(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ImportRows(context.Background(), "holsters", nil)
	assert.ErrorIs(t, err, core.ErrUnknownTable)
}

func TestImportRows_CancelledMidBatch(t *testing.T) {
	svc, mem := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mem.FailOn = func(op, table string, _ store.Row) error {
		if table == catalog.TableMakes {
			cancel()
		}
		return nil
	}

	res, err := svc.ImportRows(ctx, catalog.TableMakes, []core.Record{
		{"name": "Glock"}, {"name": "Sig Sauer"}, {"name": "Walther"},
	})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res, "partial result is returned")
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, mem.Len(catalog.TableMakes))

	entries, err := svc.ListAudit(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1, "interrupted import is still audited")
	assert.Equal(t, string(core.ActionImport), entries[0].Action)
}

func TestImportCSV(t *testing.T) {
	svc, mem := newTestService(t)
	insert(t, mem, catalog.TableMakes, store.Row{"name": "Glock"})

	csvData := "\ufeffName,Make,Fit_Type\nG19 MOS,glock,single\n\n G45 MOS ,GLOCK,mixed\n"
	res, err := svc.ImportCSV(context.Background(), catalog.TableModels, strings.NewReader(csvData), 1<<20)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	assert.Empty(t, res.Skipped)

	rows := selectAll(t, mem, catalog.TableModels, store.Eq("name", "G45 MOS"))
	require.Len(t, rows, 1)
	assert.Equal(t, "mixed", rows[0].String("fit_type"))
}

func TestImportCSV_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		data    string
		max     int64
		wantErr error
		wantMsg string
	}{
		{name: "missing column", table: catalog.TableModels, data: "name\nG19\n", wantMsg: "missing required column(s): make"},
		{name: "empty file", table: catalog.TableMakes, data: "", wantErr: core.ErrEmptyFile},
		{name: "too large", table: catalog.TableMakes, data: "name\nGlock\nSig Sauer\n", max: 8, wantErr: core.ErrFileTooLarge},
		{name: "unknown table", table: "holsters", data: "name\nx\n", wantErr: core.ErrUnknownTable},
		{name: "bad quoting", table: catalog.TableMakes, data: "name\n\"Glock\n", wantErr: core.ErrInvalidCSV},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			_, err := svc.ImportCSV(context.Background(), tt.table, strings.NewReader(tt.data), tt.max)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}
