package core_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/opticfit/internal/catalog"
	"github.com/JonMunkholm/opticfit/internal/core"
	"github.com/JonMunkholm/opticfit/internal/store"
)

func TestExportCSV(t *testing.T) {
	svc, mem := newTestService(t)
	seedCatalog(t, mem)

	var buf bytes.Buffer
	n, err := svc.ExportCSV(context.Background(), catalog.TableOptics, &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "id,msrp,mount_type,name,optic_make_id", lines[0])
	assert.Contains(t, lines[1], "499,standard,RMR Type 2")
	assert.True(t, strings.HasPrefix(lines[2], "2,,standard,507K,"), lines[2])
}

func TestCSVQuoting_ImportThenExport(t *testing.T) {
	tests := []struct {
		name       string
		fileName   string // as written in the import file
		fileNotes  string
		wantName   string
		wantNotes  string
		wantExport []string
	}{
		{
			name:       "comma",
			fileName:   `"G19, Gen 5"`,
			fileNotes:  `"RMR, not ACRO"`,
			wantName:   "G19, Gen 5",
			wantNotes:  "RMR, not ACRO",
			wantExport: []string{`"G19, Gen 5"`, `"RMR, not ACRO"`},
		},
		{
			name:       "doubled quote",
			fileName:   `"G17 ""MOS"""`,
			fileNotes:  `"the ""long"" plate"`,
			wantName:   `G17 "MOS"`,
			wantNotes:  `the "long" plate`,
			wantExport: []string{`"G17 ""MOS"""`, `"the ""long"" plate"`},
		},
		{
			name:       "embedded newline",
			fileName:   "G45",
			fileNotes:  "\"cut one\ncut two\"",
			wantName:   "G45",
			wantNotes:  "cut one\ncut two",
			wantExport: []string{",G45,", "\"cut one\ncut two\""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mem := newTestService(t)
			insert(t, mem, catalog.TableMakes, store.Row{"name": "Glock"})
			ctx := context.Background()

			data := "name,make,notes\n" + tt.fileName + ",Glock," + tt.fileNotes + "\n"
			res, err := svc.ImportCSV(ctx, catalog.TableModels, strings.NewReader(data), 1<<20)
			require.NoError(t, err)
			require.Equal(t, 1, res.Inserted, "%+v", res.Skipped)

			rows := selectAll(t, mem, catalog.TableModels)
			require.Len(t, rows, 1)
			assert.Equal(t, tt.wantName, rows[0].String("name"))
			assert.Equal(t, tt.wantNotes, rows[0].String("notes"))

			var buf bytes.Buffer
			_, err = svc.ExportCSV(ctx, catalog.TableModels, &buf)
			require.NoError(t, err)
			for _, want := range tt.wantExport {
				assert.Contains(t, buf.String(), want)
			}

			records, err := csv.NewReader(&buf).ReadAll()
			require.NoError(t, err)
			require.Len(t, records, 2)
			got := map[string]string{}
			for i, col := range records[0] {
				got[col] = records[1][i]
			}
			assert.Equal(t, tt.wantName, got["name"])
			assert.Equal(t, tt.wantNotes, got["notes"])
		})
	}
}

func TestExportCSV_Bools(t *testing.T) {
	svc, mem := newTestService(t)
	insert(t, mem, catalog.TableOptics, store.Row{"name": "SRO", "solar": true})

	var buf bytes.Buffer
	_, err := svc.ExportCSV(context.Background(), catalog.TableOptics, &buf)
	require.NoError(t, err)
	assert.Equal(t, "id,name,solar\n1,SRO,true\n", buf.String())
}

func TestExportCSV_UnknownTable(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ExportCSV(context.Background(), catalog.TableAuditLog, &bytes.Buffer{})
	assert.ErrorIs(t, err, core.ErrUnknownTable)
}

func TestTemplate(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, core.Template(catalog.TablePlates, &buf))
	header := strings.TrimSpace(buf.String())
	assert.True(t, strings.HasPrefix(header, "name,model"), header)
	assert.Contains(t, header, "footprint")

	assert.ErrorIs(t, core.Template("holsters", &buf), core.ErrUnknownTable)
}

func TestListings(t *testing.T) {
	svc, mem := newTestService(t)
	f := seedCatalog(t, mem)
	ctx := context.Background()

	models, err := svc.ListModelsByMake(ctx, f.glock)
	require.NoError(t, err)
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name
	}
	assert.Equal(t, []string{"G17", "G19", "G45"}, names)

	plates, err := svc.ListPlates(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, plates, 2)

	plates, err = svc.ListPlates(ctx, f.g45)
	require.NoError(t, err)
	require.Len(t, plates, 1)
	assert.Equal(t, "G45 RMR plate", plates[0].Name)

	rows, err := svc.ListRows(ctx, catalog.TableOpticModelCompat)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = svc.ListRows(ctx, catalog.TableAuditLog)
	assert.ErrorIs(t, err, core.ErrUnknownTable)

	assert.NoError(t, svc.Ping(ctx))
}
