package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/JonMunkholm/opticfit/internal/catalog"
	"github.com/JonMunkholm/opticfit/internal/config"
	"github.com/JonMunkholm/opticfit/internal/store"
)

func newTestApp(t *testing.T) (*app, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	mem.Unique(catalog.TableMakes, "name")

	cfg := &config.Config{}
	cfg.Import.MaxFileSize = 1 << 20
	cfg.Logging.Level = "error"

	a := &app{
		loadConfig: func() (*config.Config, error) { return cfg, nil },
		openStore: func(context.Context, *config.Config) (store.Store, func(), error) {
			return mem, nil, nil
		},
	}
	return a, mem
}

func run(t *testing.T, a *app, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(a)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	a.close()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func seed(t *testing.T, mem *store.Memory) {
	t.Helper()
	ctx := context.Background()
	for _, ins := range []struct {
		table string
		row   store.Row
	}{
		{catalog.TableMakes, store.Row{"name": "Glock"}},
		{catalog.TableFootprints, store.Row{"name": "RMR"}},
		{catalog.TableModels, store.Row{"name": "G19", "make_id": int64(1), "fit_type": "single"}},
		{catalog.TableModelFootprints, store.Row{"model_id": int64(1), "footprint_id": int64(1)}},
		{catalog.TableOpticMakes, store.Row{"name": "Trijicon"}},
		{catalog.TableOptics, store.Row{"name": "RMR Type 2", "optic_make_id": int64(1), "mount_type": "standard", "msrp": 499.0}},
		{catalog.TableOpticFootprints, store.Row{"optic_id": int64(1), "footprint_id": int64(1)}},
	} {
		_, err := mem.Insert(ctx, ins.table, ins.row)
		require.NoError(t, err)
	}
}

func TestImport(t *testing.T) {
	a, mem := newTestApp(t)
	path := writeFile(t, "makes.csv", "name\nGlock\nSig Sauer\n")

	out, err := run(t, a, "", "import", "makes", path)
	require.NoError(t, err)
	assert.Equal(t, "makes: 2 rows, 2 inserted, 0 updated, 0 skipped\n", out)
	assert.Equal(t, 2, mem.Len(catalog.TableMakes))

	audit, err := mem.Select(context.Background(), catalog.TableAuditLog, store.Query{})
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, "cli", audit[0]["actor"])
}

func TestImport_Preview(t *testing.T) {
	a, mem := newTestApp(t)
	seed(t, mem)
	path := writeFile(t, "makes.csv", "name\nGlock\nColt\n")

	out, err := run(t, a, "", "import", "--preview", "makes", path)
	require.NoError(t, err)
	assert.Contains(t, out, "makes: 2 rows, 1 new, 1 updates, 0 errors")
	assert.Equal(t, 1, mem.Len(catalog.TableMakes))
}

func TestImport_Errors(t *testing.T) {
	a, _ := newTestApp(t)

	_, err := run(t, a, "", "import", "makes")
	assert.Error(t, err)

	_, err = run(t, a, "", "import", "makes", filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := writeFile(t, "x.csv", "name\nx\n")
	_, err = run(t, a, "", "import", "holsters", path)
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	a, mem := newTestApp(t)
	seed(t, mem)

	out, err := run(t, a, "", "export", "makes")
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,Glock\n", out)

	dest := filepath.Join(t.TempDir(), "makes.csv")
	out, err = run(t, a, "", "export", "makes", "-o", dest)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 1 rows")
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,Glock\n", string(data))
}

func TestTemplate_NeedsNoConfig(t *testing.T) {
	a := &app{loadConfig: func() (*config.Config, error) { return nil, errors.New("no config") }}

	out, err := run(t, a, "", "template", "makes")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "name"), out)
}

func TestResolve(t *testing.T) {
	a, mem := newTestApp(t)
	seed(t, mem)

	out, err := run(t, a, "", "resolve", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Glock G19 (Single footprint)")
	assert.Contains(t, out, "RMR footprint")
	assert.Contains(t, out, "RMR Type 2")
	assert.Contains(t, out, "$499.00")

	out, err = run(t, a, "", "resolve", "--json", "1")
	require.NoError(t, err)
	assert.Contains(t, out, `"footprint_groups"`)

	out, err = run(t, a, "", "resolve", "42")
	require.NoError(t, err)
	assert.Equal(t, "model not found\n", out)

	_, err = run(t, a, "", "resolve", "abc")
	assert.Error(t, err)
}

func TestHashPassword(t *testing.T) {
	a := &app{loadConfig: func() (*config.Config, error) { return nil, errors.New("no config") }}

	out, err := run(t, a, "hunter2\n", "hash-password", "--cost", "4")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter2")))

	_, err = run(t, a, "\n", "hash-password")
	assert.Error(t, err)
}

func TestReset_RequiresConfirmation(t *testing.T) {
	a, _ := newTestApp(t)
	_, err := run(t, a, "", "reset")
	assert.ErrorContains(t, err, "--yes")
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("OPTICFIT_TEST_DSN=from-file\n"), 0o600))

	tests := []struct {
		name  string
		files []string
		want  string
	}{
		{name: "file overrides environment", files: []string{envFile}, want: "from-file"},
		{name: "missing file is ignored", files: []string{filepath.Join(dir, "absent.env")}, want: "from-env"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPTICFIT_TEST_DSN", "from-env")
			require.NoError(t, loadEnv(tt.files...))
			assert.Equal(t, tt.want, os.Getenv("OPTICFIT_TEST_DSN"))
		})
	}
}
