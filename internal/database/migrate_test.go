package database

import (
	"io/fs"
	"strings"
	"testing"
)

func TestMigrations_Embedded(t *testing.T) {
	entries, err := fs.ReadDir(migrations, migrationsDir)
	if err != nil {
		t.Fatalf("ReadDir error = %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("got %d migrations, want at least 2", len(entries))
	}

	for _, e := range entries {
		b, err := fs.ReadFile(migrations, migrationsDir+"/"+e.Name())
		if err != nil {
			t.Fatalf("ReadFile(%s) error = %v", e.Name(), err)
		}
		body := string(b)
		if !strings.Contains(body, "-- +goose Up") || !strings.Contains(body, "-- +goose Down") {
			t.Errorf("%s is missing goose annotations", e.Name())
		}
	}
}

func TestMigrations_CatalogTables(t *testing.T) {
	b, err := fs.ReadFile(migrations, migrationsDir+"/00001_catalog.sql")
	if err != nil {
		t.Fatalf("ReadFile error = %v", err)
	}
	for _, table := range []string{
		"makes", "optic_makes", "footprints", "models", "model_footprints",
		"plates", "optics", "optic_footprints", "optic_model_compat",
	} {
		if !strings.Contains(string(b), "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Errorf("migration does not create %s", table)
		}
	}
}
