package db

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeMigrations(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write test file %s: %v", name, err)
		}
	}
	return dir
}

func TestLoadMigrations(t *testing.T) {
	dir := writeMigrations(t, map[string]string{
		"002_billing.sql": "CREATE TABLE payment (id UUID PRIMARY KEY);",
		"001_core.sql":    "CREATE TABLE account (id UUID PRIMARY KEY);",
		"010_extra.sql":   "SELECT 1;",
	})

	migrations, err := NewMigrator(nil, dir).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}

	wantVersions := []int{1, 2, 10}
	for i, v := range wantVersions {
		if migrations[i].Version != v {
			t.Errorf("migration[%d]: expected version %d, got %d", i, v, migrations[i].Version)
		}
	}
	if migrations[0].Name != "001_core.sql" {
		t.Errorf("expected name 001_core.sql, got %s", migrations[0].Name)
	}
	if migrations[0].SQL != "CREATE TABLE account (id UUID PRIMARY KEY);" {
		t.Errorf("unexpected SQL content: %s", migrations[0].SQL)
	}
}

func TestLoadMigrations_SkipsInvalidNames(t *testing.T) {
	dir := writeMigrations(t, map[string]string{
		"001_valid.sql":      "SELECT 1;",
		"readme.sql":         "-- no version prefix",
		"notes.txt":          "not sql",
		"abc_invalid.sql":    "-- non-numeric prefix",
		"002_also_valid.sql": "SELECT 2;",
	})

	migrations, err := NewMigrator(nil, dir).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 valid migrations, got %d", len(migrations))
	}
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	dir := writeMigrations(t, map[string]string{
		"001_a.sql":  "SELECT 1;",
		"0001_b.sql": "SELECT 2;",
	})

	if _, err := NewMigrator(nil, dir).LoadMigrations(); err == nil {
		t.Fatal("expected error for duplicate version")
	}
}

func TestLoadMigrations_NonExistentDir(t *testing.T) {
	if _, err := NewMigrator(nil, "/nonexistent/path/that/does/not/exist").LoadMigrations(); err == nil {
		t.Error("expected error for non-existent directory")
	}
}

func TestPendingAndStatus(t *testing.T) {
	migrations := []Migration{
		{Version: 1, Name: "001_core.sql"},
		{Version: 2, Name: "002_billing.sql"},
		{Version: 3, Name: "003_indexes.sql"},
	}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	applied := map[int]time.Time{1: at}

	pending := Pending(migrations, applied)
	if len(pending) != 2 || pending[0].Version != 2 || pending[1].Version != 3 {
		t.Fatalf("unexpected pending set: %+v", pending)
	}

	statuses := BuildStatus(migrations, applied)
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	if !statuses[0].Applied || statuses[0].AppliedAt == nil || !statuses[0].AppliedAt.Equal(at) {
		t.Errorf("expected migration 001 applied at %v, got %+v", at, statuses[0])
	}
	for _, st := range statuses[1:] {
		if st.Applied || st.AppliedAt != nil {
			t.Errorf("expected %s pending, got %+v", st.Name, st)
		}
	}
}

func TestNewMigrator(t *testing.T) {
	m := NewMigrator(nil, "/some/path")
	if m.dir != "/some/path" {
		t.Errorf("expected dir /some/path, got %s", m.dir)
	}
}
