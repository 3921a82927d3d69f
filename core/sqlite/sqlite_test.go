package sqlite

import (
	"context"
	"path/filepath"
	"testing"
)

// TestDriverInfo verifies the driver description is consistent.
func TestDriverInfo(t *testing.T) {
	info := GetInfo()

	if info.DriverName == "" || info.DriverType == "" || info.Package == "" {
		t.Errorf("incomplete driver info: %+v", info)
	}
	if info.DriverName != DriverName() {
		t.Errorf("DriverName mismatch: info=%s, func=%s", info.DriverName, DriverName())
	}
	if info.IsCGO != IsCGO() {
		t.Errorf("IsCGO mismatch: info=%v, func=%v", info.IsCGO, IsCGO())
	}
	t.Logf("SQLite driver: %s (%s) from %s", info.DriverName, info.DriverType, info.Package)
}

// TestOpenFileAndMigrate verifies a fresh file database can be created,
// migrated and reopened read-only.
func TestOpenFileAndMigrate(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "runs.db")

	db, err := OpenFile(ctx, path)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	err = Migrate(ctx, db, []string{
		`CREATE TABLE runs (id TEXT PRIMARY KEY, kind TEXT NOT NULL)`,
		`CREATE TABLE drops (run_id TEXT NOT NULL REFERENCES runs(id), reason TEXT)`,
	})
	if err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO runs VALUES ('r1', 'assemble')`); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO drops VALUES ('missing', 'x')`); err == nil {
		t.Error("foreign keys should be enforced")
	}
	db.Close()

	ro, err := OpenReadOnly(path)
	if err != nil {
		t.Fatalf("OpenReadOnly failed: %v", err)
	}
	defer ro.Close()
	var kind string
	if err := ro.QueryRowContext(ctx, `SELECT kind FROM runs WHERE id = 'r1'`).Scan(&kind); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if kind != "assemble" {
		t.Errorf("kind = %q", kind)
	}
}

// TestMigrateRollsBack verifies a failing statement leaves no partial
// schema behind.
func TestMigrateRollsBack(t *testing.T) {
	ctx := context.Background()
	db, err := OpenFile(ctx, Memory)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	defer db.Close()

	err = Migrate(ctx, db, []string{
		`CREATE TABLE ok (id INTEGER)`,
		`CREATE TABLE broken (`,
	})
	if err == nil {
		t.Fatal("Migrate should fail on invalid SQL")
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM sqlite_master WHERE name = 'ok'`).Scan(&n); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if n != 0 {
		t.Error("first statement should have been rolled back")
	}
}
