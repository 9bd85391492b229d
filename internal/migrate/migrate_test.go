package migrate_test

import (
	"testing"

	"triton/internal/db"
	"triton/internal/migrate"
)

func TestMigrateRecordsVersion(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	v, err := migrate.Version(conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != 0 {
		t.Fatalf("fresh workspace at version %d, want 0", v)
	}

	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	v, err = migrate.Version(conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v < 1 {
		t.Fatalf("migrated workspace at version %d, want at least 1", v)
	}

	// re-running must be a no-op at the same version
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	again, err := migrate.Version(conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if again != v {
		t.Fatalf("version moved from %d to %d on re-run", v, again)
	}
}
