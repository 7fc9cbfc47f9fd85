package sqlitemigrate

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "migrate.db")
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return sqlDB
}

func TestApplyMigrationsRunsFilesInOrder(t *testing.T) {
	t.Parallel()

	sqlDB := openTestDB(t)
	migrationFS := fstest.MapFS{
		"0001_create.sql": {Data: []byte("CREATE TABLE items (id TEXT PRIMARY KEY);")},
		"0002_extend.sql": {Data: []byte("ALTER TABLE items ADD COLUMN label TEXT NOT NULL DEFAULT '';")},
	}

	if err := ApplyMigrations(sqlDB, migrationFS); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	if _, err := sqlDB.Exec("INSERT INTO items (id, label) VALUES ('a', 'first')"); err != nil {
		t.Fatalf("insert into migrated table: %v", err)
	}

	var applied int
	if err := sqlDB.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied); err != nil {
		t.Fatalf("count applied migrations: %v", err)
	}
	if applied != 2 {
		t.Fatalf("applied migrations = %d, want 2", applied)
	}
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	t.Parallel()

	sqlDB := openTestDB(t)
	migrationFS := fstest.MapFS{
		"0001_create.sql": {Data: []byte("CREATE TABLE items (id TEXT PRIMARY KEY);")},
	}

	if err := ApplyMigrations(sqlDB, migrationFS); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if err := ApplyMigrations(sqlDB, migrationFS); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	var applied int
	if err := sqlDB.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied); err != nil {
		t.Fatalf("count applied migrations: %v", err)
	}
	if applied != 1 {
		t.Fatalf("applied migrations = %d, want 1", applied)
	}
}
