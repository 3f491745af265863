package sqlite

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open(DriverName, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}
	return db
}

func TestConnectHook_EnablesForeignKeys(t *testing.T) {
	db := openTestDB(t)

	var enabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
		t.Fatalf("Failed to query foreign_keys pragma: %v", err)
	}
	if enabled != 1 {
		t.Errorf("expected foreign_keys = 1, got %d", enabled)
	}
}

func TestConnectHook_CascadeDelete(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Exec(`
		CREATE TABLE memories (id TEXT PRIMARY KEY, content TEXT);
		CREATE TABLE memory_embeddings (
			memory_id TEXT PRIMARY KEY REFERENCES memories(id) ON DELETE CASCADE,
			embedding BLOB
		);`)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := db.Exec(`INSERT INTO memories (id, content) VALUES ('m1', 'content')`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO memory_embeddings (memory_id, embedding) VALUES ('m1', x'0000803f')`); err != nil {
		t.Fatal(err)
	}

	if _, err := db.Exec(`INSERT INTO memory_embeddings (memory_id, embedding) VALUES ('missing', x'00')`); err == nil {
		t.Error("expected foreign key violation for unknown memory id")
	}

	if _, err := db.Exec(`DELETE FROM memories WHERE id = 'm1'`); err != nil {
		t.Fatal(err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM memory_embeddings`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected embedding row to cascade, %d left", count)
	}
}
