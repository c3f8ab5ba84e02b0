package database

import (
	"path/filepath"
	"testing"
)

func TestInitializeOpensWritableDB(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "progress.db")

	db, err := Initialize(path)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer db.Close()

	if db.GetSQLDB() == nil {
		t.Fatal("GetSQLDB returned nil")
	}

	if _, err := db.GetSQLDB().Exec(`CREATE TABLE t (id INTEGER PRIMARY KEY)`); err != nil {
		t.Fatalf("caller-owned schema create failed: %v", err)
	}
	if _, err := db.GetSQLDB().Exec(`INSERT INTO t (id) VALUES (1)`); err != nil {
		t.Fatalf("insert into caller-owned table failed: %v", err)
	}
}

func TestInitializeReopenPreservesData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "progress.db")

	db1, err := Initialize(path)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if _, err := db1.GetSQLDB().Exec(`CREATE TABLE t (id INTEGER PRIMARY KEY)`); err != nil {
		t.Fatalf("create table failed: %v", err)
	}
	if _, err := db1.GetSQLDB().Exec(`INSERT INTO t (id) VALUES (42)`); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := db1.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	db2, err := Initialize(path)
	if err != nil {
		t.Fatalf("reopen Initialize failed: %v", err)
	}
	defer db2.Close()

	var id int
	if err := db2.GetSQLDB().QueryRow(`SELECT id FROM t`).Scan(&id); err != nil {
		t.Fatalf("query after reopen failed: %v", err)
	}
	if id != 42 {
		t.Errorf("expected id 42, got %d", id)
	}
}
