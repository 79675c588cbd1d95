package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Initialize(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	fsys, err := MigrationsFS("")
	if err != nil {
		t.Fatalf("Failed to load migrations: %v", err)
	}
	if err := db.RunMigrations(context.Background(), fsys, nil); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func TestDatabaseIntegration(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	tables := []string{"clients", "activities", "activity_words", "therapy_sessions", "session_activities", "progress_records"}
	for _, table := range tables {
		var name string
		err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s not found: %v", table, err)
		}
	}
}

func TestMigrationsRunOnce(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	fsys, _ := MigrationsFS("")
	if err := db.RunMigrations(ctx, fsys, nil); err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM migrations").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("migrations recorded = %d, want 1", count)
	}
}

func TestMigrationsFromOverrideFS(t *testing.T) {
	db, err := Initialize(filepath.Join(t.TempDir(), "override.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	fsys := fstest.MapFS{
		"sqlite/001_a.sql": {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"sqlite/002_b.sql": {Data: []byte("CREATE TABLE b (id INTEGER);\nCREATE TABLE c (id INTEGER);")},
		"mysql/001_x.sql":  {Data: []byte("this is not run")},
	}
	if err := db.RunMigrations(context.Background(), fsys, nil); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	for _, table := range []string{"a", "b", "c"} {
		var name string
		if err := db.QueryRowContext(context.Background(),
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name); err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestExecReturningIDAndTransactions(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	var id int64
	err := db.WithTx(ctx, func(tx *Tx) error {
		var err error
		id, err = tx.ExecReturningID(ctx,
			"INSERT INTO clients (therapist_id, first_name, last_name) VALUES (?, ?, ?)", 1, "Ada", "L")
		return err
	})
	if err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}
	if id == 0 {
		t.Fatal("expected a non-zero id")
	}

	boom := errors.New("boom")
	err = db.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO clients (therapist_id, first_name) VALUES (?, ?)", 1, "Rolled"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM clients").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("clients = %d, want 1 after rollback", count)
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	db := openTestDB(t)
	_, err := db.ExecContext(context.Background(),
		"INSERT INTO therapy_sessions (client_id, therapist_id, session_date) VALUES (?, ?, ?)", 999, 1, "2026-01-01 10:00:00")
	if err == nil {
		t.Error("expected a foreign key violation")
	}
}
