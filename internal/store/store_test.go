package store

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenCreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if s.DB() == nil {
		t.Fatal("DB() returned nil")
	}
}

func TestOpenIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()
}

func TestOpenAppliesPragmas(t *testing.T) {
	s := createTestStore(t)

	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
	if err := s.verifyPragma("foreign_keys", "1"); err != nil {
		t.Error(err)
	}
}

func TestSchemaVersionSet(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("query user_version failed: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestInstanceIDStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	id1 := s1.InstanceID()
	s1.Close()

	if id1 == "" {
		t.Fatal("instance id is empty")
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	if s2.InstanceID() != id1 {
		t.Errorf("instance id changed on reopen: %q vs %q", s2.InstanceID(), id1)
	}
}

func TestInstanceIDDistinctPerDatabase(t *testing.T) {
	s1 := createTestStore(t)
	s2 := createTestStore(t)

	if s1.InstanceID() == s2.InstanceID() {
		t.Error("different databases share an instance id")
	}
}

func TestUniqueIndexesExist(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	indexes := []string{
		"SourceLvalUniq", "LabelSetUniq", "DuaUniq", "AttackPointUniq",
		"BugUniq", "SourceModificationUniq", "SourceFunctionUniq", "CallUniq",
	}
	for _, name := range indexes {
		var count int
		err := s.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ?
		`, name).Scan(&count)
		if err != nil {
			t.Fatalf("query index %s failed: %v", name, err)
		}
		if count != 1 {
			t.Errorf("index %s missing", name)
		}
	}
}
