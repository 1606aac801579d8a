package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/lavadb/internal/model"
)

// createTestStore creates a new store on a temp-dir database.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// internTestLval interns a lval and fails the test on error.
func internTestLval(t *testing.T, s *Store, file string, line uint32, astName string, timing model.Timing) model.RecID {
	t.Helper()
	id, _, err := s.InternSourceLval(context.Background(), model.SourceLval{
		File: file, Line: line, AstName: astName, Timing: timing,
	})
	if err != nil {
		t.Fatalf("InternSourceLval() failed: %v", err)
	}
	return id
}

// internTestLabelSet interns a labelset and fails the test on error.
func internTestLabelSet(t *testing.T, s *Store, ptr uint64, inputfile string, labels []uint32) model.RecID {
	t.Helper()
	id, _, err := s.InternLabelSet(context.Background(), model.LabelSet{
		Ptr: ptr, Inputfile: inputfile, Labels: labels,
	})
	if err != nil {
		t.Fatalf("InternLabelSet() failed: %v", err)
	}
	return id
}

// internTestDua interns a minimal dua over the given lval.
func internTestDua(t *testing.T, s *Store, lvalID model.RecID, inputfile string, instr uint64, viable []model.RecID) model.RecID {
	t.Helper()
	id, _, err := s.InternDua(context.Background(), model.Dua{
		LvalID:         lvalID,
		ViableBytes:    viable,
		AllLabels:      []uint32{1},
		Inputfile:      inputfile,
		MaxTCN:         1,
		MaxCardinality: 1,
		Instr:          instr,
	})
	if err != nil {
		t.Fatalf("InternDua() failed: %v", err)
	}
	return id
}

// internTestAtp interns an attack point and fails the test on error.
func internTestAtp(t *testing.T, s *Store, file string, line uint32, typ model.AtpType) model.RecID {
	t.Helper()
	id, _, err := s.InternAttackPoint(context.Background(), model.AttackPoint{
		File: file, Line: line, Type: typ,
	})
	if err != nil {
		t.Fatalf("InternAttackPoint() failed: %v", err)
	}
	return id
}
