package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/roach88/lavadb/internal/model"
)

func TestRoundTripDua(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	lval := internTestLval(t, s, "x.c", 10, "buf", model.BeforeOccurrence)
	ls1 := internTestLabelSet(t, s, 0xa, "in", []uint32{1})
	ls2 := internTestLabelSet(t, s, 0xb, "in", []uint32{2, 3})

	dua := model.Dua{
		LvalID:         lval,
		ViableBytes:    []model.RecID{ls1, 0, ls2},
		AllLabels:      []uint32{1, 2, 3},
		Inputfile:      "in",
		MaxTCN:         7,
		MaxCardinality: 2,
		Instr:          999,
		FakeDua:        false,
	}
	id, _, err := s.InternDua(ctx, dua)
	if err != nil {
		t.Fatalf("InternDua() failed: %v", err)
	}

	got, err := s.GetDua(ctx, id)
	if err != nil {
		t.Fatalf("GetDua() failed: %v", err)
	}
	if got.ID != id || got.LvalID != lval || got.Inputfile != "in" ||
		got.MaxTCN != 7 || got.MaxCardinality != 2 || got.Instr != 999 || got.FakeDua {
		t.Errorf("round-trip mismatch: %+v", got)
	}
	for i, want := range dua.ViableBytes {
		if got.ViableBytes[i] != want {
			t.Errorf("viable_bytes[%d] = %d, want %d (order must be preserved)", i, got.ViableBytes[i], want)
		}
	}
	for i, want := range dua.AllLabels {
		if got.AllLabels[i] != want {
			t.Errorf("all_labels[%d] = %d, want %d", i, got.AllLabels[i], want)
		}
	}
}

func TestRoundTripLabelSetPreservesOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	labels := []uint32{5, 3, 9, 3}
	id := internTestLabelSet(t, s, 0xfeed, "input.bin", labels)

	got, err := s.GetLabelSet(ctx, id)
	if err != nil {
		t.Fatalf("GetLabelSet() failed: %v", err)
	}
	if got.Ptr != 0xfeed || got.Inputfile != "input.bin" {
		t.Errorf("round-trip mismatch: %+v", got)
	}
	if len(got.Labels) != len(labels) {
		t.Fatalf("labels length = %d, want %d", len(got.Labels), len(labels))
	}
	for i := range labels {
		if got.Labels[i] != labels[i] {
			t.Errorf("labels[%d] = %d, want %d", i, got.Labels[i], labels[i])
		}
	}
}

func TestGetMissingReturnsNoRows(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.GetSourceLval(ctx, 12345); err != sql.ErrNoRows {
		t.Errorf("GetSourceLval() err = %v, want sql.ErrNoRows", err)
	}
	if _, err := s.GetBug(ctx, 12345); err != sql.ErrNoRows {
		t.Errorf("GetBug() err = %v, want sql.ErrNoRows", err)
	}
}

func TestFindByNaturalKey(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id := internTestLval(t, s, "x.c", 10, "buf", model.BeforeOccurrence)

	found, ok, err := s.FindSourceLvalByKey(ctx, model.SourceLvalKey{
		File: "x.c", Line: 10, AstName: "buf", Timing: model.BeforeOccurrence,
	})
	if err != nil {
		t.Fatalf("FindSourceLvalByKey() failed: %v", err)
	}
	if !ok || found != id {
		t.Errorf("found=%v id=%d, want id=%d", ok, found, id)
	}

	_, ok, err = s.FindSourceLvalByKey(ctx, model.SourceLvalKey{
		File: "x.c", Line: 10, AstName: "buf", Timing: model.AfterOccurrence,
	})
	if err != nil {
		t.Fatalf("FindSourceLvalByKey() failed: %v", err)
	}
	if ok {
		t.Error("different timing should not match")
	}
}

func TestFindLabelSetByKeyOrderSensitive(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id := internTestLabelSet(t, s, 1, "in", []uint32{1, 2})

	found, ok, err := s.FindLabelSetByKey(ctx, model.LabelSetKey{Ptr: 1, Inputfile: "in", Labels: []uint32{1, 2}})
	if err != nil || !ok || found != id {
		t.Errorf("exact key lookup failed: id=%d ok=%v err=%v", found, ok, err)
	}

	_, ok, err = s.FindLabelSetByKey(ctx, model.LabelSetKey{Ptr: 1, Inputfile: "in", Labels: []uint32{2, 1}})
	if err != nil {
		t.Fatalf("FindLabelSetByKey() failed: %v", err)
	}
	if ok {
		t.Error("reordered labels should not match")
	}
}

// TestScanSourceLvalsOrdering verifies bulk scans return natural-key order
// regardless of insertion order.
func TestScanSourceLvalsOrdering(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	internTestLval(t, s, "z.c", 1, "a", model.NullTiming)
	internTestLval(t, s, "a.c", 9, "b", model.NullTiming)
	internTestLval(t, s, "a.c", 2, "z", model.NullTiming)
	internTestLval(t, s, "a.c", 2, "c", model.NullTiming)

	lvals, err := s.ScanSourceLvals(ctx)
	if err != nil {
		t.Fatalf("ScanSourceLvals() failed: %v", err)
	}
	if len(lvals) != 4 {
		t.Fatalf("got %d lvals, want 4", len(lvals))
	}
	for i := 0; i < len(lvals)-1; i++ {
		if lvals[i].Key().Compare(lvals[i+1].Key()) >= 0 {
			t.Errorf("scan out of order at %d: %v then %v", i, lvals[i], lvals[i+1])
		}
	}
}

func TestScanEmptyReturnsEmptySlice(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	duas, err := s.ScanDuas(ctx)
	if err != nil {
		t.Fatalf("ScanDuas() failed: %v", err)
	}
	if duas == nil {
		t.Error("scan of empty table should return empty slice, not nil")
	}
	if len(duas) != 0 {
		t.Errorf("got %d duas, want 0", len(duas))
	}
}

func TestScanBugsOrdering(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	lval := internTestLval(t, s, "x.c", 1, "buf", model.NullTiming)
	dua := internTestDua(t, s, lval, "in", 1, nil)
	atpB := internTestAtp(t, s, "b.c", 1, model.AtpPointerRW)
	atpA := internTestAtp(t, s, "a.c", 1, model.AtpPointerRW)

	// Insert against the later-ordered atp first.
	if _, _, err := s.InternBug(ctx, model.Bug{DuaID: dua, AtpID: atpB, SelectedBytes: []uint32{0}}); err != nil {
		t.Fatalf("InternBug() failed: %v", err)
	}
	if _, _, err := s.InternBug(ctx, model.Bug{DuaID: dua, AtpID: atpA, SelectedBytes: []uint32{0}}); err != nil {
		t.Fatalf("InternBug() failed: %v", err)
	}

	bugs, err := s.ScanBugs(ctx)
	if err != nil {
		t.Fatalf("ScanBugs() failed: %v", err)
	}
	if len(bugs) != 2 {
		t.Fatalf("got %d bugs, want 2", len(bugs))
	}
	if bugs[0].AtpID != atpA || bugs[1].AtpID != atpB {
		t.Errorf("bugs not in attack-point key order: %+v", bugs)
	}
}

// Sequence key components must order element-wise, not by the text of
// their stored JSON ("[10]" sorts before "[2]" as text).
func TestScanBugsOrdersSelectedBytesNumerically(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	lval := internTestLval(t, s, "x.c", 1, "buf", model.NullTiming)
	dua := internTestDua(t, s, lval, "in", 1, nil)
	atp := internTestAtp(t, s, "a.c", 1, model.AtpPointerRW)

	if _, _, err := s.InternBug(ctx, model.Bug{DuaID: dua, AtpID: atp, SelectedBytes: []uint32{10}}); err != nil {
		t.Fatalf("InternBug() failed: %v", err)
	}
	if _, _, err := s.InternBug(ctx, model.Bug{DuaID: dua, AtpID: atp, SelectedBytes: []uint32{2}}); err != nil {
		t.Fatalf("InternBug() failed: %v", err)
	}

	bugs, err := s.ScanBugs(ctx)
	if err != nil {
		t.Fatalf("ScanBugs() failed: %v", err)
	}
	if len(bugs) != 2 {
		t.Fatalf("got %d bugs, want 2", len(bugs))
	}
	if bugs[0].SelectedBytes[0] != 2 || bugs[1].SelectedBytes[0] != 10 {
		t.Errorf("selected_bytes not in element-wise order: first=%v second=%v",
			bugs[0].SelectedBytes, bugs[1].SelectedBytes)
	}

	atpKey := model.AttackPoint{File: "a.c", Line: 1, Type: model.AtpPointerRW}.Key()
	duaKey := model.DuaKey{
		Lval:      model.SourceLvalKey{File: "x.c", Line: 1, AstName: "buf", Timing: model.NullTiming},
		Inputfile: "in",
		Instr:     1,
	}
	k0 := bugs[0].Key(atpKey, duaKey)
	k1 := bugs[1].Key(atpKey, duaKey)
	if k0.Compare(k1) >= 0 {
		t.Errorf("scan order violates BugKey.Compare: first=%v second=%v",
			bugs[0].SelectedBytes, bugs[1].SelectedBytes)
	}
}

func TestScanSourceModificationsOrdersSelectedBytesNumerically(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	lval := internTestLval(t, s, "x.c", 1, "buf", model.NullTiming)
	atp := internTestAtp(t, s, "a.c", 1, model.AtpFunctionCall)

	for _, selected := range [][]uint32{{10}, {2}} {
		if _, _, err := s.InternSourceModification(ctx,
			model.NewSourceModification(lval, selected, atp)); err != nil {
			t.Fatalf("InternSourceModification() failed: %v", err)
		}
	}

	mods, err := s.ScanSourceModifications(ctx)
	if err != nil {
		t.Fatalf("ScanSourceModifications() failed: %v", err)
	}
	if len(mods) != 2 {
		t.Fatalf("got %d modifications, want 2", len(mods))
	}
	if mods[0].SelectedBytes[0] != 2 || mods[1].SelectedBytes[0] != 10 {
		t.Errorf("selected_bytes not in element-wise order: first=%v second=%v",
			mods[0].SelectedBytes, mods[1].SelectedBytes)
	}
}

// Labelset ordering: labels compare element-wise and ptr compares as an
// unsigned 64-bit value even when its high bit is set.
func TestScanLabelSetsOrdering(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	highPtr := uint64(1)<<63 + 42
	internTestLabelSet(t, s, highPtr, "in", []uint32{1})
	internTestLabelSet(t, s, 5, "in", []uint32{10})
	internTestLabelSet(t, s, 5, "in", []uint32{2})

	sets, err := s.ScanLabelSets(ctx)
	if err != nil {
		t.Fatalf("ScanLabelSets() failed: %v", err)
	}
	if len(sets) != 3 {
		t.Fatalf("got %d labelsets, want 3", len(sets))
	}
	if sets[0].Labels[0] != 2 || sets[1].Labels[0] != 10 {
		t.Errorf("labels not in element-wise order: %v then %v", sets[0].Labels, sets[1].Labels)
	}
	if sets[2].Ptr != highPtr {
		t.Errorf("high-bit ptr must order last: got %v", sets[2].Ptr)
	}
	for i := 0; i < len(sets)-1; i++ {
		if sets[i].Key().Compare(sets[i+1].Key()) >= 0 {
			t.Errorf("scan out of order at %d: %+v then %+v", i, sets[i], sets[i+1])
		}
	}

	got, err := s.GetLabelSet(ctx, sets[2].ID)
	if err != nil {
		t.Fatalf("GetLabelSet() failed: %v", err)
	}
	if got.Ptr != highPtr {
		t.Errorf("high-bit ptr round-trip: got %v, want %v", got.Ptr, highPtr)
	}
}

func TestFindCompositeByNaturalKey(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	lval := internTestLval(t, s, "x.c", 1, "buf", model.NullTiming)
	dua := internTestDua(t, s, lval, "in", 7, nil)
	atp := internTestAtp(t, s, "y.c", 2, model.AtpFunctionCall)
	bug, _, err := s.InternBug(ctx, model.Bug{DuaID: dua, AtpID: atp, SelectedBytes: []uint32{0, 1}})
	if err != nil {
		t.Fatalf("InternBug() failed: %v", err)
	}
	mod, _, err := s.InternSourceModification(ctx, model.NewSourceModification(lval, []uint32{0, 1}, atp))
	if err != nil {
		t.Fatalf("InternSourceModification() failed: %v", err)
	}
	fn, _, err := s.InternSourceFunction(ctx, model.SourceFunction{File: "x.c", Line: 1, Name: "f"})
	if err != nil {
		t.Fatalf("InternSourceFunction() failed: %v", err)
	}
	call, _, err := s.InternCall(ctx, model.Call{
		CallInstr: 10, RetInstr: 20, CalledFunctionID: fn, CallsiteFile: "m.c", CallsiteLine: 3,
	})
	if err != nil {
		t.Fatalf("InternCall() failed: %v", err)
	}

	lvalKey := model.SourceLvalKey{File: "x.c", Line: 1, AstName: "buf", Timing: model.NullTiming}
	duaKey := model.DuaKey{Lval: lvalKey, Inputfile: "in", Instr: 7}
	atpKey := model.AttackPointKey{File: "y.c", Line: 2, Type: model.AtpFunctionCall}
	fnKey := model.SourceFunctionKey{File: "x.c", Line: 1, Name: "f"}

	id, ok, err := s.FindDuaByKey(ctx, duaKey)
	if err != nil || !ok || id != dua {
		t.Errorf("FindDuaByKey: id=%d ok=%v err=%v, want %d", id, ok, err, dua)
	}
	id, ok, err = s.FindBugByKey(ctx, model.BugKey{Atp: atpKey, Dua: duaKey, SelectedBytes: []uint32{0, 1}})
	if err != nil || !ok || id != bug {
		t.Errorf("FindBugByKey: id=%d ok=%v err=%v, want %d", id, ok, err, bug)
	}
	id, ok, err = s.FindSourceModificationByKey(ctx, model.SourceModificationKey{
		Atp: atpKey, Lval: lvalKey, SelectedBytes: []uint32{0, 1},
	})
	if err != nil || !ok || id != mod {
		t.Errorf("FindSourceModificationByKey: id=%d ok=%v err=%v, want %d", id, ok, err, mod)
	}
	id, ok, err = s.FindCallByKey(ctx, model.CallKey{
		CallInstr: 10, RetInstr: 20, Function: fnKey, CallsiteFile: "m.c", CallsiteLine: 3,
	})
	if err != nil || !ok || id != call {
		t.Errorf("FindCallByKey: id=%d ok=%v err=%v, want %d", id, ok, err, call)
	}

	// Lookups never create: a near-miss key resolves to nothing.
	_, ok, err = s.FindBugByKey(ctx, model.BugKey{Atp: atpKey, Dua: duaKey, SelectedBytes: []uint32{1, 0}})
	if err != nil {
		t.Fatalf("FindBugByKey() failed: %v", err)
	}
	if ok {
		t.Error("reordered selected bytes should not match")
	}
	_, ok, err = s.FindDuaByKey(ctx, model.DuaKey{Lval: lvalKey, Inputfile: "other", Instr: 7})
	if err != nil {
		t.Fatalf("FindDuaByKey() failed: %v", err)
	}
	if ok {
		t.Error("different inputfile should not match")
	}
}

func TestCounts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	internTestLval(t, s, "x.c", 1, "a", model.NullTiming)
	internTestLval(t, s, "x.c", 2, "b", model.NullTiming)
	internTestLabelSet(t, s, 1, "in", []uint32{1})

	counts, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts() failed: %v", err)
	}
	if counts["source_lvals"] != 2 {
		t.Errorf("source_lvals = %d, want 2", counts["source_lvals"])
	}
	if counts["labelsets"] != 1 {
		t.Errorf("labelsets = %d, want 1", counts["labelsets"])
	}
	if counts["bugs"] != 0 {
		t.Errorf("bugs = %d, want 0", counts["bugs"])
	}
}
