package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/lavadb/internal/model"
)

// DuaProvenance resolves a dua's references for rendering: its lval and
// one labelset per viable byte (nil for untainted bytes).
func (s *Store) DuaProvenance(ctx context.Context, id model.RecID) (model.DuaProvenance, error) {
	dua, err := s.GetDua(ctx, id)
	if err != nil {
		return model.DuaProvenance{}, fmt.Errorf("dua provenance: %w", err)
	}

	lval, err := s.GetSourceLval(ctx, dua.LvalID)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.DuaProvenance{}, model.NewIntegrityViolation("Dua",
				fmt.Sprintf("lval references nonexistent record %d", dua.LvalID))
		}
		return model.DuaProvenance{}, fmt.Errorf("dua provenance: %w", err)
	}

	viable := make([]*model.LabelSet, len(dua.ViableBytes))
	for i, ref := range dua.ViableBytes {
		if ref == 0 {
			continue
		}
		ls, err := s.GetLabelSet(ctx, ref)
		if err != nil {
			if err == sql.ErrNoRows {
				return model.DuaProvenance{}, model.NewOrphanSequenceElement("Dua", "viable_bytes", i, ref)
			}
			return model.DuaProvenance{}, fmt.Errorf("dua provenance: %w", err)
		}
		viable[i] = &ls
	}

	return model.DuaProvenance{Dua: dua, Lval: lval, ViableBytes: viable}, nil
}

// BugProvenance resolves a bug's full reference chain for rendering.
func (s *Store) BugProvenance(ctx context.Context, id model.RecID) (model.BugProvenance, error) {
	bug, err := s.GetBug(ctx, id)
	if err != nil {
		return model.BugProvenance{}, fmt.Errorf("bug provenance: %w", err)
	}

	dua, err := s.DuaProvenance(ctx, bug.DuaID)
	if err != nil {
		return model.BugProvenance{}, fmt.Errorf("bug provenance: %w", err)
	}

	atp, err := s.GetAttackPoint(ctx, bug.AtpID)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.BugProvenance{}, model.NewIntegrityViolation("Bug",
				fmt.Sprintf("atp references nonexistent record %d", bug.AtpID))
		}
		return model.BugProvenance{}, fmt.Errorf("bug provenance: %w", err)
	}

	return model.BugProvenance{Bug: bug, Dua: dua, Atp: atp}, nil
}
