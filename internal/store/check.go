package store

import (
	"context"
	"fmt"

	"github.com/roach88/lavadb/internal/model"
)

// Violation describes a dangling reference found by CheckIntegrity.
type Violation struct {
	Entity string      // record type holding the reference
	ID     model.RecID // record identity
	Field  string      // reference field (index suffix for sequences)
	Ref    model.RecID // the unresolvable identity
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %d: %s references nonexistent record %d", v.Entity, v.ID, v.Field, v.Ref)
}

// CheckIntegrity sweeps every composite table and reports references that
// no longer resolve. A healthy database returns an empty slice: the write
// path refuses to create dangling references, so any finding indicates
// external tampering or corruption.
func (s *Store) CheckIntegrity(ctx context.Context) ([]Violation, error) {
	violations := []Violation{}

	// Scalar reference columns check in SQL.
	scalarChecks := []struct {
		entity, field, query string
	}{
		{"Dua", "lval", `
			SELECT d.id, d.lval_id FROM duas d
			LEFT JOIN source_lvals l ON d.lval_id = l.id WHERE l.id IS NULL`},
		{"Bug", "dua", `
			SELECT b.id, b.dua_id FROM bugs b
			LEFT JOIN duas d ON b.dua_id = d.id WHERE d.id IS NULL`},
		{"Bug", "atp", `
			SELECT b.id, b.atp_id FROM bugs b
			LEFT JOIN attack_points a ON b.atp_id = a.id WHERE a.id IS NULL`},
		{"SourceModification", "lval", `
			SELECT m.id, m.lval_id FROM source_modifications m
			LEFT JOIN source_lvals l ON m.lval_id = l.id WHERE l.id IS NULL`},
		{"SourceModification", "atp", `
			SELECT m.id, m.atp_id FROM source_modifications m
			LEFT JOIN attack_points a ON m.atp_id = a.id WHERE a.id IS NULL`},
		{"Run", "build", `
			SELECT r.id, r.build_id FROM runs r
			LEFT JOIN builds b ON r.build_id = b.id WHERE b.id IS NULL`},
		{"Run", "fuzzed", `
			SELECT r.id, r.fuzzed_id FROM runs r
			LEFT JOIN bugs b ON r.fuzzed_id = b.id
			WHERE r.fuzzed_id IS NOT NULL AND b.id IS NULL`},
		{"Call", "called_function", `
			SELECT c.id, c.called_function_id FROM calls c
			LEFT JOIN source_functions f ON c.called_function_id = f.id WHERE f.id IS NULL`},
	}

	for _, check := range scalarChecks {
		rows, err := s.db.QueryContext(ctx, check.query)
		if err != nil {
			return nil, fmt.Errorf("check %s.%s: %w", check.entity, check.field, err)
		}
		for rows.Next() {
			var id, ref int64
			if err := rows.Scan(&id, &ref); err != nil {
				rows.Close()
				return nil, fmt.Errorf("check %s.%s: %w", check.entity, check.field, err)
			}
			violations = append(violations, Violation{
				Entity: check.entity, ID: model.RecID(id),
				Field: check.field, Ref: model.RecID(ref),
			})
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("check %s.%s: %w", check.entity, check.field, err)
		}
		rows.Close()
	}

	// Sequence reference columns need the JSON arrays decoded.
	duas, err := s.ScanDuas(ctx)
	if err != nil {
		return nil, err
	}
	for _, dua := range duas {
		for i, ref := range dua.ViableBytes {
			if ref == 0 {
				continue
			}
			if ok, err := s.idExists(ctx, "labelsets", ref); err != nil {
				return nil, err
			} else if !ok {
				violations = append(violations, Violation{
					Entity: "Dua", ID: dua.ID,
					Field: fmt.Sprintf("viable_bytes[%d]", i), Ref: ref,
				})
			}
		}
	}

	builds, err := s.ScanBuilds(ctx)
	if err != nil {
		return nil, err
	}
	for _, build := range builds {
		for i, ref := range build.Bugs {
			ok := ref != 0
			if ok {
				ok, err = s.idExists(ctx, "bugs", ref)
				if err != nil {
					return nil, err
				}
			}
			if !ok {
				violations = append(violations, Violation{
					Entity: "Build", ID: build.ID,
					Field: fmt.Sprintf("bugs[%d]", i), Ref: ref,
				})
			}
		}
	}

	return violations, nil
}

func (s *Store) idExists(ctx context.Context, table string, id model.RecID) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = ?", table), int64(id)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check %s id: %w", table, err)
	}
	return n > 0, nil
}
