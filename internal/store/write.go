package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/lavadb/internal/model"
)

// Intern operations implement create-or-find over each entity's natural
// key: INSERT ... ON CONFLICT DO NOTHING claims the key atomically via the
// unique index, and a follow-up SELECT inside the same transaction resolves
// the surviving identity. A caller that loses a same-key race is remapped
// to the winner's record; the unique index is the sole source of truth, so
// at most one record per key ever exists.
//
// Referential integrity is verified inside the transaction before any
// insert: a candidate referencing a nonexistent record fails with
// INTEGRITY_VIOLATION (or ORPHAN_SEQUENCE_ELEMENT for sequence fields) and
// nothing is stored.

// internRow runs the insert-or-select step shared by every intern
// operation. Returns the surviving row id and whether this call created it.
func internRow(ctx context.Context, tx *sql.Tx, insertSQL string, insertArgs []any, selectSQL string, selectArgs []any) (model.RecID, bool, error) {
	result, err := tx.ExecContext(ctx, insertSQL, insertArgs...)
	if err != nil {
		return 0, false, fmt.Errorf("insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("rows affected: %w", err)
	}

	if rowsAffected > 0 {
		id, err := result.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("last insert id: %w", err)
		}
		return model.RecID(id), true, nil
	}

	// Conflict - the key already exists, fetch the surviving id.
	var id int64
	if err := tx.QueryRowContext(ctx, selectSQL, selectArgs...).Scan(&id); err != nil {
		return 0, false, fmt.Errorf("select existing: %w", err)
	}
	return model.RecID(id), false, nil
}

// refExists reports whether a record with the given id exists in table.
// The table name is always a compile-time constant here.
func refExists(ctx context.Context, tx *sql.Tx, table string, id model.RecID) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, fmt.Sprintf("SELECT 1 FROM %s WHERE id = ?", table), int64(id)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check %s reference: %w", table, err)
	}
	return true, nil
}

// InternSourceLval creates or finds a source lval by its
// (file, line, ast_name, timing) key.
func (s *Store) InternSourceLval(ctx context.Context, lv model.SourceLval) (model.RecID, bool, error) {
	if !lv.Timing.Valid() {
		return 0, false, model.NewMalformedEnum("SourceLval", "timing", int32(lv.Timing))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("intern source lval: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	id, created, err := internRow(ctx, tx,
		`INSERT INTO source_lvals (file, line, ast_name, timing)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(file, line, ast_name, timing) DO NOTHING`,
		[]any{lv.File, lv.Line, lv.AstName, int32(lv.Timing)},
		`SELECT id FROM source_lvals
		 WHERE file = ? AND line = ? AND ast_name = ? AND timing = ?`,
		[]any{lv.File, lv.Line, lv.AstName, int32(lv.Timing)},
	)
	if err != nil {
		return 0, false, fmt.Errorf("intern source lval: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("intern source lval: commit: %w", err)
	}

	observeIntern("source_lval", created)
	return id, created, nil
}

// InternLabelSet creates or finds a labelset by its
// (ptr, inputfile, labels) key. Label order is part of the key.
func (s *Store) InternLabelSet(ctx context.Context, ls model.LabelSet) (model.RecID, bool, error) {
	labelsText, err := marshalLabels(ls.Labels)
	if err != nil {
		return 0, false, fmt.Errorf("intern labelset: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("intern labelset: begin tx: %w", err)
	}
	defer tx.Rollback()

	id, created, err := internRow(ctx, tx,
		`INSERT INTO labelsets (ptr, inputfile, labels)
		 VALUES (?, ?, ?)
		 ON CONFLICT(ptr, inputfile, labels) DO NOTHING`,
		[]any{int64(ls.Ptr), ls.Inputfile, labelsText},
		`SELECT id FROM labelsets
		 WHERE ptr = ? AND inputfile = ? AND labels = ?`,
		[]any{int64(ls.Ptr), ls.Inputfile, labelsText},
	)
	if err != nil {
		return 0, false, fmt.Errorf("intern labelset: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("intern labelset: commit: %w", err)
	}

	observeIntern("labelset", created)
	return id, created, nil
}

// InternDua creates or finds a dua by its (lval, inputfile, instr) key.
//
// The lval reference must resolve; each nonzero viable-byte entry must
// resolve to a labelset (zero marks an untainted byte and is permitted).
// Because the unique key is narrower than the full record, a dedup hit
// whose stored value differs from the candidate outside the key tuple is
// an INTEGRITY_VIOLATION, not a benign duplicate.
func (s *Store) InternDua(ctx context.Context, dua model.Dua) (model.RecID, bool, error) {
	viableText, err := marshalRefs(dua.ViableBytes)
	if err != nil {
		return 0, false, fmt.Errorf("intern dua: %w", err)
	}
	labelsText, err := marshalLabels(dua.AllLabels)
	if err != nil {
		return 0, false, fmt.Errorf("intern dua: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("intern dua: begin tx: %w", err)
	}
	defer tx.Rollback()

	ok, err := refExists(ctx, tx, "source_lvals", dua.LvalID)
	if err != nil {
		return 0, false, fmt.Errorf("intern dua: %w", err)
	}
	if !ok {
		return 0, false, model.NewIntegrityViolation("Dua",
			fmt.Sprintf("lval references nonexistent record %d", dua.LvalID))
	}

	for i, ref := range dua.ViableBytes {
		if ref == 0 {
			continue // untainted byte
		}
		ok, err := refExists(ctx, tx, "labelsets", ref)
		if err != nil {
			return 0, false, fmt.Errorf("intern dua: %w", err)
		}
		if !ok {
			return 0, false, model.NewOrphanSequenceElement("Dua", "viable_bytes", i, ref)
		}
	}

	id, created, err := internRow(ctx, tx,
		`INSERT INTO duas (lval_id, viable_bytes, all_labels, inputfile, max_tcn, max_cardinality, instr, fake_dua)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(lval_id, inputfile, instr) DO NOTHING`,
		[]any{int64(dua.LvalID), viableText, labelsText, dua.Inputfile,
			dua.MaxTCN, dua.MaxCardinality, int64(dua.Instr), dua.FakeDua},
		`SELECT id FROM duas
		 WHERE lval_id = ? AND inputfile = ? AND instr = ?`,
		[]any{int64(dua.LvalID), dua.Inputfile, int64(dua.Instr)},
	)
	if err != nil {
		return 0, false, fmt.Errorf("intern dua: %w", err)
	}

	if !created {
		// Narrow-key guard: the stored record must match the candidate in
		// every field, not just the key tuple.
		var storedViable, storedLabels string
		var storedTCN, storedCard uint32
		var storedFake bool
		err := tx.QueryRowContext(ctx, `
			SELECT viable_bytes, all_labels, max_tcn, max_cardinality, fake_dua
			FROM duas WHERE id = ?
		`, int64(id)).Scan(&storedViable, &storedLabels, &storedTCN, &storedCard, &storedFake)
		if err != nil {
			return 0, false, fmt.Errorf("intern dua: read existing: %w", err)
		}
		if storedViable != viableText || storedLabels != labelsText ||
			storedTCN != dua.MaxTCN || storedCard != dua.MaxCardinality ||
			storedFake != dua.FakeDua {
			return 0, false, model.NewIntegrityViolation("Dua",
				fmt.Sprintf("key collision with non-identical record %d", id))
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("intern dua: commit: %w", err)
	}

	observeIntern("dua", created)
	return id, created, nil
}

// InternAttackPoint creates or finds an attack point by its
// (file, line, type) key. All three trigger kinds are storable, including
// ATP_LARGE_BUFFER_AVAIL, which has no rendering.
func (s *Store) InternAttackPoint(ctx context.Context, atp model.AttackPoint) (model.RecID, bool, error) {
	if !atp.Type.Valid() {
		return 0, false, model.NewMalformedEnum("AttackPoint", "type", int32(atp.Type))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("intern attack point: begin tx: %w", err)
	}
	defer tx.Rollback()

	id, created, err := internRow(ctx, tx,
		`INSERT INTO attack_points (file, line, type)
		 VALUES (?, ?, ?)
		 ON CONFLICT(file, line, type) DO NOTHING`,
		[]any{atp.File, atp.Line, int32(atp.Type)},
		`SELECT id FROM attack_points
		 WHERE file = ? AND line = ? AND type = ?`,
		[]any{atp.File, atp.Line, int32(atp.Type)},
	)
	if err != nil {
		return 0, false, fmt.Errorf("intern attack point: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("intern attack point: commit: %w", err)
	}

	observeIntern("attack_point", created)
	return id, created, nil
}

// InternBug creates or finds a bug by its (atp, dua, selected_bytes) key.
// Selected byte order is part of the key. The referenced dua must exist and
// must not be fake: fake duas stand in for untainted ranges and are never
// exploitable.
func (s *Store) InternBug(ctx context.Context, bug model.Bug) (model.RecID, bool, error) {
	selectedText, err := marshalLabels(bug.SelectedBytes)
	if err != nil {
		return 0, false, fmt.Errorf("intern bug: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("intern bug: begin tx: %w", err)
	}
	defer tx.Rollback()

	var fake bool
	err = tx.QueryRowContext(ctx, `SELECT fake_dua FROM duas WHERE id = ?`, int64(bug.DuaID)).Scan(&fake)
	if err == sql.ErrNoRows {
		return 0, false, model.NewIntegrityViolation("Bug",
			fmt.Sprintf("dua references nonexistent record %d", bug.DuaID))
	}
	if err != nil {
		return 0, false, fmt.Errorf("intern bug: check dua: %w", err)
	}
	if fake {
		return 0, false, model.NewIntegrityViolation("Bug",
			fmt.Sprintf("dua %d is fake and not eligible for bug creation", bug.DuaID))
	}

	ok, err := refExists(ctx, tx, "attack_points", bug.AtpID)
	if err != nil {
		return 0, false, fmt.Errorf("intern bug: %w", err)
	}
	if !ok {
		return 0, false, model.NewIntegrityViolation("Bug",
			fmt.Sprintf("atp references nonexistent record %d", bug.AtpID))
	}

	id, created, err := internRow(ctx, tx,
		`INSERT INTO bugs (dua_id, selected_bytes, atp_id, max_liveness)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(atp_id, dua_id, selected_bytes) DO NOTHING`,
		[]any{int64(bug.DuaID), selectedText, int64(bug.AtpID), bug.MaxLiveness},
		`SELECT id FROM bugs
		 WHERE atp_id = ? AND dua_id = ? AND selected_bytes = ?`,
		[]any{int64(bug.AtpID), int64(bug.DuaID), selectedText},
	)
	if err != nil {
		return 0, false, fmt.Errorf("intern bug: %w", err)
	}

	if !created {
		var storedLiveness float64
		err := tx.QueryRowContext(ctx, `SELECT max_liveness FROM bugs WHERE id = ?`, int64(id)).Scan(&storedLiveness)
		if err != nil {
			return 0, false, fmt.Errorf("intern bug: read existing: %w", err)
		}
		if storedLiveness != bug.MaxLiveness {
			return 0, false, model.NewIntegrityViolation("Bug",
				fmt.Sprintf("key collision with non-identical record %d", id))
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("intern bug: commit: %w", err)
	}

	observeIntern("bug", created)
	return id, created, nil
}

// InternSourceModification creates or finds a source modification by its
// (atp, lval, selected_bytes) key. The derived hash is recomputed here and
// stored as a cached pre-filter; it never participates in the uniqueness
// decision.
func (s *Store) InternSourceModification(ctx context.Context, sm model.SourceModification) (model.RecID, bool, error) {
	selectedText, err := marshalLabels(sm.SelectedBytes)
	if err != nil {
		return 0, false, fmt.Errorf("intern source modification: %w", err)
	}
	hash := model.SelectedBytesHash(sm.SelectedBytes)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("intern source modification: begin tx: %w", err)
	}
	defer tx.Rollback()

	ok, err := refExists(ctx, tx, "source_lvals", sm.LvalID)
	if err != nil {
		return 0, false, fmt.Errorf("intern source modification: %w", err)
	}
	if !ok {
		return 0, false, model.NewIntegrityViolation("SourceModification",
			fmt.Sprintf("lval references nonexistent record %d", sm.LvalID))
	}

	ok, err = refExists(ctx, tx, "attack_points", sm.AtpID)
	if err != nil {
		return 0, false, fmt.Errorf("intern source modification: %w", err)
	}
	if !ok {
		return 0, false, model.NewIntegrityViolation("SourceModification",
			fmt.Sprintf("atp references nonexistent record %d", sm.AtpID))
	}

	id, created, err := internRow(ctx, tx,
		`INSERT INTO source_modifications (lval_id, selected_bytes, selected_bytes_hash, atp_id)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(atp_id, lval_id, selected_bytes) DO NOTHING`,
		[]any{int64(sm.LvalID), selectedText, int64(hash), int64(sm.AtpID)},
		`SELECT id FROM source_modifications
		 WHERE atp_id = ? AND lval_id = ? AND selected_bytes = ?`,
		[]any{int64(sm.AtpID), int64(sm.LvalID), selectedText},
	)
	if err != nil {
		return 0, false, fmt.Errorf("intern source modification: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("intern source modification: commit: %w", err)
	}

	observeIntern("source_modification", created)
	return id, created, nil
}

// InternSourceFunction creates or finds a function by its
// (file, line, name) key.
func (s *Store) InternSourceFunction(ctx context.Context, fn model.SourceFunction) (model.RecID, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("intern source function: begin tx: %w", err)
	}
	defer tx.Rollback()

	id, created, err := internRow(ctx, tx,
		`INSERT INTO source_functions (file, line, name)
		 VALUES (?, ?, ?)
		 ON CONFLICT(file, line, name) DO NOTHING`,
		[]any{fn.File, fn.Line, fn.Name},
		`SELECT id FROM source_functions
		 WHERE file = ? AND line = ? AND name = ?`,
		[]any{fn.File, fn.Line, fn.Name},
	)
	if err != nil {
		return 0, false, fmt.Errorf("intern source function: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("intern source function: commit: %w", err)
	}

	observeIntern("source_function", created)
	return id, created, nil
}

// InternCall creates or finds a call event by its five-field key. The
// called function must exist.
func (s *Store) InternCall(ctx context.Context, call model.Call) (model.RecID, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("intern call: begin tx: %w", err)
	}
	defer tx.Rollback()

	ok, err := refExists(ctx, tx, "source_functions", call.CalledFunctionID)
	if err != nil {
		return 0, false, fmt.Errorf("intern call: %w", err)
	}
	if !ok {
		return 0, false, model.NewIntegrityViolation("Call",
			fmt.Sprintf("called_function references nonexistent record %d", call.CalledFunctionID))
	}

	id, created, err := internRow(ctx, tx,
		`INSERT INTO calls (call_instr, ret_instr, called_function_id, callsite_file, callsite_line)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(call_instr, ret_instr, called_function_id, callsite_file, callsite_line) DO NOTHING`,
		[]any{int64(call.CallInstr), int64(call.RetInstr), int64(call.CalledFunctionID),
			call.CallsiteFile, call.CallsiteLine},
		`SELECT id FROM calls
		 WHERE call_instr = ? AND ret_instr = ? AND called_function_id = ?
		   AND callsite_file = ? AND callsite_line = ?`,
		[]any{int64(call.CallInstr), int64(call.RetInstr), int64(call.CalledFunctionID),
			call.CallsiteFile, call.CallsiteLine},
	)
	if err != nil {
		return 0, false, fmt.Errorf("intern call: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("intern call: commit: %w", err)
	}

	observeIntern("call", created)
	return id, created, nil
}

// AddBuild appends a build record. Builds have no natural key: every call
// creates a new record. Each bug reference must be a valid non-null
// reference.
func (s *Store) AddBuild(ctx context.Context, build model.Build) (model.RecID, error) {
	bugsText, err := marshalRefs(build.Bugs)
	if err != nil {
		return 0, fmt.Errorf("add build: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("add build: begin tx: %w", err)
	}
	defer tx.Rollback()

	for i, ref := range build.Bugs {
		if ref == 0 {
			return 0, model.NewOrphanSequenceElement("Build", "bugs", i, ref)
		}
		ok, err := refExists(ctx, tx, "bugs", ref)
		if err != nil {
			return 0, fmt.Errorf("add build: %w", err)
		}
		if !ok {
			return 0, model.NewOrphanSequenceElement("Build", "bugs", i, ref)
		}
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO builds (bugs, output, compile)
		VALUES (?, ?, ?)
	`, bugsText, build.Output, build.Compile)
	if err != nil {
		return 0, fmt.Errorf("add build: insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("add build: last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("add build: commit: %w", err)
	}

	return model.RecID(id), nil
}

// AddRun appends a run record. The build reference must exist; the fuzzed
// bug reference is optional (zero means the run used the original input)
// but must exist when set. Failed compiles and harness failures are
// recorded as data, never as aborted writes.
func (s *Store) AddRun(ctx context.Context, run model.Run) (model.RecID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("add run: begin tx: %w", err)
	}
	defer tx.Rollback()

	ok, err := refExists(ctx, tx, "builds", run.BuildID)
	if err != nil {
		return 0, fmt.Errorf("add run: %w", err)
	}
	if !ok {
		return 0, model.NewIntegrityViolation("Run",
			fmt.Sprintf("build references nonexistent record %d", run.BuildID))
	}

	var fuzzed any
	if run.FuzzedID != 0 {
		ok, err := refExists(ctx, tx, "bugs", run.FuzzedID)
		if err != nil {
			return 0, fmt.Errorf("add run: %w", err)
		}
		if !ok {
			return 0, model.NewIntegrityViolation("Run",
				fmt.Sprintf("fuzzed references nonexistent record %d", run.FuzzedID))
		}
		fuzzed = int64(run.FuzzedID)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs (build_id, fuzzed_id, exitcode, output, success)
		VALUES (?, ?, ?, ?, ?)
	`, int64(run.BuildID), fuzzed, run.Exitcode, run.Output, run.Success)
	if err != nil {
		return 0, fmt.Errorf("add run: insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("add run: last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("add run: commit: %w", err)
	}

	return model.RecID(id), nil
}
