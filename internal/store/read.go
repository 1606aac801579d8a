package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/roach88/lavadb/internal/model"
)

// Lookup-by-identity, lookup-by-natural-key, and bulk ordered scans.
//
// Scans order by each entity's natural-key tuple so results are
// deterministic across runs and databases. Entities whose key is all
// scalar columns order in SQL; entities whose key holds a sequence or a
// uint64 sort in Go with the model Compare ordering, because the TEXT
// sequence columns compare lexicographically and SQLite integers are
// signed. Builds and Runs have no natural key and scan in identity order.

// GetSourceLval retrieves a source lval by identity.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetSourceLval(ctx context.Context, id model.RecID) (model.SourceLval, error) {
	var lv model.SourceLval
	var timing int32
	err := s.db.QueryRowContext(ctx, `
		SELECT id, file, line, ast_name, timing FROM source_lvals WHERE id = ?
	`, int64(id)).Scan(&lv.ID, &lv.File, &lv.Line, &lv.AstName, &timing)
	if err != nil {
		return model.SourceLval{}, err
	}
	lv.Timing = model.Timing(timing)
	return lv, nil
}

// GetLabelSet retrieves a labelset by identity.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetLabelSet(ctx context.Context, id model.RecID) (model.LabelSet, error) {
	var ls model.LabelSet
	var ptr int64
	var labelsText string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, ptr, inputfile, labels FROM labelsets WHERE id = ?
	`, int64(id)).Scan(&ls.ID, &ptr, &ls.Inputfile, &labelsText)
	if err != nil {
		return model.LabelSet{}, err
	}
	ls.Ptr = uint64(ptr)
	ls.Labels, err = unmarshalLabels(labelsText)
	if err != nil {
		return model.LabelSet{}, fmt.Errorf("get labelset: %w", err)
	}
	return ls, nil
}

// GetDua retrieves a dua by identity.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetDua(ctx context.Context, id model.RecID) (model.Dua, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, lval_id, viable_bytes, all_labels, inputfile, max_tcn, max_cardinality, instr, fake_dua
		FROM duas WHERE id = ?
	`, int64(id))
	return scanDua(row)
}

func scanDua(row *sql.Row) (model.Dua, error) {
	var dua model.Dua
	var viableText, labelsText string
	var instr int64
	err := row.Scan(&dua.ID, &dua.LvalID, &viableText, &labelsText,
		&dua.Inputfile, &dua.MaxTCN, &dua.MaxCardinality, &instr, &dua.FakeDua)
	if err != nil {
		return model.Dua{}, err
	}
	dua.Instr = uint64(instr)
	dua.ViableBytes, err = unmarshalRefs(viableText)
	if err != nil {
		return model.Dua{}, fmt.Errorf("get dua: %w", err)
	}
	dua.AllLabels, err = unmarshalLabels(labelsText)
	if err != nil {
		return model.Dua{}, fmt.Errorf("get dua: %w", err)
	}
	return dua, nil
}

// GetAttackPoint retrieves an attack point by identity.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetAttackPoint(ctx context.Context, id model.RecID) (model.AttackPoint, error) {
	var atp model.AttackPoint
	var typ int32
	err := s.db.QueryRowContext(ctx, `
		SELECT id, file, line, type FROM attack_points WHERE id = ?
	`, int64(id)).Scan(&atp.ID, &atp.File, &atp.Line, &typ)
	if err != nil {
		return model.AttackPoint{}, err
	}
	atp.Type = model.AtpType(typ)
	return atp, nil
}

// GetBug retrieves a bug by identity.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetBug(ctx context.Context, id model.RecID) (model.Bug, error) {
	var bug model.Bug
	var selectedText string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, dua_id, selected_bytes, atp_id, max_liveness FROM bugs WHERE id = ?
	`, int64(id)).Scan(&bug.ID, &bug.DuaID, &selectedText, &bug.AtpID, &bug.MaxLiveness)
	if err != nil {
		return model.Bug{}, err
	}
	bug.SelectedBytes, err = unmarshalLabels(selectedText)
	if err != nil {
		return model.Bug{}, fmt.Errorf("get bug: %w", err)
	}
	return bug, nil
}

// GetSourceModification retrieves a source modification by identity.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetSourceModification(ctx context.Context, id model.RecID) (model.SourceModification, error) {
	var sm model.SourceModification
	var selectedText string
	var hash int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, lval_id, selected_bytes, selected_bytes_hash, atp_id
		FROM source_modifications WHERE id = ?
	`, int64(id)).Scan(&sm.ID, &sm.LvalID, &selectedText, &hash, &sm.AtpID)
	if err != nil {
		return model.SourceModification{}, err
	}
	sm.SelectedBytesHash = uint64(hash)
	sm.SelectedBytes, err = unmarshalLabels(selectedText)
	if err != nil {
		return model.SourceModification{}, fmt.Errorf("get source modification: %w", err)
	}
	return sm, nil
}

// GetBuild retrieves a build by identity.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetBuild(ctx context.Context, id model.RecID) (model.Build, error) {
	var build model.Build
	var bugsText string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, bugs, output, compile FROM builds WHERE id = ?
	`, int64(id)).Scan(&build.ID, &bugsText, &build.Output, &build.Compile)
	if err != nil {
		return model.Build{}, err
	}
	build.Bugs, err = unmarshalRefs(bugsText)
	if err != nil {
		return model.Build{}, fmt.Errorf("get build: %w", err)
	}
	return build, nil
}

// GetRun retrieves a run by identity.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetRun(ctx context.Context, id model.RecID) (model.Run, error) {
	var run model.Run
	var fuzzed sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, build_id, fuzzed_id, exitcode, output, success FROM runs WHERE id = ?
	`, int64(id)).Scan(&run.ID, &run.BuildID, &fuzzed, &run.Exitcode, &run.Output, &run.Success)
	if err != nil {
		return model.Run{}, err
	}
	if fuzzed.Valid {
		run.FuzzedID = model.RecID(fuzzed.Int64)
	}
	return run, nil
}

// GetSourceFunction retrieves a function by identity.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetSourceFunction(ctx context.Context, id model.RecID) (model.SourceFunction, error) {
	var fn model.SourceFunction
	err := s.db.QueryRowContext(ctx, `
		SELECT id, file, line, name FROM source_functions WHERE id = ?
	`, int64(id)).Scan(&fn.ID, &fn.File, &fn.Line, &fn.Name)
	if err != nil {
		return model.SourceFunction{}, err
	}
	return fn, nil
}

// GetCall retrieves a call by identity.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetCall(ctx context.Context, id model.RecID) (model.Call, error) {
	var call model.Call
	var ci, ri int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, call_instr, ret_instr, called_function_id, callsite_file, callsite_line
		FROM calls WHERE id = ?
	`, int64(id)).Scan(&call.ID, &ci, &ri, &call.CalledFunctionID, &call.CallsiteFile, &call.CallsiteLine)
	if err != nil {
		return model.Call{}, err
	}
	call.CallInstr = uint64(ci)
	call.RetInstr = uint64(ri)
	return call, nil
}

// FindSourceLvalByKey looks up a source lval by natural key.
// Returns (0, false, nil) when no record exists.
func (s *Store) FindSourceLvalByKey(ctx context.Context, key model.SourceLvalKey) (model.RecID, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM source_lvals WHERE file = ? AND line = ? AND ast_name = ? AND timing = ?
	`, key.File, key.Line, key.AstName, int32(key.Timing)).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find source lval: %w", err)
	}
	return model.RecID(id), true, nil
}

// FindLabelSetByKey looks up a labelset by natural key.
// Returns (0, false, nil) when no record exists.
func (s *Store) FindLabelSetByKey(ctx context.Context, key model.LabelSetKey) (model.RecID, bool, error) {
	labelsText, err := marshalLabels(key.Labels)
	if err != nil {
		return 0, false, fmt.Errorf("find labelset: %w", err)
	}
	var id int64
	err = s.db.QueryRowContext(ctx, `
		SELECT id FROM labelsets WHERE ptr = ? AND inputfile = ? AND labels = ?
	`, int64(key.Ptr), key.Inputfile, labelsText).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find labelset: %w", err)
	}
	return model.RecID(id), true, nil
}

// FindAttackPointByKey looks up an attack point by natural key.
// Returns (0, false, nil) when no record exists.
func (s *Store) FindAttackPointByKey(ctx context.Context, key model.AttackPointKey) (model.RecID, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM attack_points WHERE file = ? AND line = ? AND type = ?
	`, key.File, key.Line, int32(key.Type)).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find attack point: %w", err)
	}
	return model.RecID(id), true, nil
}

// FindSourceFunctionByKey looks up a function by natural key.
// Returns (0, false, nil) when no record exists.
func (s *Store) FindSourceFunctionByKey(ctx context.Context, key model.SourceFunctionKey) (model.RecID, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM source_functions WHERE file = ? AND line = ? AND name = ?
	`, key.File, key.Line, key.Name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find source function: %w", err)
	}
	return model.RecID(id), true, nil
}

// FindDuaByKey looks up a dua by natural key without creating anything.
// Returns (0, false, nil) when no record exists.
func (s *Store) FindDuaByKey(ctx context.Context, key model.DuaKey) (model.RecID, bool, error) {
	lvalID, ok, err := s.FindSourceLvalByKey(ctx, key.Lval)
	if err != nil || !ok {
		return 0, false, err
	}
	var id int64
	err = s.db.QueryRowContext(ctx, `
		SELECT id FROM duas WHERE lval_id = ? AND inputfile = ? AND instr = ?
	`, int64(lvalID), key.Inputfile, int64(key.Instr)).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find dua: %w", err)
	}
	return model.RecID(id), true, nil
}

// FindBugByKey looks up a bug by natural key without creating anything.
// Returns (0, false, nil) when no record exists.
func (s *Store) FindBugByKey(ctx context.Context, key model.BugKey) (model.RecID, bool, error) {
	atpID, ok, err := s.FindAttackPointByKey(ctx, key.Atp)
	if err != nil || !ok {
		return 0, false, err
	}
	duaID, ok, err := s.FindDuaByKey(ctx, key.Dua)
	if err != nil || !ok {
		return 0, false, err
	}
	selectedText, err := marshalLabels(key.SelectedBytes)
	if err != nil {
		return 0, false, fmt.Errorf("find bug: %w", err)
	}
	var id int64
	err = s.db.QueryRowContext(ctx, `
		SELECT id FROM bugs WHERE atp_id = ? AND dua_id = ? AND selected_bytes = ?
	`, int64(atpID), int64(duaID), selectedText).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find bug: %w", err)
	}
	return model.RecID(id), true, nil
}

// FindSourceModificationByKey looks up a source modification by natural
// key without creating anything. Returns (0, false, nil) when no record
// exists.
func (s *Store) FindSourceModificationByKey(ctx context.Context, key model.SourceModificationKey) (model.RecID, bool, error) {
	atpID, ok, err := s.FindAttackPointByKey(ctx, key.Atp)
	if err != nil || !ok {
		return 0, false, err
	}
	lvalID, ok, err := s.FindSourceLvalByKey(ctx, key.Lval)
	if err != nil || !ok {
		return 0, false, err
	}
	selectedText, err := marshalLabels(key.SelectedBytes)
	if err != nil {
		return 0, false, fmt.Errorf("find source modification: %w", err)
	}
	var id int64
	err = s.db.QueryRowContext(ctx, `
		SELECT id FROM source_modifications WHERE atp_id = ? AND lval_id = ? AND selected_bytes = ?
	`, int64(atpID), int64(lvalID), selectedText).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find source modification: %w", err)
	}
	return model.RecID(id), true, nil
}

// FindCallByKey looks up a call by natural key without creating anything.
// Returns (0, false, nil) when no record exists.
func (s *Store) FindCallByKey(ctx context.Context, key model.CallKey) (model.RecID, bool, error) {
	fnID, ok, err := s.FindSourceFunctionByKey(ctx, key.Function)
	if err != nil || !ok {
		return 0, false, err
	}
	var id int64
	err = s.db.QueryRowContext(ctx, `
		SELECT id FROM calls
		WHERE call_instr = ? AND ret_instr = ? AND called_function_id = ?
		  AND callsite_file = ? AND callsite_line = ?
	`, int64(key.CallInstr), int64(key.RetInstr), int64(fnID), key.CallsiteFile, key.CallsiteLine).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find call: %w", err)
	}
	return model.RecID(id), true, nil
}

// Natural-key maps used to order scans of composite entities in Go.

func (s *Store) sourceLvalKeys(ctx context.Context) (map[model.RecID]model.SourceLvalKey, error) {
	lvals, err := s.ScanSourceLvals(ctx)
	if err != nil {
		return nil, err
	}
	keys := make(map[model.RecID]model.SourceLvalKey, len(lvals))
	for _, lv := range lvals {
		keys[lv.ID] = lv.Key()
	}
	return keys, nil
}

func (s *Store) attackPointKeys(ctx context.Context) (map[model.RecID]model.AttackPointKey, error) {
	atps, err := s.ScanAttackPoints(ctx)
	if err != nil {
		return nil, err
	}
	keys := make(map[model.RecID]model.AttackPointKey, len(atps))
	for _, atp := range atps {
		keys[atp.ID] = atp.Key()
	}
	return keys, nil
}

func (s *Store) duaKeys(ctx context.Context) (map[model.RecID]model.DuaKey, error) {
	lvalKeys, err := s.sourceLvalKeys(ctx)
	if err != nil {
		return nil, err
	}
	duas, err := s.ScanDuas(ctx)
	if err != nil {
		return nil, err
	}
	keys := make(map[model.RecID]model.DuaKey, len(duas))
	for _, dua := range duas {
		keys[dua.ID] = dua.Key(lvalKeys[dua.LvalID])
	}
	return keys, nil
}

func (s *Store) sourceFunctionKeys(ctx context.Context) (map[model.RecID]model.SourceFunctionKey, error) {
	fns, err := s.ScanSourceFunctions(ctx)
	if err != nil {
		return nil, err
	}
	keys := make(map[model.RecID]model.SourceFunctionKey, len(fns))
	for _, fn := range fns {
		keys[fn.ID] = fn.Key()
	}
	return keys, nil
}

// ScanSourceLvals returns all source lvals in natural-key order.
// Returns an empty slice (not nil) if no records exist.
func (s *Store) ScanSourceLvals(ctx context.Context) ([]model.SourceLval, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file, line, ast_name, timing FROM source_lvals
		ORDER BY file, line, ast_name, timing
	`)
	if err != nil {
		return nil, fmt.Errorf("scan source lvals: %w", err)
	}
	defer rows.Close()

	lvals := []model.SourceLval{}
	for rows.Next() {
		var lv model.SourceLval
		var timing int32
		if err := rows.Scan(&lv.ID, &lv.File, &lv.Line, &lv.AstName, &timing); err != nil {
			return nil, fmt.Errorf("scan source lvals: %w", err)
		}
		lv.Timing = model.Timing(timing)
		lvals = append(lvals, lv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source lvals: %w", err)
	}
	return lvals, nil
}

// ScanLabelSets returns all labelsets in natural-key order. Ptr is
// unsigned and labels compare element-wise, so ordering happens in Go.
func (s *Store) ScanLabelSets(ctx context.Context) ([]model.LabelSet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ptr, inputfile, labels FROM labelsets
	`)
	if err != nil {
		return nil, fmt.Errorf("scan labelsets: %w", err)
	}
	defer rows.Close()

	sets := []model.LabelSet{}
	for rows.Next() {
		var ls model.LabelSet
		var ptr int64
		var labelsText string
		if err := rows.Scan(&ls.ID, &ptr, &ls.Inputfile, &labelsText); err != nil {
			return nil, fmt.Errorf("scan labelsets: %w", err)
		}
		ls.Ptr = uint64(ptr)
		ls.Labels, err = unmarshalLabels(labelsText)
		if err != nil {
			return nil, fmt.Errorf("scan labelsets: %w", err)
		}
		sets = append(sets, ls)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate labelsets: %w", err)
	}
	slices.SortFunc(sets, func(a, b model.LabelSet) int {
		return a.Key().Compare(b.Key())
	})
	return sets, nil
}

// ScanDuas returns all duas ordered by natural key: the referenced lval's
// key first, then inputfile and instruction count.
func (s *Store) ScanDuas(ctx context.Context) ([]model.Dua, error) {
	lvalKeys, err := s.sourceLvalKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan duas: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, lval_id, viable_bytes, all_labels, inputfile, max_tcn, max_cardinality, instr, fake_dua
		FROM duas
	`)
	if err != nil {
		return nil, fmt.Errorf("scan duas: %w", err)
	}
	defer rows.Close()

	duas := []model.Dua{}
	for rows.Next() {
		var dua model.Dua
		var viableText, labelsText string
		var instr int64
		if err := rows.Scan(&dua.ID, &dua.LvalID, &viableText, &labelsText,
			&dua.Inputfile, &dua.MaxTCN, &dua.MaxCardinality, &instr, &dua.FakeDua); err != nil {
			return nil, fmt.Errorf("scan duas: %w", err)
		}
		dua.Instr = uint64(instr)
		dua.ViableBytes, err = unmarshalRefs(viableText)
		if err != nil {
			return nil, fmt.Errorf("scan duas: %w", err)
		}
		dua.AllLabels, err = unmarshalLabels(labelsText)
		if err != nil {
			return nil, fmt.Errorf("scan duas: %w", err)
		}
		duas = append(duas, dua)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate duas: %w", err)
	}
	slices.SortFunc(duas, func(a, b model.Dua) int {
		return a.Key(lvalKeys[a.LvalID]).Compare(b.Key(lvalKeys[b.LvalID]))
	})
	return duas, nil
}

// ScanAttackPoints returns all attack points in natural-key order.
func (s *Store) ScanAttackPoints(ctx context.Context) ([]model.AttackPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file, line, type FROM attack_points
		ORDER BY file, line, type
	`)
	if err != nil {
		return nil, fmt.Errorf("scan attack points: %w", err)
	}
	defer rows.Close()

	atps := []model.AttackPoint{}
	for rows.Next() {
		var atp model.AttackPoint
		var typ int32
		if err := rows.Scan(&atp.ID, &atp.File, &atp.Line, &typ); err != nil {
			return nil, fmt.Errorf("scan attack points: %w", err)
		}
		atp.Type = model.AtpType(typ)
		atps = append(atps, atp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attack points: %w", err)
	}
	return atps, nil
}

// ScanBugs returns all bugs ordered by natural key: attack point key, then
// dua key, then selected bytes element-wise.
func (s *Store) ScanBugs(ctx context.Context) ([]model.Bug, error) {
	atpKeys, err := s.attackPointKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan bugs: %w", err)
	}
	duaKeys, err := s.duaKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan bugs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, dua_id, selected_bytes, atp_id, max_liveness FROM bugs
	`)
	if err != nil {
		return nil, fmt.Errorf("scan bugs: %w", err)
	}
	defer rows.Close()

	bugs := []model.Bug{}
	for rows.Next() {
		var bug model.Bug
		var selectedText string
		if err := rows.Scan(&bug.ID, &bug.DuaID, &selectedText, &bug.AtpID, &bug.MaxLiveness); err != nil {
			return nil, fmt.Errorf("scan bugs: %w", err)
		}
		bug.SelectedBytes, err = unmarshalLabels(selectedText)
		if err != nil {
			return nil, fmt.Errorf("scan bugs: %w", err)
		}
		bugs = append(bugs, bug)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bugs: %w", err)
	}
	slices.SortFunc(bugs, func(a, b model.Bug) int {
		ka := a.Key(atpKeys[a.AtpID], duaKeys[a.DuaID])
		kb := b.Key(atpKeys[b.AtpID], duaKeys[b.DuaID])
		return ka.Compare(kb)
	})
	return bugs, nil
}

// ScanSourceModifications returns all source modifications ordered by
// natural key.
func (s *Store) ScanSourceModifications(ctx context.Context) ([]model.SourceModification, error) {
	atpKeys, err := s.attackPointKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan source modifications: %w", err)
	}
	lvalKeys, err := s.sourceLvalKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan source modifications: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, lval_id, selected_bytes, selected_bytes_hash, atp_id
		FROM source_modifications
	`)
	if err != nil {
		return nil, fmt.Errorf("scan source modifications: %w", err)
	}
	defer rows.Close()

	mods := []model.SourceModification{}
	for rows.Next() {
		var sm model.SourceModification
		var selectedText string
		var hash int64
		if err := rows.Scan(&sm.ID, &sm.LvalID, &selectedText, &hash, &sm.AtpID); err != nil {
			return nil, fmt.Errorf("scan source modifications: %w", err)
		}
		sm.SelectedBytesHash = uint64(hash)
		sm.SelectedBytes, err = unmarshalLabels(selectedText)
		if err != nil {
			return nil, fmt.Errorf("scan source modifications: %w", err)
		}
		mods = append(mods, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source modifications: %w", err)
	}
	slices.SortFunc(mods, func(a, b model.SourceModification) int {
		ka := a.Key(atpKeys[a.AtpID], lvalKeys[a.LvalID])
		kb := b.Key(atpKeys[b.AtpID], lvalKeys[b.LvalID])
		return ka.Compare(kb)
	})
	return mods, nil
}

// ScanBuilds returns all builds in identity order.
func (s *Store) ScanBuilds(ctx context.Context) ([]model.Build, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bugs, output, compile FROM builds ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("scan builds: %w", err)
	}
	defer rows.Close()

	builds := []model.Build{}
	for rows.Next() {
		var build model.Build
		var bugsText string
		if err := rows.Scan(&build.ID, &bugsText, &build.Output, &build.Compile); err != nil {
			return nil, fmt.Errorf("scan builds: %w", err)
		}
		build.Bugs, err = unmarshalRefs(bugsText)
		if err != nil {
			return nil, fmt.Errorf("scan builds: %w", err)
		}
		builds = append(builds, build)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate builds: %w", err)
	}
	return builds, nil
}

// ScanRuns returns all runs in identity order.
func (s *Store) ScanRuns(ctx context.Context) ([]model.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, build_id, fuzzed_id, exitcode, output, success FROM runs ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("scan runs: %w", err)
	}
	defer rows.Close()

	runs := []model.Run{}
	for rows.Next() {
		var run model.Run
		var fuzzed sql.NullInt64
		if err := rows.Scan(&run.ID, &run.BuildID, &fuzzed, &run.Exitcode, &run.Output, &run.Success); err != nil {
			return nil, fmt.Errorf("scan runs: %w", err)
		}
		if fuzzed.Valid {
			run.FuzzedID = model.RecID(fuzzed.Int64)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ScanSourceFunctions returns all functions in natural-key order.
func (s *Store) ScanSourceFunctions(ctx context.Context) ([]model.SourceFunction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file, line, name FROM source_functions
		ORDER BY file, line, name
	`)
	if err != nil {
		return nil, fmt.Errorf("scan source functions: %w", err)
	}
	defer rows.Close()

	fns := []model.SourceFunction{}
	for rows.Next() {
		var fn model.SourceFunction
		if err := rows.Scan(&fn.ID, &fn.File, &fn.Line, &fn.Name); err != nil {
			return nil, fmt.Errorf("scan source functions: %w", err)
		}
		fns = append(fns, fn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source functions: %w", err)
	}
	return fns, nil
}

// ScanCalls returns all calls ordered by natural key, resolving the
// function reference for ordering.
func (s *Store) ScanCalls(ctx context.Context) ([]model.Call, error) {
	fnKeys, err := s.sourceFunctionKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan calls: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, call_instr, ret_instr, called_function_id, callsite_file, callsite_line
		FROM calls
	`)
	if err != nil {
		return nil, fmt.Errorf("scan calls: %w", err)
	}
	defer rows.Close()

	calls := []model.Call{}
	for rows.Next() {
		var call model.Call
		var ci, ri int64
		if err := rows.Scan(&call.ID, &ci, &ri, &call.CalledFunctionID, &call.CallsiteFile, &call.CallsiteLine); err != nil {
			return nil, fmt.Errorf("scan calls: %w", err)
		}
		call.CallInstr = uint64(ci)
		call.RetInstr = uint64(ri)
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	slices.SortFunc(calls, func(a, b model.Call) int {
		return a.Key(fnKeys[a.CalledFunctionID]).Compare(b.Key(fnKeys[b.CalledFunctionID]))
	})
	return calls, nil
}

// Counts returns per-table record counts, keyed by table name.
func (s *Store) Counts(ctx context.Context) (map[string]int64, error) {
	tables := []string{
		"source_lvals", "labelsets", "duas", "attack_points", "bugs",
		"source_modifications", "builds", "runs", "source_functions", "calls",
	}
	counts := make(map[string]int64, len(tables))
	for _, table := range tables {
		var n int64
		if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}
