package harness

import (
	"context"
	"fmt"

	"github.com/roach88/lavadb/internal/model"
	"github.com/roach88/lavadb/internal/store"
)

// Runner executes scenarios against a store, tracking the identity
// recorded under each step alias.
type Runner struct {
	st      *store.Store
	records map[string]record
}

type record struct {
	kind    string
	id      model.RecID
	created bool
}

// NewRunner returns a Runner bound to st. The store should be empty;
// scenarios assume they observe only their own records.
func NewRunner(st *store.Store) *Runner {
	return &Runner{st: st, records: make(map[string]record)}
}

// Run executes every step and assertion of sc.
func (r *Runner) Run(ctx context.Context, sc *Scenario) error {
	for i, step := range sc.Steps {
		if err := r.runStep(ctx, step); err != nil {
			return fmt.Errorf("scenario %s step %d: %w", sc.Name, i, err)
		}
	}
	for i, a := range sc.Assertions {
		if err := r.checkAssertion(a); err != nil {
			return fmt.Errorf("scenario %s assertion %d: %w", sc.Name, i, err)
		}
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, step Step) error {
	kind := step.Intern
	if kind == "" {
		kind = step.Add
	}

	id, created, err := r.submit(ctx, step)
	if step.ExpectError != "" {
		if err == nil {
			return fmt.Errorf("%s: expected %s, got success", kind, step.ExpectError)
		}
		if got := string(model.CodeOf(err)); got != step.ExpectError {
			return fmt.Errorf("%s: expected %s, got %s (%v)", kind, step.ExpectError, got, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", kind, err)
	}

	if step.As != "" {
		if _, dup := r.records[step.As]; dup {
			return fmt.Errorf("alias %q already bound", step.As)
		}
		r.records[step.As] = record{kind: kind, id: id, created: created}
	}
	return nil
}

func (r *Runner) submit(ctx context.Context, step Step) (model.RecID, bool, error) {
	f := step.Fields
	switch {
	case step.Intern == "source_lval":
		timing, err := r.timing(f, "timing")
		if err != nil {
			return 0, false, err
		}
		return r.st.InternSourceLval(ctx, model.SourceLval{
			File:    str(f, "file"),
			Line:    u32(f, "line"),
			AstName: str(f, "ast_name"),
			Timing:  timing,
		})
	case step.Intern == "labelset":
		return r.st.InternLabelSet(ctx, model.LabelSet{
			Ptr:       u64(f, "ptr"),
			Inputfile: str(f, "inputfile"),
			Labels:    u32s(f, "labels"),
		})
	case step.Intern == "dua":
		lval, err := r.ref(f, "lval")
		if err != nil {
			return 0, false, err
		}
		viable, err := r.refs(f, "viable_bytes")
		if err != nil {
			return 0, false, err
		}
		return r.st.InternDua(ctx, model.Dua{
			LvalID:         lval,
			ViableBytes:    viable,
			AllLabels:      u32s(f, "all_labels"),
			Inputfile:      str(f, "inputfile"),
			MaxTCN:         u32(f, "max_tcn"),
			MaxCardinality: u32(f, "max_cardinality"),
			Instr:          u64(f, "instr"),
			FakeDua:        boolean(f, "fake_dua"),
		})
	case step.Intern == "attack_point":
		typ, err := r.atpType(f, "type")
		if err != nil {
			return 0, false, err
		}
		return r.st.InternAttackPoint(ctx, model.AttackPoint{
			File: str(f, "file"),
			Line: u32(f, "line"),
			Type: typ,
		})
	case step.Intern == "bug":
		dua, err := r.ref(f, "dua")
		if err != nil {
			return 0, false, err
		}
		atp, err := r.ref(f, "atp")
		if err != nil {
			return 0, false, err
		}
		return r.st.InternBug(ctx, model.Bug{
			DuaID:         dua,
			SelectedBytes: u32s(f, "selected_bytes"),
			AtpID:         atp,
			MaxLiveness:   f64(f, "max_liveness"),
		})
	case step.Intern == "source_modification":
		lval, err := r.ref(f, "lval")
		if err != nil {
			return 0, false, err
		}
		atp, err := r.ref(f, "atp")
		if err != nil {
			return 0, false, err
		}
		sm := model.NewSourceModification(lval, u32s(f, "selected_bytes"), atp)
		return r.st.InternSourceModification(ctx, sm)
	case step.Intern == "source_function":
		return r.st.InternSourceFunction(ctx, model.SourceFunction{
			File: str(f, "file"),
			Line: u32(f, "line"),
			Name: str(f, "name"),
		})
	case step.Intern == "call":
		fn, err := r.ref(f, "function")
		if err != nil {
			return 0, false, err
		}
		return r.st.InternCall(ctx, model.Call{
			CallInstr:        u64(f, "call_instr"),
			RetInstr:         u64(f, "ret_instr"),
			CalledFunctionID: fn,
			CallsiteFile:     str(f, "callsite_file"),
			CallsiteLine:     u32(f, "callsite_line"),
		})
	case step.Add == "build":
		bugs, err := r.refs(f, "bugs")
		if err != nil {
			return 0, false, err
		}
		id, err := r.st.AddBuild(ctx, model.Build{
			Bugs:    bugs,
			Output:  str(f, "output"),
			Compile: boolean(f, "compile"),
		})
		return id, true, err
	case step.Add == "run":
		build, err := r.ref(f, "build")
		if err != nil {
			return 0, false, err
		}
		fuzzed, err := r.optionalRef(f, "fuzzed")
		if err != nil {
			return 0, false, err
		}
		id, err := r.st.AddRun(ctx, model.Run{
			BuildID:  build,
			FuzzedID: fuzzed,
			Exitcode: integer(f, "exitcode"),
			Output:   str(f, "output"),
			Success:  boolean(f, "success"),
		})
		return id, true, err
	}
	return 0, false, fmt.Errorf("unknown entity %q", step.Intern+step.Add)
}

func (r *Runner) checkAssertion(a Assertion) error {
	if len(a.SameIdentity) > 1 {
		first, err := r.lookup(a.SameIdentity[0])
		if err != nil {
			return err
		}
		for _, alias := range a.SameIdentity[1:] {
			rec, err := r.lookup(alias)
			if err != nil {
				return err
			}
			if rec.id != first.id || rec.kind != first.kind {
				return fmt.Errorf("%s and %s differ: %s/%d vs %s/%d",
					a.SameIdentity[0], alias, first.kind, first.id, rec.kind, rec.id)
			}
		}
	}
	for i, alias := range a.DistinctIdentity {
		rec, err := r.lookup(alias)
		if err != nil {
			return err
		}
		for _, other := range a.DistinctIdentity[i+1:] {
			orec, err := r.lookup(other)
			if err != nil {
				return err
			}
			if rec.kind == orec.kind && rec.id == orec.id {
				return fmt.Errorf("%s and %s share identity %s/%d", alias, other, rec.kind, rec.id)
			}
		}
	}
	return nil
}

// TraceLine renders the provenance of the record bound to alias. Only
// kinds with a stable rendering can be traced.
func (r *Runner) TraceLine(ctx context.Context, alias string) (string, error) {
	rec, err := r.lookup(alias)
	if err != nil {
		return "", err
	}
	switch rec.kind {
	case "dua":
		prov, err := r.st.DuaProvenance(ctx, rec.id)
		if err != nil {
			return "", err
		}
		return prov.String(), nil
	case "bug":
		prov, err := r.st.BugProvenance(ctx, rec.id)
		if err != nil {
			return "", err
		}
		return prov.Render()
	case "attack_point":
		atp, err := r.st.GetAttackPoint(ctx, rec.id)
		if err != nil {
			return "", err
		}
		return atp.Render()
	case "source_lval":
		lval, err := r.st.GetSourceLval(ctx, rec.id)
		if err != nil {
			return "", err
		}
		return lval.String(), nil
	}
	return "", fmt.Errorf("alias %q: kind %s has no rendering", alias, rec.kind)
}

func (r *Runner) lookup(alias string) (record, error) {
	rec, ok := r.records[alias]
	if !ok {
		return record{}, fmt.Errorf("alias %q not bound", alias)
	}
	return rec, nil
}

func (r *Runner) ref(f map[string]any, name string) (model.RecID, error) {
	v, ok := f[name]
	if !ok {
		return 0, fmt.Errorf("field %q is required", name)
	}
	return r.refValue(name, v)
}

// optionalRef resolves a reference field that may be absent or null.
func (r *Runner) optionalRef(f map[string]any, name string) (model.RecID, error) {
	v, ok := f[name]
	if !ok || v == nil {
		return 0, nil
	}
	return r.refValue(name, v)
}

func (r *Runner) refs(f map[string]any, name string) ([]model.RecID, error) {
	raw, ok := f[name].([]any)
	if !ok {
		return nil, nil
	}
	out := make([]model.RecID, 0, len(raw))
	for _, v := range raw {
		if v == nil {
			out = append(out, 0)
			continue
		}
		id, err := r.refValue(name, v)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// refValue resolves one reference: an alias string, or a raw integer for
// scenarios probing dangling or null references.
func (r *Runner) refValue(name string, v any) (model.RecID, error) {
	switch t := v.(type) {
	case string:
		rec, err := r.lookup(t)
		if err != nil {
			return 0, fmt.Errorf("field %q: %w", name, err)
		}
		return rec.id, nil
	case int:
		return model.RecID(t), nil
	case int64:
		return model.RecID(t), nil
	}
	return 0, fmt.Errorf("field %q: cannot resolve %T as reference", name, v)
}

func (r *Runner) timing(f map[string]any, name string) (model.Timing, error) {
	switch v := f[name].(type) {
	case nil:
		return model.NullTiming, nil
	case int:
		return model.Timing(v), nil
	case string:
		switch v {
		case "NULL_TIMING":
			return model.NullTiming, nil
		case "BEFORE_OCCURRENCE":
			return model.BeforeOccurrence, nil
		case "AFTER_OCCURRENCE":
			return model.AfterOccurrence, nil
		}
		return 0, fmt.Errorf("field %q: unknown timing %q", name, v)
	}
	return 0, fmt.Errorf("field %q: cannot resolve %T as timing", name, f[name])
}

func (r *Runner) atpType(f map[string]any, name string) (model.AtpType, error) {
	switch v := f[name].(type) {
	case int:
		return model.AtpType(v), nil
	case string:
		switch v {
		case "ATP_FUNCTION_CALL":
			return model.AtpFunctionCall, nil
		case "ATP_POINTER_RW":
			return model.AtpPointerRW, nil
		case "ATP_LARGE_BUFFER_AVAIL":
			return model.AtpLargeBufferAvail, nil
		}
		return 0, fmt.Errorf("field %q: unknown attack point type %q", name, v)
	}
	return 0, fmt.Errorf("field %q: cannot resolve %T as attack point type", name, f[name])
}

func str(f map[string]any, name string) string {
	s, _ := f[name].(string)
	return s
}

func boolean(f map[string]any, name string) bool {
	b, _ := f[name].(bool)
	return b
}

func integer(f map[string]any, name string) int {
	switch v := f[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

func u32(f map[string]any, name string) uint32 {
	return uint32(integer(f, name))
}

func u64(f map[string]any, name string) uint64 {
	switch v := f[name].(type) {
	case int:
		return uint64(v)
	case int64:
		return uint64(v)
	case uint64:
		return v
	}
	return 0
}

func f64(f map[string]any, name string) float64 {
	switch v := f[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func u32s(f map[string]any, name string) []uint32 {
	raw, ok := f[name].([]any)
	if !ok {
		return nil
	}
	out := make([]uint32, 0, len(raw))
	for _, v := range raw {
		switch t := v.(type) {
		case int:
			out = append(out, uint32(t))
		case int64:
			out = append(out, uint32(t))
		}
	}
	return out
}
