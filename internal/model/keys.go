package model

import (
	"cmp"
	"slices"
	"strings"
)

// Natural-key types. Each keyed entity has a key struct mirroring its
// unique-index tuple, with a total lexicographic ordering over the tuple
// fields left to right. Reference fields appear as the referenced entity's
// own key, compared recursively; the reference graph is a DAG, so recursion
// terminates.
//
// Compare returns -1, 0, or 1, and is consistent with equality: two keys
// are equal iff Compare returns 0.

// SourceLvalKey is the (file, line, ast_name, timing) tuple.
type SourceLvalKey struct {
	File    string
	Line    uint32
	AstName string
	Timing  Timing
}

// Key returns the natural key of the lval.
func (l SourceLval) Key() SourceLvalKey {
	return SourceLvalKey{File: l.File, Line: l.Line, AstName: l.AstName, Timing: l.Timing}
}

func (k SourceLvalKey) Compare(o SourceLvalKey) int {
	if c := strings.Compare(k.File, o.File); c != 0 {
		return c
	}
	if c := cmp.Compare(k.Line, o.Line); c != 0 {
		return c
	}
	if c := strings.Compare(k.AstName, o.AstName); c != 0 {
		return c
	}
	return cmp.Compare(k.Timing, o.Timing)
}

// LabelSetKey is the (ptr, inputfile, labels) tuple. Labels participate as
// an ordered sequence; two keys differing only in label order are distinct.
type LabelSetKey struct {
	Ptr       uint64
	Inputfile string
	Labels    []uint32
}

// Key returns the natural key of the labelset.
func (l LabelSet) Key() LabelSetKey {
	return LabelSetKey{Ptr: l.Ptr, Inputfile: l.Inputfile, Labels: l.Labels}
}

func (k LabelSetKey) Compare(o LabelSetKey) int {
	if c := cmp.Compare(k.Ptr, o.Ptr); c != 0 {
		return c
	}
	if c := strings.Compare(k.Inputfile, o.Inputfile); c != 0 {
		return c
	}
	return slices.Compare(k.Labels, o.Labels)
}

// DuaKey is the (lval, inputfile, instr) tuple.
type DuaKey struct {
	Lval      SourceLvalKey
	Inputfile string
	Instr     uint64
}

// Key returns the natural key of the dua. The lval reference must be
// supplied resolved, as duas store it by identity.
func (d Dua) Key(lval SourceLvalKey) DuaKey {
	return DuaKey{Lval: lval, Inputfile: d.Inputfile, Instr: d.Instr}
}

func (k DuaKey) Compare(o DuaKey) int {
	if c := k.Lval.Compare(o.Lval); c != 0 {
		return c
	}
	if c := strings.Compare(k.Inputfile, o.Inputfile); c != 0 {
		return c
	}
	return cmp.Compare(k.Instr, o.Instr)
}

// AttackPointKey is the (file, line, type) tuple.
type AttackPointKey struct {
	File string
	Line uint32
	Type AtpType
}

// Key returns the natural key of the attack point.
func (a AttackPoint) Key() AttackPointKey {
	return AttackPointKey{File: a.File, Line: a.Line, Type: a.Type}
}

func (k AttackPointKey) Compare(o AttackPointKey) int {
	if c := strings.Compare(k.File, o.File); c != 0 {
		return c
	}
	if c := cmp.Compare(k.Line, o.Line); c != 0 {
		return c
	}
	return cmp.Compare(k.Type, o.Type)
}

// BugKey is the (atp, dua, selected_bytes) tuple.
type BugKey struct {
	Atp           AttackPointKey
	Dua           DuaKey
	SelectedBytes []uint32
}

// Key returns the natural key of the bug with its references resolved.
func (b Bug) Key(atp AttackPointKey, dua DuaKey) BugKey {
	return BugKey{Atp: atp, Dua: dua, SelectedBytes: b.SelectedBytes}
}

func (k BugKey) Compare(o BugKey) int {
	if c := k.Atp.Compare(o.Atp); c != 0 {
		return c
	}
	if c := k.Dua.Compare(o.Dua); c != 0 {
		return c
	}
	return slices.Compare(k.SelectedBytes, o.SelectedBytes)
}

// SourceModificationKey is the (atp, lval, selected_bytes) tuple.
type SourceModificationKey struct {
	Atp           AttackPointKey
	Lval          SourceLvalKey
	SelectedBytes []uint32
}

// Key returns the natural key of the modification with its references
// resolved.
func (m SourceModification) Key(atp AttackPointKey, lval SourceLvalKey) SourceModificationKey {
	return SourceModificationKey{Atp: atp, Lval: lval, SelectedBytes: m.SelectedBytes}
}

func (k SourceModificationKey) Compare(o SourceModificationKey) int {
	if c := k.Atp.Compare(o.Atp); c != 0 {
		return c
	}
	if c := k.Lval.Compare(o.Lval); c != 0 {
		return c
	}
	return slices.Compare(k.SelectedBytes, o.SelectedBytes)
}

// SourceFunctionKey is the (file, line, name) tuple.
type SourceFunctionKey struct {
	File string
	Line uint32
	Name string
}

// Key returns the natural key of the function.
func (f SourceFunction) Key() SourceFunctionKey {
	return SourceFunctionKey{File: f.File, Line: f.Line, Name: f.Name}
}

func (k SourceFunctionKey) Compare(o SourceFunctionKey) int {
	if c := strings.Compare(k.File, o.File); c != 0 {
		return c
	}
	if c := cmp.Compare(k.Line, o.Line); c != 0 {
		return c
	}
	return strings.Compare(k.Name, o.Name)
}

// CallKey is the (call_instr, ret_instr, called_function, callsite_file,
// callsite_line) tuple.
type CallKey struct {
	CallInstr    uint64
	RetInstr     uint64
	Function     SourceFunctionKey
	CallsiteFile string
	CallsiteLine uint32
}

// Key returns the natural key of the call with its function resolved.
func (c Call) Key(fn SourceFunctionKey) CallKey {
	return CallKey{
		CallInstr:    c.CallInstr,
		RetInstr:     c.RetInstr,
		Function:     fn,
		CallsiteFile: c.CallsiteFile,
		CallsiteLine: c.CallsiteLine,
	}
}

func (k CallKey) Compare(o CallKey) int {
	if c := cmp.Compare(k.CallInstr, o.CallInstr); c != 0 {
		return c
	}
	if c := cmp.Compare(k.RetInstr, o.RetInstr); c != 0 {
		return c
	}
	if c := k.Function.Compare(o.Function); c != 0 {
		return c
	}
	if c := strings.Compare(k.CallsiteFile, o.CallsiteFile); c != 0 {
		return c
	}
	return cmp.Compare(k.CallsiteLine, o.CallsiteLine)
}
