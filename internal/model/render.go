package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Provenance rendering. Renderings are deterministic and order-preserving:
// two structurally equal records always render to identical text, so the
// rendering doubles as a cheap equality oracle in tests and dedup logs.
// Rendering never depends on storage identity.

// String renders the lval as `Lval [<file>:<line> "<ast_name>"]`.
func (l SourceLval) String() string {
	return fmt.Sprintf("Lval [%s:%d %q]", l.File, l.Line, l.AstName)
}

// Render renders the attack point as `ATP [<file>:<line>] {<type>}`.
//
// Only ATP_FUNCTION_CALL and ATP_POINTER_RW have renderings; any other
// type is a fatal internal-consistency fault (a code/schema mismatch, not
// a recoverable user error). Storage validity is independent: a record
// with an unrenderable type still persists.
func (a AttackPoint) Render() (string, error) {
	var kind string
	switch a.Type {
	case AtpFunctionCall:
		kind = "ATP_FUNCTION_CALL"
	case AtpPointerRW:
		kind = "ATP_POINTER_RW"
	default:
		return "", NewMalformedEnum("AttackPoint", "type", int32(a.Type))
	}
	return fmt.Sprintf("ATP [%s:%d] {%s}", a.File, a.Line, kind), nil
}

// DuaProvenance is a Dua with its references resolved for rendering.
// ViableBytes holds one entry per dua byte; nil marks an untainted byte.
type DuaProvenance struct {
	Dua         Dua
	Lval        SourceLval
	ViableBytes []*LabelSet
}

// String renders the dua as
// `DUA [<inputfile>][<lval>,[{<ls.ptr>}, ...],{<label>,...},<max_tcn>,<max_cardinality>,<instr>,<fake|real>]`.
// A nil labelset renders its ptr slot as 0.
func (p DuaProvenance) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "DUA [%s][%s,[", p.Dua.Inputfile, p.Lval)
	for i, ls := range p.ViableBytes {
		if i > 0 {
			b.WriteString(", ")
		}
		var ptr uint64
		if ls != nil {
			ptr = ls.Ptr
		}
		fmt.Fprintf(&b, "{%d}", ptr)
	}
	b.WriteString("],{")
	for i, label := range p.Dua.AllLabels {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d", label)
	}
	fmt.Fprintf(&b, "},%d,%d,%d,", p.Dua.MaxTCN, p.Dua.MaxCardinality, p.Dua.Instr)
	if p.Dua.FakeDua {
		b.WriteString("fake")
	} else {
		b.WriteString("real")
	}
	b.WriteByte(']')
	return b.String()
}

// BugProvenance is a Bug with its references resolved for rendering.
type BugProvenance struct {
	Bug Bug
	Dua DuaProvenance
	Atp AttackPoint
}

// Render renders the bug as
// `BUG [<dua>, <atp>, {<byte>,...}, <max_liveness>]`.
// Fails with MalformedEnum if the attack point is unrenderable.
func (p BugProvenance) Render() (string, error) {
	atp, err := p.Atp.Render()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "BUG [%s, %s, {", p.Dua, atp)
	for i, sel := range p.Bug.SelectedBytes {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d", sel)
	}
	fmt.Fprintf(&b, "}, %s]", strconv.FormatFloat(p.Bug.MaxLiveness, 'g', -1, 64))
	return b.String(), nil
}
