// Package model defines the record types of the LAVA bug-injection database.
//
// This package contains type definitions only. All other internal packages
// import model; model imports nothing internal. This ensures the record
// layer remains foundational with no circular dependencies.
//
// Key design constraints:
//   - Records are immutable once persisted; "mutation" means inserting a
//     new record. Identity (RecID) is storage-assigned and carries no
//     business meaning.
//   - Cross-record references are RecID handles, never pointers. The
//     reference graph is a DAG: Dua -> SourceLval/LabelSet,
//     Bug -> Dua/AttackPoint, Build -> Bug, Run -> Build/Bug,
//     Call -> SourceFunction.
//   - Every keyed record has a natural-key type with a total lexicographic
//     ordering (Compare), usable as a map key and for deterministic merges.
//   - Enums (Timing, AtpType) are closed sets; a value outside the domain
//     is a MalformedEnum fault, never silently coerced.
package model
