package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectedBytesHashDeterminism(t *testing.T) {
	bytes := []uint32{0, 1, 2, 3, 4, 5}

	h1 := SelectedBytesHash(bytes)
	h2 := SelectedBytesHash(bytes)
	assert.Equal(t, h1, h2, "hash must be a pure function of the sequence")
}

func TestSelectedBytesHashFold(t *testing.T) {
	// Single byte: (b+1) << 0.
	assert.Equal(t, uint64(6), SelectedBytesHash([]uint32{5}))

	// Index 1 shifts by 16, index 4 wraps back to shift 0.
	assert.Equal(t, uint64(3)<<16, SelectedBytesHash([]uint32{2, 2})^SelectedBytesHash([]uint32{2}))

	assert.Zero(t, SelectedBytesHash(nil))
}

// TestSelectedBytesHashEngineeredCollision constructs two distinct
// sequences whose per-slot contributions cancel identically: positions 1
// and 5 share shift slot 16, so a value repeated at both positions XORs to
// zero regardless of what the value is. The hash collides, and only full
// sequence comparison distinguishes them.
func TestSelectedBytesHashEngineeredCollision(t *testing.T) {
	a := []uint32{1, 2, 3, 4, 5, 2}
	b := []uint32{1, 9, 3, 4, 5, 9}

	assert.Equal(t, SelectedBytesHash(a), SelectedBytesHash(b), "engineered collision")
	assert.NotEqual(t, a, b, "sequences differ despite colliding hashes")

	ka := BugKey{SelectedBytes: a}
	kb := BugKey{SelectedBytes: b}
	assert.NotZero(t, ka.Compare(kb), "full-sequence comparison still disambiguates")
}

func TestNewSourceModificationCachesHash(t *testing.T) {
	sm := NewSourceModification(1, []uint32{7, 8}, 2)
	assert.Equal(t, SelectedBytesHash([]uint32{7, 8}), sm.SelectedBytesHash)
}
