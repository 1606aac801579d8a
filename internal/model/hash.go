package model

// SelectedBytesHash folds a selected-bytes sequence into a 64-bit value:
// XOR of (byte+1) shifted left by 16*(index mod 4) bits.
//
// The hash is a fast equality pre-filter for storage engines that cannot
// index an array column directly. Distinct sequences can collide, so any
// positive match must be confirmed by comparing the full sequence.
func SelectedBytesHash(selected []uint32) uint64 {
	var h uint64
	for i, b := range selected {
		h ^= (uint64(b) + 1) << (16 * (uint(i) % 4))
	}
	return h
}
