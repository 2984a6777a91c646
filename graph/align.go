package graph

// IsPowerOfTwo returns true iff value has exactly one bit set.
func IsPowerOfTwo(value uint32) bool {
	return value != 0 && value&(value-1) == 0
}

// AlignUp rounds value up to the nearest multiple of alignment, which
// must be a power of two.
func AlignUp(
	value uint32,
	alignment uint32,
) uint32 {
	if !IsPowerOfTwo(alignment) {
		panic("alignment must be a power of two")
	}
	return (value + alignment - 1) &^ (alignment - 1)
}
