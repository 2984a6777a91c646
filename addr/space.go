package addr

import (
	"sort"
)

// Entry associates one range with one value.
type Entry[A Address, V any] struct {
	Range Range[A]
	Value V
}

// Space is a mapping from non-overlapping, non-empty address ranges to
// values. Entries are kept in ascending address order; all lookups are
// O(log n) binary searches.
type Space[A Address, V any] struct {
	entries []Entry[A, V]
}

func NewSpace[A Address, V any]() *Space[A, V] {
	return &Space[A, V]{}
}

func (space *Space[A, V]) Len() int {
	return len(space.entries)
}

func (space *Space[A, V]) IsEmpty() bool {
	return len(space.entries) == 0
}

// Entries returns the underlying entry slice in address order. The
// caller must not modify it.
func (space *Space[A, V]) Entries() []Entry[A, V] {
	return space.entries
}

// firstCandidate returns the index of the first entry whose end lies
// beyond the start of r. Only entries from this index on can
// intersect r.
func (space *Space[A, V]) firstCandidate(r Range[A]) int {
	return sort.Search(
		len(space.entries),
		func(i int) bool {
			return space.entries[i].Range.end64() > uint64(r.Start())
		})
}

// Insert adds r -> value unless r intersects an existing range.
// Returns true iff the entry was inserted.
func (space *Space[A, V]) Insert(
	r Range[A],
	value V,
) bool {
	idx := space.firstCandidate(r)
	if idx < len(space.entries) && space.entries[idx].Range.Intersects(r) {
		return false
	}

	space.entries = append(space.entries, Entry[A, V]{})
	copy(space.entries[idx+1:], space.entries[idx:])
	space.entries[idx] = Entry[A, V]{
		Range: r,
		Value: value,
	}
	return true
}

// Remove removes the entry whose range exactly matches r. Returns
// true iff such an entry existed.
func (space *Space[A, V]) Remove(r Range[A]) bool {
	idx := space.firstCandidate(r)
	if idx >= len(space.entries) || !space.entries[idx].Range.Equals(r) {
		return false
	}

	space.entries = append(space.entries[:idx], space.entries[idx+1:]...)
	return true
}

// FindFirstIntersection returns the lowest-addressed entry
// intersecting r.
func (space *Space[A, V]) FindFirstIntersection(
	r Range[A],
) (
	Entry[A, V],
	bool,
) {
	idx := space.firstCandidate(r)
	if idx < len(space.entries) && space.entries[idx].Range.Intersects(r) {
		return space.entries[idx], true
	}

	var zero Entry[A, V]
	return zero, false
}

// FindContaining returns the entry whose range fully contains r.
// Partial overlap does not count.
func (space *Space[A, V]) FindContaining(
	r Range[A],
) (
	Entry[A, V],
	bool,
) {
	// A containing range, if any, is the first intersection.
	idx := space.firstCandidate(r)
	if idx < len(space.entries) && space.entries[idx].Range.Contains(r) {
		return space.entries[idx], true
	}

	var zero Entry[A, V]
	return zero, false
}

// Intersecting returns all entries intersecting r, in address order.
// The returned slice aliases the space's storage; the caller must not
// modify it and must copy it before mutating the space.
func (space *Space[A, V]) Intersecting(r Range[A]) []Entry[A, V] {
	begin := space.firstCandidate(r)
	end := begin
	for end < len(space.entries) && space.entries[end].Range.Intersects(r) {
		end++
	}

	return space.entries[begin:end]
}

// Intersects returns true iff r overlaps any entry.
func (space *Space[A, V]) Intersects(r Range[A]) bool {
	_, ok := space.FindFirstIntersection(r)
	return ok
}

// ContainsExactly returns true iff an entry's range equals r.
func (space *Space[A, V]) ContainsExactly(r Range[A]) bool {
	idx := space.firstCandidate(r)
	return idx < len(space.entries) && space.entries[idx].Range.Equals(r)
}

// Contains returns true iff a single entry's range contains r.
func (space *Space[A, V]) Contains(r Range[A]) bool {
	_, ok := space.FindContaining(r)
	return ok
}
