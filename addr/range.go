package addr

import (
	"fmt"
)

// Address is the constraint shared by the typed address spaces.
type Address interface {
	~uint32
}

// Range is a half-open address range [Start, Start+Size). Zero-sized
// ranges are meaningless and rejected at construction.
type Range[A Address] struct {
	start A
	size  uint32
}

func NewRange[A Address](
	start A,
	size uint32,
) Range[A] {
	if size == 0 {
		panic(fmt.Sprintf("zero-sized range at %x", uint32(start)))
	}

	return Range[A]{
		start: start,
		size:  size,
	}
}

func (r Range[A]) Start() A {
	return r.start
}

func (r Range[A]) Size() uint32 {
	return r.size
}

func (r Range[A]) End() A {
	return r.start + A(r.size)
}

// end64 avoids uint32 wrap-around for ranges ending at the top of the
// address space.
func (r Range[A]) end64() uint64 {
	return uint64(r.start) + uint64(r.size)
}

// Contains returns true iff other lies entirely within r.
func (r Range[A]) Contains(other Range[A]) bool {
	return other.start >= r.start && other.end64() <= r.end64()
}

func (r Range[A]) ContainsAddress(
	address A,
	size uint32,
) bool {
	return r.Contains(NewRange(address, size))
}

// Intersects returns true iff r and other share at least one address.
// Adjacent ranges do not intersect.
func (r Range[A]) Intersects(other Range[A]) bool {
	return uint64(other.start) < r.end64() && other.end64() > uint64(r.start)
}

func (r Range[A]) Equals(other Range[A]) bool {
	return r.start == other.start && r.size == other.size
}

func (r Range[A]) String() string {
	return fmt.Sprintf("[0x%08x, 0x%08x)", uint32(r.start), r.end64())
}
