package addr

import (
	"fmt"
)

// The three address spaces an image inhabits are deliberately
// incompatible types. Translating between them requires knowledge of
// the image's section layout and belongs to the image-format layer,
// not here.

// RelativeAddress is an address relative to the image's base load
// address (an RVA).
type RelativeAddress uint32

// AbsoluteAddress is an address in a concrete process address space.
type AbsoluteAddress uint32

// FileOffsetAddress is an offset into the image file on disk.
type FileOffsetAddress uint32

// All-bits-set marks an address as unassigned.
const (
	InvalidRelativeAddress   = RelativeAddress(0xFFFFFFFF)
	InvalidAbsoluteAddress   = AbsoluteAddress(0xFFFFFFFF)
	InvalidFileOffsetAddress = FileOffsetAddress(0xFFFFFFFF)
)

func (a RelativeAddress) Value() uint32 {
	return uint32(a)
}

func (a RelativeAddress) IsValid() bool {
	return a != InvalidRelativeAddress
}

func (a RelativeAddress) Add(n int) RelativeAddress {
	return RelativeAddress(int64(a) + int64(n))
}

// Diff returns the signed byte distance a - other.
func (a RelativeAddress) Diff(other RelativeAddress) int {
	return int(int64(a) - int64(other))
}

func (a RelativeAddress) String() string {
	return fmt.Sprintf("rva:0x%08x", uint32(a))
}

func (a AbsoluteAddress) Value() uint32 {
	return uint32(a)
}

func (a AbsoluteAddress) IsValid() bool {
	return a != InvalidAbsoluteAddress
}

func (a AbsoluteAddress) Add(n int) AbsoluteAddress {
	return AbsoluteAddress(int64(a) + int64(n))
}

func (a AbsoluteAddress) Diff(other AbsoluteAddress) int {
	return int(int64(a) - int64(other))
}

func (a AbsoluteAddress) String() string {
	return fmt.Sprintf("abs:0x%08x", uint32(a))
}

func (a FileOffsetAddress) Value() uint32 {
	return uint32(a)
}

func (a FileOffsetAddress) IsValid() bool {
	return a != InvalidFileOffsetAddress
}

func (a FileOffsetAddress) Add(n int) FileOffsetAddress {
	return FileOffsetAddress(int64(a) + int64(n))
}

func (a FileOffsetAddress) Diff(other FileOffsetAddress) int {
	return int(int64(a) - int64(other))
}

func (a FileOffsetAddress) String() string {
	return fmt.Sprintf("file:0x%08x", uint32(a))
}
