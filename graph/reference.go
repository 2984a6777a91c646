package graph

import (
	"fmt"
)

type ReferenceType int

const (
	// PC-relative branch/call displacement.
	PCRelativeRef = ReferenceType(iota)
	// Absolute address in the image's preferred load space.
	AbsoluteRef
	// Image-relative address (RVA).
	RelativeRef
	// Offset into the image file.
	FileOffsetRef
	// COFF section index fixup.
	SectionRef
	// COFF section-relative offset fixup.
	SectionOffsetRef
)

var referenceTypeNames = []string{
	"pc-relative",
	"absolute",
	"relative",
	"file-offset",
	"section",
	"section-offset",
}

func (refType ReferenceType) String() string {
	if refType < 0 || int(refType) >= len(referenceTypeNames) {
		return fmt.Sprintf("unknown-ref-type(%d)", int(refType))
	}
	return referenceTypeNames[refType]
}

// MaxReferenceSize is the widest encoding any reference type admits.
const MaxReferenceSize = 4

// Reference is a typed, sized pointer from an offset in one block to a
// location in another block. Base is the offset of the object actually
// being referenced, which must lie strictly within the target block;
// Offset is the location the encoded value points at, and may lie
// outside the target for data blocks (non-zero based table indexing,
// loop induction).
type Reference struct {
	Type ReferenceType
	Size uint32
	To   *Block

	Offset int
	Base   int
}

// NewReference builds a direct reference, where the referenced object
// and the pointed-at location coincide.
func NewReference(
	refType ReferenceType,
	size uint32,
	to *Block,
	offset int,
) Reference {
	return NewIndirectReference(refType, size, to, offset, offset)
}

func NewIndirectReference(
	refType ReferenceType,
	size uint32,
	to *Block,
	offset int,
	base int,
) Reference {
	ref := Reference{
		Type:   refType,
		Size:   size,
		To:     to,
		Offset: offset,
		Base:   base,
	}
	if !ref.IsValid() {
		panic(fmt.Sprintf(
			"invalid reference: %s size %d base %d",
			refType,
			size,
			base))
	}
	return ref
}

func (ref Reference) IsDirect() bool {
	return ref.Offset == ref.Base
}

// IsValid checks the type/size combination and that the base lands
// strictly inside the referenced block.
func (ref Reference) IsValid() bool {
	if ref.To == nil {
		return false
	}
	if ref.Base < 0 || uint32(ref.Base) >= ref.To.Size() {
		return false
	}
	return IsValidReferenceTypeSize(ref.Type, ref.Size)
}

func IsValidReferenceTypeSize(
	refType ReferenceType,
	size uint32,
) bool {
	switch refType {
	case PCRelativeRef:
		// 8- and 32-bit relative jumps occur in practice.
		return size == 1 || size == 4
	case AbsoluteRef, RelativeRef, FileOffsetRef, SectionOffsetRef:
		return size == 4
	case SectionRef:
		// COFF section indices are 16 bit.
		return size == 2
	default:
		return false
	}
}

// Referrer records that the block at Block holds a reference at Offset
// pointing at the current block. Keyed on the source location so the
// back-entry is easy to find on change or deletion.
type Referrer struct {
	Block  *Block
	Offset int
}
