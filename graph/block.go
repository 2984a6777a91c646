package graph

import (
	"fmt"
	"sort"

	"github.com/pattyshack/shrike/addr"
)

type BlockID uint32

type BlockType int

const (
	CodeBlock = BlockType(iota)
	DataBlock
	BasicCodeBlock
	BasicDataBlock
)

var blockTypeNames = []string{
	"code",
	"data",
	"basic-code",
	"basic-data",
}

func (blockType BlockType) String() string {
	if blockType < 0 || int(blockType) >= len(blockTypeNames) {
		return fmt.Sprintf("unknown-block-type(%d)", int(blockType))
	}
	return blockTypeNames[blockType]
}

type BlockAttributes uint32

const (
	// Set for functions declared non-returning.
	NonReturnFunction = BlockAttributes(1 << iota)
	// Set for blocks inferred by the decomposer to fill gaps.
	GapBlock
	// Set for blocks parsed directly from image headers. These are
	// unmovable and indivisible.
	PEParsed
	// Set for blocks created from section contribution information.
	SectionContrib
	// The block consists purely of padding bytes.
	PaddingBlock
	// The block contains inline assembly.
	HasInlineAssembly
	// Initial disassembly of the block was incomplete.
	IncompleteDisassembly
	// Disassembly of the block failed outright.
	ErroredDisassembly
	// The block has exception handling enabled.
	HasExceptionHandling
	// Disassembly ran off the end of the block or into data.
	DisassembledPastEnd
	// The block is no longer reachable from the entry point.
	OrphanedBlock
)

// Block is the addressable unit of code or data in a graph.
//
// The reference map and the referrer set are a bidirectionally
// consistent pair of indices. Only SetReference, RemoveReference and
// TransferReferrers may touch either side; everything else reads
// copies. This is what keeps the invariant un-breakable from outside
// the package.
type Block struct {
	id        BlockID
	blockType BlockType
	size      uint32
	alignment uint32
	name      string
	address   addr.RelativeAddress

	section    SectionID
	attributes BlockAttributes

	references   map[int]Reference
	referrers    map[Referrer]struct{}
	labels       map[int]Label
	sourceRanges SourceRangeMap

	// When ownsData is false the data slice is borrowed and must
	// outlive the block; mutation goes through GetMutableData, which
	// copies first.
	ownsData bool
	data     []byte
}

func newBlock(
	id BlockID,
	blockType BlockType,
	size uint32,
	name string,
) *Block {
	return &Block{
		id:         id,
		blockType:  blockType,
		size:       size,
		alignment:  1,
		name:       name,
		address:    addr.InvalidRelativeAddress,
		section:    InvalidSectionID,
		references: map[int]Reference{},
		referrers:  map[Referrer]struct{}{},
		labels:     map[int]Label{},
	}
}

func (block *Block) ID() BlockID {
	return block.id
}

func (block *Block) Type() BlockType {
	return block.blockType
}

func (block *Block) SetType(blockType BlockType) {
	block.blockType = blockType
}

func (block *Block) Size() uint32 {
	return block.size
}

func (block *Block) SetSize(size uint32) {
	block.size = size
}

func (block *Block) Name() string {
	return block.name
}

func (block *Block) SetName(name string) {
	block.name = name
}

func (block *Block) Alignment() uint32 {
	return block.alignment
}

func (block *Block) SetAlignment(alignment uint32) {
	if !IsPowerOfTwo(alignment) {
		panic(fmt.Sprintf("alignment %d is not a power of two", alignment))
	}
	block.alignment = alignment
}

// Addr is the block's current address; set whenever the block is
// placed in an address space.
func (block *Block) Addr() addr.RelativeAddress {
	return block.address
}

func (block *Block) SetAddr(address addr.RelativeAddress) {
	block.address = address
}

func (block *Block) Section() SectionID {
	return block.section
}

func (block *Block) SetSection(section SectionID) {
	block.section = section
}

func (block *Block) Attributes() BlockAttributes {
	return block.attributes
}

func (block *Block) SetAttributes(attributes BlockAttributes) {
	block.attributes = attributes
}

func (block *Block) SetAttribute(attribute BlockAttributes) {
	block.attributes |= attribute
}

func (block *Block) ClearAttribute(attribute BlockAttributes) {
	block.attributes &^= attribute
}

func (block *Block) SourceRanges() *SourceRangeMap {
	return &block.sourceRanges
}

// Contains returns true iff the placed block covers [address,
// address+size).
func (block *Block) Contains(
	address addr.RelativeAddress,
	size uint32,
) bool {
	return address >= block.address &&
		uint64(address)+uint64(size) <=
			uint64(block.address)+uint64(block.size)
}

func (block *Block) String() string {
	return fmt.Sprintf("block %d %s (%s)", block.id, block.name, block.blockType)
}

// Data management.

func (block *Block) OwnsData() bool {
	return block.ownsData
}

// Data returns the block's content. The content may be shorter than
// the block size; the missing tail is implicitly zero.
func (block *Block) Data() []byte {
	return block.data
}

func (block *Block) DataSize() uint32 {
	return uint32(len(block.data))
}

// SetData borrows externally owned bytes. The caller must guarantee
// the slice outlives the block and is never modified behind its back.
func (block *Block) SetData(data []byte) {
	if uint32(len(data)) > block.size {
		panic(fmt.Sprintf(
			"data size %d exceeds block size %d",
			len(data),
			block.size))
	}

	block.ownsData = false
	block.data = data
}

// AllocateData replaces the content with an owned, zero-filled buffer.
func (block *Block) AllocateData(size uint32) []byte {
	if size > block.size {
		panic(fmt.Sprintf(
			"data size %d exceeds block size %d",
			size,
			block.size))
	}

	block.ownsData = true
	block.data = make([]byte, size)
	return block.data
}

// CopyData replaces the content with an owned copy of data.
func (block *Block) CopyData(data []byte) []byte {
	buffer := block.AllocateData(uint32(len(data)))
	copy(buffer, data)
	return buffer
}

// ResizeData truncates or zero-extends the content. Borrowed data that
// only shrinks stays borrowed; everything else becomes an owned copy.
func (block *Block) ResizeData(size uint32) []byte {
	if size > block.size {
		panic(fmt.Sprintf(
			"data size %d exceeds block size %d",
			size,
			block.size))
	}

	if size == block.DataSize() {
		return block.data
	}

	if !block.ownsData && size < block.DataSize() {
		block.data = block.data[:size]
		return block.data
	}

	buffer := make([]byte, size)
	copy(buffer, block.data)
	block.ownsData = true
	block.data = buffer
	return block.data
}

// GetMutableData returns content safe to write. Borrowed data is
// copied into owned storage first.
func (block *Block) GetMutableData() []byte {
	if !block.ownsData && block.data != nil {
		block.CopyData(block.data)
	}
	return block.data
}

// Labels.

// SetLabel records a label at offset. Only one label can occupy an
// offset; the first writer wins and later calls return false. Labels
// may sit at offset == size to mark the end of the block.
func (block *Block) SetLabel(
	offset int,
	label Label,
) bool {
	if offset < 0 || uint32(offset) > block.size {
		panic(fmt.Sprintf(
			"label offset %d outside of %s (size %d)",
			offset,
			block,
			block.size))
	}

	_, ok := block.labels[offset]
	if ok {
		return false
	}

	block.labels[offset] = label
	return true
}

func (block *Block) GetLabel(offset int) (Label, bool) {
	label, ok := block.labels[offset]
	return label, ok
}

func (block *Block) HasLabel(offset int) bool {
	_, ok := block.labels[offset]
	return ok
}

func (block *Block) RemoveLabel(offset int) bool {
	_, ok := block.labels[offset]
	if ok {
		delete(block.labels, offset)
	}
	return ok
}

// Labels returns a copy of the label map.
func (block *Block) Labels() map[int]Label {
	labels := make(map[int]Label, len(block.labels))
	for offset, label := range block.labels {
		labels[offset] = label
	}
	return labels
}

// LabelOffsets returns the labeled offsets in ascending order.
func (block *Block) LabelOffsets() []int {
	offsets := make([]int, 0, len(block.labels))
	for offset := range block.labels {
		offsets = append(offsets, offset)
	}
	sort.Ints(offsets)
	return offsets
}

// Structural resize.

// InsertData grows the block by size bytes at offset. Labels,
// references, referrers and source ranges at or beyond the insertion
// point shift right. Inserted bytes are zero when they land inside the
// existing content; when they land past it the content is only grown
// if alwaysAllocateData is set.
func (block *Block) InsertData(
	offset int,
	size uint32,
	alwaysAllocateData bool,
) {
	if offset < 0 || uint32(offset) > block.size {
		panic(fmt.Sprintf(
			"insertion offset %d outside of %s (size %d)",
			offset,
			block,
			block.size))
	}

	if size > 0 {
		block.size += size
		block.shiftLabels(offset, int(size))
		block.shiftReferences(offset, int(size))
		block.shiftReferrers(offset, int(size))
		block.sourceRanges.InsertUnmappedRange(DataRange{
			Offset: offset,
			Size:   size,
		})

		if offset < len(block.data) {
			buffer := make([]byte, len(block.data)+int(size))
			copy(buffer, block.data[:offset])
			copy(buffer[offset+int(size):], block.data[offset:])
			block.ownsData = true
			block.data = buffer
		}
	}

	if alwaysAllocateData && len(block.data) < offset+int(size) {
		block.ResizeData(uint32(offset + int(size)))
	}
}

// RemoveData shrinks the block by size bytes at offset. The removed
// region must hold no labels, must not intersect any of the block's
// own references, and must not be pointed at by any referrer;
// otherwise nothing is modified and false is returned.
func (block *Block) RemoveData(
	offset int,
	size uint32,
) bool {
	if offset < 0 || uint32(offset)+size > block.size {
		panic(fmt.Sprintf(
			"removed range [%d, %d) outside of %s (size %d)",
			offset,
			offset+int(size),
			block,
			block.size))
	}

	if size == 0 {
		return true
	}

	removed := DataRange{Offset: offset, Size: size}

	for labelOffset := range block.labels {
		if labelOffset >= removed.Offset && labelOffset < removed.End() {
			return false
		}
	}
	for refOffset, ref := range block.references {
		source := DataRange{Offset: refOffset, Size: ref.Size}
		if source.Intersects(removed) {
			return false
		}
	}
	for referrer := range block.referrers {
		ref, ok := referrer.Block.GetReference(referrer.Offset)
		if !ok {
			panic("referrer without matching reference")
		}
		if ref.Offset >= removed.Offset && ref.Offset < removed.End() {
			return false
		}
		if ref.Base >= removed.Offset && ref.Base < removed.End() {
			return false
		}
	}

	block.shiftLabels(removed.End(), -int(size))
	block.shiftReferences(removed.End(), -int(size))
	block.shiftReferrers(removed.End(), -int(size))
	block.sourceRanges.RemoveMappedRange(removed)
	block.size -= size

	if offset < len(block.data) {
		buffer := make([]byte, 0, len(block.data))
		buffer = append(buffer, block.data[:offset]...)
		if removed.End() < len(block.data) {
			buffer = append(buffer, block.data[removed.End():]...)
		}
		block.ownsData = true
		block.data = buffer
	}

	return true
}

// InsertOrRemoveData resizes the region [offset, offset+currentSize)
// to newSize bytes, inserting at or removing from the region's tail.
// Returns false iff a required removal was refused.
func (block *Block) InsertOrRemoveData(
	offset int,
	currentSize uint32,
	newSize uint32,
	alwaysAllocateData bool,
) bool {
	if currentSize < newSize {
		block.InsertData(
			offset+int(currentSize),
			newSize-currentSize,
			alwaysAllocateData)
	} else if currentSize > newSize {
		if !block.RemoveData(offset+int(newSize), currentSize-newSize) {
			return false
		}
	}

	if alwaysAllocateData && len(block.data) < offset+int(newSize) {
		block.ResizeData(uint32(offset + int(newSize)))
	}

	return true
}

// shiftLabels moves labels at or beyond offset by delta.
func (block *Block) shiftLabels(
	offset int,
	delta int,
) {
	updated := make(map[int]Label, len(block.labels))
	for labelOffset, label := range block.labels {
		if labelOffset >= offset {
			labelOffset += delta
		}
		updated[labelOffset] = label
	}
	block.labels = updated
}

// shiftReferences moves the block's own references whose source offset
// is at or beyond offset by delta, keeping the targets' back-entries in
// step.
func (block *Block) shiftReferences(
	offset int,
	delta int,
) {
	shifted := map[int]Reference{}
	for refOffset, ref := range block.references {
		if refOffset >= offset {
			shifted[refOffset] = ref
		}
	}

	for refOffset, ref := range shifted {
		delete(block.references, refOffset)
		delete(ref.To.referrers, Referrer{Block: block, Offset: refOffset})
	}
	for refOffset, ref := range shifted {
		block.references[refOffset+delta] = ref
		ref.To.referrers[Referrer{
			Block:  block,
			Offset: refOffset + delta,
		}] = struct{}{}
	}
}

// shiftReferrers moves the pointed-at offset (and base) of every
// incoming reference by delta when at or beyond offset. The source
// locations are untouched, so the referrer set is stable.
func (block *Block) shiftReferrers(
	offset int,
	delta int,
) {
	for referrer := range block.referrers {
		ref, ok := referrer.Block.references[referrer.Offset]
		if !ok {
			panic("referrer without matching reference")
		}

		if ref.Offset >= offset {
			ref.Offset += delta
		}
		if ref.Base >= offset {
			ref.Base += delta
		}
		referrer.Block.references[referrer.Offset] = ref
	}
}

// References and referrers.

// SetReference inserts or overwrites the reference at offset. When a
// prior reference existed, its back-entry on the old target is removed
// before the new back-entry is added; no state where the two indices
// disagree is ever observable. Returns true iff a new entry was
// created.
func (block *Block) SetReference(
	offset int,
	ref Reference,
) bool {
	if !ref.IsValid() {
		panic(fmt.Sprintf("invalid reference at offset %d of %s", offset, block))
	}
	if offset < 0 || uint32(offset)+ref.Size > block.size {
		panic(fmt.Sprintf(
			"reference at offset %d size %d overruns %s (size %d)",
			offset,
			ref.Size,
			block,
			block.size))
	}
	// Data blocks may be pointed at beyond their extent (implicitly
	// offset array indexing, loop induction). Code cannot: execution
	// has to land somewhere real.
	if ref.To.blockType == CodeBlock || ref.To.blockType == BasicCodeBlock {
		if ref.Offset < 0 || uint32(ref.Offset) > ref.To.size {
			panic(fmt.Sprintf(
				"reference target offset %d outside of %s",
				ref.Offset,
				ref.To))
		}
	}

	prior, ok := block.references[offset]
	if ok {
		delete(prior.To.referrers, Referrer{Block: block, Offset: offset})
	}

	block.references[offset] = ref
	ref.To.referrers[Referrer{Block: block, Offset: offset}] = struct{}{}

	return !ok
}

func (block *Block) GetReference(offset int) (Reference, bool) {
	ref, ok := block.references[offset]
	return ref, ok
}

// RemoveReference removes the forward entry at offset and the matching
// back-entry on the target. Returns false if no reference existed.
func (block *Block) RemoveReference(offset int) bool {
	ref, ok := block.references[offset]
	if !ok {
		return false
	}

	delete(ref.To.referrers, Referrer{Block: block, Offset: offset})
	delete(block.references, offset)
	return true
}

// RemoveAllReferences severs every outgoing reference. Handy when
// removing a block from the graph.
func (block *Block) RemoveAllReferences() {
	for offset := range block.references {
		block.RemoveReference(offset)
	}
}

func (block *Block) ReferenceCount() int {
	return len(block.references)
}

// References returns a copy of the reference map.
func (block *Block) References() map[int]Reference {
	references := make(map[int]Reference, len(block.references))
	for offset, ref := range block.references {
		references[offset] = ref
	}
	return references
}

// ReferenceOffsets returns the offsets holding references, ascending.
func (block *Block) ReferenceOffsets() []int {
	offsets := make([]int, 0, len(block.references))
	for offset := range block.references {
		offsets = append(offsets, offset)
	}
	sort.Ints(offsets)
	return offsets
}

func (block *Block) ReferrerCount() int {
	return len(block.referrers)
}

// Referrers returns the referrer set as a slice, ordered by source
// block id then source offset for determinism.
func (block *Block) Referrers() []Referrer {
	referrers := make([]Referrer, 0, len(block.referrers))
	for referrer := range block.referrers {
		referrers = append(referrers, referrer)
	}
	sort.Slice(
		referrers,
		func(i int, j int) bool {
			if referrers[i].Block.id != referrers[j].Block.id {
				return referrers[i].Block.id < referrers[j].Block.id
			}
			return referrers[i].Offset < referrers[j].Offset
		})
	return referrers
}

// HasExternalReferrers returns true iff some other block holds a
// reference to this one.
func (block *Block) HasExternalReferrers() bool {
	for referrer := range block.referrers {
		if referrer.Block != block {
			return true
		}
	}
	return false
}

// TransferReferrers rewrites every referrer of this block to target
// newBlock instead, shifting the referenced offset (and base) by
// delta, then leaves this block referrer-free. The transfer is
// all-or-nothing: if any shifted offset would land outside a code
// target, nothing is modified and false is returned.
func (block *Block) TransferReferrers(
	delta int,
	newBlock *Block,
) bool {
	checkBounds := newBlock.blockType == CodeBlock ||
		newBlock.blockType == BasicCodeBlock

	referrers := block.Referrers()

	for _, referrer := range referrers {
		ref, ok := referrer.Block.GetReference(referrer.Offset)
		if !ok {
			panic("referrer without matching reference")
		}

		newOffset := ref.Offset + delta
		newBase := ref.Base + delta
		if checkBounds &&
			(newOffset < 0 || uint32(newOffset) > newBlock.size) {

			return false
		}
		if newBase < 0 || uint32(newBase) >= newBlock.size {
			return false
		}
	}

	for _, referrer := range referrers {
		ref, _ := referrer.Block.GetReference(referrer.Offset)
		referrer.Block.SetReference(
			referrer.Offset,
			Reference{
				Type:   ref.Type,
				Size:   ref.Size,
				To:     newBlock,
				Offset: ref.Offset + delta,
				Base:   ref.Base + delta,
			})
	}

	return true
}
