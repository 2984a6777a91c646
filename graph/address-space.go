package graph

import (
	"fmt"

	"github.com/pattyshack/shrike/addr"
)

// AddressSpace binds a graph's blocks into one concrete,
// non-overlapping layout. A graph's blocks may be placed in several
// independent address spaces at once (original layout vs rewritten
// layout); the space holds non-owning associations and must never
// outlive its graph.
//
// The reverse map is keyed by block id rather than pointer so the
// space stays valid under any future block storage scheme.
type AddressSpace struct {
	graph *BlockGraph

	space          *addr.Space[addr.RelativeAddress, *Block]
	blockAddresses map[BlockID]addr.RelativeAddress
}

func NewAddressSpace(graph *BlockGraph) *AddressSpace {
	return &AddressSpace{
		graph:          graph,
		space:          addr.NewSpace[addr.RelativeAddress, *Block](),
		blockAddresses: map[BlockID]addr.RelativeAddress{},
	}
}

func (as *AddressSpace) Graph() *BlockGraph {
	return as.graph
}

func (as *AddressSpace) Len() int {
	return as.space.Len()
}

// Entries returns the placed blocks in address order. The caller must
// not modify the returned slice.
func (as *AddressSpace) Entries() []addr.Entry[addr.RelativeAddress, *Block] {
	return as.space.Entries()
}

// AddBlock allocates a block in the owning graph and places it at
// address. On collision the block is rolled back out of the graph and
// nothing is modified.
func (as *AddressSpace) AddBlock(
	blockType BlockType,
	address addr.RelativeAddress,
	size uint32,
	name string,
) (
	*Block,
	bool,
) {
	block := as.graph.AddBlock(blockType, size, name)
	if !as.InsertBlock(address, block) {
		if !as.graph.RemoveBlock(block) {
			panic("should never happen")
		}
		return nil, false
	}
	return block, true
}

// InsertBlock places an already-allocated block at address. Fails
// without mutation on collision or if the block is already placed in
// this space.
func (as *AddressSpace) InsertBlock(
	address addr.RelativeAddress,
	block *Block,
) bool {
	if !as.graph.HasBlock(block) {
		panic(fmt.Sprintf("%s does not belong to this graph", block))
	}

	_, placed := as.blockAddresses[block.id]
	if placed {
		return false
	}

	if !as.space.Insert(addr.NewRange(address, block.size), block) {
		return false
	}

	as.blockAddresses[block.id] = address
	block.SetAddr(address)
	return true
}

// RemoveBlock removes the block's placement from this space. The block
// stays in the graph.
func (as *AddressSpace) RemoveBlock(block *Block) bool {
	address, ok := as.blockAddresses[block.id]
	if !ok {
		return false
	}

	if !as.space.Remove(addr.NewRange(address, block.size)) {
		panic("should never happen")
	}
	delete(as.blockAddresses, block.id)
	return true
}

// GetBlockByAddress returns the block whose range contains address.
func (as *AddressSpace) GetBlockByAddress(
	address addr.RelativeAddress,
) (
	*Block,
	bool,
) {
	return as.GetContainingBlock(address, 1)
}

// GetContainingBlock returns the block whose range fully contains
// [address, address+size).
func (as *AddressSpace) GetContainingBlock(
	address addr.RelativeAddress,
	size uint32,
) (
	*Block,
	bool,
) {
	entry, ok := as.space.FindContaining(addr.NewRange(address, size))
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

// GetFirstIntersectingBlock returns the lowest-addressed block
// overlapping [address, address+size).
func (as *AddressSpace) GetFirstIntersectingBlock(
	address addr.RelativeAddress,
	size uint32,
) (
	*Block,
	bool,
) {
	entry, ok := as.space.FindFirstIntersection(addr.NewRange(address, size))
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

// GetIntersectingBlocks returns every block overlapping
// [address, address+size), in address order.
func (as *AddressSpace) GetIntersectingBlocks(
	address addr.RelativeAddress,
	size uint32,
) []*Block {
	entries := as.space.Intersecting(addr.NewRange(address, size))
	blocks := make([]*Block, 0, len(entries))
	for _, entry := range entries {
		blocks = append(blocks, entry.Value)
	}
	return blocks
}

func (as *AddressSpace) ContainsBlock(block *Block) bool {
	_, ok := as.blockAddresses[block.id]
	return ok
}

// GetAddressOf returns the block's placement address in this
// particular space. The block may still be placed elsewhere.
func (as *AddressSpace) GetAddressOf(
	block *Block,
) (
	addr.RelativeAddress,
	bool,
) {
	address, ok := as.blockAddresses[block.id]
	if !ok {
		return addr.InvalidRelativeAddress, false
	}
	return address, true
}

// MergeIntersectingBlocks unifies every block intersecting r into one
// block covering at least r, extended to fully contain each touched
// block. Labels, references, referrers, data and source ranges are
// conserved across the merge; the absorbed blocks are removed from the
// graph.
//
// No intersecting block is a no-op returning (nil, nil). A single
// intersecting block already containing r is returned unchanged.
// Mixing block types or sections is rejected with an error before any
// mutation.
func (as *AddressSpace) MergeIntersectingBlocks(
	r addr.Range[addr.RelativeAddress],
) (
	*Block,
	error,
) {
	intersecting := as.space.Intersecting(r)
	if len(intersecting) == 0 {
		return nil, nil
	}

	if len(intersecting) == 1 && intersecting[0].Range.Contains(r) {
		return intersecting[0].Value, nil
	}

	// Copied before mutation; Intersecting aliases the index storage.
	entries := make(
		[]addr.Entry[addr.RelativeAddress, *Block],
		len(intersecting))
	copy(entries, intersecting)

	first := entries[0].Value
	for _, entry := range entries[1:] {
		if entry.Value.blockType != first.blockType {
			return nil, fmt.Errorf(
				"cannot merge %s into %s: mismatched block types",
				entry.Value,
				first)
		}
		if entry.Value.section != first.section {
			return nil, fmt.Errorf(
				"cannot merge %s into %s: mismatched sections",
				entry.Value,
				first)
		}
	}

	start := r.Start()
	if entries[0].Range.Start() < start {
		start = entries[0].Range.Start()
	}
	end := uint64(r.Start()) + uint64(r.Size())
	lastEnd := uint64(entries[len(entries)-1].Range.Start()) +
		uint64(entries[len(entries)-1].Range.Size())
	if lastEnd > end {
		end = lastEnd
	}
	mergedSize := uint32(end - uint64(start))

	hasData := false
	for _, entry := range entries {
		as.RemoveBlock(entry.Value)
		if entry.Value.DataSize() > 0 {
			hasData = true
		}
	}

	merged := as.graph.AddBlock(first.blockType, mergedSize, first.name)
	merged.SetSection(first.section)
	merged.SetAlignment(first.alignment)
	if !as.InsertBlock(start, merged) {
		panic("should never happen")
	}

	var data []byte
	if hasData {
		// Gaps between the absorbed blocks' contents stay zero.
		data = merged.AllocateData(mergedSize)
	}

	for _, entry := range entries {
		block := entry.Value
		offset := int(entry.Range.Start().Diff(start))

		merged.SetAttributes(merged.attributes | block.attributes)

		if hasData {
			copy(data[offset:], block.data)
		}

		// Absorbed non-code blocks keep their identity as a data label
		// at their old start.
		if block.blockType != CodeBlock && block.name != "" {
			merged.SetLabel(offset, NewLabel(block.name, DataLabel))
		}

		for _, labelOffset := range block.LabelOffsets() {
			label := block.labels[labelOffset]
			merged.SetLabel(offset+labelOffset, label)
		}

		for _, pair := range block.sourceRanges.RangePairs() {
			pushed := merged.sourceRanges.Push(
				DataRange{
					Offset: offset + pair.Data.Offset,
					Size:   pair.Data.Size,
				},
				pair.Source)
			if !pushed {
				panic("should never happen")
			}
		}

		for _, refOffset := range block.ReferenceOffsets() {
			ref := block.references[refOffset]
			block.RemoveReference(refOffset)
			merged.SetReference(offset+refOffset, ref)
		}

		if !block.TransferReferrers(offset, merged) {
			panic("should never happen")
		}

		if len(block.references) > 0 || len(block.referrers) > 0 {
			panic("should never happen")
		}
		if !as.graph.RemoveBlock(block) {
			panic("should never happen")
		}
	}

	return merged, nil
}
