package transform

import (
	"fmt"

	"github.com/pattyshack/shrike/graph"
)

// OrderedSection is one section's linear block sequence. A nil
// underlying section collects the blocks not assigned to any section.
type OrderedSection struct {
	section *graph.Section

	blocks []*graph.Block
}

func (ordered *OrderedSection) Section() *graph.Section {
	return ordered.section
}

func (ordered *OrderedSection) SectionID() graph.SectionID {
	if ordered.section == nil {
		return graph.InvalidSectionID
	}
	return ordered.section.ID()
}

// Blocks returns the section's blocks in their current order. The
// caller must not modify the returned slice.
func (ordered *OrderedSection) Blocks() []*graph.Block {
	return ordered.blocks
}

func (ordered *OrderedSection) remove(block *graph.Block) bool {
	for idx, candidate := range ordered.blocks {
		if candidate == block {
			ordered.blocks = append(
				ordered.blocks[:idx],
				ordered.blocks[idx+1:]...)
			return true
		}
	}
	return false
}

// OrderedBlockGraph is a sequencing overlay over a graph: an ordered
// list of sections, each holding an ordered list of the graph's
// blocks. Orderers rearrange the overlay; block content is never
// touched.
type OrderedBlockGraph struct {
	blockGraph *graph.BlockGraph

	sections     []*OrderedSection
	bySectionID  map[graph.SectionID]*OrderedSection
	blockSection map[graph.BlockID]*OrderedSection
}

// NewOrderedBlockGraph seeds the overlay with sections in id order and
// each section's blocks in block id order.
func NewOrderedBlockGraph(blockGraph *graph.BlockGraph) *OrderedBlockGraph {
	ordered := &OrderedBlockGraph{
		blockGraph:   blockGraph,
		bySectionID:  map[graph.SectionID]*OrderedSection{},
		blockSection: map[graph.BlockID]*OrderedSection{},
	}

	unassigned := &OrderedSection{}
	ordered.sections = append(ordered.sections, unassigned)
	ordered.bySectionID[graph.InvalidSectionID] = unassigned

	for _, section := range blockGraph.Sections() {
		orderedSection := &OrderedSection{
			section: section,
		}
		ordered.sections = append(ordered.sections, orderedSection)
		ordered.bySectionID[section.ID()] = orderedSection
	}

	for _, block := range blockGraph.Blocks() {
		orderedSection, ok := ordered.bySectionID[block.Section()]
		if !ok {
			// Dangling section id; sequence with the unassigned blocks.
			orderedSection = unassigned
		}
		orderedSection.blocks = append(orderedSection.blocks, block)
		ordered.blockSection[block.ID()] = orderedSection
	}

	return ordered
}

func (ordered *OrderedBlockGraph) Graph() *graph.BlockGraph {
	return ordered.blockGraph
}

// Sections returns the sections in their current order, the unassigned
// pseudo-section first. The caller must not modify the returned slice.
func (ordered *OrderedBlockGraph) Sections() []*OrderedSection {
	return ordered.sections
}

func (ordered *OrderedBlockGraph) GetSection(
	id graph.SectionID,
) (
	*OrderedSection,
	bool,
) {
	section, ok := ordered.bySectionID[id]
	return section, ok
}

// OrderedBlocks returns every block in section order, then block order
// within each section.
func (ordered *OrderedBlockGraph) OrderedBlocks() []*graph.Block {
	blocks := []*graph.Block{}
	for _, section := range ordered.sections {
		blocks = append(blocks, section.blocks...)
	}
	return blocks
}

// PlaceAtHead moves the block to the front of the section's sequence,
// reassigning the block's section id. Blocks created after the overlay
// was built are adopted on first placement.
func (ordered *OrderedBlockGraph) PlaceAtHead(
	section *OrderedSection,
	block *graph.Block,
) {
	ordered.detach(block)
	section.blocks = append([]*graph.Block{block}, section.blocks...)
	ordered.attach(section, block)
}

// PlaceAtTail moves the block to the back of the section's sequence,
// reassigning the block's section id.
func (ordered *OrderedBlockGraph) PlaceAtTail(
	section *OrderedSection,
	block *graph.Block,
) {
	ordered.detach(block)
	section.blocks = append(section.blocks, block)
	ordered.attach(section, block)
}

func (ordered *OrderedBlockGraph) detach(block *graph.Block) {
	current, ok := ordered.blockSection[block.ID()]
	if !ok {
		return
	}
	if !current.remove(block) {
		panic("should never happen")
	}
	delete(ordered.blockSection, block.ID())
}

func (ordered *OrderedBlockGraph) attach(
	section *OrderedSection,
	block *graph.Block,
) {
	ordered.blockSection[block.ID()] = section
	block.SetSection(section.SectionID())
}

// PlaceSectionAtHead moves the section to the front of the section
// order, after the unassigned pseudo-section.
func (ordered *OrderedBlockGraph) PlaceSectionAtHead(
	section *OrderedSection,
) {
	ordered.removeSection(section)
	updated := make([]*OrderedSection, 0, len(ordered.sections)+1)
	updated = append(updated, ordered.sections[0])
	updated = append(updated, section)
	updated = append(updated, ordered.sections[1:]...)
	ordered.sections = updated
}

// PlaceSectionAtTail moves the section to the back of the section
// order.
func (ordered *OrderedBlockGraph) PlaceSectionAtTail(
	section *OrderedSection,
) {
	ordered.removeSection(section)
	ordered.sections = append(ordered.sections, section)
}

func (ordered *OrderedBlockGraph) removeSection(section *OrderedSection) {
	if section == ordered.sections[0] {
		panic("cannot reorder the unassigned pseudo-section")
	}
	for idx, candidate := range ordered.sections {
		if candidate == section {
			ordered.sections = append(
				ordered.sections[:idx],
				ordered.sections[idx+1:]...)
			return
		}
	}
	panic("section not part of this ordering")
}

// Validate checks that the overlay sequences every graph block exactly
// once and sequences nothing else.
func (ordered *OrderedBlockGraph) Validate() []error {
	errs := []error{}

	sequenced := map[graph.BlockID]struct{}{}
	for _, section := range ordered.sections {
		for _, block := range section.blocks {
			_, seen := sequenced[block.ID()]
			if seen {
				errs = append(errs, fmt.Errorf(
					"%s sequenced more than once",
					block))
				continue
			}
			sequenced[block.ID()] = struct{}{}

			if !ordered.blockGraph.HasBlock(block) {
				errs = append(errs, fmt.Errorf(
					"%s sequenced but not in the graph",
					block))
			}
		}
	}

	for _, block := range ordered.blockGraph.Blocks() {
		_, seen := sequenced[block.ID()]
		if !seen {
			errs = append(errs, fmt.Errorf("%s is not sequenced", block))
		}
	}

	return errs
}
