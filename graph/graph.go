package graph

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/pattyshack/shrike/addr"
)

// Signature identifies the image a graph was decomposed from. Graphs
// saved without block data use it to locate the matching source image
// when the data is re-attached on load.
type Signature struct {
	ModuleID    uuid.UUID
	BaseAddress addr.AbsoluteAddress
	ModuleSize  uint32
}

func (sig Signature) IsValid() bool {
	return sig.ModuleID != uuid.Nil
}

// BlockGraph owns a set of blocks and sections. Block and section ids
// are monotonic per graph and never reused. The graph is single-writer;
// concurrent mutation is the caller's problem.
type BlockGraph struct {
	signature Signature

	nextBlockID   BlockID
	nextSectionID SectionID

	blocks   map[BlockID]*Block
	sections map[SectionID]*Section
}

func NewBlockGraph() *BlockGraph {
	return &BlockGraph{
		blocks:   map[BlockID]*Block{},
		sections: map[SectionID]*Section{},
	}
}

func (graph *BlockGraph) Signature() Signature {
	return graph.signature
}

func (graph *BlockGraph) SetSignature(signature Signature) {
	graph.signature = signature
}

// AddBlock creates a block owned by this graph.
func (graph *BlockGraph) AddBlock(
	blockType BlockType,
	size uint32,
	name string,
) *Block {
	graph.nextBlockID++
	block := newBlock(graph.nextBlockID, blockType, size, name)
	graph.blocks[block.id] = block
	return block
}

func (graph *BlockGraph) GetBlockByID(id BlockID) (*Block, bool) {
	block, ok := graph.blocks[id]
	return block, ok
}

func (graph *BlockGraph) HasBlock(block *Block) bool {
	owned, ok := graph.blocks[block.id]
	return ok && owned == block
}

func (graph *BlockGraph) NumBlocks() int {
	return len(graph.blocks)
}

// Blocks returns the graph's blocks in id order.
func (graph *BlockGraph) Blocks() []*Block {
	blocks := make([]*Block, 0, len(graph.blocks))
	for _, block := range graph.blocks {
		blocks = append(blocks, block)
	}
	sort.Slice(
		blocks,
		func(i int, j int) bool {
			return blocks[i].id < blocks[j].id
		})
	return blocks
}

// RemoveBlock removes a block that holds no references and has no
// referrers. Returns false, leaving the graph untouched, otherwise.
func (graph *BlockGraph) RemoveBlock(block *Block) bool {
	owned, ok := graph.blocks[block.id]
	if !ok || owned != block {
		return false
	}
	return graph.RemoveBlockByID(block.id)
}

func (graph *BlockGraph) RemoveBlockByID(id BlockID) bool {
	block, ok := graph.blocks[id]
	if !ok {
		return false
	}
	if len(block.references) > 0 || len(block.referrers) > 0 {
		return false
	}

	delete(graph.blocks, id)
	return true
}

// AddSection creates a section with the given name and
// characteristics. Names are not required to be unique here; use
// FindOrAddSection for idempotence.
func (graph *BlockGraph) AddSection(
	name string,
	characteristics uint32,
) *Section {
	graph.nextSectionID++
	section := newSection(graph.nextSectionID, name, characteristics)
	graph.sections[section.id] = section
	return section
}

// FindSection returns the section with the given name, if any. When
// multiple sections share the name the lowest id wins.
func (graph *BlockGraph) FindSection(name string) (*Section, bool) {
	var found *Section
	for _, section := range graph.sections {
		if section.name != name {
			continue
		}
		if found == nil || section.id < found.id {
			found = section
		}
	}
	return found, found != nil
}

// FindOrAddSection returns the existing section with the given name,
// adding the characteristics to it, or creates the section if none
// exists.
func (graph *BlockGraph) FindOrAddSection(
	name string,
	characteristics uint32,
) *Section {
	section, ok := graph.FindSection(name)
	if ok {
		section.SetCharacteristic(characteristics)
		return section
	}
	return graph.AddSection(name, characteristics)
}

func (graph *BlockGraph) GetSectionByID(id SectionID) (*Section, bool) {
	section, ok := graph.sections[id]
	return section, ok
}

func (graph *BlockGraph) NumSections() int {
	return len(graph.sections)
}

// Sections returns the graph's sections in id order.
func (graph *BlockGraph) Sections() []*Section {
	sections := make([]*Section, 0, len(graph.sections))
	for _, section := range graph.sections {
		sections = append(sections, section)
	}
	sort.Slice(
		sections,
		func(i int, j int) bool {
			return sections[i].id < sections[j].id
		})
	return sections
}

// RemoveSection removes the section. Blocks assigned to it keep their
// now dangling section id; the validator flags those.
func (graph *BlockGraph) RemoveSection(section *Section) bool {
	owned, ok := graph.sections[section.id]
	if !ok || owned != section {
		return false
	}
	delete(graph.sections, section.id)
	return true
}

func (graph *BlockGraph) RemoveSectionByID(id SectionID) bool {
	_, ok := graph.sections[id]
	if ok {
		delete(graph.sections, id)
	}
	return ok
}

func (graph *BlockGraph) String() string {
	return fmt.Sprintf(
		"block-graph (%d blocks, %d sections)",
		len(graph.blocks),
		len(graph.sections))
}
