package graph

import (
	"fmt"
)

// ValidateBlock checks the block's internal consistency and its half of
// the reference/referrer pairing. graph may be nil when the block is
// validated in isolation.
func ValidateBlock(
	graph *BlockGraph,
	block *Block,
) []error {
	errs := []error{}

	if !IsPowerOfTwo(block.alignment) {
		errs = append(errs, fmt.Errorf(
			"%s: alignment %d is not a power of two",
			block,
			block.alignment))
	}

	if block.DataSize() > block.size {
		errs = append(errs, fmt.Errorf(
			"%s: data size %d exceeds block size %d",
			block,
			block.DataSize(),
			block.size))
	}

	if graph != nil && block.section != InvalidSectionID {
		_, ok := graph.GetSectionByID(block.section)
		if !ok {
			errs = append(errs, fmt.Errorf(
				"%s: dangling section id %d",
				block,
				block.section))
		}
	}

	for offset, label := range block.labels {
		if offset < 0 || uint32(offset) > block.size {
			errs = append(errs, fmt.Errorf(
				"%s: label %s at offset %d out of bounds",
				block,
				label,
				offset))
		}
		if !label.IsValid() {
			errs = append(errs, fmt.Errorf(
				"%s: label %s at offset %d has invalid attributes",
				block,
				label,
				offset))
		}
	}

	for offset, ref := range block.references {
		if !ref.IsValid() {
			errs = append(errs, fmt.Errorf(
				"%s: invalid reference at offset %d",
				block,
				offset))
			continue
		}
		if offset < 0 || uint32(offset)+ref.Size > block.size {
			errs = append(errs, fmt.Errorf(
				"%s: reference at offset %d overruns the block",
				block,
				offset))
		}
		if graph != nil && !graph.HasBlock(ref.To) {
			errs = append(errs, fmt.Errorf(
				"%s: reference at offset %d targets %s outside the graph",
				block,
				offset,
				ref.To))
		}

		_, ok := ref.To.referrers[Referrer{Block: block, Offset: offset}]
		if !ok {
			errs = append(errs, fmt.Errorf(
				"%s: reference at offset %d has no back-entry on %s",
				block,
				offset,
				ref.To))
		}
	}

	for referrer := range block.referrers {
		ref, ok := referrer.Block.references[referrer.Offset]
		if !ok || ref.To != block {
			errs = append(errs, fmt.Errorf(
				"%s: referrer (%s, %d) has no matching reference",
				block,
				referrer.Block,
				referrer.Offset))
		}
	}

	return errs
}

// ValidateGraph checks every block in the graph.
func ValidateGraph(graph *BlockGraph) []error {
	errs := []error{}
	for _, block := range graph.Blocks() {
		errs = append(errs, ValidateBlock(graph, block)...)
	}
	return errs
}

// ValidateAddressSpace checks that the interval index and the reverse
// map agree, and that every placed block belongs to the space's graph.
// The index itself guarantees non-overlap.
func ValidateAddressSpace(as *AddressSpace) []error {
	errs := []error{}

	for _, entry := range as.Entries() {
		block := entry.Value

		if !as.graph.HasBlock(block) {
			errs = append(errs, fmt.Errorf(
				"%s placed at %s but not in the graph",
				block,
				entry.Range))
		}

		if entry.Range.Size() != block.Size() {
			errs = append(errs, fmt.Errorf(
				"%s placed with range size %d but block size %d",
				block,
				entry.Range.Size(),
				block.Size()))
		}

		address, ok := as.blockAddresses[block.ID()]
		if !ok {
			errs = append(errs, fmt.Errorf(
				"%s placed at %s but missing from the reverse map",
				block,
				entry.Range))
		} else if address != entry.Range.Start() {
			errs = append(errs, fmt.Errorf(
				"%s placed at %s but reverse-mapped to %s",
				block,
				entry.Range,
				address))
		}
	}

	if len(as.blockAddresses) != as.Len() {
		errs = append(errs, fmt.Errorf(
			"reverse map has %d entries, index has %d",
			len(as.blockAddresses),
			as.Len()))
	}

	return errs
}
