package transform

import (
	"fmt"

	"github.com/pattyshack/gt/parseutil"

	"github.com/pattyshack/shrike/graph"
)

// Transform rewrites a graph. It may add, remove and modify blocks and
// references; it may rebuild the entry block in place, but the entry
// block's id must still resolve afterwards.
type Transform interface {
	Name() string

	TransformBlockGraph(
		blockGraph *graph.BlockGraph,
		entry *graph.Block,
	) error
}

// Orderer sequences a graph's blocks per section. Orderers never
// mutate block content.
type Orderer interface {
	Name() string

	OrderBlockGraph(
		ordered *OrderedBlockGraph,
		entry *graph.Block,
	) error
}

// Builder lays an ordered graph out into final image bytes. Image
// formats live outside this module; only the contract does not.
type Builder interface {
	Name() string

	BuildImage(ordered *OrderedBlockGraph) error
}

// ApplyTransform runs the transform and then re-checks the graph: the
// entry block must still resolve by id, and the graph must still
// validate. All failures accumulate in the emitter.
func ApplyTransform(
	transform Transform,
	blockGraph *graph.BlockGraph,
	entry *graph.Block,
	emitter *parseutil.Emitter,
) bool {
	entryID := entry.ID()

	err := transform.TransformBlockGraph(blockGraph, entry)
	if err != nil {
		emitter.EmitErrors(fmt.Errorf(
			"transform %s failed: %w",
			transform.Name(),
			err))
		return false
	}

	_, ok := blockGraph.GetBlockByID(entryID)
	if !ok {
		emitter.EmitErrors(fmt.Errorf(
			"transform %s removed the entry block (id %d)",
			transform.Name(),
			entryID))
		return false
	}

	errs := graph.ValidateGraph(blockGraph)
	if len(errs) > 0 {
		emitter.EmitErrors(fmt.Errorf(
			"transform %s left the graph inconsistent",
			transform.Name()))
		emitter.EmitErrors(errs...)
		return false
	}

	return true
}

// ApplyOrderer runs the orderer and verifies every graph block is
// still sequenced exactly once.
func ApplyOrderer(
	orderer Orderer,
	ordered *OrderedBlockGraph,
	entry *graph.Block,
	emitter *parseutil.Emitter,
) bool {
	err := orderer.OrderBlockGraph(ordered, entry)
	if err != nil {
		emitter.EmitErrors(fmt.Errorf(
			"orderer %s failed: %w",
			orderer.Name(),
			err))
		return false
	}

	errs := ordered.Validate()
	if len(errs) > 0 {
		emitter.EmitErrors(fmt.Errorf(
			"orderer %s left the ordering inconsistent",
			orderer.Name()))
		emitter.EmitErrors(errs...)
		return false
	}

	return true
}
