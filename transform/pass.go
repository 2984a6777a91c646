package transform

import (
	"sync"

	"github.com/pattyshack/shrike/graph"
)

type Pass[T any] interface {
	Process(T)
}

// Process runs a sequence of pass groups over target. Passes within a
// group run concurrently; groups run in order. Graphs are
// single-writer, so only read-only analysis passes belong in a group of
// more than one.
func Process[T any](
	target T,
	passes [][]Pass[T], // sequence of parallelizable passes
	shouldEarlyExit func() bool, // optional
) {
	for _, parallelPasses := range passes {
		wg := sync.WaitGroup{}
		wg.Add(len(parallelPasses))
		for _, pass := range parallelPasses {
			go func(pass Pass[T]) {
				pass.Process(target)
				wg.Done()
			}(pass)
		}

		wg.Wait()

		if shouldEarlyExit != nil && shouldEarlyExit() {
			return
		}
	}
}

// ParallelProcess fans a read-only per-block analysis out over the
// blocks. process must not mutate the graph.
func ParallelProcess(
	blocks []*graph.Block,
	process func(*graph.Block),
) {
	wg := sync.WaitGroup{}
	wg.Add(len(blocks))
	for _, block := range blocks {
		go func(block *graph.Block) {
			process(block)
			wg.Done()
		}(block)
	}
	wg.Wait()
}
