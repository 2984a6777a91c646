package main

import (
	"fmt"
	"os"

	"github.com/pattyshack/shrike/graph"
)

func main() {
	serializer := &graph.Serializer{
		LoadBlockData: func(
			block *graph.Block,
			dataSize uint32,
		) (
			[]byte,
			error,
		) {
			// No source image at hand; stand in zeroes so graphs saved
			// without data still print.
			return make([]byte, dataSize), nil
		},
	}

	for _, fileName := range os.Args[1:] {
		fmt.Println("=====================")
		fmt.Println("File name:", fileName)
		fmt.Println("---------------------")
		file, err := os.Open(fileName)
		if err != nil {
			fmt.Println("Open error:", err)
			continue
		}

		blockGraph, err := serializer.Load(file)
		file.Close()
		if err != nil {
			fmt.Println("Load error:", err)
			continue
		}

		fmt.Printf(
			"%s: %d blocks, %d sections\n",
			blockGraph.Signature().ModuleID,
			blockGraph.NumBlocks(),
			blockGraph.NumSections())

		dump, err := graph.Dump(blockGraph)
		if err != nil {
			fmt.Println("Dump error:", err)
			continue
		}
		os.Stdout.Write(dump)

		errs := graph.ValidateGraph(blockGraph)
		if len(errs) > 0 {
			fmt.Println("---------------------------")
			fmt.Println("Found", len(errs), "errors:")
			fmt.Println("---------------------------")
			for idx, err := range errs {
				fmt.Printf("error %d: %s\n", idx, err)
			}
		}
	}
}
