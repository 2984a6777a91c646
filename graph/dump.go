package graph

import (
	"gopkg.in/yaml.v3"
)

// Dump types are a yaml-friendly projection of a graph for debugging
// and tooling. Blocks refer to each other by id, never by pointer.

type SectionDump struct {
	ID              SectionID `yaml:"id"`
	Name            string    `yaml:"name"`
	Characteristics uint32    `yaml:"characteristics"`
}

type ReferenceDump struct {
	SourceOffset int    `yaml:"source_offset"`
	Type         string `yaml:"type"`
	Size         uint32 `yaml:"size"`
	To           BlockID `yaml:"to"`
	Offset       int    `yaml:"offset"`
	Base         int    `yaml:"base,omitempty"`
}

type LabelDump struct {
	Offset     int    `yaml:"offset"`
	Name       string `yaml:"name"`
	Attributes string `yaml:"attributes"`
}

type BlockDump struct {
	ID         BlockID   `yaml:"id"`
	Type       string    `yaml:"type"`
	Name       string    `yaml:"name"`
	Size       uint32    `yaml:"size"`
	Alignment  uint32    `yaml:"alignment,omitempty"`
	Address    string    `yaml:"address,omitempty"`
	Section    SectionID `yaml:"section,omitempty"`
	Attributes uint32    `yaml:"attributes,omitempty"`
	DataSize   uint32    `yaml:"data_size,omitempty"`

	Labels     []LabelDump     `yaml:"labels,omitempty"`
	References []ReferenceDump `yaml:"references,omitempty"`
}

type GraphDump struct {
	ModuleID string        `yaml:"module_id,omitempty"`
	Sections []SectionDump `yaml:"sections,omitempty"`
	Blocks   []BlockDump   `yaml:"blocks"`
}

func NewGraphDump(graph *BlockGraph) GraphDump {
	dump := GraphDump{}

	if graph.signature.IsValid() {
		dump.ModuleID = graph.signature.ModuleID.String()
	}

	for _, section := range graph.Sections() {
		dump.Sections = append(dump.Sections, SectionDump{
			ID:              section.ID(),
			Name:            section.Name(),
			Characteristics: section.Characteristics(),
		})
	}

	for _, block := range graph.Blocks() {
		blockDump := BlockDump{
			ID:         block.ID(),
			Type:       block.Type().String(),
			Name:       block.Name(),
			Size:       block.Size(),
			Alignment:  block.Alignment(),
			Attributes: uint32(block.Attributes()),
			DataSize:   block.DataSize(),
		}
		if block.Addr().IsValid() {
			blockDump.Address = block.Addr().String()
		}
		if block.Section() != InvalidSectionID {
			blockDump.Section = block.Section()
		}

		for _, offset := range block.LabelOffsets() {
			label, _ := block.GetLabel(offset)
			blockDump.Labels = append(blockDump.Labels, LabelDump{
				Offset:     offset,
				Name:       label.Name,
				Attributes: label.Attributes.String(),
			})
		}

		for _, offset := range block.ReferenceOffsets() {
			ref, _ := block.GetReference(offset)
			refDump := ReferenceDump{
				SourceOffset: offset,
				Type:         ref.Type.String(),
				Size:         ref.Size,
				To:           ref.To.ID(),
				Offset:       ref.Offset,
			}
			if !ref.IsDirect() {
				refDump.Base = ref.Base
			}
			blockDump.References = append(blockDump.References, refDump)
		}

		dump.Blocks = append(dump.Blocks, blockDump)
	}

	return dump
}

// Dump renders the graph as yaml.
func Dump(graph *BlockGraph) ([]byte, error) {
	return yaml.Marshal(NewGraphDump(graph))
}
