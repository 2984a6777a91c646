package graph

import (
	"fmt"
)

type SectionID uint32

const InvalidSectionID = SectionID(0xFFFFFFFF)

// OS-level section characteristics, a bitmask of IMAGE_SCN_* values.
const (
	SectionContainsCode              = uint32(0x00000020)
	SectionContainsInitializedData   = uint32(0x00000040)
	SectionContainsUninitializedData = uint32(0x00000080)
	SectionIsDiscardable             = uint32(0x02000000)
	SectionIsNotCached               = uint32(0x04000000)
	SectionIsNotPaged                = uint32(0x08000000)
	SectionIsShared                  = uint32(0x10000000)
	SectionIsExecutable              = uint32(0x20000000)
	SectionIsReadable                = uint32(0x40000000)
	SectionIsWritable                = uint32(0x80000000)
)

// Section is a named group of blocks sharing OS-level memory
// characteristics. The graph keeps only this minimal knowledge of
// sections; layout is the image writer's business.
type Section struct {
	id              SectionID
	name            string
	characteristics uint32
}

func newSection(
	id SectionID,
	name string,
	characteristics uint32,
) *Section {
	if name == "" {
		panic("section name must not be empty")
	}

	return &Section{
		id:              id,
		name:            name,
		characteristics: characteristics,
	}
}

func (section *Section) ID() SectionID {
	return section.id
}

func (section *Section) Name() string {
	return section.name
}

// SetName rejects empty names.
func (section *Section) SetName(name string) bool {
	if name == "" {
		return false
	}
	section.name = name
	return true
}

func (section *Section) Characteristics() uint32 {
	return section.characteristics
}

func (section *Section) SetCharacteristics(characteristics uint32) {
	section.characteristics = characteristics
}

func (section *Section) SetCharacteristic(characteristic uint32) {
	section.characteristics |= characteristic
}

func (section *Section) ClearCharacteristic(characteristic uint32) {
	section.characteristics &^= characteristic
}

func (section *Section) String() string {
	return fmt.Sprintf(
		"section %d %s (0x%08x)",
		section.id,
		section.name,
		section.characteristics)
}
