package graph

import (
	"fmt"
	"strings"
)

type LabelAttributes uint32

const (
	// The label marks an entry point in a code block, i.e. a location
	// where disassembly can usefully commence.
	CodeLabel = LabelAttributes(1 << iota)

	// Start and end of the debuggable portion of a code block.
	DebugStartLabel
	DebugEndLabel

	// Start and end of an embedded scope in a code block.
	ScopeStartLabel
	ScopeEndLabel

	// Location of a call site.
	CallSiteLabel

	// Start of a jump table. The extent runs to the next label or the
	// end of the block. Implies DataLabel.
	JumpTableLabel

	// Start of a case table. Same extent rule as jump tables. Implies
	// DataLabel.
	CaseTableLabel

	// The label originated from a data symbol.
	DataLabel
)

var labelAttributeNames = map[LabelAttributes]string{
	CodeLabel:       "code",
	DebugStartLabel: "debug-start",
	DebugEndLabel:   "debug-end",
	ScopeStartLabel: "scope-start",
	ScopeEndLabel:   "scope-end",
	CallSiteLabel:   "call-site",
	JumpTableLabel:  "jump-table",
	CaseTableLabel:  "case-table",
	DataLabel:       "data",
}

func (attributes LabelAttributes) String() string {
	names := []string{}
	for bit := LabelAttributes(1); bit < DataLabel<<1; bit <<= 1 {
		if attributes&bit != 0 {
			names = append(names, labelAttributeNames[bit])
		}
	}
	return strings.Join(names, "|")
}

// AreValidLabelAttributes checks attribute combinations: a label must
// carry at least one attribute, cannot be both code and data, and
// jump/case table labels must also be data labels.
func AreValidLabelAttributes(attributes LabelAttributes) bool {
	if attributes == 0 {
		return false
	}
	if attributes&CodeLabel != 0 && attributes&DataLabel != 0 {
		return false
	}
	if attributes&(JumpTableLabel|CaseTableLabel) != 0 &&
		attributes&DataLabel == 0 {

		return false
	}
	return true
}

// Label marks the beginning (or end) of a sub-region within a block,
// e.g. an instruction boundary or the start of embedded data.
type Label struct {
	Name       string
	Attributes LabelAttributes
}

func NewLabel(
	name string,
	attributes LabelAttributes,
) Label {
	return Label{
		Name:       name,
		Attributes: attributes,
	}
}

func (label Label) HasAttributes(attributes LabelAttributes) bool {
	return label.Attributes&attributes == attributes
}

func (label Label) HasAnyAttributes(attributes LabelAttributes) bool {
	return label.Attributes&attributes != 0
}

func (label Label) IsValid() bool {
	return AreValidLabelAttributes(label.Attributes)
}

func (label Label) String() string {
	return fmt.Sprintf("%s (%s)", label.Name, label.Attributes)
}
