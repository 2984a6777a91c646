package graph

import (
	"testing"
)

func TestLabelAttributeValidity(t *testing.T) {
	cases := []struct {
		attributes LabelAttributes
		valid      bool
	}{
		{0, false},
		{CodeLabel, true},
		{DataLabel, true},
		{CodeLabel | DataLabel, false},
		{CodeLabel | DebugStartLabel, true},
		{JumpTableLabel, false},
		{JumpTableLabel | DataLabel, true},
		{CaseTableLabel, false},
		{CaseTableLabel | DataLabel, true},
		{JumpTableLabel | CaseTableLabel | DataLabel, true},
	}

	for _, testCase := range cases {
		valid := AreValidLabelAttributes(testCase.attributes)
		if valid != testCase.valid {
			t.Errorf(
				"attributes %s: got valid=%v, want %v",
				testCase.attributes,
				valid,
				testCase.valid)
		}
	}
}

func TestLabelAttributeString(t *testing.T) {
	attributes := CodeLabel | CallSiteLabel
	str := attributes.String()
	if str != "code|call-site" {
		t.Errorf("unexpected string %q", str)
	}
}

func TestLabelHasAttributes(t *testing.T) {
	label := NewLabel("switch", DataLabel|JumpTableLabel)

	if !label.HasAttributes(DataLabel | JumpTableLabel) {
		t.Error("expected both attributes present")
	}
	if label.HasAttributes(DataLabel | CaseTableLabel) {
		t.Error("HasAttributes must require every attribute")
	}
	if !label.HasAnyAttributes(CaseTableLabel | JumpTableLabel) {
		t.Error("HasAnyAttributes must accept a partial match")
	}
	if label.HasAnyAttributes(CodeLabel) {
		t.Error("HasAnyAttributes must reject a full miss")
	}
}
