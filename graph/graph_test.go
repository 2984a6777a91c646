package graph

import (
	"testing"

	"github.com/google/uuid"
)

func TestBlockIDsAreMonotonic(t *testing.T) {
	g := NewBlockGraph()

	first := g.AddBlock(CodeBlock, 0x10, "first")
	second := g.AddBlock(DataBlock, 0x10, "second")
	if second.ID() <= first.ID() {
		t.Errorf("ids not monotonic: %d then %d", first.ID(), second.ID())
	}

	if !g.RemoveBlock(first) {
		t.Fatal("expected removal to succeed")
	}

	// Removed ids are never reused.
	third := g.AddBlock(CodeBlock, 0x10, "third")
	if third.ID() <= second.ID() {
		t.Errorf("id reused: %d after %d", third.ID(), second.ID())
	}
}

func TestGetBlockByID(t *testing.T) {
	g := NewBlockGraph()
	block := g.AddBlock(CodeBlock, 0x10, "block")

	found, ok := g.GetBlockByID(block.ID())
	if !ok || found != block {
		t.Error("block not found by id")
	}

	_, ok = g.GetBlockByID(block.ID() + 100)
	if ok {
		t.Error("found a block for an unknown id")
	}
}

func TestRemoveBlockPreconditions(t *testing.T) {
	g := NewBlockGraph()
	code := g.AddBlock(CodeBlock, 0x10, "code")
	data := g.AddBlock(DataBlock, 0x10, "data")

	code.SetReference(0, NewReference(AbsoluteRef, 4, data, 0))

	if g.RemoveBlock(code) {
		t.Error("removed a block that still holds references")
	}
	if g.RemoveBlock(data) {
		t.Error("removed a block that still has referrers")
	}

	code.RemoveReference(0)

	if !g.RemoveBlock(code) || !g.RemoveBlock(data) {
		t.Error("expected removal of disentangled blocks to succeed")
	}
	if g.NumBlocks() != 0 {
		t.Errorf("unexpected block count %d", g.NumBlocks())
	}
}

func TestRemoveBlockFromWrongGraph(t *testing.T) {
	g := NewBlockGraph()
	other := NewBlockGraph()
	block := other.AddBlock(CodeBlock, 0x10, "foreign")

	if g.RemoveBlock(block) {
		t.Error("removed a block belonging to another graph")
	}
}

func TestFindOrAddSectionIsIdempotent(t *testing.T) {
	g := NewBlockGraph()

	text := g.FindOrAddSection(".text", SectionContainsCode)
	again := g.FindOrAddSection(".text", SectionIsExecutable)

	if text != again {
		t.Fatal("expected the same section")
	}
	if g.NumSections() != 1 {
		t.Errorf("unexpected section count %d", g.NumSections())
	}

	// Characteristics accumulate.
	want := SectionContainsCode | SectionIsExecutable
	if text.Characteristics() != want {
		t.Errorf(
			"unexpected characteristics 0x%08x, want 0x%08x",
			text.Characteristics(),
			want)
	}
}

func TestFindSection(t *testing.T) {
	g := NewBlockGraph()
	g.AddSection(".text", SectionContainsCode)
	g.AddSection(".data", SectionContainsInitializedData)

	section, ok := g.FindSection(".data")
	if !ok || section.Name() != ".data" {
		t.Error(".data not found")
	}

	_, ok = g.FindSection(".rsrc")
	if ok {
		t.Error("found a section that does not exist")
	}
}

func TestRemoveSection(t *testing.T) {
	g := NewBlockGraph()
	section := g.AddSection(".text", SectionContainsCode)

	if !g.RemoveSection(section) {
		t.Error("expected removal to succeed")
	}
	if g.RemoveSection(section) {
		t.Error("expected repeated removal to fail")
	}
	if g.RemoveSectionByID(section.ID()) {
		t.Error("expected removal by id to fail after removal")
	}
}

func TestSignature(t *testing.T) {
	g := NewBlockGraph()

	if g.Signature().IsValid() {
		t.Error("fresh graph should have no signature")
	}

	sig := Signature{
		ModuleID:    uuid.New(),
		BaseAddress: 0x400000,
		ModuleSize:  0x10000,
	}
	g.SetSignature(sig)

	if g.Signature() != sig || !g.Signature().IsValid() {
		t.Error("signature not round-tripped")
	}
}
