package graph

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
)

// buildTestGraph assembles a small graph exercising every serialized
// property: sections, owned and borrowed data, labels, source ranges,
// direct and indirect references.
func buildTestGraph() *BlockGraph {
	g := NewBlockGraph()
	g.SetSignature(Signature{
		ModuleID:    uuid.New(),
		BaseAddress: 0x400000,
		ModuleSize:  0x20000,
	})

	text := g.AddSection(".text", SectionContainsCode|SectionIsExecutable)
	data := g.AddSection(".data", SectionContainsInitializedData)

	code := g.AddBlock(CodeBlock, 0x20, "entry")
	code.SetSection(text.ID())
	code.SetAlignment(16)
	code.SetAddr(0x1000)
	code.SetAttribute(NonReturnFunction)
	code.CopyData([]byte{0x55, 0x8b, 0xec, 0xc3})
	code.SetLabel(0, NewLabel("entry", CodeLabel))
	code.SetLabel(3, NewLabel("ret", CodeLabel))
	code.SourceRanges().Push(
		DataRange{Offset: 0, Size: 4},
		SourceRange{Address: 0x1000, Size: 4})

	table := g.AddBlock(DataBlock, 0x10, "table")
	table.SetSection(data.ID())
	table.SetAddr(0x2000)
	table.SetData([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	table.SetLabel(0, NewLabel("table", DataLabel|JumpTableLabel))

	code.SetReference(4, NewReference(AbsoluteRef, 4, table, 0))
	code.SetReference(8, NewIndirectReference(AbsoluteRef, 4, table, 0x10, 0x8))
	table.SetReference(0, NewReference(RelativeRef, 4, code, 0))

	return g
}

func expectGraphsEqual(
	t *testing.T,
	want *BlockGraph,
	got *BlockGraph,
) {
	t.Helper()

	if got.Signature() != want.Signature() {
		t.Errorf(
			"signature mismatch: %v vs %v",
			got.Signature(),
			want.Signature())
	}

	if got.NumSections() != want.NumSections() {
		t.Fatalf(
			"section count mismatch: %d vs %d",
			got.NumSections(),
			want.NumSections())
	}
	for _, wantSection := range want.Sections() {
		gotSection, ok := got.GetSectionByID(wantSection.ID())
		if !ok {
			t.Errorf("missing section %d", wantSection.ID())
			continue
		}
		if gotSection.Name() != wantSection.Name() ||
			gotSection.Characteristics() != wantSection.Characteristics() {

			t.Errorf("section mismatch: %s vs %s", gotSection, wantSection)
		}
	}

	if got.NumBlocks() != want.NumBlocks() {
		t.Fatalf(
			"block count mismatch: %d vs %d",
			got.NumBlocks(),
			want.NumBlocks())
	}
	for _, wantBlock := range want.Blocks() {
		gotBlock, ok := got.GetBlockByID(wantBlock.ID())
		if !ok {
			t.Errorf("missing block %d", wantBlock.ID())
			continue
		}

		if gotBlock.Type() != wantBlock.Type() ||
			gotBlock.Size() != wantBlock.Size() ||
			gotBlock.Alignment() != wantBlock.Alignment() ||
			gotBlock.Addr() != wantBlock.Addr() ||
			gotBlock.Section() != wantBlock.Section() ||
			gotBlock.Attributes() != wantBlock.Attributes() ||
			gotBlock.Name() != wantBlock.Name() {

			t.Errorf("block property mismatch: %s vs %s", gotBlock, wantBlock)
		}

		if !bytes.Equal(gotBlock.Data(), wantBlock.Data()) {
			t.Errorf("%s: content mismatch", wantBlock)
		}

		wantLabels := wantBlock.Labels()
		gotLabels := gotBlock.Labels()
		if len(gotLabels) != len(wantLabels) {
			t.Errorf(
				"%s: label count mismatch: %d vs %d",
				wantBlock,
				len(gotLabels),
				len(wantLabels))
		}
		for offset, wantLabel := range wantLabels {
			if gotLabels[offset] != wantLabel {
				t.Errorf(
					"%s: label mismatch at %d: %v vs %v",
					wantBlock,
					offset,
					gotLabels[offset],
					wantLabel)
			}
		}

		wantRefs := wantBlock.References()
		gotRefs := gotBlock.References()
		if len(gotRefs) != len(wantRefs) {
			t.Errorf(
				"%s: reference count mismatch: %d vs %d",
				wantBlock,
				len(gotRefs),
				len(wantRefs))
		}
		for offset, wantRef := range wantRefs {
			gotRef, ok := gotRefs[offset]
			if !ok {
				t.Errorf("%s: missing reference at %d", wantBlock, offset)
				continue
			}
			if gotRef.Type != wantRef.Type ||
				gotRef.Size != wantRef.Size ||
				gotRef.To.ID() != wantRef.To.ID() ||
				gotRef.Offset != wantRef.Offset ||
				gotRef.Base != wantRef.Base {

				t.Errorf(
					"%s: reference mismatch at %d: %v vs %v",
					wantBlock,
					offset,
					gotRef,
					wantRef)
			}
		}

		wantPairs := wantBlock.SourceRanges().RangePairs()
		gotPairs := gotBlock.SourceRanges().RangePairs()
		if len(gotPairs) != len(wantPairs) {
			t.Errorf("%s: source range count mismatch", wantBlock)
		} else {
			for idx, wantPair := range wantPairs {
				if gotPairs[idx] != wantPair {
					t.Errorf(
						"%s: source range mismatch: %v vs %v",
						wantBlock,
						gotPairs[idx],
						wantPair)
				}
			}
		}
	}
}

func TestSerializerRoundTripAllData(t *testing.T) {
	g := buildTestGraph()
	serializer := &Serializer{DataMode: AllData}

	buffer := &bytes.Buffer{}
	if err := serializer.Save(g, buffer); err != nil {
		t.Fatalf("save failed: %s", err)
	}

	loaded, err := serializer.Load(bytes.NewReader(buffer.Bytes()))
	if err != nil {
		t.Fatalf("load failed: %s", err)
	}

	expectGraphsEqual(t, g, loaded)

	if errs := ValidateGraph(loaded); len(errs) > 0 {
		t.Errorf("loaded graph inconsistent: %v", errs)
	}
}

func TestSerializerRoundTripCompressed(t *testing.T) {
	g := buildTestGraph()
	serializer := &Serializer{
		DataMode: AllData,
		Compress: true,
	}

	buffer := &bytes.Buffer{}
	if err := serializer.Save(g, buffer); err != nil {
		t.Fatalf("save failed: %s", err)
	}

	loaded, err := serializer.Load(bytes.NewReader(buffer.Bytes()))
	if err != nil {
		t.Fatalf("load failed: %s", err)
	}

	expectGraphsEqual(t, g, loaded)
}

func TestSerializerOmitDataUsesCallback(t *testing.T) {
	g := buildTestGraph()

	saved := map[BlockID]uint32{}
	saveSerializer := &Serializer{
		DataMode: OmitData,
		SaveBlockData: func(block *Block) error {
			saved[block.ID()] = block.DataSize()
			return nil
		},
	}

	buffer := &bytes.Buffer{}
	if err := saveSerializer.Save(g, buffer); err != nil {
		t.Fatalf("save failed: %s", err)
	}
	if len(saved) != 2 {
		t.Errorf("SaveBlockData called for %d blocks, want 2", len(saved))
	}

	// The original content, keyed by id, stands in for the source
	// image.
	contents := map[BlockID][]byte{}
	for _, block := range g.Blocks() {
		contents[block.ID()] = block.Data()
	}

	loadSerializer := &Serializer{
		LoadBlockData: func(
			block *Block,
			dataSize uint32,
		) ([]byte, error) {
			return contents[block.ID()], nil
		},
	}

	loaded, err := loadSerializer.Load(bytes.NewReader(buffer.Bytes()))
	if err != nil {
		t.Fatalf("load failed: %s", err)
	}

	expectGraphsEqual(t, g, loaded)
}

func TestSerializerOmitDataRequiresCallback(t *testing.T) {
	g := buildTestGraph()
	serializer := &Serializer{DataMode: OmitData}

	buffer := &bytes.Buffer{}
	if err := serializer.Save(g, buffer); err != nil {
		t.Fatalf("save failed: %s", err)
	}

	_, err := serializer.Load(bytes.NewReader(buffer.Bytes()))
	if err == nil {
		t.Fatal("expected load to fail without LoadBlockData")
	}
}

func TestSerializerOwnedDataMode(t *testing.T) {
	g := buildTestGraph()
	serializer := &Serializer{
		DataMode: OwnedData,
		LoadBlockData: func(
			block *Block,
			dataSize uint32,
		) ([]byte, error) {
			// Only the borrowed table content is omitted.
			return []byte{1, 2, 3, 4, 5, 6, 7, 8}, nil
		},
	}

	buffer := &bytes.Buffer{}
	if err := serializer.Save(g, buffer); err != nil {
		t.Fatalf("save failed: %s", err)
	}

	loaded, err := serializer.Load(bytes.NewReader(buffer.Bytes()))
	if err != nil {
		t.Fatalf("load failed: %s", err)
	}

	expectGraphsEqual(t, g, loaded)
}

func TestSerializerOmitLabels(t *testing.T) {
	g := buildTestGraph()
	serializer := &Serializer{
		DataMode:   AllData,
		Attributes: OmitLabels,
	}

	buffer := &bytes.Buffer{}
	if err := serializer.Save(g, buffer); err != nil {
		t.Fatalf("save failed: %s", err)
	}

	loaded, err := serializer.Load(bytes.NewReader(buffer.Bytes()))
	if err != nil {
		t.Fatalf("load failed: %s", err)
	}

	for _, block := range loaded.Blocks() {
		if len(block.Labels()) != 0 {
			t.Errorf("%s: labels survived OmitLabels", block)
		}
	}
}

func TestSerializerOmitStrings(t *testing.T) {
	g := buildTestGraph()
	serializer := &Serializer{
		DataMode:   AllData,
		Attributes: OmitStrings,
	}

	buffer := &bytes.Buffer{}
	if err := serializer.Save(g, buffer); err != nil {
		t.Fatalf("save failed: %s", err)
	}

	loaded, err := serializer.Load(bytes.NewReader(buffer.Bytes()))
	if err != nil {
		t.Fatalf("load failed: %s", err)
	}

	for _, block := range loaded.Blocks() {
		if block.Name() != "" {
			t.Errorf("block name %q survived OmitStrings", block.Name())
		}
	}
}

func TestSerializerDetectsTampering(t *testing.T) {
	g := buildTestGraph()
	serializer := &Serializer{DataMode: AllData}

	buffer := &bytes.Buffer{}
	if err := serializer.Save(g, buffer); err != nil {
		t.Fatalf("save failed: %s", err)
	}

	// Flip one payload byte past the header and digest.
	corrupted := buffer.Bytes()
	corrupted[len(corrupted)-1] ^= 0x01

	_, err := serializer.Load(bytes.NewReader(corrupted))
	if err == nil {
		t.Fatal("expected load of a corrupted stream to fail")
	}
}

func TestSerializerRejectsBadMagic(t *testing.T) {
	serializer := &Serializer{}
	_, err := serializer.Load(bytes.NewReader([]byte("not a graph stream")))
	if err == nil {
		t.Fatal("expected load to fail")
	}
}

func TestSerializerRejectsTruncatedStream(t *testing.T) {
	g := buildTestGraph()
	serializer := &Serializer{DataMode: AllData}

	buffer := &bytes.Buffer{}
	if err := serializer.Save(g, buffer); err != nil {
		t.Fatalf("save failed: %s", err)
	}

	truncated := buffer.Bytes()[:buffer.Len()/2]
	_, err := serializer.Load(bytes.NewReader(truncated))
	if err == nil {
		t.Fatal("expected load of a truncated stream to fail")
	}
}
