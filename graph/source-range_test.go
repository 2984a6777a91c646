package graph

import (
	"testing"
)

func TestSourceRangeMapPush(t *testing.T) {
	srm := SourceRangeMap{}

	if srm.Push(
		DataRange{Offset: 0, Size: 0},
		SourceRange{Address: 0x1000, Size: 0}) {

		t.Error("expected empty pairs to be rejected")
	}
	if srm.Push(
		DataRange{Offset: 0, Size: 8},
		SourceRange{Address: 0x1000, Size: 4}) {

		t.Error("expected unequal sizes to be rejected")
	}

	if !srm.Push(
		DataRange{Offset: 0, Size: 8},
		SourceRange{Address: 0x1000, Size: 8}) {

		t.Fatal("expected the first pair to be accepted")
	}
	if srm.Push(
		DataRange{Offset: 4, Size: 8},
		SourceRange{Address: 0x2000, Size: 8}) {

		t.Error("expected an out-of-order pair to be rejected")
	}
	if !srm.Push(
		DataRange{Offset: 8, Size: 8},
		SourceRange{Address: 0x2000, Size: 8}) {

		t.Error("expected an adjacent pair to be accepted")
	}

	if srm.Len() != 2 {
		t.Errorf("unexpected pair count %d", srm.Len())
	}
}

func TestFindSource(t *testing.T) {
	srm := SourceRangeMap{}
	srm.Push(
		DataRange{Offset: 0x10, Size: 0x10},
		SourceRange{Address: 0x1000, Size: 0x10})

	source, ok := srm.FindSource(DataRange{Offset: 0x14, Size: 4})
	if !ok {
		t.Fatal("expected a source")
	}
	if source.Address != 0x1004 || source.Size != 4 {
		t.Errorf("unexpected source %v", source)
	}

	// Straddling a pair boundary has no single source.
	_, ok = srm.FindSource(DataRange{Offset: 0x1c, Size: 8})
	if ok {
		t.Error("expected a straddling query to fail")
	}
}

func TestInsertUnmappedRangeSplitsSpanningPair(t *testing.T) {
	srm := SourceRangeMap{}
	srm.Push(
		DataRange{Offset: 0, Size: 0x10},
		SourceRange{Address: 0x1000, Size: 0x10})
	srm.Push(
		DataRange{Offset: 0x10, Size: 0x10},
		SourceRange{Address: 0x2000, Size: 0x10})

	srm.InsertUnmappedRange(DataRange{Offset: 0x8, Size: 0x8})

	pairs := srm.RangePairs()
	if len(pairs) != 3 {
		t.Fatalf("unexpected pair count %d", len(pairs))
	}

	// Head of the split pair.
	if pairs[0].Data.Offset != 0 || pairs[0].Data.Size != 0x8 ||
		pairs[0].Source.Address != 0x1000 {

		t.Errorf("unexpected head pair %v", pairs[0])
	}
	// Tail of the split pair, shifted past the insertion.
	if pairs[1].Data.Offset != 0x10 || pairs[1].Data.Size != 0x8 ||
		pairs[1].Source.Address != 0x1008 {

		t.Errorf("unexpected tail pair %v", pairs[1])
	}
	// Pair beyond the insertion point, shifted whole.
	if pairs[2].Data.Offset != 0x18 || pairs[2].Source.Address != 0x2000 {
		t.Errorf("unexpected shifted pair %v", pairs[2])
	}

	// The inserted bytes themselves have no source.
	_, ok := srm.FindSource(DataRange{Offset: 0x8, Size: 4})
	if ok {
		t.Error("inserted bytes must not have a source")
	}
}

func TestRemoveMappedRange(t *testing.T) {
	srm := SourceRangeMap{}
	srm.Push(
		DataRange{Offset: 0, Size: 0x10},
		SourceRange{Address: 0x1000, Size: 0x10})
	srm.Push(
		DataRange{Offset: 0x10, Size: 0x10},
		SourceRange{Address: 0x2000, Size: 0x10})
	srm.Push(
		DataRange{Offset: 0x20, Size: 0x10},
		SourceRange{Address: 0x3000, Size: 0x10})

	// Drops the middle pair entirely and shifts the last pair left.
	srm.RemoveMappedRange(DataRange{Offset: 0x10, Size: 0x10})

	pairs := srm.RangePairs()
	if len(pairs) != 2 {
		t.Fatalf("unexpected pair count %d", len(pairs))
	}
	if pairs[1].Data.Offset != 0x10 || pairs[1].Source.Address != 0x3000 {
		t.Errorf("unexpected shifted pair %v", pairs[1])
	}
}

func TestRemoveMappedRangeTrimsStraddlingPair(t *testing.T) {
	srm := SourceRangeMap{}
	srm.Push(
		DataRange{Offset: 0, Size: 0x20},
		SourceRange{Address: 0x1000, Size: 0x20})

	srm.RemoveMappedRange(DataRange{Offset: 0x8, Size: 0x10})

	pairs := srm.RangePairs()
	if len(pairs) != 2 {
		t.Fatalf("unexpected pair count %d", len(pairs))
	}
	if pairs[0].Data.Offset != 0 || pairs[0].Data.Size != 0x8 {
		t.Errorf("unexpected head pair %v", pairs[0])
	}
	if pairs[1].Data.Offset != 0x8 || pairs[1].Data.Size != 0x8 ||
		pairs[1].Source.Address != 0x1018 {

		t.Errorf("unexpected tail pair %v", pairs[1])
	}
}
