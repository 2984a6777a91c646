package graph

import (
	"github.com/pattyshack/shrike/addr"
)

// DataRange is a range of bytes within a block's current content.
type DataRange struct {
	Offset int
	Size   uint32
}

func (r DataRange) End() int {
	return r.Offset + int(r.Size)
}

func (r DataRange) Intersects(other DataRange) bool {
	return other.Offset < r.End() && other.End() > r.Offset
}

func (r DataRange) Contains(other DataRange) bool {
	return other.Offset >= r.Offset && other.End() <= r.End()
}

// SourceRange is a range of bytes in the original input image.
type SourceRange struct {
	Address addr.RelativeAddress
	Size    uint32
}

// SourceRangePair maps a range of a block's bytes back to the range of
// the original image they came from. Blocks get split and glued
// together arbitrarily during transformation; this provenance is what
// allows OMAP/debug information to be regenerated afterwards.
type SourceRangePair struct {
	Data   DataRange
	Source SourceRange
}

// SourceRangeMap is an ordered list of non-overlapping, equal-sized
// data-to-source range pairs, ascending by data offset.
type SourceRangeMap struct {
	pairs []SourceRangePair
}

func (srm *SourceRangeMap) IsEmpty() bool {
	return len(srm.pairs) == 0
}

func (srm *SourceRangeMap) Len() int {
	return len(srm.pairs)
}

// RangePairs returns the pairs in data-offset order. The caller must
// not modify the returned slice.
func (srm *SourceRangeMap) RangePairs() []SourceRangePair {
	return srm.pairs
}

// Push appends a pair. The pair's ranges must be equal-sized, non-empty
// and start at or beyond the end of the last pair. Returns true iff
// appended.
func (srm *SourceRangeMap) Push(
	data DataRange,
	source SourceRange,
) bool {
	if data.Size == 0 || data.Size != source.Size {
		return false
	}
	if len(srm.pairs) > 0 &&
		data.Offset < srm.pairs[len(srm.pairs)-1].Data.End() {

		return false
	}

	srm.pairs = append(srm.pairs, SourceRangePair{
		Data:   data,
		Source: source,
	})
	return true
}

// FindSource translates a range of block bytes into the corresponding
// range of original-image bytes. The queried range must fall entirely
// within a single mapped pair.
func (srm *SourceRangeMap) FindSource(
	data DataRange,
) (
	SourceRange,
	bool,
) {
	for _, pair := range srm.pairs {
		if pair.Data.Contains(data) {
			delta := data.Offset - pair.Data.Offset
			return SourceRange{
				Address: pair.Source.Address.Add(delta),
				Size:    data.Size,
			}, true
		}
	}
	return SourceRange{}, false
}

// InsertUnmappedRange makes room for inserted block bytes: pairs at or
// beyond the insertion point shift right, and a pair spanning the
// insertion point is split in two. The inserted bytes themselves have
// no source.
func (srm *SourceRangeMap) InsertUnmappedRange(inserted DataRange) {
	updated := make([]SourceRangePair, 0, len(srm.pairs)+1)
	for _, pair := range srm.pairs {
		switch {
		case pair.Data.End() <= inserted.Offset:
			updated = append(updated, pair)
		case pair.Data.Offset >= inserted.Offset:
			pair.Data.Offset += int(inserted.Size)
			updated = append(updated, pair)
		default:
			// The insertion point falls inside this pair; split it.
			headSize := uint32(inserted.Offset - pair.Data.Offset)
			updated = append(
				updated,
				SourceRangePair{
					Data: DataRange{
						Offset: pair.Data.Offset,
						Size:   headSize,
					},
					Source: SourceRange{
						Address: pair.Source.Address,
						Size:    headSize,
					},
				},
				SourceRangePair{
					Data: DataRange{
						Offset: inserted.Offset + int(inserted.Size),
						Size:   pair.Data.Size - headSize,
					},
					Source: SourceRange{
						Address: pair.Source.Address.Add(int(headSize)),
						Size:    pair.Source.Size - headSize,
					},
				})
		}
	}
	srm.pairs = updated
}

// RemoveMappedRange drops provenance for removed block bytes: pairs
// wholly inside the removed range disappear, pairs beyond it shift
// left, and pairs straddling a boundary are trimmed.
func (srm *SourceRangeMap) RemoveMappedRange(removed DataRange) {
	updated := make([]SourceRangePair, 0, len(srm.pairs))
	for _, pair := range srm.pairs {
		switch {
		case pair.Data.End() <= removed.Offset:
			updated = append(updated, pair)
		case pair.Data.Offset >= removed.End():
			pair.Data.Offset -= int(removed.Size)
			updated = append(updated, pair)
		default:
			if pair.Data.Offset < removed.Offset {
				headSize := uint32(removed.Offset - pair.Data.Offset)
				updated = append(updated, SourceRangePair{
					Data: DataRange{
						Offset: pair.Data.Offset,
						Size:   headSize,
					},
					Source: SourceRange{
						Address: pair.Source.Address,
						Size:    headSize,
					},
				})
			}
			if pair.Data.End() > removed.End() {
				tailSize := uint32(pair.Data.End() - removed.End())
				consumed := pair.Data.Size - tailSize
				updated = append(updated, SourceRangePair{
					Data: DataRange{
						Offset: removed.Offset,
						Size:   tailSize,
					},
					Source: SourceRange{
						Address: pair.Source.Address.Add(int(consumed)),
						Size:    tailSize,
					},
				})
			}
		}
	}
	srm.pairs = updated
}
