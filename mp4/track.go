package mp4

import (
	"fmt"
	"io"

	"github.com/mutwol/tagparser/containererr"
)

// Track is a sketched view of one trak box: only the boxes needed for the
// chunk-offset relocation walk (stbl/stco|co64/stsc/stsz) are resolved.
// Grounded on Mp4Track (original_source/mp4/mp4track.cpp), trimmed to the
// chunk-offset mechanics named in scope.
type Track struct {
	Trak Box
	Stbl Box

	ChunkOffsets ChunkOffsetTable
	SampleToChunk []SampleToChunkEntry
	SampleSizes   SampleSizeTable
}

// ParseTrack resolves a trak box's sample table and reads its chunk-offset,
// sample-to-chunk and sample-size tables.
func ParseTrack(r io.ReadSeeker, trak Box) (*Track, error) {
	stbl, err := FindDescendant(r, trak, TypeMdia, TypeMinf, TypeStbl)
	if err != nil {
		return nil, err
	}
	children, err := FindChildBoxes(r, stbl.DataOffset(), stbl.DataSize)
	if err != nil {
		return nil, err
	}
	t := &Track{Trak: trak, Stbl: stbl}
	var offsetBox *Box
	for i, child := range children {
		switch child.Type {
		case TypeStco, TypeCo64:
			c := children[i]
			offsetBox = &c
		case TypeStsc:
			t.SampleToChunk, err = ReadSampleToChunk(r, child)
			if err != nil {
				return nil, err
			}
		case TypeStsz, TypeStz2:
			t.SampleSizes, err = ReadSampleSizes(r, child)
			if err != nil {
				return nil, err
			}
		}
	}
	if offsetBox == nil {
		return nil, fmt.Errorf("trak at %d has no stco/co64 box: %w", trak.StartOffset, containererr.ErrNoDataFound)
	}
	t.ChunkOffsets, err = ReadChunkOffsets(r, *offsetBox)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Relocate rewrites this track's stco/co64 table for a relocation of the
// mdat regions named by oldOffsets/newOffsets (see UpdateChunkOffsets).
func (t *Track) Relocate(rw io.ReadWriteSeeker, oldOffsets, newOffsets []uint64) error {
	return UpdateChunkOffsets(rw, t.ChunkOffsets.Box, oldOffsets, newOffsets)
}

// Synthesize builds a stsd (sample description) box for this track from
// scratch. Recognised but unsupported: constructing codec-specific sample
// entries requires semantic codec knowledge out of scope here.
func (t *Track) Synthesize() ([]byte, error) {
	return nil, fmt.Errorf("synthesizing an mp4 sample description from scratch: %w", containererr.ErrNotImplemented)
}
