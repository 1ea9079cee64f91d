package mp4

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/mutwol/tagparser/containererr"
)

// fullBoxHeaderSize is the version(1)+flags(3)+count(4) header every
// stco/co64/stsc full box carries before its entry table; stsz has a 4-byte
// sample-size field between the flags and the count.
const fullBoxHeaderSize = 8

// ChunkOffsetTable is a decoded stco (Is64==false) or co64 (Is64==true)
// table: the box it was read from plus the chunk offsets in file order.
type ChunkOffsetTable struct {
	Box     Box
	Is64    bool
	Offsets []uint64
}

// ReadChunkOffsets decodes a stco or co64 box's entry table. Grounded on
// Mp4Track::readChunkOffsets (original_source/mp4/mp4track.cpp), which reads
// a count-prefixed array of 4- or 8-byte big-endian offsets.
func ReadChunkOffsets(r io.ReadSeeker, box Box) (ChunkOffsetTable, error) {
	is64 := box.Type == TypeCo64
	if box.Type != TypeStco && !is64 {
		return ChunkOffsetTable{}, fmt.Errorf("box %q is not stco/co64: %w", box.Type, containererr.ErrInvalidData)
	}
	if box.DataSize < fullBoxHeaderSize {
		return ChunkOffsetTable{}, fmt.Errorf("%q box is truncated: %w", box.Type, containererr.ErrTruncatedData)
	}
	if _, err := r.Seek(box.DataOffset()+4, io.SeekStart); err != nil {
		return ChunkOffsetTable{}, fmt.Errorf("seek into %q box: %w", box.Type, containererr.ErrIO)
	}
	var countBuf [4]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return ChunkOffsetTable{}, fmt.Errorf("read %q entry count: %w", box.Type, containererr.ErrTruncatedData)
	}
	count := binary.BigEndian.Uint32(countBuf[:])
	entrySize := int64(4)
	if is64 {
		entrySize = 8
	}
	if box.DataSize-fullBoxHeaderSize < int64(count)*entrySize {
		return ChunkOffsetTable{}, fmt.Errorf("%q box truncated: %w", box.Type, containererr.ErrTruncatedData)
	}
	table := make([]byte, int64(count)*entrySize)
	if _, err := io.ReadFull(r, table); err != nil {
		return ChunkOffsetTable{}, fmt.Errorf("read %q entries: %w", box.Type, containererr.ErrTruncatedData)
	}
	offsets := make([]uint64, count)
	for i := range offsets {
		if is64 {
			offsets[i] = binary.BigEndian.Uint64(table[i*8 : i*8+8])
		} else {
			offsets[i] = uint64(binary.BigEndian.Uint32(table[i*4 : i*4+4]))
		}
	}
	return ChunkOffsetTable{Box: box, Is64: is64, Offsets: offsets}, nil
}

// remap finds the largest old value strictly less than v and returns
// v + (new-old) for that mapping, or v unchanged if no old offset precedes
// it. oldOffsets must be sorted ascending; newOffsets is its parallel
// displacement target.
func remap(v uint64, oldOffsets, newOffsets []uint64) uint64 {
	i := sort.Search(len(oldOffsets), func(i int) bool { return oldOffsets[i] >= v }) - 1
	if i < 0 {
		return v
	}
	return uint64(int64(v) + int64(newOffsets[i]) - int64(oldOffsets[i]))
}

// UpdateChunkOffsets rewrites a stco/co64 table in place given paired
// vectors of old and new mdat offsets of equal non-zero length: for each
// chunk offset, it finds the largest old offset strictly less than the
// entry and adds the corresponding (new - old) displacement. Grounded on
// spec §4.7's statement of Mp4Track's relocation walk.
func UpdateChunkOffsets(rw io.ReadWriteSeeker, box Box, oldOffsets, newOffsets []uint64) error {
	if len(oldOffsets) == 0 || len(oldOffsets) != len(newOffsets) {
		return fmt.Errorf("mp4 chunk-offset update needs equal, non-empty offset vectors: %w", containererr.ErrInvalidData)
	}
	table, err := ReadChunkOffsets(rw, box)
	if err != nil {
		return err
	}
	sortedOld := append([]uint64(nil), oldOffsets...)
	sortedNew := append([]uint64(nil), newOffsets...)
	sortPaired(sortedOld, sortedNew)

	entrySize := int64(4)
	if table.Is64 {
		entrySize = 8
	}
	entriesStart := table.Box.DataOffset() + fullBoxHeaderSize
	for i, old := range table.Offsets {
		updated := remap(old, sortedOld, sortedNew)
		if updated == old {
			continue
		}
		if _, err := rw.Seek(entriesStart+int64(i)*entrySize, io.SeekStart); err != nil {
			return fmt.Errorf("seek into %q entry %d: %w", table.Box.Type, i, containererr.ErrIO)
		}
		var buf [8]byte
		if table.Is64 {
			binary.BigEndian.PutUint64(buf[:8], updated)
			if _, err := rw.Write(buf[:8]); err != nil {
				return fmt.Errorf("write co64 entry %d: %w", i, containererr.ErrIO)
			}
		} else {
			if updated > 0xFFFFFFFF {
				return fmt.Errorf("displacement overflows a 32-bit stco entry: %w", containererr.ErrInvalidData)
			}
			binary.BigEndian.PutUint32(buf[:4], uint32(updated))
			if _, err := rw.Write(buf[:4]); err != nil {
				return fmt.Errorf("write stco entry %d: %w", i, containererr.ErrIO)
			}
		}
	}
	return nil
}

// sortPaired sorts old ascending, carrying newVals along by the same
// permutation.
func sortPaired(old, newVals []uint64) {
	sort.Sort(&pairedOffsets{old: old, newVals: newVals})
}

type pairedOffsets struct {
	old, newVals []uint64
}

func (p *pairedOffsets) Len() int           { return len(p.old) }
func (p *pairedOffsets) Less(i, j int) bool { return p.old[i] < p.old[j] }
func (p *pairedOffsets) Swap(i, j int) {
	p.old[i], p.old[j] = p.old[j], p.old[i]
	p.newVals[i], p.newVals[j] = p.newVals[j], p.newVals[i]
}

// SampleToChunkEntry is one (first_chunk, samples_per_chunk,
// sample_description_index) triple from a stsc table.
type SampleToChunkEntry struct {
	FirstChunk            uint32
	SamplesPerChunk        uint32
	SampleDescriptionIndex uint32
}

// ReadSampleToChunk decodes a stsc box's entry table.
func ReadSampleToChunk(r io.ReadSeeker, box Box) ([]SampleToChunkEntry, error) {
	if box.Type != TypeStsc {
		return nil, fmt.Errorf("box %q is not stsc: %w", box.Type, containererr.ErrInvalidData)
	}
	if box.DataSize < fullBoxHeaderSize {
		return nil, fmt.Errorf("stsc box is truncated: %w", containererr.ErrTruncatedData)
	}
	if _, err := r.Seek(box.DataOffset()+4, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek into stsc box: %w", containererr.ErrIO)
	}
	var countBuf [4]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return nil, fmt.Errorf("read stsc entry count: %w", containererr.ErrTruncatedData)
	}
	count := binary.BigEndian.Uint32(countBuf[:])
	if box.DataSize-fullBoxHeaderSize < int64(count)*12 {
		return nil, fmt.Errorf("stsc box truncated: %w", containererr.ErrTruncatedData)
	}
	entries := make([]SampleToChunkEntry, count)
	var row [12]byte
	for i := range entries {
		if _, err := io.ReadFull(r, row[:]); err != nil {
			return nil, fmt.Errorf("read stsc entry %d: %w", i, containererr.ErrTruncatedData)
		}
		entries[i] = SampleToChunkEntry{
			FirstChunk:             binary.BigEndian.Uint32(row[0:4]),
			SamplesPerChunk:        binary.BigEndian.Uint32(row[4:8]),
			SampleDescriptionIndex: binary.BigEndian.Uint32(row[8:12]),
		}
	}
	return entries, nil
}

// SampleSizeTable is a decoded stsz box: either a uniform sample size
// (SampleCount entries all of size UniformSize, when UniformSize != 0) or an
// explicit per-sample size array.
type SampleSizeTable struct {
	UniformSize uint32
	SampleCount uint32
	Sizes       []uint32
}

// ReadSampleSizes decodes a stsz box.
func ReadSampleSizes(r io.ReadSeeker, box Box) (SampleSizeTable, error) {
	if box.Type != TypeStsz {
		return SampleSizeTable{}, fmt.Errorf("box %q is not stsz: %w", box.Type, containererr.ErrInvalidData)
	}
	if box.DataSize < fullBoxHeaderSize+4 {
		return SampleSizeTable{}, fmt.Errorf("stsz box is truncated: %w", containererr.ErrTruncatedData)
	}
	if _, err := r.Seek(box.DataOffset()+4, io.SeekStart); err != nil {
		return SampleSizeTable{}, fmt.Errorf("seek into stsz box: %w", containererr.ErrIO)
	}
	var head [8]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return SampleSizeTable{}, fmt.Errorf("read stsz header: %w", containererr.ErrTruncatedData)
	}
	uniform := binary.BigEndian.Uint32(head[0:4])
	count := binary.BigEndian.Uint32(head[4:8])
	if uniform != 0 {
		return SampleSizeTable{UniformSize: uniform, SampleCount: count}, nil
	}
	if box.DataSize-fullBoxHeaderSize-4 < int64(count)*4 {
		return SampleSizeTable{}, fmt.Errorf("stsz box truncated: %w", containererr.ErrTruncatedData)
	}
	sizes := make([]uint32, count)
	var buf [4]byte
	for i := range sizes {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return SampleSizeTable{}, fmt.Errorf("read stsz entry %d: %w", i, containererr.ErrTruncatedData)
		}
		sizes[i] = binary.BigEndian.Uint32(buf[:])
	}
	return SampleSizeTable{SampleCount: count, Sizes: sizes}, nil
}
