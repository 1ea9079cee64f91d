// Package ogg implements the OGG page/segment iterator (C10): a cursor over
// page-fragmented streams that hides page headers and segment boundaries
// from callers doing sequential reads. Grounded on
// original_source/ogg/oggiterator.cpp/.h for the iterator's state machine,
// and on other_examples/jvatic-audible-downloader__ogg_header.go for the
// idiomatic Go page header layout (little-endian fields, "OggS" magic).
package ogg

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mutwol/tagparser/containererr"
)

const headerMinSize = 27
const maxSegmentSize = 255

var magic = [4]byte{'O', 'g', 'g', 'S'}

// Page is one parsed OGG page header plus its segment table.
type Page struct {
	StartOffset     uint64
	HeaderSize      uint64
	Version         byte
	Flags           byte
	GranulePosition int64
	SerialNumber    uint32
	SequenceNumber  uint32
	CRC             uint32
	SegmentSizes    []uint32
}

// DataOffset returns the absolute offset of the first byte of segment i's
// data.
func (p Page) DataOffset(segment int) uint64 {
	offset := p.StartOffset + p.HeaderSize
	for i := 0; i < segment; i++ {
		offset += uint64(p.SegmentSizes[i])
	}
	return offset
}

// TotalSize is the page header size plus the sum of every segment's size.
func (p Page) TotalSize() uint64 {
	total := p.HeaderSize
	for _, s := range p.SegmentSizes {
		total += uint64(s)
	}
	return total
}

// ParsePageHeader reads one OGG page header (and its segment table) from r
// starting at startOffset, bounded by maxLength bytes. Grounded on
// OggPage::parseHeader (original_source/ogg/oggpage.cpp is not in the pack,
// but oggiterator.cpp's call site and the jvatic header layout fully
// determine the wire format).
func ParsePageHeader(r io.ReadSeeker, startOffset uint64, maxLength uint64) (Page, error) {
	if maxLength < headerMinSize {
		return Page{}, fmt.Errorf("not enough bytes for an OGG page header: %w", containererr.ErrTruncatedData)
	}
	if _, err := r.Seek(int64(startOffset), io.SeekStart); err != nil {
		return Page{}, fmt.Errorf("seek to page header: %w", containererr.ErrIO)
	}
	var fixed [27]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return Page{}, fmt.Errorf("read page header: %w", containererr.ErrTruncatedData)
	}
	if fixed[0] != magic[0] || fixed[1] != magic[1] || fixed[2] != magic[2] || fixed[3] != magic[3] {
		return Page{}, fmt.Errorf("missing OggS capture pattern at %d: %w", startOffset, containererr.ErrInvalidData)
	}
	segmentCount := int(fixed[26])
	if maxLength < uint64(headerMinSize+segmentCount) {
		return Page{}, fmt.Errorf("not enough bytes for segment table: %w", containererr.ErrTruncatedData)
	}
	table := make([]byte, segmentCount)
	if _, err := io.ReadFull(r, table); err != nil {
		return Page{}, fmt.Errorf("read segment table: %w", containererr.ErrTruncatedData)
	}
	sizes := make([]uint32, segmentCount)
	for i, b := range table {
		sizes[i] = uint32(b)
	}
	return Page{
		StartOffset:     startOffset,
		HeaderSize:      uint64(headerMinSize + segmentCount),
		Version:         fixed[4],
		Flags:           fixed[5],
		GranulePosition: int64(binary.LittleEndian.Uint64(fixed[6:14])),
		SerialNumber:    binary.LittleEndian.Uint32(fixed[14:18]),
		SequenceNumber:  binary.LittleEndian.Uint32(fixed[18:22]),
		CRC:             binary.LittleEndian.Uint32(fixed[22:26]),
		SegmentSizes:    sizes,
	}, nil
}

const (
	FlagContinuation byte = 1 << 0
	FlagBeginStream  byte = 1 << 1
	FlagEndStream    byte = 1 << 2
)
