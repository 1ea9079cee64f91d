package ogg

import (
	"fmt"
	"io"

	"github.com/mutwol/tagparser/containererr"
)

// Iterator walks the segments of an OGG bitstream, hiding page headers and
// segment boundaries, optionally restricted to one logical stream (serial
// number). Grounded on OggIterator in
// original_source/ogg/oggiterator.cpp/.h.
type Iterator struct {
	stream           io.ReadSeeker
	startOffset      uint64
	streamSize       uint64
	serialFilter     *uint32
	pages            []Page
	pageIndex        int
	segmentIndex     int
	bytesReadInSeg   uint64
	valid            bool
}

// NewIterator returns an iterator over stream, starting at startOffset and
// bounded by streamSize bytes. A nil serialFilter matches every page;
// otherwise only pages with that serial number are visited.
func NewIterator(stream io.ReadSeeker, startOffset, streamSize uint64, serialFilter *uint32) *Iterator {
	return &Iterator{stream: stream, startOffset: startOffset, streamSize: streamSize, serialFilter: serialFilter}
}

func (it *Iterator) matchesFilter(p Page) bool {
	return it.serialFilter == nil || *it.serialFilter == p.SerialNumber
}

// Valid reports whether the iterator currently points at a readable
// segment.
func (it *Iterator) Valid() bool { return it.valid }

// CurrentPage returns the page the iterator currently points into. Only
// meaningful when Valid() is true.
func (it *Iterator) CurrentPage() Page { return it.pages[it.pageIndex] }

// CurrentCharacterOffset is the absolute stream offset of the next byte
// Read will return.
func (it *Iterator) CurrentCharacterOffset() uint64 {
	return it.pages[it.pageIndex].DataOffset(it.segmentIndex) + it.bytesReadInSeg
}

func (it *Iterator) currentSegmentSize() uint32 {
	return it.pages[it.pageIndex].SegmentSizes[it.segmentIndex]
}

// Reset positions the iterator at the first non-empty matching page.
func (it *Iterator) Reset() error {
	it.pageIndex, it.segmentIndex = 0, 0
	it.valid = false
	for {
		if it.pageIndex >= len(it.pages) {
			fetched, err := it.fetchNextPage()
			if err != nil {
				return err
			}
			if !fetched {
				return nil
			}
		}
		page := it.pages[it.pageIndex]
		if len(page.SegmentSizes) > 0 && it.matchesFilter(page) {
			it.bytesReadInSeg = 0
			it.valid = true
			return nil
		}
		it.pageIndex++
	}
}

// NextPage advances to the next matching, non-empty page.
func (it *Iterator) NextPage() error {
	if !it.valid {
		return nil
	}
	for {
		it.pageIndex++
		if it.pageIndex >= len(it.pages) {
			fetched, err := it.fetchNextPage()
			if err != nil {
				return err
			}
			if !fetched {
				it.valid = false
				return nil
			}
		}
		page := it.pages[it.pageIndex]
		if len(page.SegmentSizes) > 0 && it.matchesFilter(page) {
			it.segmentIndex, it.bytesReadInSeg = 0, 0
			return nil
		}
	}
}

// PreviousPage steps back to the previous matching page.
func (it *Iterator) PreviousPage() {
	if !it.valid {
		return
	}
	for it.pageIndex > 0 {
		it.pageIndex--
		page := it.pages[it.pageIndex]
		if it.matchesFilter(page) {
			it.segmentIndex = len(page.SegmentSizes) - 1
			it.bytesReadInSeg = 0
			return
		}
	}
	it.valid = false
}

// NextSegment advances by one segment, rolling over to the next page.
func (it *Iterator) NextSegment() error {
	if !it.valid {
		return nil
	}
	page := it.pages[it.pageIndex]
	if it.segmentIndex+1 < len(page.SegmentSizes) && it.matchesFilter(page) {
		it.segmentIndex++
		it.bytesReadInSeg = 0
		return nil
	}
	return it.NextPage()
}

// PreviousSegment steps back by one segment, rolling over to the previous
// page.
func (it *Iterator) PreviousSegment() {
	if !it.valid {
		return
	}
	page := it.pages[it.pageIndex]
	if it.segmentIndex > 0 && it.matchesFilter(page) {
		it.segmentIndex--
		it.bytesReadInSeg = 0
		return
	}
	it.PreviousPage()
}

// Read fills buf completely, walking across segment and page boundaries and
// skipping page headers transparently. Raises ErrTruncatedData if the
// stream ends before buf is full.
func (it *Iterator) Read(buf []byte) error {
	read := 0
	for it.valid && read < len(buf) {
		available := it.currentSegmentSize() - uint32(it.bytesReadInSeg)
		if _, err := it.stream.Seek(int64(it.CurrentCharacterOffset()), io.SeekStart); err != nil {
			return fmt.Errorf("seek in ogg stream: %w", containererr.ErrIO)
		}
		want := len(buf) - read
		if uint32(want) <= available {
			if _, err := io.ReadFull(it.stream, buf[read:read+want]); err != nil {
				return fmt.Errorf("read ogg segment: %w", containererr.ErrTruncatedData)
			}
			it.bytesReadInSeg += uint64(want)
			return nil
		}
		if _, err := io.ReadFull(it.stream, buf[read:read+int(available)]); err != nil {
			return fmt.Errorf("read ogg segment: %w", containererr.ErrTruncatedData)
		}
		read += int(available)
		if err := it.NextSegment(); err != nil {
			return err
		}
	}
	return fmt.Errorf("ogg stream ended before buffer was filled: %w", containererr.ErrTruncatedData)
}

// SeekForward advances the read position by count bytes without reading,
// walking across segment and page boundaries.
func (it *Iterator) SeekForward(count uint64) error {
	for it.valid && count > 0 {
		available := uint64(it.currentSegmentSize()) - it.bytesReadInSeg
		if count <= available {
			it.bytesReadInSeg += count
			return nil
		}
		count -= available
		if err := it.NextSegment(); err != nil {
			return err
		}
	}
	return fmt.Errorf("seek forward past end of ogg stream: %w", containererr.ErrTruncatedData)
}

// fetchNextPage parses and appends the next physical page after the last
// one already buffered, reporting whether one was available. pages always
// holds a prefix of the physical page sequence (spec §4.6 invariant).
func (it *Iterator) fetchNextPage() (bool, error) {
	var offset uint64
	if len(it.pages) == 0 {
		offset = it.startOffset
	} else {
		last := it.pages[len(it.pages)-1]
		offset = last.StartOffset + last.TotalSize()
	}
	if offset >= it.streamSize {
		return false, nil
	}
	page, err := ParsePageHeader(it.stream, offset, it.streamSize-offset)
	if err != nil {
		return false, err
	}
	it.pages = append(it.pages, page)
	return true, nil
}

// FetchNextPage is the exported form of fetchNextPage (spec §4.6).
func (it *Iterator) FetchNextPage() (bool, error) { return it.fetchNextPage() }

// Pages returns the page buffer fetched so far.
func (it *Iterator) Pages() []Page { return it.pages }
