package matroska

import (
	"io"

	"github.com/mutwol/tagparser/ebml"
	"github.com/mutwol/tagparser/notice"
)

// seekEntry is one (element ID, offset-within-segment-data) pair. Grounded
// on spec §4.2/§3 C5: offsets are measured from the start of the owning
// segment's data region, not the file.
type seekEntry struct {
	id     uint32
	offset uint64
	used   bool
}

// SeekInfo is the in-memory SeekHead model (C5): an ordered list of entries
// that can be grown during planning, with push() reporting whether the
// SeekHead element's own encoded size changed as a result, so the planner
// knows to iterate (spec §4.2, §4.4).
type SeekInfo struct {
	entries []seekEntry
	Bus     *notice.Bus
}

// NewSeekInfo returns an empty SeekInfo bound to bus for notifications.
func NewSeekInfo(bus *notice.Bus) *SeekInfo {
	return &SeekInfo{Bus: bus}
}

func seekEntrySize(e seekEntry) uint64 {
	idData := ebml.WriteID(e.id)
	posData := ebml.PutUint(e.offset)
	seekIDSize := ebml.ElementSize(IDSeekID, uint64(len(idData)))
	seekPosSize := ebml.ElementSize(IDSeekPos, uint64(len(posData)))
	return ebml.ElementSize(IDSeek, seekIDSize+seekPosSize)
}

// Push inserts or updates the entry at index with (elementID, offset) and
// reports whether doing so changed ActualSize(). index addresses independent
// slots (the planner uses one index per tracked element kind, e.g. 0 for
// SegmentInfo, 1 for Tracks, ..., 6 for the first Cluster), matching spec §4.2's push(index, id, offset).
func (s *SeekInfo) Push(index int, elementID uint32, offset uint64) bool {
	before := s.ActualSize()
	for len(s.entries) <= index {
		s.entries = append(s.entries, seekEntry{})
	}
	s.entries[index] = seekEntry{id: elementID, offset: offset, used: true}
	after := s.ActualSize()
	return before != after
}

// ActualSize returns the encoded size of the SeekHead element, including its
// own header, or 0 if there are no entries (in which case no SeekHead is
// emitted at all).
func (s *SeekInfo) ActualSize() uint64 {
	var dataSize uint64
	for _, e := range s.entries {
		if e.used {
			dataSize += seekEntrySize(e)
		}
	}
	if dataSize == 0 {
		return 0
	}
	return ebml.ElementSize(IDSeekHead, dataSize)
}

// Make emits the SeekHead element (including its own header) to w. It is a
// no-op (writes nothing, returns nil) when there are no entries.
func (s *SeekInfo) Make(w io.Writer) error {
	if s.ActualSize() == 0 {
		return nil
	}
	var data []byte
	for _, e := range s.entries {
		if !e.used {
			continue
		}
		idData := ebml.WriteID(e.id)
		posData := ebml.PutUint(e.offset)
		var seekData []byte
		seekData = appendElement(seekData, IDSeekID, idData)
		seekData = appendElement(seekData, IDSeekPos, posData)
		data = appendElement(data, IDSeek, seekData)
	}
	_, err := ebml.WriteElement(w, IDSeekHead, data)
	return err
}

// appendElement encodes one element (id + minimum-width size + data) and
// appends it to buf, panicking only on an encoding bug (a data size that
// cannot be represented), which cannot happen for the bounded sizes used
// here.
func appendElement(buf []byte, id uint32, data []byte) []byte {
	idBytes := ebml.WriteID(id)
	sizeBytes, err := ebml.WriteSize(uint64(len(data)), 0)
	if err != nil {
		panic(err)
	}
	buf = append(buf, idBytes...)
	buf = append(buf, sizeBytes...)
	buf = append(buf, data...)
	return buf
}
