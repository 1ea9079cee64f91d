// Package mp4 sketches the ISO-BMFF chunk-offset / sample-to-chunk mechanics
// that are structurally analogous to the Matroska cue/cluster problem: box
// header scanning and the stco/co64 table rewrite performed when the media
// data (mdat) a track's chunks point into is relocated. Grounded on
// original_source/mp4/mp4track.cpp for the offset-table semantics and on
// other_examples/tetsuo-mp4__box.go and other_examples/banlong-mp4__mdat.go
// for idiomatic Go box-header layout.
package mp4

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mutwol/tagparser/containererr"
)

// boxHeaderMinSize is the size of a box header before any extended-size
// field.
const boxHeaderMinSize = 8

// BoxType is a 4-byte box type identifier.
type BoxType [4]byte

func (t BoxType) String() string { return string(t[:]) }

func boxType(s string) BoxType {
	var t BoxType
	copy(t[:], s)
	return t
}

// Known box types relevant to the chunk-offset update walk.
var (
	TypeMoov = boxType("moov")
	TypeTrak = boxType("trak")
	TypeMdia = boxType("mdia")
	TypeMinf = boxType("minf")
	TypeStbl = boxType("stbl")
	TypeStsc = boxType("stsc")
	TypeStsz = boxType("stsz")
	TypeStz2 = boxType("stz2")
	TypeStco = boxType("stco")
	TypeCo64 = boxType("co64")
	TypeMdat = boxType("mdat")
)

// containerBoxTypes holds every box type whose body is itself a sequence of
// child boxes, rather than opaque data.
var containerBoxTypes = map[BoxType]bool{
	TypeMoov: true,
	TypeTrak: true,
	TypeMdia: true,
	TypeMinf: true,
	TypeStbl: true,
}

// Box is a parsed ISO-BMFF box header: its type, its absolute start offset,
// and the byte range of its data payload (excluding the header).
type Box struct {
	Type       BoxType
	StartOffset int64
	HeaderSize  int64
	DataSize    int64
}

// DataOffset is the absolute offset of the first byte of the box's payload.
func (b Box) DataOffset() int64 { return b.StartOffset + b.HeaderSize }

// TotalSize is the header size plus the data size.
func (b Box) TotalSize() int64 { return b.HeaderSize + b.DataSize }

// ReadBoxHeader reads one box header (4-byte size, 4-byte type, and the
// 8-byte extended size when size==1) at the reader's current position.
// streamSize bounds a size==0 "extends to EOF" box.
func ReadBoxHeader(r io.Reader, startOffset int64, streamSize int64) (Box, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Box{}, fmt.Errorf("read mp4 box header: %w", containererr.ErrTruncatedData)
	}
	size := int64(binary.BigEndian.Uint32(header[0:4]))
	var t BoxType
	copy(t[:], header[4:8])
	headerSize := int64(boxHeaderMinSize)
	switch size {
	case 0:
		if streamSize <= 0 {
			return Box{}, fmt.Errorf("mp4 box with size 0 outside a bounded stream: %w", containererr.ErrInvalidData)
		}
		return Box{Type: t, StartOffset: startOffset, HeaderSize: headerSize, DataSize: streamSize - startOffset - headerSize}, nil
	case 1:
		var extended [8]byte
		if _, err := io.ReadFull(r, extended[:]); err != nil {
			return Box{}, fmt.Errorf("read mp4 extended box size: %w", containererr.ErrTruncatedData)
		}
		headerSize += 8
		size = int64(binary.BigEndian.Uint64(extended[:]))
	}
	if size < headerSize {
		return Box{}, fmt.Errorf("mp4 box at %d reports size smaller than its header: %w", startOffset, containererr.ErrInvalidData)
	}
	return Box{Type: t, StartOffset: startOffset, HeaderSize: headerSize, DataSize: size - headerSize}, nil
}

// FindChildBoxes scans the direct children of a box whose payload starts at
// dataOffset and spans dataSize bytes.
func FindChildBoxes(r io.ReadSeeker, dataOffset, dataSize int64) ([]Box, error) {
	var boxes []Box
	end := dataOffset + dataSize
	offset := dataOffset
	for offset < end {
		if _, err := r.Seek(offset, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seek to mp4 box at %d: %w", offset, containererr.ErrIO)
		}
		box, err := ReadBoxHeader(r, offset, end)
		if err != nil {
			return nil, err
		}
		if box.TotalSize() <= 0 || offset+box.TotalSize() > end {
			return nil, fmt.Errorf("mp4 box %q at %d overruns its parent: %w", box.Type, offset, containererr.ErrInvalidData)
		}
		boxes = append(boxes, box)
		offset += box.TotalSize()
	}
	return boxes, nil
}

// FindDescendant walks a chain of box types from an ancestor's payload down
// to a single descendant, descending one container level per path element.
// Raises invalid_data if an intermediate box is not a recognised container.
func FindDescendant(r io.ReadSeeker, ancestor Box, path ...BoxType) (Box, error) {
	current := ancestor
	for _, want := range path {
		if !containerBoxTypes[current.Type] {
			return Box{}, fmt.Errorf("mp4 box %q is not a container: %w", current.Type, containererr.ErrInvalidData)
		}
		children, err := FindChildBoxes(r, current.DataOffset(), current.DataSize)
		if err != nil {
			return Box{}, err
		}
		found := false
		for _, child := range children {
			if child.Type == want {
				current = child
				found = true
				break
			}
		}
		if !found {
			return Box{}, fmt.Errorf("mp4 box %q not found under %q: %w", want, ancestor.Type, containererr.ErrNoDataFound)
		}
	}
	return current, nil
}
