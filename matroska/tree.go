package matroska

import (
	"io"

	"github.com/mutwol/tagparser/ebml"
)

// decoder implements ebml.Decoder for plain EBML framing, shared by the
// EBML header, the Segment, and everything nested inside it. Grounded on
// the teacher's ReadVIntID/ReadVInt pair in ebml.go, rehomed onto the
// generic tree element via ebml.ReadVInt.
type decoder struct{}

// Decoder is the singleton ebml.Decoder for Matroska trees.
var Decoder ebml.Decoder = decoder{}

func (decoder) DecodeHeader(r io.ReadSeeker, startOffset uint64) (id uint32, idLength, dataSize, sizeLength uint64, err error) {
	if _, err = r.Seek(int64(startOffset), io.SeekStart); err != nil {
		return 0, 0, 0, 0, err
	}
	idVal, idWidth, err := ebml.ReadVInt(r, true)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	sizeVal, sizeWidth, err := ebml.ReadVInt(r, false)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return uint32(idVal), uint64(idWidth), sizeVal, uint64(sizeWidth), nil
}

var parentIDs = map[uint32]bool{
	IDEBMLHeader:        true,
	IDSegment:           true,
	IDSeekHead:          true,
	IDSeek:              true,
	IDSegmentInfo:       true,
	IDTracks:            true,
	IDTrackEntry:        true,
	IDVideo:             true,
	IDAudio:             true,
	IDCluster:           true,
	IDBlockGroup:        true,
	IDCues:              true,
	IDCuePoint:          true,
	IDCueTrackPositions: true,
	IDChapters:          true,
	IDEditionEntry:      true,
	IDChapterAtom:       true,
	IDChapterDisplay:    true,
	IDTags:              true,
	IDTag:                true,
	IDTargets:            true,
	IDSimpleTag:          true,
	IDAttachments:        true,
	IDAttachedFile:       true,
}

func (decoder) IsParent(id uint32) bool { return parentIDs[id] }

func (decoder) IsPadding(id uint32) bool { return id == IDVoid }
