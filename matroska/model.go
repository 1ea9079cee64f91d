package matroska

import (
	"fmt"

	"github.com/mutwol/tagparser/ebml"
)

// SegmentInfo mirrors the teacher's SegmentInfo struct (parser.go), widened
// with the UID/filename/prev/next fields the teacher's parseSegmentInfo
// already decodes but didn't expose on a named type.
type SegmentInfo struct {
	UID           [16]byte
	Filename      string
	PrevUID       [16]byte
	PrevFilename  string
	NextUID       [16]byte
	NextFilename  string
	TimecodeScale uint64
	Duration      uint64
	DateUTC       int64
	DateUTCValid  bool
	Title         string
	MuxingApp     string
	WritingApp    string
}

func parseSegmentInfo(e *ebml.Element) (*SegmentInfo, error) {
	info := &SegmentInfo{TimecodeScale: 1000000}
	child, err := e.FirstChild()
	if err != nil {
		return nil, err
	}
	for child != nil {
		data, derr := child.Data()
		if derr != nil {
			return nil, derr
		}
		switch child.ID {
		case IDSegmentUID:
			if len(data) >= 16 {
				copy(info.UID[:], data[:16])
			}
		case IDSegmentFName:
			info.Filename = ebml.ReadString(data)
		case IDPrevUID:
			if len(data) >= 16 {
				copy(info.PrevUID[:], data[:16])
			}
		case IDPrevFilename:
			info.PrevFilename = ebml.ReadString(data)
		case IDNextUID:
			if len(data) >= 16 {
				copy(info.NextUID[:], data[:16])
			}
		case IDNextFilename:
			info.NextFilename = ebml.ReadString(data)
		case IDTimecodeScale:
			info.TimecodeScale = ebml.ReadUint(data)
		case IDDuration:
			info.Duration = ebml.ReadUint(data)
		case IDDateUTC:
			info.DateUTC = ebml.ReadInt(data)
			info.DateUTCValid = true
		case IDTitle:
			info.Title = ebml.ReadString(data)
		case IDMuxingApp:
			info.MuxingApp = ebml.ReadString(data)
		case IDWritingApp:
			info.WritingApp = ebml.ReadString(data)
		}
		child, err = child.NextSibling()
		if err != nil {
			return nil, err
		}
	}
	return info, nil
}

// VideoInfo mirrors the teacher's TrackInfo.Video fields.
type VideoInfo struct {
	PixelWidth    uint32
	PixelHeight   uint32
	DisplayWidth  uint32
	DisplayHeight uint32
	Interlaced    bool
}

// AudioInfo mirrors the teacher's TrackInfo.Audio fields.
type AudioInfo struct {
	SamplingFreq       float64
	OutputSamplingFreq float64
	Channels           uint8
	BitDepth           uint8
}

// TrackInfo is the teacher's TrackInfo, unchanged in shape (this spec is
// about structural rewriting, not playback, so the field set the teacher
// already parses is sufficient).
type TrackInfo struct {
	Number       uint8
	UID          uint64
	Type         uint8
	Name         string
	Language     string
	CodecID      string
	CodecPrivate []byte
	Enabled      bool
	Default      bool
	Lacing       bool
	Video        VideoInfo
	Audio        AudioInfo
}

func parseTrackEntry(e *ebml.Element) (*TrackInfo, error) {
	track := &TrackInfo{Enabled: true, Default: true, Lacing: true, Language: "eng"}
	child, err := e.FirstChild()
	if err != nil {
		return nil, err
	}
	for child != nil {
		switch child.ID {
		case IDVideo:
			if err = parseVideo(child, track); err != nil {
				return nil, err
			}
			child, err = child.NextSibling()
			continue
		case IDAudio:
			if err = parseAudio(child, track); err != nil {
				return nil, err
			}
			child, err = child.NextSibling()
			continue
		}
		data, derr := child.Data()
		if derr != nil {
			return nil, derr
		}
		switch child.ID {
		case IDTrackNum:
			track.Number = uint8(ebml.ReadUint(data))
		case IDTrackUID:
			track.UID = ebml.ReadUint(data)
		case IDTrackType:
			track.Type = uint8(ebml.ReadUint(data))
		case IDTrackName:
			track.Name = ebml.ReadString(data)
		case IDLanguage:
			if len(data) >= 3 {
				track.Language = string(data[:3])
			}
		case IDCodecID:
			track.CodecID = ebml.ReadString(data)
		case IDCodecPriv:
			track.CodecPrivate = data
		case IDFlagEnabled:
			track.Enabled = ebml.ReadUint(data) != 0
		case IDFlagDefault:
			track.Default = ebml.ReadUint(data) != 0
		case IDFlagLacing:
			track.Lacing = ebml.ReadUint(data) != 0
		}
		child, err = child.NextSibling()
		if err != nil {
			return nil, err
		}
	}
	return track, nil
}

func parseVideo(e *ebml.Element, track *TrackInfo) error {
	child, err := e.FirstChild()
	if err != nil {
		return err
	}
	for child != nil {
		data, derr := child.Data()
		if derr != nil {
			return derr
		}
		switch child.ID {
		case IDPixelWidth:
			track.Video.PixelWidth = uint32(ebml.ReadUint(data))
		case IDPixelHeight:
			track.Video.PixelHeight = uint32(ebml.ReadUint(data))
		case IDDisplayWidth:
			track.Video.DisplayWidth = uint32(ebml.ReadUint(data))
		case IDDisplayHeight:
			track.Video.DisplayHeight = uint32(ebml.ReadUint(data))
		case IDFlagInterlaced:
			track.Video.Interlaced = ebml.ReadUint(data) != 0
		}
		child, err = child.NextSibling()
		if err != nil {
			return err
		}
	}
	if track.Video.DisplayWidth == 0 {
		track.Video.DisplayWidth = track.Video.PixelWidth
	}
	if track.Video.DisplayHeight == 0 {
		track.Video.DisplayHeight = track.Video.PixelHeight
	}
	return nil
}

func parseAudio(e *ebml.Element, track *TrackInfo) error {
	track.Audio.Channels = 1
	track.Audio.SamplingFreq = 8000.0
	child, err := e.FirstChild()
	if err != nil {
		return err
	}
	for child != nil {
		data, derr := child.Data()
		if derr != nil {
			return derr
		}
		switch child.ID {
		case IDSamplingFrequency:
			track.Audio.SamplingFreq = ebml.ReadFloat(data)
		case IDOutputSamplingFrequency:
			track.Audio.OutputSamplingFreq = ebml.ReadFloat(data)
		case IDChannels:
			track.Audio.Channels = uint8(ebml.ReadUint(data))
		case IDBitDepth:
			track.Audio.BitDepth = uint8(ebml.ReadUint(data))
		}
		child, err = child.NextSibling()
		if err != nil {
			return err
		}
	}
	if track.Audio.OutputSamplingFreq == 0 {
		track.Audio.OutputSamplingFreq = track.Audio.SamplingFreq
	}
	return nil
}

// ChapterDisplay is one localized title of a ChapterAtom.
type ChapterDisplay struct {
	String   string
	Language string
}

// Chapter mirrors one ChapterAtom.
type Chapter struct {
	UID        uint64
	TimeStart  uint64
	TimeEnd    uint64
	Displays   []ChapterDisplay
	SubChapters []*Chapter
}

func parseChapterAtom(e *ebml.Element) (*Chapter, error) {
	ch := &Chapter{}
	child, err := e.FirstChild()
	if err != nil {
		return nil, err
	}
	for child != nil {
		if child.ID == IDChapterAtom {
			sub, serr := parseChapterAtom(child)
			if serr != nil {
				return nil, serr
			}
			ch.SubChapters = append(ch.SubChapters, sub)
			child, err = child.NextSibling()
			continue
		}
		if child.ID == IDChapterDisplay {
			disp, derr := parseChapterDisplay(child)
			if derr != nil {
				return nil, derr
			}
			ch.Displays = append(ch.Displays, disp)
			child, err = child.NextSibling()
			continue
		}
		data, derr := child.Data()
		if derr != nil {
			return nil, derr
		}
		switch child.ID {
		case IDChapterUID:
			ch.UID = ebml.ReadUint(data)
		case IDChapterTimeStart:
			ch.TimeStart = ebml.ReadUint(data)
		case IDChapterTimeEnd:
			ch.TimeEnd = ebml.ReadUint(data)
		}
		child, err = child.NextSibling()
		if err != nil {
			return nil, err
		}
	}
	return ch, nil
}

func parseChapterDisplay(e *ebml.Element) (ChapterDisplay, error) {
	var disp ChapterDisplay
	child, err := e.FirstChild()
	if err != nil {
		return disp, err
	}
	for child != nil {
		data, derr := child.Data()
		if derr != nil {
			return disp, derr
		}
		switch child.ID {
		case IDChapString:
			disp.String = ebml.ReadString(data)
		case IDChapLanguage:
			disp.Language = ebml.ReadString(data)
		}
		child, err = child.NextSibling()
		if err != nil {
			return disp, err
		}
	}
	return disp, nil
}

// TagTarget scopes a Tag to specific tracks/chapters/attachments (§12:
// supplemental feature from original_source/tagtarget.h).
type TagTarget struct {
	TargetTypeValue  uint64
	TargetType       string
	TrackUIDs        []uint64
	ChapterUIDs      []uint64
	AttachmentUIDs   []uint64
}

// SimpleTag is one name/value pair inside a Tag.
type SimpleTag struct {
	Name     string
	Language string
	Default  bool
	String   string
	Binary   []byte
}

// Tag is one Tag element: a target scope plus its SimpleTag children.
type Tag struct {
	Target     TagTarget
	SimpleTags []SimpleTag
}

func parseTag(e *ebml.Element) (*Tag, error) {
	tag := &Tag{}
	child, err := e.FirstChild()
	if err != nil {
		return nil, err
	}
	for child != nil {
		switch child.ID {
		case IDTargets:
			if tag.Target, err = parseTargets(child); err != nil {
				return nil, err
			}
		case IDSimpleTag:
			st, serr := parseSimpleTag(child)
			if serr != nil {
				return nil, serr
			}
			tag.SimpleTags = append(tag.SimpleTags, st)
		}
		child, err = child.NextSibling()
		if err != nil {
			return nil, err
		}
	}
	return tag, nil
}

func parseTargets(e *ebml.Element) (TagTarget, error) {
	var t TagTarget
	child, err := e.FirstChild()
	if err != nil {
		return t, err
	}
	for child != nil {
		data, derr := child.Data()
		if derr != nil {
			return t, derr
		}
		switch child.ID {
		case IDTargetTypeValue:
			t.TargetTypeValue = ebml.ReadUint(data)
		case IDTargetType:
			t.TargetType = ebml.ReadString(data)
		case IDTagTrackUID:
			t.TrackUIDs = append(t.TrackUIDs, ebml.ReadUint(data))
		case IDTagChapterUID:
			t.ChapterUIDs = append(t.ChapterUIDs, ebml.ReadUint(data))
		case IDTagAttachmentUID:
			t.AttachmentUIDs = append(t.AttachmentUIDs, ebml.ReadUint(data))
		}
		child, err = child.NextSibling()
		if err != nil {
			return t, err
		}
	}
	return t, nil
}

func parseSimpleTag(e *ebml.Element) (SimpleTag, error) {
	var st SimpleTag
	st.Default = true
	child, err := e.FirstChild()
	if err != nil {
		return st, err
	}
	for child != nil {
		data, derr := child.Data()
		if derr != nil {
			return st, derr
		}
		switch child.ID {
		case IDTagName:
			st.Name = ebml.ReadString(data)
		case IDTagLanguage:
			st.Language = ebml.ReadString(data)
		case IDTagDefault:
			st.Default = ebml.ReadUint(data) != 0
		case IDTagString:
			st.String = ebml.ReadString(data)
		case IDTagBinary:
			st.Binary = data
		}
		child, err = child.NextSibling()
		if err != nil {
			return st, err
		}
	}
	return st, nil
}

// Attachment mirrors one AttachedFile element.
type Attachment struct {
	Description string
	Name        string
	MimeType    string
	Data        []byte
	UID         uint64
}

func parseAttachedFile(e *ebml.Element) (*Attachment, error) {
	a := &Attachment{}
	child, err := e.FirstChild()
	if err != nil {
		return nil, err
	}
	for child != nil {
		data, derr := child.Data()
		if derr != nil {
			return nil, derr
		}
		switch child.ID {
		case IDFileDescription:
			a.Description = ebml.ReadString(data)
		case IDFileName:
			a.Name = ebml.ReadString(data)
		case IDFileMimeType:
			a.MimeType = ebml.ReadString(data)
		case IDFileData:
			a.Data = data
		case IDFileUID:
			a.UID = ebml.ReadUint(data)
		}
		child, err = child.NextSibling()
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Cue is one CuePoint: a time plus one or more track positions.
type Cue struct {
	Time      uint64
	Positions []CueTrackPosition
}

// CueTrackPosition is one CueTrackPositions child of a CuePoint.
type CueTrackPosition struct {
	Track             uint64
	ClusterPosition   uint64
	RelativePosition  uint64
	HasRelativePosition bool
	Duration          uint64
	BlockNumber       uint64
}

func parseCuePoint(e *ebml.Element) (*Cue, error) {
	cue := &Cue{}
	child, err := e.FirstChild()
	if err != nil {
		return nil, err
	}
	for child != nil {
		if child.ID == IDCueTrackPositions {
			pos, perr := parseCueTrackPositions(child)
			if perr != nil {
				return nil, perr
			}
			cue.Positions = append(cue.Positions, pos)
			child, err = child.NextSibling()
			continue
		}
		data, derr := child.Data()
		if derr != nil {
			return nil, derr
		}
		if child.ID == IDCueTime {
			cue.Time = ebml.ReadUint(data)
		}
		child, err = child.NextSibling()
		if err != nil {
			return nil, err
		}
	}
	return cue, nil
}

func parseCueTrackPositions(e *ebml.Element) (CueTrackPosition, error) {
	var p CueTrackPosition
	child, err := e.FirstChild()
	if err != nil {
		return p, err
	}
	for child != nil {
		data, derr := child.Data()
		if derr != nil {
			return p, derr
		}
		switch child.ID {
		case IDCueTrack:
			p.Track = ebml.ReadUint(data)
		case IDCueClusterPosition:
			p.ClusterPosition = ebml.ReadUint(data)
		case IDCueRelativePosition:
			p.RelativePosition = ebml.ReadUint(data)
			p.HasRelativePosition = true
		case IDCueDuration:
			p.Duration = ebml.ReadUint(data)
		case IDCueBlockNumber:
			p.BlockNumber = ebml.ReadUint(data)
		}
		child, err = child.NextSibling()
		if err != nil {
			return p, err
		}
	}
	return p, nil
}

// fmtUID formats a 16-byte UID for error messages (notifications never need
// to print raw binary).
func fmtUID(uid [16]byte) string {
	return fmt.Sprintf("%x", uid)
}
