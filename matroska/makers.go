package matroska

import (
	"io"

	"github.com/mutwol/tagparser/ebml"
)

// Maker is a serialiser that can report its own encoded size before being
// asked to actually write anything, exactly the contract the planner (C8)
// needs for tag_maker[]/attachment_maker[]/"Tracks"/"Chapters" sizing in
// spec §4.4. Grounded on the teacher's and pack repos' general pattern of
// separating size computation from writing (e.g. luispater-matroska-go's
// EBMLElement.TotalSize vs its copy helpers) generalised to mutable content.
type Maker interface {
	RequiredSize() uint64
	Make(w io.Writer) error
}

func simpleTagData(st SimpleTag) []byte {
	var data []byte
	data = appendElement(data, IDTagName, ebml.PutString(st.Name))
	if st.Language != "" {
		data = appendElement(data, IDTagLanguage, ebml.PutString(st.Language))
	}
	data = appendElement(data, IDTagDefault, ebml.PutUint(boolToUint(st.Default)))
	if st.Binary != nil {
		data = appendElement(data, IDTagBinary, st.Binary)
	} else {
		data = appendElement(data, IDTagString, ebml.PutString(st.String))
	}
	return data
}

func targetsData(t TagTarget) []byte {
	var data []byte
	if t.TargetTypeValue != 0 {
		data = appendElement(data, IDTargetTypeValue, ebml.PutUint(t.TargetTypeValue))
	}
	if t.TargetType != "" {
		data = appendElement(data, IDTargetType, ebml.PutString(t.TargetType))
	}
	for _, uid := range t.TrackUIDs {
		data = appendElement(data, IDTagTrackUID, ebml.PutUint(uid))
	}
	for _, uid := range t.ChapterUIDs {
		data = appendElement(data, IDTagChapterUID, ebml.PutUint(uid))
	}
	for _, uid := range t.AttachmentUIDs {
		data = appendElement(data, IDTagAttachmentUID, ebml.PutUint(uid))
	}
	return data
}

func tagData(tag *Tag) []byte {
	var data []byte
	data = appendElement(data, IDTargets, targetsData(tag.Target))
	for _, st := range tag.SimpleTags {
		data = appendElement(data, IDSimpleTag, simpleTagData(st))
	}
	return data
}

// TagsMaker serialises the Tags top-level element from a mutable list of
// Tag values (§12 TagTarget supplement included).
type TagsMaker struct {
	Tags []*Tag
}

func (m *TagsMaker) RequiredSize() uint64 {
	if len(m.Tags) == 0 {
		return 0
	}
	var dataSize uint64
	for _, t := range m.Tags {
		dataSize += ebml.ElementSize(IDTag, uint64(len(tagData(t))))
	}
	return ebml.ElementSize(IDTags, dataSize)
}

func (m *TagsMaker) Make(w io.Writer) error {
	if len(m.Tags) == 0 {
		return nil
	}
	var data []byte
	for _, t := range m.Tags {
		data = appendElement(data, IDTag, tagData(t))
	}
	_, err := ebml.WriteElement(w, IDTags, data)
	return err
}

func attachedFileData(a *Attachment) []byte {
	var data []byte
	if a.Description != "" {
		data = appendElement(data, IDFileDescription, ebml.PutString(a.Description))
	}
	data = appendElement(data, IDFileName, ebml.PutString(a.Name))
	data = appendElement(data, IDFileMimeType, ebml.PutString(a.MimeType))
	data = appendElement(data, IDFileData, a.Data)
	data = appendElement(data, IDFileUID, ebml.PutUint(a.UID))
	return data
}

// AttachmentsMaker serialises the Attachments top-level element.
type AttachmentsMaker struct {
	Attachments []*Attachment
}

func (m *AttachmentsMaker) RequiredSize() uint64 {
	if len(m.Attachments) == 0 {
		return 0
	}
	var dataSize uint64
	for _, a := range m.Attachments {
		dataSize += ebml.ElementSize(IDAttachedFile, uint64(len(attachedFileData(a))))
	}
	return ebml.ElementSize(IDAttachments, dataSize)
}

func (m *AttachmentsMaker) Make(w io.Writer) error {
	if len(m.Attachments) == 0 {
		return nil
	}
	var data []byte
	for _, a := range m.Attachments {
		data = appendElement(data, IDAttachedFile, attachedFileData(a))
	}
	_, err := ebml.WriteElement(w, IDAttachments, data)
	return err
}

func videoData(v VideoInfo) []byte {
	var data []byte
	data = appendElement(data, IDPixelWidth, ebml.PutUint(uint64(v.PixelWidth)))
	data = appendElement(data, IDPixelHeight, ebml.PutUint(uint64(v.PixelHeight)))
	if v.DisplayWidth != 0 && v.DisplayWidth != v.PixelWidth {
		data = appendElement(data, IDDisplayWidth, ebml.PutUint(uint64(v.DisplayWidth)))
	}
	if v.DisplayHeight != 0 && v.DisplayHeight != v.PixelHeight {
		data = appendElement(data, IDDisplayHeight, ebml.PutUint(uint64(v.DisplayHeight)))
	}
	if v.Interlaced {
		data = appendElement(data, IDFlagInterlaced, ebml.PutUint(1))
	}
	return data
}

func audioData(a AudioInfo) []byte {
	var data []byte
	data = appendElement(data, IDSamplingFrequency, ebml.PutFloat64(a.SamplingFreq))
	if a.OutputSamplingFreq != 0 && a.OutputSamplingFreq != a.SamplingFreq {
		data = appendElement(data, IDOutputSamplingFrequency, ebml.PutFloat64(a.OutputSamplingFreq))
	}
	data = appendElement(data, IDChannels, ebml.PutUint(uint64(a.Channels)))
	if a.BitDepth != 0 {
		data = appendElement(data, IDBitDepth, ebml.PutUint(uint64(a.BitDepth)))
	}
	return data
}

func trackEntryData(t *TrackInfo) []byte {
	var data []byte
	data = appendElement(data, IDTrackNum, ebml.PutUint(uint64(t.Number)))
	data = appendElement(data, IDTrackUID, ebml.PutUint(t.UID))
	data = appendElement(data, IDTrackType, ebml.PutUint(uint64(t.Type)))
	if t.Name != "" {
		data = appendElement(data, IDTrackName, ebml.PutString(t.Name))
	}
	data = appendElement(data, IDLanguage, ebml.PutString(t.Language))
	data = appendElement(data, IDCodecID, ebml.PutString(t.CodecID))
	if t.CodecPrivate != nil {
		data = appendElement(data, IDCodecPriv, t.CodecPrivate)
	}
	data = appendElement(data, IDFlagEnabled, ebml.PutUint(boolToUint(t.Enabled)))
	data = appendElement(data, IDFlagDefault, ebml.PutUint(boolToUint(t.Default)))
	data = appendElement(data, IDFlagLacing, ebml.PutUint(boolToUint(t.Lacing)))
	switch t.Type {
	case 1:
		data = appendElement(data, IDVideo, videoData(t.Video))
	case 2:
		data = appendElement(data, IDAudio, audioData(t.Audio))
	}
	return data
}

// TracksMaker serialises the Tracks top-level element.
type TracksMaker struct {
	Tracks []*TrackInfo
}

func (m *TracksMaker) RequiredSize() uint64 {
	if len(m.Tracks) == 0 {
		return 0
	}
	var dataSize uint64
	for _, t := range m.Tracks {
		dataSize += ebml.ElementSize(IDTrackEntry, uint64(len(trackEntryData(t))))
	}
	return ebml.ElementSize(IDTracks, dataSize)
}

func (m *TracksMaker) Make(w io.Writer) error {
	if len(m.Tracks) == 0 {
		return nil
	}
	var data []byte
	for _, t := range m.Tracks {
		data = appendElement(data, IDTrackEntry, trackEntryData(t))
	}
	_, err := ebml.WriteElement(w, IDTracks, data)
	return err
}

func chapterDisplayData(d ChapterDisplay) []byte {
	var data []byte
	data = appendElement(data, IDChapString, ebml.PutString(d.String))
	if d.Language != "" {
		data = appendElement(data, IDChapLanguage, ebml.PutString(d.Language))
	}
	return data
}

func chapterAtomData(ch *Chapter) []byte {
	var data []byte
	data = appendElement(data, IDChapterUID, ebml.PutUint(ch.UID))
	data = appendElement(data, IDChapterTimeStart, ebml.PutUint(ch.TimeStart))
	if ch.TimeEnd != 0 {
		data = appendElement(data, IDChapterTimeEnd, ebml.PutUint(ch.TimeEnd))
	}
	for _, d := range ch.Displays {
		data = appendElement(data, IDChapterDisplay, chapterDisplayData(d))
	}
	for _, sub := range ch.SubChapters {
		data = appendElement(data, IDChapterAtom, chapterAtomData(sub))
	}
	return data
}

// ChaptersMaker serialises the Chapters top-level element as a single
// EditionEntry wrapping the top-level chapter atoms.
type ChaptersMaker struct {
	Chapters []*Chapter
}

func (m *ChaptersMaker) editionData() []byte {
	var data []byte
	for _, ch := range m.Chapters {
		data = appendElement(data, IDChapterAtom, chapterAtomData(ch))
	}
	return data
}

func (m *ChaptersMaker) RequiredSize() uint64 {
	if len(m.Chapters) == 0 {
		return 0
	}
	editionSize := ebml.ElementSize(IDEditionEntry, uint64(len(m.editionData())))
	return ebml.ElementSize(IDChapters, editionSize)
}

func (m *ChaptersMaker) Make(w io.Writer) error {
	if len(m.Chapters) == 0 {
		return nil
	}
	data := appendElement(nil, IDEditionEntry, m.editionData())
	_, err := ebml.WriteElement(w, IDChapters, data)
	return err
}

// segmentInfoData serialises SegmentInfo, always re-emitting MuxingApp,
// WritingApp and Title per spec §4.5 item 3.
func segmentInfoData(info *SegmentInfo) []byte {
	var data []byte
	if info.UID != ([16]byte{}) {
		data = appendElement(data, IDSegmentUID, info.UID[:])
	}
	if info.Filename != "" {
		data = appendElement(data, IDSegmentFName, ebml.PutString(info.Filename))
	}
	if info.PrevUID != ([16]byte{}) {
		data = appendElement(data, IDPrevUID, info.PrevUID[:])
	}
	if info.PrevFilename != "" {
		data = appendElement(data, IDPrevFilename, ebml.PutString(info.PrevFilename))
	}
	if info.NextUID != ([16]byte{}) {
		data = appendElement(data, IDNextUID, info.NextUID[:])
	}
	if info.NextFilename != "" {
		data = appendElement(data, IDNextFilename, ebml.PutString(info.NextFilename))
	}
	data = appendElement(data, IDTimecodeScale, ebml.PutUint(info.TimecodeScale))
	if info.Duration != 0 {
		data = appendElement(data, IDDuration, ebml.PutFloat64(float64(info.Duration)))
	}
	if info.DateUTCValid {
		data = appendElement(data, IDDateUTC, ebml.PutUint(uint64(info.DateUTC)))
	}
	data = appendElement(data, IDTitle, ebml.PutString(info.Title))
	data = appendElement(data, IDMuxingApp, ebml.PutString(info.MuxingApp))
	data = appendElement(data, IDWritingApp, ebml.PutString(info.WritingApp))
	return data
}

// SegmentInfoMaker serialises the SegmentInfo element.
type SegmentInfoMaker struct {
	Info *SegmentInfo
}

func (m *SegmentInfoMaker) RequiredSize() uint64 {
	return ebml.ElementSize(IDSegmentInfo, uint64(len(segmentInfoData(m.Info))))
}

func (m *SegmentInfoMaker) Make(w io.Writer) error {
	_, err := ebml.WriteElement(w, IDSegmentInfo, segmentInfoData(m.Info))
	return err
}

func boolToUint(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
