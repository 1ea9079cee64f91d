package matroska

import (
	"fmt"
	"hash/crc32"
	"io"

	"github.com/mutwol/tagparser/containererr"
	"github.com/mutwol/tagparser/ebml"
	"github.com/mutwol/tagparser/notice"
)

// HeaderFields mirrors the EBML header element's fields (spec §3 "Matroska
// container state").
type HeaderFields struct {
	Version              uint64
	ReadVersion          uint64
	MaxIDLength          uint64
	MaxSizeLength        uint64
	DocType              string
	DocTypeVersion       uint64
	DocTypeReadVersion   uint64
}

func (h HeaderFields) data() []byte {
	var data []byte
	data = appendElement(data, IDEBMLVersion, ebml.PutUint(h.Version))
	data = appendElement(data, IDEBMLReadVersion, ebml.PutUint(h.ReadVersion))
	data = appendElement(data, IDEBMLMaxIDLength, ebml.PutUint(h.MaxIDLength))
	data = appendElement(data, IDEBMLMaxSizeLength, ebml.PutUint(h.MaxSizeLength))
	data = appendElement(data, IDDocType, ebml.PutString(h.DocType))
	data = appendElement(data, IDDocTypeVersion, ebml.PutUint(h.DocTypeVersion))
	data = appendElement(data, IDDocTypeReadVersion, ebml.PutUint(h.DocTypeReadVersion))
	return data
}

// RequiredSize returns the encoded size of the EBML header element.
func (h HeaderFields) RequiredSize() uint64 {
	return ebml.ElementSize(IDEBMLHeader, uint64(len(h.data())))
}

// Write emits the EBML header element to w.
func (h HeaderFields) Write(w io.Writer) error {
	_, err := ebml.WriteElement(w, IDEBMLHeader, h.data())
	return err
}

// crc32Placeholder records where a CRC-32 element's 4-byte payload was
// written, along with the byte range it covers, so a final pass (spec
// §4.5 step 6) can compute and patch in the real checksum after the whole
// segment has been written.
type crc32Placeholder struct {
	valueOffset int64 // absolute offset of the 4-byte CRC-32 payload
	regionStart int64 // absolute offset immediately after the CRC-32 element
	regionEnd   int64 // absolute offset one past the end of the covered region
}

// SegmentWriter streams one or more SegmentPlans to an output stream (C9).
// It is single-use: create one per write operation.
type SegmentWriter struct {
	Output   io.WriteSeeker
	Bus      *notice.Bus
	Abort    ebml.AbortFunc
	Progress ebml.ProgressFunc

	placeholders []crc32Placeholder
}

// NewSegmentWriter returns a writer targeting output.
func NewSegmentWriter(output io.WriteSeeker, bus *notice.Bus) *SegmentWriter {
	return &SegmentWriter{Output: output, Bus: bus}
}

func (w *SegmentWriter) checkAbort() error {
	if w.Abort != nil && w.Abort() {
		return containererr.ErrAborted
	}
	return nil
}

func (w *SegmentWriter) offset() (int64, error) {
	return w.Output.Seek(0, io.SeekCurrent)
}

// WriteHeader emits the EBML header element.
func (w *SegmentWriter) WriteHeader(h HeaderFields) error {
	return h.Write(w.Output)
}

// segmentContent bundles the makers/updater a single segment's plan draws
// from; WriteSegment needs both the plan (what goes where) and this (what
// bytes to actually emit).
type segmentContent struct {
	Info        *SegmentInfoMaker
	Tracks      *TracksMaker
	Chapters    *ChaptersMaker
	Tags        *TagsMaker
	Attachments *AttachmentsMaker
}

// WriteSegment emits one segment per plan, in the order spec §4.5 step 3
// describes, and records any CRC-32 placeholder for the final fixup pass.
func (w *SegmentWriter) WriteSegment(plan *SegmentPlan, content *segmentContent) error {
	if err := w.checkAbort(); err != nil {
		return err
	}
	if err := ebml.WriteHeader(w.Output, IDSegment, plan.TotalDataSize); err != nil {
		return fmt.Errorf("write segment header: %w", err)
	}
	if plan.HasCRC32 {
		if err := w.writeCRC32Placeholder(); err != nil {
			return err
		}
	}
	if err := plan.SeekInfo.Make(w.Output); err != nil {
		return fmt.Errorf("write seek head: %w", err)
	}
	if err := content.Info.Make(w.Output); err != nil {
		return fmt.Errorf("write segment info: %w", err)
	}
	if content.Tracks != nil {
		if err := content.Tracks.Make(w.Output); err != nil {
			return fmt.Errorf("write tracks: %w", err)
		}
	}
	if content.Chapters != nil {
		if err := content.Chapters.Make(w.Output); err != nil {
			return fmt.Errorf("write chapters: %w", err)
		}
	}
	if plan.TagPos == PositionBeforeData {
		if err := w.writeTagsAndAttachments(content); err != nil {
			return err
		}
	}
	if plan.CuesPos == PositionBeforeData && plan.CuesUpdater != nil {
		if err := plan.CuesUpdater.Make(w.Output); err != nil {
			return fmt.Errorf("write cues: %w", err)
		}
	}
	if err := w.writeVoid(plan.NewPadding); err != nil {
		return err
	}
	for i, cp := range plan.Clusters {
		if err := w.checkAbort(); err != nil {
			return err
		}
		if err := w.writeCluster(plan, cp); err != nil {
			return fmt.Errorf("write cluster %d: %w", i, err)
		}
		if w.Progress != nil {
			w.Progress(int64(i+1), int64(len(plan.Clusters)))
		}
	}
	if plan.CuesPos == PositionAfterData && plan.CuesUpdater != nil {
		if err := plan.CuesUpdater.Make(w.Output); err != nil {
			return fmt.Errorf("write cues: %w", err)
		}
	}
	if plan.TagPos == PositionAfterData {
		if err := w.writeTagsAndAttachments(content); err != nil {
			return err
		}
	}
	return nil
}

// writePatchHead writes everything from the start of a segment's data up to
// (but not including) its first Cluster: SeekHead, SegmentInfo, Tracks,
// Chapters, before-data Tags/Attachments/Cues, and the Void padding that
// absorbs whatever room is left before the existing, untouched Cluster
// bytes. The Segment element's own header is never rewritten in patch mode.
func (w *SegmentWriter) writePatchHead(plan *SegmentPlan, content *segmentContent) error {
	if err := plan.SeekInfo.Make(w.Output); err != nil {
		return fmt.Errorf("write seek head: %w", err)
	}
	if err := content.Info.Make(w.Output); err != nil {
		return fmt.Errorf("write segment info: %w", err)
	}
	if content.Tracks != nil {
		if err := content.Tracks.Make(w.Output); err != nil {
			return fmt.Errorf("write tracks: %w", err)
		}
	}
	if content.Chapters != nil {
		if err := content.Chapters.Make(w.Output); err != nil {
			return fmt.Errorf("write chapters: %w", err)
		}
	}
	if plan.TagPos == PositionBeforeData {
		if err := w.writeTagsAndAttachments(content); err != nil {
			return err
		}
	}
	if plan.CuesPos == PositionBeforeData && plan.CuesUpdater != nil {
		if err := plan.CuesUpdater.Make(w.Output); err != nil {
			return fmt.Errorf("write cues: %w", err)
		}
	}
	return w.writeVoid(plan.NewPadding)
}

// writeTagsAndAttachmentsIfAfter writes the after-data Cues and/or
// Tags/Attachments for a patched segment, called once positioned at the end
// of that segment's last (untouched) Cluster.
func (w *SegmentWriter) writeTagsAndAttachmentsIfAfter(plan *SegmentPlan, content *segmentContent) error {
	if plan.CuesPos == PositionAfterData && plan.CuesUpdater != nil {
		if err := plan.CuesUpdater.Make(w.Output); err != nil {
			return fmt.Errorf("write cues: %w", err)
		}
	}
	if plan.TagPos == PositionAfterData {
		if err := w.writeTagsAndAttachments(content); err != nil {
			return err
		}
	}
	return nil
}

func (w *SegmentWriter) writeTagsAndAttachments(content *segmentContent) error {
	if content.Tags != nil {
		if err := content.Tags.Make(w.Output); err != nil {
			return fmt.Errorf("write tags: %w", err)
		}
	}
	if content.Attachments != nil {
		if err := content.Attachments.Make(w.Output); err != nil {
			return fmt.Errorf("write attachments: %w", err)
		}
	}
	return nil
}

// writeVoid emits a Void element whose total encoded length equals
// totalLen, using a 1- or 8-byte size denotation as spec §4.5 step 3
// requires. totalLen of 0 writes nothing.
func (w *SegmentWriter) writeVoid(totalLen uint64) error {
	if totalLen == 0 {
		return nil
	}
	if totalLen < 2 {
		return fmt.Errorf("void element of length %d is not representable: %w", totalLen, containererr.ErrInvalidData)
	}
	// IDVoid is a single byte (0xEC); the remaining bytes are the size
	// denotation plus filler payload. Try a 1-byte size denotation first,
	// falling back to 8 bytes for large padding (spec §4.5 step 3).
	sizeLen := 1
	if ebml.MinWidth(totalLen-2) > 1 {
		sizeLen = 8
	}
	dataLen := totalLen - 1 - uint64(sizeLen)
	sizeBytes, err := ebml.WriteSize(dataLen, sizeLen)
	if err != nil {
		return fmt.Errorf("encode void size: %w", err)
	}
	if _, err := w.Output.Write(ebml.WriteID(IDVoid)); err != nil {
		return fmt.Errorf("write void id: %w", containererr.ErrIO)
	}
	if _, err := w.Output.Write(sizeBytes); err != nil {
		return fmt.Errorf("write void size: %w", containererr.ErrIO)
	}
	if dataLen > 0 {
		filler := make([]byte, dataLen)
		if _, err := w.Output.Write(filler); err != nil {
			return fmt.Errorf("write void filler: %w", containererr.ErrIO)
		}
	}
	return nil
}

// writeCluster emits one cluster: verbatim copy on the patch path
// (ReadOffset == WriteOffset, nothing moved), or a rebuilt element on the
// rewrite path with Position re-encoded and Void/CRC-32 children dropped.
func (w *SegmentWriter) writeCluster(plan *SegmentPlan, cp clusterPlan) error {
	if !plan.RewriteRequired {
		return cp.Source.CopyEntirely(w.Output, w.Abort, w.Progress)
	}
	if err := ebml.WriteHeader(w.Output, IDCluster, cp.DataSize); err != nil {
		return err
	}
	child, err := cp.Source.FirstChild()
	if err != nil {
		return err
	}
	for child != nil {
		switch child.ID {
		case IDVoid, IDCRC32:
		case IDPosition:
			if err := writeElementRaw(w.Output, IDPosition, ebml.PutUint(cp.WriteOffset)); err != nil {
				return err
			}
		default:
			if err := child.CopyEntirely(w.Output, w.Abort, w.Progress); err != nil {
				return err
			}
		}
		child, err = child.NextSibling()
		if err != nil {
			return err
		}
	}
	return nil
}

func writeElementRaw(w io.Writer, id uint32, data []byte) error {
	_, err := ebml.WriteElement(w, id, data)
	return err
}

func (w *SegmentWriter) writeCRC32Placeholder() error {
	valueOffset, err := w.offset()
	if err != nil {
		return err
	}
	// CRC-32 element header (ID 0xBF, 1-byte size denotation for length 4)
	// followed by a zero payload to be patched in the fixup pass.
	if _, err := ebml.WriteElement(w.Output, IDCRC32, make([]byte, 4)); err != nil {
		return err
	}
	valueOffset += int64(ebml.HeaderSize(IDCRC32, 4))
	w.placeholders = append(w.placeholders, crc32Placeholder{valueOffset: valueOffset, regionStart: valueOffset + 4})
	return nil
}

// FixupCRC32 recomputes and patches every recorded CRC-32 placeholder. rw
// must be the freshly-written output reopened for read+write; regionEnd for
// each placeholder must already be set by the caller (the enclosing
// element's end offset) before calling this.
func FixupCRC32(rw io.ReadWriteSeeker, placeholders []crc32Placeholder) error {
	for _, p := range placeholders {
		if p.regionEnd <= p.regionStart {
			continue
		}
		if _, err := rw.Seek(p.regionStart, io.SeekStart); err != nil {
			return fmt.Errorf("seek to crc32 region: %w", containererr.ErrIO)
		}
		buf := make([]byte, p.regionEnd-p.regionStart)
		if _, err := io.ReadFull(rw, buf); err != nil {
			return fmt.Errorf("read crc32 region: %w", containererr.ErrTruncatedData)
		}
		sum := crc32.ChecksumIEEE(buf)
		var le [4]byte
		le[0] = byte(sum)
		le[1] = byte(sum >> 8)
		le[2] = byte(sum >> 16)
		le[3] = byte(sum >> 24)
		if _, err := rw.Seek(p.valueOffset, io.SeekStart); err != nil {
			return fmt.Errorf("seek to crc32 value: %w", containererr.ErrIO)
		}
		if _, err := rw.Write(le[:]); err != nil {
			return fmt.Errorf("write crc32 value: %w", containererr.ErrIO)
		}
	}
	return nil
}

// Placeholders exposes the recorded CRC-32 placeholders so the caller
// (typically Container.ApplyChanges) can fill in each regionEnd once the
// enclosing element's true extent is known, then call FixupCRC32.
func (w *SegmentWriter) Placeholders() []crc32Placeholder {
	return w.placeholders
}

// SetPlaceholderRegion sets the covered byte range for the i'th recorded
// CRC-32 placeholder, in write order.
func (w *SegmentWriter) SetPlaceholderRegion(i int, start, end int64) {
	w.placeholders[i].regionStart = start
	w.placeholders[i].regionEnd = end
}
