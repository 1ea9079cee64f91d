package matroska

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/mutwol/tagparser/backup"
	"github.com/mutwol/tagparser/containererr"
	"github.com/mutwol/tagparser/ebml"
	"github.com/mutwol/tagparser/notice"
)

// segmentState is everything a Container knows about one Segment element:
// its parsed metadata (both the read-only view and the editable maker) and
// the read-side Cluster list the planner needs.
type segmentState struct {
	Element *ebml.Element

	Info        *SegmentInfo
	InfoMaker   *SegmentInfoMaker
	Tracks      []*TrackInfo
	TracksMaker *TracksMaker
	Chapters    []*Chapter
	ChaptersMaker *ChaptersMaker
	Tags        []*Tag
	TagsMaker   *TagsMaker
	Attachments []*Attachment
	AttachmentsMaker *AttachmentsMaker
	Cues        *CuesUpdater
	Clusters    []*ebml.Element
	HasCRC32    bool
}

// Container is the public lifecycle object (spec §2): it owns the parsed
// tree, the stream, and the parsed per-segment state, and exposes the
// operations to inspect and rewrite a Matroska file.
type Container struct {
	Source io.ReadSeeker
	Size   uint64
	Header HeaderFields
	Root   *ebml.Element
	Segments []*segmentState
	Policy Policy
	Bus    *notice.Bus

	path  string
	abort int32
}

// Open parses the EBML header and locates every top-level Segment element,
// but does not yet parse their contents (call ParseSegment for that).
func Open(path string, source io.ReadSeeker, size uint64, bus *notice.Bus) (*Container, error) {
	c := &Container{Source: source, Size: size, Bus: bus, path: path}
	root := ebml.NewRoot(source, Decoder, 0, size)
	if err := root.Parse(); err != nil {
		return nil, fmt.Errorf("parse first top-level element: %w", err)
	}
	c.Root = root
	if root.ID != IDEBMLHeader {
		return nil, fmt.Errorf("first element is not an EBML header: %w", containererr.ErrInvalidData)
	}
	if err := c.parseHeader(root); err != nil {
		return nil, err
	}
	seg, err := root.NextSibling()
	if err != nil {
		return nil, fmt.Errorf("locate segment: %w", err)
	}
	for seg != nil {
		if seg.ID == IDSegment {
			c.Segments = append(c.Segments, &segmentState{Element: seg})
		}
		seg, err = seg.NextSibling()
		if err != nil {
			return nil, fmt.Errorf("walk top-level elements: %w", err)
		}
	}
	if len(c.Segments) == 0 {
		return nil, fmt.Errorf("no Segment element found: %w", containererr.ErrNoDataFound)
	}
	return c, nil
}

func (c *Container) parseHeader(root *ebml.Element) error {
	h := HeaderFields{Version: 1, ReadVersion: 1, MaxIDLength: 4, MaxSizeLength: 8, DocType: "matroska", DocTypeVersion: 4, DocTypeReadVersion: 2}
	child, err := root.FirstChild()
	if err != nil {
		return err
	}
	for child != nil {
		data, derr := child.Data()
		if derr != nil {
			return derr
		}
		switch child.ID {
		case IDEBMLVersion:
			h.Version = ebml.ReadUint(data)
		case IDEBMLReadVersion:
			h.ReadVersion = ebml.ReadUint(data)
		case IDEBMLMaxIDLength:
			h.MaxIDLength = ebml.ReadUint(data)
		case IDEBMLMaxSizeLength:
			h.MaxSizeLength = ebml.ReadUint(data)
		case IDDocType:
			h.DocType = ebml.ReadString(data)
		case IDDocTypeVersion:
			h.DocTypeVersion = ebml.ReadUint(data)
		case IDDocTypeReadVersion:
			h.DocTypeReadVersion = ebml.ReadUint(data)
		}
		child, err = child.NextSibling()
		if err != nil {
			return err
		}
	}
	c.Header = h
	return nil
}

// ParseSegment walks the direct children of Segments[idx] and populates its
// SegmentInfo/Tracks/Chapters/Tags/Attachments/Cues and the list of
// top-level Clusters.
func (c *Container) ParseSegment(idx int) error {
	seg := c.Segments[idx]
	child, err := seg.Element.FirstChild()
	if err != nil {
		return err
	}
	for child != nil {
		switch child.ID {
		case IDCRC32:
			seg.HasCRC32 = true
		case IDSegmentInfo:
			info, ierr := parseSegmentInfo(child)
			if ierr != nil {
				c.Bus.Add(notice.Warning, "SegmentInfo", ierr.Error())
			} else {
				seg.Info = info
				seg.InfoMaker = &SegmentInfoMaker{Info: info}
			}
		case IDTracks:
			tc, terr := child.FirstChild()
			if terr != nil {
				return terr
			}
			for tc != nil {
				if tc.ID == IDTrackEntry {
					t, perr := parseTrackEntry(tc)
					if perr != nil {
						c.Bus.Add(notice.Warning, "Tracks", perr.Error())
					} else {
						seg.Tracks = append(seg.Tracks, t)
					}
				}
				tc, terr = tc.NextSibling()
				if terr != nil {
					return terr
				}
			}
			seg.TracksMaker = &TracksMaker{Tracks: seg.Tracks}
		case IDChapters:
			ec, eerr := child.ChildByID(IDEditionEntry)
			if eerr != nil {
				return eerr
			}
			if ec != nil {
				cc, cerr := ec.FirstChild()
				if cerr != nil {
					return cerr
				}
				for cc != nil {
					if cc.ID == IDChapterAtom {
						ch, perr := parseChapterAtom(cc)
						if perr != nil {
							c.Bus.Add(notice.Warning, "Chapters", perr.Error())
						} else {
							seg.Chapters = append(seg.Chapters, ch)
						}
					}
					cc, cerr = cc.NextSibling()
					if cerr != nil {
						return cerr
					}
				}
			}
			seg.ChaptersMaker = &ChaptersMaker{Chapters: seg.Chapters}
		case IDTags:
			tc, terr := child.FirstChild()
			if terr != nil {
				return terr
			}
			for tc != nil {
				if tc.ID == IDTag {
					tag, perr := parseTag(tc)
					if perr != nil {
						c.Bus.Add(notice.Warning, "Tags", perr.Error())
					} else {
						seg.Tags = append(seg.Tags, tag)
					}
				}
				tc, terr = tc.NextSibling()
				if terr != nil {
					return terr
				}
			}
			seg.TagsMaker = &TagsMaker{Tags: seg.Tags}
		case IDAttachments:
			ac, aerr := child.FirstChild()
			if aerr != nil {
				return aerr
			}
			for ac != nil {
				if ac.ID == IDAttachedFile {
					a, perr := parseAttachedFile(ac)
					if perr != nil {
						c.Bus.Add(notice.Warning, "Attachments", perr.Error())
					} else {
						seg.Attachments = append(seg.Attachments, a)
					}
				}
				ac, aerr = ac.NextSibling()
				if aerr != nil {
					return aerr
				}
			}
			seg.AttachmentsMaker = &AttachmentsMaker{Attachments: seg.Attachments}
		case IDCues:
			cu := NewCuesUpdater(c.Bus)
			if perr := cu.Parse(child); perr != nil {
				c.Bus.Add(notice.Warning, "Cues", perr.Error())
			} else {
				seg.Cues = cu
			}
		case IDCluster:
			seg.Clusters = append(seg.Clusters, child)
		}
		child, err = child.NextSibling()
		if err != nil {
			return err
		}
	}
	if seg.InfoMaker == nil {
		seg.Info = &SegmentInfo{TimecodeScale: 1000000}
		seg.InfoMaker = &SegmentInfoMaker{Info: seg.Info}
	}
	return nil
}

// SetAbort requests that any in-progress write stop at its next poll point.
func (c *Container) SetAbort()  { atomic.StoreInt32(&c.abort, 1) }
func (c *Container) Aborted() bool { return atomic.LoadInt32(&c.abort) != 0 }

// ValidateIndex checks every segment's Cues against its own Cluster offsets
// (spec §12 supplemental feature, grounded on validateIndex() in
// original_source/matroskacontainer.cpp).
func (c *Container) ValidateIndex() {
	for _, seg := range c.Segments {
		if seg.Cues == nil {
			continue
		}
		known := make(map[uint64]bool, len(seg.Clusters))
		dataStart := seg.Element.DataOffset()
		for _, cl := range seg.Clusters {
			known[cl.StartOffset-dataStart] = true
		}
		seg.Cues.ValidateIndex(known)
	}
}

// existingPositions scans segment idx's direct children for the current
// tag/attachment and Cues placement relative to the first Cluster, per spec
// §4.4's pre-planning step.
func (c *Container) existingPositions(idx int) (tagPos, cuesPos Position) {
	seg := c.Segments[idx]
	tagPos, cuesPos = PositionBeforeData, PositionBeforeData
	if len(seg.Clusters) == 0 {
		return
	}
	firstCluster := seg.Clusters[0].StartOffset
	child, err := seg.Element.FirstChild()
	for child != nil && err == nil {
		if (child.ID == IDTags || child.ID == IDAttachments) && child.StartOffset > firstCluster {
			tagPos = PositionAfterData
		}
		if child.ID == IDCues && child.StartOffset > firstCluster {
			cuesPos = PositionAfterData
		}
		child, err = child.NextSibling()
	}
	return
}

// ensureUIDs assigns a generated SegmentUID/AttachmentUID to any segment or
// attachment that doesn't already have one, before the planner sizes
// anything that embeds them. Grounded on spec's "Random attachment UID
// generation" requirement (§4.2, §9, §12): a bounded collision-retry
// generator, not the source's wall-clock-seeded PRNG.
func (c *Container) ensureUIDs() error {
	segTaken := make(map[[16]byte]bool, len(c.Segments))
	for _, seg := range c.Segments {
		if seg.Info != nil && seg.Info.UID != ([16]byte{}) {
			segTaken[seg.Info.UID] = true
		}
	}
	for _, seg := range c.Segments {
		if seg.Info != nil && seg.Info.UID == ([16]byte{}) {
			uid, err := generateUID(segTaken)
			if err != nil {
				return fmt.Errorf("assign segment uid: %w", err)
			}
			seg.Info.UID = uid
			segTaken[uid] = true
		}

		attachTaken := make(map[uint64]bool, len(seg.Attachments))
		for _, a := range seg.Attachments {
			if a.UID != 0 {
				attachTaken[a.UID] = true
			}
		}
		for _, a := range seg.Attachments {
			if a.UID != 0 {
				continue
			}
			uid, err := generateUID64(attachTaken)
			if err != nil {
				return fmt.Errorf("assign attachment uid: %w", err)
			}
			a.UID = uid
			attachTaken[uid] = true
		}
	}
	return nil
}

// Plan runs the segment planner (C8) for every segment in file order.
func (c *Container) Plan() ([]*SegmentPlan, error) {
	if err := c.ensureUIDs(); err != nil {
		return nil, err
	}
	plans := make([]*SegmentPlan, len(c.Segments))
	for i, seg := range c.Segments {
		existingTag, existingCues := c.existingPositions(i)
		in := &segmentInputs{
			HasCRC32:              seg.HasCRC32,
			SegmentInfo:           seg.InfoMaker,
			Tracks:                seg.TracksMaker,
			Chapters:              seg.ChaptersMaker,
			Tags:                  seg.TagsMaker,
			Attachments:           seg.AttachmentsMaker,
			Cues:                  seg.Cues,
			Clusters:              seg.Clusters,
			SegmentDataReadOffset: seg.Element.DataOffset(),
			IsFirstSegment:        i == 0,
			IsLastSegment:         i == len(c.Segments)-1,
			ExistingTagPosition:   existingTag,
			ExistingCuesPosition:  existingCues,
		}
		plan, err := PlanSegment(in, c.Policy, c.Bus)
		if err != nil {
			return nil, fmt.Errorf("plan segment %d: %w", i, err)
		}
		plans[i] = plan
	}
	return plans, nil
}

// ApplyChanges plans the file and writes it out, choosing a full rewrite
// (via the C7 backup helper) if any segment's plan requires one, or an
// in-place patch otherwise. A non-empty Policy.SaveAsPath names the output
// file and always selects the rewrite path.
func (c *Container) ApplyChanges() error {
	plans, err := c.Plan()
	if err != nil {
		return err
	}
	rewrite := c.Policy.ForceRewrite || c.Policy.SaveAsPath != ""
	for _, p := range plans {
		if p.RewriteRequired {
			rewrite = true
		}
	}
	if rewrite {
		return c.applyRewrite(plans)
	}
	return c.applyPatch(plans)
}

func (c *Container) segmentContent(idx int) *segmentContent {
	seg := c.Segments[idx]
	return &segmentContent{Info: seg.InfoMaker, Tracks: seg.TracksMaker, Chapters: seg.ChaptersMaker, Tags: seg.TagsMaker, Attachments: seg.AttachmentsMaker}
}

func (c *Container) applyRewrite(plans []*SegmentPlan) error {
	outPath := c.Policy.SaveAsPath
	if outPath == "" {
		outPath = c.path
	}
	var handle *backup.Handle
	if outPath == c.path {
		h, backupPath, err := backup.Create(c.path)
		if err != nil {
			return err
		}
		handle = h
		f, err := os.Open(backupPath)
		if err != nil {
			return backup.HandleFailureAfterFileModified(handle, err)
		}
		defer f.Close()
		c.Source = f
	}
	out, err := os.Create(outPath)
	if err != nil {
		if handle != nil {
			return backup.HandleFailureAfterFileModified(handle, err)
		}
		return fmt.Errorf("create output: %w", containererr.ErrIO)
	}
	writer := NewSegmentWriter(out, c.Bus)
	writer.Abort = c.Aborted
	writeErr := func() error {
		if err := writer.WriteHeader(c.Header); err != nil {
			return err
		}
		for i, plan := range plans {
			placeholdersBefore := len(writer.Placeholders())
			if err := writer.WriteSegment(plan, c.segmentContent(i)); err != nil {
				return err
			}
			segmentEnd, err := out.Seek(0, io.SeekCurrent)
			if err != nil {
				return fmt.Errorf("locate segment end: %w", containererr.ErrIO)
			}
			for j := placeholdersBefore; j < len(writer.Placeholders()); j++ {
				writer.SetPlaceholderRegion(j, writer.Placeholders()[j].regionStart, segmentEnd)
			}
		}
		return nil
	}()
	closeErr := out.Close()
	if writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		if handle != nil {
			return backup.HandleFailureAfterFileModified(handle, writeErr)
		}
		return writeErr
	}
	if placeholders := writer.Placeholders(); len(placeholders) > 0 {
		if err := fixupCRC32File(outPath, placeholders); err != nil {
			if handle != nil {
				return backup.HandleFailureAfterFileModified(handle, err)
			}
			return err
		}
	}
	if handle != nil {
		return handle.Commit()
	}
	return nil
}

// fixupCRC32File reopens path for read+write and patches in every recorded
// CRC-32 placeholder's checksum (spec §4.5 step 6): the write pass above
// only reserves the 4-byte payload and records the byte range it covers.
func fixupCRC32File(path string, placeholders []crc32Placeholder) error {
	rw, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("reopen output for crc32 fixup: %w", containererr.ErrIO)
	}
	defer rw.Close()
	return FixupCRC32(rw, placeholders)
}

// applyPatch rewrites, in place, the byte range from each segment's data
// start up to its first Cluster (metadata only), leaving Cluster bytes
// untouched, then truncates or extends the tail for any after-data
// Cues/Tags. This is only reached when every segment's plan already
// confirmed its pre-cluster content fits ahead of the first Cluster.
func (c *Container) applyPatch(plans []*SegmentPlan) error {
	f, ok := c.Source.(*os.File)
	if !ok {
		return fmt.Errorf("patch write requires an *os.File source: %w", containererr.ErrNotImplemented)
	}
	for i, plan := range plans {
		seg := c.Segments[i]
		// The plan reserves the 6-byte CRC-32 element ahead of the SeekHead;
		// keep it in place and write the metadata after it.
		headStart := int64(seg.Element.DataOffset())
		if plan.HasCRC32 {
			headStart += 6
		}
		if _, err := f.Seek(headStart, io.SeekStart); err != nil {
			return fmt.Errorf("seek to segment data: %w", containererr.ErrIO)
		}
		writer := NewSegmentWriter(f, c.Bus)
		writer.Abort = c.Aborted
		if err := writer.writePatchHead(plan, c.segmentContent(i)); err != nil {
			return err
		}
		if len(plan.Clusters) > 0 && (plan.CuesPos == PositionAfterData || plan.TagPos == PositionAfterData) {
			last := plan.Clusters[len(plan.Clusters)-1]
			if _, err := f.Seek(int64(seg.Element.DataOffset()+last.ReadOffset+last.Source.TotalSize()), io.SeekStart); err != nil {
				return fmt.Errorf("seek to segment tail: %w", containererr.ErrIO)
			}
			if err := writer.writeTagsAndAttachmentsIfAfter(plan, c.segmentContent(i)); err != nil {
				return err
			}
			pos, err := f.Seek(0, io.SeekCurrent)
			if err != nil {
				return fmt.Errorf("locate new end of file: %w", containererr.ErrIO)
			}
			if err := f.Truncate(pos); err != nil {
				return fmt.Errorf("truncate output: %w", containererr.ErrIO)
			}
		}
		if plan.HasCRC32 {
			end := int64(seg.Element.DataOffset() + plan.TotalDataSize)
			if err := FixupCRC32(f, []crc32Placeholder{{valueOffset: headStart - 4, regionStart: headStart, regionEnd: end}}); err != nil {
				return err
			}
		}
	}
	return nil
}
