package matroska

import (
	"fmt"

	"github.com/mutwol/tagparser/containererr"
	"github.com/mutwol/tagparser/ebml"
	"github.com/mutwol/tagparser/notice"
)

// Position is where Tags/Attachments or Cues sit relative to Cluster data
// inside a segment.
type Position int

const (
	PositionBeforeData Position = iota
	PositionAfterData
	PositionKeep
)

// Policy carries the planner's external inputs: desired tag/cues placement,
// padding bounds, and the force-rewrite/save-as overrides a caller sets on
// the container before asking it to write.
type Policy struct {
	TagPosition       Position
	CuesPosition      Position
	ForceTagPosition  bool
	ForceCuesPosition bool
	PreferredPadding  uint64
	MinPadding        uint64
	MaxPadding        uint64
	ForceRewrite      bool
	SaveAsPath        string
}

// clusterPlan is one Cluster's placement decision: ReadOffset/WriteOffset
// are segment-data-relative. On the patch path WriteOffset == ReadOffset and
// DataSize is unused (the writer copies the cluster verbatim); on the
// rewrite path DataSize is the freshly computed data size.
type clusterPlan struct {
	Source      *ebml.Element
	ReadOffset  uint64
	WriteOffset uint64
	// DataSize is only meaningful on the rewrite path: the recomputed size of
	// the Cluster's data (children), used both for total-size accounting and
	// for writing the Cluster's own header.
	DataSize uint64
}

// SegmentPlan is the segment planner's (C8) output: everything the segment
// writer (C9) needs to stream this segment without recomputing anything.
type SegmentPlan struct {
	HasCRC32             bool
	CuesUpdater          *CuesUpdater
	InfoDataSize         uint64
	SeekInfo             *SeekInfo
	TotalDataSize        uint64
	TotalSize            uint64
	NewPadding           uint64
	SizeDenotationLength int
	RewriteRequired      bool
	TagPos               Position
	CuesPos              Position
	Clusters             []clusterPlan
}

// segmentInputs bundles everything PlanSegment needs about one segment: its
// preserved/edited metadata makers, its existing (read-side) clusters, and
// where it currently sits relative to those clusters.
type segmentInputs struct {
	HasCRC32              bool
	SegmentInfo           *SegmentInfoMaker
	Tracks                *TracksMaker
	Chapters              *ChaptersMaker
	Tags                  *TagsMaker
	Attachments           *AttachmentsMaker
	Cues                  *CuesUpdater
	Clusters              []*ebml.Element
	SegmentDataReadOffset uint64
	IsFirstSegment        bool
	IsLastSegment         bool
	ExistingTagPosition   Position
	ExistingCuesPosition  Position
}

const (
	seekIdxSegmentInfo = iota
	seekIdxTracks
	seekIdxChapters
	seekIdxTags
	seekIdxAttachments
	seekIdxCues
	seekIdxCluster
)

const maxPlannerOuterIterations = 64
const maxPlannerInnerIterations = 4096

// PlanSegment runs the segment planner's fixpoint loop (spec §4.4) for one
// segment: it pushes every movable element's offset into a SeekInfo,
// observes whether any push changed that SeekInfo's own encoded size, and
// repeats until nothing changes. It first tries a non-rewrite (patch) plan
// that leaves existing Cluster bytes untouched; if that cannot be made to
// fit, it relaxes tag placement, then cues placement, before finally
// committing to a full rewrite.
func PlanSegment(in *segmentInputs, policy Policy, bus *notice.Bus) (*SegmentPlan, error) {
	tagPos := policy.TagPosition
	if tagPos == PositionKeep {
		tagPos = in.ExistingTagPosition
	}
	cuesPos := policy.CuesPosition
	if cuesPos == PositionKeep {
		cuesPos = in.ExistingCuesPosition
	}
	rewriteRequired := policy.ForceRewrite || len(in.Clusters) == 0

	relaxStage := 0
	for attempt := 0; attempt < maxPlannerOuterIterations; attempt++ {
		plan, firstClusterFits, err := planOnce(in, policy, tagPos, cuesPos, rewriteRequired, bus)
		if err != nil {
			return nil, err
		}
		if rewriteRequired {
			plan.RewriteRequired = true
			plan.TagPos, plan.CuesPos = tagPos, cuesPos
			if plan.NewPadding < policy.MinPadding || (policy.MaxPadding > 0 && plan.NewPadding > policy.MaxPadding) {
				bus.Add(notice.Warning, "planner", "rewrite padding fell outside configured bounds, recomputing")
				continue
			}
			return plan, nil
		}
		if firstClusterFits {
			plan.RewriteRequired = false
			plan.TagPos, plan.CuesPos = tagPos, cuesPos
			return plan, nil
		}
		if relaxStage == 0 && !policy.ForceTagPosition && tagPos == PositionBeforeData {
			tagPos = PositionAfterData
			relaxStage = 1
			continue
		}
		if relaxStage <= 1 && !policy.ForceCuesPosition && cuesPos == PositionBeforeData {
			cuesPos = PositionAfterData
			relaxStage = 2
			continue
		}
		rewriteRequired = true
	}
	return nil, fmt.Errorf("segment planner did not converge after %d attempts: %w", maxPlannerOuterIterations, containererr.ErrParsingFailure)
}

// planOnce runs the inner fixpoint loop once for a fixed (tagPos, cuesPos,
// rewriteRequired) combination and reports whether, on the non-rewrite
// path, the existing first cluster's offset is large enough to hold
// everything that must precede it.
func planOnce(in *segmentInputs, policy Policy, tagPos, cuesPos Position, rewriteRequired bool, bus *notice.Bus) (*SegmentPlan, bool, error) {
	seekInfo := NewSeekInfo(bus)
	cuesUpdater := in.Cues

	infoDataSize := in.SegmentInfo.RequiredSize()
	var tracksSize, chaptersSize, tagsSize, attachmentsSize uint64
	if in.Tracks != nil {
		tracksSize = in.Tracks.RequiredSize()
	}
	if in.Chapters != nil {
		chaptersSize = in.Chapters.RequiredSize()
	}
	if in.Tags != nil {
		tagsSize = in.Tags.RequiredSize()
	}
	if in.Attachments != nil {
		attachmentsSize = in.Attachments.RequiredSize()
	}

	var totalDataSize, offsetBeforeCues, newPadding uint64
	var clusters []clusterPlan
	prevSizeDenLen := -1

	for iter := 0; iter < maxPlannerInnerIterations; iter++ {
		changed := false
		totalDataSize = 0
		if in.HasCRC32 {
			totalDataSize += 6
		}
		totalDataSize += seekInfo.ActualSize()

		if seekInfo.Push(seekIdxSegmentInfo, IDSegmentInfo, totalDataSize) {
			changed = true
		}
		totalDataSize += infoDataSize

		if in.Tracks != nil {
			if seekInfo.Push(seekIdxTracks, IDTracks, totalDataSize) {
				changed = true
			}
			totalDataSize += tracksSize
		}
		if in.Chapters != nil {
			if seekInfo.Push(seekIdxChapters, IDChapters, totalDataSize) {
				changed = true
			}
			totalDataSize += chaptersSize
		}
		if tagPos == PositionBeforeData && in.IsFirstSegment {
			if in.Tags != nil {
				if seekInfo.Push(seekIdxTags, IDTags, totalDataSize) {
					changed = true
				}
				totalDataSize += tagsSize
			}
			if in.Attachments != nil {
				if seekInfo.Push(seekIdxAttachments, IDAttachments, totalDataSize) {
					changed = true
				}
				totalDataSize += attachmentsSize
			}
		}
		offsetBeforeCues = totalDataSize
		if cuesPos == PositionBeforeData && cuesUpdater != nil {
			if seekInfo.Push(seekIdxCues, IDCues, totalDataSize) {
				changed = true
			}
			totalDataSize += cuesUpdater.TotalSize()
		}

		clusters = clusters[:0]
		if !rewriteRequired {
			for i, cl := range in.Clusters {
				readOffset := cl.StartOffset - in.SegmentDataReadOffset
				if i == 0 {
					if seekInfo.Push(seekIdxCluster, IDCluster, readOffset) {
						changed = true
					}
				}
				if cuesUpdater != nil {
					if cuesUpdater.UpdateOffsets(readOffset, readOffset) {
						changed = true
					}
				}
				clusters = append(clusters, clusterPlan{Source: cl, ReadOffset: readOffset, WriteOffset: readOffset})
			}
			if len(in.Clusters) > 0 {
				last := in.Clusters[len(in.Clusters)-1]
				totalDataSize = (last.StartOffset - in.SegmentDataReadOffset) + last.TotalSize()
			}
		} else {
			if in.IsFirstSegment {
				newPadding = policy.PreferredPadding
				totalDataSize += newPadding
			}
			for i, cl := range in.Clusters {
				readOffset := cl.StartOffset - in.SegmentDataReadOffset
				writeOffset := totalDataSize
				if cuesUpdater != nil {
					if cuesUpdater.UpdateOffsets(readOffset, writeOffset) {
						changed = true
					}
				}
				if i == 0 {
					if seekInfo.Push(seekIdxCluster, IDCluster, writeOffset) {
						changed = true
					}
				}
				dataSize, err := rewriteClusterDataSize(cl, writeOffset)
				if err != nil {
					return nil, false, err
				}
				clusters = append(clusters, clusterPlan{Source: cl, ReadOffset: readOffset, WriteOffset: writeOffset, DataSize: dataSize})
				totalDataSize += ebml.ElementSize(IDCluster, dataSize)
			}
		}

		if cuesPos == PositionAfterData && cuesUpdater != nil {
			if seekInfo.Push(seekIdxCues, IDCues, totalDataSize) {
				changed = true
			}
			totalDataSize += cuesUpdater.TotalSize()
		}
		if tagPos == PositionAfterData && in.IsLastSegment {
			if in.Tags != nil {
				if seekInfo.Push(seekIdxTags, IDTags, totalDataSize) {
					changed = true
				}
				totalDataSize += tagsSize
			}
			if in.Attachments != nil {
				if seekInfo.Push(seekIdxAttachments, IDAttachments, totalDataSize) {
					changed = true
				}
				totalDataSize += attachmentsSize
			}
		}

		sizeDenLen := ebml.MinWidth(totalDataSize)
		if changed || sizeDenLen != prevSizeDenLen {
			prevSizeDenLen = sizeDenLen
			continue
		}
		break
	}

	firstClusterFits := false
	if !rewriteRequired && len(in.Clusters) > 0 {
		precludeSize := offsetBeforeCues
		if cuesPos == PositionBeforeData && cuesUpdater != nil {
			precludeSize += cuesUpdater.TotalSize()
		}
		contentEnd := in.SegmentDataReadOffset + precludeSize
		firstAbsolute := in.Clusters[0].StartOffset
		if contentEnd <= firstAbsolute {
			padding := firstAbsolute - contentEnd
			if padding != 1 && padding >= policy.MinPadding && (policy.MaxPadding == 0 || padding <= policy.MaxPadding) {
				firstClusterFits = true
				newPadding = padding
			}
		}
	}

	plan := &SegmentPlan{
		HasCRC32:             in.HasCRC32,
		CuesUpdater:          cuesUpdater,
		InfoDataSize:         infoDataSize,
		SeekInfo:             seekInfo,
		TotalDataSize:        totalDataSize,
		TotalSize:            ebml.ElementSize(IDSegment, totalDataSize),
		NewPadding:           newPadding,
		SizeDenotationLength: ebml.MinWidth(totalDataSize),
		Clusters:             append([]clusterPlan(nil), clusters...),
	}
	return plan, firstClusterFits, nil
}

// rewriteClusterDataSize computes a Cluster's data size as if it were being
// rewritten with its Position child re-encoded to writeOffset, dropping any
// Void/CRC-32 children (spec §4.4: "skip Void/CRC-32").
func rewriteClusterDataSize(cl *ebml.Element, writeOffset uint64) (uint64, error) {
	child, err := cl.FirstChild()
	if err != nil {
		return 0, err
	}
	var dataSize uint64
	for child != nil {
		switch child.ID {
		case IDVoid, IDCRC32:
			// dropped entirely; not carried into the rewritten cluster.
		case IDPosition:
			dataSize += ebml.ElementSize(IDPosition, uint64(len(ebml.PutUint(writeOffset))))
		default:
			dataSize += child.TotalSize()
		}
		child, err = child.NextSibling()
		if err != nil {
			return 0, err
		}
	}
	return dataSize, nil
}
