package matroska

import (
	"io"

	"github.com/mutwol/tagparser/ebml"
	"github.com/mutwol/tagparser/notice"
)

// cuesUpdaterCue pairs a parsed Cue with the cluster offsets its positions
// were read at, so UpdateOffsets/UpdateRelativeOffsets can keep matching
// against the original (read-side) cluster identity even after
// Cue.Positions[i].ClusterPosition has already been rewritten to the new
// write-side offset by an earlier call.
type cuesUpdaterCue struct {
	cue                    *Cue
	originalClusterOffsets []uint64
}

// CuesUpdater parses a Cues element into an editable structure (C6): the
// planner retargets cluster and relative positions as it decides where each
// cluster ends up, and Make emits the updated element. Grounded on spec §4.2
// and original_source/matroskacontainer.cpp's cueUpdater call sites; no pack
// example implements Cues rewriting, so the method shapes (push-equivalent
// update calls, total-size-changed booleans) are carried over directly from
// the spec rather than adapted from existing Go code.
type CuesUpdater struct {
	cues []*cuesUpdaterCue
	Bus  *notice.Bus
}

// NewCuesUpdater returns an empty CuesUpdater bound to bus for notifications.
func NewCuesUpdater(bus *notice.Bus) *CuesUpdater {
	return &CuesUpdater{Bus: bus}
}

// Parse reads every CuePoint child of e into the updater's editable model.
func (c *CuesUpdater) Parse(e *ebml.Element) error {
	child, err := e.FirstChild()
	if err != nil {
		return err
	}
	for child != nil {
		if child.ID == IDCuePoint {
			cue, perr := parseCuePoint(child)
			if perr != nil {
				c.Bus.Add(notice.Warning, "Cues", "skipping unparsable CuePoint: "+perr.Error())
				child, err = child.NextSibling()
				if err != nil {
					return err
				}
				continue
			}
			orig := make([]uint64, len(cue.Positions))
			for i, p := range cue.Positions {
				orig[i] = p.ClusterPosition
			}
			c.cues = append(c.cues, &cuesUpdaterCue{cue: cue, originalClusterOffsets: orig})
		}
		child, err = child.NextSibling()
		if err != nil {
			return err
		}
	}
	return nil
}

// Cues returns the current (possibly remapped) cue points.
func (c *CuesUpdater) Cues() []*Cue {
	out := make([]*Cue, len(c.cues))
	for i, cc := range c.cues {
		out[i] = cc.cue
	}
	return out
}

// UpdateOffsets remaps every cue position whose original cluster offset was
// oldClusterReadOffset to newClusterWriteOffset, and reports whether doing
// so changed TotalSize() (e.g. because the new offset needs more encoded
// bytes than the old one).
func (c *CuesUpdater) UpdateOffsets(oldClusterReadOffset, newClusterWriteOffset uint64) bool {
	before := c.TotalSize()
	for _, cc := range c.cues {
		for i, orig := range cc.originalClusterOffsets {
			if orig == oldClusterReadOffset {
				cc.cue.Positions[i].ClusterPosition = newClusterWriteOffset
			}
		}
	}
	return before != c.TotalSize()
}

// UpdateRelativeOffsets adjusts the RelativePosition of every cue position
// whose original cluster offset was oldClusterReadOffset and whose relative
// offset falls at or after inClusterReadDelta, shifting it by
// (inClusterWriteDelta - inClusterReadDelta). This tracks a cluster's own
// header growing or shrinking (e.g. its Position field changing encoded
// width) without moving the blocks themselves.
func (c *CuesUpdater) UpdateRelativeOffsets(oldClusterReadOffset, inClusterReadDelta, inClusterWriteDelta uint64) bool {
	before := c.TotalSize()
	shift := int64(inClusterWriteDelta) - int64(inClusterReadDelta)
	for _, cc := range c.cues {
		for i, orig := range cc.originalClusterOffsets {
			if orig != oldClusterReadOffset {
				continue
			}
			p := &cc.cue.Positions[i]
			if p.HasRelativePosition && p.RelativePosition >= inClusterReadDelta {
				p.RelativePosition = uint64(int64(p.RelativePosition) + shift)
			}
		}
	}
	return before != c.TotalSize()
}

func cueTrackPositionSize(p CueTrackPosition) uint64 {
	data := cueTrackPositionData(p)
	return ebml.ElementSize(IDCueTrackPositions, uint64(len(data)))
}

func cueTrackPositionData(p CueTrackPosition) []byte {
	var data []byte
	data = appendElement(data, IDCueTrack, ebml.PutUint(p.Track))
	data = appendElement(data, IDCueClusterPosition, ebml.PutUint(p.ClusterPosition))
	if p.HasRelativePosition {
		data = appendElement(data, IDCueRelativePosition, ebml.PutUint(p.RelativePosition))
	}
	if p.Duration != 0 {
		data = appendElement(data, IDCueDuration, ebml.PutUint(p.Duration))
	}
	if p.BlockNumber != 0 {
		data = appendElement(data, IDCueBlockNumber, ebml.PutUint(p.BlockNumber))
	}
	return data
}

func cuePointSize(cue *Cue) uint64 {
	dataSize := ebml.ElementSize(IDCueTime, uint64(len(ebml.PutUint(cue.Time))))
	for _, p := range cue.Positions {
		dataSize += cueTrackPositionSize(p)
	}
	return ebml.ElementSize(IDCuePoint, dataSize)
}

// TotalSize returns the encoded size of the whole Cues element, including
// its own header, as a pure function of its current contents (spec §3 C6).
func (c *CuesUpdater) TotalSize() uint64 {
	if len(c.cues) == 0 {
		return 0
	}
	var dataSize uint64
	for _, cc := range c.cues {
		dataSize += cuePointSize(cc.cue)
	}
	return ebml.ElementSize(IDCues, dataSize)
}

// Make emits the updated Cues element to w.
func (c *CuesUpdater) Make(w io.Writer) error {
	if len(c.cues) == 0 {
		return nil
	}
	var data []byte
	for _, cc := range c.cues {
		cue := cc.cue
		var cueData []byte
		cueData = appendElement(cueData, IDCueTime, ebml.PutUint(cue.Time))
		for _, p := range cue.Positions {
			cueData = appendElement(cueData, IDCueTrackPositions, cueTrackPositionData(p))
		}
		data = appendElement(data, IDCuePoint, cueData)
	}
	_, err := ebml.WriteElement(w, IDCues, data)
	return err
}

// ValidateIndex walks every cue position and raises a critical notification
// for any whose ClusterPosition does not name an offset covered by
// knownClusterOffsets (offsets of actually-parsed Cluster elements,
// segment-relative). Grounded on original_source/matroskacontainer.cpp's
// validateIndex() and spec §8 Scenario S1.
func (c *CuesUpdater) ValidateIndex(knownClusterOffsets map[uint64]bool) {
	for _, cc := range c.cues {
		for _, p := range cc.cue.Positions {
			if !knownClusterOffsets[p.ClusterPosition] {
				c.Bus.Add(notice.Critical, "Cues",
					"CueClusterPosition "+uintToStr(p.ClusterPosition)+" does not point to a known cluster")
			}
		}
	}
}

func uintToStr(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
