package matroska

import (
	"bytes"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mutwol/tagparser/ebml"
	"github.com/mutwol/tagparser/notice"
)

func buildMinimalFile(t *testing.T, segmentData []byte) []byte {
	t.Helper()
	h := HeaderFields{
		Version: 1, ReadVersion: 1, MaxIDLength: 4, MaxSizeLength: 8,
		DocType: "matroska", DocTypeVersion: 4, DocTypeReadVersion: 2,
	}
	var buf bytes.Buffer
	require.NoError(t, h.Write(&buf))
	_, err := ebml.WriteElement(&buf, IDSegment, segmentData)
	require.NoError(t, err)
	return buf.Bytes()
}

func buildSegmentInfoOnlyData(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	m := &SegmentInfoMaker{Info: &SegmentInfo{TimecodeScale: 1000000, Title: "x"}}
	require.NoError(t, m.Make(&buf))
	return buf.Bytes()
}

func TestOpenParsesHeaderAndLocatesSegments(t *testing.T) {
	raw := buildMinimalFile(t, buildSegmentInfoOnlyData(t))
	bus := notice.New()
	c, err := Open("", bytes.NewReader(raw), uint64(len(raw)), bus)
	require.NoError(t, err)
	require.Equal(t, "matroska", c.Header.DocType)
	require.Equal(t, uint64(4), c.Header.DocTypeVersion)
	require.Len(t, c.Segments, 1)
}

func TestOpenRejectsMissingSegment(t *testing.T) {
	h := HeaderFields{Version: 1, ReadVersion: 1, MaxIDLength: 4, MaxSizeLength: 8, DocType: "matroska", DocTypeVersion: 4, DocTypeReadVersion: 2}
	var buf bytes.Buffer
	require.NoError(t, h.Write(&buf))
	raw := buf.Bytes()
	_, err := Open("", bytes.NewReader(raw), uint64(len(raw)), notice.New())
	require.Error(t, err, "expected an error for a file with no Segment element")
}

func TestParseSegmentPopulatesSegmentInfo(t *testing.T) {
	raw := buildMinimalFile(t, buildSegmentInfoOnlyData(t))
	c, err := Open("", bytes.NewReader(raw), uint64(len(raw)), notice.New())
	require.NoError(t, err)
	require.NoError(t, c.ParseSegment(0))
	seg := c.Segments[0]
	require.NotNil(t, seg.Info)
	require.Equal(t, "x", seg.Info.Title)
	require.NotNil(t, seg.InfoMaker, "InfoMaker must be populated for later planning")
}

func TestPlanOnOpenedContainerForcesRewriteWithoutClusters(t *testing.T) {
	raw := buildMinimalFile(t, buildSegmentInfoOnlyData(t))
	c, err := Open("", bytes.NewReader(raw), uint64(len(raw)), notice.New())
	require.NoError(t, err)
	require.NoError(t, c.ParseSegment(0))
	plans, err := c.Plan()
	require.NoError(t, err)
	require.Len(t, plans, 1)
	require.True(t, plans[0].RewriteRequired)
}

func TestValidateIndexNoCuesIsNoop(t *testing.T) {
	raw := buildMinimalFile(t, buildSegmentInfoOnlyData(t))
	c, err := Open("", bytes.NewReader(raw), uint64(len(raw)), notice.New())
	require.NoError(t, err)
	require.NoError(t, c.ParseSegment(0))
	c.ValidateIndex()
	require.False(t, c.Bus.HasCritical(), "a segment with no Cues must never raise a critical notification from ValidateIndex")
}

func TestSetAbortObservedByAborted(t *testing.T) {
	raw := buildMinimalFile(t, buildSegmentInfoOnlyData(t))
	c, err := Open("", bytes.NewReader(raw), uint64(len(raw)), notice.New())
	require.NoError(t, err)
	require.False(t, c.Aborted(), "a freshly opened container must not report aborted")
	c.SetAbort()
	require.True(t, c.Aborted(), "SetAbort must be observed by Aborted")
}

func TestPlanAssignsMissingSegmentAndAttachmentUIDs(t *testing.T) {
	raw := buildMinimalFile(t, buildSegmentInfoOnlyData(t))
	c, err := Open("", bytes.NewReader(raw), uint64(len(raw)), notice.New())
	require.NoError(t, err)
	require.NoError(t, c.ParseSegment(0))
	seg := c.Segments[0]
	require.Equal(t, [16]byte{}, seg.Info.UID, "fixture segment must start with no UID")
	seg.Attachments = []*Attachment{{Name: "cover.jpg"}, {Name: "logo.png"}}
	seg.AttachmentsMaker = &AttachmentsMaker{Attachments: seg.Attachments}

	_, err = c.Plan()
	require.NoError(t, err)

	require.NotEqual(t, [16]byte{}, seg.Info.UID, "Plan must assign a SegmentUID")
	require.NotEqual(t, uint64(0), seg.Attachments[0].UID, "Plan must assign an AttachmentUID")
	require.NotEqual(t, uint64(0), seg.Attachments[1].UID, "Plan must assign an AttachmentUID")
	require.NotEqual(t, seg.Attachments[0].UID, seg.Attachments[1].UID, "distinct attachments must not collide")
}

func TestPlanLeavesExistingUIDsUntouched(t *testing.T) {
	raw := buildMinimalFile(t, buildSegmentInfoOnlyData(t))
	c, err := Open("", bytes.NewReader(raw), uint64(len(raw)), notice.New())
	require.NoError(t, err)
	require.NoError(t, c.ParseSegment(0))
	seg := c.Segments[0]
	want := [16]byte{1, 2, 3, 4}
	seg.Info.UID = want
	seg.Attachments = []*Attachment{{Name: "cover.jpg", UID: 42}}
	seg.AttachmentsMaker = &AttachmentsMaker{Attachments: seg.Attachments}

	_, err = c.Plan()
	require.NoError(t, err)

	require.Equal(t, want, seg.Info.UID, "Plan must not overwrite an existing SegmentUID")
	require.Equal(t, uint64(42), seg.Attachments[0].UID, "Plan must not overwrite an existing AttachmentUID")
}

func TestApplyChangesRewritePatchesSegmentCRC32(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "in.mkv")
	raw := buildMinimalFile(t, buildSegmentInfoOnlyData(t))
	require.NoError(t, os.WriteFile(srcPath, raw, 0o644))

	src, err := os.Open(srcPath)
	require.NoError(t, err)
	defer src.Close()
	info, err := src.Stat()
	require.NoError(t, err)

	c, err := Open(srcPath, src, uint64(info.Size()), notice.New())
	require.NoError(t, err)
	require.NoError(t, c.ParseSegment(0))
	c.Segments[0].HasCRC32 = true

	outPath := filepath.Join(dir, "out.mkv")
	c.Policy.SaveAsPath = outPath
	c.Policy.ForceRewrite = true
	require.NoError(t, c.ApplyChanges())

	out, err := os.ReadFile(outPath)
	require.NoError(t, err)

	root := ebml.NewRoot(bytes.NewReader(out), Decoder, 0, uint64(len(out)))
	require.NoError(t, root.Parse())
	seg, err := root.NextSibling()
	require.NoError(t, err)
	require.NotNil(t, seg)
	require.Equal(t, uint32(IDSegment), seg.ID)

	crc, err := seg.ChildByID(IDCRC32)
	require.NoError(t, err)
	require.NotNil(t, crc, "rewritten segment must carry a CRC-32 element")
	crcData, err := crc.Data()
	require.NoError(t, err)
	require.Len(t, crcData, 4)

	regionStart := crc.DataOffset() + 4
	region := out[regionStart:]
	want := crc32.ChecksumIEEE(region)
	got := uint32(crcData[0]) | uint32(crcData[1])<<8 | uint32(crcData[2])<<16 | uint32(crcData[3])<<24
	require.Equal(t, want, got, "segment CRC-32 must cover everything after the CRC-32 element to the segment's end")
}
