package matroska

import (
	"bytes"
	"hash/crc32"
	"io"
	"testing"

	"github.com/mutwol/tagparser/ebml"
	"github.com/mutwol/tagparser/notice"
)

// growableBuffer is a minimal io.ReadWriteSeeker over an in-memory byte
// slice, growing on write past the current end, for exercising
// SegmentWriter/FixupCRC32 without touching disk.
type growableBuffer struct {
	data []byte
	pos  int64
}

func (b *growableBuffer) Read(p []byte) (int, error) {
	if b.pos >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += int64(n)
	return n, nil
}

func (b *growableBuffer) Write(p []byte) (int, error) {
	end := b.pos + int64(len(p))
	if end > int64(len(b.data)) {
		grown := make([]byte, end)
		copy(grown, b.data)
		b.data = grown
	}
	n := copy(b.data[b.pos:end], p)
	b.pos += int64(n)
	return n, nil
}

func (b *growableBuffer) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		b.pos = offset
	case io.SeekCurrent:
		b.pos += offset
	case io.SeekEnd:
		b.pos = int64(len(b.data)) + offset
	}
	return b.pos, nil
}

func TestSegmentWriterWriteHeaderRoundTrips(t *testing.T) {
	out := &growableBuffer{}
	w := NewSegmentWriter(out, notice.New())
	h := HeaderFields{
		Version: 1, ReadVersion: 1, MaxIDLength: 4, MaxSizeLength: 8,
		DocType: "matroska", DocTypeVersion: 4, DocTypeReadVersion: 2,
	}
	if err := w.WriteHeader(h); err != nil {
		t.Fatal(err)
	}
	if uint64(len(out.data)) != h.RequiredSize() {
		t.Fatalf("wrote %d bytes, RequiredSize reported %d", len(out.data), h.RequiredSize())
	}

	root := ebml.NewRoot(bytes.NewReader(out.data), Decoder, 0, uint64(len(out.data)))
	if err := root.Parse(); err != nil {
		t.Fatal(err)
	}
	if root.ID != IDEBMLHeader {
		t.Fatalf("root ID = %#x, want IDEBMLHeader", root.ID)
	}
}

func TestSegmentWriterWriteSegmentNoClustersRoundTrips(t *testing.T) {
	in := &segmentInputs{
		SegmentInfo:    &SegmentInfoMaker{Info: &SegmentInfo{TimecodeScale: 1000000, Title: "t"}},
		IsFirstSegment: true,
		IsLastSegment:  true,
	}
	plan, err := PlanSegment(in, Policy{}, notice.New())
	if err != nil {
		t.Fatal(err)
	}

	out := &growableBuffer{}
	w := NewSegmentWriter(out, notice.New())
	content := &segmentContent{Info: in.SegmentInfo}
	if err := w.WriteSegment(plan, content); err != nil {
		t.Fatal(err)
	}
	if uint64(len(out.data)) != plan.TotalSize {
		t.Fatalf("wrote %d bytes, plan.TotalSize = %d", len(out.data), plan.TotalSize)
	}

	root := ebml.NewRoot(bytes.NewReader(out.data), Decoder, 0, uint64(len(out.data)))
	if err := root.Parse(); err != nil {
		t.Fatal(err)
	}
	if root.ID != IDSegment {
		t.Fatalf("root ID = %#x, want IDSegment", root.ID)
	}
}

func TestSegmentWriterCRC32PlaceholderFixupMatchesRegion(t *testing.T) {
	in := &segmentInputs{
		HasCRC32:       true,
		SegmentInfo:    &SegmentInfoMaker{Info: &SegmentInfo{TimecodeScale: 1000000}},
		IsFirstSegment: true,
		IsLastSegment:  true,
	}
	plan, err := PlanSegment(in, Policy{}, notice.New())
	if err != nil {
		t.Fatal(err)
	}
	if !plan.HasCRC32 {
		t.Fatal("expected plan.HasCRC32 to propagate from segmentInputs")
	}

	out := &growableBuffer{}
	w := NewSegmentWriter(out, notice.New())
	content := &segmentContent{Info: in.SegmentInfo}
	if err := w.WriteSegment(plan, content); err != nil {
		t.Fatal(err)
	}

	placeholders := w.Placeholders()
	if len(placeholders) != 1 {
		t.Fatalf("got %d crc32 placeholders, want 1", len(placeholders))
	}
	w.SetPlaceholderRegion(0, placeholders[0].regionStart, int64(len(out.data)))

	if err := FixupCRC32(out, w.Placeholders()); err != nil {
		t.Fatal(err)
	}

	region := out.data[w.Placeholders()[0].regionStart:]
	want := crc32.ChecksumIEEE(region)
	got := out.data[w.Placeholders()[0].valueOffset : w.Placeholders()[0].valueOffset+4]
	if got[0] != byte(want) || got[1] != byte(want>>8) || got[2] != byte(want>>16) || got[3] != byte(want>>24) {
		t.Fatalf("patched CRC-32 bytes %v do not match recomputed checksum %#x", got, want)
	}
}
