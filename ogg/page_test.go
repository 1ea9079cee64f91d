package ogg

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func buildPage(t *testing.T, serial, sequence uint32, segmentSizes []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(magic[:])
	buf.WriteByte(0) // version
	buf.WriteByte(FlagBeginStream)
	var granule [8]byte
	binary.LittleEndian.PutUint64(granule[:], 12345)
	buf.Write(granule[:])
	var serialBuf, seqBuf, crcBuf [4]byte
	binary.LittleEndian.PutUint32(serialBuf[:], serial)
	binary.LittleEndian.PutUint32(seqBuf[:], sequence)
	binary.LittleEndian.PutUint32(crcBuf[:], 0)
	buf.Write(serialBuf[:])
	buf.Write(seqBuf[:])
	buf.Write(crcBuf[:])
	buf.WriteByte(byte(len(segmentSizes)))
	buf.Write(segmentSizes)
	for _, s := range segmentSizes {
		buf.Write(bytes.Repeat([]byte{0xAB}, int(s)))
	}
	return buf.Bytes()
}

func TestParsePageHeaderRoundTrip(t *testing.T) {
	raw := buildPage(t, 42, 1, []byte{10, 20})
	page, err := ParsePageHeader(bytes.NewReader(raw), 0, uint64(len(raw)))
	if err != nil {
		t.Fatal(err)
	}
	if page.SerialNumber != 42 || page.SequenceNumber != 1 {
		t.Fatalf("page = %+v, want serial=42 sequence=1", page)
	}
	if len(page.SegmentSizes) != 2 || page.SegmentSizes[0] != 10 || page.SegmentSizes[1] != 20 {
		t.Fatalf("segment sizes = %v, want [10 20]", page.SegmentSizes)
	}
	if page.TotalSize() != uint64(len(raw)) {
		t.Fatalf("TotalSize() = %d, want %d", page.TotalSize(), len(raw))
	}
	if page.DataOffset(1) != page.StartOffset+page.HeaderSize+10 {
		t.Fatalf("DataOffset(1) = %d, want %d", page.DataOffset(1), page.StartOffset+page.HeaderSize+10)
	}
}

func TestParsePageHeaderRejectsBadMagic(t *testing.T) {
	raw := buildPage(t, 1, 0, []byte{5})
	raw[0] = 'X'
	if _, err := ParsePageHeader(bytes.NewReader(raw), 0, uint64(len(raw))); err == nil {
		t.Fatal("expected an error for a corrupted capture pattern")
	}
}

func TestParsePageHeaderRejectsTruncatedStream(t *testing.T) {
	raw := buildPage(t, 1, 0, []byte{5})
	if _, err := ParsePageHeader(bytes.NewReader(raw[:10]), 0, 10); err == nil {
		t.Fatal("expected an error for a truncated page header")
	}
}
