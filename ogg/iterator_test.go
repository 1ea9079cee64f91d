package ogg

import (
	"bytes"
	"testing"
)

func buildStream(t *testing.T, pages [][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, p := range pages {
		buf.Write(p)
	}
	return buf.Bytes()
}

func segmentPayload(fill byte, n int) []byte { return bytes.Repeat([]byte{fill}, n) }

func buildPageWithPayload(t *testing.T, serial, sequence uint32, segmentSizes []byte, fill byte) []byte {
	t.Helper()
	raw := buildPage(t, serial, sequence, segmentSizes)
	// buildPage already fills payload with 0xAB; overwrite with the desired
	// fill byte per-page so tests can distinguish page origin.
	headerLen := headerMinSize + len(segmentSizes)
	for i := headerLen; i < len(raw); i++ {
		raw[i] = fill
	}
	return raw
}

func TestIteratorReadsAcrossSegmentAndPageBoundaries(t *testing.T) {
	page0 := buildPageWithPayload(t, 1, 0, []byte{4, 4}, 'a')
	page1 := buildPageWithPayload(t, 1, 1, []byte{4}, 'b')
	stream := buildStream(t, [][]byte{page0, page1})

	it := NewIterator(bytes.NewReader(stream), 0, uint64(len(stream)), nil)
	if err := it.Reset(); err != nil {
		t.Fatal(err)
	}
	if !it.Valid() {
		t.Fatal("expected iterator to be valid after Reset on a non-empty stream")
	}

	buf := make([]byte, 12)
	if err := it.Read(buf); err != nil {
		t.Fatal(err)
	}
	want := append(segmentPayload('a', 8), segmentPayload('b', 4)...)
	if !bytes.Equal(buf, want) {
		t.Fatalf("Read = %q, want %q", buf, want)
	}
}

func TestIteratorSeekForwardSkipsBytes(t *testing.T) {
	page0 := buildPageWithPayload(t, 1, 0, []byte{4, 4}, 'a')
	stream := buildStream(t, [][]byte{page0})

	it := NewIterator(bytes.NewReader(stream), 0, uint64(len(stream)), nil)
	if err := it.Reset(); err != nil {
		t.Fatal(err)
	}
	if err := it.SeekForward(5); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 3)
	if err := it.Read(buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, []byte("aaa")) {
		t.Fatalf("Read after SeekForward = %q, want %q", buf, "aaa")
	}
}

func TestIteratorRejectsReadPastEndOfStream(t *testing.T) {
	page0 := buildPageWithPayload(t, 1, 0, []byte{4}, 'a')
	stream := buildStream(t, [][]byte{page0})

	it := NewIterator(bytes.NewReader(stream), 0, uint64(len(stream)), nil)
	if err := it.Reset(); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 10)
	if err := it.Read(buf); err == nil {
		t.Fatal("expected a truncated_data error reading past the end of the stream")
	}
}

func TestIteratorSkipsNonMatchingSerial(t *testing.T) {
	otherSerial := buildPageWithPayload(t, 2, 0, []byte{4}, 'x')
	wanted := buildPageWithPayload(t, 1, 0, []byte{4}, 'y')
	stream := buildStream(t, [][]byte{otherSerial, wanted})

	serial := uint32(1)
	it := NewIterator(bytes.NewReader(stream), 0, uint64(len(stream)), &serial)
	if err := it.Reset(); err != nil {
		t.Fatal(err)
	}
	if !it.Valid() {
		t.Fatal("expected iterator to land on the matching-serial page")
	}
	if it.CurrentPage().SerialNumber != 1 {
		t.Fatalf("landed on serial %d, want 1", it.CurrentPage().SerialNumber)
	}
	buf := make([]byte, 4)
	if err := it.Read(buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, []byte("yyyy")) {
		t.Fatalf("Read = %q, want %q", buf, "yyyy")
	}
}
