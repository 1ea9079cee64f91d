package ebml

import (
	"bytes"
	"errors"
	"testing"

	"github.com/mutwol/tagparser/containererr"
)

func TestWriteSizeReadVIntRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 126, 127, 128, 16383, 16384, 1 << 20, 1 << 33, 1<<56 - 2}
	for _, v := range values {
		encoded, err := WriteSize(v, 0)
		if err != nil {
			t.Fatalf("WriteSize(%d): %v", v, err)
		}
		w := MinWidth(v)
		if len(encoded) != w {
			t.Fatalf("WriteSize(%d) produced %d bytes, want MinWidth %d", v, len(encoded), w)
		}
		got, gotWidth, err := ReadVInt(bytes.NewReader(encoded), false)
		if err != nil {
			t.Fatalf("ReadVInt after WriteSize(%d): %v", v, err)
		}
		if got != v || gotWidth != w {
			t.Fatalf("round-trip(%d) = (%d, %d), want (%d, %d)", v, got, gotWidth, v, w)
		}
	}
}

func TestWriteSizeNeverExceedsMaxWidth(t *testing.T) {
	encoded, err := WriteSize(1<<56-2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(encoded) > MaxSizeLength {
		t.Fatalf("encoded width %d exceeds MaxSizeLength %d", len(encoded), MaxSizeLength)
	}
}

func TestReadVIntRejectsMissingMarker(t *testing.T) {
	_, _, err := ReadVInt(bytes.NewReader([]byte{0x00, 0xFF}), false)
	if !errors.Is(err, containererr.ErrInvalidData) {
		t.Fatalf("expected ErrInvalidData for missing marker, got %v", err)
	}
}

func TestReadVIntRejectsUnknownSize(t *testing.T) {
	_, _, err := ReadVInt(bytes.NewReader([]byte{0xFF}), false)
	if !errors.Is(err, containererr.ErrInvalidData) {
		t.Fatalf("expected ErrInvalidData for unknown-size sentinel, got %v", err)
	}
}

func TestWriteIDMinIDWidthRoundTrip(t *testing.T) {
	ids := []uint32{0x80, 0xEC, 0x1549A966, 0x1F43B675}
	for _, id := range ids {
		encoded := WriteID(id)
		got, width, err := ReadVInt(bytes.NewReader(encoded), true)
		if err != nil {
			t.Fatalf("ReadVInt after WriteID(%#x): %v", id, err)
		}
		if uint32(got) != id || width != len(encoded) {
			t.Fatalf("round-trip id %#x = (%#x, %d), want (%#x, %d)", id, got, width, id, len(encoded))
		}
	}
}
