package mp4

import (
	"encoding/binary"
	"testing"
)

// makeBox wraps body in a standard (non-extended) 8-byte box header.
func makeBox(typ string, body []byte) []byte {
	box := make([]byte, 8+len(body))
	binary.BigEndian.PutUint32(box[0:4], uint32(len(box)))
	copy(box[4:8], typ)
	copy(box[8:], body)
	return box
}

func TestFindChildBoxesScansSiblings(t *testing.T) {
	a := makeBox("free", []byte{1, 2, 3})
	b := makeBox("skip", []byte{4, 5})
	raw := append(append([]byte{}, a...), b...)
	f := &fakeFile{data: raw}

	boxes, err := FindChildBoxes(f, 0, int64(len(raw)))
	if err != nil {
		t.Fatal(err)
	}
	if len(boxes) != 2 {
		t.Fatalf("got %d boxes, want 2", len(boxes))
	}
	if boxes[0].Type.String() != "free" || boxes[1].Type.String() != "skip" {
		t.Fatalf("box types = %q, %q", boxes[0].Type, boxes[1].Type)
	}
	if boxes[1].StartOffset != int64(len(a)) {
		t.Fatalf("second box StartOffset = %d, want %d", boxes[1].StartOffset, len(a))
	}
}

func TestFindChildBoxesRejectsOverrun(t *testing.T) {
	a := makeBox("free", []byte{1, 2, 3})
	f := &fakeFile{data: a}
	if _, err := FindChildBoxes(f, 0, int64(len(a))-1); err == nil {
		t.Fatal("expected an error when a box's declared size overruns its parent")
	}
}

func TestFindDescendantWalksContainerChain(t *testing.T) {
	stsc := makeBox("stsc", make([]byte, fullBoxHeaderSize))
	stbl := makeBox("stbl", stsc)
	minf := makeBox("minf", stbl)
	mdia := makeBox("mdia", minf)
	trak := makeBox("trak", mdia)

	f := &fakeFile{data: trak}
	trakBox, err := ReadBoxHeader(f, 0, int64(len(trak)))
	if err != nil {
		t.Fatal(err)
	}

	found, err := FindDescendant(f, trakBox, TypeMdia, TypeMinf, TypeStbl, TypeStsc)
	if err != nil {
		t.Fatal(err)
	}
	if found.Type != TypeStsc {
		t.Fatalf("found %q, want stsc", found.Type)
	}
}

func TestFindDescendantRejectsNonContainerIntermediate(t *testing.T) {
	leaf := makeBox("stsc", make([]byte, fullBoxHeaderSize))
	f := &fakeFile{data: leaf}
	box, err := ReadBoxHeader(f, 0, int64(len(leaf)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := FindDescendant(f, box, TypeStbl); err == nil {
		t.Fatal("expected an error descending through a non-container box")
	}
}
