package ebml

import "testing"

func TestReadUintPutUintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 255, 256, 1 << 20, 1<<63 - 1}
	for _, v := range values {
		if got := ReadUint(PutUint(v)); got != v {
			t.Fatalf("ReadUint(PutUint(%d)) = %d", v, got)
		}
	}
}

func TestReadIntSignedWidths(t *testing.T) {
	cases := []struct {
		data []byte
		want int64
	}{
		{[]byte{0x01}, 1},
		{[]byte{0xFF}, -1},
		{[]byte{0x00, 0xFF}, 255},
		{[]byte{0xFF, 0xFF}, -1},
		{[]byte{0x80, 0x00, 0x00, 0x00}, -2147483648},
	}
	for _, c := range cases {
		if got := ReadInt(c.data); got != c.want {
			t.Fatalf("ReadInt(% x) = %d, want %d", c.data, got, c.want)
		}
	}
}

func TestReadFloatWidths(t *testing.T) {
	encoded := PutFloat64(3.5)
	if got := ReadFloat(encoded); got != 3.5 {
		t.Fatalf("ReadFloat(PutFloat64(3.5)) = %v", got)
	}
	if got := ReadFloat(nil); got != 0 {
		t.Fatalf("ReadFloat(nil) = %v, want 0", got)
	}
}

func TestReadStringStripsTrailingNUL(t *testing.T) {
	if got := ReadString([]byte("hi\x00")); got != "hi" {
		t.Fatalf("ReadString = %q, want %q", got, "hi")
	}
	if got := ReadString([]byte("hi")); got != "hi" {
		t.Fatalf("ReadString = %q, want %q", got, "hi")
	}
}
