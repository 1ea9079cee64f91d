// Package ebml implements the binary I/O primitives (C1) and the generic
// lazy tree element (C3/C4) shared by every length-prefixed container format
// this module handles. The variable-length integer helpers below decode and
// encode EBML's two VINT flavours: element IDs, which keep the leading-one
// marker bit as part of the value, and data sizes, which strip it.
package ebml

import (
	"fmt"
	"io"

	"github.com/mutwol/tagparser/containererr"
)

// MaxIDLength is the longest EBML element ID this package will decode.
const MaxIDLength = 4

// MaxSizeLength is the longest EBML size denotation this package will decode.
const MaxSizeLength = 8

// vintWidth returns the byte width encoded by the VINT's leading-one marker
// and the bitmask covering the payload bits in the first byte. A first byte
// of 0 has no marker and is invalid.
func vintWidth(first byte) (width int, payloadMask byte) {
	mask := byte(0x80)
	for w := 1; w <= 8; w++ {
		if first&mask != 0 {
			return w, mask - 1
		}
		mask >>= 1
	}
	return 0, 0
}

// ReadVInt reads a variable-length integer from r, returning the decoded
// value and its encoded width in bytes. keepMarker controls whether the
// marker bit is kept in the returned value. An all-ones payload denotes
// "unknown size", which this package does not support (spec §4.1).
func ReadVInt(r io.Reader, keepMarker bool) (value uint64, width int, err error) {
	var b [1]byte
	if _, err = io.ReadFull(r, b[:]); err != nil {
		return 0, 0, fmt.Errorf("read vint first byte: %w", containererr.ErrTruncatedData)
	}

	first := b[0]
	w, mask := vintWidth(first)
	if w == 0 {
		return 0, 0, fmt.Errorf("vint has no length marker: %w", containererr.ErrInvalidData)
	}
	if keepMarker {
		if w > MaxIDLength {
			return 0, 0, fmt.Errorf("vint id width %d exceeds max %d: %w", w, MaxIDLength, containererr.ErrInvalidData)
		}
		value = uint64(first)
	} else {
		if w > MaxSizeLength {
			return 0, 0, fmt.Errorf("vint size width %d exceeds max %d: %w", w, MaxSizeLength, containererr.ErrInvalidData)
		}
		value = uint64(first & mask)
	}

	rest := make([]byte, w-1)
	if w > 1 {
		if _, err = io.ReadFull(r, rest); err != nil {
			return 0, 0, fmt.Errorf("read vint tail: %w", containererr.ErrTruncatedData)
		}
	}
	for _, bb := range rest {
		value = (value << 8) | uint64(bb)
	}

	if !keepMarker && isAllOnesPayload(first, mask, rest) {
		return 0, 0, fmt.Errorf("unknown-size elements are not supported: %w", containererr.ErrInvalidData)
	}

	return value, w, nil
}

// isAllOnesPayload reports whether every payload bit of a decoded size VINT
// is set, which denotes the EBML "unknown size" sentinel.
func isAllOnesPayload(first, mask byte, rest []byte) bool {
	if first&mask != mask {
		return false
	}
	for _, b := range rest {
		if b != 0xFF {
			return false
		}
	}
	return true
}

// MinWidth returns the minimum number of bytes needed to encode v as a size
// VINT (marker bit cleared from the payload).
func MinWidth(v uint64) int {
	for w := 1; w <= MaxSizeLength; w++ {
		payloadBits := uint(7 * w)
		if v < (uint64(1)<<payloadBits)-1 { // reserve all-ones for "unknown"
			return w
		}
	}
	return MaxSizeLength
}

// MinIDWidth returns the minimum number of bytes needed to encode a
// marker-preserving ID value v (v already includes the marker bit).
func MinIDWidth(v uint64) int {
	for w := 1; w <= MaxIDLength; w++ {
		marker := uint64(1) << (8*w - w)
		if v >= marker && v < marker<<1 {
			return w
		}
	}
	return MaxIDLength
}

// WriteSize encodes v as a size VINT using the minimum width unless width is
// given explicitly (width == 0 means "minimum").
func WriteSize(v uint64, width int) ([]byte, error) {
	if width == 0 {
		width = MinWidth(v)
	}
	if width < 1 || width > MaxSizeLength {
		return nil, fmt.Errorf("size width %d out of range: %w", width, containererr.ErrInvalidData)
	}
	payloadBits := uint(7 * width)
	if v >= (uint64(1)<<payloadBits)-1 {
		return nil, fmt.Errorf("value %d does not fit in %d-byte size vint: %w", v, width, containererr.ErrInvalidData)
	}
	marker := uint64(1) << payloadBits
	return encodeBigEndian(v|marker, width), nil
}

// WriteID encodes a marker-preserving ID value verbatim at its natural width.
func WriteID(id uint32) []byte {
	w := MinIDWidth(uint64(id))
	return encodeBigEndian(uint64(id), w)
}

func encodeBigEndian(v uint64, width int) []byte {
	out := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}
