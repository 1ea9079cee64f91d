package ebml

import (
	"fmt"
	"io"

	"github.com/mutwol/tagparser/containererr"
	"github.com/mutwol/tagparser/notice"
)

// Decoder is implemented once per concrete container format (EBML, MP4) and
// supplied to every Element in a tree. It is the "trait" spec §9 asks for in
// place of the original C++'s curiously-recurring template parameter.
type Decoder interface {
	// DecodeHeader reads the element header starting at startOffset from r
	// and returns the element ID, the byte length of the ID, the data size,
	// and the byte length of the size denotation.
	DecodeHeader(r io.ReadSeeker, startOffset uint64) (id uint32, idLength uint64, dataSize uint64, sizeLength uint64, err error)
	// IsParent reports whether an element with this ID is expected to
	// contain child elements rather than opaque payload bytes.
	IsParent(id uint32) bool
	// IsPadding reports whether an element with this ID is a padding
	// element (Void in EBML) that callers should generally skip.
	IsPadding(id uint32) bool
}

// Element is the generic, lazily-parsed tree node shared by every
// length-prefixed container format (C3). Ownership: a parent Element
// exclusively owns its first child and next sibling; Parent is a
// non-owning back-reference that must never outlive the node it points to,
// which holds because nothing destroys an Element before its parent.
type Element struct {
	Source  io.ReadSeeker
	Decoder Decoder
	Parent  *Element

	StartOffset  uint64
	ID           uint32
	IDLength     uint64
	DataSize     uint64
	SizeLength   uint64
	bound        uint64 // exclusive offset this element and its right siblings may not cross
	parsed       bool
	childDone    bool
	siblingDone  bool
	firstChild   *Element
	nextSibling  *Element
}

// NewRoot creates the root element of a tree: the first top-level element in
// the stream, bounded by the stream's total size.
func NewRoot(source io.ReadSeeker, decoder Decoder, startOffset, streamSize uint64) *Element {
	return &Element{Source: source, Decoder: decoder, StartOffset: startOffset, bound: streamSize}
}

// HeaderLength is id_length + size_length.
func (e *Element) HeaderLength() uint64 { return e.IDLength + e.SizeLength }

// DataOffset is start_offset + header_length.
func (e *Element) DataOffset() uint64 { return e.StartOffset + e.HeaderLength() }

// TotalSize is id_length + size_length + data_size.
func (e *Element) TotalSize() uint64 { return e.HeaderLength() + e.DataSize }

// MaxTotalSize is the clamp imposed by the parent (or the stream size for a
// root element): the element and everything after it at this level may not
// extend past StartOffset+MaxTotalSize().
func (e *Element) MaxTotalSize() uint64 { return e.bound - e.StartOffset }

// Parsed reports whether Parse has successfully read this element's header.
func (e *Element) Parsed() bool { return e.parsed }

// Parse reads the header at StartOffset and fills ID/DataSize/lengths. It is
// idempotent: calling it again after success is a no-op.
func (e *Element) Parse() error {
	if e.parsed {
		return nil
	}
	id, idLen, dataSize, sizeLen, err := e.Decoder.DecodeHeader(e.Source, e.StartOffset)
	if err != nil {
		return err
	}
	if idLen == 0 || idLen > MaxIDLength {
		return fmt.Errorf("element id length %d out of range: %w", idLen, containererr.ErrInvalidData)
	}
	if sizeLen > MaxSizeLength {
		return fmt.Errorf("element size length %d out of range: %w", sizeLen, containererr.ErrInvalidData)
	}
	e.ID, e.IDLength, e.DataSize, e.SizeLength = id, idLen, dataSize, sizeLen
	if e.TotalSize() > e.MaxTotalSize() {
		return fmt.Errorf("element 0x%X at %d: size %d exceeds parent bound %d: %w",
			id, e.StartOffset, e.TotalSize(), e.MaxTotalSize(), containererr.ErrInvalidData)
	}
	e.parsed = true
	return nil
}

// Reparse clears any discovered children/siblings and re-reads the header.
// Used when the underlying stream is swapped, e.g. backup to output.
func (e *Element) Reparse(source io.ReadSeeker) error {
	if source != nil {
		e.Source = source
	}
	e.parsed = false
	e.childDone = false
	e.siblingDone = false
	e.firstChild = nil
	e.nextSibling = nil
	return e.Parse()
}

// FirstChild returns the first child element, parsing it on first call.
// Requires Parse() to have succeeded. Returns nil, nil if there are no
// children (leaf element or empty data).
func (e *Element) FirstChild() (*Element, error) {
	if !e.parsed {
		return nil, fmt.Errorf("first child requested before parse: %w", containererr.ErrInvalidData)
	}
	if e.childDone {
		return e.firstChild, nil
	}
	e.childDone = true
	if !e.Decoder.IsParent(e.ID) || e.DataSize == 0 {
		return nil, nil
	}
	child := &Element{
		Source:  e.Source,
		Decoder: e.Decoder,
		Parent:  e,
		StartOffset: e.DataOffset(),
		bound:   e.DataOffset() + e.DataSize,
	}
	if err := child.Parse(); err != nil {
		return nil, err
	}
	e.firstChild = child
	return child, nil
}

// NextSibling returns the element immediately following this one at the same
// level, parsing it on first call. Requires Parse() to have succeeded.
// Returns nil, nil once the parent's (or stream's) bound is reached.
func (e *Element) NextSibling() (*Element, error) {
	if !e.parsed {
		return nil, fmt.Errorf("next sibling requested before parse: %w", containererr.ErrInvalidData)
	}
	if e.siblingDone {
		return e.nextSibling, nil
	}
	e.siblingDone = true
	next := e.StartOffset + e.TotalSize()
	if next >= e.bound {
		return nil, nil
	}
	sib := &Element{
		Source:      e.Source,
		Decoder:     e.Decoder,
		Parent:      e.Parent,
		StartOffset: next,
		bound:       e.bound,
	}
	if err := sib.Parse(); err != nil {
		return nil, err
	}
	e.nextSibling = sib
	return sib, nil
}

// IsParent reports whether this element's data is a sequence of children.
func (e *Element) IsParent() bool { return e.Decoder.IsParent(e.ID) }

// IsPadding reports whether this element is a padding (Void) element.
func (e *Element) IsPadding() bool { return e.Decoder.IsPadding(e.ID) }

// FirstChildOffset returns the offset at which this element's children (if
// any) begin; equal to DataOffset() unless the format's decoder overrides it
// (e.g. MP4 full-box version/flags fields preceding children).
func (e *Element) FirstChildOffset() uint64 { return e.DataOffset() }

// Data reads and returns this element's raw data bytes. It does not cache
// the result; callers that need the bytes repeatedly should keep the slice.
func (e *Element) Data() ([]byte, error) {
	if _, err := e.Source.Seek(int64(e.DataOffset()), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to data: %w", containererr.ErrIO)
	}
	buf := make([]byte, e.DataSize)
	if e.DataSize > 0 {
		if _, err := io.ReadFull(e.Source, buf); err != nil {
			return nil, fmt.Errorf("read data: %w", containererr.ErrTruncatedData)
		}
	}
	return buf, nil
}

// ChildByID returns the first direct child with the given ID, or nil if
// none exists. It parses children lazily as it walks the sibling chain.
func (e *Element) ChildByID(id uint32) (*Element, error) {
	child, err := e.FirstChild()
	if err != nil {
		return nil, err
	}
	for child != nil {
		if child.ID == id {
			return child, nil
		}
		child, err = child.NextSibling()
		if err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// SiblingByID searches this element's sibling chain (starting at this
// element if includeSelf is true, otherwise at the next sibling) for the
// first element with the given ID.
func (e *Element) SiblingByID(id uint32, includeSelf bool) (*Element, error) {
	cur := e
	if !includeSelf {
		next, err := e.NextSibling()
		if err != nil {
			return nil, err
		}
		cur = next
	}
	for cur != nil {
		if cur.ID == id {
			return cur, nil
		}
		next, err := cur.NextSibling()
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return nil, nil
}

// SubelementByPath walks successive ChildByID calls following path, e.g.
// SubelementByPath([]uint32{IDSegment, IDTracks, IDTrackEntry}) descends
// three levels. Returns nil if any step is absent.
func (e *Element) SubelementByPath(path []uint32) (*Element, error) {
	cur := e
	for _, id := range path {
		next, err := cur.ChildByID(id)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, nil
		}
		cur = next
	}
	return cur, nil
}

// AbortFunc is polled by long-running copy operations; returning true
// cancels the copy with containererr.ErrAborted.
type AbortFunc func() bool

// ProgressFunc is called with bytes copied so far and the total expected,
// at the copier's discretion (e.g. once per underlying chunk).
type ProgressFunc func(copied, total int64)

// copyN copies exactly n bytes from src to dst, honoring abort and progress
// callbacks. It is the shared primitive behind CopyHeader/CopyWithoutChildren/
// CopyEntirely and the segment writer's bulk data moves (C1).
func copyN(dst io.Writer, src io.Reader, n int64, abort AbortFunc, progress ProgressFunc) (int64, error) {
	const chunk = 1 << 20
	buf := make([]byte, chunk)
	var copied int64
	for copied < n {
		if abort != nil && abort() {
			return copied, containererr.ErrAborted
		}
		want := n - copied
		if want > chunk {
			want = chunk
		}
		nr, err := io.ReadFull(src, buf[:want])
		if nr > 0 {
			if _, werr := dst.Write(buf[:nr]); werr != nil {
				return copied, fmt.Errorf("copy write: %w", containererr.ErrIO)
			}
			copied += int64(nr)
		}
		if err != nil {
			return copied, fmt.Errorf("copy read: %w", containererr.ErrTruncatedData)
		}
		if progress != nil {
			progress(copied, n)
		}
	}
	return copied, nil
}

// CopyHeader copies just this element's raw header bytes (ID + size
// denotation) to w.
func (e *Element) CopyHeader(w io.Writer) error {
	if _, err := e.Source.Seek(int64(e.StartOffset), io.SeekStart); err != nil {
		return fmt.Errorf("seek to header: %w", containererr.ErrIO)
	}
	_, err := copyN(w, e.Source, int64(e.HeaderLength()), nil, nil)
	return err
}

// CopyWithoutChildren copies this element's header and, if it is not a
// parent element, its data bytes verbatim. For a parent element there are no
// data bytes outside its children, so only the header is copied; callers
// that need the children copy them individually via CopyEntirely.
func (e *Element) CopyWithoutChildren(w io.Writer) error {
	if e.IsParent() {
		return e.CopyHeader(w)
	}
	if _, err := e.Source.Seek(int64(e.StartOffset), io.SeekStart); err != nil {
		return fmt.Errorf("seek to element: %w", containererr.ErrIO)
	}
	_, err := copyN(w, e.Source, int64(e.TotalSize()), nil, nil)
	return err
}

// CopyEntirely copies this element and, recursively, every descendant to
// target as one raw byte range, checking abort before starting and before
// each copied chunk and reporting progress as it goes. On abort it raises
// containererr.ErrAborted.
func (e *Element) CopyEntirely(target io.Writer, abort AbortFunc, progress ProgressFunc) error {
	if abort != nil && abort() {
		return containererr.ErrAborted
	}
	if _, err := e.Source.Seek(int64(e.StartOffset), io.SeekStart); err != nil {
		return fmt.Errorf("seek to element: %w", containererr.ErrIO)
	}
	_, err := copyN(target, e.Source, int64(e.TotalSize()), abort, progress)
	return err
}

// ValidateSubsequentElementStructure walks this element and its following
// siblings, parsing each (recording a warning notification and
// stopping the spine walk on the first unparsable element rather than
// propagating), and returns the total byte size of any padding elements
// encountered at this level.
func (e *Element) ValidateSubsequentElementStructure(bus *notice.Bus, context string) uint64 {
	var padding uint64
	cur := e
	for cur != nil {
		if cur.IsPadding() {
			padding += cur.TotalSize()
		}
		next, err := cur.NextSibling()
		if err != nil {
			bus.Add(notice.Warning, context, fmt.Sprintf("element at %d: %v", cur.StartOffset, err))
			break
		}
		cur = next
	}
	return padding
}
