package ebml

import "io"

// HeaderSize returns the encoded byte length of an element header (ID plus
// minimum-width size denotation) for the given id and data size, without
// writing anything. Used throughout the planner to predict sizes before
// committing to a layout.
func HeaderSize(id uint32, dataSize uint64) uint64 {
	return uint64(len(WriteID(id))) + uint64(MinWidth(dataSize))
}

// ElementSize is HeaderSize(id, dataSize) + dataSize: the total encoded
// byte length of an element with this id and this much data.
func ElementSize(id uint32, dataSize uint64) uint64 {
	return HeaderSize(id, dataSize) + dataSize
}

// WriteHeader writes just an element's ID and minimum-width size denotation
// for a data payload of dataSize bytes, without writing any payload. Callers
// stream the payload themselves afterward (used by the segment writer for
// Segment and Cluster elements, whose content is emitted incrementally).
func WriteHeader(w io.Writer, id uint32, dataSize uint64) error {
	idBytes := WriteID(id)
	sizeBytes, err := WriteSize(dataSize, 0)
	if err != nil {
		return err
	}
	if _, err := w.Write(idBytes); err != nil {
		return err
	}
	_, err = w.Write(sizeBytes)
	return err
}

// WriteElement writes a complete element (ID, minimum-width size
// denotation, data) to w and returns the number of bytes written.
func WriteElement(w io.Writer, id uint32, data []byte) (int, error) {
	idBytes := WriteID(id)
	sizeBytes, err := WriteSize(uint64(len(data)), 0)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(idBytes)
	if err != nil {
		return n, err
	}
	n2, err := w.Write(sizeBytes)
	n += n2
	if err != nil {
		return n, err
	}
	n3, err := w.Write(data)
	n += n3
	return n, err
}
