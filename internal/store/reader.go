package store

import (
	"io"

	"hexpeek/internal/hexerr"
)

type readerAt struct {
	s ByteStore
}

// ReaderAt adapts a store to io.ReaderAt. Reads past the end are clipped and
// report io.EOF as the io.ReaderAt contract requires.
func ReaderAt(s ByteStore) io.ReaderAt {
	return readerAt{s: s}
}

func (r readerAt) ReadAt(p []byte, off int64) (int, error) {
	size := r.s.Len()
	if off < 0 {
		return 0, &hexerr.RangeError{Offset: off, Count: int64(len(p)), Length: size}
	}
	if off >= size {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := int(min(int64(len(p)), size-off))
	data, err := r.s.Read(off, n)
	if err != nil {
		return 0, err
	}
	copy(p, data)
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// NewReader returns a sequential reader over the whole store.
func NewReader(s ByteStore) *io.SectionReader {
	return io.NewSectionReader(ReaderAt(s), 0, s.Len())
}
