// Package hexfmt renders store bytes as addressable hex/ASCII rows.
package hexfmt

import (
	"errors"
	"fmt"
	"strings"

	"hexpeek/internal/hexerr"
	"hexpeek/internal/store"
)

// DefaultRowWidth is the conventional number of bytes per row.
const DefaultRowWidth = 16

// Placeholder stands in for non-printable bytes in the ASCII column.
const Placeholder = '.'

// ErrInvalidRowWidth is returned for a row width that is not positive.
var ErrInvalidRowWidth = errors.New("row width must be positive")

const hexDigits = "0123456789ABCDEF"

// Row is one rendered line of a hex view.
type Row struct {
	Offset int64
	Bytes  []byte
	Hex    string
	ASCII  string
}

// FormatRows renders up to rowCount rows of rowWidth bytes starting at the
// row containing startOffset. Rows stop at the end of the store; the last
// row may be shorter than rowWidth.
func FormatRows(s store.ByteStore, startOffset int64, rowCount, rowWidth int) ([]Row, error) {
	if rowWidth <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRowWidth, rowWidth)
	}
	length := s.Len()
	if startOffset < 0 || startOffset > length {
		return nil, &hexerr.RangeError{Offset: startOffset, Length: length}
	}
	if rowCount <= 0 {
		return nil, nil
	}

	width := int64(rowWidth)
	offset := startOffset - startOffset%width
	rows := make([]Row, 0, rowCount)
	for len(rows) < rowCount && offset < length {
		n := int(min(width, length-offset))
		data, err := s.Read(offset, n)
		if err != nil {
			return nil, fmt.Errorf("format row at %d: %w", offset, err)
		}
		rows = append(rows, FormatRow(offset, data))
		offset += width
	}
	return rows, nil
}

// FormatRow renders data as a single row at offset.
func FormatRow(offset int64, data []byte) Row {
	return Row{
		Offset: offset,
		Bytes:  data,
		Hex:    Hex(data),
		ASCII:  ASCII(data),
	}
}

// Hex renders bytes as upper-case pairs separated by spaces, with an extra
// space between groups of eight.
func Hex(data []byte) string {
	var b strings.Builder
	b.Grow(len(data)*3 + len(data)/8)
	for i, v := range data {
		if i > 0 {
			b.WriteByte(' ')
			if i%8 == 0 {
				b.WriteByte(' ')
			}
		}
		b.WriteByte(hexDigits[v>>4])
		b.WriteByte(hexDigits[v&0x0F])
	}
	return b.String()
}

// HexWidth returns the rendered length of the hex column of a full row.
func HexWidth(rowWidth int) int {
	if rowWidth <= 0 {
		return 0
	}
	return rowWidth*3 - 1 + (rowWidth-1)/8
}

// ASCII maps printable bytes (0x20-0x7E) to themselves and everything else
// to Placeholder.
func ASCII(data []byte) string {
	out := make([]byte, len(data))
	for i, v := range data {
		if IsPrintable(v) {
			out[i] = v
		} else {
			out[i] = Placeholder
		}
	}
	return string(out)
}

// IsPrintable reports whether v renders as itself in the ASCII column.
func IsPrintable(v byte) bool {
	return v >= 0x20 && v <= 0x7E
}
