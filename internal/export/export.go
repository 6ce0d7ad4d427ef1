// Package export serializes hex rows and diff segments as plain text, CSV or
// JSON.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"hexpeek/internal/diff"
	"hexpeek/internal/hexerr"
	"hexpeek/internal/hexfmt"
	"hexpeek/internal/store"
)

// Format is an output encoding.
type Format int

const (
	PlainText Format = iota
	CSV
	JSON
)

func (f Format) String() string {
	switch f {
	case PlainText:
		return "text"
	case CSV:
		return "csv"
	case JSON:
		return "json"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat maps a format name to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "text", "plain", "txt":
		return PlainText, nil
	case "csv":
		return CSV, nil
	case "json":
		return JSON, nil
	}
	return 0, fmt.Errorf("%w: %q", hexerr.ErrUnsupportedFormat, name)
}

// FormatForPath picks a format from the extension of an output path.
func FormatForPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return CSV, true
	case ".json":
		return JSON, true
	case ".txt", ".log", "":
		return PlainText, true
	}
	return 0, false
}

func unsupported(f Format) error {
	return fmt.Errorf("%w: %v", hexerr.ErrUnsupportedFormat, f)
}

// PreviewBytes is the number of bytes shown per side of a changed segment.
const PreviewBytes = 16

// Rows serializes rows in the given format.
func Rows(rows []hexfmt.Row, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteRows(&buf, rows, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteRows writes rows to w in the given format.
func WriteRows(w io.Writer, rows []hexfmt.Row, format Format) error {
	switch format {
	case PlainText:
		return writeRowsText(w, rows)
	case CSV:
		return writeRowsCSV(w, rows)
	case JSON:
		return writeRowsJSON(w, rows)
	}
	return unsupported(format)
}

// RowLine renders a row as "OOOOOOOO: hex | ascii" with the hex column padded
// to the width of a full row.
func RowLine(row hexfmt.Row, rowWidth int) string {
	return fmt.Sprintf("%08X: %-*s | %s", row.Offset, hexfmt.HexWidth(rowWidth), row.Hex, row.ASCII)
}

func rowWidth(rows []hexfmt.Row) int {
	width := 0
	for _, r := range rows {
		width = max(width, len(r.Bytes))
	}
	return width
}

func writeRowsText(w io.Writer, rows []hexfmt.Row) error {
	width := rowWidth(rows)
	for _, r := range rows {
		if _, err := fmt.Fprintln(w, RowLine(r, width)); err != nil {
			return err
		}
	}
	return nil
}

func writeRowsCSV(w io.Writer, rows []hexfmt.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"offset", "hex", "ascii"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{offsetString(r.Offset), r.Hex, r.ASCII}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type rowRecord struct {
	Offset string `json:"offset"`
	Hex    string `json:"hex"`
	ASCII  string `json:"ascii"`
}

func writeRowsJSON(w io.Writer, rows []hexfmt.Row) error {
	records := make([]rowRecord, len(rows))
	for i, r := range rows {
		records[i] = rowRecord{Offset: offsetString(r.Offset), Hex: r.Hex, ASCII: r.ASCII}
	}
	return writeJSON(w, records)
}

// Diff serializes segments in the given format, previewing the changed bytes
// of each side from a and b.
func Diff(segments []diff.Segment, a, b store.ByteStore, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteDiff(&buf, segments, a, b, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteDiff writes segments to w in the given format.
func WriteDiff(w io.Writer, segments []diff.Segment, a, b store.ByteStore, format Format) error {
	switch format {
	case PlainText:
		return writeDiffText(w, segments, a, b)
	case CSV:
		return writeDiffCSV(w, segments, a, b)
	case JSON:
		return writeDiffJSON(w, segments, a, b)
	}
	return unsupported(format)
}

// Preview returns the hex of up to PreviewBytes bytes of a segment on one
// side. Equal segments and the absent side of Insert and Delete have none.
func Preview(s store.ByteStore, kind diff.Kind, offset, length int64) (string, error) {
	if kind == diff.Equal || offset == diff.NoOffset {
		return "", nil
	}
	n := min(length, PreviewBytes)
	data, err := s.Read(offset, int(n))
	if err != nil {
		return "", fmt.Errorf("preview %s at %d: %w", s.Source(), offset, err)
	}
	out := hexfmt.Hex(data)
	if length > n {
		out += " ..."
	}
	return out, nil
}

type diffRecord struct {
	Kind    string  `json:"kind"`
	OffsetA *string `json:"offset_a"`
	OffsetB *string `json:"offset_b"`
	Length  int64   `json:"length"`
	BytesA  string  `json:"bytes_a,omitempty"`
	BytesB  string  `json:"bytes_b,omitempty"`
}

func newDiffRecord(seg diff.Segment, a, b store.ByteStore) (diffRecord, error) {
	pa, err := Preview(a, seg.Kind, seg.OffsetA, seg.Length)
	if err != nil {
		return diffRecord{}, err
	}
	pb, err := Preview(b, seg.Kind, seg.OffsetB, seg.Length)
	if err != nil {
		return diffRecord{}, err
	}
	return diffRecord{
		Kind:    seg.Kind.String(),
		OffsetA: optionalOffset(seg.OffsetA),
		OffsetB: optionalOffset(seg.OffsetB),
		Length:  seg.Length,
		BytesA:  pa,
		BytesB:  pb,
	}, nil
}

// DiffLine renders one segment as a line of the plain text report.
func DiffLine(seg diff.Segment, a, b store.ByteStore) (string, error) {
	rec, err := newDiffRecord(seg, a, b)
	if err != nil {
		return "", err
	}
	line := fmt.Sprintf("%-7s a=%-10s b=%-10s len=%d", rec.Kind, deref(rec.OffsetA), deref(rec.OffsetB), rec.Length)
	if rec.BytesA != "" {
		line += " a:[" + rec.BytesA + "]"
	}
	if rec.BytesB != "" {
		line += " b:[" + rec.BytesB + "]"
	}
	return line, nil
}

func writeDiffText(w io.Writer, segments []diff.Segment, a, b store.ByteStore) error {
	for _, seg := range segments {
		line, err := DiffLine(seg, a, b)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func writeDiffCSV(w io.Writer, segments []diff.Segment, a, b store.ByteStore) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"kind", "offset_a", "offset_b", "length", "bytes_a", "bytes_b"}); err != nil {
		return err
	}
	for _, seg := range segments {
		rec, err := newDiffRecord(seg, a, b)
		if err != nil {
			return err
		}
		err = cw.Write([]string{
			rec.Kind,
			deref(rec.OffsetA),
			deref(rec.OffsetB),
			strconv.FormatInt(rec.Length, 10),
			rec.BytesA,
			rec.BytesB,
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeDiffJSON(w io.Writer, segments []diff.Segment, a, b store.ByteStore) error {
	records := make([]diffRecord, 0, len(segments))
	for _, seg := range segments {
		rec, err := newDiffRecord(seg, a, b)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	return writeJSON(w, records)
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func offsetString(off int64) string {
	return fmt.Sprintf("0x%08X", off)
}

func optionalOffset(off int64) *string {
	if off == diff.NoOffset {
		return nil
	}
	s := offsetString(off)
	return &s
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
