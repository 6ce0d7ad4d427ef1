package search

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"hexpeek/internal/hexerr"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// QueryKind selects how a query string is turned into pattern bytes.
type QueryKind int

const (
	QueryText QueryKind = iota
	QueryHex
	QueryBits
	QueryDecimal
)

// ParseQueryKind maps a kind name to its QueryKind.
func ParseQueryKind(s string) (QueryKind, error) {
	switch strings.ToLower(s) {
	case "", "text", "ascii":
		return QueryText, nil
	case "hex":
		return QueryHex, nil
	case "bits", "binary":
		return QueryBits, nil
	case "decimal", "dec":
		return QueryDecimal, nil
	}
	return 0, fmt.Errorf("unknown query kind %q", s)
}

// Encoding is the character encoding for text queries.
type Encoding int

const (
	UTF8 Encoding = iota
	Latin1
	UTF16LE
	UTF16BE
)

// ParseEncoding maps an encoding name to its Encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.ReplaceAll(s, "-", "")) {
	case "", "utf8":
		return UTF8, nil
	case "latin1", "iso88591":
		return Latin1, nil
	case "utf16le", "utf16":
		return UTF16LE, nil
	case "utf16be":
		return UTF16BE, nil
	}
	return 0, fmt.Errorf("unknown text encoding %q", s)
}

func (e Encoding) encoding() encoding.Encoding {
	switch e {
	case Latin1:
		return charmap.ISO8859_1
	case UTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case UTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	}
	return nil
}

// Query describes a user search query.
type Query struct {
	Kind  QueryKind
	Input string

	// Encoding applies to QueryText.
	Encoding Encoding

	// Width and BigEndian apply to QueryDecimal. Width is 1, 2, 4 or 8.
	Width     int
	BigEndian bool
}

// Pattern converts the query into the bytes to search for. A query that
// yields no bytes is an invalid pattern.
func (q Query) Pattern() ([]byte, error) {
	var (
		p   []byte
		err error
	)
	switch q.Kind {
	case QueryText:
		p, err = encodeText(q.Input, q.Encoding)
	case QueryHex:
		p, err = parseHex(q.Input)
	case QueryBits:
		p, err = parseBits(q.Input)
	case QueryDecimal:
		p, err = parseDecimal(q.Input, q.Width, q.BigEndian)
	default:
		err = fmt.Errorf("unknown query kind %d", q.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", hexerr.ErrInvalidPattern, err)
	}
	if len(p) == 0 {
		return nil, fmt.Errorf("%w: query %q is empty", hexerr.ErrInvalidPattern, q.Input)
	}
	return p, nil
}

func encodeText(s string, enc Encoding) ([]byte, error) {
	e := enc.encoding()
	if e == nil {
		return []byte(s), nil
	}
	out, err := e.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("encode text: %w", err)
	}
	return out, nil
}

// parseHex ignores everything but hex digits, so "DE AD be-ef" and
// "0xDEADBEEF" style input both work once the prefix is stripped.
func parseHex(s string) ([]byte, error) {
	s = strings.ReplaceAll(strings.ReplaceAll(s, "0x", ""), "0X", "")
	digits := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if isHexDigit(s[i]) {
			digits = append(digits, s[i])
		}
	}
	if len(digits)%2 != 0 {
		return nil, fmt.Errorf("hex query has an odd number of digits (%d)", len(digits))
	}
	result := make([]byte, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		b, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			return nil, err
		}
		result[i/2] = byte(b)
	}
	return result, nil
}

func parseBits(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	for i := 0; i < len(s); i++ {
		if s[i] != '0' && s[i] != '1' {
			return nil, fmt.Errorf("bit query contains %q", s[i])
		}
	}
	for len(s)%8 != 0 {
		s = "0" + s
	}
	result := make([]byte, len(s)/8)
	for i := 0; i < len(s); i += 8 {
		var b byte
		for j := 0; j < 8; j++ {
			if s[i+j] == '1' {
				b |= 1 << (7 - j)
			}
		}
		result[i/8] = b
	}
	return result, nil
}

func parseDecimal(s string, width int, bigEndian bool) ([]byte, error) {
	if width == 0 {
		width = 1
	}
	switch width {
	case 1, 2, 4, 8:
	default:
		return nil, fmt.Errorf("decimal width must be 1, 2, 4 or 8, got %d", width)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(s, 10, width*8)
	if err != nil {
		return nil, fmt.Errorf("decimal query: %w", err)
	}

	var order binary.ByteOrder = binary.LittleEndian
	if bigEndian {
		order = binary.BigEndian
	}
	result := make([]byte, 8)
	order.PutUint64(result, n)
	if bigEndian {
		return result[8-width:], nil
	}
	return result[:width], nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
