// Package hexparse converts textual hex dumps into raw bytes.
//
// A line made only of hex digits is decoded pairwise and must have an even
// length. Any other line contributes the bytes of its 0xAB, \xAB and
// standalone AB tokens; everything else on it is ignored.
package hexparse

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrOddLength is returned for a pure hex line with an odd number of digits.
var ErrOddLength = errors.New("pure-hex line has odd length")

var byteToken = regexp.MustCompile(`0x([0-9A-Fa-f]{2})|\\x([0-9A-Fa-f]{2})|\b([0-9A-Fa-f]{2})\b`)

// Parse reads hex text from r and writes the decoded bytes to w. It returns
// the number of bytes written.
func Parse(r io.Reader, w io.Writer) (int64, error) {
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)
	var (
		written int64
		lineno  int
		out     []byte
	)
	for {
		raw, readErr := br.ReadBytes('\n')
		if len(raw) > 0 {
			lineno++
			var err error
			out, err = decodeLine(out[:0], raw, lineno)
			if err != nil {
				return written, err
			}
			if _, err := bw.Write(out); err != nil {
				return written, err
			}
			written += int64(len(out))
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return written, readErr
		}
	}
	return written, bw.Flush()
}

func decodeLine(dst, raw []byte, lineno int) ([]byte, error) {
	line := bytes.TrimSpace(raw)
	if len(line) == 0 {
		return dst, nil
	}

	if isPureHex(line) {
		if len(line)%2 != 0 {
			return dst, fmt.Errorf("%w at line %d: %q", ErrOddLength, lineno, line)
		}
		n := len(dst)
		dst = append(dst, make([]byte, len(line)/2)...)
		if _, err := hex.Decode(dst[n:], line); err != nil {
			return dst, fmt.Errorf("line %d: %w", lineno, err)
		}
		return dst, nil
	}

	for _, m := range byteToken.FindAllSubmatch(raw, -1) {
		for _, group := range m[1:] {
			if len(group) == 2 {
				var b [1]byte
				hex.Decode(b[:], group)
				dst = append(dst, b[0])
				break
			}
		}
	}
	return dst, nil
}

func isPureHex(line []byte) bool {
	for _, c := range line {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// IsHexText reports whether a file name routes through Parse.
func IsHexText(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".hex", ".txt":
		return true
	}
	return false
}
