// Package search finds byte patterns in a store without loading it whole.
//
// A Scanner reads the store through a sliding window of paged reads and
// yields matches one at a time. Consecutive windows overlap by one byte less
// than the pattern so that a match straddling a boundary is still seen.
package search

import (
	"bytes"
	"context"
	"fmt"

	"hexpeek/internal/hexerr"
	"hexpeek/internal/store"
)

// DefaultWindowSize is the number of bytes scanned per read.
const DefaultWindowSize = 64 << 10

// Direction selects the scan order.
type Direction int

const (
	// Forward reports matches starting at or after the start offset in
	// ascending order.
	Forward Direction = iota
	// Backward reports matches ending at or before the start offset in
	// descending order.
	Backward
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// Mode selects how pattern bytes are compared.
type Mode int

const (
	// Exact compares bytes as they are.
	Exact Mode = iota
	// CaseInsensitiveText folds ASCII letters before comparing.
	CaseInsensitiveText
)

// Match is one occurrence of a pattern.
type Match struct {
	Offset int64
	Length int
}

// End returns the offset just past the match.
func (m Match) End() int64 {
	return m.Offset + int64(m.Length)
}

// Options configures a scan.
type Options struct {
	Direction Direction
	Mode      Mode

	// WindowSize is the number of bytes read per step. Zero means
	// DefaultWindowSize.
	WindowSize int

	// Progress, when set, is called after each window with the number of
	// bytes scanned so far.
	Progress func(scanned int64)
}

// Scanner is a lazy sequence of non-overlapping matches. It is not safe for
// concurrent use; independent scanners over one store are.
type Scanner struct {
	ctx     context.Context
	s       store.ByteStore
	pattern []byte
	opts    Options
	window  int64

	// Forward scans [pos, Len()); Backward scans [0, pos).
	pos     int64
	scanned int64
	done    bool
	match   Match
	err     error
}

// New returns a scanner for pattern over s starting at start. Forward scans
// cover [start, s.Len()) and Backward scans cover [0, start).
func New(ctx context.Context, s store.ByteStore, pattern []byte, start int64, opts Options) (*Scanner, error) {
	if len(pattern) == 0 {
		return nil, fmt.Errorf("%w: pattern is empty", hexerr.ErrInvalidPattern)
	}
	if start < 0 || start > s.Len() {
		return nil, &hexerr.RangeError{Offset: start, Length: s.Len()}
	}
	switch opts.Direction {
	case Forward, Backward:
	default:
		return nil, fmt.Errorf("search: unknown direction %v", opts.Direction)
	}

	window := int64(opts.WindowSize)
	if window <= 0 {
		window = DefaultWindowSize
	}

	p := bytes.Clone(pattern)
	if opts.Mode == CaseInsensitiveText {
		foldASCII(p)
	}

	return &Scanner{
		ctx:     ctx,
		s:       s,
		pattern: p,
		opts:    opts,
		window:  window,
		pos:     start,
	}, nil
}

// Next advances to the next match. It returns false when the scan is
// exhausted, cancelled or failed; Err distinguishes the cases.
func (sc *Scanner) Next() bool {
	if sc.done {
		return false
	}
	var (
		m     Match
		found bool
		err   error
	)
	if sc.opts.Direction == Backward {
		m, found, err = sc.prev()
	} else {
		m, found, err = sc.next()
	}
	if err != nil {
		sc.err = err
		sc.done = true
		return false
	}
	if !found {
		sc.done = true
		return false
	}
	sc.match = m
	return true
}

// Match returns the match found by the last successful Next.
func (sc *Scanner) Match() Match {
	return sc.match
}

// Err returns the error that ended the scan, if any.
func (sc *Scanner) Err() error {
	return sc.err
}

func (sc *Scanner) next() (Match, bool, error) {
	m := int64(len(sc.pattern))
	length := sc.s.Len()
	for sc.pos+m <= length {
		if err := sc.poll(); err != nil {
			return Match{}, false, err
		}
		n := min(sc.window+m-1, length-sc.pos)
		chunk, err := sc.read(sc.pos, n)
		if err != nil {
			return Match{}, false, err
		}
		if idx := bytes.Index(chunk, sc.pattern); idx >= 0 {
			found := Match{Offset: sc.pos + int64(idx), Length: len(sc.pattern)}
			sc.advance(int64(idx) + m)
			sc.pos = found.End()
			return found, true, nil
		}
		sc.advance(n - m + 1)
		sc.pos += n - m + 1
	}
	return Match{}, false, nil
}

func (sc *Scanner) prev() (Match, bool, error) {
	m := int64(len(sc.pattern))
	for sc.pos >= m {
		if err := sc.poll(); err != nil {
			return Match{}, false, err
		}
		start := max(0, sc.pos-(sc.window+m-1))
		chunk, err := sc.read(start, sc.pos-start)
		if err != nil {
			return Match{}, false, err
		}
		if idx := bytes.LastIndex(chunk, sc.pattern); idx >= 0 {
			found := Match{Offset: start + int64(idx), Length: len(sc.pattern)}
			sc.advance(sc.pos - found.Offset)
			sc.pos = found.Offset
			return found, true, nil
		}
		if start == 0 {
			sc.advance(sc.pos)
			sc.pos = 0
			break
		}
		step := sc.pos - (start + m - 1)
		sc.advance(step)
		sc.pos -= step
	}
	return Match{}, false, nil
}

func (sc *Scanner) read(offset, n int64) ([]byte, error) {
	chunk, err := sc.s.Read(offset, int(n))
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", sc.s.Source(), err)
	}
	if sc.opts.Mode == CaseInsensitiveText {
		foldASCII(chunk)
	}
	return chunk, nil
}

func (sc *Scanner) poll() error {
	if err := sc.ctx.Err(); err != nil {
		return hexerr.Cancelled(err)
	}
	return nil
}

func (sc *Scanner) advance(n int64) {
	sc.scanned += n
	if sc.opts.Progress != nil {
		sc.opts.Progress(sc.scanned)
	}
}

// All collects every match of pattern. On cancellation the matches found so
// far are returned together with the error.
func All(ctx context.Context, s store.ByteStore, pattern []byte, start int64, opts Options) ([]Match, error) {
	sc, err := New(ctx, s, pattern, start, opts)
	if err != nil {
		return nil, err
	}
	var matches []Match
	for sc.Next() {
		matches = append(matches, sc.Match())
	}
	return matches, sc.Err()
}

// First returns the first match in scan order, if any.
func First(ctx context.Context, s store.ByteStore, pattern []byte, start int64, opts Options) (Match, bool, error) {
	sc, err := New(ctx, s, pattern, start, opts)
	if err != nil {
		return Match{}, false, err
	}
	if sc.Next() {
		return sc.Match(), true, nil
	}
	return Match{}, false, sc.Err()
}

// Count returns the number of non-overlapping matches in the whole store.
func Count(ctx context.Context, s store.ByteStore, pattern []byte, mode Mode) (int, error) {
	sc, err := New(ctx, s, pattern, 0, Options{Mode: mode})
	if err != nil {
		return 0, err
	}
	count := 0
	for sc.Next() {
		count++
	}
	return count, sc.Err()
}

// foldASCII lower-cases ASCII letters in place. Other bytes, including
// non-ASCII UTF-8, are left untouched so offsets are preserved.
func foldASCII(b []byte) {
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
}
