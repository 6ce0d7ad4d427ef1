// Package diff aligns two byte stores and classifies every byte position as
// equal, replaced, inserted or deleted.
//
// The alignment is greedy: both stores are scanned in step, and after a
// mismatch the engine looks ahead at most MaxWindow bytes on each side for
// the smallest pair of skips that brings MinMatch bytes back into agreement.
// This keeps the cost linear in the input size while still recovering from
// insertions and deletions, which a position-wise compare cannot.
package diff

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"hexpeek/internal/hexerr"
	"hexpeek/internal/store"

	"github.com/cespare/xxhash/v2"
)

// Granularity selects the unit of comparison.
type Granularity int

const (
	// Byte aligns individual bytes.
	Byte Granularity = iota
	// Word aligns WordSize-byte tokens.
	Word
)

func (g Granularity) String() string {
	switch g {
	case Byte:
		return "byte"
	case Word:
		return "word"
	}
	return fmt.Sprintf("Granularity(%d)", int(g))
}

// Defaults for zero-valued options.
const (
	DefaultWordSize     = 4
	DefaultMaxWindow    = 4096
	DefaultMinMatch     = 4
	DefaultPollInterval = 1024
)

// firstLookahead is the skip limit of the first resynchronization pass.
// Later passes quadruple it up to MaxWindow.
const firstLookahead = 64

// ErrInvalidOptions is returned for negative option values.
var ErrInvalidOptions = errors.New("invalid diff options")

// Options tunes the alignment.
type Options struct {
	Granularity Granularity
	WordSize    int

	// MaxWindow bounds the lookahead, in bytes, on each side when
	// resynchronizing after a mismatch.
	MaxWindow int

	// MinMatch is the number of agreeing bytes required to accept a
	// realignment point.
	MinMatch int

	// PollInterval is the number of bytes compared between checks of the
	// context.
	PollInterval int

	// BestEffort keeps the segments produced before a cancellation.
	BestEffort bool

	// Progress, when set, is called with the A and B cursors after each
	// step.
	Progress func(a, b int64)
}

// DefaultOptions returns the options used for zero values.
func DefaultOptions() Options {
	return Options{
		Granularity:  Byte,
		WordSize:     DefaultWordSize,
		MaxWindow:    DefaultMaxWindow,
		MinMatch:     DefaultMinMatch,
		PollInterval: DefaultPollInterval,
	}
}

func (o Options) normalized() (Options, error) {
	if o.WordSize < 0 || o.MaxWindow < 0 || o.MinMatch < 0 || o.PollInterval < 0 {
		return o, fmt.Errorf("%w: negative value", ErrInvalidOptions)
	}
	switch o.Granularity {
	case Byte, Word:
	default:
		return o, fmt.Errorf("%w: unknown granularity %v", ErrInvalidOptions, o.Granularity)
	}
	d := DefaultOptions()
	if o.WordSize == 0 {
		o.WordSize = d.WordSize
	}
	if o.MaxWindow == 0 {
		o.MaxWindow = d.MaxWindow
	}
	if o.MinMatch == 0 {
		o.MinMatch = d.MinMatch
	}
	if o.PollInterval == 0 {
		o.PollInterval = d.PollInterval
	}
	return o, nil
}

// Result is the outcome of a diff.
type Result struct {
	Segments []Segment
	// Cancelled is set when the context ended the diff. Segments then hold
	// the prefix computed so far if BestEffort was requested.
	Cancelled bool
}

// Diff aligns a against b. The segments cover both stores completely, in
// order, and no two consecutive segments share a Kind. Output is
// deterministic, and Diff(b, a) equals Mirror of Diff(a, b).
func Diff(ctx context.Context, a, b store.ByteStore, opts Options) (Result, error) {
	opts, err := opts.normalized()
	if err != nil {
		return Result{}, err
	}

	e := newEngine(ctx, a, b, opts)
	if err := e.run(); err != nil {
		cancelled := errors.Is(err, hexerr.ErrCancelled)
		if cancelled && opts.BestEffort {
			return Result{Segments: e.out.segments, Cancelled: true}, err
		}
		return Result{Cancelled: cancelled}, err
	}
	return Result{Segments: e.out.segments}, nil
}

type engine struct {
	ctx  context.Context
	opts Options

	ra, rb     *window
	lenA, lenB int64
	a, b       int64

	unit   int64 // token size in bytes
	limit  int64 // maximum skip per side
	gram   int64 // bytes that must agree after a skip
	chunk  int64 // bytes compared per poll
	out    builder
	idx    map[uint64][]int64
}

func newEngine(ctx context.Context, a, b store.ByteStore, opts Options) *engine {
	unit := int64(1)
	if opts.Granularity == Word {
		unit = int64(opts.WordSize)
	}
	limit := max(unit, int64(opts.MaxWindow)/unit*unit)
	gram := (int64(opts.MinMatch) + unit - 1) / unit * unit
	chunk := max(unit, int64(opts.PollInterval)/unit*unit)
	block := max(64<<10, 2*(limit+gram), chunk)

	return &engine{
		ctx:   ctx,
		opts:  opts,
		ra:    &window{s: a, block: block},
		rb:    &window{s: b, block: block},
		lenA:  a.Len(),
		lenB:  b.Len(),
		unit:  unit,
		limit: limit,
		gram:  gram,
		chunk: chunk,
		idx:   make(map[uint64][]int64),
	}
}

func (e *engine) run() error {
	for e.a < e.lenA && e.b < e.lenB {
		n, err := e.equalRun()
		if err != nil {
			return err
		}
		if n > 0 {
			e.out.emit(Equal, e.a, e.b, n)
			e.a += n
			e.b += n
			e.progress()
			continue
		}
		if err := e.poll(); err != nil {
			return err
		}
		sa, sb, ok, err := e.resync()
		if err != nil {
			return err
		}
		if !ok {
			n := min(e.limit, e.lenA-e.a, e.lenB-e.b)
			if n >= e.unit {
				n = n / e.unit * e.unit
			}
			sa, sb = n, n
		}
		e.skip(sa, sb)
		e.progress()
	}

	e.out.emit(Delete, e.a, NoOffset, e.lenA-e.a)
	e.out.emit(Insert, NoOffset, e.b, e.lenB-e.b)
	e.a, e.b = e.lenA, e.lenB
	e.progress()
	return nil
}

// skip emits the bytes passed over by a realignment: the common part as a
// replacement and the excess of the longer side as a deletion or insertion.
func (e *engine) skip(sa, sb int64) {
	common := min(sa, sb)
	e.out.emit(Replace, e.a, e.b, common)
	e.out.emit(Delete, e.a+common, NoOffset, sa-common)
	e.out.emit(Insert, NoOffset, e.b+common, sb-common)
	e.a += sa
	e.b += sb
}

// equalRun returns the length of the agreeing run at the cursors, in whole
// tokens unless both stores end together.
func (e *engine) equalRun() (int64, error) {
	var run int64
	for {
		remA := e.lenA - e.a - run
		remB := e.lenB - e.b - run
		n := min(remA, remB, e.chunk)
		if n == 0 {
			return run, nil
		}
		if err := e.poll(); err != nil {
			return 0, err
		}
		pa, err := e.ra.slice(e.a+run, n)
		if err != nil {
			return 0, err
		}
		pb, err := e.rb.slice(e.b+run, n)
		if err != nil {
			return 0, err
		}
		if i := mismatch(pa, pb); i < n {
			return run + i/e.unit*e.unit, nil
		}
		if n < e.chunk {
			if remA == remB {
				return run + n, nil
			}
			return run + n/e.unit*e.unit, nil
		}
		run += n
	}
}

type candidate struct {
	sa, sb int64
}

func (c candidate) total() int64 {
	return c.sa + c.sb
}

func (c candidate) spread() int64 {
	if c.sa > c.sb {
		return c.sa - c.sb
	}
	return c.sb - c.sa
}

// resync finds the realignment with the smallest total skip. Lookahead
// starts small and grows so that nearby realignments stay cheap; a pass is
// conclusive once its best total skip does not exceed its limit, because
// any better candidate would have both skips within that limit.
func (e *engine) resync() (int64, int64, bool, error) {
	remA := e.lenA - e.a
	remB := e.lenB - e.b
	bufA, err := e.ra.slice(e.a, min(remA, e.limit+e.gram))
	if err != nil {
		return 0, 0, false, err
	}
	bufB, err := e.rb.slice(e.b, min(remB, e.limit+e.gram))
	if err != nil {
		return 0, 0, false, err
	}

	for limit := min(int64(firstLookahead), e.limit); ; limit = min(limit*4, e.limit) {
		best, found := e.bestWithin(limit, bufA, bufB, remA, remB)
		if found && (best.total() <= limit || limit == e.limit) {
			return best.sa, best.sb, true, nil
		}
		if limit == e.limit {
			return 0, 0, false, nil
		}
		if err := e.poll(); err != nil {
			return 0, 0, false, err
		}
	}
}

func (e *engine) bestWithin(limit int64, bufA, bufB []byte, remA, remB int64) (candidate, bool) {
	var (
		best  candidate
		found bool
	)
	consider := func(c candidate) {
		if !found || e.less(c, best, bufA, bufB) {
			best, found = c, true
		}
	}

	// Both stores end within the lookahead with identical tails shorter
	// than a gram. The longest such tail gives the smallest skip.
	for t := min(remA, remB, e.gram-1); t >= 0; t-- {
		c := candidate{sa: remA - t, sb: remB - t}
		if c.sa > limit || c.sb > limit {
			break
		}
		if c.total() > 0 && bytes.Equal(bufA[c.sa:], bufB[c.sb:]) {
			consider(c)
			break
		}
	}

	lastB := min(limit, int64(len(bufB))-e.gram)
	lastA := min(limit, int64(len(bufA))-e.gram)
	if lastA < 0 || lastB < 0 {
		return best, found
	}

	clear(e.idx)
	for sb := int64(0); sb <= lastB; sb += e.unit {
		h := xxhash.Sum64(bufB[sb : sb+e.gram])
		e.idx[h] = append(e.idx[h], sb)
	}
	for sa := int64(0); sa <= lastA; sa += e.unit {
		if found && sa > best.total() {
			break
		}
		gramA := bufA[sa : sa+e.gram]
		for _, sb := range e.idx[xxhash.Sum64(gramA)] {
			c := candidate{sa: sa, sb: sb}
			if c.total() == 0 {
				continue
			}
			if found && c.total() > best.total() {
				break
			}
			if bytes.Equal(gramA, bufB[sb:sb+e.gram]) {
				consider(c)
				break
			}
		}
	}
	return best, found
}

// less orders candidates by total skip, then by imbalance. The remaining tie
// is between mirror images (x, y) and (y, x); the side whose skipped bytes
// sort lower takes the larger skip, which keeps Diff(b, a) the mirror of
// Diff(a, b).
func (e *engine) less(c, d candidate, bufA, bufB []byte) bool {
	if c.total() != d.total() {
		return c.total() < d.total()
	}
	if c.spread() != d.spread() {
		return c.spread() < d.spread()
	}
	if c == d {
		return false
	}
	k := max(c.sa, c.sb)
	cmp := bytes.Compare(bufA[:min(k, int64(len(bufA)))], bufB[:min(k, int64(len(bufB)))])
	if cmp <= 0 {
		return c.sa == k
	}
	return c.sb == k
}

func (e *engine) poll() error {
	if err := e.ctx.Err(); err != nil {
		return hexerr.Cancelled(err)
	}
	return nil
}

func (e *engine) progress() {
	if e.opts.Progress != nil {
		e.opts.Progress(e.a, e.b)
	}
}

// mismatch returns the index of the first differing byte, or len(a) if the
// slices are equal. Both slices have the same length.
func mismatch(a, b []byte) int64 {
	const stride = 64
	i := 0
	for i+stride <= len(a) && bytes.Equal(a[i:i+stride], b[i:i+stride]) {
		i += stride
	}
	for i < len(a) && a[i] == b[i] {
		i++
	}
	return int64(i)
}

// window caches one block of a store so that the byte-at-a-time parts of
// the alignment do not turn into one store read each.
type window struct {
	s     store.ByteStore
	block int64
	off   int64
	buf   []byte
}

// slice returns n bytes at off. The caller keeps [off, off+n) within the
// store.
func (w *window) slice(off, n int64) ([]byte, error) {
	if off >= w.off && off+n <= w.off+int64(len(w.buf)) {
		start := off - w.off
		return w.buf[start : start+n], nil
	}
	size := min(max(n, w.block), w.s.Len()-off)
	data, err := w.s.Read(off, int(size))
	if err != nil {
		return nil, fmt.Errorf("diff %s: %w", w.s.Source(), err)
	}
	w.off, w.buf = off, data
	return data[:n], nil
}
