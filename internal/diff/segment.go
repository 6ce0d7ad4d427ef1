package diff

import "fmt"

// Kind classifies a run of aligned bytes.
type Kind int

const (
	Equal Kind = iota
	Replace
	Insert
	Delete
)

func (k Kind) String() string {
	switch k {
	case Equal:
		return "equal"
	case Replace:
		return "replace"
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// NoOffset marks the side a segment does not touch: A for Insert, B for
// Delete.
const NoOffset int64 = -1

// Segment is a maximal run of positions sharing one Kind.
type Segment struct {
	Kind    Kind
	OffsetA int64
	OffsetB int64
	Length  int64
}

// LenA returns the number of bytes of A covered by the segment.
func (s Segment) LenA() int64 {
	if s.Kind == Insert {
		return 0
	}
	return s.Length
}

// LenB returns the number of bytes of B covered by the segment.
func (s Segment) LenB() int64 {
	if s.Kind == Delete {
		return 0
	}
	return s.Length
}

func (s Segment) String() string {
	return fmt.Sprintf("%s(a=%d b=%d len=%d)", s.Kind, s.OffsetA, s.OffsetB, s.Length)
}

// builder accumulates segments, merging adjacent runs of one kind.
type builder struct {
	segments []Segment
}

func (b *builder) emit(kind Kind, a, bOff, length int64) {
	if length <= 0 {
		return
	}
	if n := len(b.segments); n > 0 && b.segments[n-1].Kind == kind {
		b.segments[n-1].Length += length
		return
	}
	seg := Segment{Kind: kind, OffsetA: a, OffsetB: bOff, Length: length}
	switch kind {
	case Insert:
		seg.OffsetA = NoOffset
	case Delete:
		seg.OffsetB = NoOffset
	}
	b.segments = append(b.segments, seg)
}

// Mirror returns the segments of the reversed comparison: Insert and Delete
// swap and so do the A and B offsets.
func Mirror(segments []Segment) []Segment {
	out := make([]Segment, len(segments))
	for i, s := range segments {
		m := Segment{Kind: s.Kind, OffsetA: s.OffsetB, OffsetB: s.OffsetA, Length: s.Length}
		switch s.Kind {
		case Insert:
			m.Kind = Delete
		case Delete:
			m.Kind = Insert
		}
		out[i] = m
	}
	return out
}

// Summary counts segments and bytes per kind.
type Summary struct {
	Segments map[Kind]int
	Bytes    map[Kind]int64
	LenA     int64
	LenB     int64
}

// Identical reports whether the compared stores were byte-identical.
func (s Summary) Identical() bool {
	for kind, n := range s.Segments {
		if kind != Equal && n > 0 {
			return false
		}
	}
	return true
}

// Summarize totals the segments of a diff.
func Summarize(segments []Segment) Summary {
	sum := Summary{
		Segments: make(map[Kind]int),
		Bytes:    make(map[Kind]int64),
	}
	for _, s := range segments {
		sum.Segments[s.Kind]++
		sum.Bytes[s.Kind] += s.Length
		sum.LenA += s.LenA()
		sum.LenB += s.LenB()
	}
	return sum
}
