package diff

import (
	"bytes"
	"context"
	"math/rand"
	"sync/atomic"
	"testing"

	"hexpeek/internal/hexerr"
	"hexpeek/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mem(s string) *store.Memory {
	return store.NewMemory("", []byte(s))
}

func memBytes(b []byte) *store.Memory {
	return store.NewMemory("", b)
}

func run(t *testing.T, a, b store.ByteStore, opts Options) []Segment {
	t.Helper()
	res, err := Diff(context.Background(), a, b, opts)
	require.NoError(t, err)
	assert.False(t, res.Cancelled)
	checkInvariants(t, res.Segments, a, b)
	return res.Segments
}

// checkInvariants verifies that segments are contiguous, maximal, cover both
// stores exactly once and classify bytes correctly.
func checkInvariants(t *testing.T, segs []Segment, a, b store.ByteStore) {
	t.Helper()
	var posA, posB int64
	for i, s := range segs {
		require.Positive(t, s.Length, "segment %d", i)
		if i > 0 {
			require.NotEqual(t, segs[i-1].Kind, s.Kind, "segments %d and %d share a kind", i-1, i)
		}
		switch s.Kind {
		case Insert:
			require.Equal(t, NoOffset, s.OffsetA)
		default:
			require.Equal(t, posA, s.OffsetA, "segment %d A offset", i)
		}
		switch s.Kind {
		case Delete:
			require.Equal(t, NoOffset, s.OffsetB)
		default:
			require.Equal(t, posB, s.OffsetB, "segment %d B offset", i)
		}
		if s.Kind == Equal {
			da, err := a.Read(s.OffsetA, int(s.Length))
			require.NoError(t, err)
			db, err := b.Read(s.OffsetB, int(s.Length))
			require.NoError(t, err)
			require.Equal(t, da, db, "equal segment %d differs", i)
		}
		posA += s.LenA()
		posB += s.LenB()
	}
	require.Equal(t, a.Len(), posA, "A coverage")
	require.Equal(t, b.Len(), posB, "B coverage")
}

func TestSelfDiff(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	data := make([]byte, 100_000)
	rng.Read(data)

	segs := run(t, memBytes(data), memBytes(data), Options{})
	require.Len(t, segs, 1)
	assert.Equal(t, Segment{Kind: Equal, OffsetA: 0, OffsetB: 0, Length: 100_000}, segs[0])
}

func TestEmptyInputs(t *testing.T) {
	assert.Empty(t, run(t, mem(""), mem(""), Options{}))

	segs := run(t, mem("abc"), mem(""), Options{})
	assert.Equal(t, []Segment{{Kind: Delete, OffsetA: 0, OffsetB: NoOffset, Length: 3}}, segs)

	segs = run(t, mem(""), mem("abc"), Options{})
	assert.Equal(t, []Segment{{Kind: Insert, OffsetA: NoOffset, OffsetB: 0, Length: 3}}, segs)
}

func TestSingleDeletionAndMirror(t *testing.T) {
	segs := run(t, mem("abcXdef"), mem("abcdef"), Options{})
	assert.Equal(t, []Segment{
		{Kind: Equal, OffsetA: 0, OffsetB: 0, Length: 3},
		{Kind: Delete, OffsetA: 3, OffsetB: NoOffset, Length: 1},
		{Kind: Equal, OffsetA: 4, OffsetB: 3, Length: 3},
	}, segs)

	back := run(t, mem("abcdef"), mem("abcXdef"), Options{})
	assert.Equal(t, []Segment{
		{Kind: Equal, OffsetA: 0, OffsetB: 0, Length: 3},
		{Kind: Insert, OffsetA: NoOffset, OffsetB: 3, Length: 1},
		{Kind: Equal, OffsetA: 3, OffsetB: 4, Length: 3},
	}, back)
	assert.Equal(t, Mirror(segs), back)
}

func TestReplacement(t *testing.T) {
	segs := run(t, mem("abcXef"), mem("abcYef"), Options{})
	assert.Equal(t, []Segment{
		{Kind: Equal, OffsetA: 0, OffsetB: 0, Length: 3},
		{Kind: Replace, OffsetA: 3, OffsetB: 3, Length: 1},
		{Kind: Equal, OffsetA: 4, OffsetB: 4, Length: 2},
	}, segs)
}

func TestTrailingRemainder(t *testing.T) {
	segs := run(t, mem("hello world"), mem("hello"), Options{})
	assert.Equal(t, []Segment{
		{Kind: Equal, OffsetA: 0, OffsetB: 0, Length: 5},
		{Kind: Delete, OffsetA: 5, OffsetB: NoOffset, Length: 6},
	}, segs)
}

func randomBytes(rng *rand.Rand, n int) []byte {
	b := make([]byte, n)
	rng.Read(b)
	return b
}

func TestInsertionBeyondFirstLookahead(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	prefix := randomBytes(rng, 1000)
	junk := randomBytes(rng, 300)
	suffix := randomBytes(rng, 2000)
	junk[0] = suffix[0] ^ 0xFF

	a := append(append([]byte{}, prefix...), suffix...)
	b := append(append(append([]byte{}, prefix...), junk...), suffix...)

	segs := run(t, memBytes(a), memBytes(b), Options{})
	assert.Equal(t, []Segment{
		{Kind: Equal, OffsetA: 0, OffsetB: 0, Length: 1000},
		{Kind: Insert, OffsetA: NoOffset, OffsetB: 1000, Length: 300},
		{Kind: Equal, OffsetA: 1000, OffsetB: 1300, Length: 2000},
	}, segs)
}

func TestUnrelatedInputsFallBackToReplace(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	a := randomBytes(rng, 5000)
	b := randomBytes(rng, 4000)

	segs := run(t, memBytes(a), memBytes(b), Options{MaxWindow: 16})
	sum := Summarize(segs)
	assert.Equal(t, int64(5000), sum.LenA)
	assert.Equal(t, int64(4000), sum.LenB)
	assert.False(t, sum.Identical())
}

func TestWordGranularity(t *testing.T) {
	opts := Options{Granularity: Word, WordSize: 4}

	segs := run(t, mem("AAAABBBBCCCCDDDD"), mem("AAAABxBBCCCCDDDD"), opts)
	assert.Equal(t, []Segment{
		{Kind: Equal, OffsetA: 0, OffsetB: 0, Length: 4},
		{Kind: Replace, OffsetA: 4, OffsetB: 4, Length: 4},
		{Kind: Equal, OffsetA: 8, OffsetB: 8, Length: 8},
	}, segs)

	segs = run(t, mem("AAAABBBBCCCC"), mem("AAAAXXXXBBBBCCCC"), opts)
	assert.Equal(t, []Segment{
		{Kind: Equal, OffsetA: 0, OffsetB: 0, Length: 4},
		{Kind: Insert, OffsetA: NoOffset, OffsetB: 4, Length: 4},
		{Kind: Equal, OffsetA: 4, OffsetB: 8, Length: 8},
	}, segs)

	// Partial trailing words still cover every byte.
	run(t, mem("AAAABBBBCC"), mem("AAAABBBBC"), opts)
	run(t, mem("AAAABBBBCCCCD"), mem("AAAABBBBCCCCDE"), opts)
}

// mutate applies random insertions, deletions and replacements to data.
func mutate(rng *rand.Rand, data []byte, alphabet int) []byte {
	out := append([]byte{}, data...)
	edits := 1 + rng.Intn(8)
	for i := 0; i < edits; i++ {
		pos := rng.Intn(len(out) + 1)
		n := 1 + rng.Intn(20)
		chunk := make([]byte, n)
		for j := range chunk {
			chunk[j] = byte(rng.Intn(alphabet))
		}
		switch rng.Intn(3) {
		case 0:
			out = append(out[:pos], append(chunk, out[pos:]...)...)
		case 1:
			end := min(len(out), pos+n)
			out = append(out[:pos], out[end:]...)
		default:
			end := min(len(out), pos+n)
			copy(out[pos:end], chunk)
		}
	}
	return out
}

func TestSymmetryAndCoverageOnRandomEdits(t *testing.T) {
	rng := rand.New(rand.NewSource(2024))
	optionSets := []Options{
		{},
		{MaxWindow: 8, MinMatch: 2},
		{MaxWindow: 100, MinMatch: 3, PollInterval: 7},
		{Granularity: Word, WordSize: 2, MaxWindow: 32},
		{Granularity: Word, WordSize: 4, MinMatch: 8},
	}
	for iter := 0; iter < 60; iter++ {
		alphabet := []int{2, 4, 256}[iter%3]
		base := make([]byte, 50+rng.Intn(1500))
		for i := range base {
			base[i] = byte(rng.Intn(alphabet))
		}
		a := memBytes(base)
		b := memBytes(mutate(rng, base, alphabet))

		for _, opts := range optionSets {
			fwd := run(t, a, b, opts)
			back := run(t, b, a, opts)
			require.Equal(t, Mirror(fwd), back, "iteration %d options %+v", iter, opts)

			again := run(t, a, b, opts)
			require.Equal(t, fwd, again, "deterministic output")
		}
	}
}

func TestInvalidOptions(t *testing.T) {
	_, err := Diff(context.Background(), mem("a"), mem("b"), Options{MaxWindow: -1})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = Diff(context.Background(), mem("a"), mem("b"), Options{Granularity: Granularity(7)})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

type countingStore struct {
	store.ByteStore
	reads *atomic.Int64
}

func (c countingStore) Read(offset int64, count int) ([]byte, error) {
	c.reads.Add(1)
	return c.ByteStore.Read(offset, count)
}

func TestCancellationIsPrompt(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	a := randomBytes(rng, 200_000)
	b := append(append([]byte{}, a...), randomBytes(rng, 50_000)...)
	b[1000] ^= 0xFF

	var reads atomic.Int64
	sa := countingStore{ByteStore: memBytes(a), reads: &reads}
	sb := countingStore{ByteStore: memBytes(b), reads: &reads}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var readsAtCancel int64 = -1
	steps := 0
	opts := Options{
		BestEffort:   true,
		PollInterval: 256,
		Progress: func(_, _ int64) {
			steps++
			if steps == 2 {
				cancel()
				readsAtCancel = reads.Load()
			}
		},
	}

	res, err := Diff(ctx, sa, sb, opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, hexerr.ErrCancelled)
	assert.True(t, res.Cancelled)
	assert.Equal(t, 2, steps, "no further steps after cancellation")
	assert.Equal(t, readsAtCancel, reads.Load(), "no reads after cancellation")

	assert.Equal(t, []Segment{
		{Kind: Equal, OffsetA: 0, OffsetB: 0, Length: 1000},
		{Kind: Replace, OffsetA: 1000, OffsetB: 1000, Length: 1},
	}, res.Segments)
}

func TestCancelledWithoutBestEffortDiscardsSegments(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Diff(ctx, mem("abc"), mem("abd"), Options{})
	assert.ErrorIs(t, err, hexerr.ErrCancelled)
	assert.True(t, res.Cancelled)
	assert.Nil(t, res.Segments)
}

func TestSummarize(t *testing.T) {
	segs := run(t, mem("abcXdefYYghij"), mem("abcdefZghij"), Options{MinMatch: 2})
	sum := Summarize(segs)
	assert.Equal(t, int64(13), sum.LenA)
	assert.Equal(t, int64(11), sum.LenB)
	assert.False(t, sum.Identical())
	assert.Equal(t, int64(3+3+4), sum.Bytes[Equal])

	assert.True(t, Summarize(run(t, mem("same"), mem("same"), Options{})).Identical())
}

func TestKindStrings(t *testing.T) {
	assert.Equal(t, "equal", Equal.String())
	assert.Equal(t, "replace", Replace.String())
	assert.Equal(t, "insert", Insert.String())
	assert.Equal(t, "delete", Delete.String())
	assert.Equal(t, "word", Word.String())
	assert.True(t, bytes.Contains([]byte(Kind(9).String()), []byte("9")))
}
