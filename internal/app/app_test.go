package app_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hexpeek/internal/app"
	"hexpeek/internal/config"
	"hexpeek/internal/hexerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	stdout bytes.Buffer
	stderr bytes.Buffer
	dir    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{dir: t.TempDir()}
}

func (h *harness) file(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func (h *harness) path(name string) string {
	return filepath.Join(h.dir, name)
}

func (h *harness) run(ctx context.Context, args ...string) error {
	h.stdout.Reset()
	h.stderr.Reset()
	a := &app.App{
		Stdin:  strings.NewReader(""),
		Stdout: &h.stdout,
		Stderr: &h.stderr,
		Config: config.DefaultConfig(),
	}
	return a.Run(ctx, append([]string{"-no-color"}, args...))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestApp_Dump_WritesRowsToFile(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	in := h.file(t, "in.bin", []byte("ABCDEF"))
	out := h.path("rows.txt")

	require.NoError(t, h.run(context.Background(), "dump", "-width", "4", "-o", out, in))
	assert.Equal(t, "00000000: 41 42 43 44 | ABCD\n00000004: 45 46       | EF\n", readFile(t, out))
}

func TestApp_Dump_StdoutRows(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	in := h.file(t, "in.bin", bytes.Repeat([]byte{0x41}, 40))

	require.NoError(t, h.run(context.Background(), "dump", "-offset", "0x10", "-rows", "0", in))
	lines := strings.Split(strings.TrimSuffix(h.stdout.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "00000010")
	assert.Contains(t, lines[1], "00000020")
	assert.Contains(t, lines[1], "AAAAAAAA")
}

func TestApp_Dump_CSVEscapesCommas(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	in := h.file(t, "in.bin", []byte("a,b"))

	require.NoError(t, h.run(context.Background(), "dump", "-format", "csv", in))
	assert.Equal(t, "offset,hex,ascii\n0x00000000,61 2C 62,\"a,b\"\n", h.stdout.String())
}

func TestApp_Dump_HexTextRoundTrip(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	original := make([]byte, 300)
	for i := range original {
		original[i] = byte(i * 13)
	}
	in := h.file(t, "in.bin", original)
	hexPath := h.path("in.hex")
	binPath := h.path("back.bin")

	require.NoError(t, h.run(context.Background(), "dump", "-format", "hex", "-o", hexPath, in))
	require.NoError(t, h.run(context.Background(), "dump", "-format", "bin", "-o", binPath, hexPath))
	assert.Equal(t, string(original), readFile(t, binPath))
}

func TestApp_Search(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	in := h.file(t, "in.bin", []byte("hello world hello"))
	ctx := context.Background()

	require.NoError(t, h.run(ctx, "search", in, "hello"))
	assert.Contains(t, h.stdout.String(), "0x00000000")
	assert.Contains(t, h.stdout.String(), "0x0000000C")
	assert.Contains(t, h.stdout.String(), "2 matches")

	require.NoError(t, h.run(ctx, "search", "-backward", "-max", "1", in, "hello"))
	assert.Contains(t, h.stdout.String(), "0x0000000C")
	assert.NotContains(t, h.stdout.String(), "0x00000000")
	assert.Contains(t, h.stdout.String(), "1 matches")

	require.NoError(t, h.run(ctx, "search", "-kind", "hex", in, "6C 6C"))
	assert.Contains(t, h.stdout.String(), "2 matches")

	require.NoError(t, h.run(ctx, "search", "-ignore-case", in, "HELLO"))
	assert.Contains(t, h.stdout.String(), "2 matches")
}

func TestApp_Search_InvalidPattern(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	in := h.file(t, "in.bin", []byte("abc"))

	err := h.run(context.Background(), "search", "-kind", "hex", in, "ABC")
	assert.ErrorIs(t, err, hexerr.ErrInvalidPattern)
}

func TestApp_Diff_WritesCSVReport(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	a := h.file(t, "a.bin", []byte("abcXdef"))
	b := h.file(t, "b.bin", []byte("abcdef"))
	out := h.path("report.csv")

	require.NoError(t, h.run(context.Background(), "diff", "-o", out, a, b))
	assert.Equal(t, "kind,offset_a,offset_b,length,bytes_a,bytes_b\n"+
		"equal,0x00000000,0x00000000,3,,\n"+
		"delete,0x00000003,-,1,58,\n"+
		"equal,0x00000004,0x00000003,3,,\n", readFile(t, out))
}

func TestApp_Diff_PlainText(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	a := h.file(t, "a.bin", []byte("abcXdef"))
	b := h.file(t, "b.bin", []byte("abcdef"))

	require.NoError(t, h.run(context.Background(), "diff", a, b))
	out := h.stdout.String()
	assert.Contains(t, out, "delete")
	assert.Contains(t, out, "a:[58]")
	assert.Contains(t, out, "equal 2 (6 B), delete 1 (1 B)")
}

func TestApp_Diff_IdenticalFiles(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	a := h.file(t, "a.bin", []byte("same bytes"))
	b := h.file(t, "b.bin", []byte("same bytes"))

	require.NoError(t, h.run(context.Background(), "diff", "-summary", a, b))
	assert.Equal(t, "identical (10 B)\n", h.stdout.String())
}

func TestApp_Diff_Cancelled(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	a := h.file(t, "a.bin", []byte("abc"))
	b := h.file(t, "b.bin", []byte("abd"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.run(ctx, "diff", a, b)
	assert.ErrorIs(t, err, hexerr.ErrCancelled)
}

func TestApp_Inspect(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	in := h.file(t, "in.bin", []byte{0xFF, 0x2A, 0, 0, 0})
	ctx := context.Background()

	require.NoError(t, h.run(ctx, "inspect", in, "1"))
	assert.Contains(t, h.stdout.String(), "u32:")
	assert.Contains(t, h.stdout.String(), "42")
	assert.Contains(t, h.stdout.String(), "little")

	require.NoError(t, h.run(ctx, "inspect", "-be", in, "0x1"))
	assert.Contains(t, h.stdout.String(), "704643072")

	err := h.run(ctx, "inspect", in, "9")
	assert.ErrorIs(t, err, hexerr.ErrRange)
}

func TestApp_Hash(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	in := h.file(t, "abc.bin", []byte("abc"))
	ctx := context.Background()

	require.NoError(t, h.run(ctx, "hash", in))
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad  "+in+"\n", h.stdout.String())

	require.NoError(t, h.run(ctx, "hash", "-algo", "all", in, in))
	assert.Len(t, strings.Split(strings.TrimSpace(h.stdout.String()), "\n"), 6)
	assert.Contains(t, h.stdout.String(), "sha1  a9993e364706816aba3e25717850c26c9cd0d89d  "+in)
}

func TestApp_Errors(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	in := h.file(t, "in.bin", []byte("abc"))
	ctx := context.Background()

	assert.ErrorIs(t, h.run(ctx), app.ErrUsage)
	assert.ErrorIs(t, h.run(ctx, "frobnicate"), app.ErrUsage)
	assert.ErrorIs(t, h.run(ctx, "diff", in), app.ErrUsage)
	assert.ErrorIs(t, h.run(ctx, "dump", "-offset", "zz", in), app.ErrUsage)
	assert.ErrorIs(t, h.run(ctx, "dump", "-format", "xml", in), hexerr.ErrUnsupportedFormat)
	assert.ErrorIs(t, h.run(ctx, "dump", h.path("missing.bin")), hexerr.ErrIO)
	assert.ErrorIs(t, h.run(ctx, "hash", "-algo", "md5", in), app.ErrUsage)

	assert.NoError(t, h.run(ctx, "help"))
	assert.Contains(t, h.stderr.String(), "Commands:")
}
