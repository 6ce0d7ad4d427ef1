package export

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"hexpeek/internal/hexerr"
	"hexpeek/internal/store"
)

// HexTextLineBytes is the number of bytes per line of a hex text dump.
const HexTextLineBytes = 16

const hexTextChunk = HexTextLineBytes * 256

// WriteHexText writes the whole store as lines of space separated hex pairs,
// the layout read back by hexparse. The context is checked between chunks of
// 256 lines and progress, when set, receives the bytes written so far.
func WriteHexText(ctx context.Context, w io.Writer, s store.ByteStore, progress func(done, total int64)) (int64, error) {
	bw := bufio.NewWriter(w)
	total := s.Len()
	line := make([]byte, 0, HexTextLineBytes*3)

	var done int64
	for done < total {
		if err := ctx.Err(); err != nil {
			return done, hexerr.Cancelled(err)
		}
		n := min(int64(hexTextChunk), total-done)
		data, err := s.Read(done, int(n))
		if err != nil {
			return done, fmt.Errorf("hex text %s: %w", s.Source(), err)
		}
		for len(data) > 0 {
			k := min(len(data), HexTextLineBytes)
			line = line[:0]
			for i, v := range data[:k] {
				if i > 0 {
					line = append(line, ' ')
				}
				line = append(line, hexDigits[v>>4], hexDigits[v&0x0F])
			}
			line = append(line, '\n')
			if _, err := bw.Write(line); err != nil {
				return done, err
			}
			data = data[k:]
		}
		done += n
		if progress != nil {
			progress(done, total)
		}
	}
	return done, bw.Flush()
}

const hexDigits = "0123456789ABCDEF"
