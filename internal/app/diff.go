package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"hexpeek/internal/checksum"
	"hexpeek/internal/diff"
	"hexpeek/internal/export"
	"hexpeek/internal/hexerr"
	"hexpeek/internal/store"
	"hexpeek/internal/task"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func (a *App) runDiff(ctx context.Context, args []string) error {
	e := a.cfg.Engine
	fs := a.newFlagSet("diff", "fileA fileB")
	word := fs.Bool("word", false, "compare in words instead of bytes")
	wordSize := fs.Int("word-size", e.DiffWordSize, "word size in bytes for -word")
	window := fs.Int("window", e.DiffWindow, "resynchronization lookahead in bytes")
	minMatch := fs.Int("min-match", e.DiffMinMatch, "bytes that must agree to accept a realignment")
	format := fs.String("format", "", "text, csv or json (default from -o, else text)")
	bestEffort := fs.Bool("best-effort", false, "keep the segments found before a cancellation")
	summaryOnly := fs.Bool("summary", false, "print only the per-kind totals")
	out := fs.String("o", "", "output file (default stdout)")
	if err := a.parse(fs, args, 2); err != nil {
		return err
	}

	f := export.PlainText
	if *format != "" {
		var err error
		if f, err = export.ParseFormat(*format); err != nil {
			return err
		}
	} else if pf, ok := export.FormatForPath(*out); ok && *out != "" {
		f = pf
	}

	opts := e.DiffOptions(*word)
	opts.WordSize = *wordSize
	opts.MaxWindow = *window
	opts.MinMatch = *minMatch
	opts.BestEffort = *bestEffort

	a1, b1, same, err := a.openPair(ctx, fs.Arg(0), fs.Arg(1))
	if err != nil {
		return err
	}

	var res diff.Result
	if same {
		a.log.Info("fingerprints match, skipping alignment")
		if a1.Len() > 0 {
			res.Segments = []diff.Segment{{Kind: diff.Equal, OffsetA: 0, OffsetB: 0, Length: a1.Len()}}
		}
	} else {
		total := a1.Len() + b1.Len()
		res, err = runTask(ctx, a, "comparing", func(ctx context.Context, report task.Report) (diff.Result, error) {
			opts.Progress = func(x, y int64) { report(x+y, total) }
			return diff.Diff(ctx, a1, b1, opts)
		})
		if err != nil && !(isCancelled(err) && len(res.Segments) > 0) {
			return err
		}
	}

	w, closeOut, oerr := a.output(*out)
	if oerr != nil {
		return oerr
	}
	werr := a.writeDiff(w, res.Segments, a1, b1, f, *out == "", *summaryOnly)
	if cerr := closeOut(); werr == nil {
		werr = cerr
	}
	if err != nil {
		return err
	}
	return werr
}

// openPair opens both inputs and fingerprints them concurrently. same
// reports byte-identical inputs.
func (a *App) openPair(ctx context.Context, pathA, pathB string) (store.ByteStore, store.ByteStore, bool, error) {
	paths := [2]string{pathA, pathB}
	var (
		stores [2]store.ByteStore
		sums   [2]string
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := range paths {
		i := i
		g.Go(func() error {
			st, err := a.session.Open(paths[i])
			if err != nil {
				return err
			}
			stores[i] = st
			sum, err := checksum.Sum(gctx, st, checksum.XXH64, nil)
			if err != nil {
				return err
			}
			sums[i] = sum
			a.log.WithFields(logrus.Fields{
				"source": st.Source(),
				"size":   humanize.IBytes(uint64(st.Len())),
				"xxh64":  sum,
			}).Debug("fingerprinted input")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, false, err
	}
	same := stores[0].Len() == stores[1].Len() && sums[0] == sums[1]
	return stores[0], stores[1], same, nil
}

func (a *App) writeDiff(w io.Writer, segs []diff.Segment, sa, sb store.ByteStore, f export.Format, terminal, summaryOnly bool) error {
	if !summaryOnly {
		if f != export.PlainText || !terminal {
			if err := export.WriteDiff(w, segs, sa, sb, f); err != nil {
				return err
			}
		} else {
			for _, seg := range segs {
				line, err := export.DiffLine(seg, sa, sb)
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintln(w, a.styles.Kind(seg.Kind).Render(line)); err != nil {
					return err
				}
			}
		}
	}
	if f == export.PlainText {
		_, err := fmt.Fprintln(w, summaryLine(diff.Summarize(segs)))
		return err
	}
	return nil
}

func summaryLine(sum diff.Summary) string {
	if sum.Identical() {
		return fmt.Sprintf("identical (%s)", humanize.IBytes(uint64(sum.LenA)))
	}
	kinds := make([]diff.Kind, 0, len(sum.Segments))
	for k := range sum.Segments {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s %d (%s)", k, sum.Segments[k], humanize.IBytes(uint64(sum.Bytes[k]))))
	}
	return strings.Join(parts, ", ")
}

func isCancelled(err error) bool {
	return errors.Is(err, hexerr.ErrCancelled)
}
