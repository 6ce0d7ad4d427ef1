package app

import (
	"context"
	"fmt"

	"hexpeek/internal/hexfmt"
	"hexpeek/internal/search"
	"hexpeek/internal/task"

	"github.com/sirupsen/logrus"
)

func (a *App) runSearch(ctx context.Context, args []string) error {
	fs := a.newFlagSet("search", "file query")
	kind := fs.String("kind", "text", "query kind: text, hex, bits or decimal")
	enc := fs.String("encoding", "utf-8", "text encoding: utf-8, latin1, utf-16le, utf-16be")
	width := fs.Int("width", 1, "decimal value width in bytes: 1, 2, 4 or 8")
	bigEndian := fs.Bool("be", false, "encode decimal values big-endian")
	backward := fs.Bool("backward", false, "search towards the start of the file")
	ignoreCase := fs.Bool("ignore-case", false, "fold ASCII letters when matching text")
	offset := numberVar(fs, "offset", -1, "start offset (default start of file, or end with -backward)")
	limit := fs.Int("max", 0, "stop after this many matches, 0 for all")
	if err := a.parse(fs, args, 2); err != nil {
		return err
	}

	qk, err := search.ParseQueryKind(*kind)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	qe, err := search.ParseEncoding(*enc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	pattern, err := search.Query{Kind: qk, Input: fs.Arg(1), Encoding: qe, Width: *width, BigEndian: *bigEndian}.Pattern()
	if err != nil {
		return err
	}

	st, err := a.session.Open(fs.Arg(0))
	if err != nil {
		return err
	}

	opts := search.Options{WindowSize: a.cfg.Engine.SearchWindow}
	start := *offset
	if *backward {
		opts.Direction = search.Backward
		if start < 0 {
			start = st.Len()
		}
	} else if start < 0 {
		start = 0
	}
	if *ignoreCase {
		opts.Mode = search.CaseInsensitiveText
	}

	a.log.WithFields(logrus.Fields{
		"source":    st.Source(),
		"pattern":   hexfmt.Hex(pattern),
		"direction": opts.Direction.String(),
		"start":     start,
	}).Debug("searching")

	span := st.Len() - start
	if *backward {
		span = start
	}
	matches, err := runTask(ctx, a, "searching "+st.Source(), func(ctx context.Context, report task.Report) ([]search.Match, error) {
		opts.Progress = func(scanned int64) { report(min(scanned, span), span) }
		sc, err := search.New(ctx, st, pattern, start, opts)
		if err != nil {
			return nil, err
		}
		var found []search.Match
		for sc.Next() {
			found = append(found, sc.Match())
			if *limit > 0 && len(found) >= *limit {
				break
			}
		}
		return found, sc.Err()
	})

	for _, m := range matches {
		data, rerr := st.Read(m.Offset, m.Length)
		if rerr != nil {
			return rerr
		}
		fmt.Fprintf(a.Stdout, "%s  %s  %s\n",
			a.styles.Offset.Render(fmt.Sprintf("0x%08X", m.Offset)),
			hexfmt.Hex(data),
			a.styles.ASCII.Render(hexfmt.ASCII(data)))
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Stdout, "%d matches\n", len(matches))
	return nil
}
