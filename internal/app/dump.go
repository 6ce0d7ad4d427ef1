package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"hexpeek/internal/export"
	"hexpeek/internal/hexfmt"
	"hexpeek/internal/store"
	"hexpeek/internal/task"
)

// dumpBatch is the number of rows formatted per read when dumping to the end
// of a file.
const dumpBatch = 4096

func (a *App) runDump(ctx context.Context, args []string) error {
	fs := a.newFlagSet("dump", "file")
	offset := numberVar(fs, "offset", 0, "start offset, aligned down to a row")
	rows := fs.Int("rows", 32, "number of rows, 0 for the rest of the file")
	width := fs.Int("width", a.cfg.Engine.RowWidth, "bytes per row")
	format := fs.String("format", "", "text, csv, json, hex or bin (default from -o, else text)")
	out := fs.String("o", "", "output file (default stdout)")
	if err := a.parse(fs, args, 1); err != nil {
		return err
	}

	st, err := a.session.Open(fs.Arg(0))
	if err != nil {
		return err
	}

	name := *format
	if name == "" {
		name = "text"
		if f, ok := export.FormatForPath(*out); ok && *out != "" {
			name = f.String()
		}
	}

	w, closeOut, err := a.output(*out)
	if err != nil {
		return err
	}
	err = a.dump(ctx, w, st, name, *offset, *rows, *width, *out == "")
	if cerr := closeOut(); err == nil {
		err = cerr
	}
	return err
}

func (a *App) dump(ctx context.Context, w io.Writer, st store.ByteStore, name string, offset int64, rows, width int, terminal bool) error {
	switch strings.ToLower(name) {
	case "hex":
		_, err := runTask(ctx, a, "writing hex text", func(ctx context.Context, report task.Report) (int64, error) {
			return export.WriteHexText(ctx, w, st, report)
		})
		return err
	case "bin", "raw":
		_, err := io.Copy(w, store.NewReader(st))
		return err
	}

	format, err := export.ParseFormat(name)
	if err != nil {
		return err
	}
	if width <= 0 {
		return fmt.Errorf("%w: -width must be positive", ErrUsage)
	}

	if rows <= 0 {
		rows = 1
		if offset >= 0 && offset < st.Len() {
			start := offset - offset%int64(width)
			rows = int((st.Len() - start + int64(width) - 1) / int64(width))
		}
	}

	// JSON must be a single document, so it is formatted in one piece.
	if format == export.JSON {
		batch, err := hexfmt.FormatRows(st, offset, rows, width)
		if err != nil {
			return err
		}
		return export.WriteRows(w, batch, format)
	}

	wroteHeader := false
	for rows > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := hexfmt.FormatRows(st, offset, min(rows, dumpBatch), width)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			break
		}
		switch {
		case format == export.PlainText && terminal:
			err = a.writeStyledRows(w, batch, width)
		case format == export.CSV && wroteHeader:
			err = writeCSVRowsNoHeader(w, batch)
		default:
			err = export.WriteRows(w, batch, format)
		}
		if err != nil {
			return err
		}
		wroteHeader = true
		rows -= len(batch)
		offset = batch[len(batch)-1].Offset + int64(width)
	}
	return nil
}

func (a *App) writeStyledRows(w io.Writer, rows []hexfmt.Row, width int) error {
	hexWidth := hexfmt.HexWidth(width)
	for _, r := range rows {
		_, err := fmt.Fprintf(w, "%s: %-*s | %s\n",
			a.styles.Offset.Render(fmt.Sprintf("%08X", r.Offset)),
			hexWidth, r.Hex,
			a.styles.ASCII.Render(r.ASCII))
		if err != nil {
			return err
		}
	}
	return nil
}

func writeCSVRowsNoHeader(w io.Writer, rows []hexfmt.Row) error {
	data, err := export.Rows(rows, export.CSV)
	if err != nil {
		return err
	}
	if i := strings.IndexByte(string(data), '\n'); i >= 0 {
		data = data[i+1:]
	}
	_, err = w.Write(data)
	return err
}
