package app

import (
	"context"
	"encoding/binary"
	"fmt"

	"hexpeek/internal/inspect"
)

func (a *App) runInspect(_ context.Context, args []string) error {
	fs := a.newFlagSet("inspect", "file offset")
	bigEndian := fs.Bool("be", false, "decode big-endian")
	if err := a.parse(fs, args, 2); err != nil {
		return err
	}
	offset, err := parseNumber(fs.Arg(1))
	if err != nil {
		return err
	}

	st, err := a.session.Open(fs.Arg(0))
	if err != nil {
		return err
	}

	var order binary.ByteOrder = binary.LittleEndian
	endian := "little"
	if *bigEndian {
		order, endian = binary.BigEndian, "big"
	}
	fields, err := inspect.At(st, offset, order)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.Stdout, "%s %s\n", a.styles.Label.Render("offset:"), a.styles.Offset.Render(fmt.Sprintf("0x%08X", offset)))
	fmt.Fprintf(a.Stdout, "%s %s\n", a.styles.Label.Render("endian:"), a.styles.Value.Render(endian))
	for _, f := range fields {
		fmt.Fprintf(a.Stdout, "%s %s\n", a.styles.Label.Render(fmt.Sprintf("%-12s", f.Name+":")), a.styles.Value.Render(f.Value))
	}
	return nil
}
