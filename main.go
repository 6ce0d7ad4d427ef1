package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"hexpeek/internal/app"
	"hexpeek/internal/hexerr"

	"github.com/mattn/go-isatty"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app.App{
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Interactive: isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stderr.Fd()),
	}

	err := a.Run(ctx, os.Args[1:])
	switch {
	case err == nil:
		return
	case errors.Is(err, hexerr.ErrCancelled), errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "Cancelled")
		stop()
		os.Exit(130)
	case errors.Is(err, app.ErrUsage):
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
