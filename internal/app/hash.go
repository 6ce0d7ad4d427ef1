package app

import (
	"context"
	"fmt"
	"strings"

	"hexpeek/internal/checksum"
	"hexpeek/internal/task"

	"golang.org/x/sync/errgroup"
)

// hashWorkers bounds the number of files hashed at once.
const hashWorkers = 4

func (a *App) runHash(ctx context.Context, args []string) error {
	fs := a.newFlagSet("hash", "file...")
	algoName := fs.String("algo", "sha256", "sha256, sha1, xxh64 or all")
	if err := a.parse(fs, args, -1); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("%w: hash needs at least one file", ErrUsage)
	}

	algos := checksum.Algorithms
	if !strings.EqualFold(*algoName, "all") {
		algo, err := checksum.ParseAlgorithm(*algoName)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUsage, err)
		}
		algos = []checksum.Algorithm{algo}
	}

	paths := fs.Args()
	digests, err := runTask(ctx, a, "hashing", func(ctx context.Context, report task.Report) ([][]string, error) {
		out := make([][]string, len(paths))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(hashWorkers)
		for i, path := range paths {
			i, path := i, path
			g.Go(func() error {
				st, err := a.session.Open(path)
				if err != nil {
					return err
				}
				defer st.Close()
				out[i] = make([]string, len(algos))
				for j, algo := range algos {
					if out[i][j], err = checksum.Sum(gctx, st, algo, nil); err != nil {
						return err
					}
				}
				return nil
			})
		}
		return out, g.Wait()
	})
	if err != nil {
		return err
	}

	for i, path := range paths {
		for j, algo := range algos {
			if len(algos) > 1 {
				fmt.Fprintf(a.Stdout, "%s  %s  %s\n", algo, digests[i][j], path)
			} else {
				fmt.Fprintf(a.Stdout, "%s  %s\n", digests[i][j], path)
			}
		}
	}
	return nil
}
