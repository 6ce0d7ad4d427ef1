// Package checksum computes streaming digests of byte stores.
package checksum

import (
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"hexpeek/internal/hexerr"
	"hexpeek/internal/store"

	"github.com/cespare/xxhash/v2"
)

// ChunkSize is the number of bytes hashed between context checks.
const ChunkSize = 1 << 20

// Algorithm is a supported digest.
type Algorithm int

const (
	SHA256 Algorithm = iota
	SHA1
	XXH64
)

// Algorithms lists every supported digest.
var Algorithms = []Algorithm{SHA256, SHA1, XXH64}

func (a Algorithm) String() string {
	switch a {
	case SHA256:
		return "sha256"
	case SHA1:
		return "sha1"
	case XXH64:
		return "xxh64"
	}
	return fmt.Sprintf("Algorithm(%d)", int(a))
}

// ParseAlgorithm maps a digest name to an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	n := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "-", ""))
	for _, a := range Algorithms {
		if a.String() == n {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown hash algorithm %q", name)
}

func (a Algorithm) hasher() (hash.Hash, error) {
	switch a {
	case SHA256:
		return sha256.New(), nil
	case SHA1:
		return sha1.New(), nil
	case XXH64:
		return xxhash.New(), nil
	}
	return nil, fmt.Errorf("unknown hash algorithm %v", a)
}

// Sum returns the lowercase hex digest of the whole store.
func Sum(ctx context.Context, s store.ByteStore, algo Algorithm, progress func(done, total int64)) (string, error) {
	h, err := algo.hasher()
	if err != nil {
		return "", err
	}

	total := s.Len()
	var done int64
	for done < total {
		if err := ctx.Err(); err != nil {
			return "", hexerr.Cancelled(err)
		}
		n := min(int64(ChunkSize), total-done)
		data, err := s.Read(done, int(n))
		if err != nil {
			return "", fmt.Errorf("%s of %s: %w", algo, s.Source(), err)
		}
		h.Write(data)
		done += n
		if progress != nil {
			progress(done, total)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
