// Package session holds the engine context of one hexpeek run: the logger,
// the shared page cache, a scratch directory and every store opened through
// it.
package session

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"hexpeek/internal/hexerr"
	"hexpeek/internal/hexparse"
	"hexpeek/internal/pagecache"
	"hexpeek/internal/store"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// Route is how an input file becomes a store.
type Route int

const (
	// Raw opens the file bytes directly.
	Raw Route = iota
	// HexText decodes a textual hex dump.
	HexText
	// XZ decompresses an .xz stream.
	XZ
	// LZMA decompresses a classic .lzma stream.
	LZMA
)

func (r Route) String() string {
	switch r {
	case Raw:
		return "raw"
	case HexText:
		return "hex-text"
	case XZ:
		return "xz"
	case LZMA:
		return "lzma"
	}
	return fmt.Sprintf("Route(%d)", int(r))
}

// RouteFor picks the route of a file from its extension.
func RouteFor(path string) Route {
	switch {
	case hexparse.IsHexText(path):
		return HexText
	case strings.EqualFold(filepath.Ext(path), ".xz"):
		return XZ
	case strings.EqualFold(filepath.Ext(path), ".lzma"):
		return LZMA
	}
	return Raw
}

// Options configures a Session.
type Options struct {
	CacheBudget     int64
	PageSize        int
	MemoryThreshold int64

	// TempDir is the parent of the scratch directory. Empty means the
	// system default.
	TempDir string

	// DisableRouting opens every file raw.
	DisableRouting bool

	Logger *logrus.Logger
}

// Session owns the stores opened during a run and releases them on Close.
type Session struct {
	opts  Options
	log   *logrus.Logger
	cache *pagecache.Cache

	mu      sync.Mutex
	scratch string
	stores  []store.ByteStore
	closed  bool
}

// New creates a session.
func New(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	budget := opts.CacheBudget
	if budget == 0 {
		budget = pagecache.DefaultBudget
	}
	return &Session{
		opts:  opts,
		log:   opts.Logger,
		cache: pagecache.New(budget),
	}
}

// Cache returns the page cache shared by the session's stores.
func (s *Session) Cache() *pagecache.Cache {
	return s.cache
}

// Logger returns the session logger.
func (s *Session) Logger() *logrus.Logger {
	return s.log
}

// Open routes path to a store. The store stays owned by the session; callers
// may close it early.
func (s *Session) Open(path string) (store.ByteStore, error) {
	route := Raw
	if !s.opts.DisableRouting {
		route = RouteFor(path)
	}

	target := path
	if route != Raw {
		decoded, err := s.decode(path, route)
		if err != nil {
			return nil, err
		}
		target = decoded
	}

	st, err := store.Open(target, store.Options{
		MemoryThreshold: s.opts.MemoryThreshold,
		PageSize:        s.opts.PageSize,
		Cache:           s.cache,
		Logger:          s.log.WithField("route", route.String()),
	})
	if err != nil {
		return nil, err
	}
	if target != path {
		st = &routed{ByteStore: st, source: path}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		st.Close()
		return nil, fmt.Errorf("open %s: session closed", path)
	}
	s.stores = append(s.stores, st)
	return st, nil
}

// decode converts path into a raw file in the scratch directory.
func (s *Session) decode(path string, route Route) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", &hexerr.IOError{Source: path, Err: err}
	}
	defer in.Close()

	dir, err := s.scratchDir()
	if err != nil {
		return "", err
	}
	out, err := os.CreateTemp(dir, filepath.Base(path)+".*.bin")
	if err != nil {
		return "", &hexerr.IOError{Source: dir, Err: err}
	}
	defer out.Close()

	var n int64
	switch route {
	case HexText:
		n, err = hexparse.Parse(in, out)
	case XZ:
		var r *xz.Reader
		if r, err = xz.NewReader(in); err == nil {
			n, err = io.Copy(out, r)
		}
	case LZMA:
		var r *lzma.Reader
		if r, err = lzma.NewReader(in); err == nil {
			n, err = io.Copy(out, r)
		}
	default:
		err = fmt.Errorf("no decoder for route %v", route)
	}
	if err != nil {
		return "", fmt.Errorf("decode %s as %v: %w", path, route, err)
	}
	if err := out.Close(); err != nil {
		return "", &hexerr.IOError{Source: out.Name(), Err: err}
	}

	s.log.WithFields(logrus.Fields{
		"source": path,
		"route":  route.String(),
		"size":   humanize.IBytes(uint64(n)),
	}).Debug("decoded input")
	return out.Name(), nil
}

func (s *Session) scratchDir() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scratch != "" {
		return s.scratch, nil
	}
	dir, err := os.MkdirTemp(s.opts.TempDir, "hexpeek-")
	if err != nil {
		return "", &hexerr.IOError{Source: s.opts.TempDir, Err: err}
	}
	s.scratch = dir
	return dir, nil
}

// Close closes every store and removes the scratch directory.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	for _, st := range s.stores {
		if err := st.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.stores = nil

	if s.scratch != "" {
		if err := os.RemoveAll(s.scratch); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	stats := s.cache.Stats()
	s.log.WithFields(logrus.Fields{
		"hits":      stats.Hits,
		"misses":    stats.Misses,
		"evictions": stats.Evictions,
	}).Debug("session closed")
	return firstErr
}

// routed reports the original path as the source of a decoded store.
type routed struct {
	store.ByteStore
	source string
}

func (r *routed) Source() string {
	return r.source
}
