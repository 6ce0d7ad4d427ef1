// Package store provides read-only random access to the bytes of a loaded
// file, either held in memory or paged lazily from disk.
package store

import (
	"fmt"
	"io"
	"os"

	"hexpeek/internal/hexerr"
	"hexpeek/internal/pagecache"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// InMemory is the source name of stores that have no backing file.
const InMemory = "in-memory"

// DefaultMemoryThreshold is the file size below which Open reads the whole
// file into memory.
const DefaultMemoryThreshold = 1 << 20

// ByteStore is a read-only random-access view of a file's bytes.
//
// Read returns exactly count bytes starting at offset or fails; it never
// returns a short slice. Implementations are safe for concurrent reads.
type ByteStore interface {
	Len() int64
	Read(offset int64, count int) ([]byte, error)
	Source() string
	Close() error
}

// Options configures Open.
type Options struct {
	// MemoryThreshold is the largest file read wholly into memory. Zero
	// means DefaultMemoryThreshold; a negative value always pages.
	MemoryThreshold int64

	// PageSize is the page size of paged stores. Zero means DefaultPageSize.
	PageSize int

	// Cache backs paged stores. A private cache with the default budget is
	// created when nil.
	Cache *pagecache.Cache

	Logger logrus.FieldLogger
}

// Open opens path read-only and returns a Memory store for small files and a
// Paged store otherwise.
func Open(path string, opts Options) (ByteStore, error) {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &hexerr.IOError{Source: path, Err: err}
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &hexerr.IOError{Source: path, Err: err}
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("open %s: is a directory", path)
	}

	threshold := opts.MemoryThreshold
	if threshold == 0 {
		threshold = DefaultMemoryThreshold
	}

	if info.Size() <= threshold {
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, &hexerr.IOError{Source: path, Err: err}
		}
		log.WithFields(logrus.Fields{
			"path": path,
			"size": humanize.IBytes(uint64(len(data))),
		}).Debug("loaded file into memory")
		return NewMemory(path, data), nil
	}

	cache := opts.Cache
	if cache == nil {
		cache = pagecache.New(pagecache.DefaultBudget)
	}
	p := NewPaged(path, f, info.Size(), PagedOptions{
		PageSize: opts.PageSize,
		Cache:    cache,
		Closer:   f,
	})
	log.WithFields(logrus.Fields{
		"path":      path,
		"size":      humanize.IBytes(uint64(info.Size())),
		"page_size": humanize.IBytes(uint64(p.PageSize())),
	}).Debug("opened paged file")
	return p, nil
}

// Memory is a ByteStore over a byte slice.
type Memory struct {
	source string
	data   []byte
}

// NewMemory returns a store over data. The store keeps data; callers must
// not modify it afterwards. An empty source is reported as InMemory.
func NewMemory(source string, data []byte) *Memory {
	if source == "" {
		source = InMemory
	}
	if data == nil {
		data = []byte{}
	}
	return &Memory{source: source, data: data}
}

func (m *Memory) Len() int64 {
	return int64(len(m.data))
}

func (m *Memory) Source() string {
	return m.source
}

func (m *Memory) Read(offset int64, count int) ([]byte, error) {
	if err := hexerr.CheckRange(offset, int64(count), m.Len()); err != nil {
		return nil, err
	}
	result := make([]byte, count)
	copy(result, m.data[offset:offset+int64(count)])
	return result, nil
}

func (m *Memory) Close() error {
	return nil
}
