package store

import (
	"errors"
	"io"
	"sync"

	"hexpeek/internal/hexerr"
	"hexpeek/internal/pagecache"
)

// DefaultPageSize is the page size used when none is configured.
const DefaultPageSize = 64 << 10

// PagedOptions configures NewPaged.
type PagedOptions struct {
	PageSize int
	Cache    *pagecache.Cache
	// Closer is closed by Close, normally the file behind the ReaderAt.
	Closer io.Closer
}

// Paged is a ByteStore that reads fixed-size pages from an io.ReaderAt on
// demand and keeps recently used pages in a shared cache.
type Paged struct {
	source   string
	r        io.ReaderAt
	size     int64
	pageSize int64
	cache    *pagecache.Cache
	id       uint64

	closeOnce sync.Once
	closer    io.Closer
	closeErr  error
}

// NewPaged returns a paged store over the first size bytes of r.
func NewPaged(source string, r io.ReaderAt, size int64, opts PagedOptions) *Paged {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	cache := opts.Cache
	if cache == nil {
		cache = pagecache.New(pagecache.DefaultBudget)
	}
	if source == "" {
		source = InMemory
	}
	return &Paged{
		source:   source,
		r:        r,
		size:     size,
		pageSize: int64(pageSize),
		cache:    cache,
		id:       cache.NewSource(),
		closer:   opts.Closer,
	}
}

func (p *Paged) Len() int64 {
	return p.size
}

func (p *Paged) Source() string {
	return p.source
}

// PageSize returns the page size in bytes.
func (p *Paged) PageSize() int {
	return int(p.pageSize)
}

func (p *Paged) Read(offset int64, count int) ([]byte, error) {
	if err := hexerr.CheckRange(offset, int64(count), p.size); err != nil {
		return nil, err
	}

	result := make([]byte, count)
	end := offset + int64(count)
	for pos := offset; pos < end; {
		index := pos / p.pageSize
		page, err := p.page(index)
		if err != nil {
			return nil, err
		}
		start := pos - index*p.pageSize
		n := copy(result[pos-offset:], page[start:])
		pos += int64(n)
	}
	return result, nil
}

// page returns page index, loading it from the backing reader on a miss.
func (p *Paged) page(index int64) ([]byte, error) {
	key := pagecache.Key{Source: p.id, Page: index}
	if page, ok := p.cache.Get(key); ok {
		return page, nil
	}

	start := index * p.pageSize
	length := min(p.pageSize, p.size-start)
	page := make([]byte, length)
	n, err := p.r.ReadAt(page, start)
	if int64(n) < length {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, &hexerr.IOError{Source: p.source, Offset: start + int64(n), Err: err}
	}

	p.cache.Put(key, page)
	return page, nil
}

// Close drops the store's pages from the cache and closes the backing file.
func (p *Paged) Close() error {
	p.closeOnce.Do(func() {
		p.cache.DropSource(p.id)
		if p.closer != nil {
			p.closeErr = p.closer.Close()
		}
	})
	return p.closeErr
}
