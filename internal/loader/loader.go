// Package loader reads record files into tables and memoizes the result by
// path.
//
// The cache key is the path string exactly as given. Once a path has loaded
// successfully, every later Load of that path returns the same *table.Table
// without touching the filesystem, until Invalidate or Clear drops it.
// Failed loads are not cached. Concurrent first loads of one path share a
// single read.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/singleflight"

	"himalaya/internal/datasource"
	"himalaya/internal/datasource/file"
	"himalaya/internal/metrics"
	"himalaya/internal/parser"
	csvparser "himalaya/internal/parser/csv"
	"himalaya/internal/parser/dbf"
	jsonparser "himalaya/internal/parser/json"
	"himalaya/internal/table"
)

// Supported formats.
const (
	FormatAuto = "auto"
	FormatDBF  = "dbf"
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Options configures decoding. The zero value picks the decoder by file
// extension and reads dbf and csv text as Latin-1.
type Options struct {
	// Format forces a decoder ("dbf", "csv", "json"). Empty or "auto" picks
	// by file extension, falling back to dbf.
	Format string

	DBF  dbf.Options
	CSV  csvparser.Options
	JSON jsonparser.Options

	// MaxBytes rejects larger files; <= 0 means datasource.DefaultMaxBytes.
	MaxBytes int64

	// Open builds the data source for a path. Nil means the local filesystem.
	Open func(path string) datasource.Source

	// Job labels cache hit/miss metrics.
	Job string
}

// Loader is a path-keyed, read-through table cache. It is safe for
// concurrent use.
type Loader struct {
	opt   Options
	cache *xsync.Map[string, *table.Table]
	group singleflight.Group
}

// New returns an empty Loader.
func New(opt Options) *Loader {
	if opt.Open == nil {
		opt.Open = func(path string) datasource.Source { return file.NewLocal(path) }
	}
	return &Loader{
		opt:   opt,
		cache: xsync.NewMap[string, *table.Table](),
	}
}

// Load returns the table stored at path, reading and decoding it on first
// use. Any read or decode failure is returned as *table.LoadError.
// A canceled ctx makes this call return ctx.Err() without aborting a read
// other callers are waiting on.
//
// The returned table is shared with every other caller of the same path and
// must not be modified.
func (l *Loader) Load(ctx context.Context, path string) (*table.Table, error) {
	if t, ok := l.cache.Load(path); ok {
		metrics.RecordCache(l.opt.Job, "hit")
		return t, nil
	}
	metrics.RecordCache(l.opt.Job, "miss")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// The shared read outlives any single caller's cancellation; each caller
	// stops waiting on its own ctx instead.
	shared := context.WithoutCancel(ctx)
	ch := l.group.DoChan(path, func() (any, error) {
		if t, ok := l.cache.Load(path); ok {
			return t, nil
		}
		t, err := l.read(shared, path)
		if err != nil {
			return nil, &table.LoadError{Path: path, Err: err}
		}
		l.cache.Store(path, t)
		return t, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*table.Table), nil
	}
}

// Cached reports whether path currently has a cached table.
func (l *Loader) Cached(path string) bool {
	_, ok := l.cache.Load(path)
	return ok
}

// Invalidate drops the cached table for path, if any.
func (l *Loader) Invalidate(path string) {
	l.cache.Delete(path)
}

// Clear drops every cached table.
func (l *Loader) Clear() {
	l.cache.Range(func(k string, _ *table.Table) bool {
		l.cache.Delete(k)
		return true
	})
}

// Len returns the number of cached paths.
func (l *Loader) Len() int {
	return l.cache.Size()
}

func (l *Loader) read(ctx context.Context, path string) (*table.Table, error) {
	format, err := l.formatFor(path)
	if err != nil {
		return nil, err
	}
	raw, err := datasource.ReadAll(ctx, l.opt.Open(path), l.opt.MaxBytes)
	if err != nil {
		return nil, err
	}

	var p parser.Parser
	switch format {
	case FormatCSV:
		p = csvparser.NewParser(l.opt.CSV)
	case FormatJSON:
		p = jsonparser.NewParser(l.opt.JSON)
	default:
		p = dbf.NewParser(l.opt.DBF)
	}
	t, err := p.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	t.Source = table.Source{Path: path, Format: format, Checksum: xxh3.Hash(raw)}
	return t, nil
}

func (l *Loader) formatFor(path string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(l.opt.Format))
	switch f {
	case FormatDBF, FormatCSV, FormatJSON:
		return f, nil
	case "", FormatAuto:
		switch strings.ToLower(filepath.Ext(path)) {
		case ".csv", ".txt":
			return FormatCSV, nil
		case ".json", ".ndjson", ".jsonl":
			return FormatJSON, nil
		default:
			return FormatDBF, nil
		}
	}
	return "", fmt.Errorf("unknown format %q", l.opt.Format)
}
