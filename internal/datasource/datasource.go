// Package datasource abstracts where raw record bytes come from.
package datasource

import (
	"context"
	"fmt"
	"io"
)

// DefaultMaxBytes caps ReadAll. The Himalayan Database tables are a few MB;
// anything far larger is not a record file this tool should hold in memory.
const DefaultMaxBytes = 512 << 20

// Source opens a single named input for reading.
type Source interface {
	// Name identifies the input in errors and cache keys (a file path).
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// ReadAll opens src and returns its whole content. Inputs larger than
// maxBytes are rejected; maxBytes <= 0 means DefaultMaxBytes.
func ReadAll(ctx context.Context, src Source, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	b, err := io.ReadAll(io.LimitReader(rc, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src.Name(), err)
	}
	if int64(len(b)) > maxBytes {
		return nil, fmt.Errorf("read %s: input exceeds %d bytes", src.Name(), maxBytes)
	}
	return b, nil
}
