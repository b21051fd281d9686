// Package csv decodes delimited text exports of the record files (for
// example a .dbf table saved as CSV) into a table.
//
// Input bytes pass through a single-byte charset decoder (Latin-1 unless
// configured otherwise) before reaching encoding/csv, so no byte sequence
// can make the read fail on decoding. Structural problems are fatal: a
// missing header, a malformed quote, or a row whose width differs from the
// header's all abort the parse.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"himalaya/internal/table"
	"himalaya/pkg/records"
)

// ErrHeader is returned when the header row is missing or empty.
var ErrHeader = errors.New("csv: missing header")

// Options configures the CSV parser behavior. All fields are optional; sensible
// defaults are applied when a field is zero.
type Options struct {
	// Comma specifies the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing spaces from each field value.
	TrimSpace bool

	// HeaderMap renames source header names. Names not in the map are kept
	// exactly as written; column names are case-sensitive.
	HeaderMap map[string]string

	// Encoding decodes the raw bytes. Nil means Latin-1 (ISO-8859-1). Use
	// encoding.Nop for input that is already UTF-8.
	Encoding encoding.Encoding
}

// Parser parses CSV input according to Options. It is safe to reuse across
// inputs, but Parser itself is not concurrency-safe.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser {
	if opt.Encoding == nil {
		opt.Encoding = charmap.ISO8859_1
	}
	return &Parser{opt: opt}
}

// Parse consumes every record from r. Empty cells become nil; all other
// values stay strings (see builtin.Coerce for typing).
func (p *Parser) Parse(r io.Reader) (*table.Table, error) {
	cr := csv.NewReader(transform.NewReader(r, p.opt.Encoding.NewDecoder()))
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	cr.ReuseRecord = true

	h, err := cr.Read()
	if err == io.EOF {
		return nil, ErrHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	headers := normalizeHeaders(h, p.opt)
	if len(headers) == 0 || (len(headers) == 1 && headers[0] == "") {
		return nil, ErrHeader
	}

	t := table.New(headers...)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// encoding/csv enforces the header width through FieldsPerRecord.
			return nil, fmt.Errorf("read csv: %w", err)
		}

		rec := make(records.Record, len(row))
		for i, val := range row {
			if p.opt.TrimSpace {
				val = strings.TrimSpace(val)
			}
			rec[headers[i]] = emptyToNil(val)
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// emptyToNil converts an empty string to nil; all other values are returned as-is.
func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// normalizeHeaders applies HeaderMap and strips a UTF-8 BOM and surrounding
// spaces. It never changes letter case.
func normalizeHeaders(h []string, opt Options) []string {
	res := make([]string, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = stripBOM(c)
		}
		if m, ok := opt.HeaderMap[c]; ok {
			c = m
		}
		res[i] = c
	}
	return res
}
