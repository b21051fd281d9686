// Package json decodes JSON exports of the record files into a table.
//
// Two layouts are accepted:
//
//   - newline-delimited objects (NDJSON):
//     {"PEAKID":"EVER","PKNAME":"Everest"}
//     {"PEAKID":"LHOT","PKNAME":"Lhotse"}
//   - a single top-level array of objects, when AllowArrays is set.
//
// Columns appear in the order their keys are first seen. A row that lacks a
// column holds nil for it. Integral numbers become int64, other numbers
// float64, empty strings nil. Nested objects and arrays are rejected.
package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"himalaya/internal/table"
	"himalaya/pkg/records"
)

// ErrNested is returned for object or array cell values.
var ErrNested = errors.New("json: nested values are not supported")

// Options configures the JSON parser.
type Options struct {
	// AllowArrays accepts a top-level array of objects.
	AllowArrays bool

	// HeaderMap renames keys as they are read.
	HeaderMap map[string]string
}

// Parser decodes JSON record exports. It implements parser.Parser.
type Parser struct {
	opt Options
}

// NewParser returns a Parser.
func NewParser(opt Options) *Parser {
	return &Parser{opt: opt}
}

// Parse consumes r to EOF.
func (p *Parser) Parse(r io.Reader) (*table.Table, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	b := &builder{opt: p.opt, seen: map[string]bool{}}

	tok, err := dec.Token()
	if err == io.EOF {
		return b.table(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}

	switch tok {
	case json.Delim('['):
		if !p.opt.AllowArrays {
			return nil, errors.New("json: top-level array encountered but allow_arrays=false")
		}
		for dec.More() {
			if err := expect(dec, '{'); err != nil {
				return nil, err
			}
			if err := b.object(dec); err != nil {
				return nil, err
			}
		}
		if err := expect(dec, ']'); err != nil {
			return nil, err
		}
		if _, err := dec.Token(); err != io.EOF {
			return nil, errors.New("json: trailing data after top-level array")
		}

	case json.Delim('{'):
		for {
			if err := b.object(dec); err != nil {
				return nil, err
			}
			tok, err := dec.Token()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("json: row %d: %w", len(b.rows)+1, err)
			}
			if tok != json.Delim('{') {
				return nil, fmt.Errorf("json: row %d: expected object, got %v", len(b.rows)+1, tok)
			}
		}

	default:
		return nil, fmt.Errorf("json: unsupported top-level value %v", tok)
	}
	return b.table(), nil
}

type builder struct {
	opt     Options
	columns []string
	seen    map[string]bool
	rows    []records.Record
}

// object reads the members of an object whose opening brace has already been
// consumed, through the closing brace.
func (b *builder) object(dec *json.Decoder) error {
	row := len(b.rows) + 1
	rec := records.Record{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("json: row %d: %w", row, err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("json: row %d: expected key, got %v", row, tok)
		}
		if m, ok := b.opt.HeaderMap[key]; ok {
			key = m
		}
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("json: row %d: %q: %w", row, key, err)
		}
		v, err := cell(raw)
		if err != nil {
			return fmt.Errorf("row %d: %q: %w", row, key, err)
		}
		if !b.seen[key] {
			b.seen[key] = true
			b.columns = append(b.columns, key)
		}
		rec[key] = v
	}
	if err := expect(dec, '}'); err != nil {
		return err
	}
	b.rows = append(b.rows, rec)
	return nil
}

func (b *builder) table() *table.Table {
	t := table.New(b.columns...)
	for _, rec := range b.rows {
		for _, c := range b.columns {
			if _, ok := rec[c]; !ok {
				rec[c] = nil
			}
		}
	}
	t.Rows = b.rows
	return t
}

func cell(raw any) (any, error) {
	switch v := raw.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("json: number %q: %w", v, err)
		}
		return f, nil
	case string:
		if v == "" {
			return nil, nil
		}
		return v, nil
	case bool, nil:
		return v, nil
	}
	return nil, ErrNested
}

func expect(dec *json.Decoder, d json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("json: expected %v: %w", d, err)
	}
	if tok != d {
		return fmt.Errorf("json: expected %v, got %v", d, tok)
	}
	return nil
}
