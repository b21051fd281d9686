// Package table provides the column-ordered, immutable table that flows
// through the pipeline, plus the typed errors raised by table operations.
//
// A Table is built once and then only read. Operations that change shape or
// content (see internal/transformer/builtin and internal/aggregate) return a
// new Table with freshly allocated rows so that a cached source table can be
// handed out to many callers safely.
package table

import (
	"fmt"

	"himalaya/pkg/records"
)

// Source describes where a table's rows originally came from.
type Source struct {
	// Path is the file the rows were decoded from; empty for derived tables.
	Path string

	// Format is the decoder used ("dbf", "csv", "json").
	Format string

	// Checksum is the xxh3 hash of the raw bytes. Derived tables carry the
	// checksum of their left-most input.
	Checksum uint64
}

// Table is an ordered list of named columns over a slice of rows. Rows keep
// the source order. Every row carries a key for every column; absent values
// are stored as nil.
type Table struct {
	Columns []string
	Rows    []records.Record
	Source  Source
}

// New returns a table with a private copy of columns and no rows.
func New(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Has reports whether the table has a column named name. Names are matched
// exactly and case-sensitively.
func (t *Table) Has(name string) bool {
	return t.Index(name) >= 0
}

// Index returns the position of column name, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Require returns a *ColumnNotFoundError for the first name in names that is
// not a column of t.
func (t *Table) Require(names ...string) error {
	for _, n := range names {
		if !t.Has(n) {
			return &ColumnNotFoundError{Column: n}
		}
	}
	return nil
}

// Append adds one row built from values in column order. It panics when the
// value count does not match the column count; it is meant for building
// tables in code and tests, not for decoding untrusted input.
func (t *Table) Append(values ...any) {
	if len(values) != len(t.Columns) {
		panic(fmt.Sprintf("table: Append got %d values for %d columns", len(values), len(t.Columns)))
	}
	rec := make(records.Record, len(values))
	for i, v := range values {
		rec[t.Columns[i]] = v
	}
	t.Rows = append(t.Rows, rec)
}

// Column returns the values of column name in row order, or nil when the
// column does not exist.
func (t *Table) Column(name string) []any {
	if !t.Has(name) {
		return nil
	}
	out := make([]any, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[name]
	}
	return out
}

// Matrix returns rows as positional slices in column order. It is the shape
// JSON consumers and chart libraries usually want.
func (t *Table) Matrix() [][]any {
	out := make([][]any, len(t.Rows))
	for i, r := range t.Rows {
		row := make([]any, len(t.Columns))
		for j, c := range t.Columns {
			row[j] = r[c]
		}
		out[i] = row
	}
	return out
}

// Derive returns an empty table with the given columns that keeps t's source
// metadata.
func (t *Table) Derive(columns ...string) *Table {
	out := New(columns...)
	out.Source = t.Source
	return out
}
