// Package builtin contains the table transformers used by the pipeline:
// projection, left join, column reordering, top-N filtering, flag
// derivation, type coercion, text normalization, renaming, sorting,
// de-duplication and required-value filtering.
//
// Every transformer leaves its input untouched and returns a new table whose
// rows are fresh maps, so tables handed out by the loader cache stay
// read-only.
package builtin

import (
	"himalaya/internal/table"
	"himalaya/pkg/records"
)

// Select projects a table onto Columns, in that order.
type Select struct {
	Columns []string
}

// Apply returns exactly the requested columns for every row. A requested
// column missing from the input is a *table.ColumnNotFoundError; a name
// requested twice is a *table.SchemaMismatchError.
func (s Select) Apply(in *table.Table) (*table.Table, error) {
	if err := in.Require(s.Columns...); err != nil {
		return nil, err
	}
	if dup := duplicates(s.Columns); len(dup) > 0 {
		return nil, &table.SchemaMismatchError{}
	}

	out := in.Derive(s.Columns...)
	out.Rows = make([]records.Record, len(in.Rows))
	for i, r := range in.Rows {
		rec := make(records.Record, len(s.Columns))
		for _, c := range s.Columns {
			rec[c] = r[c]
		}
		out.Rows[i] = rec
	}
	return out, nil
}

// duplicates returns names that appear more than once, in first-seen order.
func duplicates(names []string) []string {
	seen := make(map[string]int, len(names))
	var dup []string
	for _, n := range names {
		seen[n]++
		if seen[n] == 2 {
			dup = append(dup, n)
		}
	}
	return dup
}

// cloneRows copies every row of in.
func cloneRows(in *table.Table) []records.Record {
	out := make([]records.Record, len(in.Rows))
	for i, r := range in.Rows {
		out[i] = r.Clone()
	}
	return out
}
