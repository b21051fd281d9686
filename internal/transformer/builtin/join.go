package builtin

import (
	"errors"

	"himalaya/internal/table"
	"himalaya/pkg/records"
)

// DefaultJoinSuffix is appended to right-hand column names that already
// exist on the left.
const DefaultJoinSuffix = "_right"

// LeftJoin attaches the columns of Right to every row of the input, matching
// on Key.
//
// Rules:
//   - one output row per input row, in input order
//   - Right's non-key columns are appended in Right's column order
//   - no match leaves the appended cells nil
//   - when Right holds several rows for one key, the first of them (in
//     Right's row order) is used
//   - keys match by Go value equality, so nil matches nil and "8848" does not
//     match int64(8848)
type LeftJoin struct {
	Right *table.Table
	Key   string

	// Suffix renames right-hand columns that collide with left-hand ones.
	// Empty means DefaultJoinSuffix.
	Suffix string
}

// ErrNoRightTable is returned by LeftJoin.Apply when Right is nil.
var ErrNoRightTable = errors.New("left join: right table is nil")

// Apply performs the join. Key must be a column of both tables.
func (j LeftJoin) Apply(left *table.Table) (*table.Table, error) {
	if j.Right == nil {
		return nil, ErrNoRightTable
	}
	if err := left.Require(j.Key); err != nil {
		return nil, err
	}
	if err := j.Right.Require(j.Key); err != nil {
		return nil, err
	}
	suffix := j.Suffix
	if suffix == "" {
		suffix = DefaultJoinSuffix
	}

	// Right-hand source column -> output column.
	type mapping struct{ from, to string }
	var extra []mapping
	cols := append([]string{}, left.Columns...)
	for _, c := range j.Right.Columns {
		if c == j.Key {
			continue
		}
		to := c
		if left.Has(c) {
			to = c + suffix
		}
		extra = append(extra, mapping{from: c, to: to})
		cols = append(cols, to)
	}

	index := make(map[any]records.Record, len(j.Right.Rows))
	for _, r := range j.Right.Rows {
		k := r[j.Key]
		if _, ok := index[k]; !ok {
			index[k] = r
		}
	}

	out := left.Derive(cols...)
	out.Rows = make([]records.Record, len(left.Rows))
	for i, r := range left.Rows {
		rec := make(records.Record, len(cols))
		for k, v := range r {
			rec[k] = v
		}
		match, ok := index[r[j.Key]]
		for _, m := range extra {
			if ok {
				rec[m.to] = match[m.from]
			} else {
				rec[m.to] = nil
			}
		}
		out.Rows[i] = rec
	}
	return out, nil
}
