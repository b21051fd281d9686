package builtin

import (
	"fmt"

	"himalaya/internal/table"
	"himalaya/pkg/records"
)

// Rename changes column names, keeping column order.
type Rename struct {
	Names map[string]string // old -> new
}

// Apply fails with *table.ColumnNotFoundError when an old name is missing,
// and with an error when two output columns would share a name.
func (rn Rename) Apply(in *table.Table) (*table.Table, error) {
	for old := range rn.Names {
		if err := in.Require(old); err != nil {
			return nil, err
		}
	}
	cols := make([]string, len(in.Columns))
	for i, c := range in.Columns {
		if n, ok := rn.Names[c]; ok {
			cols[i] = n
		} else {
			cols[i] = c
		}
	}
	if dup := duplicates(cols); len(dup) > 0 {
		return nil, fmt.Errorf("rename: column %q would appear twice", dup[0])
	}

	out := in.Derive(cols...)
	out.Rows = make([]records.Record, len(in.Rows))
	for i, r := range in.Rows {
		rec := make(records.Record, len(cols))
		for j, c := range in.Columns {
			rec[cols[j]] = r[c]
		}
		out.Rows[i] = rec
	}
	return out, nil
}
