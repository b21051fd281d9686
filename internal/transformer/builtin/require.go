package builtin

import (
	"strings"

	"himalaya/internal/table"
	"himalaya/pkg/records"
)

// Require drops every row that lacks a value in any of Columns. nil and
// blank text count as missing.
type Require struct {
	Columns []string
}

// Apply returns the rows that carry a value in every required column.
func (q Require) Apply(in *table.Table) (*table.Table, error) {
	if err := in.Require(q.Columns...); err != nil {
		return nil, err
	}
	out := in.Derive(in.Columns...)
	out.Rows = make([]records.Record, 0, len(in.Rows))
rows:
	for _, r := range in.Rows {
		for _, c := range q.Columns {
			if !present(r[c]) {
				continue rows
			}
		}
		out.Rows = append(out.Rows, r.Clone())
	}
	return out, nil
}

// present reports whether v is a value: anything but nil and blank text.
func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(x) != ""
	}
	return true
}
