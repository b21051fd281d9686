package builtin

import (
	"sort"

	"himalaya/internal/table"
)

// SortBy orders rows by one column using table.Compare. The sort is stable,
// so rows with equal values keep their relative order.
type SortBy struct {
	Column string
	Desc   bool
}

func (s SortBy) Apply(in *table.Table) (*table.Table, error) {
	if err := in.Require(s.Column); err != nil {
		return nil, err
	}
	out := in.Derive(in.Columns...)
	out.Rows = cloneRows(in)
	sort.SliceStable(out.Rows, func(i, j int) bool {
		c := table.Compare(out.Rows[i][s.Column], out.Rows[j][s.Column])
		if s.Desc {
			return c > 0
		}
		return c < 0
	})
	return out, nil
}
