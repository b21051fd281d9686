package builtin

import (
	"himalaya/internal/table"
)

// Reorder rearranges columns into the given presentation order. The list
// must name every column exactly once.
type Reorder struct {
	Columns []string
}

// Apply returns a *table.SchemaMismatchError when the listed names and the
// table's columns differ in membership or the list repeats a name.
func (o Reorder) Apply(in *table.Table) (*table.Table, error) {
	listed := make(map[string]struct{}, len(o.Columns))
	var missing []string
	for _, c := range o.Columns {
		listed[c] = struct{}{}
		if !in.Has(c) {
			missing = append(missing, c)
		}
	}
	var extra []string
	for _, c := range in.Columns {
		if _, ok := listed[c]; !ok {
			extra = append(extra, c)
		}
	}
	if len(missing) > 0 || len(extra) > 0 || len(duplicates(o.Columns)) > 0 {
		return nil, &table.SchemaMismatchError{Missing: missing, Extra: extra}
	}

	out := in.Derive(o.Columns...)
	out.Rows = cloneRows(in)
	return out, nil
}
