package builtin

import (
	"sort"

	"himalaya/internal/table"
	"himalaya/pkg/records"
)

// KeyCount is one distinct key value and the number of rows carrying it.
type KeyCount struct {
	Key   any
	Count int
}

// RankKeys counts rows per distinct value of key and orders the values by
// count, highest first. Values with equal counts keep the order in which
// they first appear in the table. nil is counted like any other value.
func RankKeys(in *table.Table, key string) ([]KeyCount, error) {
	if err := in.Require(key); err != nil {
		return nil, err
	}
	pos := make(map[any]int)
	var ranked []KeyCount
	for _, r := range in.Rows {
		k := r[key]
		i, ok := pos[k]
		if !ok {
			i = len(ranked)
			pos[k] = i
			ranked = append(ranked, KeyCount{Key: k})
		}
		ranked[i].Count++
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].Count > ranked[b].Count
	})
	return ranked, nil
}

// TopN keeps the rows whose Key value is one of the N most frequent values.
// All rows of each selected value are kept, not just N rows, and the input
// row order is preserved. Ties at the cut-off are decided by first
// appearance (see RankKeys).
type TopN struct {
	Key string
	N   int
}

// Apply returns a *table.EmptyInputError when asked for N > 0 keys from a
// table without rows. N <= 0 yields an empty table.
func (f TopN) Apply(in *table.Table) (*table.Table, error) {
	if err := in.Require(f.Key); err != nil {
		return nil, err
	}
	out := in.Derive(in.Columns...)
	if f.N <= 0 {
		out.Rows = []records.Record{}
		return out, nil
	}
	if in.Len() == 0 {
		return nil, &table.EmptyInputError{Op: "topn", Reason: "no rows to rank " + f.Key + " over"}
	}

	ranked, err := RankKeys(in, f.Key)
	if err != nil {
		return nil, err
	}
	if len(ranked) > f.N {
		ranked = ranked[:f.N]
	}
	keep := make(map[any]struct{}, len(ranked))
	for _, kc := range ranked {
		keep[kc.Key] = struct{}{}
	}

	out.Rows = make([]records.Record, 0, len(in.Rows))
	for _, r := range in.Rows {
		if _, ok := keep[r[f.Key]]; ok {
			out.Rows = append(out.Rows, r.Clone())
		}
	}
	return out, nil
}
