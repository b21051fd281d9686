// Package aggregate computes grouped summaries of a table: row counts, sums
// and means per distinct key tuple, plus a wide-to-long reshape.
//
// Groups are emitted in the order their key tuple first appears in the
// input. nil is a key value like any other.
package aggregate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"himalaya/internal/table"
	"himalaya/pkg/records"
)

// CountColumn is the name of the column CountBy adds.
const CountColumn = "count"

// ErrNotNumeric is returned when a summed or averaged cell holds neither a
// number nor numeric text.
var ErrNotNumeric = errors.New("value is not numeric")

// group is one distinct key tuple and the rows that carry it.
type group struct {
	key  []any
	rows []records.Record
}

// groupRows partitions t.Rows by the values of keys, in first-seen order.
func groupRows(op string, t *table.Table, keys []string) ([]*group, error) {
	if len(keys) == 0 {
		return nil, &table.EmptyInputError{Op: op, Reason: "no key columns"}
	}
	if err := t.Require(keys...); err != nil {
		return nil, err
	}

	var groups []*group
	if len(keys) == 1 {
		idx := make(map[any]*group)
		for _, r := range t.Rows {
			k := r[keys[0]]
			g, ok := idx[k]
			if !ok {
				g = &group{key: []any{k}}
				idx[k] = g
				groups = append(groups, g)
			}
			g.rows = append(g.rows, r)
		}
		return groups, nil
	}

	// Compound keys: fixed-size arrays are comparable, so the common pair
	// case avoids building a string key.
	if len(keys) == 2 {
		idx := make(map[[2]any]*group)
		for _, r := range t.Rows {
			k := [2]any{r[keys[0]], r[keys[1]]}
			g, ok := idx[k]
			if !ok {
				g = &group{key: []any{k[0], k[1]}}
				idx[k] = g
				groups = append(groups, g)
			}
			g.rows = append(g.rows, r)
		}
		return groups, nil
	}

	idx := make(map[string]*group)
	for _, r := range t.Rows {
		key := make([]any, len(keys))
		var sb strings.Builder
		for i, c := range keys {
			key[i] = r[c]
			fmt.Fprintf(&sb, "%T:%v\x00", r[c], r[c])
		}
		g, ok := idx[sb.String()]
		if !ok {
			g = &group{key: key}
			idx[sb.String()] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, r)
	}
	return groups, nil
}

// keyed starts an output table with columns keys..., extra... .
func keyed(t *table.Table, keys []string, extra ...string) *table.Table {
	out := t.Derive(append(append([]string{}, keys...), extra...)...)
	out.Rows = []records.Record{}
	return out
}

func (g *group) record(keys []string, n int) records.Record {
	rec := make(records.Record, len(keys)+n)
	for i, c := range keys {
		rec[c] = g.key[i]
	}
	return rec
}

// CountBy returns one row per distinct key tuple with the number of rows
// carrying it in CountColumn (int64).
func CountBy(t *table.Table, keys ...string) (*table.Table, error) {
	groups, err := groupRows("count", t, keys)
	if err != nil {
		return nil, err
	}
	out := keyed(t, keys, CountColumn)
	for _, g := range groups {
		rec := g.record(keys, 1)
		rec[CountColumn] = int64(len(g.rows))
		out.Rows = append(out.Rows, rec)
	}
	return out, nil
}

// CountByPair is CountBy over the compound key (a, b).
func CountByPair(t *table.Table, a, b string) (*table.Table, error) {
	return CountBy(t, a, b)
}

// SumBy totals each of values per key tuple. nil cells count as zero. A sum
// is int64 when every contributing cell is an integer and float64 otherwise.
func SumBy(t *table.Table, keys []string, values ...string) (*table.Table, error) {
	if err := t.Require(values...); err != nil {
		return nil, err
	}
	groups, err := groupRows("sum", t, keys)
	if err != nil {
		return nil, err
	}
	out := keyed(t, keys, values...)
	for _, g := range groups {
		rec := g.record(keys, len(values))
		for _, c := range values {
			var (
				isum  int64
				fsum  float64
				float bool
			)
			for _, r := range g.rows {
				n, err := number(r[c])
				if err != nil {
					return nil, fmt.Errorf("sum %s: %w", c, err)
				}
				switch x := n.(type) {
				case int64:
					isum += x
					fsum += float64(x)
				case float64:
					fsum += x
					float = true
				}
			}
			if float {
				rec[c] = fsum
			} else {
				rec[c] = isum
			}
		}
		out.Rows = append(out.Rows, rec)
	}
	return out, nil
}

// MeanBy averages value per key tuple as float64. nil cells are left out of
// both the sum and the divisor; a group whose cells are all nil gets nil.
func MeanBy(t *table.Table, keys []string, value string) (*table.Table, error) {
	if err := t.Require(value); err != nil {
		return nil, err
	}
	groups, err := groupRows("mean", t, keys)
	if err != nil {
		return nil, err
	}
	out := keyed(t, keys, value)
	for _, g := range groups {
		rec := g.record(keys, 1)
		var (
			sum float64
			n   int
		)
		for _, r := range g.rows {
			if r[value] == nil {
				continue
			}
			v, err := number(r[value])
			if err != nil {
				return nil, fmt.Errorf("mean %s: %w", value, err)
			}
			f, _ := table.Float(v)
			sum += f
			n++
		}
		if n == 0 {
			rec[value] = nil
		} else {
			rec[value] = sum / float64(n)
		}
		out.Rows = append(out.Rows, rec)
	}
	return out, nil
}

// Melt turns the value columns of t into rows. The result has columns
// ids..., varName, valueName with one row per (value column, input row):
// every input row for the first value column, then every input row for the
// second, and so on.
func Melt(t *table.Table, ids, values []string, varName, valueName string) (*table.Table, error) {
	if err := t.Require(ids...); err != nil {
		return nil, err
	}
	if err := t.Require(values...); err != nil {
		return nil, err
	}
	out := keyed(t, ids, varName, valueName)
	out.Rows = make([]records.Record, 0, len(values)*len(t.Rows))
	for _, c := range values {
		for _, r := range t.Rows {
			rec := make(records.Record, len(ids)+2)
			for _, id := range ids {
				rec[id] = r[id]
			}
			rec[varName] = c
			rec[valueName] = r[c]
			out.Rows = append(out.Rows, rec)
		}
	}
	return out, nil
}

// number normalizes a cell to int64 or float64. nil is int64(0).
func number(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return int64(0), nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case string:
		s := strings.TrimSpace(x)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %#v", ErrNotNumeric, v)
}
