package builtin

import (
	"fmt"
	"strings"

	"himalaya/internal/table"
	"himalaya/pkg/records"
)

// DeDup policies.
const (
	KeepFirst    = "keep-first"
	KeepLast     = "keep-last"
	MostComplete = "most-complete"
)

// DeDup collapses rows sharing the same Keys to a single winner chosen by
// Policy:
//
//   - "keep-first"   : the earliest row
//   - "keep-last"    : the latest row (default)
//   - "most-complete": the row with the most non-empty cells; ties keep the
//     latest
//
// Winners stay in input order. Keys compare by type and value, so int64(1)
// and "1" are different keys; nil is a key like any other.
type DeDup struct {
	Keys   []string
	Policy string
}

// Apply returns the winning rows. No keys returns a copy of in.
func (d DeDup) Apply(in *table.Table) (*table.Table, error) {
	if err := in.Require(d.Keys...); err != nil {
		return nil, err
	}
	policy := strings.ToLower(strings.TrimSpace(d.Policy))
	switch policy {
	case "":
		policy = KeepLast
	case KeepFirst, KeepLast, MostComplete:
	default:
		return nil, fmt.Errorf("dedup: unknown policy %q", d.Policy)
	}

	out := in.Derive(in.Columns...)
	if len(d.Keys) == 0 {
		out.Rows = cloneRows(in)
		return out, nil
	}

	type slot struct {
		index int
		score int
	}
	winners := make(map[string]slot, len(in.Rows))
	var b strings.Builder
	for i, r := range in.Rows {
		b.Reset()
		for _, k := range d.Keys {
			fmt.Fprintf(&b, "%T:%v\x00", r[k], r[k])
		}
		key := b.String()

		prev, seen := winners[key]
		switch policy {
		case KeepFirst:
			if !seen {
				winners[key] = slot{index: i}
			}
		case KeepLast:
			winners[key] = slot{index: i}
		case MostComplete:
			s := slot{index: i, score: filled(r)}
			if !seen || s.score >= prev.score {
				winners[key] = s
			}
		}
	}

	keep := make([]bool, len(in.Rows))
	for _, s := range winners {
		keep[s.index] = true
	}
	out.Rows = make([]records.Record, 0, len(winners))
	for i, r := range in.Rows {
		if keep[i] {
			out.Rows = append(out.Rows, r.Clone())
		}
	}
	return out, nil
}

// filled counts the non-empty cells of r.
func filled(r records.Record) int {
	n := 0
	for _, v := range r {
		if present(v) {
			n++
		}
	}
	return n
}
