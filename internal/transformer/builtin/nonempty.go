package builtin

import (
	"fmt"
	"strings"

	"himalaya/internal/table"
)

// NonEmpty derives a boolean column from a text column: true when the text,
// trimmed of surrounding whitespace, is not empty. nil is treated as empty
// text. Values that are already booleans are kept, so deriving in place
// twice gives the same column.
type NonEmpty struct {
	Source string

	// Target receives the flag. Empty means Source is overwritten.
	Target string
}

// Apply never fails. A missing Source column reads as all nil; a missing
// Target column is appended.
func (d NonEmpty) Apply(in *table.Table) (*table.Table, error) {
	target := d.Target
	if target == "" {
		target = d.Source
	}
	cols := in.Columns
	if !in.Has(target) {
		cols = append(append([]string{}, in.Columns...), target)
	}
	out := in.Derive(cols...)
	out.Rows = cloneRows(in)
	for _, r := range out.Rows {
		r[target] = IsNonEmpty(r[d.Source])
	}
	return out, nil
}

// IsNonEmpty reports whether v holds non-blank content.
func IsNonEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return strings.TrimSpace(x) != ""
	}
	return strings.TrimSpace(fmt.Sprint(v)) != ""
}
