package builtin

import (
	"strings"

	"himalaya/internal/table"
)

const (
	nbspace = "\u00a0"

	// latin1NBSP is a UTF-8 no-break space read through the Latin-1 decoder.
	latin1NBSP = "\u00c2\u00a0"
)

// Normalize trims surrounding whitespace from string cells and turns
// no-break spaces into plain spaces, including the two-character form a
// UTF-8 no-break space takes when the file is decoded as Latin-1.
type Normalize struct{}

func (Normalize) Apply(in *table.Table) (*table.Table, error) {
	out := in.Derive(in.Columns...)
	out.Rows = cloneRows(in)
	for _, r := range out.Rows {
		for k, v := range r {
			if s, ok := v.(string); ok {
				s = strings.ReplaceAll(s, latin1NBSP, " ")
				s = strings.ReplaceAll(s, nbspace, " ")
				r[k] = strings.TrimSpace(s)
			}
		}
	}
	return out, nil
}
