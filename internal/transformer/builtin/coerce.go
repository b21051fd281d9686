package builtin

import (
	"strconv"
	"strings"
	"time"

	"himalaya/internal/table"
)

// DefaultDateLayout matches the YYYYMMDD form dBase stores dates in.
const DefaultDateLayout = "20060102"

// Coerce converts string cells to typed values. It exists for CSV exports,
// where every cell arrives as text; .dbf input is already typed.
//
// Recognized types: "int" (int64), "float" (float64), "bool", "date"
// (time.Time via Layout) and "string". Values that do not parse, non-string
// values and unknown type names are left unchanged.
type Coerce struct {
	Types  map[string]string // column -> type
	Layout string            // date layout; empty means DefaultDateLayout
}

func (c Coerce) Apply(in *table.Table) (*table.Table, error) {
	out := in.Derive(in.Columns...)
	out.Rows = cloneRows(in)
	if len(c.Types) == 0 {
		return out, nil
	}
	layout := c.Layout
	if layout == "" {
		layout = DefaultDateLayout
	}
	for _, r := range out.Rows {
		for field, typ := range c.Types {
			s, ok := r[field].(string)
			if !ok {
				continue
			}
			if v, ok := coerceString(strings.TrimSpace(s), typ, layout); ok {
				r[field] = v
			}
		}
	}
	return out, nil
}

func coerceString(s, typ, layout string) (any, bool) {
	switch typ {
	case "int":
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		// "8848.0" style integers from spreadsheet exports.
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
			return int64(f), true
		}
	case "float":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	case "bool":
		if b, err := strconv.ParseBool(s); err == nil {
			return b, true
		}
	case "date":
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return nil, false
}
