package table

import (
	"fmt"
	"strings"
)

// LoadError reports that a record file could not be read or decoded: the
// path does not exist, the header is malformed, or the record area does not
// match what the header announces.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ColumnNotFoundError names a requested column that the table does not have.
type ColumnNotFoundError struct {
	Column string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("column %q not found", e.Column)
}

// SchemaMismatchError reports a column list whose membership differs from
// the table's actual columns.
type SchemaMismatchError struct {
	Missing []string // listed but not in the table
	Extra   []string // in the table but not listed
}

func (e *SchemaMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, "unlisted "+strings.Join(e.Extra, ", "))
	}
	if len(parts) == 0 {
		parts = append(parts, "duplicate column names")
	}
	return "schema mismatch: " + strings.Join(parts, "; ")
}

// EmptyInputError reports a degenerate request, such as ranking the keys of
// a table that has no rows or grouping without any key column.
type EmptyInputError struct {
	Op     string
	Reason string
}

func (e *EmptyInputError) Error() string {
	if e.Reason == "" {
		return e.Op + ": empty input"
	}
	return e.Op + ": " + e.Reason
}
