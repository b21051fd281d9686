// Package records defines the in-memory row shape shared by parsers,
// transformers and aggregations.
package records

// Record is a single row keyed by column name. Cell values are nil, string,
// int64, float64, bool or time.Time.
type Record map[string]any

// Clone returns a shallow copy of r. Cell values are immutable scalars, so a
// shallow copy is enough to keep the source row untouched.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
