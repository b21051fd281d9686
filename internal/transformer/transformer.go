// Package transformer defines the table-to-table step interface and the
// ordered chain that runs steps one after another.
package transformer

import (
	"fmt"

	"himalaya/internal/table"
)

// Transformer maps one table to another. Implementations must not modify
// the input table or its rows; they return a new table instead.
type Transformer interface {
	Apply(*table.Table) (*table.Table, error)
}

// Func adapts a plain function to Transformer.
type Func func(*table.Table) (*table.Table, error)

func (f Func) Apply(t *table.Table) (*table.Table, error) { return f(t) }

// Chain is an ordered list of transformers.
type Chain []Transformer

// Apply runs each step on the previous step's output and stops at the first
// error, which is wrapped with the step position and type.
func (c Chain) Apply(in *table.Table) (*table.Table, error) {
	out := in
	for i, t := range c {
		next, err := t.Apply(out)
		if err != nil {
			return nil, fmt.Errorf("step %d (%T): %w", i, t, err)
		}
		out = next
	}
	return out, nil
}
