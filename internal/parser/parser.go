// Package parser defines the contract shared by the record file decoders.
package parser

import (
	"io"

	"himalaya/internal/table"
)

// Parser decodes a whole record file into a table, preserving row order.
type Parser interface {
	Parse(r io.Reader) (*table.Table, error)
}
