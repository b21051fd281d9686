// Package dbftest builds small .dbf fixtures for tests.
package dbftest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"

	"himalaya/internal/parser/dbf"
)

// Row is one record. Deleted marks it with the '*' flag.
type Row struct {
	Values  []string
	Deleted bool
}

// Build encodes fields and rows as a dBase III file. Character values are
// left-aligned, every other type right-aligned, and all text is encoded as
// Latin-1. Values longer than their field are an error.
func Build(fields []dbf.Field, rows []Row) ([]byte, error) {
	var buf bytes.Buffer

	recLen := 1
	for _, f := range fields {
		recLen += f.Length
	}
	headerLen := 32 + 32*len(fields) + 1

	hdr := make([]byte, 32)
	hdr[0] = 0x03
	hdr[1], hdr[2], hdr[3] = 125, 6, 1 // 2025-06-01
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(rows)))
	binary.LittleEndian.PutUint16(hdr[8:10], uint16(headerLen))
	binary.LittleEndian.PutUint16(hdr[10:12], uint16(recLen))
	buf.Write(hdr)

	for _, f := range fields {
		d := make([]byte, 32)
		copy(d[:11], f.Name)
		d[11] = f.Type
		d[16] = byte(f.Length)
		d[17] = byte(f.Decimals)
		buf.Write(d)
	}
	buf.WriteByte(0x0D)

	enc := charmap.ISO8859_1.NewEncoder()
	for i, r := range rows {
		if len(r.Values) != len(fields) {
			return nil, fmt.Errorf("row %d has %d values for %d fields", i, len(r.Values), len(fields))
		}
		if r.Deleted {
			buf.WriteByte('*')
		} else {
			buf.WriteByte(' ')
		}
		for j, f := range fields {
			v, err := enc.String(r.Values[j])
			if err != nil {
				return nil, fmt.Errorf("row %d field %s: %w", i, f.Name, err)
			}
			if len(v) > f.Length {
				return nil, fmt.Errorf("row %d field %s: %q exceeds length %d", i, f.Name, v, f.Length)
			}
			pad := strings.Repeat(" ", f.Length-len(v))
			if f.Type == 'C' {
				buf.WriteString(v + pad)
			} else {
				buf.WriteString(pad + v)
			}
		}
	}
	buf.WriteByte(0x1A)
	return buf.Bytes(), nil
}

// Write builds the fixture and writes it as name under dir, returning the
// full path. It fails the test on any error.
func Write(t testing.TB, dir, name string, fields []dbf.Field, rows []Row) string {
	t.Helper()
	b, err := Build(fields, rows)
	if err != nil {
		t.Fatalf("dbftest.Build: %v", err)
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, b, 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

// Rows wraps plain value slices as non-deleted rows.
func Rows(values ...[]string) []Row {
	out := make([]Row, len(values))
	for i, v := range values {
		out[i] = Row{Values: v}
	}
	return out
}
