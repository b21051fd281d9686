// Package dbf decodes dBase III style table files (.dbf), the format the
// Himalayan Database ships its peaks and expeditions tables in.
//
// Layout:
//
//	32-byte file header  version, last update, record count, header and record length
//	n × 32-byte fields   name, type, length, decimal count
//	0x0D                 end of field descriptors
//	records              1 deletion-flag byte followed by fixed-width fields
//	0x1A                 optional end-of-file marker
//
// Text is decoded with a single-byte charset (Latin-1 by default), so no
// byte sequence can fail to decode. Memo fields are not followed into their
// companion .dbt/.fpt files and decode as nil.
package dbf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"himalaya/internal/table"
	"himalaya/pkg/records"
)

const (
	headerSize     = 32
	descriptorSize = 32
	fieldTerm      = 0x0D
	eofMarker      = 0x1A
	deletedFlag    = '*'

	// maxPrealloc bounds the row capacity reserved from the header's record
	// count, which a corrupt file can set to anything.
	maxPrealloc = 1 << 16
)

var (
	// ErrHeader is returned when the file header or field descriptors are
	// malformed.
	ErrHeader = errors.New("dbf: malformed header")

	// ErrTruncated is returned when the file holds fewer records than the
	// header announces.
	ErrTruncated = errors.New("dbf: record count mismatch")

	// ErrFieldType is returned for field types this decoder does not know.
	ErrFieldType = errors.New("dbf: unsupported field type")
)

// Options configures the decoder. The zero value is ready to use.
type Options struct {
	// Encoding decodes character data. Nil means Latin-1 (ISO-8859-1).
	Encoding encoding.Encoding

	// IncludeDeleted keeps records flagged as deleted.
	IncludeDeleted bool
}

// Field describes one column of a .dbf file.
type Field struct {
	Name     string
	Type     byte
	Length   int
	Decimals int
}

// Header is the decoded file header.
type Header struct {
	Version    byte
	Updated    time.Time
	NumRecords int
	HeaderLen  int
	RecordLen  int
	Fields     []Field
}

// Parser decodes .dbf streams. It holds no per-stream state and may be reused.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser {
	if opt.Encoding == nil {
		opt.Encoding = charmap.ISO8859_1
	}
	return &Parser{opt: opt}
}

// Parse reads the header and every record from r. Deleted records are
// skipped unless IncludeDeleted is set.
func (p *Parser) Parse(r io.Reader) (*table.Table, error) {
	dec := p.opt.Encoding.NewDecoder()

	h, err := ReadHeader(r, dec)
	if err != nil {
		return nil, err
	}

	cols := make([]string, len(h.Fields))
	for i, f := range h.Fields {
		cols[i] = f.Name
	}
	// Readers that know their remaining size (bytes.Reader, strings.Reader)
	// let an impossible record count fail before any record is read.
	if sz, ok := r.(interface{ Len() int }); ok {
		if need := int64(h.NumRecords) * int64(h.RecordLen); need > int64(sz.Len()) {
			return nil, fmt.Errorf("%w: header announces %d records of %d bytes, %d bytes remain",
				ErrTruncated, h.NumRecords, h.RecordLen, sz.Len())
		}
	}

	t := table.New(cols...)
	t.Rows = make([]records.Record, 0, min(h.NumRecords, maxPrealloc))

	buf := make([]byte, h.RecordLen)
	for n := 0; n < h.NumRecords; n++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("%w: header announces %d records, file ends in record %d", ErrTruncated, h.NumRecords, n+1)
			}
			return nil, fmt.Errorf("dbf: read record %d: %w", n+1, err)
		}
		if buf[0] == eofMarker {
			return nil, fmt.Errorf("%w: header announces %d records, end marker after %d", ErrTruncated, h.NumRecords, n)
		}
		if buf[0] == deletedFlag && !p.opt.IncludeDeleted {
			continue
		}

		rec := make(records.Record, len(h.Fields))
		off := 1
		for _, f := range h.Fields {
			v, err := decodeField(f, buf[off:off+f.Length], dec)
			if err != nil {
				return nil, fmt.Errorf("dbf: record %d: %w", n+1, err)
			}
			rec[f.Name] = v
			off += f.Length
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// ReadHeader consumes the file header and field descriptors from r, leaving
// r positioned at the first record.
func ReadHeader(r io.Reader, dec *encoding.Decoder) (*Header, error) {
	var fixed [headerSize]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHeader, err)
	}

	h := &Header{
		Version:    fixed[0],
		NumRecords: int(binary.LittleEndian.Uint32(fixed[4:8])),
		HeaderLen:  int(binary.LittleEndian.Uint16(fixed[8:10])),
		RecordLen:  int(binary.LittleEndian.Uint16(fixed[10:12])),
	}
	// Two-digit year counted from 1900, as written by dBase III and later.
	h.Updated = time.Date(1900+int(fixed[1]), time.Month(fixed[2]), int(fixed[3]), 0, 0, 0, 0, time.UTC)

	if h.HeaderLen < headerSize+1 {
		return nil, fmt.Errorf("%w: header length %d", ErrHeader, h.HeaderLen)
	}
	if h.RecordLen < 1 {
		return nil, fmt.Errorf("%w: record length %d", ErrHeader, h.RecordLen)
	}

	rest := make([]byte, h.HeaderLen-headerSize)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, fmt.Errorf("%w: field descriptors: %v", ErrHeader, err)
	}

	width := 1 // deletion flag
	terminated := false
	for off := 0; off < len(rest); off += descriptorSize {
		if rest[off] == fieldTerm {
			terminated = true
			break
		}
		if off+descriptorSize > len(rest) {
			break
		}
		d := rest[off : off+descriptorSize]
		name, err := dec.Bytes(bytes.TrimRight(cstring(d[:11]), " "))
		if err != nil {
			return nil, fmt.Errorf("%w: field name: %v", ErrHeader, err)
		}
		f := Field{
			Name:     string(name),
			Type:     d[11],
			Length:   int(d[16]),
			Decimals: int(d[17]),
		}
		if f.Name == "" || f.Length == 0 {
			return nil, fmt.Errorf("%w: field %d has empty name or zero length", ErrHeader, len(h.Fields)+1)
		}
		h.Fields = append(h.Fields, f)
		width += f.Length
	}
	if !terminated {
		return nil, fmt.Errorf("%w: missing field terminator", ErrHeader)
	}
	if len(h.Fields) == 0 {
		return nil, fmt.Errorf("%w: no fields", ErrHeader)
	}
	if width != h.RecordLen {
		return nil, fmt.Errorf("%w: fields span %d bytes, record length is %d", ErrHeader, width, h.RecordLen)
	}
	return h, nil
}

// cstring cuts b at its first NUL byte.
func cstring(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return b[:i]
	}
	return b
}

// decodeField turns one fixed-width field into a Go value.
func decodeField(f Field, raw []byte, dec *encoding.Decoder) (any, error) {
	switch f.Type {
	case 'C':
		b, err := dec.Bytes(bytes.TrimRight(raw, " \x00"))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		return string(b), nil

	case 'N', 'F':
		return parseNumber(f, raw)

	case 'L':
		switch raw[0] {
		case 'T', 't', 'Y', 'y':
			return true, nil
		case 'F', 'f', 'N', 'n':
			return false, nil
		case '?', ' ', 0:
			return nil, nil
		}
		return nil, fmt.Errorf("field %s: invalid logical %q", f.Name, raw[0])

	case 'D':
		s := strings.TrimSpace(string(cstring(raw)))
		if strings.Trim(s, "0") == "" {
			return nil, nil
		}
		d, err := time.Parse("20060102", s)
		if err != nil {
			return nil, fmt.Errorf("field %s: invalid date %q", f.Name, s)
		}
		return d, nil

	case 'I', '+':
		if len(raw) != 4 {
			return nil, fmt.Errorf("field %s: integer field has length %d", f.Name, len(raw))
		}
		return int64(int32(binary.LittleEndian.Uint32(raw))), nil

	case 'O':
		if len(raw) != 8 {
			return nil, fmt.Errorf("field %s: double field has length %d", f.Name, len(raw))
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(raw)), nil

	case 'M', 'B', 'G', 'P', '0':
		// Memo pointers and the _NullFlags column.
		return nil, nil
	}
	return nil, fmt.Errorf("%w %q in field %s", ErrFieldType, f.Type, f.Name)
}

// parseNumber decodes N/F fields: integral text becomes int64, anything else
// float64, blank nil. Overflow padding with '*' is treated as blank.
func parseNumber(f Field, raw []byte) (any, error) {
	s := strings.Trim(strings.TrimSpace(string(cstring(raw))), "*")
	if s == "" {
		return nil, nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return nil, fmt.Errorf("field %s: invalid number %q", f.Name, s)
	}
	return v, nil
}
