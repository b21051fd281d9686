package dbf_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"reflect"
	"testing"
	"testing/iotest"
	"time"

	"golang.org/x/text/encoding/charmap"

	"himalaya/internal/parser/dbf"
	"himalaya/internal/parser/dbf/dbftest"
)

var peakFields = []dbf.Field{
	{Name: "PEAKID", Type: 'C', Length: 4},
	{Name: "PKNAME", Type: 'C', Length: 20},
	{Name: "HEIGHTM", Type: 'N', Length: 5},
}

func mustBuild(t *testing.T, fields []dbf.Field, rows []dbftest.Row) []byte {
	t.Helper()
	b, err := dbftest.Build(fields, rows)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return b
}

func TestParse_Basic(t *testing.T) {
	t.Parallel()

	data := mustBuild(t, peakFields, dbftest.Rows(
		[]string{"EVER", "Everest", "8849"},
		[]string{"AMAD", "Ama Dablam", "6814"},
		[]string{"XXXX", "", ""},
	))

	tb, err := dbf.NewParser(dbf.Options{}).Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(tb.Columns, []string{"PEAKID", "PKNAME", "HEIGHTM"}) {
		t.Fatalf("columns=%v", tb.Columns)
	}
	want := [][]any{
		{"EVER", "Everest", int64(8849)},
		{"AMAD", "Ama Dablam", int64(6814)},
		{"XXXX", "", nil},
	}
	if got := tb.Matrix(); !reflect.DeepEqual(got, want) {
		t.Fatalf("rows=%#v\nwant %#v", got, want)
	}
}

func TestParse_Latin1NeverFails(t *testing.T) {
	t.Parallel()

	// Every single byte value must decode; 0x81 and 0x9D are holes in cp1252.
	name := "Ç\u0081\u009dÿé"
	data := mustBuild(t, peakFields, dbftest.Rows([]string{"KANG", name, "8586"}))

	tb, err := dbf.NewParser(dbf.Options{}).Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := tb.Rows[0]["PKNAME"]; got != name {
		t.Fatalf("PKNAME=%q, want %q", got, name)
	}
}

func TestParse_OtherEncoding(t *testing.T) {
	t.Parallel()

	data := mustBuild(t, peakFields, dbftest.Rows([]string{"KANG", "é", "1"}))
	// 0xE9 is 'щ' in cp866.
	tb, err := dbf.NewParser(dbf.Options{Encoding: charmap.CodePage866}).Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := tb.Rows[0]["PKNAME"]; got != "щ" {
		t.Fatalf("PKNAME=%q, want щ", got)
	}
}

func TestParse_DeletedRecords(t *testing.T) {
	t.Parallel()

	rows := []dbftest.Row{
		{Values: []string{"A", "a", "1"}},
		{Values: []string{"B", "b", "2"}, Deleted: true},
		{Values: []string{"C", "c", "3"}},
	}
	data := mustBuild(t, peakFields, rows)

	tb, err := dbf.NewParser(dbf.Options{}).Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := tb.Column("PEAKID"); !reflect.DeepEqual(got, []any{"A", "C"}) {
		t.Fatalf("PEAKID=%v, want [A C]", got)
	}

	tb, err = dbf.NewParser(dbf.Options{IncludeDeleted: true}).Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tb.Len() != 3 {
		t.Fatalf("IncludeDeleted Len()=%d, want 3", tb.Len())
	}
}

func TestParse_FieldTypes(t *testing.T) {
	t.Parallel()

	fields := []dbf.Field{
		{Name: "YEAR", Type: 'N', Length: 4},
		{Name: "HIGHPOINT", Type: 'N', Length: 8, Decimals: 1},
		{Name: "O2USED", Type: 'L', Length: 1},
		{Name: "BCDATE", Type: 'D', Length: 8},
		{Name: "RATIO", Type: 'F', Length: 6, Decimals: 2},
		{Name: "NOTES", Type: 'M', Length: 10},
	}
	data := mustBuild(t, fields, dbftest.Rows(
		[]string{"1953", "8848.5", "T", "19530529", "0.25", "12"},
		[]string{"", "", "?", "", "****", ""},
		[]string{"2001", "7000", "n", "00000000", "1,5", ""},
	))

	tb, err := dbf.NewParser(dbf.Options{}).Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := [][]any{
		{int64(1953), 8848.5, true, time.Date(1953, 5, 29, 0, 0, 0, 0, time.UTC), 0.25, nil},
		{nil, nil, nil, nil, nil, nil},
		{int64(2001), int64(7000), false, nil, 1.5, nil},
	}
	if got := tb.Matrix(); !reflect.DeepEqual(got, want) {
		t.Fatalf("rows=%#v\nwant %#v", got, want)
	}
}

func TestParse_BinaryFields(t *testing.T) {
	t.Parallel()

	fields := []dbf.Field{
		{Name: "ID", Type: 'I', Length: 4},
		{Name: "AMOUNT", Type: 'O', Length: 8},
	}
	data := mustBuild(t, fields, dbftest.Rows([]string{"xxxx", "yyyyyyyy"}))

	// Patch the record bytes with binary values; rec is the deletion flag.
	rec := len(data) - 1 - 13
	binary.LittleEndian.PutUint32(data[rec+1:], uint32(0xFFFFFFFE)) // -2
	binary.LittleEndian.PutUint64(data[rec+5:], math.Float64bits(3.5))

	tb, err := dbf.NewParser(dbf.Options{}).Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := tb.Rows[0]["ID"]; got != int64(-2) {
		t.Fatalf("ID=%#v, want -2", got)
	}
	if got := tb.Rows[0]["AMOUNT"]; got != 3.5 {
		t.Fatalf("AMOUNT=%#v, want 3.5", got)
	}
}

func TestParse_Corrupt(t *testing.T) {
	t.Parallel()

	good := mustBuild(t, peakFields, dbftest.Rows(
		[]string{"A", "a", "1"},
		[]string{"B", "b", "2"},
	))

	cases := []struct {
		name    string
		data    func() []byte
		wantErr error
	}{
		{
			name:    "short_header",
			data:    func() []byte { return good[:10] },
			wantErr: dbf.ErrHeader,
		},
		{
			name: "record_count_too_high",
			data: func() []byte {
				b := bytes.Clone(good)
				binary.LittleEndian.PutUint32(b[4:8], 5)
				return b
			},
			wantErr: dbf.ErrTruncated,
		},
		{
			name: "record_count_max_uint32",
			data: func() []byte {
				b := bytes.Clone(good)
				binary.LittleEndian.PutUint32(b[4:8], math.MaxUint32)
				return b
			},
			wantErr: dbf.ErrTruncated,
		},
		{
			name: "truncated_records_without_marker",
			data: func() []byte {
				b := bytes.Clone(good)
				return b[:len(b)-10]
			},
			wantErr: dbf.ErrTruncated,
		},
		{
			name: "record_length_mismatch",
			data: func() []byte {
				b := bytes.Clone(good)
				binary.LittleEndian.PutUint16(b[10:12], 99)
				return b
			},
			wantErr: dbf.ErrHeader,
		},
		{
			name: "missing_terminator",
			data: func() []byte {
				b := bytes.Clone(good)
				b[32+32*len(peakFields)] = ' '
				return b
			},
			wantErr: dbf.ErrHeader,
		},
		{
			name: "unknown_field_type",
			data: func() []byte {
				b := bytes.Clone(good)
				b[32+11] = 'Q'
				return b
			},
			wantErr: dbf.ErrFieldType,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := dbf.NewParser(dbf.Options{}).Parse(bytes.NewReader(tc.data()))
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err=%v, want %v", err, tc.wantErr)
			}
		})
	}
}

// A stream without a known size cannot be checked up front; the huge record
// count must still end in ErrTruncated rather than a giant allocation.
func TestParse_HugeRecordCountStream(t *testing.T) {
	t.Parallel()

	b := mustBuild(t, peakFields, dbftest.Rows([]string{"A", "a", "1"}))
	binary.LittleEndian.PutUint32(b[4:8], math.MaxUint32)

	_, err := dbf.NewParser(dbf.Options{}).Parse(iotest.OneByteReader(bytes.NewReader(b)))
	if !errors.Is(err, dbf.ErrTruncated) {
		t.Fatalf("err=%v, want ErrTruncated", err)
	}
}

func TestReadHeader(t *testing.T) {
	t.Parallel()

	data := mustBuild(t, peakFields, dbftest.Rows([]string{"A", "a", "1"}))
	h, err := dbf.ReadHeader(bytes.NewReader(data), charmap.ISO8859_1.NewDecoder())
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.NumRecords != 1 || h.RecordLen != 30 || len(h.Fields) != 3 {
		t.Fatalf("header=%+v", h)
	}
	if want := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC); !h.Updated.Equal(want) {
		t.Fatalf("Updated=%v, want %v", h.Updated, want)
	}
	if !reflect.DeepEqual(h.Fields, peakFields) {
		t.Fatalf("fields=%+v", h.Fields)
	}
}
