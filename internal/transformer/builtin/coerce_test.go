package builtin

import (
	"reflect"
	"testing"
	"time"

	"himalaya/internal/table"
	"himalaya/pkg/records"
)

func TestCoerce(t *testing.T) {
	in := &table.Table{
		Columns: []string{"HEIGHTM", "SMTDATE", "O2USED", "RATIO", "PKNAME"},
		Rows: []records.Record{{
			"HEIGHTM": "8849",
			"SMTDATE": "19530529",
			"O2USED":  "true",
			"RATIO":   " 0.25 ",
			"PKNAME":  "Everest",
		}},
	}
	c := Coerce{Types: map[string]string{
		"HEIGHTM": "int",
		"SMTDATE": "date",
		"O2USED":  "bool",
		"RATIO":   "float",
		"PKNAME":  "string",
	}}
	out, err := c.Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := records.Record{
		"HEIGHTM": int64(8849),
		"SMTDATE": time.Date(1953, 5, 29, 0, 0, 0, 0, time.UTC),
		"O2USED":  true,
		"RATIO":   0.25,
		"PKNAME":  "Everest",
	}
	if !reflect.DeepEqual(out.Rows[0], want) {
		t.Fatalf("got %#v\nwant %#v", out.Rows[0], want)
	}
	if in.Rows[0]["HEIGHTM"] != "8849" {
		t.Fatalf("input modified: %v", in.Rows[0])
	}
}

func TestCoerceLeavesUnparseable(t *testing.T) {
	tests := []struct {
		name string
		typ  string
		in   any
	}{
		{"int_text", "int", "high"},
		{"int_fraction", "int", "12.5"},
		{"float_text", "float", "n/a"},
		{"bool_text", "bool", "maybe"},
		{"date_text", "date", "29.05.1953"},
		{"already_typed", "int", int64(7)},
		{"nil", "int", nil},
		{"unknown_type", "uuid", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &table.Table{Columns: []string{"v"}, Rows: []records.Record{{"v": tt.in}}}
			out, err := Coerce{Types: map[string]string{"v": tt.typ}}.Apply(in)
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if !reflect.DeepEqual(out.Rows[0]["v"], tt.in) {
				t.Fatalf("got %#v, want unchanged %#v", out.Rows[0]["v"], tt.in)
			}
		})
	}
}

func TestCoerceIntFromWholeFloat(t *testing.T) {
	in := &table.Table{Columns: []string{"v"}, Rows: []records.Record{{"v": "8848.0"}}}
	out, _ := Coerce{Types: map[string]string{"v": "int"}}.Apply(in)
	if got := out.Rows[0]["v"]; got != int64(8848) {
		t.Fatalf("got %#v", got)
	}
}

func TestCoerceCustomLayout(t *testing.T) {
	in := &table.Table{Columns: []string{"d"}, Rows: []records.Record{{"d": "29.05.1953"}}}
	out, _ := Coerce{Types: map[string]string{"d": "date"}, Layout: "02.01.2006"}.Apply(in)
	if _, ok := out.Rows[0]["d"].(time.Time); !ok {
		t.Fatalf("d not time.Time: %#v", out.Rows[0]["d"])
	}
}
