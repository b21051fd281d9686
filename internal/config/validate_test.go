package config

import (
	"strings"
	"testing"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func TestValidatePipeline_ValidMinimal(t *testing.T) {
	p := Default()
	p.Sources.Peaks.Transform = []Transform{
		{Kind: "normalize", Options: Options{}},
		{Kind: "coerce", Options: Options{"types": map[string]any{"HEIGHTM": "int"}}},
	}
	if issues := ValidatePipeline(p); len(issues) != 0 {
		t.Fatalf("expected no issues, got %+v", issues)
	}
}

func TestValidatePipeline_Findings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Pipeline)
		sev    IssueSeverity
		path   string
		msg    string
	}{
		{"missing_job", func(p *Pipeline) { p.Job = " " }, SeverityError, "job", "must not be empty"},
		{"empty_source_kind", func(p *Pipeline) { p.Sources.Peaks.Kind = "" }, SeverityError, "sources.peaks.kind", "must not be empty"},
		{"unknown_source_kind", func(p *Pipeline) { p.Sources.Expeditions.Kind = "s3" }, SeverityError, "sources.expeditions.kind", `"s3"`},
		{"empty_path", func(p *Pipeline) { p.Sources.Peaks.File.Path = "" }, SeverityError, "sources.peaks.file.path", "non-empty path"},
		{"unknown_parser", func(p *Pipeline) { p.Parser.Kind = "xml" }, SeverityError, "parser.kind", `"xml"`},
		{"bad_encoding", func(p *Pipeline) { p.Parser.Options = Options{"encoding": "ebcdic"} }, SeverityError, "parser.options.encoding", "ebcdic"},
		{"header_map_on_dbf", func(p *Pipeline) {
			p.Parser = Parser{Kind: "dbf", Options: Options{"header_map": map[string]any{"a": "b"}}}
		}, SeverityWarning, "parser.options.header_map", "csv"},
		{"negative_max_bytes", func(p *Pipeline) { p.Parser.Options = Options{"max_bytes": float64(-1)} }, SeverityError, "parser.options.max_bytes", "negative"},
		{"negative_top_n", func(p *Pipeline) { p.TopN = -1 }, SeverityError, "top_n", "negative"},
		{"unknown_transform", func(p *Pipeline) {
			p.Sources.Peaks.Transform = []Transform{{Kind: "dedupe"}}
		}, SeverityError, "sources.peaks.transform[0].kind", `"dedupe"`},
		{"empty_coerce", func(p *Pipeline) {
			p.Sources.Expeditions.Transform = []Transform{{Kind: "normalize"}, {Kind: "coerce", Options: Options{}}}
		}, SeverityWarning, "sources.expeditions.transform[1].options.types", "not change"},
		{"dedup_without_keys", func(p *Pipeline) {
			p.Sources.Peaks.Transform = []Transform{{Kind: "dedup", Options: Options{}}}
		}, SeverityError, "sources.peaks.transform[0].options.keys", "keys"},
		{"dedup_bad_policy", func(p *Pipeline) {
			p.Sources.Peaks.Transform = []Transform{{Kind: "dedup", Options: Options{"keys": []any{"PEAKID"}, "policy": "newest"}}}
		}, SeverityError, "sources.peaks.transform[0].options.policy", `"newest"`},
		{"require_without_columns", func(p *Pipeline) {
			p.Sources.Expeditions.Transform = []Transform{{Kind: "require"}}
		}, SeverityWarning, "sources.expeditions.transform[0].options.columns", "drop"},
		{"select_without_columns", func(p *Pipeline) {
			p.Sources.Peaks.Transform = []Transform{{Kind: "select", Options: Options{}}}
		}, SeverityError, "sources.peaks.transform[0].options.columns", "columns"},
		{"topn_without_key", func(p *Pipeline) {
			p.Sources.Peaks.Transform = []Transform{{Kind: "topn", Options: Options{}}}
		}, SeverityError, "sources.peaks.transform[0].options.key", "key"},
		{"pushgateway_without_url", func(p *Pipeline) { p.Metrics.Backend = "pushgateway" }, SeverityWarning, "metrics.pushgateway_url", "localhost:9091"},
		{"datadog_without_addr", func(p *Pipeline) { p.Metrics.Backend = "datadog" }, SeverityWarning, "metrics.datadog_addr", "8125"},
		{"unknown_backend", func(p *Pipeline) { p.Metrics.Backend = "graphite" }, SeverityWarning, "metrics.backend", "disabled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			tt.mutate(&p)
			issues := ValidatePipeline(p)
			if !hasIssue(t, issues, tt.sev, tt.path, tt.msg) {
				t.Fatalf("want %s at %s containing %q; got %+v", tt.sev, tt.path, tt.msg, issues)
			}
		})
	}
}

func TestIssue_Error(t *testing.T) {
	iss := Issue{Severity: SeverityError, Path: "top_n", Message: "bad"}
	if got := iss.Error(); got != "error at top_n: bad" {
		t.Fatalf("Error() = %q", got)
	}
}
