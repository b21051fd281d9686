package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates something worth surfacing that does not block
	// execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "sources.peaks.file.path",
// "sources.expeditions.transform[1].kind").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// transformKinds mirrors the kinds the builtin registry understands. It is
// duplicated here so config does not import the transformer packages.
var transformKinds = map[string]struct{}{
	"normalize": {},
	"coerce":    {},
	"select":    {},
	"reorder":   {},
	"rename":    {},
	"nonempty":  {},
	"topn":      {},
	"sort":      {},
	"dedup":     {},
	"require":   {},
}

// ValidatePipeline performs static validation of a Pipeline. It does not
// mutate p. Callers decide whether warnings are fatal.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling",
		})
	}
	issues = append(issues, validateSource("sources.peaks", p.Sources.Peaks)...)
	issues = append(issues, validateSource("sources.expeditions", p.Sources.Expeditions)...)
	issues = append(issues, validateParser(p.Parser)...)

	if p.TopN < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "top_n",
			Message:  fmt.Sprintf("top_n=%d must not be negative", p.TopN),
		})
	}
	issues = append(issues, validateMetrics(p.Metrics)...)
	return issues
}

func validateSource(path string, s Source) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".kind",
			Message:  "source kind must not be empty",
		})
	}
	switch s.Kind {
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".file.path",
				Message:  "file source requires a non-empty path",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".kind",
			Message:  fmt.Sprintf("unknown source kind %q", s.Kind),
		})
	}

	for i, t := range s.Transform {
		tp := fmt.Sprintf("%s.transform[%d]", path, i)
		if strings.TrimSpace(t.Kind) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     tp + ".kind",
				Message:  "transform kind must not be empty",
			})
			continue
		}
		if _, ok := transformKinds[t.Kind]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     tp + ".kind",
				Message:  fmt.Sprintf("unknown transform kind %q", t.Kind),
			})
			continue
		}
		switch t.Kind {
		case "coerce":
			if len(t.Options.StringMap("types")) == 0 {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     tp + ".options.types",
					Message:  "coerce has no types; it will not change anything",
				})
			}
		case "select", "reorder":
			if len(t.Options.StringSlice("columns")) == 0 {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     tp + ".options.columns",
					Message:  t.Kind + " requires a non-empty columns list",
				})
			}
		case "nonempty":
			if t.Options.String("source", "") == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     tp + ".options.source",
					Message:  "nonempty requires a source column",
				})
			}
		case "dedup":
			if len(t.Options.StringSlice("keys")) == 0 {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     tp + ".options.keys",
					Message:  "dedup requires a non-empty keys list",
				})
			}
			switch pol := t.Options.String("policy", ""); pol {
			case "", "keep-first", "keep-last", "most-complete":
			default:
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     tp + ".options.policy",
					Message:  fmt.Sprintf("unknown dedup policy %q; use keep-first, keep-last or most-complete", pol),
				})
			}
		case "require":
			if len(t.Options.StringSlice("columns")) == 0 {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     tp + ".options.columns",
					Message:  "require has no columns; it will not drop anything",
				})
			}
		case "topn":
			if t.Options.String("key", "") == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     tp + ".options.key",
					Message:  "topn requires a key column",
				})
			}
		}
	}
	return issues
}

func validateParser(p Parser) []Issue {
	var issues []Issue

	switch p.Kind {
	case "", "auto", "dbf", "csv", "json":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.kind",
			Message:  fmt.Sprintf("unknown parser kind %q; use dbf, csv, json or auto", p.Kind),
		})
	}

	switch enc := p.Options.String("encoding", ""); strings.ToLower(enc) {
	case "", "latin1", "iso-8859-1", "utf8", "utf-8", "windows1252", "cp1252":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.options.encoding",
			Message:  fmt.Sprintf("unsupported encoding %q", enc),
		})
	}

	if p.Kind == "dbf" && p.Options.Any("header_map") != nil {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "parser.options.header_map",
			Message:  "header_map only applies to csv and json input",
		})
	}
	if n := p.Options.Int("max_bytes", 0); n < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.options.max_bytes",
			Message:  "max_bytes must not be negative",
		})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue

	switch m.Backend {
	case "", "none":
	case "pushgateway":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "metrics.pushgateway_url",
				Message:  "pushgateway backend without url; http://localhost:9091 will be used",
			})
		}
	case "datadog":
		if strings.TrimSpace(m.DatadogAddr) == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "metrics.datadog_addr",
				Message:  "datadog backend without address; 127.0.0.1:8125 will be used",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; metrics will be disabled", m.Backend),
		})
	}
	return issues
}
