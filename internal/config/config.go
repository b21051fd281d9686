// Package config defines the configuration model for the himalaya pipeline.
// A pipeline file names the two record files, how to decode them, how many
// peaks to keep, and where the JSON API and metrics go.
//
// Files ending in .yaml or .yml are decoded with gopkg.in/yaml.v3; anything
// else is decoded as JSON.
//
// Example (trimmed):
//
//	{
//	  "job": "himalaya",
//	  "sources": {
//	    "peaks":       { "kind": "file", "file": { "path": "data/peaks.dbf" } },
//	    "expeditions": { "kind": "file", "file": { "path": "data/exped.dbf" } }
//	  },
//	  "parser":  { "kind": "dbf", "options": { "encoding": "latin1" } },
//	  "top_n":   10,
//	  "server":  { "addr": ":8080" },
//	  "metrics": { "backend": "none" }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultTopN is the number of peaks kept when a pipeline does not say.
const DefaultTopN = 10

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job names the run for metrics labeling.
	Job string `json:"job" yaml:"job"`

	Sources Sources `json:"sources" yaml:"sources"`

	// Parser configures how raw bytes are turned into tables.
	Parser Parser `json:"parser" yaml:"parser"`

	// TopN is how many peaks, ranked by expedition count, the combined table
	// is restricted to. Zero means DefaultTopN.
	TopN int `json:"top_n" yaml:"top_n"`

	Server  Server  `json:"server" yaml:"server"`
	Metrics Metrics `json:"metrics" yaml:"metrics"`
}

// Sources names the two input record files.
type Sources struct {
	Peaks       Source `json:"peaks" yaml:"peaks"`
	Expeditions Source `json:"expeditions" yaml:"expeditions"`
}

// Source identifies one input. Current kind: "file".
type Source struct {
	Kind string     `json:"kind" yaml:"kind"`
	File SourceFile `json:"file" yaml:"file"`

	// Transform lists steps run on the decoded table before the fixed
	// projection, e.g. coerce for CSV exports whose cells are all text.
	Transform []Transform `json:"transform" yaml:"transform"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	Path string `json:"path" yaml:"path"`
}

// Parser selects the decoder. Kind is "dbf", "csv" or "auto" (by extension).
type Parser struct {
	Kind string `json:"kind" yaml:"kind"`

	// Options is interpreted by the decoder. Keys in use:
	//   encoding (string: latin1, utf8, windows1252)
	//   include_deleted (bool, dbf)
	//   comma (string), trim_space (bool), header_map (object) for csv
	//   max_bytes (int)
	Options Options `json:"options" yaml:"options"`
}

// Transform defines a single transformation step.
type Transform struct {
	// Kind selects the transform implementation (e.g. "normalize", "coerce",
	// "rename"). Implementations define their own options.
	Kind    string  `json:"kind" yaml:"kind"`
	Options Options `json:"options" yaml:"options"`
}

// Server configures the JSON API listener.
type Server struct {
	Addr string `json:"addr" yaml:"addr"`
}

// Metrics selects a metrics backend: "pushgateway", "datadog" or "none".
type Metrics struct {
	Backend        string `json:"backend" yaml:"backend"`
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url"`
	DatadogAddr    string `json:"datadog_addr" yaml:"datadog_addr"`
}

// Default returns the pipeline used when no file is given: the two .dbf
// files in the working directory, top 10, API on :8080, metrics off.
func Default() Pipeline {
	return Pipeline{
		Job: "himalaya",
		Sources: Sources{
			Peaks:       Source{Kind: "file", File: SourceFile{Path: "peaks.dbf"}},
			Expeditions: Source{Kind: "file", File: SourceFile{Path: "exped.dbf"}},
		},
		Parser:  Parser{Kind: "auto", Options: Options{}},
		TopN:    DefaultTopN,
		Server:  Server{Addr: ":8080"},
		Metrics: Metrics{Backend: "none"},
	}
}

// Load reads a pipeline file on top of Default and applies environment
// overrides.
func Load(path string) (Pipeline, error) {
	p := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read config %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &p)
	default:
		err = json.Unmarshal(data, &p)
	}
	if err != nil {
		return p, fmt.Errorf("parse config %s: %w", path, err)
	}
	ApplyEnv(&p, os.Getenv)
	return p, nil
}

// ApplyEnv overrides fields from environment variables read through getenv:
// HIMALAYA_TOP_N, HIMALAYA_ADDR, METRICS_BACKEND, PUSHGATEWAY_URL and
// DD_AGENT_ADDR. Unset or unparsable values leave the field alone.
func ApplyEnv(p *Pipeline, getenv func(string) string) {
	if s := getenv("HIMALAYA_TOP_N"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			p.TopN = n
		}
	}
	if s := getenv("HIMALAYA_ADDR"); s != "" {
		p.Server.Addr = s
	}
	if s := getenv("METRICS_BACKEND"); s != "" {
		p.Metrics.Backend = s
	}
	if s := getenv("PUSHGATEWAY_URL"); s != "" {
		p.Metrics.PushgatewayURL = s
	}
	if s := getenv("DD_AGENT_ADDR"); s != "" {
		p.Metrics.DatadogAddr = s
	}
}

// EffectiveTopN returns TopN, or DefaultTopN when TopN is zero.
func (p Pipeline) EffectiveTopN() int {
	if p.TopN == 0 {
		return DefaultTopN
	}
	return p.TopN
}

// Options is a small helper to fetch typed values from decoded maps. It
// performs minimal type coercion and returns the provided default when a key
// is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. encoding/json decodes numbers as
// float64 and yaml.v3 as int; both are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		case int64:
			return int(n)
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns the string-valued entries of an object value. Returns an
// empty map when the key is missing or not an object.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		switch m := v.(type) {
		case map[string]any:
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		case map[string]string:
			for k, s := range m {
				res[k] = s
			}
		}
	}
	return res
}

// StringSlice returns a []string for key when the value is an array of
// strings. Returns nil when the key is missing or not an array.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// Any returns the raw value for key.
func (o Options) Any(key string) any {
	if v, ok := o[key]; ok {
		return v
	}
	return nil
}

// UnmarshalJSON makes a missing or null "options" object decode to a
// non-nil, empty Options map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
