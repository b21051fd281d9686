package himalaya

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"himalaya/internal/config"
	"himalaya/internal/loader"
	csvparser "himalaya/internal/parser/csv"
	"himalaya/internal/parser/dbf"
	jsonparser "himalaya/internal/parser/json"
	"himalaya/internal/transformer/builtin"
)

// LoaderOptions translates the parser section of a pipeline file.
func LoaderOptions(job string, p config.Parser) (loader.Options, error) {
	enc, err := Encoding(p.Options.String("encoding", ""))
	if err != nil {
		return loader.Options{}, err
	}
	format := p.Kind
	if format == "" {
		format = loader.FormatAuto
	}
	return loader.Options{
		Format: format,
		DBF: dbf.Options{
			Encoding:       enc,
			IncludeDeleted: p.Options.Bool("include_deleted", false),
		},
		CSV: csvparser.Options{
			Comma:     p.Options.Rune("comma", ','),
			TrimSpace: p.Options.Bool("trim_space", false),
			HeaderMap: p.Options.StringMap("header_map"),
			Encoding:  enc,
		},
		JSON: jsonparser.Options{
			AllowArrays: p.Options.Bool("allow_arrays", true),
			HeaderMap:   p.Options.StringMap("header_map"),
		},
		MaxBytes: int64(p.Options.Int("max_bytes", 0)),
		Job:      job,
	}, nil
}

// Encoding resolves an encoding name. Empty means Latin-1.
func Encoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "latin1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	case "windows1252", "cp1252":
		return charmap.Windows1252, nil
	case "utf8", "utf-8":
		return unicode.UTF8, nil
	}
	return nil, fmt.Errorf("unsupported encoding %q", name)
}

// ConfigFromPipeline builds a Build config from a pipeline file, including
// the per-source preparation chains.
func ConfigFromPipeline(p config.Pipeline) (Config, error) {
	peaksPrep, err := builtin.FromConfig(p.Sources.Peaks.Transform)
	if err != nil {
		return Config{}, fmt.Errorf("sources.peaks.transform: %w", err)
	}
	expPrep, err := builtin.FromConfig(p.Sources.Expeditions.Transform)
	if err != nil {
		return Config{}, fmt.Errorf("sources.expeditions.transform: %w", err)
	}
	return Config{
		PeaksPath:       p.Sources.Peaks.File.Path,
		ExpeditionsPath: p.Sources.Expeditions.File.Path,
		TopN:            p.EffectiveTopN(),
		Job:             p.Job,
		PeaksPrep:       peaksPrep,
		ExpeditionsPrep: expPrep,
	}, nil
}
