package himalaya

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/zeebo/xxh3"

	"himalaya/internal/aggregate"
	"himalaya/internal/loader"
	"himalaya/internal/metrics"
	"himalaya/internal/table"
	"himalaya/internal/transformer"
	"himalaya/internal/transformer/builtin"
	"himalaya/pkg/records"
)

// DefaultTopN is the number of peaks kept when Config.TopN is zero.
const DefaultTopN = 10

// Table names.
const (
	TablePeaks       = "peaks"
	TableExpeditions = "expeditions"
	TableCombined    = "combined"
	TableTop         = "top"
)

// View names.
const (
	ViewPerPeak       = "expeditions-per-peak"
	ViewPerPeakSeason = "expeditions-per-peak-season"
	ViewMeanHighpoint = "mean-highpoint"
	ViewMembersDeaths = "members-deaths"
)

// ErrUnknownName is returned by Table and View for names they do not hold.
var ErrUnknownName = errors.New("unknown table or view")

// Config drives Build.
type Config struct {
	PeaksPath       string
	ExpeditionsPath string

	// TopN is how many peaks to keep; zero means DefaultTopN and a negative
	// value keeps none.
	TopN int

	// Job labels metrics.
	Job string

	// PeaksPrep and ExpeditionsPrep run on the loaded tables before the
	// fixed projection. Nil chains do nothing.
	PeaksPrep       transformer.Chain
	ExpeditionsPrep transformer.Chain
}

func (c Config) topN() int {
	if c.TopN == 0 {
		return DefaultTopN
	}
	return c.TopN
}

// Dataset is the result of one pipeline run. It is read-only.
type Dataset struct {
	// N is the top-N parameter the dataset was built with.
	N int

	// Version identifies the inputs: it changes whenever either source file's
	// bytes or N change.
	Version uint64

	Built time.Time

	tables map[string]*table.Table
	views  map[string]*table.Table
}

// Table returns a named table: peaks, expeditions, combined or top.
func (d *Dataset) Table(name string) (*table.Table, error) {
	if t, ok := d.tables[name]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("table %q: %w", name, ErrUnknownName)
}

// View returns a named aggregate view.
func (d *Dataset) View(name string) (*table.Table, error) {
	if t, ok := d.views[name]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("view %q: %w", name, ErrUnknownName)
}

// Tables lists table names in pipeline order.
func (d *Dataset) Tables() []string {
	return []string{TablePeaks, TableExpeditions, TableCombined, TableTop}
}

// Views lists view names, sorted.
func (d *Dataset) Views() []string {
	names := make([]string, 0, len(d.views))
	for n := range d.views {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type builder struct {
	ctx context.Context
	job string
}

// step runs fn as one timed, metered pipeline stage and labels its error.
func (b builder) step(name string, fn func() (*table.Table, error)) (*table.Table, error) {
	if err := b.ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	t, err := fn()
	metrics.RecordStep(b.job, name, err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

// Build runs the pipeline once: load both files through l, project, left
// join expeditions to peaks, reorder, keep the top N peaks by expedition
// count, derive the sponsor flag and compute the views.
func Build(ctx context.Context, l *loader.Loader, cfg Config) (*Dataset, error) {
	b := builder{ctx: ctx, job: cfg.Job}

	load := func(path string, prep transformer.Chain) func() (*table.Table, error) {
		return func() (*table.Table, error) {
			t, err := l.Load(ctx, path)
			if err != nil {
				return nil, err
			}
			return prep.Apply(t)
		}
	}
	peaks, err := b.step("load_peaks", load(cfg.PeaksPath, cfg.PeaksPrep))
	if err != nil {
		return nil, err
	}
	exped, err := b.step("load_expeditions", load(cfg.ExpeditionsPath, cfg.ExpeditionsPrep))
	if err != nil {
		return nil, err
	}

	peakSub, err := b.step("select_peaks", func() (*table.Table, error) {
		return transformer.Chain{
			builtin.Select{Columns: PeakColumns},
			builtin.DeDup{Keys: []string{JoinKey}, Policy: builtin.KeepFirst},
		}.Apply(peaks)
	})
	if err != nil {
		return nil, err
	}
	expSub, err := b.step("select_expeditions", func() (*table.Table, error) {
		return builtin.Select{Columns: ExpeditionColumns}.Apply(exped)
	})
	if err != nil {
		return nil, err
	}
	combined, err := b.step("join", func() (*table.Table, error) {
		return transformer.Chain{
			builtin.LeftJoin{Right: peakSub, Key: JoinKey},
			builtin.Reorder{Columns: CombinedColumns},
		}.Apply(expSub)
	})
	if err != nil {
		return nil, err
	}

	n := cfg.topN()
	top, err := b.step("topn", func() (*table.Table, error) {
		return transformer.Chain{
			builtin.TopN{Key: RankKey, N: n},
			builtin.NonEmpty{Source: SponsorColumn},
		}.Apply(combined)
	})
	if err != nil {
		return nil, err
	}

	views, err := buildViews(b, top)
	if err != nil {
		return nil, err
	}

	d := &Dataset{
		N:     n,
		Built: time.Now(),
		tables: map[string]*table.Table{
			TablePeaks:       peaks,
			TableExpeditions: exped,
			TableCombined:    combined,
			TableTop:         top,
		},
		views: views,
	}
	d.Version = version(peaks.Source.Checksum, exped.Source.Checksum, n)

	for name, t := range d.tables {
		metrics.RecordRow(cfg.Job, name, int64(t.Len()))
	}
	for name, t := range d.views {
		metrics.RecordRow(cfg.Job, name, int64(t.Len()))
	}
	return d, nil
}

func buildViews(b builder, top *table.Table) (map[string]*table.Table, error) {
	specs := []struct {
		name string
		fn   func() (*table.Table, error)
	}{
		{ViewPerPeak, func() (*table.Table, error) {
			t, err := aggregate.CountBy(top, "PKNAME")
			if err != nil {
				return nil, err
			}
			return transformer.Chain{
				builtin.Rename{Names: map[string]string{"PKNAME": "PeakName", aggregate.CountColumn: "ExpeditionCount"}},
				builtin.SortBy{Column: "ExpeditionCount", Desc: true},
			}.Apply(t)
		}},
		{ViewPerPeakSeason, func() (*table.Table, error) {
			t, err := aggregate.CountByPair(top, "PKNAME", "SEASON")
			if err != nil {
				return nil, err
			}
			t, err = builtin.Rename{Names: map[string]string{aggregate.CountColumn: "ExpeditionCount"}}.Apply(t)
			if err != nil {
				return nil, err
			}
			return withSeasonNames(t), nil
		}},
		{ViewMeanHighpoint, func() (*table.Table, error) {
			t, err := aggregate.MeanBy(top, []string{"PKNAME", "HEIGHTM"}, "HIGHPOINT")
			if err != nil {
				return nil, err
			}
			return builtin.Rename{Names: map[string]string{
				"PKNAME":    "PeakName",
				"HEIGHTM":   "Height_m",
				"HIGHPOINT": "Avg_Highpoint_m",
			}}.Apply(t)
		}},
		{ViewMembersDeaths, func() (*table.Table, error) {
			values := []string{"TOTMEMBERS", "MDEATHS"}
			t, err := aggregate.SumBy(top, []string{"PKNAME"}, values...)
			if err != nil {
				return nil, err
			}
			return aggregate.Melt(t, []string{"PKNAME"}, values, "Type", "Value")
		}},
	}

	views := make(map[string]*table.Table, len(specs))
	for _, s := range specs {
		t, err := b.step("view_"+s.name, s.fn)
		if err != nil {
			return nil, err
		}
		views[s.name] = t
	}
	return views, nil
}

// withSeasonNames appends SeasonNameColumn, decoded from SEASON.
func withSeasonNames(t *table.Table) *table.Table {
	out := t.Derive(append(append([]string{}, t.Columns...), SeasonNameColumn)...)
	out.Rows = make([]records.Record, len(t.Rows))
	for i, r := range t.Rows {
		rec := r.Clone()
		rec[SeasonNameColumn] = SeasonName(r["SEASON"])
		out.Rows[i] = rec
	}
	return out
}

func version(peaks, exped uint64, n int) uint64 {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:], peaks)
	binary.LittleEndian.PutUint64(buf[8:], exped)
	binary.LittleEndian.PutUint64(buf[16:], uint64(int64(n)))
	return xxh3.Hash(buf[:])
}
