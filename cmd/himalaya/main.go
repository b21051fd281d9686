// Command himalaya builds the Himalayan peaks/expeditions dataset from the two
// record files and serves it as a JSON API.
//
// Usage:
//
//	himalaya -config configs/himalaya.yaml
//	himalaya -validate -config configs/himalaya.json
//	himalaya -dump expeditions-per-peak
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"himalaya/internal/config"
	"himalaya/internal/himalaya"
	"himalaya/internal/loader"
	"himalaya/internal/metrics"
	"himalaya/internal/metrics/datadog"
	"himalaya/internal/metrics/prompush"
	"himalaya/internal/webui"
)

type flags struct {
	cfgPath        string
	validate       bool
	addr           string
	topN           int
	metricsBackend string
	pushgatewayURL string
	datadogAddr    string
	verbose        bool
	dump           string
}

func main() {
	var f flags
	flag.StringVar(&f.cfgPath, "config", "", "pipeline config path (.json, .yaml); empty uses built-in defaults")
	flag.BoolVar(&f.validate, "validate", false, "validate the configuration and exit")
	flag.StringVar(&f.addr, "addr", "", "listen address (overrides config server.addr)")
	flag.IntVar(&f.topN, "top-n", 0, "number of most climbed peaks to keep (overrides config top_n)")
	flag.StringVar(&f.metricsBackend, "metrics-backend", "", "metrics backend: pushgateway, datadog or none")
	flag.StringVar(&f.pushgatewayURL, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&f.datadogAddr, "datadog-addr", "", "DogStatsD address (overrides env DD_AGENT_ADDR)")
	flag.BoolVar(&f.verbose, "v", false, "enable verbose logs")
	flag.StringVar(&f.dump, "dump", "", "print one table or view as JSON and exit")
	flag.Parse()

	p, err := loadPipeline(f)
	if err != nil {
		fatalf("%v", err)
	}

	issues := config.ValidatePipeline(p)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		log.Printf("Configuration is invalid: %v", describe(f.cfgPath))
		os.Exit(1)
	}
	if f.validate {
		log.Printf("Configuration is valid: %v", describe(f.cfgPath))
		os.Exit(0)
	}

	closeMetrics := setupMetrics(p, f.verbose)
	defer closeMetrics()

	lopt, err := himalaya.LoaderOptions(p.Job, p.Parser)
	if err != nil {
		fatalf("parser options: %v", err)
	}
	bcfg, err := himalaya.ConfigFromPipeline(p)
	if err != nil {
		fatalf("%v", err)
	}
	l := loader.New(lopt)

	if f.verbose {
		log.Printf("pipeline: peaks=%s expeditions=%s parser=%s top_n=%d",
			bcfg.PeaksPath, bcfg.ExpeditionsPath, lopt.Format, p.EffectiveTopN())
	}

	build := func(ctx context.Context) (*himalaya.Dataset, error) {
		start := time.Now()
		d, err := himalaya.Build(ctx, l, bcfg)
		if ferr := metrics.Flush(); ferr != nil {
			log.Printf("metrics: flush error: %v", ferr)
		}
		if err != nil {
			return nil, err
		}
		if f.verbose {
			log.Printf("built dataset n=%d version=%016x in %s", d.N, d.Version, time.Since(start).Truncate(time.Millisecond))
		}
		return d, nil
	}

	ctx := context.Background()
	d, err := build(ctx)
	if err != nil {
		closeMetrics()
		fatalf("build: %v", err)
	}

	if f.dump != "" {
		if err := dump(os.Stdout, d, f.dump); err != nil {
			closeMetrics()
			fatalf("dump: %v", err)
		}
		return
	}

	srv := webui.NewServer(webui.Config{
		Addr:      p.Server.Addr,
		Job:       p.Job,
		AccessLog: f.verbose,
	}, d, func(ctx context.Context) (*himalaya.Dataset, error) {
		l.Clear()
		return build(ctx)
	})
	if err := srv.ListenAndServe(); err != nil {
		closeMetrics()
		log.Fatal(err)
	}
}

// loadPipeline reads the config file (or the defaults) and layers flags on
// top: flag → env → file → default.
func loadPipeline(f flags) (config.Pipeline, error) {
	var p config.Pipeline
	if f.cfgPath == "" {
		p = config.Default()
		config.ApplyEnv(&p, os.Getenv)
	} else {
		var err error
		if p, err = config.Load(f.cfgPath); err != nil {
			return p, err
		}
	}
	if f.addr != "" {
		p.Server.Addr = f.addr
	}
	if f.topN != 0 {
		p.TopN = f.topN
	}
	if f.metricsBackend != "" {
		p.Metrics.Backend = f.metricsBackend
	}
	if f.pushgatewayURL != "" {
		p.Metrics.PushgatewayURL = f.pushgatewayURL
	}
	if f.datadogAddr != "" {
		p.Metrics.DatadogAddr = f.datadogAddr
	}
	if p.Job == "" {
		p.Job = "himalaya"
	}
	return p, nil
}

// setupMetrics installs the configured backend and returns its shutdown hook.
// Backend failures are logged and leave metrics disabled.
func setupMetrics(p config.Pipeline, verbose bool) func() {
	nop := func() {}
	switch p.Metrics.Backend {
	case "pushgateway":
		gwURL := p.Metrics.PushgatewayURL
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend(p.Job, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return nop
		}
		log.Printf("metrics: url=%v, backend=%v, job_name=%v", gwURL, p.Metrics.Backend, p.Job)
		metrics.SetBackend(b)
		return func() {
			if err := metrics.Flush(); err != nil {
				log.Printf("metrics: flush error: %v", err)
			}
		}

	case "datadog":
		addr := p.Metrics.DatadogAddr
		if addr == "" {
			addr = datadog.DefaultAddr
		}
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       addr,
			GlobalTags: []string{"job:" + p.Job},
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return nop
		}
		log.Printf("metrics: addr=%v, backend=%v, job_name=%v", addr, p.Metrics.Backend, p.Job)
		metrics.SetBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				log.Printf("metrics: close error: %v", err)
			}
		}

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", p.Metrics.Backend)
		}
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", p.Metrics.Backend)
	}
	return nop
}

// dump writes a table or view, looked up in that order, as indented JSON.
func dump(w io.Writer, d *himalaya.Dataset, name string) error {
	t, err := d.Table(name)
	if errors.Is(err, himalaya.ErrUnknownName) {
		t, err = d.View(name)
	}
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Name    string   `json:"name"`
		Columns []string `json:"columns"`
		Rows    [][]any  `json:"rows"`
	}{name, t.Columns, t.Matrix()})
}

func describe(cfgPath string) string {
	if cfgPath == "" {
		return "(defaults)"
	}
	return cfgPath
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
