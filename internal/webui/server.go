// Package webui serves the built dataset over HTTP: a small index page plus a
// read-only JSON API that chart front ends consume.
//
// Routes:
//
//	GET  /                  → index page linking every table and view
//	GET  /api/menu          → table and view names, N and dataset version
//	GET  /api/tables/{name} → one table as {columns, rows}
//	GET  /api/views/{name}  → one aggregate view as {columns, rows}
//	GET  /api/columns       → column descriptions and the season legend
//	POST /api/reload        → rebuild from the source files
//	GET  /healthz           → liveness
//
// Data responses carry an ETag derived from the dataset version and honor
// If-None-Match.
package webui

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"himalaya/internal/himalaya"
	"himalaya/internal/metrics"
	"himalaya/internal/table"
)

// Config controls server startup.
type Config struct {
	Addr string

	// Job labels request metrics.
	Job string

	// AccessLog enables chi's request logger.
	AccessLog bool
}

// BuildFunc produces a fresh dataset. It is called by POST /api/reload.
type BuildFunc func(ctx context.Context) (*himalaya.Dataset, error)

// Server holds the current dataset and the router that serves it.
type Server struct {
	cfg    Config
	router *chi.Mux
	tmpl   *template.Template

	build    BuildFunc
	data     atomic.Pointer[himalaya.Dataset]
	reloadMu sync.Mutex
}

// NewServer constructs a Server around an already built dataset. rebuild may
// be nil, in which case reloads are refused.
func NewServer(cfg Config, d *himalaya.Dataset, rebuild BuildFunc) *Server {
	s := &Server{
		cfg:   cfg,
		build: rebuild,
		tmpl:  template.Must(template.New("index").Parse(indexHTML)),
	}
	s.data.Store(d)
	s.routes()
	return s
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Dataset returns the dataset currently being served.
func (s *Server) Dataset() *himalaya.Dataset { return s.data.Load() }

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("webui: listening on %s", s.cfg.Addr)
	return srv.ListenAndServe()
}

// Reload rebuilds the dataset and swaps it in. Readers keep the old dataset
// until the build succeeds; a failed build leaves it in place.
func (s *Server) Reload(ctx context.Context) (*himalaya.Dataset, error) {
	if s.build == nil {
		return nil, errReloadDisabled
	}
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	d, err := s.build(ctx)
	if err != nil {
		return nil, err
	}
	s.data.Store(d)
	log.Printf("webui: reloaded dataset version=%s", etag(d))
	return d, nil
}

var errReloadDisabled = errors.New("reload is not configured")

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if s.cfg.AccessLog {
		r.Use(middleware.Logger)
	}
	r.Use(s.measure)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/menu", s.handleMenu)
		r.Get("/columns", s.handleColumns)
		r.Get("/tables/{name}", s.handleTable(func(d *himalaya.Dataset, name string) (*table.Table, error) {
			return d.Table(name)
		}))
		r.Get("/views/{name}", s.handleTable(func(d *himalaya.Dataset, name string) (*table.Table, error) {
			return d.View(name)
		}))
		r.Post("/reload", s.handleReload)
	})
	s.router = r
}

// measure records one request metric per call, labelled by route pattern so
// table names do not explode the label set.
func (s *Server) measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordRequest(s.cfg.Job, route, status, time.Since(start))
	})
}

type menuResponse struct {
	Tables  []string  `json:"tables"`
	Views   []string  `json:"views"`
	N       int       `json:"n"`
	Version string    `json:"version"`
	Built   time.Time `json:"built"`
}

type tableResponse struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

type columnsResponse struct {
	Columns []himalaya.ColumnDoc `json:"columns"`
	Seasons []string             `json:"seasons"`
}

func menuOf(d *himalaya.Dataset) menuResponse {
	return menuResponse{
		Tables:  d.Tables(),
		Views:   d.Views(),
		N:       d.N,
		Version: etag(d),
		Built:   d.Built,
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	d := s.Dataset()
	if d == nil {
		writeError(w, http.StatusServiceUnavailable, errNoDataset)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, menuOf(d)); err != nil {
		log.Println("template error:", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.Dataset() == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request) {
	d, ok := s.current(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, menuOf(d))
}

func (s *Server) handleColumns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, columnsResponse{
		Columns: himalaya.ColumnDocs,
		Seasons: himalaya.Seasons,
	})
}

func (s *Server) handleTable(lookup func(*himalaya.Dataset, string) (*table.Table, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := s.current(w, r)
		if !ok {
			return
		}
		name := chi.URLParam(r, "name")
		t, err := lookup(d, name)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, himalaya.ErrUnknownName) {
				status = http.StatusNotFound
			}
			writeError(w, status, err)
			return
		}
		writeJSON(w, http.StatusOK, tableResponse{
			Name:    name,
			Columns: t.Columns,
			Rows:    t.Matrix(),
		})
	}
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	d, err := s.Reload(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errReloadDisabled) {
			status = http.StatusNotImplemented
		}
		log.Printf("webui: reload failed: %v", err)
		writeError(w, status, err)
		return
	}
	w.Header().Set("ETag", etag(d))
	writeJSON(w, http.StatusOK, menuOf(d))
}

var errNoDataset = errors.New("dataset not built yet")

// current returns the served dataset and sets its ETag. It answers the request
// itself (503 or 304) and reports false when the handler should stop.
func (s *Server) current(w http.ResponseWriter, r *http.Request) (*himalaya.Dataset, bool) {
	d := s.Dataset()
	if d == nil {
		writeError(w, http.StatusServiceUnavailable, errNoDataset)
		return nil, false
	}
	tag := etag(d)
	w.Header().Set("ETag", tag)
	if match := r.Header.Get("If-None-Match"); match != "" && (match == tag || match == "*") {
		w.WriteHeader(http.StatusNotModified)
		return nil, false
	}
	return d, true
}

func etag(d *himalaya.Dataset) string {
	return fmt.Sprintf(`"%016x"`, d.Version)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println("webui: encode response:", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// indexHTML lists the tables and views with links to their JSON.
//
//go:embed index.tmpl.html
var indexHTML string
