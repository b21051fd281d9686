package webui

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"himalaya/internal/himalaya"
	"himalaya/internal/loader"
)

const peaksCSV = `PEAKID,PKNAME,HEIGHTM
EVER,Everest,8849
LHOT,Lhotse,8516
AMAD,Ama Dablam,6814
`

func expeditionsCSV(rows ...string) string {
	header := strings.Join(himalaya.ExpeditionColumns, ",")
	return header + "\n" + strings.Join(rows, "\n") + "\n"
}

// expRow renders one expedition line; unspecified columns are left empty.
func expRow(id, peak, season, sponsor, highpoint, members, deaths string) string {
	vals := map[string]string{
		"EXPID": id, "PEAKID": peak, "SEASON": season, "SPONSOR": sponsor,
		"HIGHPOINT": highpoint, "TOTMEMBERS": members, "MDEATHS": deaths,
	}
	out := make([]string, len(himalaya.ExpeditionColumns))
	for i, c := range himalaya.ExpeditionColumns {
		out[i] = vals[c]
	}
	return strings.Join(out, ",")
}

type fixture struct {
	srv    *Server
	l      *loader.Loader
	cfg    himalaya.Config
	expDir string
}

func newFixture(t *testing.T, n int) *fixture {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "peaks.csv"), peaksCSV)
	writeFile(t, filepath.Join(dir, "exped.csv"), expeditionsCSV(
		expRow("EVER1", "EVER", "1", "Acme", "8849", "5", "0"),
		expRow("EVER2", "EVER", "3", "", "8500", "7", "1"),
		expRow("LHOT1", "LHOT", "3", "", "8516", "4", "0"),
	))

	f := &fixture{
		l: loader.New(loader.Options{}),
		cfg: himalaya.Config{
			PeaksPath:       filepath.Join(dir, "peaks.csv"),
			ExpeditionsPath: filepath.Join(dir, "exped.csv"),
			TopN:            n,
			Job:             "test",
		},
		expDir: dir,
	}
	d, err := himalaya.Build(context.Background(), f.l, f.cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	f.srv = NewServer(Config{Job: "test"}, d, func(ctx context.Context) (*himalaya.Dataset, error) {
		f.l.Clear()
		return himalaya.Build(ctx, f.l, f.cfg)
	})
	return f
}

func do(t *testing.T, h http.Handler, method, path string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestMenu(t *testing.T) {
	f := newFixture(t, 10)
	rec := do(t, f.srv.Handler(), http.MethodGet, "/api/menu", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type=%q", ct)
	}
	var got menuResponse
	decode(t, rec, &got)
	if !reflect.DeepEqual(got.Tables, []string{"peaks", "expeditions", "combined", "top"}) {
		t.Errorf("tables=%v", got.Tables)
	}
	if len(got.Views) != 4 {
		t.Errorf("views=%v", got.Views)
	}
	if got.N != 10 {
		t.Errorf("n=%d", got.N)
	}
	if rec.Header().Get("ETag") == "" || rec.Header().Get("ETag") != got.Version {
		t.Errorf("ETag=%q version=%q", rec.Header().Get("ETag"), got.Version)
	}
}

func TestTableAndView(t *testing.T) {
	f := newFixture(t, 10)
	h := f.srv.Handler()

	rec := do(t, h, http.MethodGet, "/api/tables/top", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var top tableResponse
	decode(t, rec, &top)
	if !reflect.DeepEqual(top.Columns, himalaya.CombinedColumns) {
		t.Errorf("columns=%v", top.Columns)
	}
	if len(top.Rows) != 3 {
		t.Fatalf("rows=%d, want 3", len(top.Rows))
	}
	sponsor := indexOf(top.Columns, "SPONSOR")
	var flags []any
	for _, r := range top.Rows {
		flags = append(flags, r[sponsor])
	}
	if !reflect.DeepEqual(flags, []any{true, false, false}) {
		t.Errorf("SPONSOR=%v", flags)
	}

	rec = do(t, h, http.MethodGet, "/api/views/expeditions-per-peak", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var view tableResponse
	decode(t, rec, &view)
	want := [][]any{{"Everest", float64(2)}, {"Lhotse", float64(1)}}
	if !reflect.DeepEqual(view.Columns, []string{"PeakName", "ExpeditionCount"}) || !reflect.DeepEqual(view.Rows, want) {
		t.Errorf("view=%+v", view)
	}
}

func TestUnknownNames(t *testing.T) {
	f := newFixture(t, 10)
	for _, path := range []string{"/api/tables/nope", "/api/views/top"} {
		rec := do(t, f.srv.Handler(), http.MethodGet, path, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: status=%d", path, rec.Code)
			continue
		}
		var body map[string]string
		decode(t, rec, &body)
		if !strings.Contains(body["error"], "unknown") {
			t.Errorf("%s: error=%q", path, body["error"])
		}
	}
}

func TestIfNoneMatch(t *testing.T) {
	f := newFixture(t, 10)
	h := f.srv.Handler()
	first := do(t, h, http.MethodGet, "/api/views/mean-highpoint", nil)
	tag := first.Header().Get("ETag")
	if tag == "" {
		t.Fatal("missing ETag")
	}

	rec := do(t, h, http.MethodGet, "/api/views/mean-highpoint", map[string]string{"If-None-Match": tag})
	if rec.Code != http.StatusNotModified {
		t.Errorf("status=%d, want 304", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("304 body=%q", rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/api/views/mean-highpoint", map[string]string{"If-None-Match": `"stale"`})
	if rec.Code != http.StatusOK {
		t.Errorf("stale tag: status=%d", rec.Code)
	}
}

func TestColumns(t *testing.T) {
	f := newFixture(t, 10)
	rec := do(t, f.srv.Handler(), http.MethodGet, "/api/columns", nil)
	var got columnsResponse
	decode(t, rec, &got)
	if len(got.Columns) != len(himalaya.CombinedColumns) {
		t.Errorf("columns=%d", len(got.Columns))
	}
	if !reflect.DeepEqual(got.Seasons, himalaya.Seasons) {
		t.Errorf("seasons=%v", got.Seasons)
	}
}

func TestIndexAndHealth(t *testing.T) {
	f := newFixture(t, 10)
	h := f.srv.Handler()

	rec := do(t, h, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `/api/views/members-deaths`) {
		t.Errorf("index status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status=%d", rec.Code)
	}

	empty := NewServer(Config{}, nil, nil)
	for _, path := range []string{"/healthz", "/api/menu", "/api/tables/top"} {
		if rec := do(t, empty.Handler(), http.MethodGet, path, nil); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s without dataset: status=%d", path, rec.Code)
		}
	}
}

func TestReload(t *testing.T) {
	f := newFixture(t, 10)
	h := f.srv.Handler()
	before := f.srv.Dataset()

	writeFile(t, filepath.Join(f.expDir, "exped.csv"), expeditionsCSV(
		expRow("AMAD1", "AMAD", "4", "Club", "6814", "3", "0"),
	))

	// Cached sources hide the change until a reload.
	rec := do(t, h, http.MethodGet, "/api/tables/top", nil)
	var top tableResponse
	decode(t, rec, &top)
	if len(top.Rows) != 3 {
		t.Fatalf("rows before reload=%d", len(top.Rows))
	}

	rec = do(t, h, http.MethodPost, "/api/reload", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reload status=%d body=%s", rec.Code, rec.Body.String())
	}
	after := f.srv.Dataset()
	if after == before || after.Version == before.Version {
		t.Fatal("dataset not swapped")
	}
	if rec.Header().Get("ETag") != etag(after) {
		t.Errorf("ETag=%q", rec.Header().Get("ETag"))
	}

	rec = do(t, h, http.MethodGet, "/api/tables/top", nil)
	top = tableResponse{}
	decode(t, rec, &top)
	if len(top.Rows) != 1 || top.Rows[0][0] != "AMAD1" {
		t.Errorf("rows after reload=%v", top.Rows)
	}
}

func TestReloadFailureKeepsDataset(t *testing.T) {
	f := newFixture(t, 10)
	before := f.srv.Dataset()
	if err := os.Remove(f.cfg.ExpeditionsPath); err != nil {
		t.Fatal(err)
	}

	rec := do(t, f.srv.Handler(), http.MethodPost, "/api/reload", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rec.Code)
	}
	if f.srv.Dataset() != before {
		t.Error("failed reload replaced the dataset")
	}
	rec = do(t, f.srv.Handler(), http.MethodGet, "/api/tables/top", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("after failed reload: status=%d", rec.Code)
	}
}

func TestReloadDisabled(t *testing.T) {
	f := newFixture(t, 10)
	srv := NewServer(Config{}, f.srv.Dataset(), nil)
	rec := do(t, srv.Handler(), http.MethodPost, "/api/reload", nil)
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status=%d", rec.Code)
	}
	if _, err := srv.Reload(context.Background()); !errors.Is(err, errReloadDisabled) {
		t.Errorf("Reload err=%v", err)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, 10)
	rec := do(t, f.srv.Handler(), http.MethodGet, "/api/reload", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status=%d", rec.Code)
	}
}

func indexOf(cols []string, name string) int {
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	return -1
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}
