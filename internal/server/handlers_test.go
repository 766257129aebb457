package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/hive/internal/config"
	"github.com/hyperjump/hive/internal/keyword"
	"github.com/hyperjump/hive/internal/models"
	"github.com/hyperjump/hive/internal/registry"
	"github.com/hyperjump/hive/internal/storage"
)

type mockWatchService struct {
	dirs []string
}

func (m *mockWatchService) Directories() []string {
	return append([]string(nil), m.dirs...)
}

// writeScheme creates a loadable scheme named name under dir.
func writeScheme(t *testing.T, dir, name string, entries []models.TermEntry, top []models.TermEntry) {
	t.Helper()
	base := filepath.Join(dir, name)
	indexDir := filepath.Join(base, "index")
	alpha := filepath.Join(base, "alphaIndex")
	topPath := filepath.Join(base, "topConceptIndex")
	stats := storage.NewSQLiteStats(config.DefaultDatabaseName)
	st := models.Statistics{LastDate: "2011-02-03", Concepts: len(entries), Relations: 5}
	if err := stats.PutStatistics(context.Background(), indexDir, st); err != nil {
		t.Fatal(err)
	}
	if err := storage.WriteTermFile(alpha, entries); err != nil {
		t.Fatal(err)
	}
	if err := storage.WriteTermFile(topPath, top); err != nil {
		t.Fatal(err)
	}
	props := fmt.Sprintf("name=%s\nlongName=Test %s\nuri=http://example.org/%s#\nindex=%s\nalpha_file=%s\ntop_concept_file=%s\n",
		name, name, name, indexDir, alpha, topPath)
	if err := os.WriteFile(filepath.Join(dir, name+".properties"), []byte(props), 0600); err != nil {
		t.Fatal(err)
	}
}

func concept(name, local string) models.ConceptID {
	return models.NewConceptID("http://example.org/"+name+"#", local)
}

func newTestServer(t *testing.T, withSearch bool) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	entries := []models.TermEntry{
		{Term: "aardvark", Concept: concept("lcsh", "1")},
		{Term: "apple", Concept: concept("lcsh", "2")},
		{Term: "banana", Concept: concept("lcsh", "3")},
		{Term: "Bird watching", Concept: concept("lcsh", "4")},
	}
	writeScheme(t, dir, "lcsh", entries, entries[2:3])

	var opts []registry.Option
	if withSearch {
		idx, err := keyword.NewBleveIndex("")
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = idx.Close() })
		opts = append(opts, registry.WithTermIndex(idx))
	}
	reader := storage.NewIndexStore(storage.NewSQLiteStats(config.DefaultDatabaseName), nil)
	reg := registry.New(config.SchemesConfig{ConfigDir: dir}, reader, opts...)
	if err := reg.LoadAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{Schemes: config.SchemesConfig{ConfigDir: dir}}
	return NewServer(reg, cfg, zap.NewNop(), nil), dir
}

func do(t *testing.T, srv *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t, false)
	w := do(t, srv, http.MethodGet, "/health")
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleListSchemes(t *testing.T) {
	srv, _ := newTestServer(t, false)
	w := do(t, srv, http.MethodGet, "/api/v1/schemes")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Schemes []schemeSummary `json:"schemes"`
	}
	decode(t, w, &out)
	if len(out.Schemes) != 1 || out.Schemes[0].Name != "lcsh" || out.Schemes[0].URI != "http://example.org/lcsh#" {
		t.Errorf("schemes: got %+v", out.Schemes)
	}
}

func TestHandleGetScheme(t *testing.T) {
	srv, _ := newTestServer(t, false)
	w := do(t, srv, http.MethodGet, "/api/v1/schemes/lcsh")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Name       string            `json:"name"`
		ID         string            `json:"id"`
		Statistics models.Statistics `json:"statistics"`
		AlphaTerms int               `json:"alpha_terms"`
	}
	decode(t, w, &out)
	if out.Name != "lcsh" || out.ID == "" || out.Statistics.Concepts != 4 || out.AlphaTerms != 4 {
		t.Errorf("scheme: got %+v", out)
	}
}

func TestHandleUnknownScheme(t *testing.T) {
	srv, _ := newTestServer(t, false)
	for _, target := range []string{
		"/api/v1/schemes/mesh",
		"/api/v1/schemes/mesh/alpha",
		"/api/v1/schemes/mesh/top",
		"/api/v1/schemes/mesh/terms/apple",
		"/api/v1/schemes/mesh/search?q=apple",
	} {
		if w := do(t, srv, http.MethodGet, target); w.Code != http.StatusNotFound {
			t.Errorf("%s: status %d, want 404", target, w.Code)
		}
	}
}

func TestHandleAlpha(t *testing.T) {
	srv, _ := newTestServer(t, false)
	tests := []struct {
		prefix string
		want   []string
	}{
		{"", []string{"Bird watching", "aardvark", "apple", "banana"}},
		{"a", []string{"aardvark", "apple"}},
		{"b", []string{"banana"}},
		{"B", []string{"Bird watching"}},
		{"z", nil},
	}
	for _, tt := range tests {
		w := do(t, srv, http.MethodGet, "/api/v1/schemes/lcsh/alpha?prefix="+tt.prefix)
		if w.Code != http.StatusOK {
			t.Fatalf("prefix %q: status %d", tt.prefix, w.Code)
		}
		var out entriesResponse
		decode(t, w, &out)
		if out.Count != len(tt.want) || len(out.Entries) != len(tt.want) {
			t.Errorf("prefix %q: got %+v", tt.prefix, out.Entries)
			continue
		}
		for i, term := range tt.want {
			if out.Entries[i].Term != term {
				t.Errorf("prefix %q: entry %d = %q, want %q", tt.prefix, i, out.Entries[i].Term, term)
			}
		}
	}
}

func TestHandleTopConcepts(t *testing.T) {
	srv, _ := newTestServer(t, false)
	w := do(t, srv, http.MethodGet, "/api/v1/schemes/lcsh/top?prefix=ban")
	var out entriesResponse
	decode(t, w, &out)
	if out.Count != 1 || out.Entries[0].Concept != concept("lcsh", "3") {
		t.Errorf("top: got %+v", out)
	}
}

func TestHandleLookup(t *testing.T) {
	srv, _ := newTestServer(t, false)
	w := do(t, srv, http.MethodGet, "/api/v1/schemes/lcsh/terms/apple")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var entry models.TermEntry
	decode(t, w, &entry)
	if entry.Concept != concept("lcsh", "2") {
		t.Errorf("concept: got %+v", entry.Concept)
	}

	w = do(t, srv, http.MethodGet, "/api/v1/schemes/lcsh/terms/Bird%20watching")
	if w.Code != http.StatusOK {
		t.Errorf("escaped term: status %d", w.Code)
	}

	w = do(t, srv, http.MethodGet, "/api/v1/schemes/lcsh/terms/Apple")
	if w.Code != http.StatusNotFound {
		t.Errorf("lookup is case-sensitive: status %d, want 404", w.Code)
	}
}

func TestHandleSearch_Disabled(t *testing.T) {
	srv, _ := newTestServer(t, false)
	w := do(t, srv, http.MethodGet, "/api/v1/schemes/lcsh/search?q=apple")
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status: got %d, want 501", w.Code)
	}
}

func TestHandleSearch(t *testing.T) {
	srv, _ := newTestServer(t, true)

	w := do(t, srv, http.MethodGet, "/api/v1/schemes/lcsh/search?q=bird&limit=5")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out searchResponse
	decode(t, w, &out)
	if len(out.Hits) != 1 || out.Hits[0].Term != "Bird watching" {
		t.Errorf("hits: got %+v", out.Hits)
	}

	w = do(t, srv, http.MethodGet, "/api/v1/schemes/lcsh/search?q=banan&fuzzy=true")
	decode(t, w, &out)
	if len(out.Hits) == 0 || out.Hits[0].Term != "banana" {
		t.Errorf("fuzzy hits: got %+v", out.Hits)
	}

	for _, target := range []string{
		"/api/v1/schemes/lcsh/search",
		"/api/v1/schemes/lcsh/search?q=x&limit=abc",
		"/api/v1/schemes/lcsh/search?q=x&limit=0",
		"/api/v1/schemes/lcsh/search?q=x&fuzzy=maybe",
	} {
		if w := do(t, srv, http.MethodGet, target); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", target, w.Code)
		}
	}
}

func TestHandleReload(t *testing.T) {
	srv, dir := newTestServer(t, false)
	before, _ := srv.registry.Get("lcsh")

	writeScheme(t, dir, "lcsh", []models.TermEntry{{Term: "cherry", Concept: concept("lcsh", "9")}}, nil)
	w := do(t, srv, http.MethodPost, "/api/v1/schemes/lcsh/reload")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out map[string]string
	decode(t, w, &out)
	if out["id"] == "" || out["id"] == before.ID() {
		t.Errorf("reload id: got %q, previous %q", out["id"], before.ID())
	}
	after, _ := srv.registry.Get("lcsh")
	if _, ok := after.AlphaIndex().Get("cherry"); !ok {
		t.Error("reloaded index missing cherry")
	}

	w = do(t, srv, http.MethodPost, "/api/v1/schemes/mesh/reload")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown reload: status %d, want 404", w.Code)
	}
}

func TestHandleReload_OutsideSelection(t *testing.T) {
	dir := t.TempDir()
	entries := []models.TermEntry{{Term: "apple", Concept: concept("lcsh", "1")}}
	writeScheme(t, dir, "lcsh", entries, nil)
	writeScheme(t, dir, "secret", []models.TermEntry{{Term: "hidden", Concept: concept("secret", "1")}}, nil)

	reader := storage.NewIndexStore(storage.NewSQLiteStats(config.DefaultDatabaseName), nil)
	schemes := config.SchemesConfig{ConfigDir: dir, Names: []string{"lcsh"}}
	reg := registry.New(schemes, reader)
	if err := reg.LoadAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	srv := NewServer(reg, &config.Config{Schemes: schemes}, zap.NewNop(), nil)

	if w := do(t, srv, http.MethodPost, "/api/v1/schemes/secret/reload"); w.Code != http.StatusNotFound {
		t.Errorf("unselected reload: status %d, want 404", w.Code)
	}
	if names := reg.Names(); len(names) != 1 || names[0] != "lcsh" {
		t.Errorf("names after reload: %v", names)
	}
	if w := do(t, srv, http.MethodGet, "/api/v1/schemes/secret"); w.Code != http.StatusNotFound {
		t.Errorf("unselected get: status %d, want 404", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	srv, dir := newTestServer(t, false)
	w := do(t, srv, http.MethodGet, "/api/v1/status")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		SchemeCount    int                     `json:"scheme_count"`
		Schemes        map[string]schemeStatus `json:"schemes"`
		DiskUsageBytes int64                   `json:"disk_usage_bytes"`
		ConfigDir      string                  `json:"config_dir"`
	}
	decode(t, w, &out)
	if out.SchemeCount != 1 || out.Schemes["lcsh"].Statistics.Relations != 5 {
		t.Errorf("status: got %+v", out)
	}
	if out.DiskUsageBytes <= 0 {
		t.Errorf("disk usage: got %d", out.DiskUsageBytes)
	}
	if out.ConfigDir != dir {
		t.Errorf("config_dir: got %q, want %q", out.ConfigDir, dir)
	}
}

func TestHandleWatchDirectories(t *testing.T) {
	srv, _ := newTestServer(t, false)
	if w := do(t, srv, http.MethodGet, "/api/v1/watch/directories"); w.Code != http.StatusNotImplemented {
		t.Errorf("not enabled: status %d", w.Code)
	}

	srv.watch = &mockWatchService{dirs: []string{"/etc/hive/schemes"}}
	w := do(t, srv, http.MethodGet, "/api/v1/watch/directories")
	var out struct {
		Directories []string `json:"directories"`
	}
	decode(t, w, &out)
	if len(out.Directories) != 1 || out.Directories[0] != "/etc/hive/schemes" {
		t.Errorf("directories: got %v", out.Directories)
	}
}
