package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/dsrank/internal/config"
	"github.com/kailas-cloud/dsrank/internal/db/memory"
	"github.com/kailas-cloud/dsrank/internal/domain"
	"github.com/kailas-cloud/dsrank/internal/repository/records"
)

// --- Fakes ---

// vocabEmbedder is a bag of words over testVocab: one dimension per known word,
// unknown words are ignored. Dot products count shared words exactly.
type vocabEmbedder struct {
	calls *atomic.Int64
}

var testVocab = []string{
	"iris", "flowers", "flower", "petals", "petal", "length",
	"credit", "risk", "german", "wine", "quality", "red", "acidity", "alcohol",
}

func (e *vocabEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	e.calls.Add(1)
	vec := make([]float32, len(testVocab))
	for _, w := range strings.Fields(strings.ToLower(text)) {
		for i, v := range testVocab {
			if w == v {
				vec[i]++
			}
		}
	}
	return domain.EmbeddingResult{Embedding: vec, PromptTokens: 1, TotalTokens: 1}, nil
}

func fakeBase(calls *atomic.Int64) newEmbedderFunc {
	return func(config.EmbeddingConfig, string, *zap.Logger) domain.Embedder {
		return &vocabEmbedder{calls: calls}
	}
}

func sha256Hex(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

const testRecords = `[
  {"id": "1", "query": "iris flowers", "title": "iris", "details": "iris flower petals", "feature_summary": "petal length"},
  {"id": "2", "query": "credit risk", "title": "credit", "details": "german credit risk", "feature_summary": "[UNAVAILABLE]"},
  {"id": "3", "query": "wine quality", "title": "wine", "details": "red wine quality", "feature_summary": "acidity alcohol"}
]`

func testApp(t *testing.T, extraYAML string) *app {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "records.json")
	if err := os.WriteFile(input, []byte(testRecords), 0o600); err != nil {
		t.Fatal(err)
	}
	yaml := fmt.Sprintf("ranking:\n  input: %s\n  output: %s\ntuning:\n  max_iters: 3\n  top_k: 1\n%s",
		input, filepath.Join(dir, "out", "rankings.json"), extraYAML)
	cfg, err := config.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return &app{cfg: cfg, logger: zap.NewNop()}
}

// --- Tests ---

func TestRunRank_WritesRankingAndTunes(t *testing.T) {
	a := testApp(t, "")
	var calls atomic.Int64
	var out bytes.Buffer

	if err := a.runRank(context.Background(), nil, fakeBase(&calls), false, &out); err != nil {
		t.Fatalf("runRank: %v", err)
	}

	data, err := os.ReadFile(a.cfg.Ranking.Output)
	if err != nil {
		t.Fatalf("read ranking: %v", err)
	}
	var got domain.Ranking
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode ranking: %v", err)
	}
	if q := got.Queries(); len(q) != 3 || q[0] != "1" || q[2] != "3" {
		t.Fatalf("unexpected queries %v", q)
	}
	// every query shares words only with its own record; the rest tie at 0 in input order
	want := map[string][]string{
		"1": {"1", "2", "3"},
		"2": {"2", "1", "3"},
		"3": {"3", "1", "2"},
	}
	for _, q := range got.Queries() {
		docs, _ := got.Get(q)
		if strings.Join(docs, ",") != strings.Join(want[q], ",") {
			t.Errorf("query %s: expected %v, got %v", q, want[q], docs)
		}
	}
	if !bytes.Contains(data, []byte("\n    \"1\"")) {
		t.Errorf("expected 4-space indent, got %s", data)
	}

	s := out.String()
	if !strings.Contains(s, "Rankings have been saved") {
		t.Errorf("missing ranking line in %q", s)
	}
	if !strings.Contains(s, "Initial weights: [0.1, 0.6, 0.3] Metric: 1\n") {
		t.Errorf("missing initial weights line in %q", s)
	}
	if !strings.Contains(s, "No improvement in iteration 1; terminating hill climbing.") {
		t.Errorf("missing convergence line in %q", s)
	}
	if !strings.Contains(s, "Best weights found: [0.1, 0.6, 0.3]") {
		t.Errorf("missing tuning result in %q", s)
	}
	if calls.Load() == 0 {
		t.Error("expected provider calls")
	}
}

func TestRunRank_PrintsImprovements(t *testing.T) {
	// zero weights tie every document, so only query 1 finds itself first
	a := testApp(t, "")
	a.cfg.Tuning.Initial = &domain.Weights{}
	var calls atomic.Int64
	var out bytes.Buffer

	if err := a.runRank(context.Background(), nil, fakeBase(&calls), false, &out); err != nil {
		t.Fatalf("runRank: %v", err)
	}

	s := out.String()
	for _, line := range []string{
		"Initial weights: [0, 0, 0] Metric: 0.3333333333333333\n",
		"Iteration 1: Improved weights to [0.05, 0, 0] with metric 1.0000\n",
		"No improvement in iteration 2; terminating hill climbing.\n",
		"Best weights found: [0.05, 0, 0]\n",
		"Top-1 accuracy (proportion of queries with relevant doc in top 1): 1\n",
	} {
		if !strings.Contains(s, line) {
			t.Errorf("missing %q in output:\n%s", line, s)
		}
	}
}

func TestRunRank_SkipTune(t *testing.T) {
	a := testApp(t, "")
	var calls atomic.Int64
	var out bytes.Buffer

	if err := a.runRank(context.Background(), nil, fakeBase(&calls), true, &out); err != nil {
		t.Fatalf("runRank: %v", err)
	}
	if strings.Contains(out.String(), "Best weights") {
		t.Errorf("tuning must be skipped, got %q", out.String())
	}
}

func TestRunRank_CacheReusedAcrossRuns(t *testing.T) {
	a := testApp(t, "")
	core, logs := observer.New(zap.InfoLevel)
	a.logger = zap.New(core)
	store := memory.NewStore()
	var first, second atomic.Int64

	if err := a.runRank(context.Background(), store, fakeBase(&first), true, &bytes.Buffer{}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := a.runRank(context.Background(), store, fakeBase(&second), true, &bytes.Buffer{}); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.Load() == 0 {
		t.Fatal("first run must call the provider")
	}
	if second.Load() != 0 {
		t.Errorf("second run must be served from cache, got %d provider calls", second.Load())
	}

	usage := logs.FilterMessage("Embedding usage").All()
	if len(usage) != 2 {
		t.Fatalf("expected 2 usage lines, got %d", len(usage))
	}
	if c := usage[0].ContextMap()["provider_calls"]; c == int64(0) {
		t.Error("first run must report provider calls")
	}
	if c, tok := usage[1].ContextMap()["provider_calls"], usage[1].ContextMap()["total_tokens"]; c != int64(0) || tok != int64(0) {
		t.Errorf("warm run must report no provider usage, got calls=%v tokens=%v", c, tok)
	}

	// keys are namespaced per adapter model
	if _, err := store.Get(context.Background(),
		"dsrank:emb:specter2-title:"+sha256Hex("iris")); err != nil {
		t.Errorf("expected title cache entry: %v", err)
	}
}

func TestRunRank_MissingInput(t *testing.T) {
	a := testApp(t, "")
	a.cfg.Ranking.Input = filepath.Join(t.TempDir(), "absent.json")
	var calls atomic.Int64

	if err := a.runRank(context.Background(), nil, fakeBase(&calls), true, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for missing input")
	}
	if calls.Load() != 0 {
		t.Error("provider must not be called")
	}
}

func TestRunRank_Cancelled(t *testing.T) {
	a := testApp(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int64

	if err := a.runRank(ctx, nil, fakeBase(&calls), true, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if _, err := os.Stat(a.cfg.Ranking.Output); !os.IsNotExist(err) {
		t.Error("no ranking must be written")
	}
}

func TestBuildAdapters_Truncation(t *testing.T) {
	a := testApp(t, "")
	var calls atomic.Int64

	adapters, checks := buildAdapters(a.cfg, nil, fakeBase(&calls), zap.NewNop())

	wantDoc := map[domain.Field]int{domain.FieldTitle: 128, domain.FieldDetails: 512, domain.FieldFeature: 512}
	for _, f := range domain.Fields {
		q, ok := adapters.Query[f].(*domain.TruncatingEmbedder)
		if !ok {
			t.Fatalf("%s: query embedder is %T", f, adapters.Query[f])
		}
		d := adapters.Document[f].(*domain.TruncatingEmbedder)
		if q.MaxTokens() != 128 {
			t.Errorf("%s: query limit %d, want 128", f, q.MaxTokens())
		}
		if d.MaxTokens() != wantDoc[f] {
			t.Errorf("%s: document limit %d, want %d", f, d.MaxTokens(), wantDoc[f])
		}
		if _, ok := checks[f.String()]; !ok {
			t.Errorf("no health check for %s", f)
		}
	}
}

func TestOpenCacheStore(t *testing.T) {
	ctx := context.Background()

	s, err := openCacheStore(ctx, config.CacheConfig{Driver: "none"}, zap.NewNop())
	if err != nil || s != nil {
		t.Errorf("none: expected nil store, got %v, %v", s, err)
	}

	s, err = openCacheStore(ctx, config.CacheConfig{Driver: "memory"}, zap.NewNop())
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := s.(*memory.Store); !ok {
		t.Errorf("memory: got %T", s)
	}

	s, err = openCacheStore(ctx, config.CacheConfig{Driver: "badger", Dir: t.TempDir(), ReadinessTimeout: 1}, zap.NewNop())
	if err != nil {
		t.Fatalf("badger: %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("badger: ping: %v", err)
	}
	s.Close()

	if _, err := openCacheStore(ctx, config.CacheConfig{Driver: "etcd"}, zap.NewNop()); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestVersionCmd(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "dsrank ") {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestScrapeCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data/list/limit/1000/offset/0":
			fmt.Fprint(w, `{"data":{"dataset":[{"did":2,"name":"anneal"},{"did":3,"name":"kr-vs-kp"}]}}`)
		case "/data/2":
			fmt.Fprint(w, `{"data_set_description":{"name":"anneal","description":"Steel annealing"}}`)
		case "/data/3":
			fmt.Fprint(w, `{"data_set_description":{"name":"kr-vs-kp","description":""}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	output := filepath.Join(dir, "datasets.json")
	cfgPath := filepath.Join(dir, "test.yaml")
	yaml := fmt.Sprintf("logging:\n  level: error\nregistry:\n  base_url: %s\n  requests_per_second: 1000\n", srv.URL)
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", cfgPath, "--env", "local", "scrape", "--output", output})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("execute: %v", err)
	}

	got, err := records.LoadDatasets(output)
	if err != nil {
		t.Fatalf("load datasets: %v", err)
	}
	if len(got) != 1 || got[0].ID != "2" || got[0].Title != "anneal" || got[0].Description != "Steel annealing" {
		t.Errorf("unexpected datasets %+v", got)
	}
	if !strings.Contains(out.String(), "Saved 1 datasets") {
		t.Errorf("unexpected output %q", out.String())
	}
}
