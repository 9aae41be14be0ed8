package generate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	infill "github.com/Paranoid-AF/infill"
	"github.com/Paranoid-AF/infill/split"
)

// testEngine creates an engine whose providers point at url.
func testEngine(t *testing.T, url string) *Engine {
	t.Helper()
	e := NewEngineWithConfig(testConfig(t, url))
	t.Cleanup(e.Close)
	return e
}

func hfServer(t *testing.T, text string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		fmt.Fprintf(w, `[{"generated_text":%q}]`, text)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEngineInfillTrimsAndAssembles(t *testing.T) {
	srv := hfServer(t, "b):\n    return a + b <EOT>", nil)
	e := testEngine(t, srv.URL)

	prov, err := e.Provider("", "")
	if err != nil {
		t.Fatal(err)
	}
	if prov.Name() != "huggingface" {
		t.Errorf("expected default provider huggingface, got %q", prov.Name())
	}

	p := split.Prompt{Prefix: "def a_plus_b(a, "}
	res, err := e.Infill(context.Background(), prov, p)
	if err != nil {
		t.Fatal(err)
	}
	if res.Raw != "b):\n    return a + b <EOT>" {
		t.Errorf("unexpected raw %q", res.Raw)
	}
	if res.Trimmed != "b):\n    return a + b" {
		t.Errorf("unexpected trimmed %q", res.Trimmed)
	}
	if got := res.Assemble(p); got != "def a_plus_b(a, b):\n    return a + b" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestEngineProviderCombinedName(t *testing.T) {
	e := testEngine(t, "http://unused")

	prov, err := e.Provider("nebius/Qwen/Qwen2.5-Coder-32B", "")
	if err != nil {
		t.Fatal(err)
	}
	if prov.Name() != "nebius" {
		t.Errorf("expected nebius, got %q", prov.Name())
	}
	if prov.Model() != "Qwen/Qwen2.5-Coder-32B" {
		t.Errorf("expected model Qwen/Qwen2.5-Coder-32B, got %q", prov.Model())
	}

	prov, err = e.Provider("codestral", "")
	if err != nil {
		t.Fatal(err)
	}
	if prov.Model() != "codestral-latest" {
		t.Errorf("expected configured model codestral-latest, got %q", prov.Model())
	}

	if _, err := e.Provider("openai/gpt-4", ""); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider for unknown prefix, got %v", err)
	}
}

func TestEngineInfillCharsMode(t *testing.T) {
	srv := hfServer(t, "return TOTE <EOT>", nil)
	e := testEngine(t, srv.URL)
	e.config.Generation.Trim = infill.TrimChars

	prov, err := e.Provider("huggingface", "")
	if err != nil {
		t.Fatal(err)
	}
	res, err := e.Infill(context.Background(), prov, split.Prompt{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Trimmed != "return" {
		t.Errorf("expected lossy trim, got %q", res.Trimmed)
	}
}

func TestEngineInfillUsesCache(t *testing.T) {
	var hits atomic.Int32
	srv := hfServer(t, "x <EOT>", &hits)
	e := testEngine(t, srv.URL)

	prov, err := e.Provider("", "")
	if err != nil {
		t.Fatal(err)
	}
	p := split.Prompt{Prefix: "a", Suffix: "b"}
	first, err := e.Infill(context.Background(), prov, p)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Infill(context.Background(), prov, p)
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached || !second.Cached {
		t.Errorf("expected second call cached, got first=%v second=%v", first.Cached, second.Cached)
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 upstream request, got %d", hits.Load())
	}

	if _, err := e.Infill(context.Background(), prov, split.Prompt{Prefix: "a", Suffix: "c"}); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 2 {
		t.Errorf("expected different prompt to miss the cache, got %d requests", hits.Load())
	}
}

func TestEngineCacheDisabled(t *testing.T) {
	var hits atomic.Int32
	srv := hfServer(t, "x", &hits)
	cfg := testConfig(t, srv.URL)
	cfg.Generation.CacheTTLMinutes = 0
	e := NewEngineWithConfig(cfg)
	defer e.Close()

	if e.cache != nil {
		t.Fatal("expected cache to be disabled")
	}
	prov, err := e.Provider("", "")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if _, err := e.Infill(context.Background(), prov, split.Prompt{}); err != nil {
			t.Fatal(err)
		}
	}
	if hits.Load() != 2 {
		t.Errorf("expected 2 upstream requests, got %d", hits.Load())
	}
}

func TestEngineInfillPropagatesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":"Model is currently loading"}`)
	}))
	defer srv.Close()
	e := testEngine(t, srv.URL)

	prov, err := e.Provider("", "")
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.Infill(context.Background(), prov, split.Prompt{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 *APIError, got %v", err)
	}
}

func TestPromptForPrefixSuffix(t *testing.T) {
	e := testEngine(t, "http://unused")
	p, err := e.PromptFor(&infill.Request{Prefix: "a", Suffix: "b", File: "f.go", Repo: "/r"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Prefix != "a" || p.Suffix != "b" || p.File != "f.go" || p.Repo != "/r" {
		t.Errorf("unexpected prompt %+v", p)
	}
}

func TestPromptForCursor(t *testing.T) {
	e := testEngine(t, "http://unused")
	p, err := e.PromptFor(&infill.Request{Text: "ab\ncd", Cursor: &infill.Cursor{Line: 1, Pos: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if p.Prefix != "ab\nc" || p.Suffix != "d" {
		t.Errorf("unexpected split %q / %q", p.Prefix, p.Suffix)
	}
}

func TestPromptForMarker(t *testing.T) {
	e := testEngine(t, "http://unused")
	p, err := e.PromptFor(&infill.Request{Text: "x = <FILL>\n"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Prefix != "x = " || p.Suffix != "\n" {
		t.Errorf("unexpected split %q / %q", p.Prefix, p.Suffix)
	}
}

func TestCompleteSuccess(t *testing.T) {
	srv := hfServer(t, "b) <EOT>", nil)
	e := testEngine(t, srv.URL)

	resp := e.Complete(context.Background(), &infill.Request{Prefix: "f(a, ", Suffix: "\n"})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %s", resp.Error.Message)
	}
	if resp.Infill != "b)" {
		t.Errorf("expected infill %q, got %q", "b)", resp.Infill)
	}
	if resp.Output != "f(a, b)\n" {
		t.Errorf("expected output %q, got %q", "f(a, b)\n", resp.Output)
	}
	if _, err := uuid.Parse(resp.TraceID); err != nil {
		t.Errorf("expected trace id to be a uuid, got %q", resp.TraceID)
	}
}

func TestCompleteSharedCallSurvivesOtherSessionCancel(t *testing.T) {
	var hits atomic.Int32
	arrived := make(chan struct{}, 4)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		arrived <- struct{}{}
		select {
		case <-release:
			fmt.Fprint(w, `[{"generated_text":"b) <EOT>"}]`)
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	e := testEngine(t, srv.URL)

	req := &infill.Request{Prefix: "f(a, "}
	ctxA, cancelA := context.WithCancel(context.Background())
	doneA := make(chan *infill.Response, 1)
	go func() { doneA <- e.Complete(ctxA, req) }()
	<-arrived

	doneB := make(chan *infill.Response, 1)
	go func() { doneB <- e.Complete(context.Background(), req) }()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	<-doneA
	close(release)

	resp := <-doneB
	if resp.Error != nil {
		t.Fatalf("expected the uncancelled request to succeed, got %s: %s", resp.Error.Code, resp.Error.Message)
	}
	if resp.Infill != "b)" {
		t.Errorf("expected infill %q, got %q", "b)", resp.Infill)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("expected one shared upstream request, got %d", n)
	}
}

func TestCompleteNotConfigured(t *testing.T) {
	e := testEngine(t, "http://unused")
	t.Setenv("CODESTRAL_API_KEY", "")

	resp := e.Complete(context.Background(), &infill.Request{Provider: "codestral", Prefix: "x"})
	if resp.Error == nil || resp.Error.Code != "not_configured" {
		t.Errorf("expected not_configured, got %+v", resp.Error)
	}
}

func TestCompleteInvalidRequest(t *testing.T) {
	e := testEngine(t, "http://unused")

	resp := e.Complete(context.Background(), &infill.Request{Provider: "nope"})
	if resp.Error == nil || resp.Error.Code != "invalid_request" {
		t.Errorf("expected invalid_request for unknown provider, got %+v", resp.Error)
	}

	resp = e.Complete(context.Background(), &infill.Request{Provider: "dummy", Text: "a", Cursor: &infill.Cursor{Line: 5}})
	if resp.Error == nil || resp.Error.Code != "invalid_request" {
		t.Errorf("expected invalid_request for bad cursor, got %+v", resp.Error)
	}
}

func TestCompleteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	e := testEngine(t, srv.URL)

	resp := e.Complete(context.Background(), &infill.Request{Prefix: "x"})
	if resp.Error == nil || resp.Error.Code != "api_error" {
		t.Errorf("expected api_error, got %+v", resp.Error)
	}
}

func TestCompleteDummy(t *testing.T) {
	e := testEngine(t, "http://unused")

	resp := e.Complete(context.Background(), &infill.Request{Provider: "dummy", Prefix: "def f():\n    ", Suffix: "\n"})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %s", resp.Error.Message)
	}
	if resp.Output != "def f():\n    pass\n" {
		t.Errorf("unexpected output %q", resp.Output)
	}
}
