package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/tuanzicui/openmeteo-agent/internal/meteo"
	"github.com/tuanzicui/openmeteo-agent/internal/metrics"
	"github.com/tuanzicui/openmeteo-agent/internal/task"
	"github.com/tuanzicui/openmeteo-agent/internal/ui"
	"github.com/tuanzicui/openmeteo-agent/internal/worker"
)

type stubClient struct{}

func (stubClient) Forecast(ctx context.Context, q meteo.Query) (*meteo.Forecast, error) {
	return &meteo.Forecast{Raw: []byte(`{}`)}, nil
}
func (stubClient) Ping(ctx context.Context) error { return nil }

// chdirToRepoRoot ensures relative paths like "definitions/..." resolve during tests.
func chdirToRepoRoot(t *testing.T) {
	t.Helper()
	_, file, _, _ := runtime.Caller(0)
	root := filepath.Clean(filepath.Join(filepath.Dir(file), "../.."))
	if err := os.Chdir(root); err != nil {
		t.Fatalf("chdir to repo root: %v", err)
	}
}

func TestNew_ConstructsApp(t *testing.T) {
	chdirToRepoRoot(t)
	a, err := New()
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	if a.env == nil || a.defs == nil || a.bus == nil || a.store == nil || a.fetcher == nil || a.http == nil {
		t.Fatalf("expected non-nil components: %+v", a)
	}
	if a.archive != nil {
		t.Fatalf("archive should be disabled without TASK_DB")
	}
}

func TestNew_WithArchive(t *testing.T) {
	chdirToRepoRoot(t)
	t.Setenv("TASK_DB", filepath.Join(t.TempDir(), "tasks.db"))
	a, err := New()
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	if a.archive == nil {
		t.Fatalf("expected archive to be enabled")
	}
	a.archive.Close()
}

func TestHTTPServer_Routes_LiveAndCard(t *testing.T) {
	chdirToRepoRoot(t)
	a, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	// Wrap the app's HTTP handler into a test server to avoid binding real ports.
	ts := httptest.NewServer(a.http.srv.Handler)
	defer ts.Close()

	for _, path := range []string{"/healthz", "/health/live", "/a2a/agent-card", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s: expected 200, got %d", path, resp.StatusCode)
		}
	}
}

func TestAppRun_StartsWorkersAndHTTP_AndStopsOnContextCancel(t *testing.T) {
	// Construct a minimal App with a stub upstream and a random port.
	store := task.NewStore()
	fetcher := worker.NewFetcher(4, store, nil, ui.NewUIStore(), stubClient{}, "")

	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	a := &App{
		store:   store,
		fetcher: fetcher,
		http:    &HTTPServer{srv: &http.Server{Addr: "127.0.0.1:0", Handler: mux}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// Give some time for goroutines to start.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil && err != http.ErrServerClosed {
			t.Fatalf("Run returned unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancel")
	}
}

func TestMetricsMiddleware_LabelsByRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /a2a/task/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	ts := httptest.NewServer(metricsMiddleware(mux))
	defer ts.Close()

	for _, id := range []string{"11111111-aaaa", "22222222-bbbb"} {
		resp, err := http.Get(ts.URL + "/a2a/task/" + id)
		if err != nil {
			t.Fatalf("GET failed: %v", err)
		}
		resp.Body.Close()
	}

	rec := httptest.NewRecorder()
	metrics.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	if !strings.Contains(body, `path="/a2a/task/{id}"`) {
		t.Fatalf("expected route-pattern path label, got:\n%s", body)
	}
	if strings.Contains(body, "11111111-aaaa") || strings.Contains(body, "22222222-bbbb") {
		t.Fatalf("task ids must not appear as metric labels:\n%s", body)
	}
}

func TestSecureMiddleware_BlocksTraceAndSetsHeaders(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	ts := httptest.NewServer(secureMiddleware(inner))
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodTrace, ts.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("TRACE request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for TRACE, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected security headers to be set")
	}
}

func TestListenPort(t *testing.T) {
	httpPort, httpPortSet = "", false
	t.Cleanup(func() { httpPort, httpPortSet = "", false })

	if got := listenPort(8080); got != "8080" {
		t.Fatalf("expected env port, got %s", got)
	}
	SetHTTPPort("9999")
	if got := listenPort(8080); got != "9999" {
		t.Fatalf("expected flag override, got %s", got)
	}
	SetHTTPPort("") // no-op
	if got := listenPort(8080); got != "9999" {
		t.Fatalf("empty override must not reset the port, got %s", got)
	}
}
