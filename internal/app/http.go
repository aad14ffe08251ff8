package app

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tuanzicui/openmeteo-agent/internal/api"
	"github.com/tuanzicui/openmeteo-agent/internal/health"
	"github.com/tuanzicui/openmeteo-agent/internal/logx"
	"github.com/tuanzicui/openmeteo-agent/internal/metrics"
	"github.com/tuanzicui/openmeteo-agent/internal/runtime"
	"github.com/tuanzicui/openmeteo-agent/internal/ui"
)

type HTTPServer struct {
	srv *http.Server
}

// httpPort holds the port used by the HTTP server when overridden from the
// command line. The PORT env var applies otherwise.
var (
	httpPort    string
	httpPortSet bool
)

// SetHTTPPort allows overriding the configured HTTP port before starting the app.
func SetHTTPPort(p string) {
	if p == "" {
		return
	}
	httpPort = p
	httpPortSet = true
}

func listenPort(envPort int) string {
	if httpPortSet {
		return httpPort
	}
	return strconv.Itoa(envPort)
}

func NewHTTPServer(apiAgent *api.API, uiStore *ui.UIStore, rt *runtime.Runtime, port string, readTimeout, writeTimeout time.Duration) *HTTPServer {
	mux := http.NewServeMux()

	apiAgent.RegisterHTTP(mux)
	mux.HandleFunc("/healthz", health.LiveHandler)
	mux.HandleFunc("/health/live", health.LiveHandler)
	mux.HandleFunc("/health/ready", health.ReadyHandler(rt))
	mux.HandleFunc("/metrics", metrics.ServeHTTP)
	mux.HandleFunc("/ui", uiStore.HandleIndex)
	mux.HandleFunc("/ui/task", uiStore.HandleTask)

	// Wrap with metrics and security middleware
	hardened := secureMiddleware(metricsMiddleware(mux))

	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	if writeTimeout <= 0 {
		writeTimeout = 15 * time.Second
	}

	return &HTTPServer{
		srv: &http.Server{
			Addr:              ":" + port,
			Handler:           hardened,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 20, // 1MB
		},
	}
}

func (h *HTTPServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		logx.Info("HTTP", "listening on %s", h.srv.Addr)
		errCh <- h.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logx.Info("HTTP", "shutting down server...")
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return h.srv.Shutdown(shutCtx)
	}
}

// statusRecorder captures the response code for the metrics middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		lbls := map[string]string{
			"method": r.Method,
			"path":   routeLabel(r),
			"status": strconv.Itoa(rec.status),
		}
		metrics.HTTPRequests.Inc(lbls)
		metrics.HTTPDuration.Observe(lbls, time.Since(start).Seconds())
	})
}

// routeLabel keeps metric cardinality bounded: label by the matched mux
// pattern so /a2a/task/{id} stays one series per route, not per task.
func routeLabel(r *http.Request) string {
	p := r.Pattern
	if p == "" {
		return r.URL.Path
	}
	// Patterns may carry a method prefix ("GET /a2a/task/{id}").
	if i := strings.IndexByte(p, ' '); i >= 0 {
		p = p[i+1:]
	}
	return p
}

// secureMiddleware adds basic hardening to HTTP server:
// - Common security headers
// - Body size limit
// - Block TRACE method
func secureMiddleware(next http.Handler) http.Handler {
	const maxBody = 1 << 20 // 1MB
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Block TRACE to avoid request smuggling tricks
		if r.Method == http.MethodTrace {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		// Limit body size early
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		}

		// Security headers
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		// Modern browsers ignore X-XSS-Protection; set to 0 to disable legacy filter quirks
		w.Header().Set("X-XSS-Protection", "0")
		// A conservative CSP that should not break our minimal UI
		w.Header().Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'")
		// HSTS only when TLS is enabled
		if r.TLS != nil {
			w.Header().Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains; preload")
		}

		next.ServeHTTP(w, r)
	})
}
