package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tuanzicui/openmeteo-agent/internal/a2a"
	"github.com/tuanzicui/openmeteo-agent/internal/bus"
	"github.com/tuanzicui/openmeteo-agent/internal/config"
	"github.com/tuanzicui/openmeteo-agent/internal/storage"
	"github.com/tuanzicui/openmeteo-agent/internal/task"
	"github.com/tuanzicui/openmeteo-agent/internal/ui"
)

// API owns the A2A HTTP surface: agent card discovery, task submission and
// task polling. Fetch work is handed off to the fetcher pool over the bus.
type API struct {
	bus     *bus.Bus
	store   *task.Store
	archive storage.Archive // nil when archiving is disabled
	defs    *config.Definitions
	uiStore *ui.UIStore
	card    a2a.AgentCard

	// minimal auth and rate limiting
	apiKey string
	// naive fixed-window rate limiter per client key
	rl struct {
		Window  time.Duration
		Limit   int
		mu      chan struct{} // lightweight mutex using channel
		buckets map[string]*rateBucket
	}
}

type Options struct {
	APIKey          string
	RateLimit       int
	RateLimitWindow time.Duration
}

func New(b *bus.Bus, store *task.Store, archive storage.Archive, defs *config.Definitions, uiStore *ui.UIStore, opts Options) *API {
	a := &API{
		bus:     b,
		store:   store,
		archive: archive,
		defs:    defs,
		uiStore: uiStore,
		card:    a2a.CardFromDefinitions(defs),
		apiKey:  strings.TrimSpace(opts.APIKey),
	}
	a.rl.Window = opts.RateLimitWindow
	if a.rl.Window <= 0 {
		a.rl.Window = 1 * time.Minute
	}
	a.rl.Limit = opts.RateLimit
	if a.rl.Limit <= 0 {
		a.rl.Limit = 60
	}
	a.rl.mu = make(chan struct{}, 1)
	a.rl.buckets = make(map[string]*rateBucket)
	return a
}

// Max request size for POST /a2a/task to protect the server (1MB)
const maxTaskBodyBytes int64 = 1 << 20

// rateBucket tracks hits in a fixed window
type rateBucket struct {
	start time.Time
	hits  int
}

// acquireRL returns error if rate limit exceeded
func (a *API) acquireRL(key string) error {
	if key == "" {
		key = "anon"
	}
	// lock
	a.rl.mu <- struct{}{}
	defer func() { <-a.rl.mu }()

	b, ok := a.rl.buckets[key]
	now := time.Now()
	if !ok || now.Sub(b.start) >= a.rl.Window {
		a.rl.buckets[key] = &rateBucket{start: now, hits: 1}
		return nil
	}
	if b.hits >= a.rl.Limit {
		return errors.New("rate limit exceeded")
	}
	b.hits++
	return nil
}

// getClientKey picks an identifier for auth/rate limit: API key if present, else IP
func getClientKey(r *http.Request) string {
	// prefer provided API key to segregate limits per token
	if k := r.Header.Get("X-API-Key"); k != "" {
		return "key:" + k
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return "key:" + strings.TrimSpace(auth[7:])
	}
	// fallback to remote addr (strip port)
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return "ip:" + host
}

// checkAuth enforces the API key when one is configured
func (a *API) checkAuth(r *http.Request) bool {
	if a.apiKey == "" {
		return true // auth disabled
	}
	if k := r.Header.Get("X-API-Key"); k != "" && k == a.apiKey {
		return true
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		token := strings.TrimSpace(auth[7:])
		return token == a.apiKey
	}
	return false
}
