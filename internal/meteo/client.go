package meteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/tuanzicui/openmeteo-agent/internal/metrics"
)

// Forecast is the decoded upstream payload. Raw keeps the untouched body so
// the task output can pass it through without re-encoding losses.
type Forecast struct {
	Latitude  float64        `json:"latitude"`
	Longitude float64        `json:"longitude"`
	Timezone  string         `json:"timezone"`
	Hourly    map[string]any `json:"hourly"`
	Daily     map[string]any `json:"daily"`

	Raw json.RawMessage `json:"-"`
}

// HourlyFields lists the returned hourly series names, sorted.
func (f *Forecast) HourlyFields() []string {
	return sortedKeys(f.Hourly)
}

// DailyFields lists the returned daily series names, sorted.
func (f *Forecast) DailyFields() []string {
	return sortedKeys(f.Daily)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Pinger is the readiness-probe subset of the client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Client fetches forecasts from Open-Meteo.
type Client interface {
	Pinger
	Forecast(ctx context.Context, q Query) (*Forecast, error)
}

type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
	Timeout time.Duration
}

// Compile-time interface conformance
var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if baseURL == "" {
		baseURL = "https://api.open-meteo.com/v1/forecast"
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	// No http.Client timeout: the per-request deadline governs, so a caller
	// budget above Timeout is honored.
	return &HTTPClient{
		BaseURL: baseURL,
		HTTP:    &http.Client{},
		Timeout: timeout,
	}
}

// Forecast performs the upstream call with two attempts on transient failures.
// The caller's context deadline is the request budget; Timeout only applies
// when no deadline was set.
func (c *HTTPClient) Forecast(ctx context.Context, q Query) (*Forecast, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok {
		to := c.Timeout
		if to <= 0 {
			to = 20 * time.Second
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, to)
		defer cancel()
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	url := c.BaseURL + "?" + q.Values().Encode()

	start := time.Now()
	resp, err := retryHTTP(ctx, 2, 500*time.Millisecond, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return httpClient.Do(req)
	})
	if err != nil {
		metrics.UpstreamRequests.Inc(map[string]string{"outcome": "error"})
		metrics.UpstreamDuration.Observe(map[string]string{"outcome": "error"}, time.Since(start).Seconds())
		return nil, fmt.Errorf("open-meteo request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamRequests.Inc(map[string]string{"outcome": "error"})
		return nil, fmt.Errorf("reading open-meteo response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamRequests.Inc(map[string]string{"outcome": "error"})
		metrics.UpstreamDuration.Observe(map[string]string{"outcome": "error"}, time.Since(start).Seconds())
		return nil, fmt.Errorf("open-meteo status=%d, body=%s", resp.StatusCode, truncate(string(body), 800))
	}

	var f Forecast
	if err := json.Unmarshal(body, &f); err != nil {
		metrics.UpstreamRequests.Inc(map[string]string{"outcome": "error"})
		return nil, fmt.Errorf("parsing open-meteo response: %w", err)
	}
	f.Raw = json.RawMessage(body)

	metrics.UpstreamRequests.Inc(map[string]string{"outcome": "ok"})
	metrics.UpstreamDuration.Observe(map[string]string{"outcome": "ok"}, time.Since(start).Seconds())
	return &f, nil
}

// Ping issues a minimal forecast request to check upstream reachability.
func (c *HTTPClient) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	q := Query{Timezone: "UTC", ForecastDays: 1}
	url := c.BaseURL + "?" + q.Values().Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		metrics.UpstreamPings.Inc(map[string]string{"outcome": "error"})
		return fmt.Errorf("open-meteo ping failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamPings.Inc(map[string]string{"outcome": "error"})
		return fmt.Errorf("open-meteo ping bad status: %d", resp.StatusCode)
	}

	metrics.UpstreamPings.Inc(map[string]string{"outcome": "ok"})
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
