package meteo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQuery_Values_Canonical(t *testing.T) {
	q := Query{
		Latitude:     35.6762,
		Longitude:    139.6503,
		Timezone:     "Asia/Tokyo",
		ForecastDays: 2,
		PastDays:     1,
		Hourly:       []string{"temperature_2m", "precipitation"},
		Model:        "best_match",
	}
	enc := q.Values().Encode()
	require.Contains(t, enc, "latitude=35.6762")
	require.Contains(t, enc, "hourly=temperature_2m%2Cprecipitation")
	require.Contains(t, enc, "models=best_match")
	require.NotContains(t, enc, "daily=")

	// Encode sorts keys, so two builds of the same query hash identically.
	require.Equal(t, q.Hash(), q.Hash())
	q2 := q
	q2.PastDays = 0
	require.NotEqual(t, q.Hash(), q2.Hash())
	require.Len(t, q.Hash(), 64)
}

func TestHTTPClient_Forecast_OK(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"latitude": 35.7,
			"longitude": 139.65,
			"timezone": "Asia/Tokyo",
			"hourly": {"time": ["2025-01-01T00:00"], "temperature_2m": [3.2]}
		}`))
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, 5*time.Second)
	f, err := c.Forecast(context.Background(), Query{
		Latitude: 35.6762, Longitude: 139.6503, Timezone: "Asia/Tokyo",
		ForecastDays: 1, Hourly: []string{"temperature_2m"},
	})
	require.NoError(t, err)
	require.InDelta(t, 35.7, f.Latitude, 1e-9)
	require.Equal(t, []string{"temperature_2m", "time"}, f.HourlyFields())
	require.Empty(t, f.DailyFields())
	require.NotEmpty(t, f.Raw)
	require.Contains(t, gotQuery, "timezone=Asia%2FTokyo")
}

func TestHTTPClient_Forecast_UpstreamError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"reason":"Latitude must be in range"}`, http.StatusBadRequest)
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, 2*time.Second)
	_, err := c.Forecast(context.Background(), Query{Latitude: 91})
	require.Error(t, err)
	require.Contains(t, err.Error(), "status=400")
}

func TestHTTPClient_Forecast_RetriesOn429(t *testing.T) {
	var hits int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"latitude": 1, "longitude": 2}`))
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, 5*time.Second)
	f, err := c.Forecast(context.Background(), Query{Latitude: 1, Longitude: 2, ForecastDays: 1})
	require.NoError(t, err)
	require.Equal(t, 2, hits)
	require.InDelta(t, 1.0, f.Latitude, 1e-9)
}

func TestHTTPClient_Forecast_ExhaustedRetriesKeepUpstreamStatus(t *testing.T) {
	var hits int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"reason":"Minutely API request limit exceeded"}`))
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, 5*time.Second)
	_, err := c.Forecast(context.Background(), Query{Latitude: 1, Longitude: 2, ForecastDays: 1})
	require.Error(t, err)
	require.Equal(t, 2, hits)
	// The final 429 body must survive into the error detail.
	require.Contains(t, err.Error(), "status=429")
	require.Contains(t, err.Error(), "request limit exceeded")
}

func TestHTTPClient_Forecast_CallerDeadlineWins(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"latitude": 1, "longitude": 2}`))
	}))
	defer ts.Close()

	// The configured timeout is shorter than the upstream latency; a caller
	// deadline above it must still be honored.
	c := NewHTTPClient(ts.URL, 50*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	f, err := c.Forecast(ctx, Query{Latitude: 1, Longitude: 2, ForecastDays: 1})
	require.NoError(t, err)
	require.InDelta(t, 1.0, f.Latitude, 1e-9)

	// Without a caller deadline, the configured timeout applies.
	_, err = c.Forecast(context.Background(), Query{Latitude: 1, Longitude: 2, ForecastDays: 1})
	require.Error(t, err)
}

func TestHTTPClient_Forecast_ContextCanceled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := NewHTTPClient(ts.URL, 5*time.Second)
	_, err := c.Forecast(ctx, Query{ForecastDays: 1})
	require.Error(t, err)
}

func TestHTTPClient_Ping(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.RawQuery, "latitude=0") {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"latitude":0,"longitude":0}`))
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, time.Second)
	require.NoError(t, c.Ping(context.Background()))

	bad := NewHTTPClient("http://127.0.0.1:1", time.Second)
	require.Error(t, bad.Ping(context.Background()))
}

func TestNewHTTPClient_Defaults(t *testing.T) {
	c := NewHTTPClient("", 0)
	require.Equal(t, "https://api.open-meteo.com/v1/forecast", c.BaseURL)
	require.Equal(t, 20*time.Second, c.Timeout)
}
