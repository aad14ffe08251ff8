package meteo

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
)

// RegisterHandlers mounts a canned Open-Meteo forecast endpoint used for
// local development and the e2e suite.
func RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/v1/forecast", getForecast)
}

func getForecast(w http.ResponseWriter, r *http.Request) {
	log.Println("MOCK URL:", r.URL.String())

	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("latitude"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("longitude"), 64)
	if errLat != nil || errLon != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error":  true,
			"reason": "latitude and longitude must be numbers",
		})
		return
	}

	resp := map[string]any{
		"latitude":             lat,
		"longitude":            lon,
		"generationtime_ms":    0.21,
		"utc_offset_seconds":   0,
		"timezone":             q.Get("timezone"),
		"timezone_abbreviation": "UTC",
		"elevation":            44.0,
	}

	if hourly := q.Get("hourly"); hourly != "" {
		series := map[string]any{
			"time": []string{"2025-01-01T00:00", "2025-01-01T01:00"},
		}
		units := map[string]any{"time": "iso8601"}
		for _, name := range strings.Split(hourly, ",") {
			series[name] = []float64{2.4, 2.1}
			units[name] = "°C"
		}
		resp["hourly"] = series
		resp["hourly_units"] = units
	}

	if daily := q.Get("daily"); daily != "" {
		series := map[string]any{
			"time": []string{"2025-01-01"},
		}
		for _, name := range strings.Split(daily, ",") {
			series[name] = []float64{5.8}
		}
		resp["daily"] = series
	}

	json.NewEncoder(w).Encode(resp)
}
