package meteo

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
)

// Query holds the normalized Open-Meteo forecast parameters for one call.
type Query struct {
	Latitude     float64
	Longitude    float64
	Timezone     string
	ForecastDays int
	PastDays     int
	Hourly       []string
	Daily        []string
	Model        string
}

// Values renders the query as URL parameters. url.Values.Encode sorts keys,
// so the encoding doubles as the canonical form for hashing.
func (q Query) Values() url.Values {
	v := url.Values{}
	v.Set("latitude", strconv.FormatFloat(q.Latitude, 'f', -1, 64))
	v.Set("longitude", strconv.FormatFloat(q.Longitude, 'f', -1, 64))
	v.Set("timezone", q.Timezone)
	v.Set("forecast_days", strconv.Itoa(q.ForecastDays))
	v.Set("past_days", strconv.Itoa(q.PastDays))
	if len(q.Hourly) > 0 {
		v.Set("hourly", strings.Join(q.Hourly, ","))
	}
	if len(q.Daily) > 0 {
		v.Set("daily", strings.Join(q.Daily, ","))
	}
	if q.Model != "" {
		v.Set("models", q.Model)
	}
	return v
}

// Hash returns the sha256 of the canonical encoding. Logged instead of raw
// coordinates (hash-only policy) and used as the idempotency fallback.
func (q Query) Hash() string {
	sum := sha256.Sum256([]byte(q.Values().Encode()))
	return hex.EncodeToString(sum[:])
}
