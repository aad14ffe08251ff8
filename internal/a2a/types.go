package a2a

// ForecastInputs carries the Open-Meteo request parameters of one task.
// Pointer fields distinguish "absent" from zero so defaults can be applied.
type ForecastInputs struct {
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	Hourly       []string `json:"hourly,omitempty"`
	Daily        []string `json:"daily,omitempty"`
	Timezone     string   `json:"timezone,omitempty"`
	ForecastDays *int     `json:"forecast_days,omitempty"`
	PastDays     *int     `json:"past_days,omitempty"`
	Model        string   `json:"model,omitempty"`
}

// TimezoneOrDefault returns the requested timezone, UTC when unset.
func (in ForecastInputs) TimezoneOrDefault() string {
	if in.Timezone == "" {
		return "UTC"
	}
	return in.Timezone
}

// ForecastDaysOrDefault returns the requested horizon, 1 when unset.
func (in ForecastInputs) ForecastDaysOrDefault() int {
	if in.ForecastDays == nil {
		return 1
	}
	return *in.ForecastDays
}

// PastDaysOrDefault returns the requested history, 0 when unset.
func (in ForecastInputs) PastDaysOrDefault() int {
	if in.PastDays == nil {
		return 0
	}
	return *in.PastDays
}

// TaskRequest is the task envelope submitted by a peer agent.
type TaskRequest struct {
	TaskID         string         `json:"task_id,omitempty"`
	Type           string         `json:"type"`
	Inputs         ForecastInputs `json:"inputs"`
	Constraints    map[string]any `json:"constraints,omitempty"`
	Evidence       any            `json:"evidence,omitempty"`
	Callback       string         `json:"callback,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

// TaskTypeForecast is the only task type this agent accepts.
const TaskTypeForecast = "weather.forecast"

// LatencyMillis extracts the latency_ms constraint, falling back to def.
// JSON numbers arrive as float64; integers are tolerated for direct callers.
func (t TaskRequest) LatencyMillis(def int) int {
	if t.Constraints == nil {
		return def
	}
	switch v := t.Constraints["latency_ms"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

// ExampleRequest is returned to callers whose submission failed validation,
// so a misbehaving peer can self-correct.
func ExampleRequest() map[string]any {
	return map[string]any{
		"type": TaskTypeForecast,
		"inputs": map[string]any{
			"latitude":      35.6762,
			"longitude":     139.6503,
			"hourly":        []string{"temperature_2m"},
			"timezone":      "Asia/Tokyo",
			"forecast_days": 1,
		},
	}
}
