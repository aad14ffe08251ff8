package a2a

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestForecastInputs_Defaults(t *testing.T) {
	var in ForecastInputs
	require.Equal(t, "UTC", in.TimezoneOrDefault())
	require.Equal(t, 1, in.ForecastDaysOrDefault())
	require.Equal(t, 0, in.PastDaysOrDefault())

	days := 7
	in.ForecastDays = &days
	in.Timezone = "Asia/Tokyo"
	require.Equal(t, 7, in.ForecastDaysOrDefault())
	require.Equal(t, "Asia/Tokyo", in.TimezoneOrDefault())
}

func TestTaskRequest_LatencyMillis(t *testing.T) {
	var req TaskRequest
	require.Equal(t, 20000, req.LatencyMillis(20000))

	// Constraints decoded from JSON land as float64
	err := json.Unmarshal([]byte(`{"type":"weather.forecast","constraints":{"latency_ms":7500}}`), &req)
	require.NoError(t, err)
	require.Equal(t, 7500, req.LatencyMillis(20000))

	req.Constraints = map[string]any{"latency_ms": "fast"}
	require.Equal(t, 20000, req.LatencyMillis(20000))
}

func TestTaskRequest_DecodeEnvelope(t *testing.T) {
	body := []byte(`{
		"task_id": "abc",
		"type": "weather.forecast",
		"inputs": {"latitude": 40.4, "longitude": -3.7, "hourly": ["temperature_2m"], "past_days": 2},
		"idempotency_key": "k1"
	}`)
	var req TaskRequest
	require.NoError(t, json.Unmarshal(body, &req))
	require.Equal(t, "abc", req.TaskID)
	require.Equal(t, TaskTypeForecast, req.Type)
	require.InDelta(t, 40.4, req.Inputs.Latitude, 1e-9)
	require.Equal(t, 2, req.Inputs.PastDaysOrDefault())
	require.Equal(t, 1, req.Inputs.ForecastDaysOrDefault())
	require.Equal(t, "k1", req.IdempotencyKey)
}

func TestDefaultCard_Shape(t *testing.T) {
	card := DefaultCard()
	require.Equal(t, "agent:openmeteo:v1", card.ID)
	require.Contains(t, card.Capabilities, "data.fetch")
	require.Equal(t, "api-key", card.Auth.Type)
	require.Equal(t, "hash-only", card.Policies.Logs)
}
