package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBuildMux_RegistersForecastHandler(t *testing.T) {
	mux := buildMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	resp, err := http.Get(server.URL + "/v1/forecast?latitude=35.6&longitude=139.6&hourly=temperature_2m")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if out["latitude"].(float64) != 35.6 {
		t.Fatalf("expected latitude=35.6, got %v", out["latitude"])
	}
	hourly, ok := out["hourly"].(map[string]any)
	if !ok {
		t.Fatalf("expected hourly series in response")
	}
	if _, ok := hourly["temperature_2m"]; !ok {
		t.Fatalf("expected temperature_2m series, got %v", hourly)
	}
}

func TestGetForecast_RejectsNonNumericCoordinates(t *testing.T) {
	mux := buildMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	resp, err := http.Get(server.URL + "/v1/forecast?latitude=abc&longitude=1")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
