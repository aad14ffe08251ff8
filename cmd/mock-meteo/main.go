package main

import (
	"log"
	"net/http"

	mockMeteo "github.com/tuanzicui/openmeteo-agent/internal/mocks/meteo"
)

var listenAndServe = http.ListenAndServe

func buildMux() *http.ServeMux {
	mux := http.NewServeMux()
	mockMeteo.RegisterHandlers(mux)
	return mux
}

func main() {
	mux := buildMux()
	log.Println("[MOCK METEO] listening on :9000")
	listenAndServe(":9000", mux)
}
