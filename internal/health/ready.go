package health

import (
	"net/http"

	"github.com/tuanzicui/openmeteo-agent/internal/runtime"
)

func ReadyHandler(rt *runtime.Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		if !rt.DefinitionsLoaded {
			http.Error(w, "definitions not loaded", 503)
			return
		}

		if rt.Upstream != nil {
			if err := rt.Upstream.Ping(r.Context()); err != nil {
				http.Error(w, "upstream unreachable", 503)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		w.Write([]byte(`{"status":"ready"}`))
	}
}
