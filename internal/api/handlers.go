package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tuanzicui/openmeteo-agent/internal/a2a"
	"github.com/tuanzicui/openmeteo-agent/internal/bus"
	"github.com/tuanzicui/openmeteo-agent/internal/guard"
	"github.com/tuanzicui/openmeteo-agent/internal/logx"
	"github.com/tuanzicui/openmeteo-agent/internal/metrics"
	"github.com/tuanzicui/openmeteo-agent/internal/task"
)

// RegisterHTTP wires the A2A endpoints into the mux.
func (a *API) RegisterHTTP(mux *http.ServeMux) {
	mux.HandleFunc("GET /a2a/agent-card", a.handleCard)
	mux.HandleFunc("POST /a2a/task", a.handleCreateTask)
	mux.HandleFunc("GET /a2a/task/{id}", a.handleGetTask)
}

func (a *API) handleCard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.card)
}

// inputRequired answers protocol-level rejections. The transport status is
// 200: the request reached the agent, the task just needs better inputs.
func inputRequired(w http.ResponseWriter, outputs map[string]any) {
	metrics.Tasks.Inc(map[string]string{"status": "input_required"})
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "input_required",
		"outputs": outputs,
	})
}

func (a *API) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	// Auth check (optional)
	if !a.checkAuth(r) {
		w.Header().Set("WWW-Authenticate", "Bearer, X-API-Key")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	// Rate limit
	if err := a.acquireRL(getClientKey(r)); err != nil {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}
	// Enforce content type
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		http.Error(w, "unsupported media type", http.StatusUnsupportedMediaType)
		return
	}

	// Limit request body size
	r.Body = http.MaxBytesReader(w, r.Body, maxTaskBodyBytes)
	var req a2a.TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// If body too large, return 413; malformed JSON is a protocol-level
		// input_required so a peer agent can self-correct.
		if err.Error() == "http: request body too large" {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		inputRequired(w, map[string]any{
			"error":   err.Error(),
			"example": a2a.ExampleRequest(),
		})
		return
	}

	if req.Type != a2a.TaskTypeForecast {
		inputRequired(w, map[string]any{
			"expected_type": a2a.TaskTypeForecast,
		})
		return
	}

	if err := guard.ValidateTask(req, a.defs); err != nil {
		inputRequired(w, map[string]any{
			"error":   err.Error(),
			"example": a2a.ExampleRequest(),
		})
		return
	}

	// Re-submission under a known idempotency key returns the live task
	// instead of fetching twice.
	if id, ok := a.store.FindByIdem(req.IdempotencyKey); ok {
		if t, found := a.store.Get(id); found {
			logx.Info("Api", "idempotent resubmit key matched task=%s", id)
			writeJSON(w, http.StatusOK, map[string]any{
				"task_id": t.ID,
				"status":  t.Status,
			})
			return
		}
	}

	id := req.TaskID
	if id == "" {
		id = task.NewID()
	}
	if !a.store.Create(id, req.Callback) {
		// Same client-chosen id while the task is still live: treat as a poll.
		if t, found := a.store.Get(id); found {
			writeJSON(w, http.StatusOK, map[string]any{
				"task_id": t.ID,
				"status":  t.Status,
			})
			return
		}
		http.Error(w, "task id conflict", http.StatusConflict)
		return
	}
	if req.IdempotencyKey != "" {
		a.store.SetIdem(id, req.IdempotencyKey)
	}

	logx.Info("Api", "new task id=%s type=%s", id, req.Type)
	a.uiStore.AddEvent(id, "Api", "request", "task accepted", "")

	a.bus.Send("fetcher", bus.Message{
		Type: "fetch_forecast",
		Payload: map[string]any{
			"id":  id,
			"req": req,
		},
	})

	// Asynchronous response: poll GET /a2a/task/{id} for the result
	writeJSON(w, http.StatusAccepted, map[string]any{
		"task_id": id,
		"status":  task.StatusAccepted,
	})
}

// handleGetTask returns the status/result snapshot of a task.
// GET /a2a/task/{id}
func (a *API) handleGetTask(w http.ResponseWriter, r *http.Request) {
	// Auth check (optional)
	if !a.checkAuth(r) {
		w.Header().Set("WWW-Authenticate", "Bearer, X-API-Key")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	// Rate limit
	if err := a.acquireRL(getClientKey(r)); err != nil {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}
	id := r.PathValue("id")
	if !guard.ValidTaskID(id) {
		http.Error(w, "invalid task id", http.StatusBadRequest)
		return
	}

	if t, ok := a.store.Get(id); ok {
		writeJSON(w, http.StatusOK, t)
		return
	}

	// Swept from memory: check the archive before giving up
	if a.archive != nil {
		t, found, err := a.archive.Get(id)
		if err != nil {
			logx.Error("Api", "archive lookup failed id=%s: %v", id, err)
			http.Error(w, "archive error", http.StatusInternalServerError)
			return
		}
		if found {
			writeJSON(w, http.StatusOK, t)
			return
		}
	}

	http.Error(w, "no such task", http.StatusNotFound)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
