package worker

import (
	"context"
	"time"

	"github.com/tuanzicui/openmeteo-agent/internal/a2a"
	"github.com/tuanzicui/openmeteo-agent/internal/bus"
	"github.com/tuanzicui/openmeteo-agent/internal/logx"
	"github.com/tuanzicui/openmeteo-agent/internal/meteo"
	"github.com/tuanzicui/openmeteo-agent/internal/metrics"
	"github.com/tuanzicui/openmeteo-agent/internal/storage"
	"github.com/tuanzicui/openmeteo-agent/internal/task"
	"github.com/tuanzicui/openmeteo-agent/internal/ui"
)

// Default and clamp bounds for the upstream deadline taken from the
// latency_ms constraint.
const (
	defaultLatencyMs = 20000
	minFetchTimeout  = 5 * time.Second
	maxFetchTimeout  = 60 * time.Second
)

// Fetcher executes forecast tasks. Several goroutines may run Start on the
// same Fetcher; they share the inbox and form a pool.
type Fetcher struct {
	inbox   chan bus.Message
	store   *task.Store
	archive storage.Archive // nil when archiving is disabled
	uiStore *ui.UIStore
	client  meteo.Client
	baseURL string // recorded in evidence only
}

var _ Agent = (*Fetcher)(nil)

func NewFetcher(buffer int, store *task.Store, archive storage.Archive, uiStore *ui.UIStore, client meteo.Client, baseURL string) *Fetcher {
	if buffer <= 0 {
		buffer = 16
	}
	return &Fetcher{
		inbox:   make(chan bus.Message, buffer),
		store:   store,
		archive: archive,
		uiStore: uiStore,
		client:  client,
		baseURL: baseURL,
	}
}

func (f *Fetcher) Inbox() chan bus.Message {
	return f.inbox
}

func (f *Fetcher) Start(ctx context.Context) error {
	defer func() {
		if r := recover(); r != nil {
			logx.Error("Fetcher", "panic recovered in Start: %v", r)
		}
	}()
	for {
		select {
		case msg := <-f.inbox:
			func() {
				defer func() {
					if r := recover(); r != nil {
						logx.Error("Fetcher", "panic recovered in dispatch: %v", r)
					}
				}()
				f.dispatch(ctx, msg)
			}()

		case <-ctx.Done():
			return nil
		}
	}
}

func (f *Fetcher) dispatch(ctx context.Context, msg bus.Message) {
	switch msg.Type {
	case "fetch_forecast":
		id, _ := msg.Payload["id"].(string)
		req, ok := msg.Payload["req"].(a2a.TaskRequest)
		if id == "" || !ok {
			logx.Warn("Fetcher", "malformed fetch message: %#v", msg)
			return
		}
		f.process(ctx, id, req)

	default:
		logx.Warn("Fetcher", "unknown message: %#v", msg)
	}
}

func (f *Fetcher) process(ctx context.Context, id string, req a2a.TaskRequest) {
	f.store.SetWorking(id)
	f.uiStore.AddEvent(id, "Fetcher", "working", "fetching forecast", "")

	timeout := fetchTimeout(req.LatencyMillis(defaultLatencyMs))
	taskCtx := f.store.NewTaskContext(ctx, id, timeout)
	defer f.store.CancelTask(id)

	q := buildQuery(req.Inputs)
	qhash := q.Hash()

	idem := req.IdempotencyKey
	if idem == "" {
		idem = qhash
	}
	f.store.SetIdem(id, idem)

	timer := logx.Start(id, "Fetcher", "FetchForecast")
	fc, err := f.client.Forecast(taskCtx, q)
	timer.End()

	if err != nil {
		logx.L(id, "Fetcher", "upstream failed qhash=%s: %v", qhash[:12], err)
		f.store.Fail(id, map[string]any{
			"message": "upstream_failed",
			"detail":  err.Error(),
		})
		metrics.Tasks.Inc(map[string]string{"status": "error"})
		f.uiStore.AddEvent(id, "Fetcher", "error", "upstream failed", "")
		f.archiveTask(id)
		return
	}

	summary := map[string]any{
		"latitude":      fc.Latitude,
		"longitude":     fc.Longitude,
		"hourly_fields": fc.HourlyFields(),
		"daily_fields":  fc.DailyFields(),
	}
	evidence := []task.Evidence{{
		Type: "upstream.http",
		Value: map[string]any{
			"url":          f.baseURL,
			"query_sha256": qhash,
			"timestamp":    time.Now().Unix(),
		},
	}}
	f.store.Complete(id, map[string]any{
		"summary":    summary,
		"open_meteo": fc.Raw,
	}, evidence)

	metrics.Tasks.Inc(map[string]string{"status": "completed"})
	// Hash-only: log the query digest, never the coordinates.
	logx.L(id, "Fetcher", "completed qhash=%s", qhash[:12])
	f.uiStore.AddEvent(id, "Fetcher", "completed", "forecast ready", "")
	f.archiveTask(id)
}

// archiveTask persists the terminal snapshot so polls keep working after the
// janitor sweeps it from memory.
func (f *Fetcher) archiveTask(id string) {
	if f.archive == nil {
		return
	}
	t, ok := f.store.Get(id)
	if !ok {
		return
	}
	if err := f.archive.Save(t); err != nil {
		logx.Error("Archive", "saving task %s: %v", id, err)
	}
}

// fetchTimeout clamps the requested latency budget to sane bounds.
func fetchTimeout(latencyMs int) time.Duration {
	d := time.Duration(latencyMs/1000) * time.Second
	if d < minFetchTimeout {
		return minFetchTimeout
	}
	if d > maxFetchTimeout {
		return maxFetchTimeout
	}
	return d
}

// buildQuery maps the task inputs to the upstream query with defaults applied.
func buildQuery(in a2a.ForecastInputs) meteo.Query {
	return meteo.Query{
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
		Timezone:     in.TimezoneOrDefault(),
		ForecastDays: in.ForecastDaysOrDefault(),
		PastDays:     in.PastDaysOrDefault(),
		Hourly:       in.Hourly,
		Daily:        in.Daily,
		Model:        in.Model,
	}
}
