package app

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tuanzicui/openmeteo-agent/internal/api"
	"github.com/tuanzicui/openmeteo-agent/internal/bus"
	"github.com/tuanzicui/openmeteo-agent/internal/config"
	"github.com/tuanzicui/openmeteo-agent/internal/logx"
	"github.com/tuanzicui/openmeteo-agent/internal/meteo"
	"github.com/tuanzicui/openmeteo-agent/internal/runtime"
	"github.com/tuanzicui/openmeteo-agent/internal/storage"
	"github.com/tuanzicui/openmeteo-agent/internal/task"
	"github.com/tuanzicui/openmeteo-agent/internal/ui"
	"github.com/tuanzicui/openmeteo-agent/internal/worker"
)

type App struct {
	env     *config.EnvVars
	defs    *config.Definitions
	bus     *bus.Bus
	store   *task.Store
	archive storage.Archive
	ui      *ui.UIStore
	fetcher *worker.Fetcher
	http    *HTTPServer
}

func New() (*App, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}
	logx.SetLevel(env.LogLevel)
	defs, err := config.LoadFromDir("definitions")
	if err != nil {
		return nil, err
	}

	uiStore := ui.NewUIStore()
	messageBus := bus.New()
	store := task.NewStore()

	var archive storage.Archive
	if env.TaskDB != "" {
		a, err := storage.NewSQLiteArchive(env.TaskDB)
		if err != nil {
			return nil, err
		}
		archive = a
		logx.Info("App", "task archive enabled at %s", env.TaskDB)
	}

	client := meteo.NewHTTPClient(env.OpenMeteoBaseURL, env.OpenMeteoTimeout)

	fetcher := worker.NewFetcher(env.QueueBuffer, store, archive, uiStore, client, env.OpenMeteoBaseURL)
	messageBus.Subscribe("fetcher", fetcher.Inbox())

	apiAgent := api.New(messageBus, store, archive, defs, uiStore, api.Options{
		APIKey:          env.AgentAPIKey,
		RateLimit:       env.RateLimit,
		RateLimitWindow: env.RateLimitWindow,
	})

	rt := &runtime.Runtime{
		DefinitionsLoaded: true,
		Upstream:          client,
	}

	httpServer := NewHTTPServer(apiAgent, uiStore, rt, listenPort(env.Port), env.ReadTimeout, env.WriteTimeout)

	return &App{
		env:     env,
		defs:    defs,
		bus:     messageBus,
		store:   store,
		archive: archive,
		ui:      uiStore,
		fetcher: fetcher,
		http:    httpServer,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	// Launch the fetcher pool
	workers := a.workerCount()
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			return a.fetcher.Start(gctx)
		})
	}

	// Launch the task janitor
	ttl := 10 * time.Minute
	if a.env != nil && a.env.TaskTTL > 0 {
		ttl = a.env.TaskTTL
	}
	g.Go(func() error {
		return a.store.Janitor(gctx, time.Minute, ttl, a.archiveExpired)
	})

	// Launch HTTP server
	g.Go(func() error {
		return a.http.Start(gctx)
	})

	logx.Info("App", "openmeteo agent v1.0.0 started (%d workers)", workers)

	err := g.Wait()
	if a.archive != nil {
		if cerr := a.archive.Close(); cerr != nil {
			logx.Error("Archive", "closing: %v", cerr)
		}
	}
	return err
}

// Handler exposes the composed HTTP handler so tests can drive the app
// without binding a real port.
func (a *App) Handler() http.Handler {
	return a.http.srv.Handler
}

// StartWorkers launches the fetcher pool without the HTTP server. The
// returned stop function cancels the pool.
func (a *App) StartWorkers(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)
	for i := 0; i < a.workerCount(); i++ {
		go a.fetcher.Start(ctx)
	}
	return cancel
}

func (a *App) workerCount() int {
	if a.env != nil && a.env.FetchWorkers > 0 {
		return a.env.FetchWorkers
	}
	return 4
}

// archiveExpired upserts swept tasks into the archive. Workers already
// archive terminal states; this catches anything they missed.
func (a *App) archiveExpired(expired []task.Task) {
	if a.archive == nil {
		return
	}
	for _, t := range expired {
		if err := a.archive.Save(t); err != nil {
			logx.Error("Archive", "saving swept task %s: %v", t.ID, err)
		}
	}
}
