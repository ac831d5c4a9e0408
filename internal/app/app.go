// Package app wires the ingestion pipeline's components together: the
// store, the source adapters, the extraction and geocoding stages, the
// scheduler that drives them, and the HTTP read API.
package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/mchenry-intel/ingestion-pipeline/internal/adapters"
	"github.com/mchenry-intel/ingestion-pipeline/internal/config"
	"github.com/mchenry-intel/ingestion-pipeline/internal/events"
	"github.com/mchenry-intel/ingestion-pipeline/internal/extraction"
	"github.com/mchenry-intel/ingestion-pipeline/internal/geocode"
	"github.com/mchenry-intel/ingestion-pipeline/internal/httpapi"
	"github.com/mchenry-intel/ingestion-pipeline/internal/rollup"
	"github.com/mchenry-intel/ingestion-pipeline/internal/scheduler"
	"github.com/mchenry-intel/ingestion-pipeline/internal/store"
)

// App owns every long-lived component and coordinates startup/shutdown.
type App struct {
	cfg       config.Config
	store     *store.Store
	bus       *events.Bus
	scheduler *scheduler.Scheduler
	audio     *adapters.AudioAdapter
	rollup    *rollup.Engine
	mux       *http.ServeMux
}

// New opens the store and wires the scheduler, geocoder, extractor, and
// HTTP router around it.
func New(cfg config.Config) (*App, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	extractor := extraction.New(httpClient, cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ExtractionConfigPath)

	var parcel *geocode.ParcelGeocoder
	if cfg.MapboxToken != "" {
		parcel = geocode.NewParcelGeocoder(httpClient, cfg.MapboxToken, cfg.MapboxBaseURL, [4]float64{}, false)
	}
	block := geocode.NewBlockGeocoder(st)
	centroid := geocode.NewCentroidGeocoder(geocode.DefaultCentroids())
	geocoder := geocode.New(parcel, block, centroid)

	var audio *adapters.AudioAdapter
	if cfg.EnableAudioWatcher {
		transcriber := adapters.NewHTTPTranscriber(httpClient, cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
		audio = adapters.NewAudioAdapter(cfg.AudioDir, transcriber)
	}
	deps := adapters.Dependencies{HTTPClient: httpClient, AudioWatcher: audio}

	bus := events.NewBus()
	sched := scheduler.New(st, deps, extractor, geocoder, bus, cfg.TickInterval())
	engine := rollup.New(st)

	mux := http.NewServeMux()
	router := httpapi.NewRouter(cfg, st)
	router.Register(mux)

	return &App{
		cfg:       cfg,
		store:     st,
		bus:       bus,
		scheduler: sched,
		audio:     audio,
		rollup:    engine,
		mux:       mux,
	}, nil
}

// Run starts the audio watcher, the scheduler loop, and the HTTP server,
// blocking until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	if a.audio != nil {
		if err := a.audio.Start(ctx); err != nil {
			return err
		}
	}

	go func() {
		if err := a.scheduler.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("app: scheduler stopped: %v", err)
		}
	}()

	go a.runWeeklyRollups(ctx)

	srv := &http.Server{Addr: ":" + a.cfg.HTTPPort, Handler: a.mux}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	log.Printf("app: http listening on %s", a.cfg.HTTPPort)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// runWeeklyRollups recomputes the current week's rollups once a day; a
// missed week on restart just means the dashboard is briefly stale, not
// wrong, since the next run recomputes from persisted incidents.
func (a *App) runWeeklyRollups(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	a.computeRollups(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.computeRollups(ctx)
		}
	}
}

func (a *App) computeRollups(ctx context.Context) {
	n, err := a.rollup.RunWeek(ctx, a.cfg.Region, config.Now())
	if err != nil {
		log.Printf("app: weekly rollup failed: %v", err)
		return
	}
	log.Printf("app: computed %d rollups for %s", n, a.cfg.Region)
	a.bus.Publish(events.RollupComputed, a.cfg.Region)
}

func (a *App) Store() *store.Store          { return a.store }
func (a *App) Bus() *events.Bus             { return a.bus }
func (a *App) Mux() *http.ServeMux          { return a.mux }
func (a *App) Scheduler() *scheduler.Scheduler { return a.scheduler }
func (a *App) Audio() *adapters.AudioAdapter   { return a.audio }
func (a *App) Config() config.Config        { return a.cfg }
