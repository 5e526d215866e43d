package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/bassista/go_happyhour/internal/backend"
	"github.com/bassista/go_happyhour/internal/cache"
	"github.com/bassista/go_happyhour/internal/config"
	"github.com/bassista/go_happyhour/internal/location"
	"github.com/bassista/go_happyhour/internal/logger"
	"github.com/bassista/go_happyhour/internal/metrics"
	"github.com/bassista/go_happyhour/internal/pipeline"
	"github.com/bassista/go_happyhour/internal/repository"
	"github.com/bassista/go_happyhour/internal/scheduler"
	"github.com/bassista/go_happyhour/internal/service"
	"github.com/bassista/go_happyhour/internal/yelp"
)

// App is the application container (immutable dependencies + lifecycle context).
type App struct {
	Config   *config.Config
	Repo     repository.Repository
	Cache    *cache.Store
	Store    *pipeline.Store
	Metrics  *metrics.Collector
	Location *location.Service
	Services *service.Services
	Alerts   *scheduler.AlertScheduler

	BaseCtx context.Context
	Cancel  context.CancelFunc

	workers []<-chan struct{}
}

// Dependencies overrides the clients New would build from the config.
type Dependencies struct {
	Search   service.SearchAPI
	Backend  service.Backend
	Provider location.Provider
	Notifier scheduler.Notifier
}

// New wires the stores, clients and services and hydrates the persisted
// slices from repo. A missing data file is a fresh start.
func New(cfg *config.Config, repo repository.Repository, deps Dependencies) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if repo == nil {
		return nil, errors.New("repo is nil")
	}

	collector := metrics.NewCollector(cfg.Misc.MetricsNamespace)
	cacheStore := cache.NewStore(cache.WithObserver(collector), cache.WithTTLs(cfg.Cache.TTLs))
	collector.WatchCache(cfg.Misc.MetricsNamespace, cacheStore.Stats)

	store := pipeline.New(cacheStore,
		pipeline.WithTracker(pipeline.Trackers{pipeline.LogTracker{}, collector}),
		pipeline.WithReporter(pipeline.NewReporter(cfg.Misc.HoneybadgerAPIKey, cfg.Misc.Environment)),
		pipeline.WithSweepInterval(cfg.Cache.SweepInterval),
	)

	doc, err := repo.Load(context.Background())
	switch {
	case err == nil:
		if err := store.Replace(*doc); err != nil {
			return nil, fmt.Errorf("hydrate state: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		logger.WithComponent("app").Info("no persisted state found, starting fresh")
	default:
		return nil, fmt.Errorf("load persisted state: %w", err)
	}

	search := deps.Search
	if search == nil {
		search = yelp.New(yelp.Config{
			BaseURL:           cfg.Yelp.BaseURL,
			APIKey:            cfg.Yelp.APIKey,
			Timeout:           cfg.Yelp.Timeout,
			RequestsPerSecond: cfg.Yelp.RequestsPerSecond,
			Burst:             cfg.Yelp.Burst,
		})
	}

	token := func() string { return store.State().Auth.Token }
	be := deps.Backend
	if be == nil && cfg.Backend.BaseURL != "" {
		be = backend.New(backend.Config{BaseURL: cfg.Backend.BaseURL, Timeout: cfg.Backend.Timeout}, token)
	}
	if be == nil {
		logger.WithComponent("app").Info("no backend configured, account features run offline")
	}

	provider := deps.Provider
	if provider == nil {
		provider, err = location.NewProviderFromConfig(cfg.Location.Provider, cfg.Location.Latitude, cfg.Location.Longitude)
		if err != nil {
			return nil, fmt.Errorf("init location provider: %w", err)
		}
	}
	locOpts := []location.ServiceOption{
		location.WithDefaults(location.Options{Timeout: cfg.Location.Timeout, MaximumAge: cfg.Location.MaximumAge}),
	}
	if cfg.Geocoding.AccessToken != "" {
		locOpts = append(locOpts, location.WithGeocoder(location.NewMapboxGeocoder(location.GeocoderConfig{
			BaseURL:     cfg.Geocoding.BaseURL,
			AccessToken: cfg.Geocoding.AccessToken,
			Timeout:     cfg.Geocoding.Timeout,
		})))
	}
	loc := location.NewService(provider, locOpts...)

	var alerts *scheduler.AlertScheduler
	if cfg.Alerts.Enabled {
		tz, err := cfg.Alerts.Location()
		if err != nil {
			return nil, fmt.Errorf("alerts timezone: %w", err)
		}
		notifier := deps.Notifier
		if notifier == nil {
			notifier = scheduler.NotifierFunc(logAlert)
		}
		alerts = scheduler.NewAlertScheduler(store, notifier, cfg.Alerts.Poll, tz)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		Config:   cfg,
		Repo:     repo,
		Cache:    cacheStore,
		Store:    store,
		Metrics:  collector,
		Location: loc,
		Services: service.New(store, search, be, service.WithLocator(loc)),
		Alerts:   alerts,
		BaseCtx:  ctx,
		Cancel:   cancel,
	}, nil
}

// StartWatchers starts the persistence scheduler, the data file watcher, the
// happy hour alerts and, when configured, the background cache sweep. They
// stop on Shutdown.
func (a *App) StartWatchers() error {
	a.workers = append(a.workers,
		pipeline.StartPersistenceScheduler(a.BaseCtx, a.Store, a.Repo, a.Config.Data.PersistInterval))

	if a.Config.Data.WatchFile {
		if err := a.Repo.StartWatcher(a.BaseCtx, a.Store); err != nil {
			return fmt.Errorf("cannot start data file watcher: %w", err)
		}
	}

	if a.Config.Cache.BackgroundSweep != "" {
		done, err := cache.StartBackgroundSweep(a.BaseCtx, a.Cache, a.Cache, a.Config.Cache.BackgroundSweep, a.Config.Cache.MaxImageBytes)
		if err != nil {
			return err
		}
		a.workers = append(a.workers, done)
	}

	if a.Alerts != nil {
		a.workers = append(a.workers, a.Alerts.Start(a.BaseCtx))
	}
	return nil
}

func logAlert(a scheduler.Alert) {
	logger.WithComponent("alerts").
		WithField("venue", a.VenueID).
		WithField("special", a.Special.ID).
		Infof("Happy hour at %s: %s (%s-%s)", a.VenueName, a.Special.Title, a.Special.StartTime, a.Special.EndTime)
}

// Shutdown cancels the base context and waits for the workers, which includes
// the final flush of the persisted slices.
func (a *App) Shutdown() {
	if a == nil || a.Cancel == nil {
		return
	}
	a.Cancel()
	for _, done := range a.workers {
		<-done
	}
	a.workers = nil
	if a.Location != nil {
		a.Location.StopAllWatches()
	}
}
