package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/linnemanlabs/go-core/httpmw"
	"github.com/linnemanlabs/go-core/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/sift/internal/apikey"
	vc "github.com/linnemanlabs/sift/internal/cfg"
	"github.com/linnemanlabs/sift/internal/feedbackapi"
	"github.com/linnemanlabs/sift/internal/notify/slack"
	"github.com/linnemanlabs/sift/internal/postgres"
	"github.com/linnemanlabs/sift/internal/triage"
	"github.com/linnemanlabs/sift/internal/triage/memstore"
	"github.com/linnemanlabs/sift/internal/triage/pgstore"
)

// store is what both backends provide: feedback, audit, settings and keys.
type store interface {
	triage.Store
	apikey.Store
}

// openStore picks postgres when a database URL is configured and the
// in-memory store otherwise. The returned close func is never nil.
func openStore(ctx context.Context, appCfg *vc.Config, L log.Logger) (store, func(), error) {
	if appCfg.DatabaseURL == "" {
		L.Info(ctx, "using in-memory store (no database-url configured)")
		return memstore.New(), func() {}, nil
	}

	pool, err := postgres.NewPool(ctx, appCfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres pool: %w", err)
	}
	s, err := pgstore.New(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pgstore init: %w", err)
	}
	L.Info(ctx, "using postgres store")
	return s, pool.Close, nil
}

// registerDBMetrics registers the per-query histogram and points the
// postgres query observer at it.
func registerDBMetrics(reg prometheus.Registerer) {
	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sift_db_query_duration_seconds",
		Help:    "Duration of individual database queries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "route", "outcome"})
	reg.MustRegister(dbQueryDuration)

	postgres.SetQueryObserver(postgres.QueryObserverFunc(
		func(_ context.Context, operation, route, outcome string, dur time.Duration) {
			dbQueryDuration.WithLabelValues(operation, route, outcome).Observe(dur.Seconds())
		},
	))
}

// newTriageService builds the triage service and its optional
// collaborators from config.
func newTriageService(ctx context.Context, appCfg *vc.Config, st store, keys triage.KeyLookup, hooks triage.ServiceHooks, L log.Logger) (*triage.Service, error) {
	opts := triage.Options{
		Hooks:           hooks,
		NotifyThreshold: appCfg.NotifyThreshold,
	}

	if appCfg.SamplesFile != "" {
		samples, err := triage.LoadSamplesFile(appCfg.SamplesFile)
		if err != nil {
			return nil, err
		}
		opts.Samples = samples
		L.Info(ctx, "loaded sample dataset", "path", appCfg.SamplesFile, "records", len(samples))
	}

	if appCfg.SlackWebhookURL != "" {
		opts.Notifier = slack.New(appCfg.SlackWebhookURL, L)
		L.Info(ctx, "notifier enabled", "type", "slack", "threshold", appCfg.NotifyThreshold)
	}

	return triage.NewService(st, keys, L, opts), nil
}

// seedSamples loads the sample dataset into an empty store. A store that
// already holds feedback is left alone so restarts do not duplicate it.
func seedSamples(ctx context.Context, svc *triage.Service, L log.Logger) error {
	items, err := svc.List(ctx)
	if err != nil {
		return fmt.Errorf("seed samples: %w", err)
	}
	if len(items) > 0 {
		L.Info(ctx, "store not empty, skipping sample load", "items", len(items))
		return nil
	}
	n, err := svc.LoadSamples(ctx)
	if err != nil {
		return fmt.Errorf("seed samples: %w", err)
	}
	L.Info(ctx, "sample dataset loaded", "records", n)
	return nil
}

// newRouter assembles the chi router for the API listener with the
// middleware that needs the chi route context.
func newRouter(api *feedbackapi.API) chi.Router {
	r := chi.NewRouter()

	// Compress text responses (we are JSON only)
	r.Use(middleware.Compress(5, "application/json"))

	// Annotate logger (and tracer if trace is recording) with http.route from chi route pattern
	r.Use(httpmw.AnnotateHTTPRoute)

	r.Use(httpmw.AccessLog())

	// 64KB comfortably fits a CSV import of a few hundred rows
	r.Use(httpmw.MaxBody(1024 * 64))

	api.RegisterRoutes(r)
	return r
}
