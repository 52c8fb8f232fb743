package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/acs-tracts/internal/acs"
	"github.com/sells-group/acs-tracts/internal/credential"
	"github.com/sells-group/acs-tracts/internal/export"
	"github.com/sells-group/acs-tracts/internal/monitoring"
	"github.com/sells-group/acs-tracts/internal/resilience"
	"github.com/sells-group/acs-tracts/internal/statecodes"
	"github.com/sells-group/acs-tracts/internal/store"
	"github.com/sells-group/acs-tracts/pkg/census"
)

// tractEnv holds the clients and lookup tables needed by the tracts and
// serve commands.
type tractEnv struct {
	Client   census.Client
	Pipeline *acs.Pipeline
	States   *statecodes.Table
}

// initTractEnv loads the state table and builds the Census client, label
// resolver, and pipeline.
func initTractEnv(m *monitoring.Metrics) (*tractEnv, error) {
	states, err := statecodes.Load(cfg.States.Path)
	if err != nil {
		return nil, eris.Wrap(err, "load state codes (run `acs-tracts states` first)")
	}

	client := newCensusClient(m)
	resolver := acs.NewLabelResolver(client,
		acs.WithCacheSize(cfg.Census.LabelCacheSize),
		acs.WithConcurrency(cfg.Census.MaxConcurrency),
		acs.WithResolverMetrics(m),
	)
	p := acs.NewPipeline(client, resolver,
		acs.WithFetchConcurrency(cfg.Census.MaxConcurrency),
		acs.WithMetrics(m),
	)

	return &tractEnv{Client: client, Pipeline: p, States: states}, nil
}

// newCensusClient builds the API client from cfg. The key comes from config
// or the environment first, then the secrets file.
func newCensusClient(m *monitoring.Metrics) census.Client {
	creds := credential.Chain{
		credential.Static(cfg.Census.APIKey),
		credential.NewSecretsFile(cfg.Census.SecretsPath),
	}

	burst := max(1, int(cfg.Census.RateLimit))
	return census.NewClient(
		census.WithBaseURL(cfg.Census.BaseURL),
		census.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Census.TimeoutSecs) * time.Second}),
		census.WithRateLimit(rate.Limit(cfg.Census.RateLimit), burst),
		census.WithRetry(resilience.FromRetryConfig(
			cfg.Census.Retry.MaxAttempts,
			cfg.Census.Retry.InitialBackoffMs,
			cfg.Census.Retry.MaxBackoffMs,
		)),
		census.WithCredentials(creds),
		census.WithMetrics(m),
	)
}

// openStore opens and migrates the run store for driver ("sqlite" or "postgres").
func openStore(ctx context.Context, driver string) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch driver {
	case export.FormatSQLite:
		st, err = store.NewSQLite(cfg.Store.SQLitePath)
	case export.FormatPostgres:
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store.database_url is required for postgres")
		}
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// defaultStoreDriver picks postgres when a database URL is configured.
func defaultStoreDriver() string {
	if cfg.Store.DatabaseURL != "" {
		return export.FormatPostgres
	}
	return export.FormatSQLite
}

// newExporter returns the exporter for format and a func releasing it.
func newExporter(ctx context.Context, format, dir string) (export.Exporter, func(), error) {
	switch format {
	case export.FormatSQLite, export.FormatPostgres:
		st, err := openStore(ctx, format)
		if err != nil {
			return nil, nil, err
		}
		return &export.StoreExporter{Store: st, Name: format}, func() { _ = st.Close() }, nil
	default:
		e, err := export.NewFileExporter(dir, format)
		if err != nil {
			return nil, nil, err
		}
		return e, func() {}, nil
	}
}
