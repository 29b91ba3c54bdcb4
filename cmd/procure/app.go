package main

import (
	"context"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/ahrav/go-procure/infrastructure/advisor"
	"github.com/ahrav/go-procure/infrastructure/cache"
	"github.com/ahrav/go-procure/infrastructure/feedback"
	"github.com/ahrav/go-procure/infrastructure/llm"
	"github.com/ahrav/go-procure/infrastructure/middleware"
	"github.com/ahrav/go-procure/infrastructure/suppliers"
	"github.com/ahrav/go-procure/internal/application"
	"github.com/ahrav/go-procure/internal/config"
	"github.com/ahrav/go-procure/internal/domain"
	"github.com/ahrav/go-procure/internal/inference"
	"github.com/ahrav/go-procure/internal/ports"
)

// app is the wired process: catalog, collaborators, pipeline, orchestrator
// and feedback store.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	orch     *application.Orchestrator
	store    *feedback.SQLiteStore
	searcher *cache.Searcher
	evidence *cache.EvidenceScorer
	metrics  ports.MetricsCollector
	registry *prometheus.Registry
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	var loaderOpts []application.LoaderOption
	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		var reg prometheus.Registerer = a.registry
		if cfg.Metrics.Namespace != "" {
			reg = prometheus.WrapRegistererWith(prometheus.Labels{"service": cfg.Metrics.Namespace}, reg)
		}
		a.metrics = middleware.NewPrometheusMetrics(reg)
	}
	observerOpts := []middleware.ObserverOption{
		middleware.WithTracer(otel.Tracer("procure/units")),
		middleware.WithLogger(log),
	}
	if a.metrics != nil {
		observerOpts = append(observerOpts, middleware.WithMetrics(a.metrics))
	}
	loaderOpts = append(loaderOpts, application.WithObserver(middleware.NewOTelObserver(observerOpts...)))

	catalog, err := openCatalog(cfg.Catalog, log)
	if err != nil {
		return nil, err
	}
	cacheCfg := cache.Config{MaxSize: cfg.Cache.Size, TTL: cfg.Cache.TTL}
	var (
		searcher ports.SupplierSearcher = catalog
		scorer   ports.EvidenceScorer   = suppliers.TextEvidenceScorer{}
	)
	if cfg.Cache.Enabled {
		a.searcher = cache.NewSearcher(catalog, cacheCfg)
		a.evidence = cache.NewEvidenceScorer(scorer, cacheCfg)
		searcher, scorer = a.searcher, a.evidence
	}

	var adv ports.Advisor = advisor.New(nil, advisor.WithLogger(log))
	if cfg.LLM.Enabled {
		llmOpts := []llm.Option{llm.WithTracer(otel.Tracer("procure/llm"))}
		if a.metrics != nil {
			llmOpts = append(llmOpts, llm.WithMetrics(a.metrics))
		}
		client, err := llm.FromConfig(cfg.LLM, llmOpts...)
		if err != nil {
			return nil, eris.Wrap(err, "llm client")
		}
		adv = advisor.New(client, advisor.WithLogger(log))
		log.Info("advisor enabled", zap.String("provider", cfg.LLM.Provider), zap.String("model", client.GetModel()))
	}

	registry := application.NewDefaultUnitRegistry(application.Dependencies{
		Searcher:       searcher,
		EvidenceScorer: scorer,
		Advisor:        adv,
		Logger:         log,
	})
	loaderOpts = append(loaderOpts,
		application.WithOverrides(application.UnitTypeSelect, map[string]any{"top_k": cfg.Pipeline.TopK}),
		application.WithOverrides(application.UnitTypeEvidence, map[string]any{"max_concurrency": cfg.Pipeline.EvidenceConcurrency}),
	)
	loader, err := application.NewPipelineLoader(registry, loaderOpts...)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline loader")
	}
	var pipeline *application.Pipeline
	if cfg.Pipeline.Definition != "" {
		pipeline, err = loader.LoadFromFile(ctx, cfg.Pipeline.Definition)
	} else {
		pipeline, err = loader.LoadDefault(ctx)
	}
	if err != nil {
		return nil, eris.Wrap(err, "load pipeline")
	}

	a.store, err = feedback.NewSQLite(ctx, cfg.Feedback.DSN, log)
	if err != nil {
		return nil, eris.Wrap(err, "open feedback store")
	}

	orchOpts := []application.Option{
		application.WithAdvisor(adv),
		application.WithFeedbackStore(a.store),
		application.WithLogger(log),
		application.WithTracer(otel.Tracer("procure/orchestrator")),
		application.WithEnvironment(cfg.Environment),
		application.WithInference(inference.DefaultRules(), cfg.Inference.MaxRounds),
	}
	if a.metrics != nil {
		orchOpts = append(orchOpts, application.WithMetrics(a.metrics))
	}
	a.orch, err = application.NewOrchestrator(pipeline, orchOpts...)
	if err != nil {
		_ = a.store.Close()
		return nil, eris.Wrap(err, "orchestrator")
	}
	return a, nil
}

func openCatalog(cfg config.CatalogConfig, log *zap.Logger) (*suppliers.Catalog, error) {
	if cfg.Path == "" {
		return suppliers.NewBuiltinCatalog(suppliers.WithLogger(log)), nil
	}
	c, err := suppliers.LoadCatalog(cfg.Path, suppliers.WithLogger(log))
	if err != nil {
		return nil, eris.Wrapf(err, "load catalog %s", cfg.Path)
	}
	log.Info("catalog loaded", zap.String("path", cfg.Path), zap.Int("offers", c.Len()))
	return c, nil
}

// request fills the configured defaults into the flag values.
func (a *app) request(f *requestFlags, query string) (domain.BuyerRequest, error) {
	minEvidence := a.cfg.Pipeline.MinEvidence
	req := domain.BuyerRequest{
		Query:                query,
		Budget:               f.budget,
		DeadlineDays:         a.cfg.Pipeline.DeadlineDays,
		PreferredVendors:     f.vendors,
		Weights:              a.cfg.Pipeline.DefaultWeights,
		MinEvidenceThreshold: &minEvidence,
		Currency:             a.cfg.Pipeline.Currency,
	}
	if f.deadline >= 0 {
		req.DeadlineDays = f.deadline
	}
	switch len(f.weights) {
	case 0:
	case 3:
		req.Weights = domain.Weights{Cost: f.weights[0], Evidence: f.weights[1], Availability: f.weights[2]}
	default:
		return req, eris.Wrapf(domain.ErrInvalidConfiguration, "weights: want 3 values, got %d", len(f.weights))
	}
	return req, nil
}

// close records the cache counters, writes the metrics when enabled and
// closes the feedback store.
func (a *app) close(metricsOut io.Writer) error {
	if a.metrics != nil {
		if a.searcher != nil {
			a.recordCacheStats("search", a.searcher.Stats())
		}
		if a.evidence != nil {
			a.recordCacheStats("evidence", a.evidence.Stats())
		}
		if err := a.writeMetrics(metricsOut); err != nil {
			a.log.Warn("write metrics", zap.Error(err))
		}
	}
	if err := a.store.Close(); err != nil {
		return eris.Wrap(err, "close feedback store")
	}
	return nil
}

func (a *app) recordCacheStats(component string, st cache.Stats) {
	labels := map[string]string{"component": component}
	a.metrics.RecordGauge("cache_hits", float64(st.Hits), labels)
	a.metrics.RecordGauge("cache_misses", float64(st.Misses), labels)
	a.metrics.RecordGauge("cache_entries", float64(st.Entries), labels)
}

func (a *app) writeMetrics(w io.Writer) error {
	families, err := a.registry.Gather()
	if err != nil {
		return eris.Wrap(err, "gather metrics")
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return eris.Wrap(err, "encode metrics")
		}
	}
	return nil
}
