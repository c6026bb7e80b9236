package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/samvad-hq/samvad-news-ingest/internal/config"
	"github.com/samvad-hq/samvad-news-ingest/internal/domain"
	"github.com/samvad-hq/samvad-news-ingest/internal/enrich"
	"github.com/samvad-hq/samvad-news-ingest/internal/ingest"
	"github.com/samvad-hq/samvad-news-ingest/internal/logger"
	"github.com/samvad-hq/samvad-news-ingest/internal/metrics"
	"github.com/samvad-hq/samvad-news-ingest/internal/storage"
	"github.com/samvad-hq/samvad-news-ingest/pkg/httpclient"
	"github.com/samvad-hq/samvad-news-ingest/pkg/providers"
	"github.com/samvad-hq/samvad-news-ingest/pkg/publishers"
)

const (
	enrichHTTPTimeout = 10 * time.Second
	retryWait         = 500 * time.Millisecond
	shutdownTimeout   = 5 * time.Second
)

// Harvester represents the news ingestion runtime. It owns the store, the
// provider registry, publishers and metrics, and drives the ingest service
// either once or on the crawl interval.
type Harvester struct {
	cfg         *config.Config
	store       storage.Store
	providerReg *providers.Registry
	fanout      *publishers.Fanout
	metrics     *metrics.Metrics
	service     *ingest.Service
	log         logger.Logger
}

// NewHarvester builds a harvester runtime from config.
func NewHarvester(ctx context.Context, cfg *config.Config, log logger.Logger) (*Harvester, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := storage.NewStore(ctx, storage.Options{
		Type:        cfg.StorageType,
		Path:        cfg.StoragePath,
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type": cfg.StorageType,
		"path": cfg.StoragePath,
	})

	h := &Harvester{cfg: cfg, store: store, log: log}
	if err := h.wire(ctx); err != nil {
		return nil, errors.Join(err, h.Close())
	}
	return h, nil
}

func (h *Harvester) wire(ctx context.Context) error {
	cfg, log := h.cfg, h.log

	rest := httpclient.NewRestyClient(transportTimeout(cfg.Providers), httpclient.WithRetry(cfg.HTTPRetryCount, retryWait))
	providerReg, err := providers.Build(cfg.Providers, httpclient.NewJSONClient(rest, log), log)
	if err != nil {
		return fmt.Errorf("build providers: %w", err)
	}
	h.providerReg = providerReg
	log.InfoObj("providers registry loaded", "providers_meta", map[string]any{
		"count": len(providerReg.IDs()),
		"ids":   providerReg.IDs(),
	})

	fanout, err := publishers.NewFanoutFromFile(ctx, cfg.PublishersFile, log)
	if err != nil {
		return fmt.Errorf("build publishers: %w", err)
	}
	h.fanout = fanout
	log.InfoObj("publishers loaded", "publishers_meta", map[string]any{
		"count": fanout.Size(),
	})

	m, err := metrics.New(nil)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	h.metrics = m

	opts := []ingest.Option{
		ingest.WithConcurrency(cfg.FetchConcurrency),
		ingest.WithRecorder(m),
	}
	if fanout.Size() > 0 {
		opts = append(opts, ingest.WithPublisher(fanout))
	}
	if cfg.EnrichMetadata {
		opts = append(opts, ingest.WithEnricher(enrich.NewScraper(
			httpclient.NewRestyClient(enrichHTTPTimeout),
			log,
			enrich.Options{MaxArticles: cfg.EnrichMaxArticles, Delay: cfg.EnrichDelay},
		)))
	}

	svc, err := ingest.NewService(h.store, log, opts...)
	if err != nil {
		return err
	}
	h.service = svc
	return nil
}

// transportTimeout is the ceiling for the shared provider client: the largest
// configured provider timeout. Each call is still bounded by its own provider's
// timeout through the request context.
func transportTimeout(settings []providers.Settings) time.Duration {
	var max time.Duration
	for _, s := range settings {
		if !s.IsEnabled() {
			continue
		}
		if t := s.Config().Timeout(); t > max {
			max = t
		}
	}
	if max == 0 {
		max = providers.DefaultTimeout
	}
	return max
}

// RunOnce ingests one batch from the provider named by providerID, or from
// every enabled provider when providerID is empty.
func (h *Harvester) RunOnce(ctx context.Context, providerID string, params domain.FetchParams) (ingest.Summary, error) {
	if h == nil || h.service == nil {
		return ingest.Summary{}, fmt.Errorf("harvester is not initialized")
	}

	selected, err := h.providerReg.Select(providerID)
	if err != nil {
		return ingest.Summary{}, err
	}
	if params.PageSize <= 0 {
		params.PageSize = h.cfg.FetchPageSize
	}

	list := make([]ingest.Provider, 0, len(selected))
	for _, p := range selected {
		list = append(list, p)
	}

	start := time.Now()
	h.log.InfoObj("ingestion started", "crawl_meta", map[string]any{
		"providers_count": len(list),
		"started_at":      start.UTC(),
	})
	sum := h.service.Run(ctx, list, params)
	h.log.InfoObj("ingestion completed", "crawl_meta", map[string]any{
		"providers_count": len(list),
		"total_stored":    sum.TotalStored,
		"elapsed_ms":      time.Since(start).Milliseconds(),
	})
	return sum, nil
}

// Run ingests immediately and then on every crawl interval until ctx is cancelled.
func (h *Harvester) Run(ctx context.Context) error {
	if h == nil || h.service == nil {
		return fmt.Errorf("harvester is not initialized")
	}

	if len(h.providerReg.IDs()) == 0 {
		h.log.WarnObj("no providers enabled; harvester idle", "providers_file", h.cfg.ProvidersFile)
		<-ctx.Done()
		return nil
	}

	stopMetrics := h.serveMetrics()
	defer stopMetrics()

	h.log.InfoObj("harvester loop starting", "harvester_state", map[string]any{
		"providers":        h.providerReg.IDs(),
		"publishers_count": h.fanout.Size(),
		"crawl_interval":   h.cfg.CrawlInterval.String(),
	})

	h.tick(ctx)

	ticker := time.NewTicker(h.cfg.CrawlInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.InfoObj("harvester loop exiting", "reason", ctx.Err().Error())
			return nil
		case <-ticker.C:
			h.tick(ctx)
		}
	}
}

func (h *Harvester) tick(ctx context.Context) {
	if _, err := h.RunOnce(ctx, "", domain.FetchParams{}); err != nil {
		h.log.ErrorObj("scheduled ingestion failed", "error", err.Error())
	}
}

// serveMetrics exposes /metrics when metrics_addr is set and returns a shutdown func.
func (h *Harvester) serveMetrics() func() {
	if h.cfg.MetricsAddr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", h.metrics.Handler())
	srv := &http.Server{Addr: h.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.log.ErrorObj("metrics server failed", "error", err.Error())
		}
	}()
	h.log.InfoObj("metrics server listening", "metrics_addr", h.cfg.MetricsAddr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// Metrics returns the recorder backing the harvester.
func (h *Harvester) Metrics() *metrics.Metrics {
	return h.metrics
}

// Close releases publishers and the storage backend.
func (h *Harvester) Close() error {
	if h == nil {
		return nil
	}
	var errs []error
	if err := h.fanout.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publishers: %w", err))
	}
	if h.store != nil {
		if err := h.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	return errors.Join(errs...)
}
