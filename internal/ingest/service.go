package ingest

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-news-ingest/internal/domain"
	"github.com/samvad-hq/samvad-news-ingest/internal/logger"
	"github.com/samvad-hq/samvad-news-ingest/internal/storage"
	"github.com/samvad-hq/samvad-news-ingest/pkg/publishers"
	"golang.org/x/sync/errgroup"
)

// Result summarizes one provider run.
type Result struct {
	ProviderID   string        `json:"provider_id"`
	ProviderName string        `json:"provider_name"`
	Fetched      int           `json:"fetched"`
	Invalid      int           `json:"invalid"`
	Duplicates   int           `json:"duplicates"`
	Stored       int           `json:"stored"`
	Skipped      bool          `json:"skipped,omitempty"`
	Failed       bool          `json:"failed,omitempty"`
	Warnings     []string      `json:"warnings,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Summary aggregates a batch across providers.
type Summary struct {
	Results     []Result `json:"results"`
	TotalStored int      `json:"total_stored"`
}

// Options tunes the orchestrator.
type Options struct {
	// Concurrency is the number of providers processed in parallel. Values below 2 run sequentially.
	Concurrency int
}

// Service runs the fetch, dedup and persist pipeline for providers.
type Service struct {
	store     storage.Store
	log       logger.Logger
	enricher  Enricher
	publisher EventPublisher
	recorder  Recorder
	opts      Options
	now       func() time.Time
}

// Option wires an optional collaborator.
type Option func(*Service)

func WithEnricher(e Enricher) Option { return func(s *Service) { s.enricher = e } }
func WithPublisher(p EventPublisher) Option { return func(s *Service) { s.publisher = p } }
func WithRecorder(r Recorder) Option { return func(s *Service) { s.recorder = r } }
func WithConcurrency(n int) Option { return func(s *Service) { s.opts.Concurrency = n } }
func withClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService wires the orchestrator around a store.
func NewService(store storage.Store, log logger.Logger, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("ingest service requires a store")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	s := &Service{store: store, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run processes providers and sums their stored counts. Each provider is isolated:
// one failing never affects another.
func (s *Service) Run(ctx context.Context, ps []Provider, params domain.FetchParams) Summary {
	results := make([]Result, len(ps))

	if s.opts.Concurrency > 1 && len(ps) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.opts.Concurrency)
		for i, p := range ps {
			g.Go(func() error {
				results[i] = s.FetchAndStore(gctx, p, params)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, p := range ps {
			results[i] = s.FetchAndStore(ctx, p, params)
		}
	}

	sum := Summary{Results: results}
	for _, r := range results {
		sum.TotalStored += r.Stored
	}
	return sum
}

// FetchAndStore runs the pipeline for one provider and returns how many new
// articles were persisted. It never returns an error and never panics; failures
// are logged and reported as zero stored.
func (s *Service) FetchAndStore(ctx context.Context, p Provider, params domain.FetchParams) (res Result) {
	start := s.now()

	defer func() {
		if r := recover(); r != nil {
			s.log.ErrorObj("provider ingestion panicked", "provider_error", map[string]any{
				"provider_id": res.ProviderID,
				"panic":       fmt.Sprint(r),
				"stack":       string(debug.Stack()),
			})
			res.Stored = 0
			res.Failed = true
			res.Warnings = append(res.Warnings, fmt.Sprintf("panic: %v", r))
		}
		res.Duration = s.now().Sub(start)
		if s.recorder != nil {
			s.recorder.ObserveResult(res)
		}
	}()

	res = Result{ProviderID: p.ID(), ProviderName: p.Name()}
	src, err := s.store.FirstOrCreateSource(ctx, p.ID(), domain.Source{Name: p.Name(), IsActive: true})
	if err != nil {
		s.fail(&res, "resolve source", err)
		return res
	}
	if !src.IsActive {
		res.Skipped = true
		s.log.InfoObj("source inactive, skipping provider", "provider", map[string]any{"provider_id": p.ID()})
		return res
	}

	fetched := p.FetchArticles(ctx, params)
	res.Fetched = len(fetched)
	if len(fetched) == 0 {
		s.log.InfoObj("provider returned no articles", "provider", map[string]any{"provider_id": p.ID()})
		return res
	}

	candidates := s.filterValid(&res, fetched)
	fresh, err := s.dropKnown(ctx, &res, candidates)
	if err != nil {
		s.fail(&res, "lookup existing urls", err)
		return res
	}
	if len(fresh) == 0 {
		s.logResult(res)
		return res
	}

	if s.enricher != nil {
		fresh = s.enricher.Enrich(ctx, p.ID(), fresh)
	}

	authorIDs, err := s.resolveAuthors(ctx, fresh)
	if err != nil {
		s.fail(&res, "resolve authors", err)
		return res
	}
	categoryIDs, err := s.resolveCategories(ctx, fresh)
	if err != nil {
		s.fail(&res, "resolve categories", err)
		return res
	}

	rows := buildRows(src.ID, fresh, authorIDs, categoryIDs)
	inserted, err := s.store.BulkInsertArticles(ctx, rows)
	if err != nil {
		s.fail(&res, "bulk insert articles", err)
		return res
	}
	res.Stored = len(inserted)

	s.publish(ctx, &res, src.ID, keepURLs(fresh, inserted))
	s.logResult(res)
	return res
}

// filterValid drops articles without a URL and repeated URLs within the batch,
// keeping the first occurrence.
func (s *Service) filterValid(res *Result, articles []domain.Article) []domain.Article {
	out := make([]domain.Article, 0, len(articles))
	seen := make(map[string]struct{}, len(articles))
	for _, a := range articles {
		a.URL = strings.TrimSpace(a.URL)
		if a.URL == "" {
			res.Invalid++
			continue
		}
		if _, dup := seen[a.URL]; dup {
			res.Duplicates++
			continue
		}
		seen[a.URL] = struct{}{}
		out = append(out, a)
	}
	return out
}

// dropKnown removes articles whose URL is already stored using one batched lookup.
func (s *Service) dropKnown(ctx context.Context, res *Result, articles []domain.Article) ([]domain.Article, error) {
	if len(articles) == 0 {
		return nil, nil
	}
	urls := make([]string, len(articles))
	for i, a := range articles {
		urls[i] = a.URL
	}
	existing, err := s.store.ExistingURLs(ctx, urls)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		if _, ok := existing[a.URL]; ok {
			res.Duplicates++
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Service) fail(res *Result, stage string, err error) {
	res.Stored = 0
	res.Failed = true
	res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", stage, err))
	s.log.WarnObj("provider ingestion failed", "provider_error", map[string]any{
		"provider_id": res.ProviderID,
		"stage":       stage,
		"error":       err.Error(),
	})
}

func (s *Service) publish(ctx context.Context, res *Result, sourceID int64, articles []domain.Article) {
	if s.publisher == nil || res.Stored == 0 {
		return
	}
	ingestedAt := s.now().UTC()
	for _, a := range articles {
		evt := publishers.NewEvent(res.ProviderID, res.ProviderName, sourceID, a, ingestedAt)
		if _, err := s.publisher.Publish(ctx, evt); err != nil {
			s.log.WarnObj("article publish failed", "publish_error", map[string]any{
				"provider_id": res.ProviderID,
				"url":         a.URL,
				"error":       err.Error(),
			})
		}
	}
}

// keepURLs returns the articles whose URL is in urls, in their original order.
func keepURLs(articles []domain.Article, urls []string) []domain.Article {
	set := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		set[u] = struct{}{}
	}
	out := make([]domain.Article, 0, len(urls))
	for _, a := range articles {
		if _, ok := set[a.URL]; ok {
			out = append(out, a)
		}
	}
	return out
}

func (s *Service) logResult(res Result) {
	s.log.InfoObj("provider ingestion completed", "provider_result", map[string]any{
		"provider_id": res.ProviderID,
		"fetched":     res.Fetched,
		"invalid":     res.Invalid,
		"duplicates":  res.Duplicates,
		"stored":      res.Stored,
	})
}
