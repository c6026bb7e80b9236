package ingest

import (
	"context"

	"github.com/samvad-hq/samvad-news-ingest/internal/domain"
	"github.com/samvad-hq/samvad-news-ingest/pkg/publishers"
)

// Provider is the fetch surface the orchestrator drives. pkg/providers implementations satisfy it.
type Provider interface {
	ID() string
	Name() string
	FetchArticles(ctx context.Context, params domain.FetchParams) []domain.Article
}

// Enricher fills metadata gaps on freshly fetched articles.
type Enricher interface {
	Enrich(ctx context.Context, providerID string, articles []domain.Article) []domain.Article
}

// EventPublisher fans stored articles out downstream and reports delivery count.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// Recorder observes one provider run.
type Recorder interface {
	ObserveResult(res Result)
}
