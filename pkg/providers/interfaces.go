package providers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/samvad-hq/samvad-news-ingest/internal/domain"
	"github.com/samvad-hq/samvad-news-ingest/pkg/httpclient"
)

// NewsProvider fetches one page from an upstream news API and returns canonical articles.
// Implementations never return errors: every failure is logged and yields an empty slice.
type NewsProvider interface {
	ID() string
	Name() string
	FetchArticles(ctx context.Context, params domain.FetchParams) []domain.Article
}

// JSONGetter is the HTTP surface providers use. httpclient.JSONClient implements it.
type JSONGetter interface {
	GetJSON(ctx context.Context, url string, query httpclient.Query, timeout time.Duration) (json.RawMessage, bool)
}

// Logger aliases the shared logging surface.
type Logger = httpclient.Logger
