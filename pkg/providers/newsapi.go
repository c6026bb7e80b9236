package providers

import (
	"context"
	"time"

	"github.com/samvad-hq/samvad-news-ingest/internal/domain"
	"github.com/samvad-hq/samvad-news-ingest/pkg/httpclient"
)

// NewsAPI fetches from newsapi.org: /everything for keyword searches, /top-headlines otherwise.
type NewsAPI struct {
	cfg    ProviderConfig
	client JSONGetter
	log    Logger
	now    func() time.Time
}

func NewNewsAPI(cfg ProviderConfig, client JSONGetter, log Logger) *NewsAPI {
	return &NewsAPI{cfg: cfg, client: client, log: httpclient.EnsureLogger(log), now: time.Now}
}

func (p *NewsAPI) ID() string   { return NewsAPIID }
func (p *NewsAPI) Name() string { return "NewsAPI" }

type newsAPIArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	Author      string `json:"author"`
	PublishedAt string `json:"publishedAt"`
}

// Query builds the request parameters for params.
func (p *NewsAPI) Query(params domain.FetchParams) *QueryBuilder {
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = p.cfg.PageSize()
	}
	return NewQueryBuilder().
		Add("apiKey", p.cfg.APIKey()).
		Add("language", p.cfg.Language()).
		Add("pageSize", pageSize).
		Add("page", defaultPage(params.Page)).
		AddIfPresent("q", params.Keyword).
		AddIfPresent("category", params.Category).
		AddIfPresent("from", params.From).
		AddIfPresent("to", params.To)
}

func (p *NewsAPI) endpoint(params domain.FetchParams) string {
	if params.Keyword != "" {
		return p.cfg.Endpoint("/everything")
	}
	return p.cfg.Endpoint("/top-headlines")
}

func (p *NewsAPI) FetchArticles(ctx context.Context, params domain.FetchParams) []domain.Article {
	if !p.cfg.IsValid() || p.client == nil {
		p.log.WarnObj("provider is not properly configured", "provider", logFields(p.ID(), nil))
		return []domain.Article{}
	}

	payload, ok := p.client.GetJSON(ctx, p.endpoint(params), p.Query(params), p.cfg.Timeout())
	if !ok {
		return []domain.Article{}
	}

	items, recordErrs, err := decodeResults[newsAPIArticle](payload, "articles")
	if err != nil {
		p.log.ErrorObj("provider returned invalid response format", "provider", logFields(p.ID(), map[string]any{"error": err.Error()}))
		return []domain.Article{}
	}
	warnRecords(p.log, p.ID(), recordErrs)

	return p.transform(items)
}

func (p *NewsAPI) transform(items []newsAPIArticle) []domain.Article {
	now := p.now().UTC()
	out := make([]domain.Article, 0, len(items))
	for _, it := range items {
		out = append(out, domain.Article{
			Title:       orDefault(it.Title, untitled),
			Description: it.Description,
			Content:     it.Content,
			URL:         it.URL,
			ImageURL:    it.URLToImage,
			AuthorName:  orDefault(it.Author, unknownAuthor),
			PublishedAt: parseTimestamp(it.PublishedAt, now),
		})
	}
	return out
}
