package providers

import (
	"context"
	"time"

	"github.com/samvad-hq/samvad-news-ingest/internal/domain"
	"github.com/samvad-hq/samvad-news-ingest/pkg/httpclient"
)

// Guardian fetches from the Guardian content API /search endpoint.
type Guardian struct {
	cfg    ProviderConfig
	client JSONGetter
	log    Logger
	now    func() time.Time
}

func NewGuardian(cfg ProviderConfig, client JSONGetter, log Logger) *Guardian {
	return &Guardian{cfg: cfg, client: client, log: httpclient.EnsureLogger(log), now: time.Now}
}

func (p *Guardian) ID() string   { return GuardianID }
func (p *Guardian) Name() string { return "The Guardian" }

type guardianResult struct {
	WebTitle           string `json:"webTitle"`
	WebURL             string `json:"webUrl"`
	WebPublicationDate string `json:"webPublicationDate"`
	SectionName        string `json:"sectionName"`
	Fields             struct {
		BodyText  string `json:"bodyText"`
		Thumbnail string `json:"thumbnail"`
		Byline    string `json:"byline"`
	} `json:"fields"`
}

func (p *Guardian) Query(params domain.FetchParams) *QueryBuilder {
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = p.cfg.PageSize()
	}
	return NewQueryBuilder().
		Add("api-key", p.cfg.APIKey()).
		Add("show-fields", "thumbnail,bodyText,byline").
		Add("page-size", pageSize).
		Add("page", defaultPage(params.Page)).
		AddIfPresent("q", params.Keyword).
		AddIfPresent("section", params.Category).
		AddIfPresent("from-date", params.From).
		AddIfPresent("to-date", params.To)
}

func (p *Guardian) FetchArticles(ctx context.Context, params domain.FetchParams) []domain.Article {
	if !p.cfg.IsValid() || p.client == nil {
		p.log.WarnObj("provider is not properly configured", "provider", logFields(p.ID(), nil))
		return []domain.Article{}
	}

	payload, ok := p.client.GetJSON(ctx, p.cfg.Endpoint("/search"), p.Query(params), p.cfg.Timeout())
	if !ok {
		return []domain.Article{}
	}

	items, recordErrs, err := decodeResults[guardianResult](payload, "response", "results")
	if err != nil {
		p.log.ErrorObj("provider returned invalid response format", "provider", logFields(p.ID(), map[string]any{"error": err.Error()}))
		return []domain.Article{}
	}
	warnRecords(p.log, p.ID(), recordErrs)

	now := p.now().UTC()
	out := make([]domain.Article, 0, len(items))
	for _, it := range items {
		out = append(out, domain.Article{
			Title:       orDefault(it.WebTitle, untitled),
			Description: it.Fields.BodyText,
			Content:     it.Fields.BodyText,
			URL:         it.WebURL,
			ImageURL:    it.Fields.Thumbnail,
			AuthorName:  orDefault(it.Fields.Byline, unknownAuthor),
			PublishedAt: parseTimestamp(it.WebPublicationDate, now),
			Category:    it.SectionName,
		})
	}
	return out
}
