package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-news-ingest/internal/domain"
	"github.com/samvad-hq/samvad-news-ingest/pkg/httpclient"
)

const nytimesWebRoot = "https://www.nytimes.com/"

// NYTimes uses Article Search for keyword queries and Top Stories (home) otherwise.
// The two endpoints return different shapes, so the mode travels with each call.
type NYTimes struct {
	cfg    ProviderConfig
	client JSONGetter
	log    Logger
	now    func() time.Time
}

func NewNYTimes(cfg ProviderConfig, client JSONGetter, log Logger) *NYTimes {
	return &NYTimes{cfg: cfg, client: client, log: httpclient.EnsureLogger(log), now: time.Now}
}

func (p *NYTimes) ID() string   { return NYTimesID }
func (p *NYTimes) Name() string { return "New York Times" }

type nytSearchDoc struct {
	Headline struct {
		Main string `json:"main"`
	} `json:"headline"`
	Abstract      string          `json:"abstract"`
	LeadParagraph string          `json:"lead_paragraph"`
	WebURL        string          `json:"web_url"`
	PubDate       string          `json:"pub_date"`
	SectionName   string          `json:"section_name"`
	Multimedia    json.RawMessage `json:"multimedia"`
	Byline        struct {
		Original string `json:"original"`
		Person   []struct {
			FirstName string `json:"firstname"`
			LastName  string `json:"lastname"`
		} `json:"person"`
	} `json:"byline"`
}

type nytTopStory struct {
	Title         string          `json:"title"`
	Abstract      string          `json:"abstract"`
	URL           string          `json:"url"`
	Byline        string          `json:"byline"`
	PublishedDate string          `json:"published_date"`
	Section       string          `json:"section"`
	Multimedia    json.RawMessage `json:"multimedia"`
}

func (p *NYTimes) Query(params domain.FetchParams) *QueryBuilder {
	return NewQueryBuilder().
		Add("api-key", p.cfg.APIKey()).
		AddIfPresent("q", params.Keyword).
		AddIfPresent("begin_date", strings.ReplaceAll(params.From, "-", "")).
		AddIfPresent("end_date", strings.ReplaceAll(params.To, "-", ""))
}

func (p *NYTimes) FetchArticles(ctx context.Context, params domain.FetchParams) []domain.Article {
	if !p.cfg.IsValid() || p.client == nil {
		p.log.WarnObj("provider is not properly configured", "provider", logFields(p.ID(), nil))
		return []domain.Article{}
	}

	search := params.Keyword != ""
	endpoint := p.cfg.Endpoint("/topstories/v2/home.json")
	if search {
		endpoint = p.cfg.Endpoint("/search/v2/articlesearch.json")
	}

	payload, ok := p.client.GetJSON(ctx, endpoint, p.Query(params), p.cfg.Timeout())
	if !ok {
		return []domain.Article{}
	}

	now := p.now().UTC()
	if search {
		docs, recordErrs, err := decodeResults[nytSearchDoc](payload, "response", "docs")
		if err != nil {
			p.logInvalid(err)
			return []domain.Article{}
		}
		warnRecords(p.log, p.ID(), recordErrs)
		return p.transformSearch(docs, now)
	}

	stories, recordErrs, err := decodeResults[nytTopStory](payload, "results")
	if err != nil {
		p.logInvalid(err)
		return []domain.Article{}
	}
	warnRecords(p.log, p.ID(), recordErrs)
	return p.transformTop(stories, now)
}

func (p *NYTimes) logInvalid(err error) {
	p.log.ErrorObj("provider returned invalid response format", "provider", logFields(p.ID(), map[string]any{"error": err.Error()}))
}

func (p *NYTimes) transformSearch(docs []nytSearchDoc, now time.Time) []domain.Article {
	out := make([]domain.Article, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.Article{
			Title:       orDefault(d.Headline.Main, untitled),
			Description: d.Abstract,
			Content:     d.LeadParagraph,
			URL:         d.WebURL,
			ImageURL:    absoluteImageURL(multimediaURL(d.Multimedia)),
			AuthorName:  searchAuthor(d),
			PublishedAt: parseTimestamp(d.PubDate, now),
			Category:    d.SectionName,
		})
	}
	return out
}

func (p *NYTimes) transformTop(stories []nytTopStory, now time.Time) []domain.Article {
	out := make([]domain.Article, 0, len(stories))
	for _, s := range stories {
		out = append(out, domain.Article{
			Title:       orDefault(s.Title, untitled),
			Description: s.Abstract,
			Content:     s.Abstract,
			URL:         s.URL,
			ImageURL:    multimediaURL(s.Multimedia),
			AuthorName:  orDefault(s.Byline, unknownAuthor),
			PublishedAt: parseTimestamp(s.PublishedDate, now),
			Category:    s.Section,
		})
	}
	return out
}

func searchAuthor(d nytSearchDoc) string {
	if v := strings.TrimSpace(d.Byline.Original); v != "" {
		return v
	}
	if len(d.Byline.Person) > 0 {
		first := d.Byline.Person[0]
		if name := strings.TrimSpace(first.FirstName + " " + first.LastName); name != "" {
			return name
		}
	}
	return unknownAuthor
}

// multimediaURL reads the first image url. Top Stories and older search docs send
// an array of {url}; newer search docs send an object with default.url.
func multimediaURL(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}

	switch raw[0] {
	case '[':
		var items []struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
			return ""
		}
		return strings.TrimSpace(items[0].URL)
	case '{':
		var obj struct {
			Default struct {
				URL string `json:"url"`
			} `json:"default"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return ""
		}
		return strings.TrimSpace(obj.Default.URL)
	}
	return ""
}

func absoluteImageURL(u string) string {
	if u == "" || strings.HasPrefix(u, "http") {
		return u
	}
	return nytimesWebRoot + strings.TrimLeft(u, "/")
}
