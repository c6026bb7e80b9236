package providers

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-news-ingest/internal/domain"
	"github.com/samvad-hq/samvad-news-ingest/pkg/httpclient"
)

const nytSearchPayload = `{
  "status": "OK",
  "response": {
    "docs": [
      {
        "abstract": "Abstract one",
        "web_url": "https://www.nytimes.com/2025/03/01/one.html",
        "lead_paragraph": "Lead one",
        "multimedia": [{"url": "images/2025/03/01/one.jpg"}],
        "headline": {"main": "Headline one"},
        "pub_date": "2025-03-01T10:00:00+0000",
        "section_name": "U.S.",
        "byline": {"original": "By Sam Reporter", "person": []}
      },
      {
        "web_url": "https://www.nytimes.com/2025/03/01/two.html",
        "multimedia": {"default": {"url": "https://static01.nyt.com/two.jpg"}},
        "headline": {"main": "Headline two"},
        "byline": {"original": "", "person": [{"firstname": "Ana", "lastname": "Lopez"}]}
      },
      {
        "web_url": "https://www.nytimes.com/2025/03/01/three.html",
        "headline": {},
        "byline": {}
      }
    ]
  }
}`

const nytTopPayload = `{
  "status": "OK",
  "results": [
    {
      "section": "world",
      "title": "Top story",
      "abstract": "Top abstract",
      "url": "https://www.nytimes.com/2025/03/02/top.html",
      "byline": "By Kim Editor",
      "published_date": "2025-03-02T05:00:00-05:00",
      "multimedia": [{"url": "https://static01.nyt.com/top.jpg"}]
    },
    {
      "title": "",
      "url": "https://www.nytimes.com/2025/03/02/bare.html",
      "byline": "",
      "multimedia": null
    }
  ]
}`

func TestNYTimesSearchMode(t *testing.T) {
	getter := &fakeGetter{payload: nytSearchPayload, ok: true}
	p := NewNYTimes(validConfig("https://api.nytimes.com/svc"), getter, nil)
	p.now = fixedClock

	articles := p.FetchArticles(context.Background(), domain.FetchParams{Keyword: "budget", From: "2025-03-01", To: "2025-03-05"})

	if getter.url != "https://api.nytimes.com/svc/search/v2/articlesearch.json" {
		t.Fatalf("unexpected endpoint %q", getter.url)
	}
	if getter.query != "api-key=test-key&q=budget&begin_date=20250301&end_date=20250305" {
		t.Fatalf("unexpected query %q", getter.query)
	}
	if len(articles) != 3 {
		t.Fatalf("expected 3 articles, got %d", len(articles))
	}

	one := articles[0]
	if one.ImageURL != "https://www.nytimes.com/images/2025/03/01/one.jpg" {
		t.Fatalf("relative image not prefixed: %q", one.ImageURL)
	}
	if one.AuthorName != "By Sam Reporter" || one.Content != "Lead one" || one.Description != "Abstract one" || one.Category != "U.S." {
		t.Fatalf("unexpected mapping %#v", one)
	}
	if !one.PublishedAt.Equal(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected published_at %v", one.PublishedAt)
	}

	two := articles[1]
	if two.AuthorName != "Ana Lopez" {
		t.Fatalf("expected person fallback, got %q", two.AuthorName)
	}
	if two.ImageURL != "https://static01.nyt.com/two.jpg" {
		t.Fatalf("unexpected image %q", two.ImageURL)
	}

	three := articles[2]
	if three.Title != "Untitled" || three.AuthorName != "Unknown" || three.ImageURL != "" || !three.PublishedAt.Equal(fixedClock()) {
		t.Fatalf("expected fallbacks, got %#v", three)
	}
}

func TestNYTimesTopStoriesMode(t *testing.T) {
	getter := &fakeGetter{payload: nytTopPayload, ok: true}
	p := NewNYTimes(validConfig("https://api.nytimes.com/svc"), getter, nil)
	p.now = fixedClock

	articles := p.FetchArticles(context.Background(), domain.FetchParams{Category: "ignored"})

	if getter.url != "https://api.nytimes.com/svc/topstories/v2/home.json" {
		t.Fatalf("unexpected endpoint %q", getter.url)
	}
	if getter.query != "api-key=test-key" {
		t.Fatalf("unexpected query %q", getter.query)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}
	top := articles[0]
	if top.Title != "Top story" || top.Content != "Top abstract" || top.AuthorName != "By Kim Editor" || top.Category != "world" {
		t.Fatalf("unexpected mapping %#v", top)
	}
	if !top.PublishedAt.Equal(time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected published_at %v", top.PublishedAt)
	}
	if articles[1].Title != "Untitled" || articles[1].AuthorName != "Unknown" || articles[1].ImageURL != "" {
		t.Fatalf("expected fallbacks, got %#v", articles[1])
	}
}

func TestNYTimesMissingDocs(t *testing.T) {
	log := &recordingLogger{}
	p := NewNYTimes(validConfig("https://api.nytimes.com/svc"), &fakeGetter{payload: `{"response":{}}`, ok: true}, log)
	if got := p.FetchArticles(context.Background(), domain.FetchParams{Keyword: "x"}); len(got) != 0 {
		t.Fatalf("expected empty result")
	}
	if log.count("error") != 1 {
		t.Fatalf("expected error log")
	}
}

// fakeGetterRouter answers per endpoint so concurrent calls can mix modes.
type fakeGetterRouter struct {
	routes map[string]string
}

func (r *fakeGetterRouter) GetJSON(_ context.Context, url string, _ httpclient.Query, _ time.Duration) (json.RawMessage, bool) {
	body, ok := r.routes[url]
	return json.RawMessage(body), ok
}

func TestNYTimesConcurrentModesDoNotInterfere(t *testing.T) {
	base := "https://api.nytimes.com/svc"
	getter := &fakeGetterRouter{routes: map[string]string{
		base + "/search/v2/articlesearch.json": nytSearchPayload,
		base + "/topstories/v2/home.json":      nytTopPayload,
	}}
	p := NewNYTimes(validConfig(base), getter, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(search bool) {
			defer wg.Done()
			params := domain.FetchParams{}
			want := "https://www.nytimes.com/2025/03/02/top.html"
			if search {
				params.Keyword = "budget"
				want = "https://www.nytimes.com/2025/03/01/one.html"
			}
			got := p.FetchArticles(context.Background(), params)
			if len(got) == 0 || got[0].URL != want {
				t.Errorf("mode mixed up: search=%v got %#v", search, got)
			}
		}(i%2 == 0)
	}
	wg.Wait()
}

func TestMultimediaURL(t *testing.T) {
	cases := map[string]string{
		``:                                  "",
		`null`:                              "",
		`[]`:                                "",
		`[{"url":"a.jpg"},{"url":"b.jpg"}]`: "a.jpg",
		`{"default":{"url":"c.jpg"}}`:       "c.jpg",
		`"weird"`:                           "",
	}
	for raw, want := range cases {
		if got := multimediaURL(json.RawMessage(raw)); got != want {
			t.Fatalf("multimediaURL(%s) = %q, want %q", raw, got, want)
		}
	}
}

func TestNYTimesMalformedRecordKeepsPage(t *testing.T) {
	payload := `{"response":{"docs":[
		{"web_url":"https://www.nytimes.com/a.html","headline":{"main":"A"},"byline":{"original":"By A"}},
		{"web_url":"https://www.nytimes.com/b.html","headline":{"main":"B"},"byline":[]}
	]}}`
	log := &recordingLogger{}
	p := NewNYTimes(validConfig("https://api.nytimes.com/svc"), &fakeGetter{payload: payload, ok: true}, log)
	p.now = fixedClock

	articles := p.FetchArticles(context.Background(), domain.FetchParams{Keyword: "x"})
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}
	if articles[1].Title != "B" || articles[1].AuthorName != "Unknown" {
		t.Fatalf("unexpected fallback mapping %#v", articles[1])
	}

	top := `{"results":[{"title":"T","url":"https://www.nytimes.com/t.html","byline":{"bad":true}},{"title":"U","url":"https://www.nytimes.com/u.html"}]}`
	p = NewNYTimes(validConfig("https://api.nytimes.com/svc"), &fakeGetter{payload: top, ok: true}, log)
	p.now = fixedClock
	if got := p.FetchArticles(context.Background(), domain.FetchParams{}); len(got) != 2 || got[0].AuthorName != "Unknown" {
		t.Fatalf("top stories should keep malformed record with fallbacks: %#v", got)
	}
}
