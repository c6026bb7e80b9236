package providers

import (
	"context"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-news-ingest/internal/domain"
)

const guardianPayload = `{
  "response": {
    "status": "ok",
    "total": 1,
    "results": [
      {
        "id": "world/2025/mar/03/story",
        "sectionName": "World news",
        "webPublicationDate": "2025-03-03T06:00:00Z",
        "webTitle": "Story headline",
        "webUrl": "https://www.theguardian.com/world/2025/mar/03/story",
        "fields": {
          "thumbnail": "https://media.guim.co.uk/thumb.jpg",
          "bodyText": "Body text here",
          "byline": "Alex Writer"
        }
      },
      {
        "webTitle": "",
        "webUrl": "https://www.theguardian.com/no-fields"
      }
    ]
  }
}`

func TestGuardianFetchMapsFields(t *testing.T) {
	getter := &fakeGetter{payload: guardianPayload, ok: true}
	p := NewGuardian(validConfig("https://content.guardianapis.com"), getter, nil)
	p.now = fixedClock

	articles := p.FetchArticles(context.Background(), domain.FetchParams{
		Keyword: "elections", Category: "world", From: "2025-03-01", To: "2025-03-03",
	})

	if getter.url != "https://content.guardianapis.com/search" {
		t.Fatalf("unexpected endpoint %q", getter.url)
	}
	want := "api-key=test-key&show-fields=thumbnail%2CbodyText%2Cbyline&page-size=50&page=1&q=elections&section=world&from-date=2025-03-01&to-date=2025-03-03"
	if getter.query != want {
		t.Fatalf("unexpected query\n got %s\nwant %s", getter.query, want)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}

	a := articles[0]
	if a.Title != "Story headline" || a.Description != "Body text here" || a.Content != "Body text here" {
		t.Fatalf("unexpected text mapping %#v", a)
	}
	if a.ImageURL != "https://media.guim.co.uk/thumb.jpg" || a.AuthorName != "Alex Writer" || a.Category != "World news" {
		t.Fatalf("unexpected field mapping %#v", a)
	}
	if !a.PublishedAt.Equal(time.Date(2025, 3, 3, 6, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected published_at %v", a.PublishedAt)
	}

	b := articles[1]
	if b.Title != "Untitled" || b.AuthorName != "Unknown" || !b.PublishedAt.Equal(fixedClock()) {
		t.Fatalf("expected fallbacks, got %#v", b)
	}
}

func TestGuardianMissingResults(t *testing.T) {
	log := &recordingLogger{}
	p := NewGuardian(validConfig("https://content.guardianapis.com"), &fakeGetter{payload: `{"response":{"status":"error"}}`, ok: true}, log)

	if got := p.FetchArticles(context.Background(), domain.FetchParams{}); len(got) != 0 {
		t.Fatalf("expected empty result")
	}
	if log.count("error") != 1 {
		t.Fatalf("expected error log")
	}
}

func TestGuardianInvalidConfig(t *testing.T) {
	getter := &fakeGetter{payload: guardianPayload, ok: true}
	p := NewGuardian(NewProviderConfig("key", "", 0, 0, ""), getter, nil)
	if got := p.FetchArticles(context.Background(), domain.FetchParams{}); len(got) != 0 || getter.calls != 0 {
		t.Fatalf("expected no request and empty result")
	}
}

func TestGuardianMalformedRecordKeepsPage(t *testing.T) {
	payload := `{"response":{"status":"ok","results":[
		{"webTitle":"Fine","webUrl":"https://theguardian.test/fine","sectionName":"World"},
		{"webTitle":"Odd","webUrl":"https://theguardian.test/odd","fields":"not-an-object","sectionName":7}
	]}}`
	log := &recordingLogger{}
	p := NewGuardian(validConfig("https://content.guardianapis.com"), &fakeGetter{payload: payload, ok: true}, log)
	p.now = fixedClock

	articles := p.FetchArticles(context.Background(), domain.FetchParams{})
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}
	if articles[1].URL != "https://theguardian.test/odd" || articles[1].Title != "Odd" || articles[1].Category != "" {
		t.Fatalf("unexpected fallback mapping %#v", articles[1])
	}
	if log.count("warn") != 1 {
		t.Fatalf("expected one warning, got %#v", log.entries)
	}
}
