package enrich

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/samvad-hq/samvad-news-ingest/internal/domain"
	"github.com/samvad-hq/samvad-news-ingest/internal/logger"
	"github.com/samvad-hq/samvad-news-ingest/pkg/httpclient"
)

const (
	maxHTMLBodyBytes = 1 << 20 // 1 MiB
	untitled         = "Untitled"
)

// Options bounds how much work one enrichment pass may do.
type Options struct {
	MaxArticles int
	Delay       time.Duration
	UserAgent   string
}

// Scraper fetches article pages and fills missing metadata from OpenGraph tags.
type Scraper struct {
	client httpclient.Client
	log    logger.Logger
	opts   Options
}

// NewScraper constructs a scraper with the provided HTTP client (or a resty default).
func NewScraper(client httpclient.Client, log logger.Logger, opts Options) *Scraper {
	if client == nil {
		client = httpclient.NewRestyClient(15 * time.Second)
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (compatible; samvad-news-ingest/1.0)"
	}
	return &Scraper{client: client, log: log, opts: opts}
}

// needsMetadata reports whether a page fetch could improve the article.
func needsMetadata(a domain.Article) bool {
	return a.ImageURL == "" || a.Description == "" || a.Title == "" || a.Title == untitled
}

// Enrich returns a copy of articles with gaps filled. Fields the provider already
// set are never overwritten. At most MaxArticles pages are fetched.
func (s *Scraper) Enrich(ctx context.Context, providerID string, articles []domain.Article) []domain.Article {
	out := append([]domain.Article(nil), articles...)

	fetched := 0
	for i, art := range articles {
		if s.opts.MaxArticles > 0 && fetched >= s.opts.MaxArticles {
			break
		}
		if art.URL == "" || !needsMetadata(art) {
			continue
		}
		if ctx.Err() != nil {
			return out
		}

		if fetched > 0 && s.opts.Delay > 0 {
			timer := time.NewTimer(s.opts.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return out
			case <-timer.C:
			}
		}
		fetched++

		meta, err := s.fetchMeta(ctx, art.URL)
		if err != nil {
			s.log.WarnObj("article metadata scrape failed", "metadata_error", map[string]any{
				"provider_id": providerID,
				"url":         art.URL,
				"error":       err.Error(),
			})
			continue
		}
		out[i] = merge(art, meta)
	}

	return out
}

func merge(art domain.Article, meta pageMeta) domain.Article {
	if (art.Title == "" || art.Title == untitled) && meta.Title != "" {
		art.Title = meta.Title
	}
	if art.Description == "" {
		art.Description = meta.Description
	}
	if art.ImageURL == "" {
		art.ImageURL = resolveURL(meta.ImageURL, art.URL)
	}
	return art
}

func (s *Scraper) fetchMeta(ctx context.Context, pageURL string) (pageMeta, error) {
	headers := map[string]string{
		"User-Agent": s.opts.UserAgent,
		"Accept":     "text/html,application/xhtml+xml",
	}

	resp, err := s.client.Get(ctx, pageURL, headers)
	if err != nil {
		return pageMeta{}, fmt.Errorf("http fetch: %w", err)
	}

	if resp.StatusCode() != 200 {
		return pageMeta{}, fmt.Errorf("status %d body: %s", resp.StatusCode(), httpclient.Snippet(resp.Body()))
	}

	body := resp.Body()
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}
	return parseMeta(body)
}

func parseMeta(body []byte) (pageMeta, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return pageMeta{}, fmt.Errorf("parse html: %w", err)
	}

	extract := func(sel string) string {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if val, ok := node.Attr("content"); ok {
				return strings.TrimSpace(val)
			}
		}
		return ""
	}

	return pageMeta{
		Title: firstNonEmpty(
			extract(`meta[property="og:title"]`),
			strings.TrimSpace(doc.Find("title").First().Text()),
		),
		Description: firstNonEmpty(
			extract(`meta[property="og:description"]`),
			extract(`meta[name="description"]`),
		),
		ImageURL: firstNonEmpty(
			extract(`meta[property="og:image"]`),
			extract(`meta[name="twitter:image"]`),
		),
	}, nil
}

type pageMeta struct {
	Title       string
	Description string
	ImageURL    string
}

// resolveURL makes ref absolute against base; unparsable input yields "".
func resolveURL(ref, base string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if r.IsAbs() {
		return r.String()
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return ""
	}
	return b.ResolveReference(r).String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
