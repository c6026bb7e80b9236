package domain

import "time"

// Domain contains core models shared by providers, ingestion and storage.

// Article is the provider-agnostic record produced by a provider's transform step.
type Article struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Content     string    `json:"content,omitempty"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"image_url,omitempty"`
	AuthorName  string    `json:"author_name,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Category    string    `json:"category,omitempty"`
}

// Source is a persisted news provider integration keyed by its API identifier.
type Source struct {
	ID            int64     `json:"id"`
	APIIdentifier string    `json:"api_identifier"`
	Name          string    `json:"name"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Author struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// StoredArticle is an article row. The *Name fields are only populated by search.
type StoredArticle struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Content     string     `json:"content,omitempty"`
	URL         string     `json:"url"`
	ImageURL    string     `json:"image_url,omitempty"`
	SourceID    int64      `json:"source_id"`
	CategoryID  *int64     `json:"category_id,omitempty"`
	AuthorID    *int64     `json:"author_id,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	SourceName   string `json:"source_name,omitempty"`
	CategoryName string `json:"category_name,omitempty"`
	AuthorName   string `json:"author_name,omitempty"`
}

// FetchParams is the generic search vocabulary every provider translates.
// From and To are ISO 8601 dates (YYYY-MM-DD).
type FetchParams struct {
	Keyword  string
	Category string
	From     string
	To       string
	Page     int
	PageSize int
}

const (
	DefaultPerPage = 15
	MaxPerPage     = 100
)

// ArticleFilter narrows the stored article search.
type ArticleFilter struct {
	Keyword     string
	From        time.Time
	To          time.Time
	SourceIDs   []int64
	CategoryIDs []int64
	AuthorIDs   []int64
	Page        int
	PerPage     int
}

// Normalize applies paging defaults.
func (f ArticleFilter) Normalize() ArticleFilter {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PerPage <= 0 {
		f.PerPage = DefaultPerPage
	}
	if f.PerPage > MaxPerPage {
		f.PerPage = MaxPerPage
	}
	return f
}

// Offset returns the row offset of the requested page.
func (f ArticleFilter) Offset() int {
	return (f.Page - 1) * f.PerPage
}

// ArticlePage is one page of search results.
type ArticlePage struct {
	Items    []StoredArticle `json:"items"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PerPage  int             `json:"per_page"`
	LastPage int             `json:"last_page"`
}

// NewArticlePage computes the page metadata for a result set.
func NewArticlePage(items []StoredArticle, total int, f ArticleFilter) ArticlePage {
	last := 1
	if f.PerPage > 0 && total > 0 {
		last = (total + f.PerPage - 1) / f.PerPage
	}
	if items == nil {
		items = []StoredArticle{}
	}
	return ArticlePage{
		Items:    items,
		Total:    total,
		Page:     f.Page,
		PerPage:  f.PerPage,
		LastPage: last,
	}
}

// UserPreference lists the sources, categories and authors a reader follows.
// Empty lists mean no constraint on that dimension.
type UserPreference struct {
	UserID      int64     `json:"user_id"`
	SourceIDs   []int64   `json:"preferred_sources"`
	CategoryIDs []int64   `json:"preferred_categories"`
	AuthorIDs   []int64   `json:"preferred_authors"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsEmpty reports whether no source, category or author is preferred.
func (p UserPreference) IsEmpty() bool {
	return len(p.SourceIDs) == 0 && len(p.CategoryIDs) == 0 && len(p.AuthorIDs) == 0
}

// Filter narrows an article search to the preferred sources, categories and authors.
func (p UserPreference) Filter(page, perPage int) ArticleFilter {
	return ArticleFilter{
		SourceIDs:   p.SourceIDs,
		CategoryIDs: p.CategoryIDs,
		AuthorIDs:   p.AuthorIDs,
		Page:        page,
		PerPage:     perPage,
	}
}
