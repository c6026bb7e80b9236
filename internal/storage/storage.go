package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samvad-hq/samvad-news-ingest/internal/domain"
)

// Package storage persists sources, authors, categories and articles.

// ChunkSize bounds every batched IN lookup and multi-row insert.
const ChunkSize = 500

var (
	// ErrNotFound is returned when a keyed record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidReference is returned when preferences name an unknown source, category or author.
	ErrInvalidReference = errors.New("invalid reference")
)

// Store is the persistence capability the ingestion pipeline and read path depend on.
type Store interface {
	// FirstOrCreateSource returns the source with identifier, creating it from defaults if absent.
	FirstOrCreateSource(ctx context.Context, identifier string, defaults domain.Source) (domain.Source, error)
	SetSourceActive(ctx context.Context, identifier string, active bool) error
	Sources(ctx context.Context) ([]domain.Source, error)
	SourceByID(ctx context.Context, id int64) (domain.Source, error)

	// ExistingURLs returns the subset of urls already stored.
	ExistingURLs(ctx context.Context, urls []string) (map[string]struct{}, error)

	// AuthorsByNames matches names case-insensitively.
	AuthorsByNames(ctx context.Context, names []string) ([]domain.Author, error)
	// InsertAuthors ignores names that already exist.
	InsertAuthors(ctx context.Context, names []string) error

	CategoriesBySlugs(ctx context.Context, slugs []string) ([]domain.Category, error)
	// InsertCategories ignores slugs that already exist.
	InsertCategories(ctx context.Context, categories []domain.Category) error
	// Categories lists every category ordered by name.
	Categories(ctx context.Context) ([]domain.Category, error)
	CategoryByID(ctx context.Context, id int64) (domain.Category, error)

	// BulkInsertArticles writes rows in chunks inside one transaction and returns the
	// URLs actually inserted. Rows whose URL already exists are skipped. Any failure
	// rolls back everything and returns no URLs.
	BulkInsertArticles(ctx context.Context, rows []domain.StoredArticle) ([]string, error)

	SearchArticles(ctx context.Context, filter domain.ArticleFilter) (domain.ArticlePage, error)
	// ArticleByID returns one article with its source, category and author names.
	ArticleByID(ctx context.Context, id int64) (domain.StoredArticle, error)

	// Preferences returns ErrNotFound when the user has saved none.
	Preferences(ctx context.Context, userID int64) (domain.UserPreference, error)
	// SavePreferences replaces the user's preferences, creating them if absent.
	// Unknown ids fail with ErrInvalidReference.
	SavePreferences(ctx context.Context, pref domain.UserPreference) (domain.UserPreference, error)
	DeletePreferences(ctx context.Context, userID int64) error

	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Type        string
	Path        string
	DatabaseURL string
}

// NewStore creates the configured storage backend.
func NewStore(ctx context.Context, opts Options) (Store, error) {
	typ := strings.TrimSpace(strings.ToLower(opts.Type))

	switch typ {
	case "", "sqlite":
		if strings.TrimSpace(opts.Path) == "" {
			return nil, fmt.Errorf("sqlite storage requires a path")
		}
		return openSQLite(ctx, opts.Path)
	case "postgres", "postgresql":
		if strings.TrimSpace(opts.DatabaseURL) == "" {
			return nil, fmt.Errorf("postgres storage requires a database url")
		}
		return openPostgres(ctx, opts.DatabaseURL)
	case "bbolt":
		if strings.TrimSpace(opts.Path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(opts.Path)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

// NameKey is the case-insensitive identity of an author name.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func chunkStrings(in []string, size int) [][]string {
	var out [][]string
	for len(in) > 0 {
		n := size
		if len(in) < n {
			n = len(in)
		}
		out = append(out, in[:n])
		in = in[n:]
	}
	return out
}

// uniqueNonEmpty trims, drops blanks and keeps the first occurrence of each key.
func uniqueNonEmpty(in []string, key func(string) string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		k := key(s)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}

func identity(s string) string { return s }

// uniqueIDs drops repeated ids, keeping first-seen order. It fails on a non-positive id.
func uniqueIDs(kind string, in []int64) ([]int64, error) {
	seen := make(map[int64]struct{}, len(in))
	out := make([]int64, 0, len(in))
	for _, id := range in {
		if id <= 0 {
			return nil, fmt.Errorf("%s id %d: %w", kind, id, ErrInvalidReference)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func normalizePreference(p domain.UserPreference) (domain.UserPreference, error) {
	if p.UserID <= 0 {
		return p, fmt.Errorf("user id must be positive, got %d", p.UserID)
	}
	var err error
	if p.SourceIDs, err = uniqueIDs("source", p.SourceIDs); err != nil {
		return p, err
	}
	if p.CategoryIDs, err = uniqueIDs("category", p.CategoryIDs); err != nil {
		return p, err
	}
	if p.AuthorIDs, err = uniqueIDs("author", p.AuthorIDs); err != nil {
		return p, err
	}
	return p, nil
}
