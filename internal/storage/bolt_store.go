package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-news-ingest/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Primary buckets hold JSON records keyed by big-endian id; index buckets map a
// unique key to that id.
const (
	sourceBucket       = "sources"
	sourceByIDBucket   = "sources_by_identifier"
	authorBucket       = "authors"
	authorByNameBucket = "authors_by_name"
	categoryBucket     = "categories"
	categoryBySlug     = "categories_by_slug"
	articleBucket      = "articles"
	articleByURLBucket = "articles_by_url"
	preferenceBucket   = "user_preferences"
)

var boltBuckets = []string{
	sourceBucket, sourceByIDBucket,
	authorBucket, authorByNameBucket,
	categoryBucket, categoryBySlug,
	articleBucket, articleByURLBucket,
	preferenceBucket,
}

// boltStore implements Store on an embedded BoltDB file.
type boltStore struct {
	db  *bolt.DB
	now func() time.Time
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range boltBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("bucket %s: %w", name, err)
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &boltStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func itob(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

func btoi(b []byte) int64 {
	if len(b) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

// insert stores v under a fresh sequence id and indexes it by key.
func insert(tx *bolt.Tx, bucket, index string, key []byte, build func(id int64) any) (int64, error) {
	main := tx.Bucket([]byte(bucket))
	seq, err := main.NextSequence()
	if err != nil {
		return 0, fmt.Errorf("%s sequence: %w", bucket, err)
	}
	raw, err := json.Marshal(build(int64(seq)))
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", bucket, err)
	}
	if err := main.Put(itob(seq), raw); err != nil {
		return 0, err
	}
	if err := tx.Bucket([]byte(index)).Put(key, itob(seq)); err != nil {
		return 0, err
	}
	return int64(seq), nil
}

// lookup decodes the record that index maps key to. It reports false when absent.
func lookup(tx *bolt.Tx, bucket, index string, key []byte, out any) (bool, error) {
	id := tx.Bucket([]byte(index)).Get(key)
	if id == nil {
		return false, nil
	}
	return get(tx, bucket, id, out)
}

func get(tx *bolt.Tx, bucket string, id []byte, out any) (bool, error) {
	raw := tx.Bucket([]byte(bucket)).Get(id)
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", bucket, err)
	}
	return true, nil
}

func (b *boltStore) FirstOrCreateSource(ctx context.Context, identifier string, defaults domain.Source) (domain.Source, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return domain.Source{}, errors.New("source identifier is empty")
	}
	if err := ctx.Err(); err != nil {
		return domain.Source{}, err
	}

	var src domain.Source
	err := b.db.Update(func(tx *bolt.Tx) error {
		found, err := lookup(tx, sourceBucket, sourceByIDBucket, []byte(identifier), &src)
		if err != nil || found {
			return err
		}
		now := b.now()
		src = domain.Source{
			APIIdentifier: identifier,
			Name:          strings.TrimSpace(defaults.Name),
			IsActive:      defaults.IsActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if src.Name == "" {
			src.Name = identifier
		}
		_, err = insert(tx, sourceBucket, sourceByIDBucket, []byte(identifier), func(id int64) any {
			src.ID = id
			return src
		})
		return err
	})
	if err != nil {
		return domain.Source{}, fmt.Errorf("first or create source %q: %w", identifier, err)
	}
	return src, nil
}

func (b *boltStore) SetSourceActive(ctx context.Context, identifier string, active bool) error {
	identifier = strings.TrimSpace(identifier)
	return b.db.Update(func(tx *bolt.Tx) error {
		var src domain.Source
		found, err := lookup(tx, sourceBucket, sourceByIDBucket, []byte(identifier), &src)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("source %q: %w", identifier, ErrNotFound)
		}
		src.IsActive = active
		src.UpdatedAt = b.now()
		raw, err := json.Marshal(src)
		if err != nil {
			return err
		}
		return tx.Bucket([]byte(sourceBucket)).Put(itob(uint64(src.ID)), raw)
	})
}

func (b *boltStore) Sources(ctx context.Context) ([]domain.Source, error) {
	var out []domain.Source
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(sourceBucket)).ForEach(func(_, v []byte) error {
			var src domain.Source
			if err := json.Unmarshal(v, &src); err != nil {
				return fmt.Errorf("decode source: %w", err)
			}
			out = append(out, src)
			return nil
		})
	})
	return out, err
}

func (b *boltStore) ExistingURLs(ctx context.Context, urls []string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	err := b.db.View(func(tx *bolt.Tx) error {
		idx := tx.Bucket([]byte(articleByURLBucket))
		for _, u := range uniqueNonEmpty(urls, identity) {
			if idx.Get([]byte(u)) != nil {
				out[u] = struct{}{}
			}
		}
		return nil
	})
	return out, err
}

func (b *boltStore) AuthorsByNames(ctx context.Context, names []string) ([]domain.Author, error) {
	var out []domain.Author
	err := b.db.View(func(tx *bolt.Tx) error {
		for _, n := range uniqueNonEmpty(names, NameKey) {
			var a domain.Author
			found, err := lookup(tx, authorBucket, authorByNameBucket, []byte(NameKey(n)), &a)
			if err != nil {
				return err
			}
			if found {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}

func (b *boltStore) InsertAuthors(ctx context.Context, names []string) error {
	names = uniqueNonEmpty(names, NameKey)
	if len(names) == 0 {
		return nil
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		idx := tx.Bucket([]byte(authorByNameBucket))
		for _, n := range names {
			key := []byte(NameKey(n))
			if idx.Get(key) != nil {
				continue
			}
			if _, err := insert(tx, authorBucket, authorByNameBucket, key, func(id int64) any {
				return domain.Author{ID: id, Name: n}
			}); err != nil {
				return fmt.Errorf("insert author %q: %w", n, err)
			}
		}
		return nil
	})
}

func (b *boltStore) CategoriesBySlugs(ctx context.Context, slugs []string) ([]domain.Category, error) {
	var out []domain.Category
	err := b.db.View(func(tx *bolt.Tx) error {
		for _, sl := range uniqueNonEmpty(slugs, identity) {
			var c domain.Category
			found, err := lookup(tx, categoryBucket, categoryBySlug, []byte(sl), &c)
			if err != nil {
				return err
			}
			if found {
				out = append(out, c)
			}
		}
		return nil
	})
	return out, err
}

func (b *boltStore) InsertCategories(ctx context.Context, categories []domain.Category) error {
	cats := uniqueCategories(categories)
	if len(cats) == 0 {
		return nil
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		idx := tx.Bucket([]byte(categoryBySlug))
		for _, c := range cats {
			key := []byte(c.Slug)
			if idx.Get(key) != nil {
				continue
			}
			if _, err := insert(tx, categoryBucket, categoryBySlug, key, func(id int64) any {
				c.ID = id
				return c
			}); err != nil {
				return fmt.Errorf("insert category %q: %w", c.Slug, err)
			}
		}
		return nil
	})
}

// BulkInsertArticles writes every row in a single read-write transaction.
// Referencing a missing source, category or author aborts the whole batch.
func (b *boltStore) BulkInsertArticles(ctx context.Context, rows []domain.StoredArticle) ([]string, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	now := b.now()

	var inserted []string
	err := b.db.Update(func(tx *bolt.Tx) error {
		urls := tx.Bucket([]byte(articleByURLBucket))
		for i, r := range rows {
			if i%ChunkSize == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			if err := checkRef(tx, sourceBucket, &r.SourceID); err != nil {
				return fmt.Errorf("article %d: %w", i, err)
			}
			if err := checkRef(tx, categoryBucket, r.CategoryID); err != nil {
				return fmt.Errorf("article %d: %w", i, err)
			}
			if err := checkRef(tx, authorBucket, r.AuthorID); err != nil {
				return fmt.Errorf("article %d: %w", i, err)
			}
			if strings.TrimSpace(r.URL) == "" {
				return fmt.Errorf("article %d: url is required", i)
			}
			if urls.Get([]byte(r.URL)) != nil {
				continue
			}
			if r.CreatedAt.IsZero() {
				r.CreatedAt = now
			}
			if r.UpdatedAt.IsZero() {
				r.UpdatedAt = r.CreatedAt
			}
			if r.PublishedAt != nil && r.PublishedAt.IsZero() {
				r.PublishedAt = nil
			}
			r.SourceName, r.CategoryName, r.AuthorName = "", "", ""
			if _, err := insert(tx, articleBucket, articleByURLBucket, []byte(r.URL), func(id int64) any {
				r.ID = id
				return r
			}); err != nil {
				return err
			}
			inserted = append(inserted, r.URL)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bulk insert articles: %w", err)
	}
	return inserted, nil
}

func checkRef(tx *bolt.Tx, bucket string, id *int64) error {
	if id == nil {
		return nil
	}
	if *id <= 0 || tx.Bucket([]byte(bucket)).Get(itob(uint64(*id))) == nil {
		return fmt.Errorf("%s id %d: %w", bucket, *id, ErrNotFound)
	}
	return nil
}

// SearchArticles scans all articles; the embedded backend targets small archives.
func (b *boltStore) SearchArticles(ctx context.Context, filter domain.ArticleFilter) (domain.ArticlePage, error) {
	f := filter.Normalize()
	kw := strings.ToLower(strings.TrimSpace(f.Keyword))
	sources, categories, authors := idSet(f.SourceIDs), idSet(f.CategoryIDs), idSet(f.AuthorIDs)

	var matches []domain.StoredArticle
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(articleBucket)).ForEach(func(_, v []byte) error {
			var a domain.StoredArticle
			if err := json.Unmarshal(v, &a); err != nil {
				return fmt.Errorf("decode article: %w", err)
			}
			if kw != "" && !containsFold(kw, a.Title, a.Description, a.Content) {
				return nil
			}
			if !f.From.IsZero() && (a.PublishedAt == nil || a.PublishedAt.Before(f.From)) {
				return nil
			}
			if !f.To.IsZero() && (a.PublishedAt == nil || a.PublishedAt.After(f.To)) {
				return nil
			}
			if !inSet(sources, &a.SourceID) || !inSet(categories, a.CategoryID) || !inSet(authors, a.AuthorID) {
				return nil
			}
			matches = append(matches, a)
			return nil
		})
	})
	if err != nil {
		return domain.ArticlePage{}, fmt.Errorf("search articles: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		pi, pj := matches[i].PublishedAt, matches[j].PublishedAt
		switch {
		case pi == nil && pj == nil:
			return matches[i].ID > matches[j].ID
		case pi == nil:
			return false
		case pj == nil:
			return true
		case !pi.Equal(*pj):
			return pi.After(*pj)
		}
		return matches[i].ID > matches[j].ID
	})

	total := len(matches)
	start := min(f.Offset(), total)
	end := min(start+f.PerPage, total)
	page := matches[start:end]

	err = b.db.View(func(tx *bolt.Tx) error {
		for i := range page {
			if err := b.fillNames(tx, &page[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.ArticlePage{}, fmt.Errorf("search articles: %w", err)
	}

	return domain.NewArticlePage(page, total, f), nil
}

func (b *boltStore) fillNames(tx *bolt.Tx, a *domain.StoredArticle) error {
	var src domain.Source
	if _, err := get(tx, sourceBucket, itob(uint64(a.SourceID)), &src); err != nil {
		return err
	}
	a.SourceName = src.Name
	if a.CategoryID != nil {
		var c domain.Category
		if _, err := get(tx, categoryBucket, itob(uint64(*a.CategoryID)), &c); err != nil {
			return err
		}
		a.CategoryName = c.Name
	}
	if a.AuthorID != nil {
		var au domain.Author
		if _, err := get(tx, authorBucket, itob(uint64(*a.AuthorID)), &au); err != nil {
			return err
		}
		a.AuthorName = au.Name
	}
	return nil
}

func idSet(ids []int64) map[int64]struct{} {
	if len(ids) == 0 {
		return nil
	}
	out := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

// inSet reports true for an empty set; otherwise id must be present.
func inSet(set map[int64]struct{}, id *int64) bool {
	if set == nil {
		return true
	}
	if id == nil {
		return false
	}
	_, ok := set[*id]
	return ok
}

func containsFold(needle string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}
