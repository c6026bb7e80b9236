package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/samvad-hq/samvad-news-ingest/internal/domain"
	_ "modernc.org/sqlite"
)

// sqlStore implements Store over database/sql for SQLite and PostgreSQL.
// Queries are written with ? placeholders and rebound for postgres.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

func openSQLite(ctx context.Context, path string) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer; the pragmas above apply per connection.
	db.SetMaxOpenConns(1)

	return initSQLStore(ctx, db, dialectSQLite)
}

func openPostgres(ctx context.Context, url string) (Store, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return initSQLStore(ctx, db, dialectPostgres)
}

func initSQLStore(ctx context.Context, db *sql.DB, d dialect) (Store, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", d, err)
	}
	for _, stmt := range d.schema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate %s: %w", d, err)
		}
	}
	return &sqlStore{db: db, dialect: d, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *sqlStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func (s *sqlStore) FirstOrCreateSource(ctx context.Context, identifier string, defaults domain.Source) (domain.Source, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return domain.Source{}, errors.New("source identifier is empty")
	}
	name := strings.TrimSpace(defaults.Name)
	if name == "" {
		name = identifier
	}

	now := s.now()
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO sources (api_identifier, name, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT (api_identifier) DO NOTHING`),
		identifier, name, defaults.IsActive, now, now)
	if err != nil {
		return domain.Source{}, fmt.Errorf("insert source %q: %w", identifier, err)
	}
	return s.sourceByIdentifier(ctx, identifier)
}

func (s *sqlStore) sourceByIdentifier(ctx context.Context, identifier string) (domain.Source, error) {
	var src domain.Source
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, api_identifier, name, is_active, created_at, updated_at
		 FROM sources WHERE api_identifier = ?`), identifier).
		Scan(&src.ID, &src.APIIdentifier, &src.Name, &src.IsActive, &src.CreatedAt, &src.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Source{}, fmt.Errorf("source %q: %w", identifier, ErrNotFound)
	}
	if err != nil {
		return domain.Source{}, fmt.Errorf("select source %q: %w", identifier, err)
	}
	return src, nil
}

func (s *sqlStore) SetSourceActive(ctx context.Context, identifier string, active bool) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE sources SET is_active = ?, updated_at = ? WHERE api_identifier = ?`),
		active, s.now(), strings.TrimSpace(identifier))
	if err != nil {
		return fmt.Errorf("update source %q: %w", identifier, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("source %q: %w", identifier, ErrNotFound)
	}
	return nil
}

func (s *sqlStore) Sources(ctx context.Context) ([]domain.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, api_identifier, name, is_active, created_at, updated_at FROM sources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select sources: %w", err)
	}
	defer rows.Close()

	var out []domain.Source
	for rows.Next() {
		var src domain.Source
		if err := rows.Scan(&src.ID, &src.APIIdentifier, &src.Name, &src.IsActive, &src.CreatedAt, &src.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

func (s *sqlStore) SourceByID(ctx context.Context, id int64) (domain.Source, error) {
	var src domain.Source
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, api_identifier, name, is_active, created_at, updated_at
		 FROM sources WHERE id = ?`), id).
		Scan(&src.ID, &src.APIIdentifier, &src.Name, &src.IsActive, &src.CreatedAt, &src.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Source{}, fmt.Errorf("source %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Source{}, fmt.Errorf("select source %d: %w", id, err)
	}
	return src, nil
}

func (s *sqlStore) ExistingURLs(ctx context.Context, urls []string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for _, chunk := range chunkStrings(uniqueNonEmpty(urls, identity), ChunkSize) {
		args := make([]any, len(chunk))
		for i, u := range chunk {
			args[i] = u
		}
		err := s.collect(ctx, `SELECT url FROM articles WHERE url IN (`+placeholders(len(chunk))+`)`, args, func(rows *sql.Rows) error {
			var u string
			if err := rows.Scan(&u); err != nil {
				return err
			}
			out[u] = struct{}{}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("select existing urls: %w", err)
		}
	}
	return out, nil
}

func (s *sqlStore) AuthorsByNames(ctx context.Context, names []string) ([]domain.Author, error) {
	keys := make([]string, 0, len(names))
	for _, n := range uniqueNonEmpty(names, NameKey) {
		keys = append(keys, NameKey(n))
	}

	var out []domain.Author
	for _, chunk := range chunkStrings(keys, ChunkSize) {
		args := make([]any, len(chunk))
		for i, k := range chunk {
			args[i] = k
		}
		err := s.collect(ctx, `SELECT id, name, email FROM authors WHERE name_key IN (`+placeholders(len(chunk))+`)`, args, func(rows *sql.Rows) error {
			var (
				a     domain.Author
				email sql.NullString
			)
			if err := rows.Scan(&a.ID, &a.Name, &email); err != nil {
				return err
			}
			a.Email = email.String
			out = append(out, a)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("select authors: %w", err)
		}
	}
	return out, nil
}

func (s *sqlStore) InsertAuthors(ctx context.Context, names []string) error {
	names = uniqueNonEmpty(names, NameKey)
	if len(names) == 0 {
		return nil
	}
	now := s.now()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, chunk := range chunkStrings(names, ChunkSize) {
			var b strings.Builder
			b.WriteString(`INSERT INTO authors (name, name_key, email, created_at, updated_at) VALUES `)
			args := make([]any, 0, len(chunk)*4)
			for i, n := range chunk {
				if i > 0 {
					b.WriteByte(',')
				}
				b.WriteString(`(?, ?, NULL, ?, ?)`)
				args = append(args, n, NameKey(n), now, now)
			}
			b.WriteString(` ON CONFLICT (name_key) DO NOTHING`)
			if _, err := tx.ExecContext(ctx, s.rebind(b.String()), args...); err != nil {
				return fmt.Errorf("insert authors: %w", err)
			}
		}
		return nil
	})
}

func (s *sqlStore) CategoriesBySlugs(ctx context.Context, slugs []string) ([]domain.Category, error) {
	var out []domain.Category
	for _, chunk := range chunkStrings(uniqueNonEmpty(slugs, identity), ChunkSize) {
		args := make([]any, len(chunk))
		for i, sl := range chunk {
			args[i] = sl
		}
		err := s.collect(ctx, `SELECT id, name, slug FROM categories WHERE slug IN (`+placeholders(len(chunk))+`)`, args, func(rows *sql.Rows) error {
			var c domain.Category
			if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
				return err
			}
			out = append(out, c)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("select categories: %w", err)
		}
	}
	return out, nil
}

func (s *sqlStore) Categories(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	err := s.collect(ctx, `SELECT id, name, slug FROM categories ORDER BY name, id`, nil, func(rows *sql.Rows) error {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("select categories: %w", err)
	}
	return out, nil
}

func (s *sqlStore) CategoryByID(ctx context.Context, id int64) (domain.Category, error) {
	var c domain.Category
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, name, slug FROM categories WHERE id = ?`), id).
		Scan(&c.ID, &c.Name, &c.Slug)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Category{}, fmt.Errorf("category %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Category{}, fmt.Errorf("select category %d: %w", id, err)
	}
	return c, nil
}

func (s *sqlStore) InsertCategories(ctx context.Context, categories []domain.Category) error {
	cats := uniqueCategories(categories)
	if len(cats) == 0 {
		return nil
	}
	now := s.now()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for start := 0; start < len(cats); start += ChunkSize {
			end := min(start+ChunkSize, len(cats))
			var b strings.Builder
			b.WriteString(`INSERT INTO categories (name, slug, created_at, updated_at) VALUES `)
			args := make([]any, 0, (end-start)*4)
			for i, c := range cats[start:end] {
				if i > 0 {
					b.WriteByte(',')
				}
				b.WriteString(`(?, ?, ?, ?)`)
				args = append(args, c.Name, c.Slug, now, now)
			}
			b.WriteString(` ON CONFLICT (slug) DO NOTHING`)
			if _, err := tx.ExecContext(ctx, s.rebind(b.String()), args...); err != nil {
				return fmt.Errorf("insert categories: %w", err)
			}
		}
		return nil
	})
}

const articleColumns = 11

func (s *sqlStore) BulkInsertArticles(ctx context.Context, rows []domain.StoredArticle) ([]string, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	now := s.now()

	var inserted []string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for start := 0; start < len(rows); start += ChunkSize {
			end := min(start+ChunkSize, len(rows))
			var b strings.Builder
			b.WriteString(`INSERT INTO articles (title, description, content, url, image_url,
				source_id, category_id, author_id, published_at, created_at, updated_at) VALUES `)
			args := make([]any, 0, (end-start)*articleColumns)
			for i, r := range rows[start:end] {
				if i > 0 {
					b.WriteByte(',')
				}
				b.WriteString(`(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
				created, updated := r.CreatedAt, r.UpdatedAt
				if created.IsZero() {
					created = now
				}
				if updated.IsZero() {
					updated = created
				}
				args = append(args,
					r.Title, nullString(r.Description), nullString(r.Content), r.URL, nullString(r.ImageURL),
					r.SourceID, nullInt(r.CategoryID), nullInt(r.AuthorID), nullTime(r.PublishedAt), created.UTC(), updated.UTC())
			}
			// RETURNING yields only the rows that survived ON CONFLICT.
			b.WriteString(` ON CONFLICT (url) DO NOTHING RETURNING url`)

			urls, err := returnedURLs(ctx, tx, s.rebind(b.String()), args)
			if err != nil {
				return fmt.Errorf("insert articles chunk at %d: %w", start, err)
			}
			inserted = append(inserted, urls...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

func returnedURLs(ctx context.Context, tx *sql.Tx, query string, args []any) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *sqlStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// collect runs query and hands each row to fn, closing rows before returning.
func (s *sqlStore) collect(ctx context.Context, query string, args []any, fn func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC()
}

func uniqueCategories(in []domain.Category) []domain.Category {
	seen := make(map[string]struct{}, len(in))
	out := make([]domain.Category, 0, len(in))
	for _, c := range in {
		c.Slug = strings.TrimSpace(c.Slug)
		c.Name = strings.TrimSpace(c.Name)
		if c.Slug == "" {
			continue
		}
		if _, ok := seen[c.Slug]; ok {
			continue
		}
		seen[c.Slug] = struct{}{}
		if c.Name == "" {
			c.Name = c.Slug
		}
		out = append(out, c)
	}
	return out
}
