package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/samvad-hq/samvad-news-ingest/internal/domain"
)

// searchWhere renders the filter as a WHERE clause and its arguments.
func (s *sqlStore) searchWhere(f domain.ArticleFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)

	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		if s.dialect == dialectPostgres {
			conds = append(conds, `a.search_vector @@ plainto_tsquery('english', ?)`)
			args = append(args, kw)
		} else {
			like := "%" + strings.ToLower(kw) + "%"
			conds = append(conds, `(lower(a.title) LIKE ? OR lower(coalesce(a.description, '')) LIKE ? OR lower(coalesce(a.content, '')) LIKE ?)`)
			args = append(args, like, like, like)
		}
	}
	if !f.From.IsZero() {
		conds = append(conds, `a.published_at >= ?`)
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		conds = append(conds, `a.published_at <= ?`)
		args = append(args, f.To.UTC())
	}
	addIDs := func(col string, ids []int64) {
		if len(ids) == 0 {
			return
		}
		conds = append(conds, col+` IN (`+placeholders(len(ids))+`)`)
		for _, id := range ids {
			args = append(args, id)
		}
	}
	addIDs("a.source_id", f.SourceIDs)
	addIDs("a.category_id", f.CategoryIDs)
	addIDs("a.author_id", f.AuthorIDs)

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *sqlStore) SearchArticles(ctx context.Context, filter domain.ArticleFilter) (domain.ArticlePage, error) {
	f := filter.Normalize()
	where, args := s.searchWhere(f)

	var total int
	if err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM articles a`+where), args...).Scan(&total); err != nil {
		return domain.ArticlePage{}, fmt.Errorf("count articles: %w", err)
	}

	query := articleSelect + where + `
		ORDER BY a.published_at DESC NULLS LAST, a.id DESC
		LIMIT ? OFFSET ?`
	pageArgs := append(append([]any{}, args...), f.PerPage, f.Offset())

	items := make([]domain.StoredArticle, 0, f.PerPage)
	err := s.collect(ctx, query, pageArgs, func(rows *sql.Rows) error {
		a, err := scanArticle(rows)
		if err != nil {
			return err
		}
		items = append(items, a)
		return nil
	})
	if err != nil {
		return domain.ArticlePage{}, fmt.Errorf("search articles: %w", err)
	}

	return domain.NewArticlePage(items, total, f), nil
}

func (s *sqlStore) ArticleByID(ctx context.Context, id int64) (domain.StoredArticle, error) {
	a, err := scanArticle(s.db.QueryRowContext(ctx, s.rebind(articleSelect+` WHERE a.id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StoredArticle{}, fmt.Errorf("article %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.StoredArticle{}, fmt.Errorf("select article %d: %w", id, err)
	}
	return a, nil
}

const articleSelect = `SELECT a.id, a.title, a.description, a.content, a.url, a.image_url,
			a.source_id, a.category_id, a.author_id, a.published_at, a.created_at, a.updated_at,
			coalesce(src.name, ''), coalesce(c.name, ''), coalesce(au.name, '')
		FROM articles a
		LEFT JOIN sources src ON src.id = a.source_id
		LEFT JOIN categories c ON c.id = a.category_id
		LEFT JOIN authors au ON au.id = a.author_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (domain.StoredArticle, error) {
	var (
		a                    domain.StoredArticle
		desc, content, image sql.NullString
		categoryID, authorID sql.NullInt64
		published            sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.Title, &desc, &content, &a.URL, &image,
		&a.SourceID, &categoryID, &authorID, &published, &a.CreatedAt, &a.UpdatedAt,
		&a.SourceName, &a.CategoryName, &a.AuthorName); err != nil {
		return domain.StoredArticle{}, err
	}
	a.Description, a.Content, a.ImageURL = desc.String, content.String, image.String
	if categoryID.Valid {
		id := categoryID.Int64
		a.CategoryID = &id
	}
	if authorID.Valid {
		id := authorID.Int64
		a.AuthorID = &id
	}
	if published.Valid {
		t := published.Time.UTC()
		a.PublishedAt = &t
	}
	return a, nil
}
