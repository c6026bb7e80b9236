package ingest

import (
	"context"
	"strings"

	"github.com/samvad-hq/samvad-news-ingest/internal/domain"
	"github.com/samvad-hq/samvad-news-ingest/internal/storage"
)

// resolveAuthors maps each distinct author name key to an id, creating missing
// authors in bulk. Names are matched case-insensitively.
func (s *Service) resolveAuthors(ctx context.Context, articles []domain.Article) (map[string]int64, error) {
	var names []string
	seen := map[string]struct{}{}
	for _, a := range articles {
		name := strings.TrimSpace(a.AuthorName)
		if name == "" {
			continue
		}
		key := storage.NameKey(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, name)
	}
	if len(names) == 0 {
		return map[string]int64{}, nil
	}

	ids, err := s.authorIDs(ctx, names)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, n := range names {
		if _, ok := ids[storage.NameKey(n)]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) == 0 {
		return ids, nil
	}

	if err := s.store.InsertAuthors(ctx, missing); err != nil {
		return nil, err
	}
	created, err := s.authorIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	for k, v := range created {
		ids[k] = v
	}
	return ids, nil
}

func (s *Service) authorIDs(ctx context.Context, names []string) (map[string]int64, error) {
	authors, err := s.store.AuthorsByNames(ctx, names)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(authors))
	for _, a := range authors {
		out[storage.NameKey(a.Name)] = a.ID
	}
	return out, nil
}

// resolveCategories maps each distinct category slug to an id, creating missing
// categories with the first display name seen for that slug.
func (s *Service) resolveCategories(ctx context.Context, articles []domain.Article) (map[string]int64, error) {
	var wanted []domain.Category
	seen := map[string]struct{}{}
	for _, a := range articles {
		name := strings.TrimSpace(a.Category)
		slug := Slugify(name)
		if slug == "" {
			continue
		}
		if _, ok := seen[slug]; ok {
			continue
		}
		seen[slug] = struct{}{}
		wanted = append(wanted, domain.Category{Name: name, Slug: slug})
	}
	if len(wanted) == 0 {
		return map[string]int64{}, nil
	}

	slugs := make([]string, len(wanted))
	for i, c := range wanted {
		slugs[i] = c.Slug
	}
	ids, err := s.categoryIDs(ctx, slugs)
	if err != nil {
		return nil, err
	}

	var missing []domain.Category
	for _, c := range wanted {
		if _, ok := ids[c.Slug]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return ids, nil
	}

	if err := s.store.InsertCategories(ctx, missing); err != nil {
		return nil, err
	}
	missingSlugs := make([]string, len(missing))
	for i, c := range missing {
		missingSlugs[i] = c.Slug
	}
	created, err := s.categoryIDs(ctx, missingSlugs)
	if err != nil {
		return nil, err
	}
	for k, v := range created {
		ids[k] = v
	}
	return ids, nil
}

func (s *Service) categoryIDs(ctx context.Context, slugs []string) (map[string]int64, error) {
	cats, err := s.store.CategoriesBySlugs(ctx, slugs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(cats))
	for _, c := range cats {
		out[c.Slug] = c.ID
	}
	return out, nil
}

// buildRows converts canonical articles into rows for the bulk insert.
func buildRows(sourceID int64, articles []domain.Article, authorIDs, categoryIDs map[string]int64) []domain.StoredArticle {
	rows := make([]domain.StoredArticle, 0, len(articles))
	for _, a := range articles {
		r := domain.StoredArticle{
			Title:       a.Title,
			Description: a.Description,
			Content:     a.Content,
			URL:         a.URL,
			ImageURL:    a.ImageURL,
			SourceID:    sourceID,
		}
		if id, ok := authorIDs[storage.NameKey(a.AuthorName)]; ok && strings.TrimSpace(a.AuthorName) != "" {
			r.AuthorID = &id
		}
		if id, ok := categoryIDs[Slugify(a.Category)]; ok {
			r.CategoryID = &id
		}
		if !a.PublishedAt.IsZero() {
			t := a.PublishedAt.UTC()
			r.PublishedAt = &t
		}
		rows = append(rows, r)
	}
	return rows
}
