package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/samvad-hq/samvad-news-ingest/internal/domain"
	"github.com/samvad-hq/samvad-news-ingest/internal/logger"
	"github.com/samvad-hq/samvad-news-ingest/internal/storage"
)

// ErrNoPreferences is returned when a user has not saved any source, category
// or author to follow.
var ErrNoPreferences = errors.New("no preferences set")

// Store is the read side of storage.Store the feed depends on.
type Store interface {
	Preferences(ctx context.Context, userID int64) (domain.UserPreference, error)
	SearchArticles(ctx context.Context, filter domain.ArticleFilter) (domain.ArticlePage, error)
}

// Service builds personalized article feeds from stored preferences.
type Service struct {
	store Store
	log   logger.Logger
}

func NewService(store Store, log logger.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("feed service requires a store")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Service{store: store, log: log}, nil
}

// Personalized returns one page of articles restricted to the user's preferred
// sources, categories and authors. Dimensions without preferences are not
// filtered. It returns ErrNoPreferences when nothing is preferred at all.
func (s *Service) Personalized(ctx context.Context, userID int64, page, perPage int) (domain.ArticlePage, error) {
	pref, err := s.store.Preferences(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.ArticlePage{}, fmt.Errorf("user %d: %w", userID, ErrNoPreferences)
	}
	if err != nil {
		return domain.ArticlePage{}, fmt.Errorf("load preferences: %w", err)
	}
	if pref.IsEmpty() {
		return domain.ArticlePage{}, fmt.Errorf("user %d: %w", userID, ErrNoPreferences)
	}

	result, err := s.store.SearchArticles(ctx, pref.Filter(page, perPage))
	if err != nil {
		return domain.ArticlePage{}, fmt.Errorf("search personalized feed: %w", err)
	}
	s.log.DebugObj("personalized feed served", "feed_meta", map[string]any{
		"user_id":    userID,
		"sources":    len(pref.SourceIDs),
		"categories": len(pref.CategoryIDs),
		"authors":    len(pref.AuthorIDs),
		"total":      result.Total,
		"page":       result.Page,
	})
	return result, nil
}
