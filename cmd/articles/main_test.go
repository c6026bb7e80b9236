package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-news-ingest/internal/domain"
	"github.com/samvad-hq/samvad-news-ingest/internal/feed"
	"github.com/samvad-hq/samvad-news-ingest/internal/storage"
	"github.com/stretchr/testify/require"
)

func TestBuildFilterDateBounds(t *testing.T) {
	f, err := buildFilter("climate", "2024-03-01", "2024-03-02")
	if err != nil {
		t.Fatalf("buildFilter: %v", err)
	}
	if f.Keyword != "climate" {
		t.Fatalf("keyword lost: %q", f.Keyword)
	}
	if !f.From.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected from %v", f.From)
	}
	if !f.To.Equal(time.Date(2024, 3, 2, 23, 59, 59, 999999999, time.UTC)) {
		t.Fatalf("to must cover the whole day, got %v", f.To)
	}
}

func TestBuildFilterRejectsBadInput(t *testing.T) {
	if _, err := buildFilter("", "03/01/2024", ""); err == nil {
		t.Fatalf("expected error for malformed date")
	}
	if _, err := buildFilter("", "2024-03-05", "2024-03-01"); err == nil {
		t.Fatalf("expected error for inverted range")
	}
	f, err := buildFilter("", "", "")
	if err != nil || !f.From.IsZero() || !f.To.IsZero() {
		t.Fatalf("empty bounds should stay zero: %#v %v", f, err)
	}
}

func openStore(t *testing.T) storage.Store {
	t.Helper()
	s, err := storage.NewStore(context.Background(), storage.Options{Type: "sqlite", Path: filepath.Join(t.TempDir(), "news.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func execute(t *testing.T, store storage.Store, args ...string) (string, error) {
	t.Helper()
	fs, act, err := prepare(args)
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	err = act(context.Background(), store, fs.Args(), &out)
	return out.String(), err
}

func seed(t *testing.T, store storage.Store) (domain.Source, domain.Category) {
	t.Helper()
	ctx := context.Background()
	src, err := store.FirstOrCreateSource(ctx, "guardian", domain.Source{Name: "The Guardian", IsActive: true})
	require.NoError(t, err)
	require.NoError(t, store.InsertCategories(ctx, []domain.Category{{Name: "World", Slug: "world"}}))
	cats, err := store.CategoriesBySlugs(ctx, []string{"world"})
	require.NoError(t, err)
	published := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	_, err = store.BulkInsertArticles(ctx, []domain.StoredArticle{
		{Title: "Summit", URL: "https://g.test/summit", SourceID: src.ID, CategoryID: &cats[0].ID, PublishedAt: &published},
		{Title: "Other", URL: "https://g.test/other", SourceID: src.ID, PublishedAt: &published},
	})
	require.NoError(t, err)
	return src, cats[0]
}

func TestPrepareDefaultsToSearch(t *testing.T) {
	store := openStore(t)
	seed(t, store)

	out, err := execute(t, store, "--keyword", "summit")
	require.NoError(t, err)
	var page domain.ArticlePage
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Equal(t, 1, page.Total)

	_, err = execute(t, store, "publish")
	require.Error(t, err)
}

func TestGetAndCategoryCommands(t *testing.T) {
	store := openStore(t)
	_, world := seed(t, store)

	out, err := execute(t, store, "search", "--category", strconv.FormatInt(world.ID, 10))
	require.NoError(t, err)
	var page domain.ArticlePage
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Len(t, page.Items, 1)

	out, err = execute(t, store, "get", strconv.FormatInt(page.Items[0].ID, 10))
	require.NoError(t, err)
	var a domain.StoredArticle
	require.NoError(t, json.Unmarshal([]byte(out), &a))
	require.Equal(t, "The Guardian", a.SourceName)
	require.Equal(t, "World", a.CategoryName)

	_, err = execute(t, store, "get", "999")
	require.True(t, errors.Is(err, storage.ErrNotFound))
	_, err = execute(t, store, "get", "abc")
	require.Error(t, err)

	out, err = execute(t, store, "categories")
	require.NoError(t, err)
	require.Contains(t, out, `"slug": "world"`)

	out, err = execute(t, store, "category", strconv.FormatInt(world.ID, 10))
	require.NoError(t, err)
	require.Contains(t, out, `"name": "World"`)
}

func TestSourceActivationCommands(t *testing.T) {
	store := openStore(t)
	seed(t, store)

	_, err := execute(t, store, "deactivate", "guardian")
	require.NoError(t, err)
	out, err := execute(t, store, "sources", "--active")
	require.NoError(t, err)
	require.JSONEq(t, `[]`, out)

	_, err = execute(t, store, "activate", "guardian")
	require.NoError(t, err)
	out, err = execute(t, store, "sources", "--active")
	require.NoError(t, err)
	require.Contains(t, out, `"api_identifier": "guardian"`)

	_, err = execute(t, store, "activate", "bbc")
	require.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestPrefsAndFeedCommands(t *testing.T) {
	store := openStore(t)
	_, world := seed(t, store)
	worldID := strconv.FormatInt(world.ID, 10)

	_, err := execute(t, store, "feed", "--user", "3")
	require.True(t, errors.Is(err, feed.ErrNoPreferences))
	_, err = execute(t, store, "prefs", "show", "--user", "3")
	require.Error(t, err)

	_, err = execute(t, store, "prefs", "set", "--user", "3", "--category", worldID)
	require.NoError(t, err)
	out, err := execute(t, store, "prefs", "--user", "3")
	require.NoError(t, err)
	var pref domain.UserPreference
	require.NoError(t, json.Unmarshal([]byte(out), &pref))
	require.Equal(t, []int64{world.ID}, pref.CategoryIDs)

	out, err = execute(t, store, "feed", "--user", "3")
	require.NoError(t, err)
	var page domain.ArticlePage
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Equal(t, 1, page.Total)
	require.Equal(t, "https://g.test/summit", page.Items[0].URL)

	_, err = execute(t, store, "prefs", "set", "--user", "3", "--author", "77")
	require.True(t, errors.Is(err, storage.ErrInvalidReference))

	_, err = execute(t, store, "prefs", "delete", "--user", "3")
	require.NoError(t, err)
	_, err = execute(t, store, "feed", "--user", "3")
	require.True(t, errors.Is(err, feed.ErrNoPreferences))

	_, err = execute(t, store, "feed")
	require.Error(t, err)
}
