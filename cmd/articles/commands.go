package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/samvad-hq/samvad-news-ingest/internal/domain"
	"github.com/samvad-hq/samvad-news-ingest/internal/feed"
	"github.com/samvad-hq/samvad-news-ingest/internal/storage"
	"github.com/spf13/pflag"
)

const dateLayout = "2006-01-02"

func searchCommand(fs *pflag.FlagSet) action {
	keyword := fs.String("keyword", "", "match title, description or content")
	from := fs.String("from", "", "earliest publication date (YYYY-MM-DD)")
	to := fs.String("to", "", "latest publication date, inclusive (YYYY-MM-DD)")
	sources := fs.Int64Slice("source", nil, "source ids")
	categories := fs.Int64Slice("category", nil, "category ids")
	authors := fs.Int64Slice("author", nil, "author ids")
	page := fs.Int("page", 1, "page number")
	perPage := fs.Int("per-page", domain.DefaultPerPage, "results per page")

	return func(ctx context.Context, store storage.Store, _ []string, out io.Writer) error {
		filter, err := buildFilter(*keyword, *from, *to)
		if err != nil {
			return err
		}
		filter.SourceIDs = *sources
		filter.CategoryIDs = *categories
		filter.AuthorIDs = *authors
		filter.Page = *page
		filter.PerPage = *perPage

		result, err := store.SearchArticles(ctx, filter)
		if err != nil {
			return fmt.Errorf("search articles: %w", err)
		}
		return printJSON(out, result)
	}
}

func getCommand(*pflag.FlagSet) action {
	return func(ctx context.Context, store storage.Store, args []string, out io.Writer) error {
		id, err := idArg(args, "article")
		if err != nil {
			return err
		}
		a, err := store.ArticleByID(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(out, a)
	}
}

func categoriesCommand(*pflag.FlagSet) action {
	return func(ctx context.Context, store storage.Store, _ []string, out io.Writer) error {
		cats, err := store.Categories(ctx)
		if err != nil {
			return err
		}
		if cats == nil {
			cats = []domain.Category{}
		}
		return printJSON(out, cats)
	}
}

func categoryCommand(*pflag.FlagSet) action {
	return func(ctx context.Context, store storage.Store, args []string, out io.Writer) error {
		id, err := idArg(args, "category")
		if err != nil {
			return err
		}
		c, err := store.CategoryByID(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(out, c)
	}
}

func sourcesCommand(fs *pflag.FlagSet) action {
	activeOnly := fs.Bool("active", false, "only list active sources")

	return func(ctx context.Context, store storage.Store, _ []string, out io.Writer) error {
		all, err := store.Sources(ctx)
		if err != nil {
			return err
		}
		list := make([]domain.Source, 0, len(all))
		for _, s := range all {
			if *activeOnly && !s.IsActive {
				continue
			}
			list = append(list, s)
		}
		return printJSON(out, list)
	}
}

func activateCommand(active bool) func(*pflag.FlagSet) action {
	return func(*pflag.FlagSet) action {
		return func(ctx context.Context, store storage.Store, args []string, out io.Writer) error {
			if len(args) != 1 || args[0] == "" {
				return errors.New("expected exactly one source identifier")
			}
			if err := store.SetSourceActive(ctx, args[0], active); err != nil {
				return err
			}
			return printJSON(out, map[string]any{"api_identifier": args[0], "is_active": active})
		}
	}
}

func feedCommand(fs *pflag.FlagSet) action {
	user := fs.Int64("user", 0, "user id whose preferences drive the feed")
	page := fs.Int("page", 1, "page number")
	perPage := fs.Int("per-page", domain.DefaultPerPage, "results per page")

	return func(ctx context.Context, store storage.Store, _ []string, out io.Writer) error {
		if *user <= 0 {
			return errors.New("--user is required")
		}
		svc, err := feed.NewService(store, nil)
		if err != nil {
			return err
		}
		result, err := svc.Personalized(ctx, *user, *page, *perPage)
		if errors.Is(err, feed.ErrNoPreferences) {
			return fmt.Errorf("%w; save some with `articles prefs set --user %d`", err, *user)
		}
		if err != nil {
			return err
		}
		return printJSON(out, result)
	}
}

func prefsCommand(fs *pflag.FlagSet) action {
	user := fs.Int64("user", 0, "user id")
	sources := fs.Int64Slice("source", nil, "preferred source ids (set)")
	categories := fs.Int64Slice("category", nil, "preferred category ids (set)")
	authors := fs.Int64Slice("author", nil, "preferred author ids (set)")

	return func(ctx context.Context, store storage.Store, args []string, out io.Writer) error {
		if *user <= 0 {
			return errors.New("--user is required")
		}
		op := "show"
		if len(args) > 0 {
			op = args[0]
		}
		switch op {
		case "show":
			p, err := store.Preferences(ctx, *user)
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("no preferences found for user %d", *user)
			}
			if err != nil {
				return err
			}
			return printJSON(out, p)
		case "set":
			p, err := store.SavePreferences(ctx, domain.UserPreference{
				UserID:      *user,
				SourceIDs:   *sources,
				CategoryIDs: *categories,
				AuthorIDs:   *authors,
			})
			if err != nil {
				return err
			}
			return printJSON(out, p)
		case "delete":
			if err := store.DeletePreferences(ctx, *user); err != nil {
				return err
			}
			return printJSON(out, map[string]any{"user_id": *user, "deleted": true})
		default:
			return fmt.Errorf("unknown prefs operation %q (show, set, delete)", op)
		}
	}
}

func idArg(args []string, kind string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected exactly one %s id", kind)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, args[0])
	}
	return id, nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// buildFilter parses the date bounds. The upper bound covers the whole day.
func buildFilter(keyword, from, to string) (domain.ArticleFilter, error) {
	f := domain.ArticleFilter{Keyword: keyword}
	if from != "" {
		t, err := time.ParseInLocation(dateLayout, from, time.UTC)
		if err != nil {
			return f, fmt.Errorf("invalid --from %q: %w", from, err)
		}
		f.From = t
	}
	if to != "" {
		t, err := time.ParseInLocation(dateLayout, to, time.UTC)
		if err != nil {
			return f, fmt.Errorf("invalid --to %q: %w", to, err)
		}
		f.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, fmt.Errorf("--to must not be before --from")
	}
	return f, nil
}
