package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/samvad-hq/samvad-news-ingest/internal/domain"
)

// Preference id lists are stored as JSON arrays in TEXT columns on both dialects.

func (s *sqlStore) Preferences(ctx context.Context, userID int64) (domain.UserPreference, error) {
	var (
		p                  domain.UserPreference
		sources, cats, aus string
	)
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT user_id, preferred_sources, preferred_categories, preferred_authors, created_at, updated_at
		 FROM user_preferences WHERE user_id = ?`), userID).
		Scan(&p.UserID, &sources, &cats, &aus, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserPreference{}, fmt.Errorf("preferences for user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return domain.UserPreference{}, fmt.Errorf("select preferences for user %d: %w", userID, err)
	}
	for _, f := range []struct {
		raw string
		dst *[]int64
	}{{sources, &p.SourceIDs}, {cats, &p.CategoryIDs}, {aus, &p.AuthorIDs}} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return domain.UserPreference{}, fmt.Errorf("decode preferences for user %d: %w", userID, err)
		}
	}
	return p, nil
}

func (s *sqlStore) SavePreferences(ctx context.Context, pref domain.UserPreference) (domain.UserPreference, error) {
	p, err := normalizePreference(pref)
	if err != nil {
		return domain.UserPreference{}, err
	}
	sources, err := json.Marshal(p.SourceIDs)
	if err != nil {
		return domain.UserPreference{}, err
	}
	cats, err := json.Marshal(p.CategoryIDs)
	if err != nil {
		return domain.UserPreference{}, err
	}
	aus, err := json.Marshal(p.AuthorIDs)
	if err != nil {
		return domain.UserPreference{}, err
	}

	now := s.now()
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.checkIDs(ctx, tx, "sources", "source", p.SourceIDs); err != nil {
			return err
		}
		if err := s.checkIDs(ctx, tx, "categories", "category", p.CategoryIDs); err != nil {
			return err
		}
		if err := s.checkIDs(ctx, tx, "authors", "author", p.AuthorIDs); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO user_preferences
				(user_id, preferred_sources, preferred_categories, preferred_authors, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (user_id) DO UPDATE SET
				preferred_sources = excluded.preferred_sources,
				preferred_categories = excluded.preferred_categories,
				preferred_authors = excluded.preferred_authors,
				updated_at = excluded.updated_at`),
			p.UserID, string(sources), string(cats), string(aus), now, now)
		if err != nil {
			return fmt.Errorf("upsert preferences for user %d: %w", p.UserID, err)
		}
		return nil
	})
	if err != nil {
		return domain.UserPreference{}, err
	}
	return s.Preferences(ctx, p.UserID)
}

func (s *sqlStore) DeletePreferences(ctx context.Context, userID int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM user_preferences WHERE user_id = ?`), userID)
	if err != nil {
		return fmt.Errorf("delete preferences for user %d: %w", userID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("preferences for user %d: %w", userID, ErrNotFound)
	}
	return nil
}

// checkIDs fails with ErrInvalidReference on the first id missing from table.
func (s *sqlStore) checkIDs(ctx context.Context, tx *sql.Tx, table, kind string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := tx.QueryContext(ctx, s.rebind(`SELECT id FROM `+table+` WHERE id IN (`+placeholders(len(ids))+`)`), args...)
	if err != nil {
		return fmt.Errorf("select %s ids: %w", kind, err)
	}
	defer rows.Close()

	found := make(map[int64]struct{}, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		found[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return fmt.Errorf("%s id %d: %w", kind, id, ErrInvalidReference)
		}
	}
	return nil
}
