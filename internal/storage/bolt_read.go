package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/samvad-hq/samvad-news-ingest/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// byID decodes the record stored under id in bucket, or returns ErrNotFound.
func (b *boltStore) byID(bucket, kind string, id int64, out any) error {
	return b.db.View(func(tx *bolt.Tx) error {
		if id <= 0 {
			return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
		}
		found, err := get(tx, bucket, itob(uint64(id)), out)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
		}
		return nil
	})
}

func (b *boltStore) SourceByID(ctx context.Context, id int64) (domain.Source, error) {
	var src domain.Source
	if err := b.byID(sourceBucket, "source", id, &src); err != nil {
		return domain.Source{}, err
	}
	return src, nil
}

func (b *boltStore) CategoryByID(ctx context.Context, id int64) (domain.Category, error) {
	var c domain.Category
	if err := b.byID(categoryBucket, "category", id, &c); err != nil {
		return domain.Category{}, err
	}
	return c, nil
}

func (b *boltStore) Categories(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(categoryBucket)).ForEach(func(_, v []byte) error {
			var c domain.Category
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("decode category: %w", err)
			}
			out = append(out, c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (b *boltStore) ArticleByID(ctx context.Context, id int64) (domain.StoredArticle, error) {
	var a domain.StoredArticle
	err := b.db.View(func(tx *bolt.Tx) error {
		found := false
		if id > 0 {
			var err error
			if found, err = get(tx, articleBucket, itob(uint64(id)), &a); err != nil {
				return err
			}
		}
		if !found {
			return fmt.Errorf("article %d: %w", id, ErrNotFound)
		}
		return b.fillNames(tx, &a)
	})
	if err != nil {
		return domain.StoredArticle{}, err
	}
	return a, nil
}

func (b *boltStore) Preferences(ctx context.Context, userID int64) (domain.UserPreference, error) {
	var p domain.UserPreference
	if err := b.byID(preferenceBucket, "preferences for user", userID, &p); err != nil {
		return domain.UserPreference{}, err
	}
	return p, nil
}

// SavePreferences validates every referenced id inside the write transaction.
func (b *boltStore) SavePreferences(ctx context.Context, pref domain.UserPreference) (domain.UserPreference, error) {
	p, err := normalizePreference(pref)
	if err != nil {
		return domain.UserPreference{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.UserPreference{}, err
	}

	err = b.db.Update(func(tx *bolt.Tx) error {
		for _, ref := range []struct {
			bucket, kind string
			ids          []int64
		}{
			{sourceBucket, "source", p.SourceIDs},
			{categoryBucket, "category", p.CategoryIDs},
			{authorBucket, "author", p.AuthorIDs},
		} {
			for _, id := range ref.ids {
				if tx.Bucket([]byte(ref.bucket)).Get(itob(uint64(id))) == nil {
					return fmt.Errorf("%s id %d: %w", ref.kind, id, ErrInvalidReference)
				}
			}
		}

		key := itob(uint64(p.UserID))
		var existing domain.UserPreference
		found, err := get(tx, preferenceBucket, key, &existing)
		if err != nil {
			return err
		}
		now := b.now()
		p.CreatedAt, p.UpdatedAt = now, now
		if found {
			p.CreatedAt = existing.CreatedAt
		}
		raw, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode preferences: %w", err)
		}
		return tx.Bucket([]byte(preferenceBucket)).Put(key, raw)
	})
	if err != nil {
		return domain.UserPreference{}, fmt.Errorf("save preferences for user %d: %w", p.UserID, err)
	}
	return p, nil
}

func (b *boltStore) DeletePreferences(ctx context.Context, userID int64) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(preferenceBucket))
		key := itob(uint64(userID))
		if userID <= 0 || bkt.Get(key) == nil {
			return fmt.Errorf("preferences for user %d: %w", userID, ErrNotFound)
		}
		return bkt.Delete(key)
	})
}
