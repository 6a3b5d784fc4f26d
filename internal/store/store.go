// Package store persists the options collection in SQLite, one row per key.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"switchpac/internal/logger"
	"switchpac/internal/model"
	"switchpac/internal/profiles"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Load reads every row back into an options collection.
func (s *Store) Load(ctx context.Context) (profiles.Options, error) {
	var rows []model.Option
	if err := s.db.WithContext(ctx).Order("`key`").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load options: %w", err)
	}

	opts := make(profiles.Options, len(rows))
	for _, row := range rows {
		if !profiles.IsProfileKey(row.Key) {
			opts[row.Key] = json.RawMessage(row.Value)
			continue
		}
		p, err := profiles.Decode([]byte(row.Value))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", row.Key, err)
		}
		if profiles.NameOf(p) == "" {
			p.Common().Name = row.Key[1:]
		}
		opts[row.Key] = p
	}
	return opts, nil
}

// Get returns the raw JSON stored under key, or nil when absent.
func (s *Store) Get(ctx context.Context, key string) (json.RawMessage, error) {
	var row model.Option
	err := s.db.WithContext(ctx).Where("`key` = ?", key).Limit(1).Find(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if row.Key == "" {
		return nil, nil
	}
	return json.RawMessage(row.Value), nil
}

// Save replaces the stored collection with opts.
func (s *Store) Save(ctx context.Context, opts profiles.Options) error {
	rows, err := encode(opts)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, r.Key)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		del := tx.Where("1 = 1")
		if len(keys) > 0 {
			del = tx.Where("`key` NOT IN ?", keys)
		}
		if err := del.Delete(&model.Option{}).Error; err != nil {
			return fmt.Errorf("failed to prune options: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(rows, 100).Error; err != nil {
			return fmt.Errorf("failed to save options: %w", err)
		}
		logger.L().Debugf("saved %d option rows", len(rows))
		return nil
	})
}

// Put stores a single entry. Profile entries are validated before writing.
func (s *Store) Put(ctx context.Context, key string, raw json.RawMessage) error {
	if profiles.IsProfileKey(key) {
		if _, err := profiles.Decode(raw); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	} else if !json.Valid(raw) {
		return fmt.Errorf("%s: invalid json value", key)
	}
	row := model.Option{Key: key, Value: string(raw), UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// PutProfile stores p under its key.
func (s *Store) PutProfile(ctx context.Context, p profiles.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode %s: %w", profiles.NameOf(p), err)
	}
	return s.Put(ctx, profiles.Key(profiles.NameOf(p)), data)
}

// Delete removes key and reports whether it existed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	res := s.db.WithContext(ctx).Where("`key` = ?", key).Delete(&model.Option{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete %s: %w", key, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ImportJSON replaces the stored collection with the JSON object read from
// r and returns the number of profiles imported.
func (s *Store) ImportJSON(ctx context.Context, r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read options: %w", err)
	}
	opts, err := profiles.DecodeOptions(data)
	if err != nil {
		return 0, err
	}
	if err := s.Save(ctx, opts); err != nil {
		return 0, err
	}
	return opts.Len(), nil
}

// ExportJSON writes the stored collection as one indented JSON object.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer) error {
	opts, err := s.Load(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]any(opts)); err != nil {
		return fmt.Errorf("failed to write options: %w", err)
	}
	return nil
}

// RecordFetch remembers the outcome of downloading a profile's source.
func (s *Store) RecordFetch(ctx context.Context, f model.Fetch) error {
	if f.FetchedAt.IsZero() {
		f.FetchedAt = time.Now()
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&f).Error
	if err != nil {
		return fmt.Errorf("failed to record fetch: %w", err)
	}
	return nil
}

// Fetches returns the recorded downloads ordered by profile name.
func (s *Store) Fetches(ctx context.Context) ([]model.Fetch, error) {
	var out []model.Fetch
	if err := s.db.WithContext(ctx).Order("profile_name").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to load fetches: %w", err)
	}
	return out, nil
}

func encode(opts profiles.Options) ([]model.Option, error) {
	now := time.Now()
	rows := make([]model.Option, 0, len(opts))
	for k, v := range opts {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", k, err)
		}
		rows = append(rows, model.Option{Key: k, Value: string(data), UpdatedAt: now})
	}
	return rows, nil
}
