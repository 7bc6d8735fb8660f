// Package store implements the persisted document store backing every
// other component. Values are JSON documents addressed by string keys;
// each key is an independent row, so a torn write on one key never
// affects its siblings.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase = errors.New("store: database handle is required")
	// ErrEmptyKey indicates a caller supplied a blank document key.
	ErrEmptyKey = errors.New("store: document key is required")
)

// Document is the persisted row holding one JSON-encoded value.
type Document struct {
	Key              string `gorm:"column:doc_key;primaryKey;size:190;not null"`
	PayloadJSON      string `gorm:"column:payload_json;type:text;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Document) TableName() string {
	return "documents"
}

// ServiceConfig describes the dependencies required by the store.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Store provides keyed access to JSON documents.
type Store struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewStore constructs the document store.
func NewStore(cfg ServiceConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:     cfg.Database,
		clock:  clock,
		logger: logger,
	}, nil
}

// Get returns the raw document stored under key. The second return is
// false when the key is absent.
func (s *Store) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}
	var document Document
	err := s.db.WithContext(ctx).Where("doc_key = ?", key).Take(&document).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: get %q: %w", key, err)
	}
	return json.RawMessage(document.PayloadJSON), true, nil
}

// Set writes the raw JSON payload under key, replacing any prior value.
func (s *Store) Set(ctx context.Context, key string, payload json.RawMessage) error {
	if key == "" {
		return ErrEmptyKey
	}
	return s.upsert(s.db.WithContext(ctx), key, payload)
}

// Remove deletes the document stored under key. Removing an absent key
// is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := s.db.WithContext(ctx).Where("doc_key = ?", key).Delete(&Document{}).Error; err != nil {
		return fmt.Errorf("store: remove %q: %w", key, err)
	}
	return nil
}

// Load decodes the document stored under key into out. A missing key
// leaves out untouched, so callers receive their zero/empty shape.
func (s *Store) Load(ctx context.Context, key string, out any) error {
	raw, found, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("store: decode %q: %w", key, err)
	}
	return nil
}

// Save encodes value as JSON and writes it under key.
func (s *Store) Save(ctx context.Context, key string, value any) error {
	if key == "" {
		return ErrEmptyKey
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: encode %q: %w", key, err)
	}
	return s.upsert(s.db.WithContext(ctx), key, payload)
}

// Update applies mutate to the document under key inside a single
// transaction, serializing racing read-modify-write sequences on the
// same key. mutate receives nil when the key is absent and returns the
// replacement value to persist.
func (s *Store) Update(ctx context.Context, key string, mutate func(raw json.RawMessage) (any, error)) error {
	if key == "" {
		return ErrEmptyKey
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var document Document
		var raw json.RawMessage
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("doc_key = ?", key).
			Take(&document).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("store: update read %q: %w", key, err)
		}
		if err == nil {
			raw = json.RawMessage(document.PayloadJSON)
		}

		value, err := mutate(raw)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("store: encode %q: %w", key, err)
		}
		return s.upsert(tx, key, payload)
	})
}

// Keys lists every stored key with the given prefix, ordered
// lexicographically. An empty prefix lists all keys.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	query := s.db.WithContext(ctx).Model(&Document{}).Order("doc_key")
	if prefix != "" {
		query = query.Where("doc_key LIKE ?", prefix+"%")
	}
	if err := query.Pluck("doc_key", &keys).Error; err != nil {
		return nil, fmt.Errorf("store: list keys %q: %w", prefix, err)
	}
	return keys, nil
}

func (s *Store) upsert(tx *gorm.DB, key string, payload json.RawMessage) error {
	document := Document{
		Key:              key,
		PayloadJSON:      string(payload),
		UpdatedAtSeconds: s.clock().UTC().Unix(),
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "doc_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload_json", "updated_at_s"}),
	}).Create(&document).Error
	if err != nil {
		return fmt.Errorf("store: set %q: %w", key, err)
	}
	return nil
}
