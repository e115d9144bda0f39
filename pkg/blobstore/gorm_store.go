package blobstore

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Blob is the row shape backing the store in Postgres.
type Blob struct {
	Key       string `gorm:"primaryKey;size:512"`
	Value     []byte
	Metadata  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// gormStore implements Store on top of a single blobs table.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a Postgres-backed Store and migrates its table.
func NewGormStore(db *gorm.DB) (Store, error) {
	if err := db.AutoMigrate(&Blob{}); err != nil {
		return nil, err
	}
	return &gormStore{db: db}, nil
}

func (s *gormStore) Get(ctx context.Context, key string) (*Entry, error) {
	var blob Blob
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&blob).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toEntry(&blob)
}

func (s *gormStore) Put(ctx context.Context, key string, value []byte, metadata map[string]string) error {
	blob, err := toBlob(key, value, metadata)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "metadata", "updated_at"}),
		}).
		Create(blob).Error
}

// PutIfAbsent relies on ON CONFLICT DO NOTHING so that concurrent
// writers race safely inside the database.
func (s *gormStore) PutIfAbsent(ctx context.Context, key string, value []byte, metadata map[string]string) error {
	blob, err := toBlob(key, value, metadata)
	if err != nil {
		return err
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).
		Create(blob)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrKeyExists
	}
	return nil
}

func (s *gormStore) List(ctx context.Context, prefix string) ([]*Entry, error) {
	var blobs []Blob
	err := s.db.WithContext(ctx).
		Where("key LIKE ?", escapeLike(prefix)+"%").
		Order("key ASC").
		Find(&blobs).Error
	if err != nil {
		return nil, err
	}
	entries := make([]*Entry, 0, len(blobs))
	for i := range blobs {
		entry, err := toEntry(&blobs[i])
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *gormStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("key = ?", key).Delete(&Blob{}).Error
}

func toBlob(key string, value []byte, metadata map[string]string) (*Blob, error) {
	now := time.Now()
	blob := &Blob{Key: key, Value: value, CreatedAt: now, UpdatedAt: now}
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return nil, err
		}
		blob.Metadata = string(raw)
	}
	return blob, nil
}

func toEntry(blob *Blob) (*Entry, error) {
	entry := &Entry{Key: blob.Key, Value: blob.Value}
	if blob.Metadata != "" {
		if err := json.Unmarshal([]byte(blob.Metadata), &entry.Metadata); err != nil {
			return nil, err
		}
	}
	return entry, nil
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
