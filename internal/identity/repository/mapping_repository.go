package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	identitydomain "github.com/KomaiX512/Accountmanager-sub004/internal/identity/domain"
	"github.com/KomaiX512/Accountmanager-sub004/pkg/blobstore"
)

// ErrMappingConflict means a subject ID is already mapped to a
// different username. Misattribution is worse than a delayed event, so
// this is surfaced instead of merged.
var ErrMappingConflict = errors.New("identity mapping conflict")

// MappingRepository stores identity mappings durably and caches them
// in memory; every inbound event reads one.
type MappingRepository interface {
	// Get returns the mapping for a subject ID, or nil when none exists.
	Get(ctx context.Context, platform, subjectID string) (*identitydomain.Mapping, error)
	// Create writes a new mapping. Writing the same username again is a
	// no-op; a different username returns ErrMappingConflict.
	Create(ctx context.Context, mapping *identitydomain.Mapping) error
	// Invalidate drops one cached mapping.
	Invalidate(platform, subjectID string)
	// InvalidateAll drops the whole mapping cache.
	InvalidateAll()
}

type blobMappingRepository struct {
	store blobstore.Store
	mu    sync.RWMutex
	cache map[string]*identitydomain.Mapping
}

// NewMappingRepository creates the blobstore-backed mapping repository.
func NewMappingRepository(store blobstore.Store) MappingRepository {
	return &blobMappingRepository{
		store: store,
		cache: make(map[string]*identitydomain.Mapping),
	}
}

func (r *blobMappingRepository) Get(ctx context.Context, platform, subjectID string) (*identitydomain.Mapping, error) {
	key := blobstore.IdentityKey(platform, subjectID)

	r.mu.RLock()
	cached, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	entry, err := r.store.Get(ctx, key)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var mapping identitydomain.Mapping
	if err := json.Unmarshal(entry.Value, &mapping); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[key] = &mapping
	r.mu.Unlock()
	return &mapping, nil
}

func (r *blobMappingRepository) Create(ctx context.Context, mapping *identitydomain.Mapping) error {
	if mapping.CreatedAt.IsZero() {
		mapping.CreatedAt = time.Now()
	}
	raw, err := json.Marshal(mapping)
	if err != nil {
		return err
	}

	key := blobstore.IdentityKey(mapping.Platform, mapping.SubjectID)
	err = r.store.PutIfAbsent(ctx, key, raw, nil)
	if errors.Is(err, blobstore.ErrKeyExists) {
		existing, getErr := r.Get(ctx, mapping.Platform, mapping.SubjectID)
		if getErr != nil {
			return getErr
		}
		if existing != nil && existing.Username == mapping.Username {
			return nil
		}
		return ErrMappingConflict
	}
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.cache[key] = mapping
	r.mu.Unlock()
	return nil
}

func (r *blobMappingRepository) Invalidate(platform, subjectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, blobstore.IdentityKey(platform, subjectID))
}

func (r *blobMappingRepository) InvalidateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]*identitydomain.Mapping)
}
