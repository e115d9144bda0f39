package blobstore

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// memoryStore is an in-process Store used for tests and storeless
// development runs. Same visibility rules as the Postgres store,
// including atomic PutIfAbsent.
type memoryStore struct {
	mu    sync.RWMutex
	blobs map[string]*Entry
}

// NewMemoryStore creates an empty in-memory Store.
func NewMemoryStore() Store {
	return &memoryStore{blobs: make(map[string]*Entry)}
}

func (s *memoryStore) Get(_ context.Context, key string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return copyEntry(entry), nil
}

func (s *memoryStore) Put(_ context.Context, key string, value []byte, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = &Entry{Key: key, Value: append([]byte(nil), value...), Metadata: copyMeta(metadata)}
	return nil
}

func (s *memoryStore) PutIfAbsent(_ context.Context, key string, value []byte, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; ok {
		return ErrKeyExists
	}
	s.blobs[key] = &Entry{Key: key, Value: append([]byte(nil), value...), Metadata: copyMeta(metadata)}
	return nil
}

func (s *memoryStore) List(_ context.Context, prefix string) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []*Entry
	for key, entry := range s.blobs {
		if strings.HasPrefix(key, prefix) {
			entries = append(entries, copyEntry(entry))
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

func copyEntry(entry *Entry) *Entry {
	return &Entry{
		Key:      entry.Key,
		Value:    append([]byte(nil), entry.Value...),
		Metadata: copyMeta(entry.Metadata),
	}
}

func copyMeta(metadata map[string]string) map[string]string {
	if metadata == nil {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
