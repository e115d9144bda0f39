package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	eventdomain "github.com/KomaiX512/Accountmanager-sub004/internal/event/domain"
	"github.com/KomaiX512/Accountmanager-sub004/pkg/blobstore"
)

// ListOptions controls ListRecent.
type ListOptions struct {
	Limit int
	// ForceRefresh bypasses the cache for read-after-write consistency.
	ForceRefresh bool
	// Status filters by event status when set.
	Status *eventdomain.EventStatus
}

// EventRepository is the durable, cache-fronted event store.
type EventRepository interface {
	// Append persists an event. A duplicate (platform, username,
	// externalID) is a no-op; the bool reports whether a row was
	// actually inserted.
	Append(ctx context.Context, event *eventdomain.NormalizedEvent) (bool, error)
	// ListRecent returns an account's events, newest first.
	ListRecent(ctx context.Context, platform, username string, opts ListOptions) ([]*eventdomain.NormalizedEvent, error)
	// MarkHandled flips an event's status to handled.
	MarkHandled(ctx context.Context, platform, username, externalID string) error
	// Delete removes a single event row. Used when an unresolved event
	// is re-keyed under its real account.
	Delete(ctx context.Context, platform, username, externalID string) error
	// ListUnresolved returns events held under placeholder usernames
	// for a platform.
	ListUnresolved(ctx context.Context, platform string) ([]*eventdomain.NormalizedEvent, error)
	// Prune removes events received before the cutoff and reports how
	// many were deleted.
	Prune(ctx context.Context, olderThan time.Time) (int, error)
	// InvalidatePlatform flushes the cache for a whole platform.
	InvalidatePlatform(platform string)
}

// ErrEventNotFound is returned by MarkHandled for a missing event.
var ErrEventNotFound = errors.New("event not found")

type blobEventRepository struct {
	store blobstore.Store
	cache *accountCache
}

// NewEventRepository creates the blobstore-backed event repository.
func NewEventRepository(store blobstore.Store, cacheTTL time.Duration) EventRepository {
	return &blobEventRepository{
		store: store,
		cache: newAccountCache(cacheTTL),
	}
}

func (r *blobEventRepository) Append(ctx context.Context, event *eventdomain.NormalizedEvent) (bool, error) {
	if event.Platform == "" || event.Username == "" || event.ExternalID == "" {
		return false, fmt.Errorf("event is missing platform, username or external id")
	}
	if event.Status == "" {
		event.Status = eventdomain.EventStatusPending
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now()
	}

	raw, err := json.Marshal(event)
	if err != nil {
		return false, err
	}

	key := blobstore.EventKey(event.Platform, event.Username, event.ExternalID)
	metadata := map[string]string{"received_at": event.ReceivedAt.UTC().Format(time.RFC3339Nano)}

	err = r.store.PutIfAbsent(ctx, key, raw, metadata)
	if errors.Is(err, blobstore.ErrKeyExists) {
		// At-least-once webhook delivery: the duplicate already won.
		return false, nil
	}
	if err != nil {
		return false, err
	}

	r.cache.invalidate(event.Platform, event.Username)
	return true, nil
}

func (r *blobEventRepository) ListRecent(ctx context.Context, platform, username string, opts ListOptions) ([]*eventdomain.NormalizedEvent, error) {
	var events []*eventdomain.NormalizedEvent

	if !opts.ForceRefresh {
		if cached, ok := r.cache.get(platform, username); ok {
			events = cached
		}
	}

	if events == nil {
		entries, err := r.store.List(ctx, blobstore.EventPrefix(platform, username))
		if err != nil {
			return nil, err
		}
		events = make([]*eventdomain.NormalizedEvent, 0, len(entries))
		for _, entry := range entries {
			event, err := decodeEvent(entry.Value)
			if err != nil {
				return nil, fmt.Errorf("corrupt event at %s: %w", entry.Key, err)
			}
			events = append(events, event)
		}
		sort.Slice(events, func(i, j int) bool {
			return events[i].ReceivedAt.After(events[j].ReceivedAt)
		})
		r.cache.set(platform, username, events)
	}

	out := make([]*eventdomain.NormalizedEvent, 0, len(events))
	for _, event := range events {
		if opts.Status != nil && event.Status != *opts.Status {
			continue
		}
		out = append(out, event)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

func (r *blobEventRepository) MarkHandled(ctx context.Context, platform, username, externalID string) error {
	key := blobstore.EventKey(platform, username, externalID)
	entry, err := r.store.Get(ctx, key)
	if errors.Is(err, blobstore.ErrNotFound) {
		return ErrEventNotFound
	}
	if err != nil {
		return err
	}

	event, err := decodeEvent(entry.Value)
	if err != nil {
		return fmt.Errorf("corrupt event at %s: %w", key, err)
	}
	if event.Status == eventdomain.EventStatusHandled {
		return nil
	}
	event.Status = eventdomain.EventStatusHandled

	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := r.store.Put(ctx, key, raw, entry.Metadata); err != nil {
		return err
	}

	r.cache.invalidate(platform, username)
	return nil
}

func (r *blobEventRepository) Delete(ctx context.Context, platform, username, externalID string) error {
	if err := r.store.Delete(ctx, blobstore.EventKey(platform, username, externalID)); err != nil {
		return err
	}
	r.cache.invalidate(platform, username)
	return nil
}

func (r *blobEventRepository) ListUnresolved(ctx context.Context, platform string) ([]*eventdomain.NormalizedEvent, error) {
	entries, err := r.store.List(ctx, blobstore.EventPlatformPrefix(platform))
	if err != nil {
		return nil, err
	}

	var events []*eventdomain.NormalizedEvent
	for _, entry := range entries {
		event, err := decodeEvent(entry.Value)
		if err != nil {
			return nil, fmt.Errorf("corrupt event at %s: %w", entry.Key, err)
		}
		if eventdomain.IsPlaceholder(event.Username) {
			events = append(events, event)
		}
	}
	return events, nil
}

func (r *blobEventRepository) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	entries, err := r.store.List(ctx, "events/")
	if err != nil {
		return 0, err
	}

	pruned := 0
	for _, entry := range entries {
		event, err := decodeEvent(entry.Value)
		if err != nil {
			continue
		}
		if event.ReceivedAt.Before(olderThan) {
			if err := r.store.Delete(ctx, entry.Key); err != nil {
				return pruned, err
			}
			pruned++
		}
	}
	if pruned > 0 {
		r.cache.invalidateAll()
	}
	return pruned, nil
}

func (r *blobEventRepository) InvalidatePlatform(platform string) {
	if platform == "" {
		r.cache.invalidateAll()
		return
	}
	r.cache.invalidatePlatform(platform)
}

func decodeEvent(raw []byte) (*eventdomain.NormalizedEvent, error) {
	var event eventdomain.NormalizedEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
