package usecase

import (
	"context"
	"log"
	"time"

	eventdomain "github.com/KomaiX512/Accountmanager-sub004/internal/event/domain"
	"github.com/KomaiX512/Accountmanager-sub004/internal/event/repository"
)

// EventUsecase is the dashboard-facing surface of the event store.
type EventUsecase interface {
	ListRecent(ctx context.Context, platform, username string, limit int, forceRefresh bool) ([]*eventdomain.NormalizedEvent, error)
	MarkHandled(ctx context.Context, platform, username, externalID string) error
	// FlushCache invalidates the read cache for a platform, or for
	// everything when platform is empty.
	FlushCache(platform string)
	// StartRetention launches the daily prune loop.
	StartRetention(ctx context.Context, retentionDays int)
}

type eventUsecase struct {
	events repository.EventRepository
}

func NewEventUsecase(events repository.EventRepository) EventUsecase {
	return &eventUsecase{events: events}
}

func (u *eventUsecase) ListRecent(ctx context.Context, platform, username string, limit int, forceRefresh bool) ([]*eventdomain.NormalizedEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return u.events.ListRecent(ctx, platform, username, repository.ListOptions{
		Limit:        limit,
		ForceRefresh: forceRefresh,
	})
}

func (u *eventUsecase) MarkHandled(ctx context.Context, platform, username, externalID string) error {
	return u.events.MarkHandled(ctx, platform, username, externalID)
}

func (u *eventUsecase) FlushCache(platform string) {
	u.events.InvalidatePlatform(platform)
}

func (u *eventUsecase) StartRetention(ctx context.Context, retentionDays int) {
	if retentionDays <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().AddDate(0, 0, -retentionDays)
				pruned, err := u.events.Prune(ctx, cutoff)
				if err != nil {
					log.Printf("[Events] Prune failed: %v", err)
					continue
				}
				if pruned > 0 {
					log.Printf("[Events] Pruned %d events older than %s", pruned, cutoff.Format("2006-01-02"))
				}
			}
		}
	}()
}
