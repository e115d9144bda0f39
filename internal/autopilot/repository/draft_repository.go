package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	autopilotdomain "github.com/KomaiX512/Accountmanager-sub004/internal/autopilot/domain"
	"github.com/KomaiX512/Accountmanager-sub004/pkg/blobstore"
)

// DraftRepository stores the post drafts consumed by autoSchedule.
type DraftRepository interface {
	Add(ctx context.Context, platform, username string, draft *autopilotdomain.PostDraft) error
	List(ctx context.Context, platform, username string) ([]*autopilotdomain.PostDraft, error)
	Delete(ctx context.Context, platform, username, draftID string) error
}

type blobDraftRepository struct {
	store blobstore.Store
}

func NewDraftRepository(store blobstore.Store) DraftRepository {
	return &blobDraftRepository{store: store}
}

func (r *blobDraftRepository) Add(ctx context.Context, platform, username string, draft *autopilotdomain.PostDraft) error {
	if draft.ID == "" {
		draft.ID = uuid.New().String()
	}
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = time.Now()
	}
	raw, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, blobstore.DraftKey(platform, username, draft.ID), raw, nil)
}

func (r *blobDraftRepository) List(ctx context.Context, platform, username string) ([]*autopilotdomain.PostDraft, error) {
	entries, err := r.store.List(ctx, blobstore.DraftPrefix(platform, username))
	if err != nil {
		return nil, err
	}
	drafts := make([]*autopilotdomain.PostDraft, 0, len(entries))
	for _, entry := range entries {
		var draft autopilotdomain.PostDraft
		if err := json.Unmarshal(entry.Value, &draft); err != nil {
			return nil, fmt.Errorf("corrupt draft at %s: %w", entry.Key, err)
		}
		drafts = append(drafts, &draft)
	}
	sort.Slice(drafts, func(i, j int) bool {
		return drafts[i].CreatedAt.Before(drafts[j].CreatedAt)
	})
	return drafts, nil
}

func (r *blobDraftRepository) Delete(ctx context.Context, platform, username, draftID string) error {
	return r.store.Delete(ctx, blobstore.DraftKey(platform, username, draftID))
}
