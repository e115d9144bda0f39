package capability

import (
	"context"
	"fmt"
	"log"
	"time"

	autopilotdomain "github.com/KomaiX512/Accountmanager-sub004/internal/autopilot/domain"
	autopilotrepo "github.com/KomaiX512/Accountmanager-sub004/internal/autopilot/repository"
)

// AutoSchedule pushes due post drafts to the platform's scheduled-post
// API and removes them from the queue.
type AutoSchedule struct {
	drafts autopilotrepo.DraftRepository
	poster Poster
	now    func() time.Time
}

func NewAutoSchedule(drafts autopilotrepo.DraftRepository, poster Poster) *AutoSchedule {
	return &AutoSchedule{drafts: drafts, poster: poster, now: time.Now}
}

func (a *AutoSchedule) Name() string { return autopilotdomain.CapabilityAutoSchedule }

func (a *AutoSchedule) Run(ctx context.Context, platform, username string) (autopilotdomain.RunOutcome, error) {
	drafts, err := a.drafts.List(ctx, platform, username)
	if err != nil {
		return autopilotdomain.RunOutcomeFailed, err
	}

	now := a.now()
	var due []*autopilotdomain.PostDraft
	for _, draft := range drafts {
		if draft.ScheduledFor.IsZero() || !draft.ScheduledFor.After(now) {
			due = append(due, draft)
		}
	}
	if len(due) == 0 {
		return autopilotdomain.RunOutcomeSkipped, nil
	}

	posted := 0
	for _, draft := range due {
		postID, err := a.poster.CreateScheduledPost(ctx, platform, username, draft.Text, draft.MediaURL, draft.ScheduledFor)
		if err != nil {
			if posted > 0 {
				log.Printf("[Autopilot] autoSchedule for %s/%s stopped after %d posts: %v", platform, username, posted, err)
				return autopilotdomain.RunOutcomeSuccess, nil
			}
			return autopilotdomain.RunOutcomeFailed, fmt.Errorf("create scheduled post: %w", err)
		}
		if err := a.drafts.Delete(ctx, platform, username, draft.ID); err != nil {
			return autopilotdomain.RunOutcomeFailed, fmt.Errorf("remove posted draft %s: %w", draft.ID, err)
		}
		log.Printf("[Autopilot] Scheduled post %s for %s/%s", postID, platform, username)
		posted++
	}
	return autopilotdomain.RunOutcomeSuccess, nil
}
