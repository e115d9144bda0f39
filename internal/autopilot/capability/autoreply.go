package capability

import (
	"context"
	"fmt"
	"log"
	"time"

	autopilotdomain "github.com/KomaiX512/Accountmanager-sub004/internal/autopilot/domain"
	eventdomain "github.com/KomaiX512/Accountmanager-sub004/internal/event/domain"
	eventrepo "github.com/KomaiX512/Accountmanager-sub004/internal/event/repository"
	"github.com/KomaiX512/Accountmanager-sub004/internal/ingest"
)

// maxRepliesPerRun caps how many messages one run answers so a backlog
// cannot pin a worker for a whole tick.
const maxRepliesPerRun = 5

// AutoReply answers pending inbound messages and marks them handled.
// Each sent reply is injected back through the store and fan-out path
// as a handled event.
type AutoReply struct {
	events   eventrepo.EventRepository
	pipeline *ingest.Pipeline
	replier  Replier
	composer Composer
}

func NewAutoReply(events eventrepo.EventRepository, pipeline *ingest.Pipeline, replier Replier, composer Composer) *AutoReply {
	if composer == nil {
		composer = &StaticComposer{}
	}
	return &AutoReply{events: events, pipeline: pipeline, replier: replier, composer: composer}
}

func (a *AutoReply) Name() string { return autopilotdomain.CapabilityAutoReply }

func (a *AutoReply) Run(ctx context.Context, platform, username string) (autopilotdomain.RunOutcome, error) {
	pending := eventdomain.EventStatusPending
	events, err := a.events.ListRecent(ctx, platform, username, eventrepo.ListOptions{
		Status:       &pending,
		ForceRefresh: true,
	})
	if err != nil {
		return autopilotdomain.RunOutcomeFailed, err
	}

	var messages []*eventdomain.NormalizedEvent
	for _, event := range events {
		if event.Type == eventdomain.EventTypeMessage && event.SenderSubjectID != "" {
			messages = append(messages, event)
		}
	}
	if len(messages) == 0 {
		return autopilotdomain.RunOutcomeSkipped, nil
	}
	if len(messages) > maxRepliesPerRun {
		messages = messages[:maxRepliesPerRun]
	}

	replied := 0
	for _, event := range messages {
		if err := a.replyTo(ctx, event); err != nil {
			if replied > 0 {
				// Partial progress still counts as a run; the rest is
				// picked up next interval.
				log.Printf("[Autopilot] autoReply for %s/%s stopped after %d replies: %v", platform, username, replied, err)
				return autopilotdomain.RunOutcomeSuccess, nil
			}
			return autopilotdomain.RunOutcomeFailed, err
		}
		replied++
	}
	return autopilotdomain.RunOutcomeSuccess, nil
}

func (a *AutoReply) replyTo(ctx context.Context, event *eventdomain.NormalizedEvent) error {
	text, err := a.composer.ComposeReply(ctx, event.SenderDisplayName, event.Text)
	if err != nil {
		return fmt.Errorf("compose reply: %w", err)
	}

	replyID, err := a.replier.SendReply(ctx, event.Platform, event.SenderSubjectID, text)
	if err != nil {
		return fmt.Errorf("send reply: %w", err)
	}

	if err := a.events.MarkHandled(ctx, event.Platform, event.Username, event.ExternalID); err != nil {
		return fmt.Errorf("mark handled: %w", err)
	}

	if replyID == "" {
		replyID = fmt.Sprintf("reply-%s-%d", event.ExternalID, time.Now().UnixNano())
	}
	_, err = a.pipeline.Inject(ctx, &eventdomain.NormalizedEvent{
		Type:              eventdomain.EventTypeMessage,
		Platform:          event.Platform,
		Username:          event.Username,
		ExternalID:        replyID,
		SenderDisplayName: event.Username,
		SourceContextName: event.SourceContextName,
		Text:              text,
		ReceivedAt:        time.Now(),
		Status:            eventdomain.EventStatusHandled,
	})
	if err != nil {
		return fmt.Errorf("record sent reply: %w", err)
	}
	return nil
}
