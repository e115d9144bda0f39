package capability

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	autopilotdomain "github.com/KomaiX512/Accountmanager-sub004/internal/autopilot/domain"
	eventdomain "github.com/KomaiX512/Accountmanager-sub004/internal/event/domain"
	eventrepo "github.com/KomaiX512/Accountmanager-sub004/internal/event/repository"
	"github.com/KomaiX512/Accountmanager-sub004/internal/ingest"
	"github.com/KomaiX512/Accountmanager-sub004/pkg/blobstore"
)

type fakeReplier struct {
	sent    []string
	failAll bool
	// failAfter fails every send past the first n.
	failAfter int
}

func (f *fakeReplier) SendReply(_ context.Context, _, recipientID, text string) (string, error) {
	if f.failAll || (f.failAfter > 0 && len(f.sent) >= f.failAfter) {
		return "", errors.New("send failed")
	}
	f.sent = append(f.sent, recipientID)
	return fmt.Sprintf("sent-%d", len(f.sent)), nil
}

func seedMessage(t *testing.T, events eventrepo.EventRepository, externalID string, at time.Time) {
	t.Helper()
	inserted, err := events.Append(context.Background(), &eventdomain.NormalizedEvent{
		Type:            eventdomain.EventTypeMessage,
		Platform:        "instagram",
		Username:        "brand",
		ExternalID:      externalID,
		SenderSubjectID: "S1",
		Text:            "question about order",
		ReceivedAt:      at,
		Status:          eventdomain.EventStatusPending,
	})
	if err != nil || !inserted {
		t.Fatalf("seed %s: inserted=%v err=%v", externalID, inserted, err)
	}
}

func TestAutoReplyAnswersPendingMessages(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	events := eventrepo.NewEventRepository(store, time.Minute)
	pipeline := ingest.NewPipeline(events, nil, nil, 1, 16, 0)
	replier := &fakeReplier{}

	seedMessage(t, events, "m1", time.Now())
	seedMessage(t, events, "m2", time.Now().Add(time.Second))

	a := NewAutoReply(events, pipeline, replier, nil)
	outcome, err := a.Run(ctx, "instagram", "brand")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if outcome != autopilotdomain.RunOutcomeSuccess {
		t.Errorf("expected success, got %s", outcome)
	}
	if len(replier.sent) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(replier.sent))
	}

	// Originals are handled and the sent replies are on record too.
	all, _ := events.ListRecent(ctx, "instagram", "brand", eventrepo.ListOptions{ForceRefresh: true})
	if len(all) != 4 {
		t.Fatalf("expected 2 originals + 2 reply records, got %d", len(all))
	}
	pending := eventdomain.EventStatusPending
	left, _ := events.ListRecent(ctx, "instagram", "brand", eventrepo.ListOptions{Status: &pending, ForceRefresh: true})
	if len(left) != 0 {
		t.Errorf("expected nothing pending, got %d", len(left))
	}
}

func TestAutoReplySkipsWhenNothingPending(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	events := eventrepo.NewEventRepository(store, time.Minute)
	pipeline := ingest.NewPipeline(events, nil, nil, 1, 16, 0)
	replier := &fakeReplier{}

	a := NewAutoReply(events, pipeline, replier, nil)
	outcome, err := a.Run(ctx, "instagram", "brand")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if outcome != autopilotdomain.RunOutcomeSkipped {
		t.Errorf("expected skipped, got %s", outcome)
	}
	if len(replier.sent) != 0 {
		t.Errorf("expected no sends, got %d", len(replier.sent))
	}
}

func TestAutoReplyIgnoresCommentsAndMentions(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	events := eventrepo.NewEventRepository(store, time.Minute)
	pipeline := ingest.NewPipeline(events, nil, nil, 1, 16, 0)

	events.Append(ctx, &eventdomain.NormalizedEvent{
		Type:            eventdomain.EventTypeComment,
		Platform:        "instagram",
		Username:        "brand",
		ExternalID:      "c1",
		SenderSubjectID: "S1",
		Text:            "nice",
		Status:          eventdomain.EventStatusPending,
	})

	a := NewAutoReply(events, pipeline, &fakeReplier{}, nil)
	outcome, _ := a.Run(ctx, "instagram", "brand")
	if outcome != autopilotdomain.RunOutcomeSkipped {
		t.Errorf("comments are not direct-replyable, expected skipped, got %s", outcome)
	}
}

func TestAutoReplyFailsCleanOnFirstError(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	events := eventrepo.NewEventRepository(store, time.Minute)
	pipeline := ingest.NewPipeline(events, nil, nil, 1, 16, 0)
	replier := &fakeReplier{failAll: true}

	seedMessage(t, events, "m1", time.Now())

	a := NewAutoReply(events, pipeline, replier, nil)
	outcome, err := a.Run(ctx, "instagram", "brand")
	if outcome != autopilotdomain.RunOutcomeFailed || err == nil {
		t.Errorf("expected failure, got %s err=%v", outcome, err)
	}

	// The message stays pending for the next run.
	pending := eventdomain.EventStatusPending
	left, _ := events.ListRecent(ctx, "instagram", "brand", eventrepo.ListOptions{Status: &pending, ForceRefresh: true})
	if len(left) != 1 {
		t.Errorf("failed reply must leave the message pending, got %d", len(left))
	}
}

func TestAutoReplyPartialProgressCounts(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	events := eventrepo.NewEventRepository(store, time.Minute)
	pipeline := ingest.NewPipeline(events, nil, nil, 1, 16, 0)
	replier := &fakeReplier{failAfter: 1}

	seedMessage(t, events, "m1", time.Now())
	seedMessage(t, events, "m2", time.Now().Add(time.Second))

	a := NewAutoReply(events, pipeline, replier, nil)
	outcome, err := a.Run(ctx, "instagram", "brand")
	if err != nil {
		t.Fatalf("partial progress should not error: %v", err)
	}
	if outcome != autopilotdomain.RunOutcomeSuccess {
		t.Errorf("one reply out is still a run, got %s", outcome)
	}
	if len(replier.sent) != 1 {
		t.Errorf("expected 1 reply, got %d", len(replier.sent))
	}
}

func TestStaticComposer(t *testing.T) {
	c := &StaticComposer{}
	text, err := c.ComposeReply(context.Background(), "Sam", "hi")
	if err != nil || text == "" {
		t.Errorf("default composer should always answer, got %q err=%v", text, err)
	}

	custom := &StaticComposer{Template: "We are away."}
	text, _ = custom.ComposeReply(context.Background(), "Sam", "hi")
	if text != "We are away." {
		t.Errorf("expected template text, got %q", text)
	}
}
