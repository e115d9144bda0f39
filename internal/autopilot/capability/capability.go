// Package capability holds the units of work the autopilot scheduler
// runs per account: auto-scheduling queued posts and auto-replying to
// unhandled messages.
package capability

import (
	"context"
	"time"

	autopilotdomain "github.com/KomaiX512/Accountmanager-sub004/internal/autopilot/domain"
)

// Runner is one autopilot capability. Run must honor ctx cancellation;
// the scheduler wraps every run in a timeout.
type Runner interface {
	Name() string
	Run(ctx context.Context, platform, username string) (autopilotdomain.RunOutcome, error)
}

// Replier sends a direct reply on a platform. Satisfied by
// platform.Client.
type Replier interface {
	SendReply(ctx context.Context, platformName, recipientID, text string) (string, error)
}

// Poster schedules a post on a platform. Satisfied by platform.Client.
type Poster interface {
	CreateScheduledPost(ctx context.Context, platformName, username, text, mediaURL string, publishAt time.Time) (string, error)
}

// Composer produces reply text for an inbound message. The AI
// completion provider behind it is an external collaborator; only this
// contract is assumed.
type Composer interface {
	ComposeReply(ctx context.Context, senderDisplayName, text string) (string, error)
}

// StaticComposer answers with a fixed acknowledgment. Used when no AI
// provider is wired in.
type StaticComposer struct {
	Template string
}

func (c *StaticComposer) ComposeReply(_ context.Context, _, _ string) (string, error) {
	if c.Template == "" {
		return "Thanks for reaching out! We'll get back to you shortly.", nil
	}
	return c.Template, nil
}
