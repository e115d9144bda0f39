package domain

import "time"

// Capability names.
const (
	CapabilityAutoSchedule = "autoSchedule"
	CapabilityAutoReply    = "autoReply"
)

// Default cadences. Each capability polls on its own interval so one
// capability's load cannot starve another.
const (
	DefaultAutoScheduleInterval = 180
	DefaultAutoReplyInterval    = 120
)

// CapabilitySettings is one capability's switch and cadence for one
// account. LastRunAt is owned by the scheduler; the enabled flags are
// owned by the user.
type CapabilitySettings struct {
	Enabled         bool      `json:"enabled"`
	LastRunAt       time.Time `json:"last_run_at"`
	IntervalSeconds int       `json:"interval_seconds"`
}

// Settings holds an account's autopilot configuration.
type Settings struct {
	Platform     string                        `json:"platform"`
	Username     string                        `json:"username"`
	Enabled      bool                          `json:"enabled"`
	Capabilities map[string]CapabilitySettings `json:"capabilities"`
}

// DefaultSettings returns the all-disabled configuration created on an
// account's first read.
func DefaultSettings(platform, username string) *Settings {
	return &Settings{
		Platform: platform,
		Username: username,
		Enabled:  false,
		Capabilities: map[string]CapabilitySettings{
			CapabilityAutoSchedule: {IntervalSeconds: DefaultAutoScheduleInterval},
			CapabilityAutoReply:    {IntervalSeconds: DefaultAutoReplyInterval},
		},
	}
}

// Interval returns a capability's cadence as a duration.
func (c CapabilitySettings) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

// RunOutcome is the terminal state of one capability run.
type RunOutcome string

const (
	RunOutcomeSuccess RunOutcome = "success"
	RunOutcomeSkipped RunOutcome = "skipped"
	RunOutcomeFailed  RunOutcome = "failed"
)

// TaskRun records one execution attempt. Lifecycle is contained within
// a single scheduler tick; it exists for logging and backoff only.
type TaskRun struct {
	Platform   string
	Username   string
	Capability string
	StartedAt  time.Time
	Outcome    RunOutcome
	Err        string
}

// PostDraft is content waiting to be auto-scheduled for an account.
type PostDraft struct {
	ID           string    `json:"id"`
	Text         string    `json:"text"`
	MediaURL     string    `json:"media_url,omitempty"`
	ScheduledFor time.Time `json:"scheduled_for,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
