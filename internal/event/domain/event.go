package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// EventType classifies an inbound occurrence.
type EventType string

const (
	EventTypeMessage EventType = "message"
	EventTypeComment EventType = "comment"
	EventTypeMention EventType = "mention"
)

// EventStatus tracks whether an event has been dealt with.
type EventStatus string

const (
	EventStatusPending EventStatus = "pending"
	EventStatusHandled EventStatus = "handled"
)

// NormalizedEvent is the canonical representation of one inbound
// occurrence, whatever platform envelope it arrived in.
// (Platform, Username, ExternalID) is unique across the store.
type NormalizedEvent struct {
	Type              EventType       `json:"type"`
	Platform          string          `json:"platform"`
	Username          string          `json:"username"`
	ExternalID        string          `json:"external_id"`
	SenderSubjectID   string          `json:"sender_subject_id,omitempty"`
	SenderDisplayName string          `json:"sender_display_name,omitempty"`
	SourceContextName string          `json:"source_context_name,omitempty"`
	Text              string          `json:"text"`
	ReceivedAt        time.Time       `json:"received_at"`
	Status            EventStatus     `json:"status"`
	Raw               json.RawMessage `json:"raw,omitempty"`
}

// placeholderPrefix marks events whose recipient subject ID could not
// be resolved yet. They are retried, never dropped.
const placeholderPrefix = "pending:"

// PlaceholderUsername builds the holding username for an unresolved
// recipient subject ID.
func PlaceholderUsername(subjectID string) string {
	return placeholderPrefix + subjectID
}

// IsPlaceholder reports whether a username is an unresolved holding key.
func IsPlaceholder(username string) bool {
	return strings.HasPrefix(username, placeholderPrefix)
}

// PlaceholderSubjectID extracts the subject ID from a holding username.
func PlaceholderSubjectID(username string) string {
	return strings.TrimPrefix(username, placeholderPrefix)
}
