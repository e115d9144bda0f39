package parser

import (
	"encoding/json"
	"time"

	eventdomain "github.com/KomaiX512/Accountmanager-sub004/internal/event/domain"
)

// Meta-style envelope shared by the Instagram and Facebook variants:
// a list of entries per receiving account, each carrying messaging
// events and/or field changes (comments, mentions).
type metaEnvelope struct {
	Object string      `json:"object"`
	Entry  []metaEntry `json:"entry"`
}

type metaEntry struct {
	ID        string          `json:"id"` // receiving account/page subject ID
	Time      int64           `json:"time"`
	Messaging []metaMessaging `json:"messaging"`
	Changes   []metaChange    `json:"changes"`
}

type metaMessaging struct {
	Sender    metaParty `json:"sender"`
	Recipient metaParty `json:"recipient"`
	Timestamp int64     `json:"timestamp"` // epoch millis
	Message   *struct {
		MID    string `json:"mid"`
		Text   string `json:"text"`
		IsEcho bool   `json:"is_echo"`
	} `json:"message"`
}

type metaParty struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type metaChange struct {
	Field string `json:"field"`
	Value struct {
		ID        string `json:"id"`
		Text      string `json:"text"`
		Timestamp int64  `json:"timestamp"`
		From      struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"from"`
		Media struct {
			ID string `json:"id"`
		} `json:"media"`
	} `json:"value"`
}

func parseMeta(platform string, body []byte) Result {
	var envelope metaEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Result{Outcome: OutcomeMalformed}
	}
	if len(envelope.Entry) == 0 {
		return Result{Outcome: OutcomeIgnored}
	}

	var events []*ParsedEvent
	for _, entry := range envelope.Entry {
		for _, m := range entry.Messaging {
			if m.Message == nil {
				continue
			}
			// Echoes of our own outbound messages are discarded, never
			// stored or pushed.
			if m.Message.IsEcho || (m.Sender.ID != "" && m.Sender.ID == entry.ID) {
				continue
			}
			ts := millisToTime(m.Timestamp, entry.Time)
			externalID := m.Message.MID
			if externalID == "" {
				externalID = synthesizeExternalID(m.Sender.ID, ts, m.Message.Text)
			}
			recipient := m.Recipient.ID
			if recipient == "" {
				recipient = entry.ID
			}
			events = append(events, &ParsedEvent{
				Type:               eventdomain.EventTypeMessage,
				Platform:           platform,
				RecipientSubjectID: recipient,
				SenderSubjectID:    m.Sender.ID,
				SenderDisplayName:  m.Sender.Name,
				SourceContextName:  entry.ID,
				ExternalID:         externalID,
				Text:               m.Message.Text,
				Timestamp:          ts,
				Raw:                body,
			})
		}

		for _, change := range entry.Changes {
			var eventType eventdomain.EventType
			switch change.Field {
			case "comments":
				eventType = eventdomain.EventTypeComment
			case "mentions", "mention":
				eventType = eventdomain.EventTypeMention
			default:
				continue
			}
			if change.Value.From.ID != "" && change.Value.From.ID == entry.ID {
				continue
			}
			ts := millisToTime(change.Value.Timestamp, entry.Time)
			externalID := change.Value.ID
			if externalID == "" {
				externalID = synthesizeExternalID(change.Value.From.ID, ts, change.Value.Text)
			}
			events = append(events, &ParsedEvent{
				Type:               eventType,
				Platform:           platform,
				RecipientSubjectID: entry.ID,
				SenderSubjectID:    change.Value.From.ID,
				SenderDisplayName:  change.Value.From.Username,
				SourceContextName:  change.Value.Media.ID,
				ExternalID:         externalID,
				Text:               change.Value.Text,
				Timestamp:          ts,
				Raw:                body,
			})
		}
	}

	if len(events) == 0 {
		return Result{Outcome: OutcomeIgnored}
	}
	return Result{Outcome: OutcomeEvents, Events: events}
}

// millisToTime prefers the per-event millisecond timestamp, falling
// back to the entry's second-resolution one, then to now.
func millisToTime(millis, entrySeconds int64) time.Time {
	if millis > 0 {
		return time.UnixMilli(millis)
	}
	if entrySeconds > 0 {
		return time.Unix(entrySeconds, 0)
	}
	return time.Now()
}
