package parser

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	eventdomain "github.com/KomaiX512/Accountmanager-sub004/internal/event/domain"
)

// Account Activity style envelope: everything is delivered for one
// receiving user, with separate arrays per event family.
type twitterEnvelope struct {
	ForUserID           string                `json:"for_user_id"`
	DirectMessageEvents []twitterDMEvent      `json:"direct_message_events"`
	TweetCreateEvents   []twitterTweet        `json:"tweet_create_events"`
	Users               map[string]twitterRef `json:"users"`
}

type twitterDMEvent struct {
	ID               string `json:"id"`
	CreatedTimestamp string `json:"created_timestamp"` // epoch millis as string
	MessageCreate    struct {
		SenderID string `json:"sender_id"`
		Target   struct {
			RecipientID string `json:"recipient_id"`
		} `json:"target"`
		MessageData struct {
			Text string `json:"text"`
		} `json:"message_data"`
	} `json:"message_create"`
}

type twitterTweet struct {
	IDStr     string     `json:"id_str"`
	Text      string     `json:"text"`
	CreatedAt string     `json:"created_at"`
	User      twitterRef `json:"user"`
}

type twitterRef struct {
	IDStr      string `json:"id_str"`
	ScreenName string `json:"screen_name"`
	Name       string `json:"name"`
}

func parseTwitter(body []byte) Result {
	var envelope twitterEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Result{Outcome: OutcomeMalformed}
	}
	if envelope.ForUserID == "" {
		return Result{Outcome: OutcomeIgnored}
	}

	var events []*ParsedEvent
	for _, dm := range envelope.DirectMessageEvents {
		senderID := dm.MessageCreate.SenderID
		if senderID == "" || senderID == envelope.ForUserID {
			continue
		}
		ts := twitterMillis(dm.CreatedTimestamp)
		externalID := dm.ID
		if externalID == "" {
			externalID = synthesizeExternalID(senderID, ts, dm.MessageCreate.MessageData.Text)
		}
		events = append(events, &ParsedEvent{
			Type:               eventdomain.EventTypeMessage,
			Platform:           "twitter",
			RecipientSubjectID: envelope.ForUserID,
			SenderSubjectID:    senderID,
			SenderDisplayName:  displayName(envelope.Users[senderID]),
			ExternalID:         externalID,
			Text:               dm.MessageCreate.MessageData.Text,
			Timestamp:          ts,
			Raw:                body,
		})
	}

	for _, tweet := range envelope.TweetCreateEvents {
		if tweet.User.IDStr == "" || tweet.User.IDStr == envelope.ForUserID {
			continue
		}
		ts := twitterCreatedAt(tweet.CreatedAt)
		externalID := tweet.IDStr
		if externalID == "" {
			externalID = synthesizeExternalID(tweet.User.IDStr, ts, tweet.Text)
		}
		events = append(events, &ParsedEvent{
			Type:               eventdomain.EventTypeMention,
			Platform:           "twitter",
			RecipientSubjectID: envelope.ForUserID,
			SenderSubjectID:    tweet.User.IDStr,
			SenderDisplayName:  displayName(tweet.User),
			ExternalID:         externalID,
			Text:               tweet.Text,
			Timestamp:          ts,
			Raw:                body,
		})
	}

	if len(events) == 0 {
		return Result{Outcome: OutcomeIgnored}
	}
	return Result{Outcome: OutcomeEvents, Events: events}
}

func displayName(ref twitterRef) string {
	if ref.ScreenName != "" {
		return ref.ScreenName
	}
	return ref.Name
}

func twitterMillis(s string) time.Time {
	millis, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || millis <= 0 {
		return time.Now()
	}
	return time.UnixMilli(millis)
}

func twitterCreatedAt(s string) time.Time {
	if t, err := time.Parse(time.RubyDate, s); err == nil {
		return t
	}
	return time.Now()
}
