package notification

import (
	"context"
	"log"
	"unicode/utf8"

	eventdomain "github.com/KomaiX512/Accountmanager-sub004/internal/event/domain"
	"github.com/KomaiX512/Accountmanager-sub004/pkg/fcm"
	"github.com/KomaiX512/Accountmanager-sub004/pkg/sse"
)

// Service fans appended events out to open dashboard sessions over
// SSE and, when configured, to registered FCM devices.
type Service struct {
	sseManager *sse.Manager
	fcmClient  *fcm.Client
	devices    DeviceRepository
}

func NewService(sseManager *sse.Manager, fcmClient *fcm.Client, devices DeviceRepository) *Service {
	return &Service{
		sseManager: sseManager,
		fcmClient:  fcmClient,
		devices:    devices,
	}
}

// PublishEvent pushes one appended event to the account's sessions.
// Called exactly once per successfully appended event.
func (s *Service) PublishEvent(event *eventdomain.NormalizedEvent) {
	// Placeholder-keyed events have no subscribers until they are
	// re-keyed under the real account.
	if eventdomain.IsPlaceholder(event.Username) {
		return
	}

	s.sseManager.SendToAccount(event.Platform, event.Username, "inbox_event", event)

	if s.fcmClient == nil || s.devices == nil {
		return
	}
	go s.pushToDevices(event)
}

func (s *Service) pushToDevices(event *eventdomain.NormalizedEvent) {
	ctx := context.Background()

	tokens, err := s.devices.List(ctx, event.Platform, event.Username)
	if err != nil {
		log.Printf("[FCM] Failed to load device tokens for %s/%s: %v", event.Platform, event.Username, err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	title := "New " + string(event.Type)
	if event.SenderDisplayName != "" {
		title = title + " from " + event.SenderDisplayName
	}
	body := truncateBody(event.Text)

	failed, err := s.fcmClient.SendToDevices(ctx, tokens, fcm.Notification{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"type":        string(event.Type),
			"platform":    event.Platform,
			"external_id": event.ExternalID,
		},
	})
	if err != nil {
		log.Printf("[FCM] Push failed for %s/%s: %v", event.Platform, event.Username, err)
		return
	}
	for _, token := range failed {
		if err := s.devices.Remove(ctx, event.Platform, event.Username, token); err != nil {
			log.Printf("[FCM] Failed to prune dead token: %v", err)
		}
	}
}

// truncateBody shortens push bodies without cutting a UTF-8 rune in
// half.
func truncateBody(text string) string {
	if len(text) <= 120 {
		return text
	}
	cut := 117
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
