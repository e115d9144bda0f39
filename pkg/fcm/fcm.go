package fcm

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// Client wraps Firebase Cloud Messaging for dashboard push delivery.
type Client struct {
	messaging *messaging.Client
}

// NewClient initializes FCM from a service-account credentials file.
func NewClient(credentialsFile string) (*Client, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	log.Println("[FCM] Client initialized")
	return &Client{messaging: client}, nil
}

// Notification is the payload pushed to registered dashboard devices.
type Notification struct {
	Title string
	Body  string
	Data  map[string]string
}

// SendToDevices pushes one notification to many device tokens and
// returns the tokens that should be pruned because delivery failed.
func (c *Client) SendToDevices(ctx context.Context, tokens []string, n Notification) ([]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: n.Data,
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: n.Title,
				Body:  n.Body,
			},
		},
	}

	resp, err := c.messaging.SendEachForMulticast(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to send FCM multicast: %w", err)
	}

	var failed []string
	for i, r := range resp.Responses {
		if !r.Success {
			failed = append(failed, tokens[i])
		}
	}
	if len(failed) > 0 {
		log.Printf("[FCM] Multicast: %d sent, %d failed", resp.SuccessCount, resp.FailureCount)
	}
	return failed, nil
}
