package notification

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/KomaiX512/Accountmanager-sub004/internal/ingest"
	"github.com/KomaiX512/Accountmanager-sub004/internal/webhook/parser"
)

// relayMessage wraps a platform envelope relayed through Pub/Sub
// instead of a direct webhook.
type relayMessage struct {
	Platform string          `json:"platform"`
	Payload  json.RawMessage `json:"payload"`
}

// Relay consumes platform notifications from a Google Pub/Sub
// subscription and feeds them into the same ingest queue as the
// webhook path.
type Relay struct {
	client    *pubsub.Client
	pipeline  *ingest.Pipeline
	topicName string
	subName   string
}

func NewRelay(projectID, topicName string, pipeline *ingest.Pipeline, credentialsFile string) (*Relay, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, err
	}

	return &Relay{
		client:    client,
		pipeline:  pipeline,
		topicName: topicName,
		subName:   topicName + "-sub",
	}, nil
}

// Start ensures the subscription exists and consumes until ctx is
// cancelled. Run as a goroutine.
func (r *Relay) Start(ctx context.Context) {
	log.Printf("[PubSub] Starting relay on topic %s, subscription %s", r.topicName, r.subName)

	sub := r.client.Subscription(r.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		log.Printf("[PubSub] Failed to check subscription: %v", err)
		return
	}
	if !exists {
		topic := r.client.Topic(r.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil || !topicExists {
			log.Printf("[PubSub] Topic %s unavailable (exists=%v err=%v), relay disabled", r.topicName, topicExists, err)
			return
		}
		sub, err = r.client.CreateSubscription(ctx, r.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 10 * time.Second,
		})
		if err != nil {
			log.Printf("[PubSub] Failed to create subscription: %v", err)
			return
		}
		log.Printf("[PubSub] Created subscription %s", r.subName)
	}

	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if r.handleMessage(msg) {
			msg.Ack()
		} else {
			msg.Nack()
		}
	})
	if err != nil && ctx.Err() == nil {
		log.Printf("[PubSub] Receive stopped: %v", err)
	}
}

// handleMessage reports whether the message may be acked. A full
// ingest queue nacks so Pub/Sub redelivers instead of losing the event.
func (r *Relay) handleMessage(msg *pubsub.Message) bool {
	var relayed relayMessage
	if err := json.Unmarshal(msg.Data, &relayed); err != nil {
		log.Printf("[PubSub] Dropping unparseable relay message: %v", err)
		return true
	}
	if !parser.Supported(relayed.Platform) {
		log.Printf("[PubSub] Dropping relay message for unknown platform %q", relayed.Platform)
		return true
	}
	if !r.pipeline.Enqueue(ingest.Delivery{
		Platform:   relayed.Platform,
		Body:       relayed.Payload,
		ReceivedAt: time.Now(),
	}) {
		log.Printf("[PubSub] Ingest queue full, relay message for %s will be redelivered", relayed.Platform)
		return false
	}
	return true
}
