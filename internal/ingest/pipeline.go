// Package ingest decouples webhook acknowledgment from event
// processing: deliveries are queued and a worker pool runs
// parse -> resolve -> append -> publish off the request path.
package ingest

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	eventdomain "github.com/KomaiX512/Accountmanager-sub004/internal/event/domain"
	eventrepo "github.com/KomaiX512/Accountmanager-sub004/internal/event/repository"
	identityusecase "github.com/KomaiX512/Accountmanager-sub004/internal/identity/usecase"
	"github.com/KomaiX512/Accountmanager-sub004/internal/webhook/parser"
)

// Publisher receives every successfully appended event exactly once.
type Publisher interface {
	PublishEvent(event *eventdomain.NormalizedEvent)
}

// maxIngestAttempts bounds how often a failing delivery is retried
// before it is dropped for good.
const maxIngestAttempts = 5

// Delivery is one raw webhook body awaiting processing.
type Delivery struct {
	Platform   string
	Body       []byte
	ReceivedAt time.Time
	// Attempts counts processing tries. Managed by the pipeline.
	Attempts int
}

type Pipeline struct {
	events    eventrepo.EventRepository
	resolver  identityusecase.Resolver
	publisher Publisher

	queue         chan Delivery
	workerCount   int
	retryInterval time.Duration
	requeueDelay  time.Duration

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
}

func NewPipeline(events eventrepo.EventRepository, resolver identityusecase.Resolver, publisher Publisher, workerCount, queueSize int, retryInterval time.Duration) *Pipeline {
	if workerCount <= 0 {
		workerCount = 4
	}
	if queueSize <= 0 {
		queueSize = 1000
	}
	return &Pipeline{
		events:        events,
		resolver:      resolver,
		publisher:     publisher,
		queue:         make(chan Delivery, queueSize),
		workerCount:   workerCount,
		retryInterval: retryInterval,
		requeueDelay:  time.Second,
	}
}

// Start launches the worker pool and the unresolved-identity retry
// loop. Workers drain until ctx is cancelled.
func (p *Pipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	if p.retryInterval > 0 {
		go p.retryLoop(ctx)
	}
	log.Printf("[Ingest] Started %d workers (queue capacity %d)", p.workerCount, cap(p.queue))
}

// Enqueue hands a delivery to the worker pool without blocking the
// webhook acknowledgment. Returns false when the queue is full.
func (p *Pipeline) Enqueue(d Delivery) bool {
	select {
	case p.queue <- d:
		return true
	default:
		return false
	}
}

// Wait blocks until all workers have drained. Used in tests and
// shutdown paths after ctx cancellation.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-p.queue:
			p.process(ctx, d)
		}
	}
}

func (p *Pipeline) process(ctx context.Context, d Delivery) {
	result := parser.Parse(d.Platform, d.Body)
	switch result.Outcome {
	case parser.OutcomeMalformed:
		log.Printf("[Ingest] Dropping malformed %s payload (%d bytes)", d.Platform, len(d.Body))
		return
	case parser.OutcomeIgnored:
		return
	}

	failed := false
	for _, parsed := range result.Events {
		if err := p.ingestOne(ctx, parsed, d.ReceivedAt); err != nil {
			log.Printf("[Ingest] Failed to ingest %s event %s: %v", parsed.Platform, parsed.ExternalID, err)
			failed = true
		}
	}
	if failed {
		// The webhook was already acked; dropping the delivery here
		// would lose the event for good. Re-processing is safe, the
		// store dedups on append.
		p.requeue(ctx, d)
	}
}

// requeue puts a failed delivery back on the queue after a backoff,
// up to maxIngestAttempts.
func (p *Pipeline) requeue(ctx context.Context, d Delivery) {
	d.Attempts++
	if d.Attempts >= maxIngestAttempts {
		log.Printf("[Ingest] Dropping %s delivery after %d failed attempts", d.Platform, d.Attempts)
		return
	}

	delay := time.Duration(d.Attempts) * p.requeueDelay
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		if !p.Enqueue(d) {
			log.Printf("[Ingest] Queue full, dropping %s delivery on requeue", d.Platform)
		}
	}()
}

func (p *Pipeline) ingestOne(ctx context.Context, parsed *parser.ParsedEvent, receivedAt time.Time) error {
	username := ""
	mapping, err := p.resolver.Resolve(ctx, parsed.Platform, parsed.RecipientSubjectID)
	switch {
	case err == nil:
		username = mapping.Username
	case errors.Is(err, identityusecase.ErrUnresolved):
		// Keep the event rather than drop it; the retry loop re-keys it
		// once a mapping appears.
		username = eventdomain.PlaceholderUsername(parsed.RecipientSubjectID)
	default:
		return err
	}

	event := &eventdomain.NormalizedEvent{
		Type:              parsed.Type,
		Platform:          parsed.Platform,
		Username:          username,
		ExternalID:        parsed.ExternalID,
		SenderSubjectID:   parsed.SenderSubjectID,
		SenderDisplayName: parsed.SenderDisplayName,
		SourceContextName: parsed.SourceContextName,
		Text:              parsed.Text,
		ReceivedAt:        receivedAt,
		Status:            eventdomain.EventStatusPending,
		Raw:               parsed.Raw,
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now()
	}

	_, err = p.appendAndPublish(ctx, event)
	return err
}

// Inject appends an internally produced event (e.g. a sent auto-reply)
// through the same store and fan-out path as webhook events.
func (p *Pipeline) Inject(ctx context.Context, event *eventdomain.NormalizedEvent) (bool, error) {
	return p.appendAndPublish(ctx, event)
}

func (p *Pipeline) appendAndPublish(ctx context.Context, event *eventdomain.NormalizedEvent) (bool, error) {
	inserted, err := p.events.Append(ctx, event)
	if err != nil {
		return false, err
	}
	if inserted && p.publisher != nil {
		p.publisher.PublishEvent(event)
	}
	return inserted, nil
}

func (p *Pipeline) retryLoop(ctx context.Context) {
	ticker := time.NewTicker(p.retryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.RetryUnresolved(ctx)
		}
	}
}

// RetryUnresolved re-attempts identity resolution for events held
// under placeholder usernames and re-keys the ones that now resolve.
func (p *Pipeline) RetryUnresolved(ctx context.Context) {
	for _, platformName := range parser.Platforms() {
		pending, err := p.events.ListUnresolved(ctx, platformName)
		if err != nil {
			log.Printf("[Ingest] Failed to list unresolved %s events: %v", platformName, err)
			continue
		}
		for _, event := range pending {
			subjectID := eventdomain.PlaceholderSubjectID(event.Username)
			mapping, err := p.resolver.Resolve(ctx, platformName, subjectID)
			if err != nil {
				continue
			}

			rekeyed := *event
			rekeyed.Username = mapping.Username
			if _, err := p.appendAndPublish(ctx, &rekeyed); err != nil {
				log.Printf("[Ingest] Failed to re-key event %s: %v", event.ExternalID, err)
				continue
			}
			if err := p.events.Delete(ctx, platformName, event.Username, event.ExternalID); err != nil {
				log.Printf("[Ingest] Failed to drop placeholder row for %s: %v", event.ExternalID, err)
			}
		}
	}
}
