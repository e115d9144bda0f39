package main

import (
	"context"
	"log"

	api "github.com/KomaiX512/Accountmanager-sub004/cmd/api"
	"github.com/KomaiX512/Accountmanager-sub004/internal/autopilot/capability"
	autopilotDelivery "github.com/KomaiX512/Accountmanager-sub004/internal/autopilot/delivery"
	autopilotRepo "github.com/KomaiX512/Accountmanager-sub004/internal/autopilot/repository"
	"github.com/KomaiX512/Accountmanager-sub004/internal/autopilot/scheduler"
	eventDelivery "github.com/KomaiX512/Accountmanager-sub004/internal/event/delivery"
	eventRepo "github.com/KomaiX512/Accountmanager-sub004/internal/event/repository"
	eventUsecase "github.com/KomaiX512/Accountmanager-sub004/internal/event/usecase"
	identityDelivery "github.com/KomaiX512/Accountmanager-sub004/internal/identity/delivery"
	identityRepo "github.com/KomaiX512/Accountmanager-sub004/internal/identity/repository"
	identityUsecase "github.com/KomaiX512/Accountmanager-sub004/internal/identity/usecase"
	"github.com/KomaiX512/Accountmanager-sub004/internal/ingest"
	"github.com/KomaiX512/Accountmanager-sub004/internal/notification"
	notificationDelivery "github.com/KomaiX512/Accountmanager-sub004/internal/notification/delivery"
	webhookDelivery "github.com/KomaiX512/Accountmanager-sub004/internal/webhook/delivery"
	"github.com/KomaiX512/Accountmanager-sub004/pkg/blobstore"
	"github.com/KomaiX512/Accountmanager-sub004/pkg/config"
	"github.com/KomaiX512/Accountmanager-sub004/pkg/database"
	"github.com/KomaiX512/Accountmanager-sub004/pkg/fcm"
	"github.com/KomaiX512/Accountmanager-sub004/pkg/platform"
	"github.com/KomaiX512/Accountmanager-sub004/pkg/sse"
	"gorm.io/gorm"
)

func main() {
	// Load configuration
	cfg := config.Load()

	ctx := context.Background()

	// Initialize the durable object store
	var db *gorm.DB
	if cfg.StoreBackend != "memory" {
		var err error
		db, err = database.NewPostgresConnection(cfg)
		if err != nil {
			log.Fatal("Failed to connect to database:", err)
		}
	}
	store, err := blobstore.NewStore(cfg.StoreBackend, db)
	if err != nil {
		log.Fatal("Failed to initialize blob store:", err)
	}

	// Initialize repositories (dependency injection)
	events := eventRepo.NewEventRepository(store, cfg.CacheTTL)
	mappings := identityRepo.NewMappingRepository(store)
	settings := autopilotRepo.NewSettingsRepository(store)
	drafts := autopilotRepo.NewDraftRepository(store)
	devices := notification.NewDeviceRepository(store)

	// Initialize SSE Manager
	sseManager := sse.NewManager()
	go sseManager.Run(ctx)

	// Outbound platform client: identity fallback and autopilot actions
	platformClient := platform.NewClient(cfg.PlatformAPIBaseURL, cfg.PlatformAPIToken)

	// Initialize FCM Client (optional, push works without it)
	var fcmClient *fcm.Client
	if cfg.FirebaseCredentials != "" {
		fcmClient, err = fcm.NewClient(cfg.FirebaseCredentials)
		if err != nil {
			log.Printf("[WARN] Failed to initialize FCM client (push notifications disabled): %v", err)
		}
	}

	// Live fan-out: SSE always, FCM when configured
	notifier := notification.NewService(sseManager, fcmClient, devices)

	// Identity resolution with platform profile-lookup fallback
	resolver := identityUsecase.NewResolver(mappings, platformClient)

	// Ingest pipeline: webhook ack is decoupled from processing
	pipeline := ingest.NewPipeline(events, resolver, notifier, cfg.IngestWorkers, cfg.IngestQueueSize, cfg.ResolveRetry)
	pipeline.Start(ctx)

	// Optional Pub/Sub relay ingestion
	if cfg.GoogleProjectID != "" && cfg.GooglePubSubTopic != "" {
		relay, err := notification.NewRelay(cfg.GoogleProjectID, cfg.GooglePubSubTopic, pipeline, cfg.GoogleCredentials)
		if err != nil {
			log.Printf("[ERROR] Failed to initialize Pub/Sub relay: %v", err)
		} else {
			go relay.Start(ctx)
		}
	} else {
		log.Println("[WARN] GoogleProjectID not configured, Pub/Sub relay disabled")
	}

	// Event usecase and retention
	eventUc := eventUsecase.NewEventUsecase(events)
	eventUc.StartRetention(ctx, cfg.RetentionDays)

	// Autopilot scheduler
	runners := []capability.Runner{
		capability.NewAutoSchedule(drafts, platformClient),
		capability.NewAutoReply(events, pipeline, platformClient, nil),
	}
	sched := scheduler.New(settings, runners, cfg.SchedulerTick, cfg.TaskTimeout, cfg.SchedulerMaxConc)
	sched.Start(ctx)

	// Initialize HTTP handler
	handler := api.NewHandler(
		cfg,
		webhookDelivery.NewWebhookHandler(pipeline, cfg.WebhookVerifyToken),
		eventDelivery.NewEventHandler(eventUc, sseManager),
		identityDelivery.NewIdentityHandler(resolver),
		autopilotDelivery.NewAutopilotHandler(settings, drafts),
		notificationDelivery.NewDeviceHandler(devices),
	)

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
