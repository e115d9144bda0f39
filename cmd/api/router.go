package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	authDelivery "github.com/KomaiX512/Accountmanager-sub004/internal/auth/delivery"
	autopilotDelivery "github.com/KomaiX512/Accountmanager-sub004/internal/autopilot/delivery"
	eventDelivery "github.com/KomaiX512/Accountmanager-sub004/internal/event/delivery"
	identityDelivery "github.com/KomaiX512/Accountmanager-sub004/internal/identity/delivery"
	notificationDelivery "github.com/KomaiX512/Accountmanager-sub004/internal/notification/delivery"
	webhookDelivery "github.com/KomaiX512/Accountmanager-sub004/internal/webhook/delivery"
	"github.com/KomaiX512/Accountmanager-sub004/pkg/config"
)

func SetupRoutes(
	r *gin.Engine,
	cfg *config.Config,
	webhookHandler *webhookDelivery.WebhookHandler,
	eventHandler *eventDelivery.EventHandler,
	identityHandler *identityDelivery.IdentityHandler,
	autopilotHandler *autopilotDelivery.AutopilotHandler,
	deviceHandler *notificationDelivery.DeviceHandler,
) {
	auth := authDelivery.AuthMiddleware(cfg.JWTSecret)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Webhook routes: platforms call these, so no dashboard auth.
		webhooks := api.Group("/webhooks")
		{
			webhooks.GET("/:platform", webhookHandler.Verify)
			webhooks.POST("/:platform", webhookHandler.Receive)
		}

		// Event routes (protected)
		events := api.Group("/events")
		events.Use(auth)
		{
			events.GET("", eventHandler.ListEvents)
			events.GET("/stream", eventHandler.Stream)
			events.PATCH("/:externalId/handled", eventHandler.MarkHandled)
		}

		// Identity routes (protected)
		identity := api.Group("/identity")
		identity.Use(auth)
		{
			identity.POST("/connect", identityHandler.Connect)
			identity.GET("/resolve", identityHandler.Resolve)
		}

		// Autopilot routes (protected)
		autopilot := api.Group("/autopilot/:platform/:username")
		autopilot.Use(auth)
		{
			autopilot.GET("/settings", autopilotHandler.GetSettings)
			autopilot.PUT("/settings", autopilotHandler.UpdateSettings)
			autopilot.GET("/drafts", autopilotHandler.ListDrafts)
			autopilot.POST("/drafts", autopilotHandler.CreateDraft)
			autopilot.DELETE("/drafts/:draftId", autopilotHandler.DeleteDraft)
		}

		// Device routes (protected) - FCM push registration
		devices := api.Group("/devices")
		devices.Use(auth)
		{
			devices.POST("", deviceHandler.RegisterDevice)
			devices.DELETE("/:token", deviceHandler.UnregisterDevice)
		}

		// Admin routes (protected)
		admin := api.Group("/admin")
		admin.Use(auth)
		{
			admin.POST("/cache/flush", eventHandler.FlushCache)
		}
	}
}
