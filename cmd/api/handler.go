package api

import (
	"github.com/gin-gonic/gin"

	autopilotDelivery "github.com/KomaiX512/Accountmanager-sub004/internal/autopilot/delivery"
	eventDelivery "github.com/KomaiX512/Accountmanager-sub004/internal/event/delivery"
	identityDelivery "github.com/KomaiX512/Accountmanager-sub004/internal/identity/delivery"
	notificationDelivery "github.com/KomaiX512/Accountmanager-sub004/internal/notification/delivery"
	webhookDelivery "github.com/KomaiX512/Accountmanager-sub004/internal/webhook/delivery"
	"github.com/KomaiX512/Accountmanager-sub004/pkg/config"
)

type Handler struct {
	config           *config.Config
	webhookHandler   *webhookDelivery.WebhookHandler
	eventHandler     *eventDelivery.EventHandler
	identityHandler  *identityDelivery.IdentityHandler
	autopilotHandler *autopilotDelivery.AutopilotHandler
	deviceHandler    *notificationDelivery.DeviceHandler
}

func NewHandler(
	cfg *config.Config,
	webhookHandler *webhookDelivery.WebhookHandler,
	eventHandler *eventDelivery.EventHandler,
	identityHandler *identityDelivery.IdentityHandler,
	autopilotHandler *autopilotDelivery.AutopilotHandler,
	deviceHandler *notificationDelivery.DeviceHandler,
) *Handler {
	return &Handler{
		config:           cfg,
		webhookHandler:   webhookHandler,
		eventHandler:     eventHandler,
		identityHandler:  identityHandler,
		autopilotHandler: autopilotHandler,
		deviceHandler:    deviceHandler,
	}
}

func (h *Handler) Start(addr string) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.config, h.webhookHandler, h.eventHandler, h.identityHandler, h.autopilotHandler, h.deviceHandler)

	return r.Run(addr)
}
