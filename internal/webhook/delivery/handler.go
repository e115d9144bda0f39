package delivery

import (
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/KomaiX512/Accountmanager-sub004/internal/ingest"
	"github.com/KomaiX512/Accountmanager-sub004/internal/webhook/parser"
)

// maxBodyBytes caps webhook bodies; platforms send small envelopes.
const maxBodyBytes = 1 << 20

type WebhookHandler struct {
	pipeline    *ingest.Pipeline
	verifyToken string
}

func NewWebhookHandler(pipeline *ingest.Pipeline, verifyToken string) *WebhookHandler {
	return &WebhookHandler{pipeline: pipeline, verifyToken: verifyToken}
}

// Verify answers the subscription-setup challenge handshake.
// GET /api/webhooks/:platform
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token != "" && token == h.verifyToken {
		c.String(http.StatusOK, challenge)
		return
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "verification failed"})
}

// Receive acknowledges a webhook delivery fast and hands the body to
// the ingest queue. Anything downstream (normalization, storage,
// fan-out) happens off this path so a slow store can never cause
// upstream delivery timeouts.
// POST /api/webhooks/:platform
func (h *WebhookHandler) Receive(c *gin.Context) {
	platform := c.Param("platform")

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	// Unknown platforms and unrecognized shapes are acked anyway;
	// anything else makes the platform retry forever or suspend the
	// subscription.
	if !parser.Supported(platform) {
		log.Printf("[Webhook] Acking delivery for unregistered platform %q", platform)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if !h.pipeline.Enqueue(ingest.Delivery{
		Platform:   platform,
		Body:       body,
		ReceivedAt: time.Now(),
	}) {
		// The one legitimate upstream-retry case: we cannot queue the
		// event durably, so let the platform redeliver.
		log.Printf("[Webhook] Ingest queue full, refusing %s delivery", platform)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ingest queue full"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
