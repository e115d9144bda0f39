package delivery

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/KomaiX512/Accountmanager-sub004/internal/event/repository"
	"github.com/KomaiX512/Accountmanager-sub004/internal/event/usecase"
	"github.com/KomaiX512/Accountmanager-sub004/pkg/sse"
)

type EventHandler struct {
	eventUsecase usecase.EventUsecase
	sseManager   *sse.Manager
}

func NewEventHandler(eventUsecase usecase.EventUsecase, sseManager *sse.Manager) *EventHandler {
	return &EventHandler{eventUsecase: eventUsecase, sseManager: sseManager}
}

// ListEvents returns an account's recent events, newest first.
// GET /api/events?platform=&username=&limit=&force=
func (h *EventHandler) ListEvents(c *gin.Context) {
	platform := c.Query("platform")
	username := c.Query("username")
	if platform == "" || username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "platform and username are required"})
		return
	}

	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	force := c.Query("force") == "true"

	events, err := h.eventUsecase.ListRecent(c.Request.Context(), platform, username, limit, force)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}

// MarkHandled flips one event's status to handled.
// PATCH /api/events/:externalId/handled?platform=&username=
func (h *EventHandler) MarkHandled(c *gin.Context) {
	platform := c.Query("platform")
	username := c.Query("username")
	externalID := c.Param("externalId")
	if platform == "" || username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "platform and username are required"})
		return
	}

	err := h.eventUsecase.MarkHandled(c.Request.Context(), platform, username, externalID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "event marked as handled"})
}

// Stream attaches the caller to the account's live SSE feed. Clients
// are expected to pull ListEvents first and tolerate one duplicate
// near the attach boundary.
// GET /api/events/stream?platform=&username=
func (h *EventHandler) Stream(c *gin.Context) {
	platform := c.Query("platform")
	username := c.Query("username")
	if platform == "" || username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "platform and username are required"})
		return
	}

	h.sseManager.ServeHTTP(c, platform, username)
}

// FlushCache invalidates the event read cache for one platform, or for
// all platforms when none is given.
// POST /api/admin/cache/flush?platform=
func (h *EventHandler) FlushCache(c *gin.Context) {
	platform := c.Query("platform")
	h.eventUsecase.FlushCache(platform)
	c.JSON(http.StatusOK, gin.H{"message": "cache flushed", "platform": platform})
}
