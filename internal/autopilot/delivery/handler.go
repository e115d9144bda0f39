package delivery

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	autopilotdomain "github.com/KomaiX512/Accountmanager-sub004/internal/autopilot/domain"
	autopilotrepo "github.com/KomaiX512/Accountmanager-sub004/internal/autopilot/repository"
)

type AutopilotHandler struct {
	settings autopilotrepo.SettingsRepository
	drafts   autopilotrepo.DraftRepository
}

func NewAutopilotHandler(settings autopilotrepo.SettingsRepository, drafts autopilotrepo.DraftRepository) *AutopilotHandler {
	return &AutopilotHandler{settings: settings, drafts: drafts}
}

// GetSettings returns an account's autopilot settings, creating the
// all-disabled default on first read.
// GET /api/autopilot/:platform/:username/settings
func (h *AutopilotHandler) GetSettings(c *gin.Context) {
	settings, err := h.settings.Get(c.Request.Context(), c.Param("platform"), c.Param("username"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}

type updateSettingsRequest struct {
	Enabled      *bool                            `json:"enabled"`
	Capabilities map[string]updateCapabilityBlock `json:"capabilities"`
}

type updateCapabilityBlock struct {
	Enabled         *bool `json:"enabled"`
	IntervalSeconds *int  `json:"interval_seconds"`
}

// UpdateSettings applies user edits to the enable flags and cadences.
// Run timestamps are owned by the scheduler and are preserved as-is.
// PUT /api/autopilot/:platform/:username/settings
func (h *AutopilotHandler) UpdateSettings(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	platform := c.Param("platform")
	username := c.Param("username")

	settings, err := h.settings.Get(c.Request.Context(), platform, username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if req.Enabled != nil {
		settings.Enabled = *req.Enabled
	}
	for name, block := range req.Capabilities {
		capSettings, ok := settings.Capabilities[name]
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown capability: " + name})
			return
		}
		if block.Enabled != nil {
			capSettings.Enabled = *block.Enabled
		}
		if block.IntervalSeconds != nil && *block.IntervalSeconds > 0 {
			capSettings.IntervalSeconds = *block.IntervalSeconds
		}
		settings.Capabilities[name] = capSettings
	}

	if err := h.settings.Save(c.Request.Context(), settings); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, settings)
}

// ListDrafts returns the account's queued post drafts.
// GET /api/autopilot/:platform/:username/drafts
func (h *AutopilotHandler) ListDrafts(c *gin.Context) {
	drafts, err := h.drafts.List(c.Request.Context(), c.Param("platform"), c.Param("username"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"drafts": drafts, "count": len(drafts)})
}

type createDraftRequest struct {
	Text         string     `json:"text" binding:"required"`
	MediaURL     string     `json:"media_url"`
	ScheduledFor *time.Time `json:"scheduled_for"`
}

// CreateDraft queues content for autoSchedule to pick up.
// POST /api/autopilot/:platform/:username/drafts
func (h *AutopilotHandler) CreateDraft(c *gin.Context) {
	var req createDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	draft := &autopilotdomain.PostDraft{
		Text:     req.Text,
		MediaURL: req.MediaURL,
	}
	if req.ScheduledFor != nil {
		draft.ScheduledFor = *req.ScheduledFor
	}

	err := h.drafts.Add(c.Request.Context(), c.Param("platform"), c.Param("username"), draft)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, draft)
}

// DeleteDraft removes a queued draft before autoSchedule consumes it.
// DELETE /api/autopilot/:platform/:username/drafts/:draftId
func (h *AutopilotHandler) DeleteDraft(c *gin.Context) {
	err := h.drafts.Delete(c.Request.Context(), c.Param("platform"), c.Param("username"), c.Param("draftId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "draft deleted"})
}
