package delivery

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/KomaiX512/Accountmanager-sub004/internal/notification"
)

type DeviceHandler struct {
	devices notification.DeviceRepository
}

func NewDeviceHandler(devices notification.DeviceRepository) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

type registerDeviceRequest struct {
	Platform string `json:"platform" binding:"required"`
	Username string `json:"username" binding:"required"`
	Token    string `json:"token" binding:"required"`
}

// RegisterDevice stores an FCM token for an account's dashboard device.
// POST /api/devices
func (h *DeviceHandler) RegisterDevice(c *gin.Context) {
	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.devices.Register(c.Request.Context(), req.Platform, req.Username, req.Token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "device registered"})
}

// UnregisterDevice removes an FCM token.
// DELETE /api/devices/:token?platform=&username=
func (h *DeviceHandler) UnregisterDevice(c *gin.Context) {
	platform := c.Query("platform")
	username := c.Query("username")
	if platform == "" || username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "platform and username are required"})
		return
	}

	if err := h.devices.Remove(c.Request.Context(), platform, username, c.Param("token")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "device unregistered"})
}
