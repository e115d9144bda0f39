package delivery

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	identityrepo "github.com/KomaiX512/Accountmanager-sub004/internal/identity/repository"
	identityusecase "github.com/KomaiX512/Accountmanager-sub004/internal/identity/usecase"
)

type IdentityHandler struct {
	resolver identityusecase.Resolver
}

func NewIdentityHandler(resolver identityusecase.Resolver) *IdentityHandler {
	return &IdentityHandler{resolver: resolver}
}

type connectRequest struct {
	Platform  string `json:"platform" binding:"required"`
	SubjectID string `json:"subject_id" binding:"required"`
	Username  string `json:"username" binding:"required"`
}

// Connect records the subject-ID mapping for a freshly connected
// platform account. A subject already mapped to a different username
// is a conflict, never a merge.
// POST /api/identity/connect
func (h *IdentityHandler) Connect(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.resolver.Connect(c.Request.Context(), req.Platform, req.SubjectID, req.Username)
	if err != nil {
		if errors.Is(err, identityrepo.ErrMappingConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "subject is already mapped to a different username"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "account connected"})
}

// Resolve looks a subject ID up, using the platform profile API as
// fallback.
// GET /api/identity/resolve?platform=&subject_id=
func (h *IdentityHandler) Resolve(c *gin.Context) {
	platform := c.Query("platform")
	subjectID := c.Query("subject_id")
	if platform == "" || subjectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "platform and subject_id are required"})
		return
	}

	mapping, err := h.resolver.Resolve(c.Request.Context(), platform, subjectID)
	if err != nil {
		if errors.Is(err, identityusecase.ErrUnresolved) {
			c.JSON(http.StatusNotFound, gin.H{"error": "subject could not be resolved"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, mapping)
}
