package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/outfitmatch-backend/internal/http/response"
)

type HealthHandler struct {
	now func() time.Time
}

func NewHealthHandler() *HealthHandler { return &HealthHandler{now: time.Now} }

// GET /api/health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	response.RespondOK(c, gin.H{"status": "healthy", "timestamp": h.now().UTC().Format(time.RFC3339)})
}
