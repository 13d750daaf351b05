package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nextgenvending/kiosk-agent/internal/api/http/dto"
)

type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{Status: "ok"})
}
