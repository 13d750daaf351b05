package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nextgenvending/kiosk-agent/internal/api/http/dto"
	"github.com/nextgenvending/kiosk-agent/internal/checkin"
)

// CheckinHandler exposes the manual "sync now" button. Concurrent presses
// coalesce into the agent's single in-flight attempt.
type CheckinHandler struct {
	agent *checkin.Agent
}

func NewCheckinHandler(agent *checkin.Agent) *CheckinHandler {
	return &CheckinHandler{agent: agent}
}

func (h *CheckinHandler) Trigger(c *gin.Context) {
	ok := h.agent.Checkin(c.Request.Context())

	resp := dto.CheckinTriggerResponse{Success: ok}
	if !ok {
		resp.LastError = h.agent.LastError()
		c.JSON(http.StatusBadGateway, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
