package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nextgenvending/kiosk-agent/internal/api/http/dto"
	"github.com/nextgenvending/kiosk-agent/internal/checkin"
	"github.com/nextgenvending/kiosk-agent/internal/identity"
)

// StatusHandler reports the machine's pairing state and derived liveness in
// one payload for the kiosk status bar.
type StatusHandler struct {
	store identity.Store
	agent *checkin.Agent
}

func NewStatusHandler(store identity.Store, agent *checkin.Agent) *StatusHandler {
	return &StatusHandler{store: store, agent: agent}
}

func (h *StatusHandler) Status(c *gin.Context) {
	resp := dto.StatusResponse{
		LastError:    h.agent.LastError(),
		IsCheckingIn: h.agent.IsCheckingIn(),
	}

	id, ok, err := h.store.Load()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read machine identity"})
		return
	}
	if ok && id.Complete() {
		resp.Paired = true
		resp.MachineID = id.MachineID
	}

	state := h.agent.Liveness()
	resp.IsOnline = state.Online
	resp.MinutesSinceLastSync = state.MinutesSinceLastSync
	resp.UptimeMinutes = h.agent.UptimeMinutes()

	if last, ok := h.agent.LastSuccessfulCheckin(); ok {
		resp.LastSuccessfulCheckin = &last
	}

	c.JSON(http.StatusOK, resp)
}
