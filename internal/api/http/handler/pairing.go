package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nextgenvending/kiosk-agent/internal/api/http/dto"
	"github.com/nextgenvending/kiosk-agent/internal/checkin"
	"github.com/nextgenvending/kiosk-agent/internal/pairing"
)

// PairingHandler serves the pairing screen and the admin-guarded reset.
type PairingHandler struct {
	session *pairing.Session
	agent   *checkin.Agent
}

func NewPairingHandler(session *pairing.Session, agent *checkin.Agent) *PairingHandler {
	return &PairingHandler{session: session, agent: agent}
}

func (h *PairingHandler) Current(c *gin.Context) {
	c.JSON(http.StatusOK, snapshotToDTO(h.session.Snapshot()))
}

// Reset wipes the stored identity and starts a fresh pairing cycle. Any
// in-flight check-in result is discarded before the wipe so it cannot
// resurrect the old identity.
func (h *PairingHandler) Reset(c *gin.Context) {
	if err := h.agent.Reset(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset machine identity"})
		return
	}
	if err := h.session.Reset(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset pairing session"})
		return
	}

	// The poll loop outlives this request, so it gets its own context.
	if err := h.session.Start(context.Background()); err != nil {
		// Identity is wiped either way; the snapshot carries the failure
		// and Start can be retried via another reset.
		c.JSON(http.StatusBadGateway, snapshotToDTO(h.session.Snapshot()))
		return
	}

	c.JSON(http.StatusOK, snapshotToDTO(h.session.Snapshot()))
}

func snapshotToDTO(snap pairing.Snapshot) dto.PairingResponse {
	return dto.PairingResponse{
		State:       string(snap.State),
		PairingCode: snap.PairingCode,
		LinkID:      snap.LinkID,
		ClaimURL:    snap.ClaimURL,
		LastError:   snap.LastError,
	}
}
