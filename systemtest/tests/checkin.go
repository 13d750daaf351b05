package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextgenvending/kiosk-agent/internal/api/http/dto"
)

func TestManualCheckin(t *testing.T, router *gin.Engine) {
	rr := doJSON(router, "POST", "/api/v1/checkin", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp dto.CheckinTriggerResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Empty(t, resp.LastError)

	rr = doJSON(router, "GET", "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var status dto.StatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.True(t, status.Paired)
	assert.Equal(t, "m-sys-1", status.MachineID)
	assert.True(t, status.IsOnline)
	assert.Equal(t, 0, status.MinutesSinceLastSync)
	require.NotNil(t, status.LastSuccessfulCheckin)
}
