package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextgenvending/kiosk-agent/internal/api/http/dto"
	"github.com/nextgenvending/kiosk-agent/internal/pairing"
	"github.com/nextgenvending/kiosk-agent/systemtest/backendstub"
)

func TestPairingFlow(t *testing.T, router *gin.Engine, session *pairing.Session, stub *backendstub.Server) {
	require.NoError(t, session.Start(context.Background()))

	rr := doJSON(router, "GET", "/api/v1/pairing", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var snap dto.PairingResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	require.Equal(t, "awaiting_claim", snap.State)
	require.NotEmpty(t, snap.PairingCode)
	assert.Contains(t, snap.ClaimURL, snap.PairingCode)

	require.NoError(t, stub.Claim(snap.PairingCode, "m-sys-1", "t-sys-1"))

	select {
	case <-session.Paired():
	case <-time.After(5 * time.Second):
		t.Fatal("pairing did not complete after claim")
	}

	rr = doJSON(router, "GET", "/api/v1/pairing", nil)
	snap = dto.PairingResponse{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, "paired", snap.State)
	assert.Empty(t, snap.PairingCode)
}

func TestAdminReset(t *testing.T, router *gin.Engine, apiKey string) {
	rr := doJSON(router, "POST", "/api/v1/pairing/reset", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doJSONWithKey(router, "POST", "/api/v1/pairing/reset", nil, "wrong-key")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doJSONWithKey(router, "POST", "/api/v1/pairing/reset", nil, apiKey)
	require.Equal(t, http.StatusOK, rr.Code)

	var snap dto.PairingResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, "awaiting_claim", snap.State)
	assert.NotEmpty(t, snap.PairingCode)

	var status dto.StatusResponse
	rr = doJSON(router, "GET", "/api/v1/status", nil)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.False(t, status.Paired)
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	return doJSONWithKey(router, method, path, body, "")
}

func doJSONWithKey(router *gin.Engine, method, path string, body any, apiKey string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}
