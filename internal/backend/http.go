package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nextgenvending/kiosk-agent/internal/auth"
	"github.com/nextgenvending/kiosk-agent/internal/identity"
)

const requestTimeout = 10 * time.Second

// HTTPClient talks JSON over HTTP to the vending backend.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	tokens  auth.TokenSource
}

func NewHTTPClient(baseURL string, tokens auth.TokenSource) *HTTPClient {
	if tokens == nil {
		tokens = auth.NoneSource{}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: requestTimeout},
		tokens:  tokens,
	}
}

func (c *HTTPClient) CheckIn(ctx context.Context, req CheckinRequest) (*CheckinResponse, error) {
	var resp CheckinResponse
	if err := c.do(ctx, http.MethodPost, "/api/machine-checkin", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) CreatePairingLink(ctx context.Context) (*PairingLink, error) {
	var link PairingLink
	if err := c.do(ctx, http.MethodPost, "/api/pairing-links", struct{}{}, &link); err != nil {
		return nil, err
	}
	if link.PairingCode == "" {
		return nil, &PermanentError{Err: fmt.Errorf("pairing link response missing pairing_code")}
	}
	return &link, nil
}

func (c *HTTPClient) PollPairing(ctx context.Context, code string) (*identity.MachineIdentity, error) {
	var claimed identity.MachineIdentity
	err := c.do(ctx, http.MethodGet, "/api/pairing-links/"+url.PathEscape(code), nil, &claimed)
	if err != nil {
		// An unknown or expired code is the backend's way of saying "keep
		// waiting"; expiry policy is entirely backend-side.
		var pe *PermanentError
		if errors.As(err, &pe) && pe.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	if !claimed.Complete() {
		return nil, nil
	}
	return &claimed, nil
}

func (c *HTTPClient) ListProducts(ctx context.Context, machineID string) ([]MachineProduct, error) {
	var resp struct {
		Products []MachineProduct `json:"products"`
	}
	path := "/api/machines/" + url.PathEscape(machineID) + "/products"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Products, nil
}

func (c *HTTPClient) Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResponse, error) {
	var resp PurchaseResponse
	if err := c.do(ctx, http.MethodPost, "/api/purchases", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do runs one JSON request/response cycle. Transport failures come back as
// *TransientError, non-2xx statuses are classified by code, and a body that
// does not decode into out is a *PermanentError.
func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := c.tokens.Token(); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransientError{Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Debug("Backend request failed", "method", method, "path", path, "status", resp.StatusCode)
		return statusError(resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return &PermanentError{Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}
