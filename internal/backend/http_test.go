package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nextgenvending/kiosk-agent/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckInSuccess(t *testing.T) {
	var got CheckinRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/machine-checkin", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"machine_id":"m-2","machine":{"machine_token":"t-2"}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	resp, err := c.CheckIn(context.Background(), CheckinRequest{
		MachineID:    "m-1",
		MachineToken: "t-1",
		Status:       CheckinStatus{Battery: 100, UptimeMinutes: 12},
	})
	require.NoError(t, err)

	assert.Equal(t, "m-1", got.MachineID)
	assert.Equal(t, 100, got.Status.Battery)
	assert.Equal(t, "m-2", resp.MachineID)
	assert.Equal(t, "t-2", resp.Machine.MachineToken)
}

func TestCheckInSendsBearerToken(t *testing.T) {
	var authHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		w.Write([]byte(`{"machine":{}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, auth.NewBearerSource("opaque-token"))
	_, err := c.CheckIn(context.Background(), CheckinRequest{MachineID: "m-1"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer opaque-token", authHeader)
}

func TestCheckInServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "db down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	_, err := c.CheckIn(context.Background(), CheckinRequest{MachineID: "m-1"})
	require.Error(t, err)
	assert.True(t, IsTransient(err))

	var te *TransientError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusServiceUnavailable, te.Status)
}

func TestCheckInRateLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	_, err := c.CheckIn(context.Background(), CheckinRequest{MachineID: "m-1"})
	assert.True(t, IsTransient(err))
}

func TestCheckInClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown machine", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	_, err := c.CheckIn(context.Background(), CheckinRequest{MachineID: "m-1"})
	require.Error(t, err)
	assert.False(t, IsTransient(err))

	var pe *PermanentError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusNotFound, pe.Status)
	assert.Contains(t, pe.Error(), "unknown machine")
}

func TestCheckInUnreachableIsTransient(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", nil)
	_, err := c.CheckIn(context.Background(), CheckinRequest{MachineID: "m-1"})
	assert.True(t, IsTransient(err))
}

func TestCheckInMalformedBodyIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	_, err := c.CheckIn(context.Background(), CheckinRequest{MachineID: "m-1"})
	require.Error(t, err)
	assert.False(t, IsTransient(err))
}

func TestCreatePairingLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/pairing-links", r.URL.Path)
		w.Write([]byte(`{"pairing_code":"482913","link_id":"link-1"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	link, err := c.CreatePairingLink(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "482913", link.PairingCode)
	assert.Equal(t, "link-1", link.LinkID)
}

func TestCreatePairingLinkEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	_, err := c.CreatePairingLink(context.Background())
	require.Error(t, err)
	assert.False(t, IsTransient(err))
}

func TestPollPairingPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	claimed, err := c.PollPairing(context.Background(), "482913")
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestPollPairingPartialIsPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Claim in progress: id assigned but token not yet issued.
		w.Write([]byte(`{"machine_id":"m-1"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	claimed, err := c.PollPairing(context.Background(), "482913")
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestPollPairingClaimed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/pairing-links/482913", r.URL.Path)
		w.Write([]byte(`{"machine_id":"m-1","machine_token":"t-1"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	claimed, err := c.PollPairing(context.Background(), "482913")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, "m-1", claimed.MachineID)
	assert.Equal(t, "t-1", claimed.MachineToken)
}

func TestPollPairingServerErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	_, err := c.PollPairing(context.Background(), "482913")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestListProducts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/machines/m-1/products", r.URL.Path)
		w.Write([]byte(`{"products":[
			{"id":"mp-1","stock_level":4,"slot_position":1,
			 "product":{"id":"p-1","name":"Cola","price":2.5,"product_code":"A1"}}
		]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	products, err := c.ListProducts(context.Background(), "m-1")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Cola", products[0].Product.Name)
	assert.Equal(t, 4, products[0].StockLevel)
	require.NotNil(t, products[0].SlotPosition)
	assert.Equal(t, 1, *products[0].SlotPosition)
}

func TestPurchase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/purchases", r.URL.Path)
		w.Write([]byte(`{"purchase_id":"pur-1","stock_level":3}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	resp, err := c.Purchase(context.Background(), PurchaseRequest{
		MachineID:        "m-1",
		MachineProductID: "mp-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "pur-1", resp.PurchaseID)
	assert.Equal(t, 3, resp.StockLevel)
}
