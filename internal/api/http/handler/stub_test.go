package handler

import (
	"context"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/nextgenvending/kiosk-agent/internal/backend"
	"github.com/nextgenvending/kiosk-agent/internal/identity"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeBackend satisfies backend.Client with canned responses.
type fakeBackend struct {
	mu sync.Mutex

	checkinResp  *backend.CheckinResponse
	checkinErr   error
	checkinCalls int

	link    *backend.PairingLink
	linkErr error

	pollIdentity *identity.MachineIdentity
	pollErr      error

	products    []backend.MachineProduct
	productsErr error

	purchaseResp *backend.PurchaseResponse
	purchaseErr  error
}

func (f *fakeBackend) CheckIn(ctx context.Context, req backend.CheckinRequest) (*backend.CheckinResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkinCalls++
	if f.checkinErr != nil {
		return nil, f.checkinErr
	}
	if f.checkinResp != nil {
		return f.checkinResp, nil
	}
	return &backend.CheckinResponse{}, nil
}

func (f *fakeBackend) CreatePairingLink(ctx context.Context) (*backend.PairingLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.linkErr != nil {
		return nil, f.linkErr
	}
	return f.link, nil
}

func (f *fakeBackend) PollPairing(ctx context.Context, code string) (*identity.MachineIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pollIdentity, f.pollErr
}

func (f *fakeBackend) ListProducts(ctx context.Context, machineID string) ([]backend.MachineProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.productsErr != nil {
		return nil, f.productsErr
	}
	return f.products, nil
}

func (f *fakeBackend) Purchase(ctx context.Context, req backend.PurchaseRequest) (*backend.PurchaseResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.purchaseErr != nil {
		return nil, f.purchaseErr
	}
	return f.purchaseResp, nil
}
