package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextgenvending/kiosk-agent/internal/api/http/dto"
	"github.com/nextgenvending/kiosk-agent/internal/backend"
	"github.com/nextgenvending/kiosk-agent/internal/catalog"
	"github.com/nextgenvending/kiosk-agent/internal/identity"
	"github.com/nextgenvending/kiosk-agent/internal/liveness"
)

func slot(id string, stock int) backend.MachineProduct {
	pos := 1
	return backend.MachineProduct{
		ID:           id,
		StockLevel:   stock,
		SlotPosition: &pos,
		Product:      backend.Product{ID: "p-" + id, Name: "Cola", Price: 2.5, ProductCode: "A1"},
	}
}

func setupCatalogRouter(svc *catalog.Service) *gin.Engine {
	r := gin.New()
	ph := NewProductsHandler(svc)
	r.GET("/api/v1/products", ph.List)
	r.POST("/api/v1/products/refresh", ph.Refresh)
	r.POST("/api/v1/purchase", NewPurchaseHandler(svc).Purchase)
	return r
}

func pairedCatalog(t *testing.T, fb *fakeBackend, livenessFn func() liveness.State) *catalog.Service {
	t.Helper()
	store := identity.NewMemoryStore()
	require.NoError(t, store.Save(identity.MachineIdentity{MachineID: "m-1", MachineToken: "t-1"}))
	return catalog.NewService(store, fb, livenessFn)
}

func online() liveness.State  { return liveness.State{Online: true} }
func offline() liveness.State { return liveness.State{Online: false} }

func TestListProductsEmpty(t *testing.T) {
	svc := pairedCatalog(t, &fakeBackend{}, online)
	r := setupCatalogRouter(svc)

	req, _ := http.NewRequest("GET", "/api/v1/products", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.ProductsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Count)
	assert.NotNil(t, resp.Products)
	assert.Nil(t, resp.LastFetched)
}

func TestRefreshProducts(t *testing.T) {
	fb := &fakeBackend{products: []backend.MachineProduct{slot("mp-1", 5), slot("mp-2", 0)}}
	svc := pairedCatalog(t, fb, online)
	r := setupCatalogRouter(svc)

	req, _ := http.NewRequest("POST", "/api/v1/products/refresh", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.ProductsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "Cola", resp.Products[0].Name)
	assert.NotNil(t, resp.LastFetched)
}

func TestRefreshProductsUnpaired(t *testing.T) {
	svc := catalog.NewService(identity.NewMemoryStore(), &fakeBackend{}, online)
	r := setupCatalogRouter(svc)

	req, _ := http.NewRequest("POST", "/api/v1/products/refresh", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPurchaseSuccess(t *testing.T) {
	fb := &fakeBackend{
		products:     []backend.MachineProduct{slot("mp-1", 5)},
		purchaseResp: &backend.PurchaseResponse{PurchaseID: "pur-1", StockLevel: 4},
	}
	svc := pairedCatalog(t, fb, online)
	require.NoError(t, svc.Refresh(context.Background()))
	r := setupCatalogRouter(svc)

	body, _ := json.Marshal(dto.PurchaseRequest{MachineProductID: "mp-1"})
	req, _ := http.NewRequest("POST", "/api/v1/purchase", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.PurchaseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "pur-1", resp.PurchaseID)
	assert.Equal(t, 4, resp.StockLevel)
}

func TestPurchaseMissingBody(t *testing.T) {
	svc := pairedCatalog(t, &fakeBackend{}, online)
	r := setupCatalogRouter(svc)

	req, _ := http.NewRequest("POST", "/api/v1/purchase", bytes.NewBuffer([]byte("{}")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPurchaseUnknownProduct(t *testing.T) {
	fb := &fakeBackend{products: []backend.MachineProduct{slot("mp-1", 5)}}
	svc := pairedCatalog(t, fb, online)
	require.NoError(t, svc.Refresh(context.Background()))
	r := setupCatalogRouter(svc)

	body, _ := json.Marshal(dto.PurchaseRequest{MachineProductID: "mp-unknown"})
	req, _ := http.NewRequest("POST", "/api/v1/purchase", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPurchaseOutOfStock(t *testing.T) {
	fb := &fakeBackend{products: []backend.MachineProduct{slot("mp-1", 0)}}
	svc := pairedCatalog(t, fb, online)
	require.NoError(t, svc.Refresh(context.Background()))
	r := setupCatalogRouter(svc)

	body, _ := json.Marshal(dto.PurchaseRequest{MachineProductID: "mp-1"})
	req, _ := http.NewRequest("POST", "/api/v1/purchase", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPurchaseMachineOffline(t *testing.T) {
	fb := &fakeBackend{products: []backend.MachineProduct{slot("mp-1", 5)}}
	svc := pairedCatalog(t, fb, offline)
	require.NoError(t, svc.Refresh(context.Background()))
	r := setupCatalogRouter(svc)

	body, _ := json.Marshal(dto.PurchaseRequest{MachineProductID: "mp-1"})
	req, _ := http.NewRequest("POST", "/api/v1/purchase", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
