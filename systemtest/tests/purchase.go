package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextgenvending/kiosk-agent/internal/api/http/dto"
	"github.com/nextgenvending/kiosk-agent/internal/backend"
	"github.com/nextgenvending/kiosk-agent/systemtest/backendstub"
)

func TestCatalogAndPurchase(t *testing.T, router *gin.Engine, stub *backendstub.Server) {
	slotA := 1
	slotB := 2
	stub.SetProducts([]backend.MachineProduct{
		{
			ID: "mp-1", StockLevel: 3, SlotPosition: &slotA,
			Product: backend.Product{ID: "p-1", Name: "Cola", Price: 2.5, ProductCode: "A1"},
		},
		{
			ID: "mp-2", StockLevel: 0, SlotPosition: &slotB,
			Product: backend.Product{ID: "p-2", Name: "Chips", Price: 1.75, ProductCode: "B2"},
		},
	})

	rr := doJSON(router, "POST", "/api/v1/products/refresh", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var list dto.ProductsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Equal(t, 2, list.Count)
	assert.Equal(t, "Cola", list.Products[0].Name)

	rr = doJSON(router, "POST", "/api/v1/purchase", dto.PurchaseRequest{MachineProductID: "mp-1"})
	require.Equal(t, http.StatusOK, rr.Code)

	var purchase dto.PurchaseResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &purchase))
	assert.NotEmpty(t, purchase.PurchaseID)
	assert.Equal(t, 2, purchase.StockLevel)

	rr = doJSON(router, "POST", "/api/v1/purchase", dto.PurchaseRequest{MachineProductID: "mp-2"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = doJSON(router, "POST", "/api/v1/purchase", dto.PurchaseRequest{MachineProductID: "mp-missing"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
