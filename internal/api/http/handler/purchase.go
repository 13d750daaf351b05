package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nextgenvending/kiosk-agent/internal/api/http/dto"
	"github.com/nextgenvending/kiosk-agent/internal/catalog"
)

// PurchaseHandler records vends. Precondition failures map to distinct
// status codes so the UI can show a specific message per case.
type PurchaseHandler struct {
	service *catalog.Service
}

func NewPurchaseHandler(service *catalog.Service) *PurchaseHandler {
	return &PurchaseHandler{service: service}
}

func (h *PurchaseHandler) Purchase(c *gin.Context) {
	var req dto.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "machine_product_id is required"})
		return
	}

	resp, err := h.service.Purchase(c.Request.Context(), req.MachineProductID)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrNotPaired):
			c.JSON(http.StatusConflict, gin.H{"error": "Machine is not paired"})
		case errors.Is(err, catalog.ErrUnknownProduct):
			c.JSON(http.StatusNotFound, gin.H{"error": "Product is not assigned to this machine"})
		case errors.Is(err, catalog.ErrOutOfStock):
			c.JSON(http.StatusConflict, gin.H{"error": "Product is out of stock"})
		case errors.Is(err, catalog.ErrMachineOffline):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Machine is offline; purchases are disabled"})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "Purchase failed"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.PurchaseResponse{
		PurchaseID: resp.PurchaseID,
		StockLevel: resp.StockLevel,
	})
}
