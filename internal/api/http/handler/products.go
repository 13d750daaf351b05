package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nextgenvending/kiosk-agent/internal/api/http/dto"
	"github.com/nextgenvending/kiosk-agent/internal/backend"
	"github.com/nextgenvending/kiosk-agent/internal/catalog"
)

// ProductsHandler serves the cached slot assignments to the kiosk grid.
type ProductsHandler struct {
	service *catalog.Service
}

func NewProductsHandler(service *catalog.Service) *ProductsHandler {
	return &ProductsHandler{service: service}
}

func (h *ProductsHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.productsResponse())
}

func (h *ProductsHandler) Refresh(c *gin.Context) {
	if err := h.service.Refresh(c.Request.Context()); err != nil {
		if errors.Is(err, catalog.ErrNotPaired) {
			c.JSON(http.StatusConflict, gin.H{"error": "Machine is not paired"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to refresh product catalog"})
		return
	}
	c.JSON(http.StatusOK, h.productsResponse())
}

func (h *ProductsHandler) productsResponse() dto.ProductsResponse {
	products := h.service.Products()
	resp := dto.ProductsResponse{
		Products: make([]dto.ProductInfo, 0, len(products)),
		Count:    len(products),
	}
	for _, p := range products {
		resp.Products = append(resp.Products, productToDTO(p))
	}
	if fetched, ok := h.service.LastFetched(); ok {
		resp.LastFetched = &fetched
	}
	return resp
}

func productToDTO(p backend.MachineProduct) dto.ProductInfo {
	return dto.ProductInfo{
		ID:           p.ID,
		StockLevel:   p.StockLevel,
		SlotPosition: p.SlotPosition,
		Name:         p.Product.Name,
		Price:        p.Product.Price,
		ProductCode:  p.Product.ProductCode,
		Description:  p.Product.Description,
		Category:     p.Product.Category,
		ImageURL:     p.Product.ImageURL,
	}
}
