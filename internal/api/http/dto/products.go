package dto

import "time"

type ProductInfo struct {
	ID           string  `json:"id"`
	StockLevel   int     `json:"stock_level"`
	SlotPosition *int    `json:"slot_position"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	ProductCode  string  `json:"product_code"`
	Description  string  `json:"description,omitempty"`
	Category     string  `json:"category,omitempty"`
	ImageURL     string  `json:"image_url,omitempty"`
}

type ProductsResponse struct {
	Products    []ProductInfo `json:"products"`
	Count       int           `json:"count"`
	LastFetched *time.Time    `json:"last_fetched,omitempty"`
}

type PurchaseRequest struct {
	MachineProductID string `json:"machine_product_id" binding:"required"`
}

type PurchaseResponse struct {
	PurchaseID string `json:"purchase_id"`
	StockLevel int    `json:"stock_level"`
}
