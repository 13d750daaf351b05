// Package backend defines the wire contract with the vending backend and a
// JSON-over-HTTP client for it. Pairing, check-in and catalog sync all go
// through the Client interface so tests can substitute a fake.
package backend

import (
	"context"
	"time"

	"github.com/nextgenvending/kiosk-agent/internal/identity"
)

// CheckinStatus is the machine status snapshot sent with every check-in.
// It is rebuilt from live process state each attempt and never persisted.
type CheckinStatus struct {
	Battery         int        `json:"battery"`
	StockLevel      int        `json:"stock_level"`
	Temperature     int        `json:"temperature"`
	Errors          []string   `json:"errors"`
	UptimeMinutes   int        `json:"uptime_minutes"`
	Name            string     `json:"name,omitempty"`
	Location        string     `json:"location,omitempty"`
	LastMaintenance *time.Time `json:"last_maintenance,omitempty"`
}

type CheckinRequest struct {
	MachineID    string        `json:"machine_id"`
	Status       CheckinStatus `json:"status"`
	AutoRegister bool          `json:"auto_register,omitempty"`
	MachineToken string        `json:"machine_token,omitempty"`
}

// CheckinResponse carries optional identity corrections: the backend may
// assign a canonical machine_id and/or issue a fresh token.
type CheckinResponse struct {
	MachineID string `json:"machine_id,omitempty"`
	Machine   struct {
		MachineToken string `json:"machine_token,omitempty"`
	} `json:"machine"`
}

// PairingLink is a pending pairing session: a short human-enterable code
// plus the backend's opaque link id.
type PairingLink struct {
	PairingCode string `json:"pairing_code"`
	LinkID      string `json:"link_id"`
}

// MachineProduct is one slot assignment on this machine.
type MachineProduct struct {
	ID           string  `json:"id"`
	StockLevel   int     `json:"stock_level"`
	SlotPosition *int    `json:"slot_position"`
	Product      Product `json:"product"`
}

type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	ProductCode string  `json:"product_code"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
}

type PurchaseRequest struct {
	MachineID        string `json:"machine_id"`
	MachineProductID string `json:"machine_product_id"`
}

type PurchaseResponse struct {
	PurchaseID string `json:"purchase_id"`
	StockLevel int    `json:"stock_level"`
}

// Client is the backend boundary. Implementations return *TransientError or
// *PermanentError so callers can pick a retry policy.
type Client interface {
	// CheckIn posts the machine status and returns any identity correction.
	CheckIn(ctx context.Context, req CheckinRequest) (*CheckinResponse, error)

	// CreatePairingLink requests a fresh pairing code for this machine.
	CreatePairingLink(ctx context.Context) (*PairingLink, error)

	// PollPairing asks whether the code has been claimed. A nil identity
	// with a nil error means "not claimed yet"; backend-side expiry or an
	// unknown code also read as pending, per the pairing contract.
	PollPairing(ctx context.Context, code string) (*identity.MachineIdentity, error)

	// ListProducts fetches the machine's current slot assignments.
	ListProducts(ctx context.Context, machineID string) ([]MachineProduct, error)

	// Purchase records a vend of the given slot.
	Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResponse, error)
}
