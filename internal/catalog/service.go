// Package catalog mirrors the machine's slot assignments from the backend
// and handles the purchase flow. The cached stock summary also feeds the
// stock_level field of check-in status reports.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nextgenvending/kiosk-agent/internal/backend"
	"github.com/nextgenvending/kiosk-agent/internal/identity"
	"github.com/nextgenvending/kiosk-agent/internal/liveness"
)

var (
	ErrNotPaired      = errors.New("machine is not paired")
	ErrUnknownProduct = errors.New("product is not assigned to this machine")
	ErrOutOfStock     = errors.New("product is out of stock")
	ErrMachineOffline = errors.New("machine is offline; purchases are disabled")
)

const defaultRefreshInterval = 30 * time.Second

// Service caches the product list for the paired machine. Purchases are
// validated against the cache and gated on liveness before they reach the
// backend.
type Service struct {
	store    identity.Store
	client   backend.Client
	liveness func() liveness.State // nil disables the online gate

	mu          sync.Mutex
	products    []backend.MachineProduct
	lastFetched time.Time
	lastError   string
	runCancel   context.CancelFunc
}

func NewService(store identity.Store, client backend.Client, livenessFn func() liveness.State) *Service {
	return &Service{
		store:    store,
		client:   client,
		liveness: livenessFn,
	}
}

// Refresh fetches the current slot assignments. The identity store is
// re-read on every call; an unpaired machine fails without a network call.
func (s *Service) Refresh(ctx context.Context) error {
	id, ok, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	if !ok || id.MachineID == "" {
		return ErrNotPaired
	}

	products, err := s.client.ListProducts(ctx, id.MachineID)
	if err != nil {
		s.mu.Lock()
		s.lastError = err.Error()
		s.mu.Unlock()
		return fmt.Errorf("list products: %w", err)
	}

	s.mu.Lock()
	s.products = products
	s.lastFetched = time.Now()
	s.lastError = ""
	s.mu.Unlock()

	slog.Debug("Product catalog refreshed", "machine_id", id.MachineID, "products", len(products))
	return nil
}

// Products returns a copy of the cached assignments.
func (s *Service) Products() []backend.MachineProduct {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.MachineProduct(nil), s.products...)
}

// LastFetched returns when the cache was last refreshed; false if never.
func (s *Service) LastFetched() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFetched, !s.lastFetched.IsZero()
}

func (s *Service) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// StockLevel is the total units across all slots, reported with check-ins.
func (s *Service) StockLevel() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, p := range s.products {
		total += p.StockLevel
	}
	return total
}

// Purchase vends one unit of the given slot. Stock and liveness are checked
// against local state first so obvious failures never reach the backend; on
// success the cached stock level is updated from the backend's response.
func (s *Service) Purchase(ctx context.Context, machineProductID string) (*backend.PurchaseResponse, error) {
	id, ok, err := s.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	if !ok || id.MachineID == "" {
		return nil, ErrNotPaired
	}

	s.mu.Lock()
	idx := -1
	for i, p := range s.products {
		if p.ID == machineProductID {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()
		return nil, ErrUnknownProduct
	}
	if s.products[idx].StockLevel <= 0 {
		s.mu.Unlock()
		return nil, ErrOutOfStock
	}
	s.mu.Unlock()

	if s.liveness != nil && !s.liveness().Online {
		return nil, ErrMachineOffline
	}

	resp, err := s.client.Purchase(ctx, backend.PurchaseRequest{
		MachineID:        id.MachineID,
		MachineProductID: machineProductID,
	})
	if err != nil {
		return nil, fmt.Errorf("purchase: %w", err)
	}

	s.mu.Lock()
	for i := range s.products {
		if s.products[i].ID == machineProductID {
			s.products[i].StockLevel = resp.StockLevel
			break
		}
	}
	s.mu.Unlock()

	slog.Info("Purchase recorded", "machine_product_id", machineProductID, "purchase_id", resp.PurchaseID)
	return resp, nil
}

// Start begins periodic refreshes, the first one immediately. No-op when
// already running.
func (s *Service) Start(interval time.Duration) {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}

	s.mu.Lock()
	if s.runCancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.runCancel = cancel
	s.mu.Unlock()

	go s.run(ctx, interval)
}

func (s *Service) run(ctx context.Context, interval time.Duration) {
	if err := s.Refresh(ctx); err != nil {
		slog.Warn("Catalog refresh failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				slog.Warn("Catalog refresh failed", "error", err)
			}
		}
	}
}

// Stop cancels the periodic refresh. Safe to call repeatedly.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runCancel != nil {
		s.runCancel()
		s.runCancel = nil
	}
}
