// Package backendstub runs an in-process vending backend for system tests.
// It speaks the same JSON contract as the real backend: pairing links,
// machine check-ins, product listings and purchases.
package backendstub

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/nextgenvending/kiosk-agent/internal/backend"
)

type Server struct {
	srv *httptest.Server

	mu        sync.Mutex
	nextCode  int
	nextID    int
	links     map[string]string            // pairing code -> link id
	claims    map[string]claimedIdentity   // pairing code -> claimed identity
	tokens    map[string]string            // machine id -> issued token
	products  []backend.MachineProduct
	checkins  int
	purchases int
}

type claimedIdentity struct {
	MachineID    string `json:"machine_id"`
	MachineToken string `json:"machine_token"`
}

func New() *Server {
	s := &Server{
		links:  make(map[string]string),
		claims: make(map[string]claimedIdentity),
		tokens: make(map[string]string),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/pairing-links", s.handleCreateLink)
	mux.HandleFunc("GET /api/pairing-links/{code}", s.handlePollLink)
	mux.HandleFunc("POST /api/machine-checkin", s.handleCheckin)
	mux.HandleFunc("GET /api/machines/{id}/products", s.handleProducts)
	mux.HandleFunc("POST /api/purchases", s.handlePurchase)
	s.srv = httptest.NewServer(mux)
	return s
}

func (s *Server) URL() string { return s.srv.URL }

func (s *Server) Close() { s.srv.Close() }

// Claim marks a pairing code as claimed, as the admin dashboard would.
func (s *Server) Claim(code, machineID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[code]; !ok {
		return fmt.Errorf("unknown pairing code %q", code)
	}
	s.claims[code] = claimedIdentity{MachineID: machineID, MachineToken: token}
	s.tokens[machineID] = token
	return nil
}

func (s *Server) SetProducts(products []backend.MachineProduct) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = products
}

func (s *Server) CheckinCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkins
}

func (s *Server) handleCreateLink(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.nextCode++
	code := fmt.Sprintf("%06d", 100000+s.nextCode)
	linkID := fmt.Sprintf("lnk-%d", s.nextCode)
	s.links[code] = linkID
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, backend.PairingLink{PairingCode: code, LinkID: linkID})
}

func (s *Server) handlePollLink(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	s.mu.Lock()
	claimed, ok := s.claims[code]
	s.mu.Unlock()

	if !ok {
		http.Error(w, "pairing link not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, claimed)
}

func (s *Server) handleCheckin(w http.ResponseWriter, r *http.Request) {
	var req backend.CheckinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.MachineID == "" {
		http.Error(w, "machine_id is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.checkins++
	token, known := s.tokens[req.MachineID]
	if !known {
		if !req.AutoRegister {
			s.mu.Unlock()
			http.Error(w, "unknown machine", http.StatusUnauthorized)
			return
		}
		s.nextID++
		token = fmt.Sprintf("tok-%d", s.nextID)
		s.tokens[req.MachineID] = token
	}
	s.mu.Unlock()

	var resp backend.CheckinResponse
	resp.MachineID = req.MachineID
	resp.Machine.MachineToken = token
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	products := append([]backend.MachineProduct(nil), s.products...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req backend.PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.products {
		if s.products[i].ID != req.MachineProductID {
			continue
		}
		if s.products[i].StockLevel <= 0 {
			http.Error(w, "out of stock", http.StatusConflict)
			return
		}
		s.products[i].StockLevel--
		s.purchases++
		writeJSON(w, http.StatusOK, backend.PurchaseResponse{
			PurchaseID: fmt.Sprintf("pur-%d", s.purchases),
			StockLevel: s.products[i].StockLevel,
		})
		return
	}
	http.Error(w, "unknown product", http.StatusNotFound)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	data, _ := json.Marshal(body)
	_, _ = w.Write(data)
}
