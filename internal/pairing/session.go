// Package pairing establishes the machine identity through a short-lived
// pairing code. The kiosk displays the code (and a QR link); an admin claims
// it from the dashboard, and the session polls the backend until the claim
// produces a machine id + token.
package pairing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nextgenvending/kiosk-agent/internal/backend"
	"github.com/nextgenvending/kiosk-agent/internal/identity"
)

type State string

const (
	StateInit          State = "init"
	StateAwaitingClaim State = "awaiting_claim"
	StatePaired        State = "paired"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultAdminBaseURL = "https://admin.nextgenvending.com"
)

type Config struct {
	// PollInterval is the delay between claim polls. Zero means 5s.
	PollInterval time.Duration
	// AdminBaseURL is the dashboard origin embedded in the QR claim URL.
	AdminBaseURL string
}

// Session drives one machine through the pairing state machine. At most one
// pairing code is awaited at a time; polling stops the moment an identity is
// obtained or the session is reset.
type Session struct {
	store  identity.Store
	client backend.Client
	cfg    Config

	mu         sync.Mutex
	state      State
	starting   bool
	link       *backend.PairingLink
	lastError  string
	generation int
	cancel     context.CancelFunc
	pairedCh   chan struct{}
}

// Snapshot is the UI-facing view of the session.
type Snapshot struct {
	State       State
	PairingCode string
	LinkID      string
	ClaimURL    string
	LastError   string
}

func NewSession(store identity.Store, client backend.Client, cfg Config) *Session {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.AdminBaseURL == "" {
		cfg.AdminBaseURL = defaultAdminBaseURL
	}
	return &Session{
		store:    store,
		client:   client,
		cfg:      cfg,
		state:    StateInit,
		pairedCh: make(chan struct{}),
	}
}

// Start checks for an existing identity and, when none is stored, requests a
// pairing code and begins polling for the claim. Already-paired machines
// transition straight to Paired with no network traffic. Returns an error
// only when the machine is unpaired and the backend refused to issue a code;
// the session stays in Init and Start may be called again. Overlapping Start
// calls are serialized: while one is in flight, the others return nil
// immediately, so at most one pairing code is ever awaited.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateInit || s.starting {
		s.mu.Unlock()
		return nil
	}
	s.starting = true
	gen := s.generation
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.starting = false
		s.mu.Unlock()
	}()

	id, ok, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	if ok && id.Complete() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.generation != gen {
			return nil
		}
		s.state = StatePaired
		close(s.pairedCh)
		slog.Info("Machine already paired", "machine_id", id.MachineID)
		return nil
	}

	link, err := s.client.CreatePairingLink(ctx)
	if err != nil {
		s.mu.Lock()
		s.lastError = err.Error()
		s.mu.Unlock()
		return fmt.Errorf("request pairing code: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		// Reset raced with the code request; drop the stale link.
		return nil
	}
	s.link = link
	s.lastError = ""
	s.state = StateAwaitingClaim

	pollCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.pollLoop(pollCtx, gen, link.PairingCode)

	slog.Info("Awaiting pairing claim", "pairing_code", link.PairingCode, "link_id", link.LinkID)
	return nil
}

func (s *Session) pollLoop(ctx context.Context, gen int, code string) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			claimed, err := s.client.PollPairing(ctx, code)
			if err != nil {
				// Transport failures are swallowed; the next tick retries.
				slog.Warn("Pairing poll failed", "error", err)
				continue
			}
			if claimed == nil {
				continue
			}
			if s.completeClaim(gen, *claimed) {
				return
			}
		}
	}
}

// completeClaim persists the claimed identity and transitions to Paired.
// Returns true when polling should stop, which includes the superseded case
// where Reset ran while the poll was in flight: the stale result is
// discarded and the loop exits.
func (s *Session) completeClaim(gen int, id identity.MachineIdentity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen || s.state != StateAwaitingClaim {
		return true
	}

	if err := s.store.Save(id); err != nil {
		slog.Error("Failed to persist paired identity", "error", err)
		s.lastError = err.Error()
		return false
	}

	s.state = StatePaired
	s.link = nil
	s.lastError = ""
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	close(s.pairedCh)

	slog.Info("Pairing complete", "machine_id", id.MachineID)
	return true
}

// Reset clears the persisted identity and any session-local pairing code and
// returns the session to Init. Idempotent and purely local; a fresh pairing
// cycle starts on the next Start call.
func (s *Session) Reset() error {
	s.mu.Lock()
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.state == StatePaired {
		s.pairedCh = make(chan struct{})
	}
	s.state = StateInit
	s.link = nil
	s.lastError = ""
	s.mu.Unlock()

	if err := s.store.Clear(); err != nil {
		return fmt.Errorf("clear identity: %w", err)
	}
	slog.Info("Pairing reset")
	return nil
}

// Stop halts polling without touching persisted state.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Paired returns a channel closed once the session reaches Paired. Reset
// replaces the channel, so callers should re-fetch it after a reset.
func (s *Session) Paired() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pairedCh
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{State: s.state, LastError: s.lastError}
	if s.link != nil {
		snap.PairingCode = s.link.PairingCode
		snap.LinkID = s.link.LinkID
		snap.ClaimURL = fmt.Sprintf("%s/pair?code=%s", s.cfg.AdminBaseURL, s.link.PairingCode)
	}
	return snap
}
