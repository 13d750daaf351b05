// Package checkin keeps the backend informed of machine liveness on a fixed
// cadence and maintains the machine token via auto-registration. One Agent
// runs per kiosk session; the purchase flow gates on its derived liveness.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/nextgenvending/kiosk-agent/internal/backend"
	"github.com/nextgenvending/kiosk-agent/internal/identity"
	"github.com/nextgenvending/kiosk-agent/internal/liveness"
)

// ErrNoMachineID is surfaced through LastError when a check-in is attempted
// before the machine has any identity. Nothing is sent over the network.
var ErrNoMachineID = errors.New("no machine_id available; pair the machine or enable auto-registration")

const (
	defaultMaxRetries  = 3
	defaultBackoffBase = 1 * time.Second
)

type Config struct {
	// AutoRegister asks the backend to issue a machine token during
	// check-in when none is held yet. A fresh machine with no identity at
	// all gets a locally generated placeholder id, which the backend is
	// expected to correct.
	AutoRegister bool

	// MaxRetries bounds transient-failure retries within one attempt.
	// Zero means 3.
	MaxRetries uint64

	// BackoffBase is the first retry delay; it doubles per retry.
	// Zero means 1s.
	BackoffBase time.Duration

	// Name and Location are reported with every status payload.
	Name     string
	Location string

	// Status supplies the machine status snapshot. Optional; uptime is
	// always filled in by the agent.
	Status func() backend.CheckinStatus
}

// Agent performs check-ins, applies identity corrections from responses,
// and exposes the liveness state derived from the last success.
type Agent struct {
	store  identity.Store
	client backend.Client
	cfg    Config

	sessionStart time.Time

	mu          sync.Mutex
	inflight    *attempt
	generation  int
	runCancel   context.CancelFunc
	lastCheckin time.Time
	lastError   string
}

// attempt coalesces concurrent Checkin calls: late callers wait on done and
// share the in-flight result instead of issuing a second request.
type attempt struct {
	done chan struct{}
	ok   bool
}

func NewAgent(store identity.Store, client backend.Client, cfg Config) *Agent {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}

	a := &Agent{
		store:        store,
		client:       client,
		cfg:          cfg,
		sessionStart: time.Now(),
	}

	// Pick up the last successful check-in from a previous run so the UI
	// does not flap to offline across a restart.
	if t, ok, err := store.LastCheckin(); err == nil && ok {
		a.lastCheckin = t
	}
	return a
}

// Checkin performs one attempt immediately, independent of the periodic
// schedule. It never panics or returns an error: all failures resolve to
// false with the cause readable via LastError. A call made while another
// attempt is in flight waits for that attempt and shares its result.
func (a *Agent) Checkin(ctx context.Context) bool {
	a.mu.Lock()
	if att := a.inflight; att != nil {
		a.mu.Unlock()
		select {
		case <-att.done:
			return att.ok
		case <-ctx.Done():
			return false
		}
	}
	att := &attempt{done: make(chan struct{})}
	a.inflight = att
	gen := a.generation
	a.mu.Unlock()

	ok := a.perform(ctx, gen)

	a.mu.Lock()
	att.ok = ok
	a.inflight = nil
	a.mu.Unlock()
	close(att.done)
	return ok
}

func (a *Agent) perform(ctx context.Context, gen int) bool {
	id, hasID, err := a.store.Load()
	if err != nil {
		a.setError(fmt.Errorf("load identity: %w", err))
		return false
	}

	if !hasID || id.MachineID == "" {
		if !a.cfg.AutoRegister {
			a.setError(ErrNoMachineID)
			return false
		}
		// Placeholder until the backend assigns a canonical id.
		id = identity.MachineIdentity{MachineID: uuid.New().String()}
		if err := a.store.Save(id); err != nil {
			a.setError(fmt.Errorf("save placeholder identity: %w", err))
			return false
		}
		slog.Info("Generated placeholder machine id for auto-registration", "machine_id", id.MachineID)
	}

	req := backend.CheckinRequest{
		MachineID:    id.MachineID,
		MachineToken: id.MachineToken,
		AutoRegister: a.cfg.AutoRegister && id.MachineToken == "",
		Status:       a.buildStatus(),
	}

	resp, err := a.send(ctx, req)
	if err != nil {
		a.setError(err)
		return false
	}

	return a.applyResult(gen, id, resp)
}

// send runs the request with exponential backoff on transient failures.
// Permanent failures (4xx other than 429, malformed responses) abort the
// attempt immediately.
func (a *Agent) send(ctx context.Context, req backend.CheckinRequest) (*backend.CheckinResponse, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = a.cfg.BackoffBase
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxInterval = 30 * time.Second

	var resp *backend.CheckinResponse
	op := func() error {
		r, err := a.client.CheckIn(ctx, req)
		if err != nil {
			if backend.IsTransient(err) {
				slog.Warn("Check-in failed, will retry", "error", err)
				return err
			}
			return backoff.Permanent(err)
		}
		resp = r
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, a.cfg.MaxRetries), ctx))
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// applyResult persists the outcome of a successful check-in. Results from
// attempts superseded by Stop or Reset are discarded so a stale response can
// never clobber the identity store.
func (a *Agent) applyResult(gen int, id identity.MachineIdentity, resp *backend.CheckinResponse) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.generation != gen {
		slog.Debug("Discarding superseded check-in result", "machine_id", id.MachineID)
		return false
	}

	corrected := id
	if resp.MachineID != "" {
		corrected.MachineID = resp.MachineID
	}
	if resp.Machine.MachineToken != "" {
		corrected.MachineToken = resp.Machine.MachineToken
	}
	if corrected != id {
		if err := a.store.Save(corrected); err != nil {
			a.lastError = fmt.Sprintf("persist identity correction: %v", err)
			return false
		}
		slog.Info("Machine identity updated from check-in",
			"machine_id", corrected.MachineID, "token_rotated", corrected.MachineToken != id.MachineToken)
	}

	now := time.Now()
	if err := a.store.SaveLastCheckin(now); err != nil {
		slog.Error("Failed to persist last check-in time", "error", err)
	}
	a.lastCheckin = now
	a.lastError = ""
	return true
}

func (a *Agent) buildStatus() backend.CheckinStatus {
	var status backend.CheckinStatus
	if a.cfg.Status != nil {
		status = a.cfg.Status()
	} else {
		status = backend.CheckinStatus{Battery: 100, Temperature: 37}
	}
	if status.Errors == nil {
		status.Errors = []string{}
	}
	if status.Name == "" {
		status.Name = a.cfg.Name
	}
	if status.Location == "" {
		status.Location = a.cfg.Location
	}
	status.UptimeMinutes = a.UptimeMinutes()
	return status
}

// Start begins periodic check-ins. The first one fires immediately, then on
// a fixed-period ticker; a failed tick never suspends the schedule. Calling
// Start on a running agent is a no-op.
func (a *Agent) Start(interval time.Duration) {
	a.mu.Lock()
	if a.runCancel != nil {
		a.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.runCancel = cancel
	a.mu.Unlock()

	slog.Info("Periodic check-ins started", "interval", interval)
	go a.run(ctx, interval)
}

func (a *Agent) run(ctx context.Context, interval time.Duration) {
	a.Checkin(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Checkin(ctx)
		}
	}
}

// Stop cancels the periodic schedule. An in-flight attempt may complete but
// its result is discarded. Safe to call repeatedly and while stopped.
func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runCancel == nil {
		return
	}
	a.runCancel()
	a.runCancel = nil
	a.generation++
	slog.Info("Periodic check-ins stopped")
}

// Reset discards any in-flight result, clears the persisted identity and
// the agent's bookkeeping. The periodic schedule, if running, continues and
// will report precondition failures until a new identity exists.
func (a *Agent) Reset() error {
	a.mu.Lock()
	a.generation++
	a.lastCheckin = time.Time{}
	a.lastError = ""
	a.mu.Unlock()

	if err := a.store.Clear(); err != nil {
		return fmt.Errorf("clear identity: %w", err)
	}
	return nil
}

// UptimeMinutes is the whole minutes elapsed since the agent was created,
// clamped to zero against clock adjustments.
func (a *Agent) UptimeMinutes() int {
	mins := int(time.Since(a.sessionStart) / time.Minute)
	if mins < 0 {
		return 0
	}
	return mins
}

// LastSuccessfulCheckin returns the time of the last success; false when
// the machine has never checked in.
func (a *Agent) LastSuccessfulCheckin() (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastCheckin, !a.lastCheckin.IsZero()
}

// LastError is the human-readable failure of the most recent attempt, empty
// after a success.
func (a *Agent) LastError() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastError
}

// IsCheckingIn reports whether an attempt, including its retries, is in
// flight right now.
func (a *Agent) IsCheckingIn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inflight != nil
}

// Liveness derives the online/offline state from the last success.
func (a *Agent) Liveness() liveness.State {
	a.mu.Lock()
	last := a.lastCheckin
	a.mu.Unlock()
	return liveness.Evaluate(last, time.Now())
}

func (a *Agent) setError(err error) {
	slog.Warn("Check-in failed", "error", err)
	a.mu.Lock()
	a.lastError = err.Error()
	a.mu.Unlock()
}
