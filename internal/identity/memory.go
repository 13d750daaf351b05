package identity

import (
	"sync"
	"time"
)

// MemoryStore keeps the identity in process memory. Used in tests and when
// the kiosk runs without durable storage (demo installs).
type MemoryStore struct {
	mu          sync.Mutex
	id          MachineIdentity
	hasID       bool
	lastCheckin time.Time
	hasCheckin  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (MachineIdentity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, s.hasID, nil
}

func (s *MemoryStore) Save(id MachineIdentity) error {
	if err := id.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	s.hasID = true
	return nil
}

func (s *MemoryStore) SaveLastCheckin(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCheckin = t
	s.hasCheckin = true
	return nil
}

func (s *MemoryStore) LastCheckin() (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCheckin, s.hasCheckin, nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = MachineIdentity{}
	s.hasID = false
	s.lastCheckin = time.Time{}
	s.hasCheckin = false
	return nil
}
