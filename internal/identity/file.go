package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const stateFileName = "identity.json"

// fileState is the on-disk shape. LastCheckin is an RFC3339 timestamp so the
// file stays readable by operators.
type fileState struct {
	MachineID    string `json:"machine_id,omitempty"`
	MachineToken string `json:"machine_token,omitempty"`
	LastCheckin  string `json:"last_successful_checkin,omitempty"`
}

// FileStore persists the machine identity as a JSON file in a data
// directory, mode 0600 since the token is a secret.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{path: filepath.Join(dataDir, stateFileName)}, nil
}

func (s *FileStore) Load() (MachineIdentity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil {
		return MachineIdentity{}, false, err
	}
	if st.MachineID == "" && st.MachineToken == "" {
		return MachineIdentity{}, false, nil
	}
	return MachineIdentity{MachineID: st.MachineID, MachineToken: st.MachineToken}, true, nil
}

func (s *FileStore) Save(id MachineIdentity) error {
	if err := id.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil {
		return err
	}
	st.MachineID = id.MachineID
	st.MachineToken = id.MachineToken
	return s.write(st)
}

func (s *FileStore) SaveLastCheckin(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil {
		return err
	}
	st.LastCheckin = t.UTC().Format(time.RFC3339)
	return s.write(st)
}

func (s *FileStore) LastCheckin() (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil {
		return time.Time{}, false, err
	}
	if st.LastCheckin == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339, st.LastCheckin)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last check-in: %w", err)
	}
	return t, true, nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear identity file: %w", err)
	}
	return nil
}

func (s *FileStore) read() (fileState, error) {
	var st fileState
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return st, fmt.Errorf("read identity file: %w", err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return fileState{}, fmt.Errorf("parse identity file: %w", err)
	}
	return st, nil
}

func (s *FileStore) write(st fileState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	// Write-then-rename so a crash mid-write never leaves a torn file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write identity file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace identity file: %w", err)
	}
	return nil
}
