package identity

import (
	"errors"
	"time"
)

var ErrTokenWithoutID = errors.New("machine token present without machine id")

// MachineIdentity is the durable credential pair issued by the backend.
// MachineID may transiently hold a locally generated placeholder until the
// backend assigns a canonical id during auto-registration.
type MachineIdentity struct {
	MachineID    string `json:"machine_id"`
	MachineToken string `json:"machine_token,omitempty"`
}

// Validate enforces the identity invariants: a present field is non-empty,
// and a token never exists without a machine id.
func (m MachineIdentity) Validate() error {
	if m.MachineID == "" && m.MachineToken != "" {
		return ErrTokenWithoutID
	}
	return nil
}

// Complete reports whether both credentials are present, i.e. the machine
// is fully paired or registered.
func (m MachineIdentity) Complete() bool {
	return m.MachineID != "" && m.MachineToken != ""
}

// Store is the persistence boundary shared by the pairing session and the
// check-in agent. Implementations must be safe for concurrent use; writes
// always carry the full identity pair.
type Store interface {
	// Load returns the stored identity. The second return is false when no
	// identity has been stored yet.
	Load() (MachineIdentity, bool, error)

	// Save overwrites the stored identity with the given pair.
	Save(MachineIdentity) error

	// SaveLastCheckin records the timestamp of the last successful check-in.
	SaveLastCheckin(time.Time) error

	// LastCheckin returns the recorded timestamp; false when none exists.
	LastCheckin() (time.Time, bool, error)

	// Clear removes the identity and the last check-in record. Clearing an
	// empty store is not an error.
	Clear() error
}
