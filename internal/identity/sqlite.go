package identity

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

const (
	keyMachineID    = "machine_id"
	keyMachineToken = "machine_token"
	keyLastCheckin  = "last_successful_checkin"
)

// SQLiteStore persists the identity in a local SQLite database, for kiosks
// that already keep other state in one. Values live in a small key-value
// table so the schema never needs migrating alongside the identity shape.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open identity db: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS machine_state (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create machine_state table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load() (MachineIdentity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.get(keyMachineID)
	if err != nil {
		return MachineIdentity{}, false, err
	}
	token, err := s.get(keyMachineToken)
	if err != nil {
		return MachineIdentity{}, false, err
	}
	if id == "" && token == "" {
		return MachineIdentity{}, false, nil
	}
	return MachineIdentity{MachineID: id, MachineToken: token}, true, nil
}

func (s *SQLiteStore) Save(id MachineIdentity) error {
	if err := id.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if err := upsert(tx, keyMachineID, id.MachineID); err != nil {
		return err
	}
	if err := upsert(tx, keyMachineToken, id.MachineToken); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) SaveLastCheckin(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if err := upsert(tx, keyLastCheckin, t.UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) LastCheckin() (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.get(keyLastCheckin)
	if err != nil {
		return time.Time{}, false, err
	}
	if v == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last check-in: %w", err)
	}
	return t, true, nil
}

func (s *SQLiteStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM machine_state"); err != nil {
		return fmt.Errorf("clear machine_state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) get(key string) (string, error) {
	var v string
	err := s.db.QueryRow("SELECT value FROM machine_state WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return v, nil
}

func upsert(tx *sql.Tx, key, value string) error {
	if value == "" {
		if _, err := tx.Exec("DELETE FROM machine_state WHERE key = ?", key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		return nil
	}
	if _, err := tx.Exec(`
		INSERT INTO machine_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
