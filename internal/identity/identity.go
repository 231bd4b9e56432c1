// Package identity keeps a guest's identity on their own device so a page
// reload returns the same guest ID, nickname and joined session.
package identity

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	KeyGuestID   = "quiz_guest_id"
	KeyNickname  = "quiz_guest_nickname"
	KeySessionID = "quiz_session_id"

	guestIDPrefix = "guest-"
)

// Storage is a small persistent string map, scoped to this application.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// Manager reads and writes the guest identity in a Storage.
type Manager struct {
	storage Storage
	newID   func() string
}

func NewManager(storage Storage) *Manager {
	return &Manager{
		storage: storage,
		newID:   func() string { return guestIDPrefix + uuid.NewString() },
	}
}

// GuestID returns the stored guest ID, if any.
func (m *Manager) GuestID() (string, bool) {
	id, ok := m.storage.Get(KeyGuestID)
	return id, ok && id != ""
}

// GetOrCreateGuestID returns the stored guest ID, minting and persisting one
// first when none exists. The ID is only returned once it has been stored.
func (m *Manager) GetOrCreateGuestID() (string, error) {
	if id, ok := m.GuestID(); ok {
		return id, nil
	}
	id := m.newID()
	if err := m.storage.Set(KeyGuestID, id); err != nil {
		return "", fmt.Errorf("persist guest id: %w", err)
	}
	return id, nil
}

func (m *Manager) Nickname() (string, bool) {
	nickname, ok := m.storage.Get(KeyNickname)
	return nickname, ok && nickname != ""
}

func (m *Manager) SaveNickname(nickname string) error {
	return m.storage.Set(KeyNickname, nickname)
}

func (m *Manager) SessionID() (string, bool) {
	id, ok := m.storage.Get(KeySessionID)
	return id, ok && id != ""
}

func (m *Manager) SaveSessionID(sessionID string) error {
	return m.storage.Set(KeySessionID, sessionID)
}

// Clear forgets the whole identity.
func (m *Manager) Clear() error {
	for _, key := range []string{KeyGuestID, KeyNickname, KeySessionID} {
		if err := m.storage.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
