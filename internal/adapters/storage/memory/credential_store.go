package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/PabloGalante/quiet-room/internal/domain"
)

// CredentialStore keeps the credential slot in process memory. It is NOT
// persistent and is meant for tests and throwaway runs.
type CredentialStore struct {
	mu    sync.RWMutex
	slot  string
	slots map[string]string
}

// NewCredentialStore creates an empty store addressing slot.
func NewCredentialStore(slot string) *CredentialStore {
	return &CredentialStore{
		slot:  slot,
		slots: make(map[string]string),
	}
}

func (s *CredentialStore) Load(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.slots[s.slot]
	if !ok || key == "" {
		return "", domain.ErrCredentialMissing
	}
	return key, nil
}

func (s *CredentialStore) Save(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.slots[s.slot] = strings.TrimSpace(key)
	return nil
}

func (s *CredentialStore) Purge(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.slots, s.slot)
	return nil
}
