package credstore

import (
	"context"
	"sync"

	"github.com/ErlanBelekov/safejob-auth/internal/domain"
)

// MemoryStore keeps the credential for the lifetime of the process only.
type MemoryStore struct {
	mu   sync.Mutex
	cred *domain.Credential
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Read(_ context.Context) (*domain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred.Clone(), nil
}

func (s *MemoryStore) Write(_ context.Context, cred *domain.Credential) error {
	if err := cred.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.cred = cred.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.cred = nil
	s.mu.Unlock()
	return nil
}
