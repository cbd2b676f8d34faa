package identity

import (
	"context"
	"strings"
	"sync"

	"amparo/internal/participant/models"
	"amparo/internal/participant/store"
	id "amparo/pkg/domain"
	"amparo/pkg/platform/sentinel"
)

// InMemory keeps identities in a mutex-guarded map. Uniqueness checks and the
// write happen under one lock, so check-then-insert is a critical section —
// the same guarantee the database constraints give the other substrates.
// Intended for unit tests and dev mode; favors clarity over performance.
type InMemory struct {
	mu         sync.RWMutex
	identities map[id.ParticipantID]models.Identity
}

// NewInMemory constructs an empty in-memory identity store.
func NewInMemory() *InMemory {
	return &InMemory{identities: make(map[id.ParticipantID]models.Identity)}
}

func (s *InMemory) Create(_ context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkUnique(identity); err != nil {
		return err
	}
	s.identities[identity.ID] = *identity
	return nil
}

func (s *InMemory) FindByID(_ context.Context, participantID id.ParticipantID) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if identity, ok := s.identities[participantID]; ok {
		return &identity, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindByIDs(_ context.Context, ids []id.ParticipantID) ([]*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found := make([]*models.Identity, 0, len(ids))
	for _, participantID := range ids {
		if identity, ok := s.identities[participantID]; ok {
			identity := identity
			found = append(found, &identity)
		}
	}
	return found, nil
}

func (s *InMemory) Update(_ context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[identity.ID]; !ok {
		return sentinel.ErrNotFound
	}
	if err := s.checkUnique(identity); err != nil {
		return err
	}
	s.identities[identity.ID] = *identity
	return nil
}

func (s *InMemory) Delete(_ context.Context, participantID id.ParticipantID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[participantID]; !ok {
		return false, nil
	}
	delete(s.identities, participantID)
	return true, nil
}

// checkUnique must run under the write lock. The identity's own row is
// excluded so updates don't collide with themselves.
func (s *InMemory) checkUnique(identity *models.Identity) error {
	for _, existing := range s.identities {
		if existing.ID == identity.ID {
			continue
		}
		if existing.NationalID == identity.NationalID {
			return store.ErrDuplicateNationalID
		}
		if strings.EqualFold(existing.Login, identity.Login) {
			return store.ErrDuplicateLogin
		}
		if identity.Email != "" && strings.EqualFold(existing.Email, identity.Email) {
			return store.ErrDuplicateEmail
		}
	}
	return nil
}
