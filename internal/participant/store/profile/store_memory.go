package profile

import (
	"context"
	"strings"
	"sync"

	"amparo/internal/participant/models"
	"amparo/internal/participant/store"
	id "amparo/pkg/domain"
	"amparo/pkg/platform/sentinel"
)

// InMemory keeps role profiles in mutex-guarded maps, one per variant.
// Registration-number uniqueness is checked under the same lock as the write.
type InMemory struct {
	mu         sync.RWMutex
	caregivers map[id.ParticipantID]models.CaregiverProfile
	subjects   map[id.ParticipantID]models.SubjectProfile
}

// NewInMemory constructs an empty in-memory profile store.
func NewInMemory() *InMemory {
	return &InMemory{
		caregivers: make(map[id.ParticipantID]models.CaregiverProfile),
		subjects:   make(map[id.ParticipantID]models.SubjectProfile),
	}
}

func (s *InMemory) Create(_ context.Context, p models.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	participantID := p.ParticipantID()
	if _, ok := s.caregivers[participantID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if _, ok := s.subjects[participantID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	switch p.Role {
	case models.RoleCaregiver:
		if s.registrationNumberTaken(p.Caregiver.RegistrationNumber, participantID) {
			return store.ErrDuplicateRegistrationNumber
		}
		s.caregivers[participantID] = *p.Caregiver
	case models.RoleSubject:
		s.subjects[participantID] = *p.Subject
	}
	return nil
}

func (s *InMemory) FindByParticipant(_ context.Context, participantID id.ParticipantID) (models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if caregiver, ok := s.caregivers[participantID]; ok {
		return models.Profile{Role: models.RoleCaregiver, Caregiver: &caregiver}, nil
	}
	if subject, ok := s.subjects[participantID]; ok {
		return models.Profile{Role: models.RoleSubject, Subject: &subject}, nil
	}
	return models.Profile{}, sentinel.ErrNotFound
}

func (s *InMemory) Update(_ context.Context, p models.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	participantID := p.ParticipantID()
	switch p.Role {
	case models.RoleCaregiver:
		if _, ok := s.caregivers[participantID]; !ok {
			return sentinel.ErrNotFound
		}
		if s.registrationNumberTaken(p.Caregiver.RegistrationNumber, participantID) {
			return store.ErrDuplicateRegistrationNumber
		}
		s.caregivers[participantID] = *p.Caregiver
	case models.RoleSubject:
		if _, ok := s.subjects[participantID]; !ok {
			return sentinel.ErrNotFound
		}
		s.subjects[participantID] = *p.Subject
	}
	return nil
}

func (s *InMemory) Delete(_ context.Context, participantID id.ParticipantID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.caregivers[participantID]; ok {
		delete(s.caregivers, participantID)
		return true, nil
	}
	if _, ok := s.subjects[participantID]; ok {
		delete(s.subjects, participantID)
		return true, nil
	}
	return false, nil
}

func (s *InMemory) List(_ context.Context, roleFilter *models.Role) ([]models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var profiles []models.Profile
	if roleFilter == nil || *roleFilter == models.RoleCaregiver {
		for _, caregiver := range s.caregivers {
			caregiver := caregiver
			profiles = append(profiles, models.Profile{Role: models.RoleCaregiver, Caregiver: &caregiver})
		}
	}
	if roleFilter == nil || *roleFilter == models.RoleSubject {
		for _, subject := range s.subjects {
			subject := subject
			profiles = append(profiles, models.Profile{Role: models.RoleSubject, Subject: &subject})
		}
	}
	return profiles, nil
}

func (s *InMemory) ListCaregiversBySpecialty(_ context.Context, specialty string) ([]models.Profile, error) {
	return s.listCaregivers(func(c models.CaregiverProfile) bool {
		return strings.EqualFold(c.Specialty, specialty)
	}), nil
}

func (s *InMemory) ListCaregiversByJobTitle(_ context.Context, jobTitle string) ([]models.Profile, error) {
	return s.listCaregivers(func(c models.CaregiverProfile) bool {
		return strings.EqualFold(c.JobTitle, jobTitle)
	}), nil
}

func (s *InMemory) listCaregivers(match func(models.CaregiverProfile) bool) []models.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var profiles []models.Profile
	for _, caregiver := range s.caregivers {
		if match(caregiver) {
			caregiver := caregiver
			profiles = append(profiles, models.Profile{Role: models.RoleCaregiver, Caregiver: &caregiver})
		}
	}
	return profiles
}

// registrationNumberTaken must run under the write lock.
func (s *InMemory) registrationNumberTaken(registrationNumber string, self id.ParticipantID) bool {
	for participantID, caregiver := range s.caregivers {
		if participantID == self {
			continue
		}
		if strings.EqualFold(caregiver.RegistrationNumber, registrationNumber) {
			return true
		}
	}
	return false
}
