package appointment

import (
	"context"
	"sort"
	"sync"

	"amparo/internal/scheduling/models"
	"amparo/internal/scheduling/store"
	id "amparo/pkg/domain"
	"amparo/pkg/platform/sentinel"
)

// InMemory keeps appointments in a mutex-guarded map. The slot check and the
// write share one lock, so concurrent bookings of the same slot serialize and
// exactly one succeeds — the guarantee the partial unique indexes give the
// database substrates. Intended for unit tests and dev mode.
type InMemory struct {
	mu           sync.RWMutex
	appointments map[id.AppointmentID]models.Appointment
}

// NewInMemory constructs an empty in-memory appointment store.
func NewInMemory() *InMemory {
	return &InMemory{appointments: make(map[id.AppointmentID]models.Appointment)}
}

// CreateIfSlotFree inserts the appointment unless an active appointment
// already occupies either party's slot.
func (s *InMemory) CreateIfSlotFree(_ context.Context, appt *models.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkSlots(appt); err != nil {
		return err
	}
	s.appointments[appt.ID] = *appt
	return nil
}

func (s *InMemory) FindByID(_ context.Context, appointmentID id.AppointmentID) (*models.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if appt, ok := s.appointments[appointmentID]; ok {
		return &appt, nil
	}
	return nil, sentinel.ErrNotFound
}

// UpdateIfSlotFree replaces the stored appointment unless its (possibly new)
// slot collides with another active appointment.
func (s *InMemory) UpdateIfSlotFree(_ context.Context, appt *models.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appointments[appt.ID]; !ok {
		return sentinel.ErrNotFound
	}
	if err := s.checkSlots(appt); err != nil {
		return err
	}
	s.appointments[appt.ID] = *appt
	return nil
}

func (s *InMemory) Delete(_ context.Context, appointmentID id.AppointmentID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appointments[appointmentID]; !ok {
		return false, nil
	}
	delete(s.appointments, appointmentID)
	return true, nil
}

// List returns matching appointments ordered by (date, time) ascending.
func (s *InMemory) List(_ context.Context, filter models.ListFilter) ([]*models.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]*models.Appointment, 0)
	for _, appt := range s.appointments {
		appt := appt
		if filter.Matches(&appt) {
			matched = append(matched, &appt)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.Before(matched[j].Date)
		}
		return matched[i].Time < matched[j].Time
	})
	return matched, nil
}

// checkSlots must run under the write lock. The appointment's own row is
// excluded so status-only updates don't collide with themselves; terminal
// appointments occupy no slot on either side of the comparison.
func (s *InMemory) checkSlots(appt *models.Appointment) error {
	if !appt.Status.IsActive() {
		return nil
	}
	for _, existing := range s.appointments {
		if existing.ID == appt.ID || !existing.Status.IsActive() {
			continue
		}
		if !existing.Date.Equal(appt.Date) || existing.Time != appt.Time {
			continue
		}
		if existing.CaregiverID == appt.CaregiverID {
			return store.ErrCaregiverSlotTaken
		}
		if existing.SubjectID == appt.SubjectID {
			return store.ErrSubjectSlotTaken
		}
	}
	return nil
}
