package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	participantsvc "amparo/internal/participant/service"
	identitystore "amparo/internal/participant/store/identity"
	profilestore "amparo/internal/participant/store/profile"
	appointmentstore "amparo/internal/scheduling/store/appointment"

	participant "amparo/internal/participant/models"
	"amparo/internal/scheduling/models"
	id "amparo/pkg/domain"
	dErrors "amparo/pkg/domain-errors"
	"amparo/pkg/requestcontext"
)

type BookingServiceSuite struct {
	suite.Suite
	participants *participantsvc.Service
	service      *Service
	ctx          context.Context
	caregiverID  id.ParticipantID
	subjectID    id.ParticipantID
	seq          int
}

var bookingNow = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

func (s *BookingServiceSuite) SetupTest() {
	s.participants = participantsvc.New(identitystore.NewInMemory(), profilestore.NewInMemory())
	s.service = New(appointmentstore.NewInMemory(), s.participants)
	s.ctx = requestcontext.WithTime(context.Background(), bookingNow)
	s.seq = 0

	s.caregiverID = s.registerCaregiver()
	s.subjectID = s.registerSubject()
}

func TestBookingServiceSuite(t *testing.T) {
	suite.Run(t, new(BookingServiceSuite))
}

func (s *BookingServiceSuite) registerCaregiver() id.ParticipantID {
	s.seq++
	created, err := s.participants.Register(s.ctx, participantsvc.RegisterParams{
		Role:       participant.RoleCaregiver,
		NationalID: id.NationalID(fmt.Sprintf("%011d", s.seq)),
		Login:      fmt.Sprintf("caregiver.%d", s.seq),
		Credential: "s3cret-cred",
		GivenName:  "Carla",
		Caregiver:  &participantsvc.CaregiverParams{RegistrationNumber: fmt.Sprintf("CRP-%d", s.seq)},
	})
	s.Require().NoError(err)
	return created.Identity.ID
}

func (s *BookingServiceSuite) registerSubject() id.ParticipantID {
	s.seq++
	created, err := s.participants.Register(s.ctx, participantsvc.RegisterParams{
		Role:       participant.RoleSubject,
		NationalID: id.NationalID(fmt.Sprintf("%011d", s.seq)),
		Login:      fmt.Sprintf("subject.%d", s.seq),
		Credential: "s3cret-cred",
		GivenName:  "Bia",
		Subject:    &participantsvc.SubjectParams{Address: "Rua A 100"},
	})
	s.Require().NoError(err)
	return created.Identity.ID
}

func (s *BookingServiceSuite) book(date time.Time, clock string, caregiverID, subjectID id.ParticipantID) (*models.Appointment, error) {
	return s.service.Create(s.ctx, CreateParams{
		Date:        date,
		Time:        id.ClockTime(clock),
		CaregiverID: caregiverID,
		SubjectID:   subjectID,
	})
}

var bookingDate = time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)

// TestCreate covers booking validation, party checks, and conflicts.
func (s *BookingServiceSuite) TestCreate() {
	s.Run("books a valid appointment as scheduled", func() {
		appt, err := s.book(bookingDate, "09:00", s.caregiverID, s.subjectID)
		s.Require().NoError(err)
		s.Equal(models.StatusScheduled, appt.Status)
		s.Equal(id.ClockTime("09:00"), appt.Time)
	})

	s.Run("rejects past dates date-only", func() {
		_, err := s.book(bookingNow.AddDate(0, 0, -1), "09:00", s.caregiverID, s.subjectID)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeValidation))

		// Same calendar day is allowed even if the clock has passed.
		_, err = s.book(bookingNow, "08:00", s.caregiverID, s.subjectID)
		s.Require().NoError(err)
	})

	s.Run("rejects unknown or wrong-role parties", func() {
		_, err := s.book(bookingDate, "10:00", id.NewParticipantID(), s.subjectID)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeNotFound))

		// Roles swapped: a subject cannot act as caregiver.
		_, err = s.book(bookingDate, "10:00", s.subjectID, s.caregiverID)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("rejects caregiver double booking with conflict", func() {
		otherSubject := s.registerSubject()
		_, err := s.book(bookingDate, "09:00", s.caregiverID, otherSubject)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Contains(err.Error(), "caregiver")
	})

	s.Run("rejects subject double booking with conflict", func() {
		otherCaregiver := s.registerCaregiver()
		_, err := s.book(bookingDate, "09:00", otherCaregiver, s.subjectID)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Contains(err.Error(), "subject")
	})
}

// TestConcurrentCreate verifies the store guard under racing bookings.
func (s *BookingServiceSuite) TestConcurrentCreate() {
	subjects := make([]id.ParticipantID, 8)
	for i := range subjects {
		subjects[i] = s.registerSubject()
	}

	succeeded := 0
	results := make([]error, len(subjects))
	g := new(errgroup.Group)
	for i, subjectID := range subjects {
		i, subjectID := i, subjectID
		g.Go(func() error {
			_, err := s.book(bookingDate, "11:00", s.caregiverID, subjectID)
			results[i] = err
			return nil
		})
	}
	s.Require().NoError(g.Wait())
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			s.Require().True(dErrors.HasCode(err, dErrors.CodeConflict))
		}
	}
	s.Equal(1, succeeded)
}

// TestLifecycle covers updates, the status machine, reschedule, and delete.
func (s *BookingServiceSuite) TestLifecycle() {
	appt, err := s.book(bookingDate, "09:00", s.caregiverID, s.subjectID)
	s.Require().NoError(err)

	s.Run("gets by id", func() {
		found, err := s.service.Get(s.ctx, appt.ID)
		s.Require().NoError(err)
		s.Equal(appt.ID, found.ID)
	})

	s.Run("confirms through the state machine", func() {
		updated, err := s.service.UpdateStatus(s.ctx, appt.ID, models.StatusConfirmed)
		s.Require().NoError(err)
		s.Equal(models.StatusConfirmed, updated.Status)
	})

	s.Run("reschedules onto a free slot", func() {
		newDate := bookingDate.AddDate(0, 0, 7)
		updated, err := s.service.Reschedule(s.ctx, appt.ID, newDate, id.ClockTime("14:00"))
		s.Require().NoError(err)
		s.Equal(models.StatusRescheduled, updated.Status)
		s.Equal(id.ClockTime("14:00"), updated.Time)
	})

	s.Run("rejects rescheduling onto an occupied slot", func() {
		blocker, err := s.book(bookingDate.AddDate(0, 0, 14), "08:00", s.caregiverID, s.registerSubject())
		s.Require().NoError(err)

		_, err = s.service.Reschedule(s.ctx, appt.ID, blocker.Date, blocker.Time)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("cancellation is terminal", func() {
		_, err := s.service.UpdateStatus(s.ctx, appt.ID, models.StatusCancelled)
		s.Require().NoError(err)

		_, err = s.service.UpdateStatus(s.ctx, appt.ID, models.StatusConfirmed)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("cancelled slot is free for rebooking", func() {
		rebooked, err := s.book(appt.Date, appt.Time.String(), s.caregiverID, s.subjectID)
		s.Require().NoError(err)
		s.NotEqual(appt.ID, rebooked.ID)
	})

	s.Run("deletes and reports existence", func() {
		existed, err := s.service.Delete(s.ctx, appt.ID)
		s.Require().NoError(err)
		s.True(existed)

		existed, err = s.service.Delete(s.ctx, appt.ID)
		s.Require().NoError(err)
		s.False(existed)
	})
}

// TestList covers filter plumbing and ordering.
func (s *BookingServiceSuite) TestList() {
	otherCaregiver := s.registerCaregiver()
	first, err := s.book(bookingDate, "15:00", s.caregiverID, s.subjectID)
	s.Require().NoError(err)
	second, err := s.book(bookingDate, "09:30", otherCaregiver, s.subjectID)
	s.Require().NoError(err)

	all, err := s.service.List(s.ctx, models.ListFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(second.ID, all[0].ID)
	s.Equal(first.ID, all[1].ID)

	mine, err := s.service.List(s.ctx, models.ListFilter{CaregiverID: &s.caregiverID})
	s.Require().NoError(err)
	s.Require().Len(mine, 1)
	s.Equal(first.ID, mine[0].ID)
}
