package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	identitystore "amparo/internal/participant/store/identity"
	profilestore "amparo/internal/participant/store/profile"

	"amparo/internal/participant/models"
	id "amparo/pkg/domain"
	dErrors "amparo/pkg/domain-errors"
)

type ParticipantServiceSuite struct {
	suite.Suite
	identities *identitystore.InMemory
	profiles   *profilestore.InMemory
	service    *Service
	ctx        context.Context
}

func (s *ParticipantServiceSuite) SetupTest() {
	s.identities = identitystore.NewInMemory()
	s.profiles = profilestore.NewInMemory()
	s.service = New(s.identities, s.profiles)
	s.ctx = context.Background()
}

func TestParticipantServiceSuite(t *testing.T) {
	suite.Run(t, new(ParticipantServiceSuite))
}

func caregiverParams(nationalID, login, registrationNumber string) RegisterParams {
	return RegisterParams{
		Role:       models.RoleCaregiver,
		NationalID: id.NationalID(nationalID),
		Login:      login,
		Credential: "s3cret-cred",
		GivenName:  "Clara",
		FamilyName: "Lima",
		Caregiver: &CaregiverParams{
			RegistrationNumber: registrationNumber,
			JobTitle:           "psychologist",
			Specialty:          "psychology",
		},
	}
}

func subjectParams(nationalID, login string) RegisterParams {
	return RegisterParams{
		Role:       models.RoleSubject,
		NationalID: id.NationalID(nationalID),
		Login:      login,
		Credential: "s3cret-cred",
		GivenName:  "Bruno",
		FamilyName: "Alves",
		Subject: &SubjectParams{
			Address:   "Rua A 100",
			BirthDate: time.Date(1992, 3, 4, 0, 0, 0, 0, time.UTC),
			Age:       34,
		},
	}
}

// TestRegister covers the aggregate write: both variants, validation, and
// duplicate shaping.
func (s *ParticipantServiceSuite) TestRegister() {
	s.Run("registers a caregiver with merged view", func() {
		participant, err := s.service.Register(s.ctx, caregiverParams("11111111111", "clara.lima", "CRP-1001"))
		s.Require().NoError(err)
		s.Equal(models.RoleCaregiver, participant.Identity.Role)
		s.Require().NotNil(participant.Profile.Caregiver)
		s.Equal(participant.Identity.ID, participant.Profile.Caregiver.ParticipantID)
		s.NotEqual("s3cret-cred", participant.Identity.CredentialHash)
	})

	s.Run("registers a subject", func() {
		participant, err := s.service.Register(s.ctx, subjectParams("22222222222", "bruno.alves"))
		s.Require().NoError(err)
		s.Equal(models.RoleSubject, participant.Identity.Role)
		s.Require().NotNil(participant.Profile.Subject)
	})

	s.Run("rejects missing profile payload", func() {
		params := subjectParams("33333333333", "no.profile")
		params.Subject = nil
		_, err := s.service.Register(s.ctx, params)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects short login as validation", func() {
		params := subjectParams("44444444444", "ab")
		_, err := s.service.Register(s.ctx, params)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("maps duplicate national id to conflict", func() {
		_, err := s.service.Register(s.ctx, subjectParams("55555555555", "dup.one"))
		s.Require().NoError(err)

		_, err = s.service.Register(s.ctx, subjectParams("55555555555", "dup.two"))
		s.Require().True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Contains(err.Error(), "national id")
	})

	s.Run("maps duplicate registration number to conflict", func() {
		_, err := s.service.Register(s.ctx, caregiverParams("66666666666", "reg.one", "CRP-9000"))
		s.Require().NoError(err)

		_, err = s.service.Register(s.ctx, caregiverParams("77777777777", "reg.two", "CRP-9000"))
		s.Require().True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Contains(err.Error(), "registration number")
	})
}

// TestCompensation covers the no-transaction write protocol.
func (s *ParticipantServiceSuite) TestCompensation() {
	s.Run("profile failure rolls the identity back", func() {
		// Duplicate registration number makes the profile insert fail after
		// the identity insert succeeded.
		_, err := s.service.Register(s.ctx, caregiverParams("11111111112", "comp.one", "CRP-7000"))
		s.Require().NoError(err)

		_, err = s.service.Register(s.ctx, caregiverParams("11111111113", "comp.two", "CRP-7000"))
		s.Require().True(dErrors.HasCode(err, dErrors.CodeConflict))

		// The orphan identity was compensated away, so its unique fields are free.
		_, err = s.service.Register(s.ctx, caregiverParams("11111111113", "comp.two", "CRP-7001"))
		s.Require().NoError(err)
	})

	s.Run("failed compensation surfaces as partial write", func() {
		identities := &failingIdentityStore{InMemory: identitystore.NewInMemory(), failDelete: true}
		svc := New(identities, s.profiles)

		_, err := svc.Register(s.ctx, caregiverParams("11111111114", "partial.one", "CRP-7100"))
		s.Require().NoError(err)

		_, err = svc.Register(s.ctx, caregiverParams("11111111115", "partial.two", "CRP-7100"))
		s.Require().True(dErrors.HasCode(err, dErrors.CodePartialWrite))
	})
}

// TestGetUpdateRemove covers the merged read view and the mutation paths.
func (s *ParticipantServiceSuite) TestGetUpdateRemove() {
	s.Run("gets a registered participant", func() {
		created, err := s.service.Register(s.ctx, subjectParams("11111111116", "get.user"))
		s.Require().NoError(err)

		found, err := s.service.Get(s.ctx, created.Identity.ID)
		s.Require().NoError(err)
		s.Equal(created.Identity.Login, found.Identity.Login)
		s.Equal("Rua A 100", found.Profile.Subject.Address)
	})

	s.Run("returns not found for unknown id", func() {
		_, err := s.service.Get(s.ctx, id.NewParticipantID())
		s.Require().True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("updates base and profile fields independently", func() {
		created, err := s.service.Register(s.ctx, subjectParams("11111111117", "upd.user"))
		s.Require().NoError(err)

		phone := "+5511988887777"
		address := "Rua Nova 42"
		updated, err := s.service.Update(s.ctx, created.Identity.ID,
			models.IdentityChanges{Phone: &phone},
			models.ProfileChanges{Subject: &models.SubjectChanges{Address: &address}})
		s.Require().NoError(err)
		s.Equal(phone, updated.Identity.Phone)
		s.Equal(address, updated.Profile.Subject.Address)
	})

	s.Run("rejects an empty change set", func() {
		created, err := s.service.Register(s.ctx, subjectParams("11111111118", "noop.user"))
		s.Require().NoError(err)

		_, err = s.service.Update(s.ctx, created.Identity.ID, models.IdentityChanges{}, models.ProfileChanges{})
		s.Require().True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("removes the whole aggregate", func() {
		created, err := s.service.Register(s.ctx, subjectParams("11111111119", "rm.user"))
		s.Require().NoError(err)

		existed, err := s.service.Remove(s.ctx, created.Identity.ID)
		s.Require().NoError(err)
		s.True(existed)

		_, err = s.service.Get(s.ctx, created.Identity.ID)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeNotFound))

		existed, err = s.service.Remove(s.ctx, created.Identity.ID)
		s.Require().NoError(err)
		s.False(existed)
	})

	s.Run("identity delete failure during remove is a partial write", func() {
		identities := &failingIdentityStore{InMemory: identitystore.NewInMemory()}
		profiles := profilestore.NewInMemory()
		svc := New(identities, profiles)

		created, err := svc.Register(s.ctx, subjectParams("11111111120", "pw.user"))
		s.Require().NoError(err)

		identities.failDelete = true
		existed, err := svc.Remove(s.ctx, created.Identity.ID)
		s.True(existed)
		s.Require().True(dErrors.HasCode(err, dErrors.CodePartialWrite))
	})
}

// TestDirectoryQueries covers role listing, caregiver filters, and Exists.
func (s *ParticipantServiceSuite) TestDirectoryQueries() {
	s.Run("lists by role", func() {
		_, err := s.service.Register(s.ctx, caregiverParams("11111111121", "dir.cg", "CRP-8000"))
		s.Require().NoError(err)
		_, err = s.service.Register(s.ctx, subjectParams("11111111122", "dir.sb"))
		s.Require().NoError(err)

		role := models.RoleCaregiver
		caregivers, err := s.service.List(s.ctx, &role)
		s.Require().NoError(err)
		s.Len(caregivers, 1)

		all, err := s.service.List(s.ctx, nil)
		s.Require().NoError(err)
		s.Len(all, 2)
	})

	s.Run("filters caregivers by specialty and job title", func() {
		bySpecialty, err := s.service.ListCaregiversBySpecialty(s.ctx, "Psychology")
		s.Require().NoError(err)
		s.Len(bySpecialty, 1)

		byJobTitle, err := s.service.ListCaregiversByJobTitle(s.ctx, "psychologist")
		s.Require().NoError(err)
		s.Len(byJobTitle, 1)

		_, err = s.service.ListCaregiversBySpecialty(s.ctx, "  ")
		s.Require().True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("updates caregiver specialty and job title", func() {
		created, err := s.service.Register(s.ctx, caregiverParams("11111111123", "spec.cg", "CRP-8100"))
		s.Require().NoError(err)

		updated, err := s.service.UpdateCaregiverSpecialty(s.ctx, created.Identity.ID, "neuropsychology")
		s.Require().NoError(err)
		s.Equal("neuropsychology", updated.Profile.Caregiver.Specialty)

		updated, err = s.service.UpdateCaregiverJobTitle(s.ctx, created.Identity.ID, "clinical psychologist")
		s.Require().NoError(err)
		s.Equal("clinical psychologist", updated.Profile.Caregiver.JobTitle)
	})

	s.Run("rejects caregiver mutators on a subject", func() {
		created, err := s.service.Register(s.ctx, subjectParams("11111111124", "wrong.role"))
		s.Require().NoError(err)

		_, err = s.service.UpdateCaregiverSpecialty(s.ctx, created.Identity.ID, "psychology")
		s.Require().True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("reports existence per role", func() {
		created, err := s.service.Register(s.ctx, caregiverParams("11111111125", "exist.cg", "CRP-8200"))
		s.Require().NoError(err)

		ok, err := s.service.Exists(s.ctx, created.Identity.ID, models.RoleCaregiver)
		s.Require().NoError(err)
		s.True(ok)

		ok, err = s.service.Exists(s.ctx, created.Identity.ID, models.RoleSubject)
		s.Require().NoError(err)
		s.False(ok)

		ok, err = s.service.Exists(s.ctx, id.NewParticipantID(), models.RoleCaregiver)
		s.Require().NoError(err)
		s.False(ok)
	})
}

// failingIdentityStore wraps the in-memory store and fails deletes on demand,
// standing in for a substrate outage between the two aggregate writes.
type failingIdentityStore struct {
	*identitystore.InMemory
	failDelete bool
}

func (f *failingIdentityStore) Delete(ctx context.Context, participantID id.ParticipantID) (bool, error) {
	if f.failDelete {
		return false, errors.New("connection reset")
	}
	return f.InMemory.Delete(ctx, participantID)
}
