//go:build integration

package profile_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"amparo/internal/participant/models"
	"amparo/internal/participant/store"
	identitystore "amparo/internal/participant/store/identity"
	"amparo/internal/participant/store/profile"
	id "amparo/pkg/domain"
	"amparo/pkg/platform/sentinel"
	"amparo/pkg/testutil/containers"
)

type PostgresProfileSuite struct {
	suite.Suite
	postgres   *containers.PostgresContainer
	identities *identitystore.Postgres
	store      *profile.Postgres
	seq        int
}

func TestPostgresProfileSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresProfileSuite))
}

func (s *PostgresProfileSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())

	ctx := context.Background()
	s.Require().NoError(identitystore.EnsureSchema(ctx, s.postgres.DB))
	s.Require().NoError(profile.EnsureSchema(ctx, s.postgres.DB))
	s.identities = identitystore.NewPostgres(s.postgres.DB)
	s.store = profile.NewPostgres(s.postgres.DB)
}

func (s *PostgresProfileSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "caregiver_profiles", "subject_profiles", "identities")
	s.Require().NoError(err)
}

// newIdentityRow satisfies the foreign key from profiles back to identities.
func (s *PostgresProfileSuite) newIdentityRow(role models.Role) id.ParticipantID {
	s.seq++
	nationalID, err := id.ParseNationalID(fmt.Sprintf("%011d", s.seq))
	s.Require().NoError(err)

	ident, err := models.NewIdentity(id.NewParticipantID(), role, models.NewIdentityParams{
		NationalID:     nationalID,
		Login:          fmt.Sprintf("login-%04d", s.seq),
		CredentialHash: "$2a$10$fixturefixturefixturefixture",
		GivenName:      "Ana",
	}, time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.identities.Create(context.Background(), ident))
	return ident.ID
}

func (s *PostgresProfileSuite) TestCaregiverRoundTrip() {
	ctx := context.Background()
	participantID := s.newIdentityRow(models.RoleCaregiver)

	p, err := models.NewCaregiverProfile(participantID, "CRM-12345", "physician", "geriatrics")
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(ctx, p))

	found, err := s.store.FindByParticipant(ctx, participantID)
	s.Require().NoError(err)
	s.Equal(models.RoleCaregiver, found.Role)
	s.Require().NotNil(found.Caregiver)
	s.Equal("CRM-12345", found.Caregiver.RegistrationNumber)
	s.Equal("geriatrics", found.Caregiver.Specialty)
}

func (s *PostgresProfileSuite) TestSubjectRoundTrip() {
	ctx := context.Background()
	participantID := s.newIdentityRow(models.RoleSubject)

	birthDate := time.Date(1948, time.March, 10, 0, 0, 0, 0, time.UTC)
	p, err := models.NewSubjectProfile(participantID, "Rua das Flores 12", birthDate, 78, "primary", "parda")
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(ctx, p))

	found, err := s.store.FindByParticipant(ctx, participantID)
	s.Require().NoError(err)
	s.Equal(models.RoleSubject, found.Role)
	s.Require().NotNil(found.Subject)
	s.Equal(78, found.Subject.Age)
	s.Equal(birthDate.Format("2006-01-02"), found.Subject.BirthDate.UTC().Format("2006-01-02"))
}

func (s *PostgresProfileSuite) TestDuplicateRegistrationNumber() {
	ctx := context.Background()

	first, err := models.NewCaregiverProfile(s.newIdentityRow(models.RoleCaregiver), "CRM-12345", "physician", "geriatrics")
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(ctx, first))

	// Case-insensitive: the index is on lower(registration_number).
	second, err := models.NewCaregiverProfile(s.newIdentityRow(models.RoleCaregiver), "crm-12345", "nurse", "psychiatry")
	s.Require().NoError(err)
	err = s.store.Create(ctx, second)
	s.Require().ErrorIs(err, store.ErrDuplicateRegistrationNumber)
}

func (s *PostgresProfileSuite) TestDirectoryQueries() {
	ctx := context.Background()

	caregiver, err := models.NewCaregiverProfile(s.newIdentityRow(models.RoleCaregiver), "CRM-12345", "Physician", "Geriatrics")
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(ctx, caregiver))

	subject, err := models.NewSubjectProfile(s.newIdentityRow(models.RoleSubject), "", time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC), 76, "", "")
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(ctx, subject))

	all, err := s.store.List(ctx, nil)
	s.Require().NoError(err)
	s.Len(all, 2)

	role := models.RoleCaregiver
	caregivers, err := s.store.List(ctx, &role)
	s.Require().NoError(err)
	s.Len(caregivers, 1)

	bySpecialty, err := s.store.ListCaregiversBySpecialty(ctx, "geriatrics")
	s.Require().NoError(err)
	s.Len(bySpecialty, 1)

	byJobTitle, err := s.store.ListCaregiversByJobTitle(ctx, "PHYSICIAN")
	s.Require().NoError(err)
	s.Len(byJobTitle, 1)
}

func (s *PostgresProfileSuite) TestUpdateAndDelete() {
	ctx := context.Background()
	participantID := s.newIdentityRow(models.RoleCaregiver)

	p, err := models.NewCaregiverProfile(participantID, "CRM-12345", "physician", "geriatrics")
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(ctx, p))

	p.Caregiver.Specialty = "psychiatry"
	s.Require().NoError(s.store.Update(ctx, p))

	found, err := s.store.FindByParticipant(ctx, participantID)
	s.Require().NoError(err)
	s.Equal("psychiatry", found.Caregiver.Specialty)

	existed, err := s.store.Delete(ctx, participantID)
	s.Require().NoError(err)
	s.True(existed)

	_, err = s.store.FindByParticipant(ctx, participantID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
