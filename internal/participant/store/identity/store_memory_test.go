package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"amparo/internal/participant/models"
	"amparo/internal/participant/store"
	id "amparo/pkg/domain"
	"amparo/pkg/platform/sentinel"
)

type IdentityStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *IdentityStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestIdentityStoreSuite(t *testing.T) {
	suite.Run(t, new(IdentityStoreSuite))
}

func (s *IdentityStoreSuite) newIdentity(nationalID, login, email string) *models.Identity {
	now := time.Now()
	return &models.Identity{
		ID:             id.NewParticipantID(),
		NationalID:     id.NationalID(nationalID),
		Login:          login,
		CredentialHash: "hash",
		Email:          email,
		GivenName:      "Ana",
		FamilyName:     "Souza",
		Role:           models.RoleSubject,
		RegisteredAt:   now,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// TestCreationAndLookups verifies the store correctly creates and retrieves identities.
func (s *IdentityStoreSuite) TestCreationAndLookups() {
	s.Run("creates and finds identity by ID", func() {
		identity := s.newIdentity("12345678901", "ana.souza", "ana@example.com")
		s.Require().NoError(s.store.Create(s.ctx, identity))

		found, err := s.store.FindByID(s.ctx, identity.ID)
		s.Require().NoError(err)
		s.Equal(identity.Login, found.Login)
		s.Equal(identity.NationalID, found.NationalID)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, id.NewParticipantID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("finds only existing identities in batch", func() {
		identity := s.newIdentity("22345678901", "batch.user", "")
		s.Require().NoError(s.store.Create(s.ctx, identity))

		found, err := s.store.FindByIDs(s.ctx, []id.ParticipantID{identity.ID, id.NewParticipantID()})
		s.Require().NoError(err)
		s.Len(found, 1)
		s.Equal(identity.ID, found[0].ID)
	})
}

// TestUniqueness verifies the per-field duplicate errors.
func (s *IdentityStoreSuite) TestUniqueness() {
	s.Run("rejects duplicate national id", func() {
		first := s.newIdentity("11111111111", "first.user", "")
		s.Require().NoError(s.store.Create(s.ctx, first))

		second := s.newIdentity("11111111111", "second.user", "")
		err := s.store.Create(s.ctx, second)
		s.Require().ErrorIs(err, store.ErrDuplicateNationalID)
	})

	s.Run("rejects duplicate login case-insensitively", func() {
		first := s.newIdentity("33333333333", "SameLogin", "")
		s.Require().NoError(s.store.Create(s.ctx, first))

		second := s.newIdentity("44444444444", "samelogin", "")
		err := s.store.Create(s.ctx, second)
		s.Require().ErrorIs(err, store.ErrDuplicateLogin)
	})

	s.Run("rejects duplicate email but allows empty emails", func() {
		first := s.newIdentity("55555555555", "mail.one", "shared@example.com")
		s.Require().NoError(s.store.Create(s.ctx, first))

		second := s.newIdentity("66666666666", "mail.two", "Shared@Example.com")
		err := s.store.Create(s.ctx, second)
		s.Require().ErrorIs(err, store.ErrDuplicateEmail)

		noMailA := s.newIdentity("77777777777", "nomail.a", "")
		noMailB := s.newIdentity("88888888888", "nomail.b", "")
		s.Require().NoError(s.store.Create(s.ctx, noMailA))
		s.Require().NoError(s.store.Create(s.ctx, noMailB))
	})

	s.Run("all duplicates wrap the shared sentinel", func() {
		first := s.newIdentity("99999999999", "sentinel.user", "")
		s.Require().NoError(s.store.Create(s.ctx, first))

		second := s.newIdentity("99999999999", "other.user", "")
		err := s.store.Create(s.ctx, second)
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})
}

// TestUpdates verifies update semantics including uniqueness on changed fields.
func (s *IdentityStoreSuite) TestUpdates() {
	s.Run("persists field changes", func() {
		identity := s.newIdentity("10101010101", "update.user", "")
		s.Require().NoError(s.store.Create(s.ctx, identity))

		identity.Phone = "+5511999990000"
		identity.Active = false
		s.Require().NoError(s.store.Update(s.ctx, identity))

		found, err := s.store.FindByID(s.ctx, identity.ID)
		s.Require().NoError(err)
		s.Equal("+5511999990000", found.Phone)
		s.False(found.Active)
	})

	s.Run("rejects email change colliding with another identity", func() {
		owner := s.newIdentity("12121212121", "owner.user", "owner@example.com")
		other := s.newIdentity("13131313131", "other.mail", "other@example.com")
		s.Require().NoError(s.store.Create(s.ctx, owner))
		s.Require().NoError(s.store.Create(s.ctx, other))

		other.Email = "owner@example.com"
		err := s.store.Update(s.ctx, other)
		s.Require().ErrorIs(err, store.ErrDuplicateEmail)
	})

	s.Run("returns ErrNotFound for non-existent identity", func() {
		identity := s.newIdentity("14141414141", "ghost.user", "")
		err := s.store.Update(s.ctx, identity)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestDelete verifies delete reports existence and frees unique fields.
func (s *IdentityStoreSuite) TestDelete() {
	s.Run("deletes and reports existence", func() {
		identity := s.newIdentity("15151515151", "delete.user", "")
		s.Require().NoError(s.store.Create(s.ctx, identity))

		existed, err := s.store.Delete(s.ctx, identity.ID)
		s.Require().NoError(err)
		s.True(existed)

		existed, err = s.store.Delete(s.ctx, identity.ID)
		s.Require().NoError(err)
		s.False(existed)
	})

	s.Run("frees unique fields for reuse", func() {
		identity := s.newIdentity("16161616161", "reuse.user", "reuse@example.com")
		s.Require().NoError(s.store.Create(s.ctx, identity))

		_, err := s.store.Delete(s.ctx, identity.ID)
		s.Require().NoError(err)

		again := s.newIdentity("16161616161", "reuse.user", "reuse@example.com")
		s.Require().NoError(s.store.Create(s.ctx, again))
	})
}
