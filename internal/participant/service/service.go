// Package service orchestrates the participant aggregate: every operation
// that touches an Identity and its Profile goes through here, so the
// split-persistence protocol (transactional when the substrate supports it,
// compensating writes when it does not) lives in exactly one place.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"amparo/internal/participant/metrics"
	"amparo/internal/participant/models"
	"amparo/internal/participant/store"
	id "amparo/pkg/domain"
	dErrors "amparo/pkg/domain-errors"
	"amparo/pkg/platform/sentinel"
	"amparo/pkg/requestcontext"
	"amparo/pkg/secrets"
)

type IdentityStore interface {
	Create(ctx context.Context, identity *models.Identity) error
	FindByID(ctx context.Context, participantID id.ParticipantID) (*models.Identity, error)
	FindByIDs(ctx context.Context, ids []id.ParticipantID) ([]*models.Identity, error)
	Update(ctx context.Context, identity *models.Identity) error
	Delete(ctx context.Context, participantID id.ParticipantID) (bool, error)
}

type ProfileStore interface {
	Create(ctx context.Context, p models.Profile) error
	FindByParticipant(ctx context.Context, participantID id.ParticipantID) (models.Profile, error)
	Update(ctx context.Context, p models.Profile) error
	Delete(ctx context.Context, participantID id.ParticipantID) (bool, error)
	List(ctx context.Context, roleFilter *models.Role) ([]models.Profile, error)
	ListCaregiversBySpecialty(ctx context.Context, specialty string) ([]models.Profile, error)
	ListCaregiversByJobTitle(ctx context.Context, jobTitle string) ([]models.Profile, error)
}

// Service owns the participant aggregate lifecycle.
type Service struct {
	identities IdentityStore
	profiles   ProfileStore
	tx         TxRunner
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTxRunner makes Register write identity and profile in one transaction
// instead of the compensating-write protocol.
func WithTxRunner(tx TxRunner) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

// New constructs a Service.
func New(identities IdentityStore, profiles ProfileStore, opts ...Option) *Service {
	s := &Service{identities: identities, profiles: profiles}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CaregiverParams carries the caregiver profile fields for registration.
type CaregiverParams struct {
	RegistrationNumber string
	JobTitle           string
	Specialty          string
}

// SubjectParams carries the subject profile fields for registration.
type SubjectParams struct {
	Address        string
	BirthDate      time.Time
	Age            int
	EducationLevel string
	Ethnicity      string
}

// RegisterParams is the full registration payload. Exactly one of Caregiver
// and Subject must be set, matching Role.
type RegisterParams struct {
	Role       models.Role
	NationalID id.NationalID
	Login      string
	Credential string
	Phone      string
	Email      string
	GivenName  string
	FamilyName string
	Caregiver  *CaregiverParams
	Subject    *SubjectParams
}

// Register creates the identity and its role profile as one logical write.
// With a transaction runner both inserts commit together; without one the
// profile insert failing triggers a compensating delete of the identity, and
// a failed compensation surfaces as a partial-write error for operator repair.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*models.Participant, error) {
	start := time.Now()

	hash, err := secrets.Hash(params.Credential)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash credential")
	}

	now := requestcontext.Now(ctx)
	identity, err := models.NewIdentity(id.NewParticipantID(), params.Role, models.NewIdentityParams{
		NationalID:     params.NationalID,
		Login:          params.Login,
		CredentialHash: hash,
		Phone:          params.Phone,
		Email:          params.Email,
		GivenName:      params.GivenName,
		FamilyName:     params.FamilyName,
	}, now)
	if err != nil {
		// Convert invariant violations to validation errors for API response
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	profile, err := buildProfile(identity.ID, params)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.writeAggregate(ctx, identity, profile); err != nil {
		return nil, err
	}

	s.logAudit(ctx, "participant.registered",
		"participant_id", identity.ID,
		"role", identity.Role)
	s.incrementRegistered(string(identity.Role))
	s.observeRegister(start)

	return &models.Participant{Identity: *identity, Profile: profile}, nil
}

func buildProfile(participantID id.ParticipantID, params RegisterParams) (models.Profile, error) {
	switch params.Role {
	case models.RoleCaregiver:
		if params.Caregiver == nil {
			return models.Profile{}, dErrors.New(dErrors.CodeValidation, "caregiver profile fields are required")
		}
		return models.NewCaregiverProfile(participantID,
			params.Caregiver.RegistrationNumber, params.Caregiver.JobTitle, params.Caregiver.Specialty)
	case models.RoleSubject:
		if params.Subject == nil {
			return models.Profile{}, dErrors.New(dErrors.CodeValidation, "subject profile fields are required")
		}
		return models.NewSubjectProfile(participantID,
			params.Subject.Address, params.Subject.BirthDate, params.Subject.Age,
			params.Subject.EducationLevel, params.Subject.Ethnicity)
	}
	return models.Profile{}, dErrors.New(dErrors.CodeValidation, "role must be subject or caregiver")
}

// writeAggregate performs the two inserts under whichever consistency
// protocol the substrate supports.
func (s *Service) writeAggregate(ctx context.Context, identity *models.Identity, profile models.Profile) error {
	if s.tx != nil {
		err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
			if err := s.identities.Create(ctx, identity); err != nil {
				return err
			}
			return s.profiles.Create(ctx, profile)
		})
		return s.translateWriteErr(err)
	}

	if err := s.identities.Create(ctx, identity); err != nil {
		return s.translateWriteErr(err)
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		if _, delErr := s.identities.Delete(ctx, identity.ID); delErr != nil {
			s.logError(ctx, "compensating identity delete failed",
				"participant_id", identity.ID, "error", delErr)
			s.incrementPartialWrite("register")
			return dErrors.Wrap(err, dErrors.CodePartialWrite,
				"profile write failed and identity could not be removed")
		}
		return s.translateWriteErr(err)
	}
	return nil
}

// Get returns the merged identity + profile view. Participants resolve
// through the profile, so an orphaned identity reads as not found.
func (s *Service) Get(ctx context.Context, participantID id.ParticipantID) (*models.Participant, error) {
	start := time.Now()
	participant, err := s.load(ctx, participantID)
	if err != nil {
		return nil, err
	}
	s.observeGet(start)
	return participant, nil
}

func (s *Service) load(ctx context.Context, participantID id.ParticipantID) (*models.Participant, error) {
	profile, err := s.profiles.FindByParticipant(ctx, participantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "participant not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")
	}

	identity, err := s.identities.FindByID(ctx, participantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Profile without identity: the aggregate is broken, not absent.
			return nil, dErrors.New(dErrors.CodePartialWrite, "participant record is incomplete")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}
	return &models.Participant{Identity: *identity, Profile: profile}, nil
}

// Update applies partial changes to the base identity and/or the role
// profile. The two writes are independent; a no-op change set is rejected.
func (s *Service) Update(ctx context.Context, participantID id.ParticipantID, baseChanges models.IdentityChanges, profileChanges models.ProfileChanges) (*models.Participant, error) {
	if baseChanges.IsZero() && profileChanges.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "no fields to update")
	}

	participant, err := s.load(ctx, participantID)
	if err != nil {
		return nil, err
	}

	if !baseChanges.IsZero() {
		baseChanges.Apply(&participant.Identity, requestcontext.Now(ctx))
		if err := s.identities.Update(ctx, &participant.Identity); err != nil {
			return nil, s.translateWriteErr(err)
		}
	}

	if !profileChanges.IsZero() {
		if err := profileChanges.Apply(&participant.Profile); err != nil {
			if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
				return nil, dErrors.New(dErrors.CodeValidation, err.Error())
			}
			return nil, err
		}
		if err := s.profiles.Update(ctx, participant.Profile); err != nil {
			return nil, s.translateWriteErr(err)
		}
	}

	s.logAudit(ctx, "participant.updated", "participant_id", participantID)
	return participant, nil
}

// Remove deletes the aggregate and reports whether it existed. The profile
// goes first so the identity never becomes reachable again mid-delete; an
// identity delete failing afterwards is a partial write.
func (s *Service) Remove(ctx context.Context, participantID id.ParticipantID) (bool, error) {
	existed, err := s.profiles.Delete(ctx, participantID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete profile")
	}
	if !existed {
		return false, nil
	}

	if _, err := s.identities.Delete(ctx, participantID); err != nil {
		s.logError(ctx, "identity delete failed after profile delete",
			"participant_id", participantID, "error", err)
		s.incrementPartialWrite("remove")
		return true, dErrors.Wrap(err, dErrors.CodePartialWrite,
			"profile removed but identity delete failed")
	}

	s.logAudit(ctx, "participant.removed", "participant_id", participantID)
	s.incrementRemoved()
	return true, nil
}

// List returns an unordered snapshot of participants, optionally filtered by
// role. Profiles whose identity is missing are skipped and logged.
func (s *Service) List(ctx context.Context, roleFilter *models.Role) ([]models.Participant, error) {
	profiles, err := s.profiles.List(ctx, roleFilter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list profiles")
	}
	return s.merge(ctx, profiles)
}

// ListCaregiversBySpecialty returns caregivers whose specialty matches
// (case-insensitive).
func (s *Service) ListCaregiversBySpecialty(ctx context.Context, specialty string) ([]models.Participant, error) {
	specialty = strings.TrimSpace(specialty)
	if specialty == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "specialty is required")
	}
	profiles, err := s.profiles.ListCaregiversBySpecialty(ctx, specialty)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list caregivers by specialty")
	}
	return s.merge(ctx, profiles)
}

// ListCaregiversByJobTitle returns caregivers whose job title matches
// (case-insensitive).
func (s *Service) ListCaregiversByJobTitle(ctx context.Context, jobTitle string) ([]models.Participant, error) {
	jobTitle = strings.TrimSpace(jobTitle)
	if jobTitle == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "job title is required")
	}
	profiles, err := s.profiles.ListCaregiversByJobTitle(ctx, jobTitle)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list caregivers by job title")
	}
	return s.merge(ctx, profiles)
}

// UpdateCaregiverSpecialty changes a caregiver's specialty.
func (s *Service) UpdateCaregiverSpecialty(ctx context.Context, participantID id.ParticipantID, specialty string) (*models.Participant, error) {
	specialty = strings.TrimSpace(specialty)
	if specialty == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "specialty is required")
	}
	return s.updateCaregiverField(ctx, participantID, models.CaregiverChanges{Specialty: &specialty})
}

// UpdateCaregiverJobTitle changes a caregiver's job title.
func (s *Service) UpdateCaregiverJobTitle(ctx context.Context, participantID id.ParticipantID, jobTitle string) (*models.Participant, error) {
	jobTitle = strings.TrimSpace(jobTitle)
	if jobTitle == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "job title is required")
	}
	return s.updateCaregiverField(ctx, participantID, models.CaregiverChanges{JobTitle: &jobTitle})
}

func (s *Service) updateCaregiverField(ctx context.Context, participantID id.ParticipantID, changes models.CaregiverChanges) (*models.Participant, error) {
	participant, err := s.load(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if participant.Profile.Role != models.RoleCaregiver {
		return nil, dErrors.New(dErrors.CodeValidation, "participant is not a caregiver")
	}
	if err := (models.ProfileChanges{Caregiver: &changes}).Apply(&participant.Profile); err != nil {
		return nil, err
	}
	if err := s.profiles.Update(ctx, participant.Profile); err != nil {
		return nil, s.translateWriteErr(err)
	}
	s.logAudit(ctx, "participant.caregiver_updated", "participant_id", participantID)
	return participant, nil
}

// Exists reports whether a participant with the given role is registered.
// Used by the booking service to validate appointment parties.
func (s *Service) Exists(ctx context.Context, participantID id.ParticipantID, role models.Role) (bool, error) {
	profile, err := s.profiles.FindByParticipant(ctx, participantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check participant")
	}
	return profile.Role == role, nil
}

// merge resolves profiles to their identities in one batched lookup.
func (s *Service) merge(ctx context.Context, profiles []models.Profile) ([]models.Participant, error) {
	if len(profiles) == 0 {
		return nil, nil
	}
	ids := make([]id.ParticipantID, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.ParticipantID())
	}
	identities, err := s.identities.FindByIDs(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identities")
	}
	byID := make(map[id.ParticipantID]*models.Identity, len(identities))
	for _, identity := range identities {
		byID[identity.ID] = identity
	}

	participants := make([]models.Participant, 0, len(profiles))
	for _, p := range profiles {
		identity, ok := byID[p.ParticipantID()]
		if !ok {
			s.logError(ctx, "profile without identity skipped", "participant_id", p.ParticipantID())
			continue
		}
		participants = append(participants, models.Participant{Identity: *identity, Profile: p})
	}
	return participants, nil
}

// translateWriteErr maps store sentinels from aggregate writes onto coded
// domain errors. The store constraint is the authoritative uniqueness check;
// these messages are the only error shaping the API does.
func (s *Service) translateWriteErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrDuplicateNationalID):
		return dErrors.New(dErrors.CodeConflict, "national id already registered")
	case errors.Is(err, store.ErrDuplicateLogin):
		return dErrors.New(dErrors.CodeConflict, "login already taken")
	case errors.Is(err, store.ErrDuplicateEmail):
		return dErrors.New(dErrors.CodeConflict, "email already registered")
	case errors.Is(err, store.ErrDuplicateRegistrationNumber):
		return dErrors.New(dErrors.CodeConflict, "registration number already registered")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeConflict, "participant already registered")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "participant not found")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "storage unavailable")
	case dErrors.HasCode(err, dErrors.CodeTimeout):
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write participant")
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func (s *Service) logError(ctx context.Context, msg string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	s.logger.ErrorContext(ctx, msg, attributes...)
}

func (s *Service) incrementRegistered(role string) {
	if s.metrics != nil {
		s.metrics.IncrementRegistered(role)
	}
}

func (s *Service) incrementRemoved() {
	if s.metrics != nil {
		s.metrics.IncrementRemoved()
	}
}

func (s *Service) incrementPartialWrite(operation string) {
	if s.metrics != nil {
		s.metrics.IncrementPartialWrite(operation)
	}
}

func (s *Service) observeRegister(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveRegister(start)
	}
}

func (s *Service) observeGet(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveGet(start)
	}
}
