package models

import (
	"strings"
	"time"

	id "amparo/pkg/domain"
	dErrors "amparo/pkg/domain-errors"
)

// CaregiverProfile holds the professional attributes of a caregiver.
// RegistrationNumber is globally unique across caregivers.
type CaregiverProfile struct {
	ParticipantID      id.ParticipantID `json:"participant_id"`
	RegistrationNumber string           `json:"registration_number"`
	JobTitle           string           `json:"job_title"`
	Specialty          string           `json:"specialty"`
}

// SubjectProfile holds the demographic attributes of a subject.
type SubjectProfile struct {
	ParticipantID  id.ParticipantID `json:"participant_id"`
	Address        string           `json:"address"`
	BirthDate      time.Time        `json:"birth_date"`
	Age            int              `json:"age"`
	EducationLevel string           `json:"education_level"`
	Ethnicity      string           `json:"ethnicity"`
}

// Profile is the tagged union over the two role variants. Exactly one of
// Caregiver and Subject is non-nil, and the variant matches Role; operations
// switch on Role instead of dispatching dynamically.
type Profile struct {
	Role      Role              `json:"role"`
	Caregiver *CaregiverProfile `json:"caregiver,omitempty"`
	Subject   *SubjectProfile   `json:"subject,omitempty"`
}

// NewCaregiverProfile constructs the caregiver variant.
func NewCaregiverProfile(participantID id.ParticipantID, registrationNumber, jobTitle, specialty string) (Profile, error) {
	if participantID.IsNil() {
		return Profile{}, dErrors.New(dErrors.CodeInvariantViolation, "participant id is required")
	}
	registrationNumber = strings.TrimSpace(registrationNumber)
	if registrationNumber == "" {
		return Profile{}, dErrors.New(dErrors.CodeInvariantViolation, "registration number is required")
	}
	return Profile{
		Role: RoleCaregiver,
		Caregiver: &CaregiverProfile{
			ParticipantID:      participantID,
			RegistrationNumber: registrationNumber,
			JobTitle:           strings.TrimSpace(jobTitle),
			Specialty:          strings.TrimSpace(specialty),
		},
	}, nil
}

// NewSubjectProfile constructs the subject variant.
func NewSubjectProfile(participantID id.ParticipantID, address string, birthDate time.Time, age int, educationLevel, ethnicity string) (Profile, error) {
	if participantID.IsNil() {
		return Profile{}, dErrors.New(dErrors.CodeInvariantViolation, "participant id is required")
	}
	if age < 0 {
		return Profile{}, dErrors.New(dErrors.CodeInvariantViolation, "age cannot be negative")
	}
	return Profile{
		Role: RoleSubject,
		Subject: &SubjectProfile{
			ParticipantID:  participantID,
			Address:        strings.TrimSpace(address),
			BirthDate:      birthDate,
			Age:            age,
			EducationLevel: strings.TrimSpace(educationLevel),
			Ethnicity:      strings.TrimSpace(ethnicity),
		},
	}, nil
}

// ParticipantID returns the owning identity's ID regardless of variant.
func (p Profile) ParticipantID() id.ParticipantID {
	switch p.Role {
	case RoleCaregiver:
		if p.Caregiver != nil {
			return p.Caregiver.ParticipantID
		}
	case RoleSubject:
		if p.Subject != nil {
			return p.Subject.ParticipantID
		}
	}
	return id.ParticipantID{}
}

// Validate checks the union invariant: exactly one variant set, matching Role.
func (p Profile) Validate() error {
	switch p.Role {
	case RoleCaregiver:
		if p.Caregiver == nil || p.Subject != nil {
			return dErrors.New(dErrors.CodeInvariantViolation, "caregiver profile variant does not match role")
		}
	case RoleSubject:
		if p.Subject == nil || p.Caregiver != nil {
			return dErrors.New(dErrors.CodeInvariantViolation, "subject profile variant does not match role")
		}
	default:
		return dErrors.New(dErrors.CodeInvariantViolation, "profile role must be subject or caregiver")
	}
	return nil
}

// CaregiverChanges is the partial update set for caregiver profile fields.
type CaregiverChanges struct {
	RegistrationNumber *string
	JobTitle           *string
	Specialty          *string
}

// IsZero reports whether no caregiver field changes.
func (c CaregiverChanges) IsZero() bool {
	return c.RegistrationNumber == nil && c.JobTitle == nil && c.Specialty == nil
}

// SubjectChanges is the partial update set for subject profile fields.
type SubjectChanges struct {
	Address        *string
	BirthDate      *time.Time
	Age            *int
	EducationLevel *string
	Ethnicity      *string
}

// IsZero reports whether no subject field changes.
func (c SubjectChanges) IsZero() bool {
	return c.Address == nil && c.BirthDate == nil && c.Age == nil &&
		c.EducationLevel == nil && c.Ethnicity == nil
}

// ProfileChanges is the role-tagged partial update set for profile fields.
// At most one variant is set; it must match the stored profile's role.
type ProfileChanges struct {
	Caregiver *CaregiverChanges
	Subject   *SubjectChanges
}

// IsZero reports whether no profile field changes.
func (c ProfileChanges) IsZero() bool {
	return (c.Caregiver == nil || c.Caregiver.IsZero()) &&
		(c.Subject == nil || c.Subject.IsZero())
}

// Apply merges the changes into the profile. The caller has already matched
// variant to role; mismatches are rejected here as a second line of defense.
func (c ProfileChanges) Apply(p *Profile) error {
	if c.Caregiver != nil {
		if p.Role != RoleCaregiver || p.Caregiver == nil {
			return dErrors.New(dErrors.CodeInvariantViolation, "caregiver changes on a non-caregiver profile")
		}
		if c.Caregiver.RegistrationNumber != nil {
			p.Caregiver.RegistrationNumber = strings.TrimSpace(*c.Caregiver.RegistrationNumber)
		}
		if c.Caregiver.JobTitle != nil {
			p.Caregiver.JobTitle = strings.TrimSpace(*c.Caregiver.JobTitle)
		}
		if c.Caregiver.Specialty != nil {
			p.Caregiver.Specialty = strings.TrimSpace(*c.Caregiver.Specialty)
		}
	}
	if c.Subject != nil {
		if p.Role != RoleSubject || p.Subject == nil {
			return dErrors.New(dErrors.CodeInvariantViolation, "subject changes on a non-subject profile")
		}
		if c.Subject.Address != nil {
			p.Subject.Address = strings.TrimSpace(*c.Subject.Address)
		}
		if c.Subject.BirthDate != nil {
			p.Subject.BirthDate = *c.Subject.BirthDate
		}
		if c.Subject.Age != nil {
			p.Subject.Age = *c.Subject.Age
		}
		if c.Subject.EducationLevel != nil {
			p.Subject.EducationLevel = strings.TrimSpace(*c.Subject.EducationLevel)
		}
		if c.Subject.Ethnicity != nil {
			p.Subject.Ethnicity = strings.TrimSpace(*c.Subject.Ethnicity)
		}
	}
	return nil
}

// Participant is the merged read view of the aggregate: the base identity
// plus its role profile.
type Participant struct {
	Identity Identity `json:"identity"`
	Profile  Profile  `json:"profile"`
}
