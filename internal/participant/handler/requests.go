package handler

import (
	"regexp"
	"strings"
	"time"

	"amparo/internal/participant/models"
	"amparo/internal/participant/service"
	id "amparo/pkg/domain"
	dErrors "amparo/pkg/domain-errors"
)

var (
	phonePattern = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

const birthDateLayout = "2006-01-02"

// RegisterRequest is the HTTP request body for POST /participants.
type RegisterRequest struct {
	Role       string `json:"role"`
	NationalID string `json:"national_id"`
	Login      string `json:"login"`
	Credential string `json:"credential"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`

	Caregiver *CaregiverPayload `json:"caregiver,omitempty"`
	Subject   *SubjectPayload   `json:"subject,omitempty"`

	// Parsed values (populated by Validate)
	parsedRole       models.Role
	parsedNationalID id.NationalID
	parsedBirthDate  time.Time
}

// CaregiverPayload is the caregiver profile portion of a registration.
type CaregiverPayload struct {
	RegistrationNumber string `json:"registration_number"`
	JobTitle           string `json:"job_title"`
	Specialty          string `json:"specialty"`
}

// SubjectPayload is the subject profile portion of a registration.
type SubjectPayload struct {
	Address        string `json:"address"`
	BirthDate      string `json:"birth_date"`
	Age            int    `json:"age"`
	EducationLevel string `json:"education_level"`
	Ethnicity      string `json:"ethnicity"`
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *RegisterRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	role, err := models.ParseRole(strings.TrimSpace(r.Role))
	if err != nil {
		return err
	}
	r.parsedRole = role

	nationalID, err := id.ParseNationalID(strings.TrimSpace(r.NationalID))
	if err != nil {
		return err
	}
	r.parsedNationalID = nationalID

	r.Login = strings.TrimSpace(r.Login)
	if len(r.Login) < 3 {
		return dErrors.New(dErrors.CodeValidation, "login must have at least 3 characters")
	}
	if r.Credential == "" {
		return dErrors.New(dErrors.CodeValidation, "credential is required")
	}
	r.GivenName = strings.TrimSpace(r.GivenName)
	if r.GivenName == "" {
		return dErrors.New(dErrors.CodeValidation, "given_name is required")
	}

	r.Phone = strings.TrimSpace(r.Phone)
	if r.Phone != "" && !phonePattern.MatchString(r.Phone) {
		return dErrors.New(dErrors.CodeValidation, "phone must be in +<country><national> format")
	}
	r.Email = strings.TrimSpace(r.Email)
	if r.Email != "" && !emailPattern.MatchString(r.Email) {
		return dErrors.New(dErrors.CodeValidation, "email is not a valid address")
	}

	switch role {
	case models.RoleCaregiver:
		if r.Caregiver == nil {
			return dErrors.New(dErrors.CodeValidation, "caregiver profile is required for role caregiver")
		}
		if strings.TrimSpace(r.Caregiver.RegistrationNumber) == "" {
			return dErrors.New(dErrors.CodeValidation, "caregiver.registration_number is required")
		}
	case models.RoleSubject:
		if r.Subject == nil {
			return dErrors.New(dErrors.CodeValidation, "subject profile is required for role subject")
		}
		if r.Subject.Age < 0 {
			return dErrors.New(dErrors.CodeValidation, "subject.age cannot be negative")
		}
		if r.Subject.BirthDate != "" {
			birthDate, err := time.Parse(birthDateLayout, r.Subject.BirthDate)
			if err != nil {
				return dErrors.New(dErrors.CodeValidation, "subject.birth_date must be YYYY-MM-DD")
			}
			r.parsedBirthDate = birthDate
		}
	}
	return nil
}

// ToParams converts the validated request into service registration params.
func (r *RegisterRequest) ToParams() service.RegisterParams {
	params := service.RegisterParams{
		Role:       r.parsedRole,
		NationalID: r.parsedNationalID,
		Login:      r.Login,
		Credential: r.Credential,
		Phone:      r.Phone,
		Email:      r.Email,
		GivenName:  r.GivenName,
		FamilyName: strings.TrimSpace(r.FamilyName),
	}
	switch r.parsedRole {
	case models.RoleCaregiver:
		params.Caregiver = &service.CaregiverParams{
			RegistrationNumber: r.Caregiver.RegistrationNumber,
			JobTitle:           r.Caregiver.JobTitle,
			Specialty:          r.Caregiver.Specialty,
		}
	case models.RoleSubject:
		params.Subject = &service.SubjectParams{
			Address:        r.Subject.Address,
			BirthDate:      r.parsedBirthDate,
			Age:            r.Subject.Age,
			EducationLevel: r.Subject.EducationLevel,
			Ethnicity:      r.Subject.Ethnicity,
		}
	}
	return params
}

// UpdateRequest is the HTTP request body for PATCH /participants/{id}.
// Absent fields stay unchanged; an explicit empty string clears phone/email.
type UpdateRequest struct {
	GivenName  *string `json:"given_name"`
	FamilyName *string `json:"family_name"`
	Phone      *string `json:"phone"`
	Email      *string `json:"email"`

	Caregiver *CaregiverChangesPayload `json:"caregiver,omitempty"`
	Subject   *SubjectChangesPayload   `json:"subject,omitempty"`

	parsedBirthDate *time.Time
}

// CaregiverChangesPayload carries partial caregiver profile changes.
type CaregiverChangesPayload struct {
	RegistrationNumber *string `json:"registration_number"`
	JobTitle           *string `json:"job_title"`
	Specialty          *string `json:"specialty"`
}

// SubjectChangesPayload carries partial subject profile changes.
type SubjectChangesPayload struct {
	Address        *string `json:"address"`
	BirthDate      *string `json:"birth_date"`
	Age            *int    `json:"age"`
	EducationLevel *string `json:"education_level"`
	Ethnicity      *string `json:"ethnicity"`
}

// Validate validates and parses the request.
func (r *UpdateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.GivenName != nil && strings.TrimSpace(*r.GivenName) == "" {
		return dErrors.New(dErrors.CodeValidation, "given_name cannot be cleared")
	}
	if r.Phone != nil {
		phone := strings.TrimSpace(*r.Phone)
		if phone != "" && !phonePattern.MatchString(phone) {
			return dErrors.New(dErrors.CodeValidation, "phone must be in +<country><national> format")
		}
	}
	if r.Email != nil {
		email := strings.TrimSpace(*r.Email)
		if email != "" && !emailPattern.MatchString(email) {
			return dErrors.New(dErrors.CodeValidation, "email is not a valid address")
		}
	}
	if r.Caregiver != nil && r.Subject != nil {
		return dErrors.New(dErrors.CodeValidation, "only one of caregiver and subject may be set")
	}
	if r.Caregiver != nil && r.Caregiver.RegistrationNumber != nil &&
		strings.TrimSpace(*r.Caregiver.RegistrationNumber) == "" {
		return dErrors.New(dErrors.CodeValidation, "caregiver.registration_number cannot be cleared")
	}
	if r.Subject != nil {
		if r.Subject.Age != nil && *r.Subject.Age < 0 {
			return dErrors.New(dErrors.CodeValidation, "subject.age cannot be negative")
		}
		if r.Subject.BirthDate != nil {
			birthDate, err := time.Parse(birthDateLayout, *r.Subject.BirthDate)
			if err != nil {
				return dErrors.New(dErrors.CodeValidation, "subject.birth_date must be YYYY-MM-DD")
			}
			r.parsedBirthDate = &birthDate
		}
	}
	return nil
}

// ToChanges converts the validated request into the service change sets.
func (r *UpdateRequest) ToChanges() (models.IdentityChanges, models.ProfileChanges) {
	base := models.IdentityChanges{
		GivenName:  r.GivenName,
		FamilyName: r.FamilyName,
		Phone:      r.Phone,
		Email:      r.Email,
	}
	var profile models.ProfileChanges
	if r.Caregiver != nil {
		profile.Caregiver = &models.CaregiverChanges{
			RegistrationNumber: r.Caregiver.RegistrationNumber,
			JobTitle:           r.Caregiver.JobTitle,
			Specialty:          r.Caregiver.Specialty,
		}
	}
	if r.Subject != nil {
		profile.Subject = &models.SubjectChanges{
			Address:        r.Subject.Address,
			BirthDate:      r.parsedBirthDate,
			Age:            r.Subject.Age,
			EducationLevel: r.Subject.EducationLevel,
			Ethnicity:      r.Subject.Ethnicity,
		}
	}
	return base, profile
}

// UpdateSpecialtyRequest is the HTTP request body for
// PATCH /caregivers/{id}/specialty.
type UpdateSpecialtyRequest struct {
	Specialty string `json:"specialty"`
}

// Validate validates the request.
func (r *UpdateSpecialtyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if strings.TrimSpace(r.Specialty) == "" {
		return dErrors.New(dErrors.CodeValidation, "specialty is required")
	}
	return nil
}

// UpdateJobTitleRequest is the HTTP request body for
// PATCH /caregivers/{id}/job-title.
type UpdateJobTitleRequest struct {
	JobTitle string `json:"job_title"`
}

// Validate validates the request.
func (r *UpdateJobTitleRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if strings.TrimSpace(r.JobTitle) == "" {
		return dErrors.New(dErrors.CodeValidation, "job_title is required")
	}
	return nil
}
