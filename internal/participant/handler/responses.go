package handler

import (
	"time"

	"amparo/internal/participant/models"
)

// ParticipantResponse is the merged identity + profile view returned by all
// participant endpoints.
type ParticipantResponse struct {
	ID           string    `json:"id"`
	Role         string    `json:"role"`
	NationalID   string    `json:"national_id"`
	Login        string    `json:"login"`
	Phone        string    `json:"phone,omitempty"`
	Email        string    `json:"email,omitempty"`
	GivenName    string    `json:"given_name"`
	FamilyName   string    `json:"family_name"`
	RegisteredAt time.Time `json:"registered_at"`
	Active       bool      `json:"active"`

	Caregiver *CaregiverResponse `json:"caregiver,omitempty"`
	Subject   *SubjectResponse   `json:"subject,omitempty"`
}

// CaregiverResponse is the caregiver profile portion of the response.
type CaregiverResponse struct {
	RegistrationNumber string `json:"registration_number"`
	JobTitle           string `json:"job_title,omitempty"`
	Specialty          string `json:"specialty,omitempty"`
}

// SubjectResponse is the subject profile portion of the response.
type SubjectResponse struct {
	Address        string `json:"address,omitempty"`
	BirthDate      string `json:"birth_date,omitempty"`
	Age            int    `json:"age"`
	EducationLevel string `json:"education_level,omitempty"`
	Ethnicity      string `json:"ethnicity,omitempty"`
}

// ListResponse wraps a collection of participants.
type ListResponse struct {
	Participants []*ParticipantResponse `json:"participants"`
}

// FromParticipant converts the domain aggregate to an HTTP response.
func FromParticipant(p *models.Participant) *ParticipantResponse {
	resp := &ParticipantResponse{
		ID:           p.Identity.ID.String(),
		Role:         string(p.Identity.Role),
		NationalID:   string(p.Identity.NationalID),
		Login:        p.Identity.Login,
		Phone:        p.Identity.Phone,
		Email:        p.Identity.Email,
		GivenName:    p.Identity.GivenName,
		FamilyName:   p.Identity.FamilyName,
		RegisteredAt: p.Identity.RegisteredAt,
		Active:       p.Identity.Active,
	}
	if p.Profile.Caregiver != nil {
		resp.Caregiver = &CaregiverResponse{
			RegistrationNumber: p.Profile.Caregiver.RegistrationNumber,
			JobTitle:           p.Profile.Caregiver.JobTitle,
			Specialty:          p.Profile.Caregiver.Specialty,
		}
	}
	if p.Profile.Subject != nil {
		resp.Subject = &SubjectResponse{
			Address:        p.Profile.Subject.Address,
			Age:            p.Profile.Subject.Age,
			EducationLevel: p.Profile.Subject.EducationLevel,
			Ethnicity:      p.Profile.Subject.Ethnicity,
		}
		if !p.Profile.Subject.BirthDate.IsZero() {
			resp.Subject.BirthDate = p.Profile.Subject.BirthDate.Format(birthDateLayout)
		}
	}
	return resp
}

// FromParticipants converts a collection of aggregates.
func FromParticipants(participants []models.Participant) *ListResponse {
	out := make([]*ParticipantResponse, 0, len(participants))
	for i := range participants {
		out = append(out, FromParticipant(&participants[i]))
	}
	return &ListResponse{Participants: out}
}
