package handler

import (
	"strings"
	"time"

	"amparo/internal/scheduling/models"
	"amparo/internal/scheduling/service"
	id "amparo/pkg/domain"
	dErrors "amparo/pkg/domain-errors"
)

const dateLayout = "2006-01-02"

// CreateRequest is the HTTP request body for POST /appointments.
type CreateRequest struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	CaregiverID string `json:"caregiver_id"`
	SubjectID   string `json:"subject_id"`
	Status      string `json:"status"`

	// Parsed values (populated by Validate)
	parsedDate        time.Time
	parsedTime        id.ClockTime
	parsedCaregiverID id.ParticipantID
	parsedSubjectID   id.ParticipantID
	parsedStatus      models.Status
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CreateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	date, err := time.Parse(dateLayout, strings.TrimSpace(r.Date))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "date must be YYYY-MM-DD")
	}
	r.parsedDate = date

	clock, err := id.ParseClockTime(strings.TrimSpace(r.Time))
	if err != nil {
		return err
	}
	r.parsedTime = clock

	caregiverID, err := id.ParseParticipantID(strings.TrimSpace(r.CaregiverID))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "caregiver_id is not a valid id")
	}
	r.parsedCaregiverID = caregiverID

	subjectID, err := id.ParseParticipantID(strings.TrimSpace(r.SubjectID))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "subject_id is not a valid id")
	}
	r.parsedSubjectID = subjectID

	if raw := strings.TrimSpace(r.Status); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			return err
		}
		r.parsedStatus = status
	}
	return nil
}

// ToParams converts the validated request into service booking params.
func (r *CreateRequest) ToParams() service.CreateParams {
	return service.CreateParams{
		Date:        r.parsedDate,
		Time:        r.parsedTime,
		CaregiverID: r.parsedCaregiverID,
		SubjectID:   r.parsedSubjectID,
		Status:      r.parsedStatus,
	}
}

// UpdateRequest is the HTTP request body for PATCH /appointments/{id}.
// Absent fields stay unchanged.
type UpdateRequest struct {
	Date        *string `json:"date"`
	Time        *string `json:"time"`
	CaregiverID *string `json:"caregiver_id"`
	SubjectID   *string `json:"subject_id"`
	Status      *string `json:"status"`

	parsed models.Changes
}

// Validate validates and parses the request.
func (r *UpdateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Date != nil {
		date, err := time.Parse(dateLayout, strings.TrimSpace(*r.Date))
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "date must be YYYY-MM-DD")
		}
		r.parsed.Date = &date
	}
	if r.Time != nil {
		clock, err := id.ParseClockTime(strings.TrimSpace(*r.Time))
		if err != nil {
			return err
		}
		r.parsed.Time = &clock
	}
	if r.CaregiverID != nil {
		caregiverID, err := id.ParseParticipantID(strings.TrimSpace(*r.CaregiverID))
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "caregiver_id is not a valid id")
		}
		r.parsed.CaregiverID = &caregiverID
	}
	if r.SubjectID != nil {
		subjectID, err := id.ParseParticipantID(strings.TrimSpace(*r.SubjectID))
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "subject_id is not a valid id")
		}
		r.parsed.SubjectID = &subjectID
	}
	if r.Status != nil {
		status, err := models.ParseStatus(strings.TrimSpace(*r.Status))
		if err != nil {
			return err
		}
		r.parsed.Status = &status
	}
	if r.parsed.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "no fields to update")
	}
	return nil
}

// ToChanges converts the validated request into the service change set.
func (r *UpdateRequest) ToChanges() models.Changes {
	return r.parsed
}

// UpdateStatusRequest is the HTTP request body for
// PATCH /appointments/{id}/status.
type UpdateStatusRequest struct {
	Status string `json:"status"`

	parsedStatus models.Status
}

// Validate validates and parses the request.
func (r *UpdateStatusRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	status, err := models.ParseStatus(strings.TrimSpace(r.Status))
	if err != nil {
		return err
	}
	r.parsedStatus = status
	return nil
}

// ParsedStatus returns the validated status.
func (r *UpdateStatusRequest) ParsedStatus() models.Status {
	return r.parsedStatus
}

// RescheduleRequest is the HTTP request body for
// PATCH /appointments/{id}/reschedule.
type RescheduleRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`

	parsedDate time.Time
	parsedTime id.ClockTime
}

// Validate validates and parses the request.
func (r *RescheduleRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	date, err := time.Parse(dateLayout, strings.TrimSpace(r.Date))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "date must be YYYY-MM-DD")
	}
	r.parsedDate = date

	clock, err := id.ParseClockTime(strings.TrimSpace(r.Time))
	if err != nil {
		return err
	}
	r.parsedTime = clock
	return nil
}

// ParsedDate returns the validated date.
func (r *RescheduleRequest) ParsedDate() time.Time { return r.parsedDate }

// ParsedTime returns the validated time.
func (r *RescheduleRequest) ParsedTime() id.ClockTime { return r.parsedTime }

// ParseListFilter builds a ListFilter from query parameters.
func ParseListFilter(caregiver, subject, date, status string) (models.ListFilter, error) {
	var filter models.ListFilter
	if caregiver = strings.TrimSpace(caregiver); caregiver != "" {
		caregiverID, err := id.ParseParticipantID(caregiver)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeValidation, "caregiver is not a valid id")
		}
		filter.CaregiverID = &caregiverID
	}
	if subject = strings.TrimSpace(subject); subject != "" {
		subjectID, err := id.ParseParticipantID(subject)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeValidation, "subject is not a valid id")
		}
		filter.SubjectID = &subjectID
	}
	if date = strings.TrimSpace(date); date != "" {
		parsed, err := time.Parse(dateLayout, date)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeValidation, "date must be YYYY-MM-DD")
		}
		filter.Date = &parsed
	}
	if status = strings.TrimSpace(status); status != "" {
		parsed, err := models.ParseStatus(status)
		if err != nil {
			return filter, err
		}
		filter.Status = &parsed
	}
	return filter, nil
}
