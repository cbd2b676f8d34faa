package handler

import (
	"time"

	"amparo/internal/scheduling/models"
)

// AppointmentResponse is the HTTP representation of an appointment.
type AppointmentResponse struct {
	ID          string    `json:"id"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	CaregiverID string    `json:"caregiver_id"`
	SubjectID   string    `json:"subject_id"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListResponse wraps a collection of appointments.
type ListResponse struct {
	Appointments []*AppointmentResponse `json:"appointments"`
}

// FromAppointment converts a domain appointment to an HTTP response.
func FromAppointment(appt *models.Appointment) *AppointmentResponse {
	return &AppointmentResponse{
		ID:          appt.ID.String(),
		Date:        appt.Date.Format(dateLayout),
		Time:        appt.Time.String(),
		CaregiverID: appt.CaregiverID.String(),
		SubjectID:   appt.SubjectID.String(),
		Status:      string(appt.Status),
		CreatedAt:   appt.CreatedAt,
		UpdatedAt:   appt.UpdatedAt,
	}
}

// FromAppointments converts a collection of appointments.
func FromAppointments(appointments []*models.Appointment) *ListResponse {
	out := make([]*AppointmentResponse, 0, len(appointments))
	for _, appt := range appointments {
		out = append(out, FromAppointment(appt))
	}
	return &ListResponse{Appointments: out}
}
