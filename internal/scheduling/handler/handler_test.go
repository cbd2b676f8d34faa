package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	participantmodels "amparo/internal/participant/models"
	participantsvc "amparo/internal/participant/service"
	identitystore "amparo/internal/participant/store/identity"
	profilestore "amparo/internal/participant/store/profile"
	"amparo/internal/scheduling/service"
	appointmentstore "amparo/internal/scheduling/store/appointment"
	id "amparo/pkg/domain"
	"amparo/pkg/testutil"
)

// bookingClock pins "now" so past-date checks behave the same on any day.
var bookingClock = time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC)

type bookingFixture struct {
	router      http.Handler
	caregiverID id.ParticipantID
	subjectID   id.ParticipantID
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	participants := participantsvc.New(identitystore.NewInMemory(), profilestore.NewInMemory())
	bookings := service.New(appointmentstore.NewInMemory(), participants, service.WithLogger(logger))

	h := New(bookings, logger)
	r := chi.NewRouter()
	h.Register(r)

	return &bookingFixture{
		router:      r,
		caregiverID: registerCaregiver(t, participants, "11122233344", "marta.lima", "CRM-12345"),
		subjectID:   registerSubject(t, participants, "55566677788", "joao.prado"),
	}
}

func registerCaregiver(t *testing.T, svc *participantsvc.Service, nationalID, login, registrationNumber string) id.ParticipantID {
	t.Helper()
	created, err := svc.Register(context.Background(), participantsvc.RegisterParams{
		Role:       participantmodels.RoleCaregiver,
		NationalID: id.NationalID(nationalID),
		Login:      login,
		Credential: "s3cret-pass",
		GivenName:  "Marta",
		Caregiver:  &participantsvc.CaregiverParams{RegistrationNumber: registrationNumber},
	})
	if err != nil {
		t.Fatalf("register caregiver fixture: %v", err)
	}
	return created.Identity.ID
}

func registerSubject(t *testing.T, svc *participantsvc.Service, nationalID, login string) id.ParticipantID {
	t.Helper()
	created, err := svc.Register(context.Background(), participantsvc.RegisterParams{
		Role:       participantmodels.RoleSubject,
		NationalID: id.NationalID(nationalID),
		Login:      login,
		Credential: "s3cret-pass",
		GivenName:  "Joao",
		Subject:    &participantsvc.SubjectParams{Age: 78},
	})
	if err != nil {
		t.Fatalf("register subject fixture: %v", err)
	}
	return created.Identity.ID
}

func (f *bookingFixture) do(t *testing.T, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if payload != nil {
		req = testutil.NewJSONRequest(t, method, path, payload)
	} else {
		req = testutil.NewRequest(t, method, path)
	}
	req = testutil.WithRequestTime(req, bookingClock)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *bookingFixture) book(t *testing.T, date, clock string, subjectID id.ParticipantID) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(t, http.MethodPost, "/appointments", map[string]string{
		"date":         date,
		"time":         clock,
		"caregiver_id": f.caregiverID.String(),
		"subject_id":   subjectID.String(),
	})
}

func TestBookAndListViaHandlers(t *testing.T) {
	f := newBookingFixture(t)

	rec := f.book(t, "2026-09-14", "09:00", f.subjectID)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 booking appointment, got %d: %s", rec.Code, rec.Body.String())
	}

	var created struct {
		ID     uuid.UUID `json:"id"`
		Status string    `json:"status"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode booking response: %v", err)
	}
	if created.ID == uuid.Nil || created.Status != "scheduled" {
		t.Fatalf("expected scheduled appointment with id, got %+v", created)
	}

	// Same caregiver, same slot: the caregiver is double-booked.
	if rec := f.book(t, "2026-09-14", "09:00", f.subjectID); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for occupied slot, got %d", rec.Code)
	}

	if rec := f.book(t, "2026-09-14", "10:00", f.subjectID); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for a free slot, got %d", rec.Code)
	}

	listRec := f.do(t, http.MethodGet, "/appointments?caregiver="+f.caregiverID.String(), nil)
	if listRec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing appointments, got %d", listRec.Code)
	}
	var listed struct {
		Appointments []struct {
			Time string `json:"time"`
		} `json:"appointments"`
	}
	if err := json.NewDecoder(listRec.Body).Decode(&listed); err != nil {
		t.Fatalf("failed to decode list response: %v", err)
	}
	if len(listed.Appointments) != 2 {
		t.Fatalf("expected 2 appointments, got %d", len(listed.Appointments))
	}
	if listed.Appointments[0].Time != "09:00" || listed.Appointments[1].Time != "10:00" {
		t.Fatalf("expected time-ordered listing, got %+v", listed.Appointments)
	}
}

func TestBookingValidation(t *testing.T) {
	f := newBookingFixture(t)

	if rec := f.book(t, "2026-08-15", "09:00", f.subjectID); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for past date, got %d", rec.Code)
	}

	if rec := f.book(t, "2026-09-14", "09:00", id.NewParticipantID()); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown subject, got %d", rec.Code)
	}

	rec := f.do(t, http.MethodPost, "/appointments", map[string]string{
		"date":         "14/09/2026",
		"time":         "09:00",
		"caregiver_id": f.caregiverID.String(),
		"subject_id":   f.subjectID.String(),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed date, got %d", rec.Code)
	}
}

func TestStatusLifecycleViaHandlers(t *testing.T) {
	f := newBookingFixture(t)

	rec := f.book(t, "2026-09-14", "09:00", f.subjectID)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 booking appointment, got %d", rec.Code)
	}
	var created struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode booking response: %v", err)
	}
	base := "/appointments/" + created.ID.String()

	if rec := f.do(t, http.MethodPatch, base+"/status", map[string]string{"status": "confirmed"}); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 confirming appointment, got %d: %s", rec.Code, rec.Body.String())
	}

	reschedRec := f.do(t, http.MethodPatch, base+"/reschedule", map[string]string{
		"date": "2026-09-21",
		"time": "11:00",
	})
	if reschedRec.Code != http.StatusOK {
		t.Fatalf("expected 200 rescheduling, got %d: %s", reschedRec.Code, reschedRec.Body.String())
	}
	var rescheduled struct {
		Date   string `json:"date"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(reschedRec.Body).Decode(&rescheduled); err != nil {
		t.Fatalf("failed to decode reschedule response: %v", err)
	}
	if rescheduled.Date != "2026-09-21" || rescheduled.Status != "rescheduled" {
		t.Fatalf("expected rescheduled appointment on 2026-09-21, got %+v", rescheduled)
	}

	if rec := f.do(t, http.MethodPatch, base+"/status", map[string]string{"status": "cancelled"}); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 cancelling appointment, got %d", rec.Code)
	}
	// Terminal states accept no further transitions.
	if rec := f.do(t, http.MethodPatch, base+"/status", map[string]string{"status": "confirmed"}); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 transitioning out of cancelled, got %d", rec.Code)
	}

	if rec := f.do(t, http.MethodDelete, base, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 deleting appointment, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, base, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after deletion, got %d", rec.Code)
	}
}
