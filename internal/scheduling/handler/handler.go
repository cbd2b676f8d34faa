// Package handler exposes appointment booking over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"amparo/internal/scheduling/models"
	"amparo/internal/scheduling/service"
	id "amparo/pkg/domain"
	dErrors "amparo/pkg/domain-errors"
	"amparo/pkg/platform/httputil"
	"amparo/pkg/requestcontext"
)

// Service defines the booking operations the handler needs.
type Service interface {
	Create(ctx context.Context, params service.CreateParams) (*models.Appointment, error)
	Get(ctx context.Context, appointmentID id.AppointmentID) (*models.Appointment, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Appointment, error)
	Update(ctx context.Context, appointmentID id.AppointmentID, changes models.Changes) (*models.Appointment, error)
	UpdateStatus(ctx context.Context, appointmentID id.AppointmentID, status models.Status) (*models.Appointment, error)
	Reschedule(ctx context.Context, appointmentID id.AppointmentID, date time.Time, clock id.ClockTime) (*models.Appointment, error)
	Delete(ctx context.Context, appointmentID id.AppointmentID) (bool, error)
}

// Handler wires appointment endpoints to the booking service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an appointment handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts appointment endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/{appointmentID}", h.HandleGet)
		r.Patch("/{appointmentID}", h.HandleUpdate)
		r.Patch("/{appointmentID}/status", h.HandleUpdateStatus)
		r.Patch("/{appointmentID}/reschedule", h.HandleReschedule)
		r.Delete("/{appointmentID}", h.HandleDelete)
	})
}

// HandleCreate handles POST /appointments requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	appt, err := h.service.Create(ctx, req.ToParams())
	if err != nil {
		h.logger.ErrorContext(ctx, "appointment booking failed",
			"request_id", requestID,
			"caregiver_id", req.CaregiverID,
			"subject_id", req.SubjectID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "appointment booked",
		"request_id", requestID,
		"appointment_id", appt.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromAppointment(appt))
}

// HandleGet handles GET /appointments/{appointmentID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	appointmentID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	appt, err := h.service.Get(ctx, appointmentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromAppointment(appt))
}

// HandleList handles GET /appointments requests with optional filters.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter, err := ParseListFilter(q.Get("caregiver"), q.Get("subject"), q.Get("date"), q.Get("status"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	appointments, err := h.service.List(ctx, filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromAppointments(appointments))
}

// HandleUpdate handles PATCH /appointments/{appointmentID} requests.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	appointmentID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	appt, err := h.service.Update(ctx, appointmentID, req.ToChanges())
	if err != nil {
		h.logger.ErrorContext(ctx, "appointment update failed",
			"request_id", requestID,
			"appointment_id", appointmentID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromAppointment(appt))
}

// HandleUpdateStatus handles PATCH /appointments/{appointmentID}/status.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	appointmentID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateStatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	appt, err := h.service.UpdateStatus(ctx, appointmentID, req.ParsedStatus())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromAppointment(appt))
}

// HandleReschedule handles PATCH /appointments/{appointmentID}/reschedule.
func (h *Handler) HandleReschedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	appointmentID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RescheduleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	appt, err := h.service.Reschedule(ctx, appointmentID, req.ParsedDate(), req.ParsedTime())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromAppointment(appt))
}

// HandleDelete handles DELETE /appointments/{appointmentID} requests.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	appointmentID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	existed, err := h.service.Delete(ctx, appointmentID)
	if err != nil {
		h.logger.ErrorContext(ctx, "appointment delete failed",
			"request_id", requestID,
			"appointment_id", appointmentID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if !existed {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "appointment not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (id.AppointmentID, bool) {
	appointmentID, err := id.ParseAppointmentID(chi.URLParam(r, "appointmentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.AppointmentID{}, false
	}
	return appointmentID, true
}
