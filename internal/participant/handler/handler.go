// Package handler exposes the participant directory over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"amparo/internal/participant/models"
	"amparo/internal/participant/service"
	id "amparo/pkg/domain"
	dErrors "amparo/pkg/domain-errors"
	"amparo/pkg/platform/httputil"
	"amparo/pkg/requestcontext"
)

// Service defines the participant operations the handler needs.
type Service interface {
	Register(ctx context.Context, params service.RegisterParams) (*models.Participant, error)
	Get(ctx context.Context, participantID id.ParticipantID) (*models.Participant, error)
	Update(ctx context.Context, participantID id.ParticipantID, baseChanges models.IdentityChanges, profileChanges models.ProfileChanges) (*models.Participant, error)
	Remove(ctx context.Context, participantID id.ParticipantID) (bool, error)
	List(ctx context.Context, roleFilter *models.Role) ([]models.Participant, error)
	ListCaregiversBySpecialty(ctx context.Context, specialty string) ([]models.Participant, error)
	ListCaregiversByJobTitle(ctx context.Context, jobTitle string) ([]models.Participant, error)
	UpdateCaregiverSpecialty(ctx context.Context, participantID id.ParticipantID, specialty string) (*models.Participant, error)
	UpdateCaregiverJobTitle(ctx context.Context, participantID id.ParticipantID, jobTitle string) (*models.Participant, error)
}

// Handler wires participant endpoints to the participant service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a participant handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts participant endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/participants", func(r chi.Router) {
		r.Post("/", h.HandleRegister)
		r.Get("/", h.HandleList)
		r.Get("/{participantID}", h.HandleGet)
		r.Patch("/{participantID}", h.HandleUpdate)
		r.Delete("/{participantID}", h.HandleRemove)
	})
	r.Route("/caregivers", func(r chi.Router) {
		r.Get("/", h.HandleListCaregivers)
		r.Patch("/{participantID}/specialty", h.HandleUpdateSpecialty)
		r.Patch("/{participantID}/job-title", h.HandleUpdateJobTitle)
	})
}

// HandleRegister handles POST /participants requests.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	participant, err := h.service.Register(ctx, req.ToParams())
	if err != nil {
		h.logger.ErrorContext(ctx, "participant registration failed",
			"request_id", requestID,
			"role", req.Role,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "participant registered",
		"request_id", requestID,
		"participant_id", participant.Identity.ID,
		"role", participant.Identity.Role,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromParticipant(participant))
}

// HandleGet handles GET /participants/{participantID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	participantID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	participant, err := h.service.Get(ctx, participantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromParticipant(participant))
}

// HandleUpdate handles PATCH /participants/{participantID} requests.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	participantID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	baseChanges, profileChanges := req.ToChanges()
	participant, err := h.service.Update(ctx, participantID, baseChanges, profileChanges)
	if err != nil {
		h.logger.ErrorContext(ctx, "participant update failed",
			"request_id", requestID,
			"participant_id", participantID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromParticipant(participant))
}

// HandleRemove handles DELETE /participants/{participantID} requests.
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	participantID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	existed, err := h.service.Remove(ctx, participantID)
	if err != nil {
		h.logger.ErrorContext(ctx, "participant removal failed",
			"request_id", requestID,
			"participant_id", participantID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if !existed {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "participant not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleList handles GET /participants requests with an optional role filter.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var roleFilter *models.Role
	if raw := strings.TrimSpace(r.URL.Query().Get("role")); raw != "" {
		role, err := models.ParseRole(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		roleFilter = &role
	}

	participants, err := h.service.List(ctx, roleFilter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromParticipants(participants))
}

// HandleListCaregivers handles GET /caregivers requests filtered by
// specialty or job title.
func (h *Handler) HandleListCaregivers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	specialty := strings.TrimSpace(r.URL.Query().Get("specialty"))
	jobTitle := strings.TrimSpace(r.URL.Query().Get("job_title"))

	var participants []models.Participant
	var err error
	switch {
	case specialty != "" && jobTitle != "":
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "use either specialty or job_title, not both"))
		return
	case specialty != "":
		participants, err = h.service.ListCaregiversBySpecialty(ctx, specialty)
	case jobTitle != "":
		participants, err = h.service.ListCaregiversByJobTitle(ctx, jobTitle)
	default:
		role := models.RoleCaregiver
		participants, err = h.service.List(ctx, &role)
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromParticipants(participants))
}

// HandleUpdateSpecialty handles PATCH /caregivers/{participantID}/specialty.
func (h *Handler) HandleUpdateSpecialty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	participantID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateSpecialtyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	participant, err := h.service.UpdateCaregiverSpecialty(ctx, participantID, req.Specialty)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromParticipant(participant))
}

// HandleUpdateJobTitle handles PATCH /caregivers/{participantID}/job-title.
func (h *Handler) HandleUpdateJobTitle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	participantID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateJobTitleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	participant, err := h.service.UpdateCaregiverJobTitle(ctx, participantID, req.JobTitle)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromParticipant(participant))
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (id.ParticipantID, bool) {
	participantID, err := id.ParseParticipantID(chi.URLParam(r, "participantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.ParticipantID{}, false
	}
	return participantID, true
}
