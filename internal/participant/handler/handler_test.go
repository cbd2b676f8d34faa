package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"amparo/internal/participant/service"
	identitystore "amparo/internal/participant/store/identity"
	profilestore "amparo/internal/participant/store/profile"
)

func newParticipantRouter(t *testing.T) http.Handler {
	t.Helper()
	svc := service.New(identitystore.NewInMemory(), profilestore.NewInMemory())
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	h := New(svc, logger)
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func caregiverPayload(nationalID, login, registrationNumber string) map[string]any {
	return map[string]any{
		"role":        "caregiver",
		"national_id": nationalID,
		"login":       login,
		"credential":  "s3cret-pass",
		"given_name":  "Marta",
		"family_name": "Lima",
		"caregiver": map[string]any{
			"registration_number": registrationNumber,
			"job_title":           "physician",
			"specialty":           "geriatrics",
		},
	}
}

func postJSON(t *testing.T, router http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRegisterAndFetchViaHandlers(t *testing.T) {
	router := newParticipantRouter(t)

	rec := postJSON(t, router, "/participants", caregiverPayload("11122233344", "marta.lima", "CRM-12345"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 registering caregiver, got %d: %s", rec.Code, rec.Body.String())
	}

	var created struct {
		ID    uuid.UUID `json:"id"`
		Login string    `json:"login"`
		Role  string    `json:"role"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode register response: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Fatalf("expected participant id in response")
	}
	if created.Role != "caregiver" {
		t.Fatalf("expected role caregiver, got %q", created.Role)
	}

	getReq := httptest.NewRequest(http.MethodGet, "/participants/"+created.ID.String(), nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching participant, got %d", getRec.Code)
	}

	var fetched struct {
		Login     string `json:"login"`
		Caregiver *struct {
			RegistrationNumber string `json:"registration_number"`
		} `json:"caregiver"`
	}
	if err := json.NewDecoder(getRec.Body).Decode(&fetched); err != nil {
		t.Fatalf("failed to decode participant response: %v", err)
	}
	if fetched.Login != "marta.lima" {
		t.Fatalf("expected login marta.lima, got %q", fetched.Login)
	}
	if fetched.Caregiver == nil || fetched.Caregiver.RegistrationNumber != "CRM-12345" {
		t.Fatalf("expected caregiver payload with registration number")
	}

	listReq := httptest.NewRequest(http.MethodGet, "/caregivers?specialty=geriatrics", nil)
	listRec := httptest.NewRecorder()
	router.ServeHTTP(listRec, listReq)
	if listRec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing caregivers, got %d", listRec.Code)
	}

	var listed struct {
		Participants []json.RawMessage `json:"participants"`
	}
	if err := json.NewDecoder(listRec.Body).Decode(&listed); err != nil {
		t.Fatalf("failed to decode list response: %v", err)
	}
	if len(listed.Participants) != 1 {
		t.Fatalf("expected 1 caregiver by specialty, got %d", len(listed.Participants))
	}
}

func TestRegisterValidationAndConflict(t *testing.T) {
	router := newParticipantRouter(t)

	payload := caregiverPayload("11122233344", "marta.lima", "CRM-12345")
	payload["role"] = "doctor"
	if rec := postJSON(t, router, "/participants", payload); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown role, got %d", rec.Code)
	}

	if rec := postJSON(t, router, "/participants", caregiverPayload("11122233344", "marta.lima", "CRM-12345")); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 on first registration, got %d", rec.Code)
	}
	rec := postJSON(t, router, "/participants", caregiverPayload("11122233344", "other.login", "CRM-99999"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate national id, got %d", rec.Code)
	}

	var errBody struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&errBody); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if errBody.Error != "conflict" {
		t.Fatalf("expected error code conflict, got %q", errBody.Error)
	}
}

func TestUpdateAndRemoveViaHandlers(t *testing.T) {
	router := newParticipantRouter(t)

	rec := postJSON(t, router, "/participants", caregiverPayload("11122233344", "marta.lima", "CRM-12345"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 registering caregiver, got %d", rec.Code)
	}
	var created struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode register response: %v", err)
	}

	patchBody := []byte(`{"phone": "+5511987654321", "caregiver": {"specialty": "psychiatry"}}`)
	patchReq := httptest.NewRequest(http.MethodPatch, "/participants/"+created.ID.String(), bytes.NewReader(patchBody))
	patchReq.Header.Set("Content-Type", "application/json")
	patchRec := httptest.NewRecorder()
	router.ServeHTTP(patchRec, patchReq)
	if patchRec.Code != http.StatusOK {
		t.Fatalf("expected 200 updating participant, got %d: %s", patchRec.Code, patchRec.Body.String())
	}

	emptyPatch := httptest.NewRequest(http.MethodPatch, "/participants/"+created.ID.String(), bytes.NewReader([]byte(`{}`)))
	emptyPatch.Header.Set("Content-Type", "application/json")
	emptyRec := httptest.NewRecorder()
	router.ServeHTTP(emptyRec, emptyPatch)
	if emptyRec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty change set, got %d", emptyRec.Code)
	}

	delReq := httptest.NewRequest(http.MethodDelete, "/participants/"+created.ID.String(), nil)
	delRec := httptest.NewRecorder()
	router.ServeHTTP(delRec, delReq)
	if delRec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 removing participant, got %d", delRec.Code)
	}

	getReq := httptest.NewRequest(http.MethodGet, "/participants/"+created.ID.String(), nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after removal, got %d", getRec.Code)
	}
}
