package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
	"github.com/mdnsystems/OmniCare-sub005/internal/tenant"
)

type AnamnesisRequest struct {
	AppointmentID  *uuid.UUID      `json:"appointment_id"`
	ChiefComplaint string          `json:"chief_complaint" validate:"required,max=2000"`
	PresentIllness string          `json:"present_illness" validate:"max=8000"`
	PastHistory    string          `json:"past_history" validate:"max=8000"`
	FamilyHistory  string          `json:"family_history" validate:"max=8000"`
	Allergies      string          `json:"allergies" validate:"max=2000"`
	Medications    string          `json:"medications" validate:"max=4000"`
	Habits         string          `json:"habits" validate:"max=4000"`
	Answers        json.RawMessage `json:"answers"`
}

type AnamnesisOutput struct {
	ID             string          `json:"id"`
	PatientID      string          `json:"patient_id"`
	AppointmentID  *string         `json:"appointment_id,omitempty"`
	ProfessionalID *string         `json:"professional_id,omitempty"`
	ChiefComplaint string          `json:"chief_complaint"`
	PresentIllness string          `json:"present_illness,omitempty"`
	PastHistory    string          `json:"past_history,omitempty"`
	FamilyHistory  string          `json:"family_history,omitempty"`
	Allergies      string          `json:"allergies,omitempty"`
	Medications    string          `json:"medications,omitempty"`
	Habits         string          `json:"habits,omitempty"`
	Answers        json.RawMessage `json:"answers"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
}

func anamnesisOutput(a *repo.Anamnesis) AnamnesisOutput {
	out := AnamnesisOutput{
		ID:             a.ID.String(),
		PatientID:      a.PatientID.String(),
		ChiefComplaint: a.ChiefComplaint,
		PresentIllness: strFromPtr(a.PresentIllness),
		PastHistory:    strFromPtr(a.PastHistory),
		FamilyHistory:  strFromPtr(a.FamilyHistory),
		Allergies:      strFromPtr(a.Allergies),
		Medications:    strFromPtr(a.Medications),
		Habits:         strFromPtr(a.Habits),
		Answers:        json.RawMessage(a.Answers),
		CreatedAt:      a.CreatedAt.Format(timeLayout),
		UpdatedAt:      a.UpdatedAt.Format(timeLayout),
	}
	if len(out.Answers) == 0 {
		out.Answers = json.RawMessage("{}")
	}
	if a.AppointmentID != nil {
		s := a.AppointmentID.String()
		out.AppointmentID = &s
	}
	if a.ProfessionalID != nil {
		s := a.ProfessionalID.String()
		out.ProfessionalID = &s
	}
	return out
}

// answersJSON aceita apenas objeto JSON (ou ausente).
func answersJSON(raw json.RawMessage) (datatypes.JSON, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return datatypes.JSON("{}"), true
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	return datatypes.JSON(raw), true
}

func (req *AnamnesisRequest) apply(a *repo.Anamnesis) bool {
	answers, ok := answersJSON(req.Answers)
	if !ok {
		return false
	}
	a.AppointmentID = req.AppointmentID
	a.ChiefComplaint = strings.TrimSpace(req.ChiefComplaint)
	a.PresentIllness = strPtr(req.PresentIllness)
	a.PastHistory = strPtr(req.PastHistory)
	a.FamilyHistory = strPtr(req.FamilyHistory)
	a.Allergies = strPtr(req.Allergies)
	a.Medications = strPtr(req.Medications)
	a.Habits = strPtr(req.Habits)
	a.Answers = answers
	return true
}

// checkAppointment garante que a consulta vinculada é do mesmo paciente e tenant.
func (h *Handler) checkAppointment(w http.ResponseWriter, r *http.Request, id *uuid.UUID, patientID uuid.UUID) bool {
	if id == nil {
		return true
	}
	a, err := repo.AppointmentByIDAndClinic(r.Context(), h.DB, *id, tenant.ID(r.Context()))
	if err != nil || a.PatientID != patientID {
		h.referenceError(w, r, ignoreNotFound(err), "appointment not found")
		return false
	}
	return true
}

func (h *Handler) ListAnamneses(w http.ResponseWriter, r *http.Request) {
	patientID, ok := h.recordPatient(w, r)
	if !ok {
		return
	}
	page := pageFrom(r)
	list, total, err := repo.AnamnesesByPatient(r.Context(), h.DB, tenant.ID(r.Context()), patientID, page)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	out := make([]AnamnesisOutput, 0, len(list))
	for i := range list {
		out = append(out, anamnesisOutput(&list[i]))
	}
	listResponse(w, "anamneses", out, total, page)
}

func (h *Handler) CreateAnamnesis(w http.ResponseWriter, r *http.Request) {
	patientID, ok := h.recordPatient(w, r)
	if !ok {
		return
	}
	var req AnamnesisRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := validateStruct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.checkAppointment(w, r, req.AppointmentID, patientID) {
		return
	}
	a := &repo.Anamnesis{ClinicID: tenant.ID(r.Context()), PatientID: patientID}
	if !req.apply(a) {
		writeError(w, http.StatusBadRequest, "answers must be a JSON object")
		return
	}
	a.ProfessionalID = currentProfessionalID(r)
	if err := repo.CreateAnamnesis(r.Context(), h.DB, a); err != nil {
		h.storeError(w, r, err)
		return
	}
	h.audit(r, auditEntry{Action: "ANAMNESIS_CREATED", ResourceType: "ANAMNESIS", ResourceID: &a.ID, PatientID: &patientID})
	writeJSON(w, http.StatusCreated, anamnesisOutput(a))
}

func (h *Handler) GetAnamnesis(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	a, err := repo.AnamnesisByIDAndClinic(r.Context(), h.DB, id, tenant.ID(r.Context()))
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, anamnesisOutput(a))
}

func (h *Handler) UpdateAnamnesis(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req AnamnesisRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := validateStruct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	clinicID := tenant.ID(r.Context())
	a, err := repo.AnamnesisByIDAndClinic(r.Context(), h.DB, id, clinicID)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	if !h.checkAppointment(w, r, req.AppointmentID, a.PatientID) {
		return
	}
	if !req.apply(a) {
		writeError(w, http.StatusBadRequest, "answers must be a JSON object")
		return
	}
	if err := repo.UpdateAnamnesis(r.Context(), h.DB, a); err != nil {
		h.storeError(w, r, err)
		return
	}
	h.audit(r, auditEntry{Action: "ANAMNESIS_UPDATED", ResourceType: "ANAMNESIS", ResourceID: &a.ID, PatientID: &a.PatientID})
	a, err = repo.AnamnesisByIDAndClinic(r.Context(), h.DB, id, clinicID)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, anamnesisOutput(a))
}

func (h *Handler) DeleteAnamnesis(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	clinicID := tenant.ID(r.Context())
	a, err := repo.AnamnesisByIDAndClinic(r.Context(), h.DB, id, clinicID)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	if err := repo.DeleteAnamnesis(r.Context(), h.DB, id, clinicID); err != nil {
		h.storeError(w, r, err)
		return
	}
	h.audit(r, auditEntry{Action: "ANAMNESIS_DELETED", ResourceType: "ANAMNESIS", ResourceID: &id, PatientID: &a.PatientID})
	w.WriteHeader(http.StatusNoContent)
}
