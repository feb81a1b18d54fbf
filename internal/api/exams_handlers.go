package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
	"github.com/mdnsystems/OmniCare-sub005/internal/tenant"
)

type ExamOutput struct {
	ID             string  `json:"id"`
	PatientID      string  `json:"patient_id"`
	ProfessionalID *string `json:"professional_id,omitempty"`
	Name           string  `json:"name"`
	Type           string  `json:"type,omitempty"`
	Status         string  `json:"status"`
	RequestedAt    string  `json:"requested_at"`
	ScheduledFor   *string `json:"scheduled_for,omitempty"`
	Result         string  `json:"result,omitempty"`
	ResultAt       *string `json:"result_at,omitempty"`
	Notes          string  `json:"notes,omitempty"`
}

func fmtTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(timeLayout)
	return &s
}

func examOutput(e *repo.Exam) ExamOutput {
	out := ExamOutput{
		ID:           e.ID.String(),
		PatientID:    e.PatientID.String(),
		Name:         e.Name,
		Type:         strFromPtr(e.Type),
		Status:       e.Status,
		RequestedAt:  e.RequestedAt.Format(timeLayout),
		ScheduledFor: fmtTimePtr(e.ScheduledFor),
		Result:       strFromPtr(e.Result),
		ResultAt:     fmtTimePtr(e.ResultAt),
		Notes:        strFromPtr(e.Notes),
	}
	if e.ProfessionalID != nil {
		s := e.ProfessionalID.String()
		out.ProfessionalID = &s
	}
	return out
}

func isExamStatus(s string) bool {
	switch s {
	case repo.ExamRequested, repo.ExamScheduled, repo.ExamCompleted, repo.ExamCancelled:
		return true
	}
	return false
}

type examListQuery struct {
	PatientID uuid.UUID `schema:"patient_id"`
	Status    string    `schema:"status"`
}

func (h *Handler) ListExams(w http.ResponseWriter, r *http.Request) {
	var q examListQuery
	if err := decodeQuery(r, &q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid query")
		return
	}
	q.Status = strings.ToUpper(strings.TrimSpace(q.Status))
	if q.Status != "" && !isExamStatus(q.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	page := pageFrom(r)
	list, total, err := repo.ListExams(r.Context(), h.DB, tenant.ID(r.Context()),
		repo.ExamFilter{PatientID: uuidPtr(q.PatientID), Status: q.Status}, page)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	out := make([]ExamOutput, 0, len(list))
	for i := range list {
		out = append(out, examOutput(&list[i]))
	}
	listResponse(w, "exams", out, total, page)
}

func (h *Handler) GetExam(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	e, err := repo.ExamByIDAndClinic(r.Context(), h.DB, id, tenant.ID(r.Context()))
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, examOutput(e))
}

type ExamRequest struct {
	PatientID      uuid.UUID  `json:"patient_id"`
	ProfessionalID *uuid.UUID `json:"professional_id"`
	Name           string     `json:"name" validate:"required,max=200"`
	Type           string     `json:"type" validate:"max=100"`
	ScheduledFor   *time.Time `json:"scheduled_for"`
	Notes          string     `json:"notes" validate:"max=2000"`
}

func (h *Handler) CreateExam(w http.ResponseWriter, r *http.Request) {
	var req ExamRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.PatientID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "patient_id required")
		return
	}
	if err := validateStruct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if ok, err := h.patientExists(r, req.PatientID); err != nil || !ok {
		h.referenceError(w, r, err, "patient not found")
		return
	}
	if req.ProfessionalID != nil {
		if ok, err := h.professionalExists(r, *req.ProfessionalID); err != nil || !ok {
			h.referenceError(w, r, err, "professional not found")
			return
		}
	}
	e := &repo.Exam{
		ClinicID:       tenant.ID(r.Context()),
		PatientID:      req.PatientID,
		ProfessionalID: req.ProfessionalID,
		Name:           strings.TrimSpace(req.Name),
		Type:           strPtr(req.Type),
		ScheduledFor:   req.ScheduledFor,
		Notes:          strPtr(req.Notes),
		RequestedAt:    h.clock(),
	}
	if err := repo.CreateExam(r.Context(), h.DB, e); err != nil {
		h.storeError(w, r, err)
		return
	}
	h.audit(r, auditEntry{Action: "EXAM_REQUESTED", ResourceType: "EXAM", ResourceID: &e.ID, PatientID: &e.PatientID})
	writeJSON(w, http.StatusCreated, examOutput(e))
}

func (h *Handler) UpdateExam(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req ExamRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := validateStruct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	clinicID := tenant.ID(r.Context())
	if err := repo.UpdateExam(r.Context(), h.DB, id, clinicID, repo.ExamUpdate{
		Name: strings.TrimSpace(req.Name), Type: strPtr(req.Type), ScheduledFor: req.ScheduledFor, Notes: strPtr(req.Notes),
	}); err != nil {
		h.storeError(w, r, err)
		return
	}
	e, err := repo.ExamByIDAndClinic(r.Context(), h.DB, id, clinicID)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, examOutput(e))
}

type ExamStatusRequest struct {
	Status       string     `json:"status" validate:"required"`
	ScheduledFor *time.Time `json:"scheduled_for"`
	Result       string     `json:"result" validate:"max=20000"`
}

// SetExamStatus: REQUESTED → SCHEDULED | COMPLETED | CANCELLED; SCHEDULED → COMPLETED | CANCELLED.
// Concluir exige result.
func (h *Handler) SetExamStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req ExamStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := validateStruct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to := strings.ToUpper(strings.TrimSpace(req.Status))
	if !isExamStatus(to) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	e, err := repo.SetExamStatus(r.Context(), h.DB, id, tenant.ID(r.Context()), to, req.ScheduledFor, strPtr(req.Result))
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	h.audit(r, auditEntry{
		Action: "EXAM_STATUS_CHANGED", ResourceType: "EXAM", ResourceID: &id, PatientID: &e.PatientID,
		Metadata: map[string]string{"status": to},
	})
	writeJSON(w, http.StatusOK, examOutput(e))
}
