package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
	"github.com/mdnsystems/OmniCare-sub005/internal/tenant"
)

const (
	maxAppointmentDuration = 12 * time.Hour
	maxAppointmentNotes    = 2000
)

var (
	errInvalidInterval = errors.New("ends_at must be after starts_at")
	errIntervalTooLong = errors.New("appointment longer than 12h")
)

type AppointmentOutput struct {
	ID               string `json:"id"`
	ProfessionalID   string `json:"professional_id"`
	ProfessionalName string `json:"professional_name,omitempty"`
	PatientID        string `json:"patient_id"`
	PatientName      string `json:"patient_name,omitempty"`
	StartsAt         string `json:"starts_at"`
	EndsAt           string `json:"ends_at"`
	Status           string `json:"status"`
	Notes            string `json:"notes,omitempty"`
	CancelReason     string `json:"cancel_reason,omitempty"`
	CreatedAt        string `json:"created_at"`
}

func appointmentOutput(a *repo.Appointment) AppointmentOutput {
	return AppointmentOutput{
		ID:             a.ID.String(),
		ProfessionalID: a.ProfessionalID.String(),
		PatientID:      a.PatientID.String(),
		StartsAt:       a.StartsAt.Format(timeLayout),
		EndsAt:         a.EndsAt.Format(timeLayout),
		Status:         a.Status,
		Notes:          strFromPtr(a.Notes),
		CancelReason:   strFromPtr(a.CancelReason),
		CreatedAt:      a.CreatedAt.Format(timeLayout),
	}
}

// appointmentEnd aceita ends_at ou duration_minutes; o intervalo é [starts_at, ends_at).
func appointmentEnd(start time.Time, end *time.Time, durationMin int) (time.Time, error) {
	var e time.Time
	switch {
	case end != nil:
		e = *end
	case durationMin > 0:
		e = start.Add(time.Duration(durationMin) * time.Minute)
	default:
		return time.Time{}, errors.New("ends_at or duration_minutes required")
	}
	if !e.After(start) {
		return time.Time{}, errInvalidInterval
	}
	if e.Sub(start) > maxAppointmentDuration {
		return time.Time{}, errIntervalTooLong
	}
	return e, nil
}

type appointmentListQuery struct {
	From           time.Time `schema:"from"`
	To             time.Time `schema:"to"`
	ProfessionalID uuid.UUID `schema:"professional_id"`
	PatientID      uuid.UUID `schema:"patient_id"`
	Status         string    `schema:"status"`
}

func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	var q appointmentListQuery
	if err := decodeQuery(r, &q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid query")
		return
	}
	q.Status = strings.ToUpper(strings.TrimSpace(q.Status))
	if q.Status != "" && !repo.IsAppointmentStatus(q.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	page := pageFrom(r)
	list, total, err := repo.ListAppointments(r.Context(), h.DB, tenant.ID(r.Context()), repo.AppointmentFilter{
		From:           timePtr(q.From),
		To:             endOfRange(r, "to", q.To),
		ProfessionalID: uuidPtr(q.ProfessionalID),
		PatientID:      uuidPtr(q.PatientID),
		Status:         q.Status,
	}, page)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	out := make([]AppointmentOutput, 0, len(list))
	for i := range list {
		o := appointmentOutput(&list[i].Appointment)
		o.PatientName = list[i].PatientName
		o.ProfessionalName = list[i].ProfessionalName
		out = append(out, o)
	}
	listResponse(w, "appointments", out, total, page)
}

func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	a, err := repo.AppointmentByIDAndClinic(r.Context(), h.DB, id, tenant.ID(r.Context()))
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentOutput(a))
}

type CreateAppointmentRequest struct {
	ProfessionalID  uuid.UUID  `json:"professional_id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	StartsAt        time.Time  `json:"starts_at"`
	EndsAt          *time.Time `json:"ends_at"`
	DurationMinutes int        `json:"duration_minutes" validate:"min=0"`
	Notes           string     `json:"notes" validate:"max=2000"`
}

func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.ProfessionalID == uuid.Nil || req.PatientID == uuid.Nil || req.StartsAt.IsZero() {
		writeError(w, http.StatusBadRequest, "professional_id, patient_id and starts_at required")
		return
	}
	if err := validateStruct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := appointmentEnd(req.StartsAt, req.EndsAt, req.DurationMinutes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if ok, err := h.professionalExists(r, req.ProfessionalID); err != nil || !ok {
		h.referenceError(w, r, err, "professional not found")
		return
	}
	if ok, err := h.patientExists(r, req.PatientID); err != nil || !ok {
		h.referenceError(w, r, err, "patient not found")
		return
	}
	a := &repo.Appointment{
		ClinicID:       tenant.ID(r.Context()),
		ProfessionalID: req.ProfessionalID,
		PatientID:      req.PatientID,
		StartsAt:       req.StartsAt.UTC(),
		EndsAt:         end.UTC(),
		Notes:          strPtr(req.Notes),
	}
	if err := repo.CreateAppointment(r.Context(), h.DB, a); err != nil {
		h.storeError(w, r, err)
		return
	}
	h.audit(r, auditEntry{Action: "APPOINTMENT_CREATED", ResourceType: "APPOINTMENT", ResourceID: &a.ID, PatientID: &a.PatientID})
	writeJSON(w, http.StatusCreated, appointmentOutput(a))
}

// referenceError responde 400 para referências de outro tenant ou inexistentes.
func (h *Handler) referenceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeError(w, http.StatusBadRequest, msg)
}

type PatchAppointmentRequest struct {
	StartsAt        *time.Time `json:"starts_at"`
	EndsAt          *time.Time `json:"ends_at"`
	DurationMinutes int        `json:"duration_minutes"`
	Notes           *string    `json:"notes"`
}

// PatchAppointment remarca (starts_at + ends_at/duration) e/ou altera as observações.
func (h *Handler) PatchAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req PatchAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.StartsAt == nil && req.Notes == nil {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}
	if req.Notes != nil && len(*req.Notes) > maxAppointmentNotes {
		writeError(w, http.StatusBadRequest, "invalid notes")
		return
	}
	clinicID := tenant.ID(r.Context())
	var cur, moved *repo.Appointment
	var end time.Time
	if req.StartsAt != nil {
		var err error
		cur, err = repo.AppointmentByIDAndClinic(r.Context(), h.DB, id, clinicID)
		if err != nil {
			h.storeError(w, r, err)
			return
		}
		dur := req.DurationMinutes
		if req.EndsAt == nil && dur == 0 {
			dur = int(cur.EndsAt.Sub(cur.StartsAt) / time.Minute)
		}
		end, err = appointmentEnd(*req.StartsAt, req.EndsAt, dur)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	// remarcação e observações entram juntas ou nenhuma entra
	err := h.DB.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if req.StartsAt != nil {
			a, err := repo.RescheduleAppointment(r.Context(), tx, id, clinicID, req.StartsAt.UTC(), end.UTC())
			if err != nil {
				return err
			}
			moved = a
		}
		if req.Notes != nil {
			return repo.UpdateAppointmentNotes(r.Context(), tx, id, clinicID, strPtr(*req.Notes))
		}
		return nil
	})
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	if moved != nil {
		h.audit(r, auditEntry{
			Action: "APPOINTMENT_RESCHEDULED", ResourceType: "APPOINTMENT", ResourceID: &id, PatientID: &moved.PatientID,
			Metadata: map[string]string{"from": cur.StartsAt.Format(timeLayout), "to": moved.StartsAt.Format(timeLayout)},
		})
	}
	a, err := repo.AppointmentByIDAndClinic(r.Context(), h.DB, id, clinicID)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentOutput(a))
}

type AppointmentStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason" validate:"max=500"`
}

func (h *Handler) SetAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req AppointmentStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := validateStruct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to := strings.ToUpper(strings.TrimSpace(req.Status))
	if !repo.IsAppointmentStatus(to) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	a, err := repo.SetAppointmentStatus(r.Context(), h.DB, id, tenant.ID(r.Context()), to, strPtr(req.Reason))
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	h.audit(r, auditEntry{
		Action: "APPOINTMENT_STATUS_CHANGED", ResourceType: "APPOINTMENT", ResourceID: &id, PatientID: &a.PatientID,
		Metadata: map[string]string{"status": to},
	})
	writeJSON(w, http.StatusOK, appointmentOutput(a))
}
