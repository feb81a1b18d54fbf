package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mdnsystems/OmniCare-sub005/internal/auth"
	"github.com/mdnsystems/OmniCare-sub005/internal/crypto"
	"github.com/mdnsystems/OmniCare-sub005/internal/middleware"
	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
	"github.com/mdnsystems/OmniCare-sub005/internal/tenant"
)

const maxRecordContent = 20000

// logAccess grava o acesso ao prontuário. Falha aqui não derruba a resposta, mas é logada.
func (h *Handler) logAccess(r *http.Request, action string, resourceID, patientID *uuid.UUID) {
	l := &repo.AccessLog{
		ClinicID:     tenant.ID(r.Context()),
		ActorType:    auth.RoleFrom(r.Context()),
		ActorID:      currentUserID(r),
		Action:       action,
		ResourceType: "MEDICAL_RECORD",
		ResourceID:   resourceID,
		PatientID:    patientID,
		IP:           strPtr(middleware.ClientIP(r)),
		UserAgent:    strPtr(r.UserAgent()),
		RequestID:    strPtr(middleware.RequestIDFromContext(r.Context())),
	}
	if err := repo.CreateAccessLog(r.Context(), h.DB, l); err != nil {
		h.Log.Error().Err(err).Str("action", action).Msg("access log not recorded")
	}
}

type RecordEntryOutput struct {
	ID            string  `json:"id"`
	PatientID     string  `json:"patient_id"`
	Kind          string  `json:"kind"`
	Content       string  `json:"content"`
	EntryDate     string  `json:"entry_date"`
	AppointmentID *string `json:"appointment_id,omitempty"`
	AmendsID      *string `json:"amends_id,omitempty"`
	AuthorID      string  `json:"author_id"`
	AuthorName    string  `json:"author_name,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

func (h *Handler) recordEntryOutput(e *repo.RecordEntry, authorName string) RecordEntryOutput {
	content := ""
	if plain, err := h.Keys.Open(crypto.Sealed{Ciphertext: e.ContentEncrypted, Nonce: e.ContentNonce, KeyVersion: e.ContentKeyVersion}); err == nil {
		content = string(plain)
	} else {
		h.Log.Error().Err(err).Str("entry_id", e.ID.String()).Msg("record entry decrypt")
	}
	out := RecordEntryOutput{
		ID:         e.ID.String(),
		PatientID:  e.PatientID.String(),
		Kind:       e.Kind,
		Content:    content,
		EntryDate:  e.EntryDate.Format(dateLayout),
		AuthorID:   e.AuthorID.String(),
		AuthorName: authorName,
		CreatedAt:  e.CreatedAt.Format(timeLayout),
	}
	if e.AppointmentID != nil {
		s := e.AppointmentID.String()
		out.AppointmentID = &s
	}
	if e.AmendsID != nil {
		s := e.AmendsID.String()
		out.AmendsID = &s
	}
	return out
}

// recordPatient valida o paciente do path dentro do tenant.
func (h *Handler) recordPatient(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	patientID, ok := pathID(w, r, "patientId")
	if !ok {
		return uuid.Nil, false
	}
	exists, err := h.patientExists(r, patientID)
	if err != nil {
		h.storeError(w, r, err)
		return uuid.Nil, false
	}
	if !exists {
		writeError(w, http.StatusNotFound, "patient not found")
		return uuid.Nil, false
	}
	return patientID, true
}

func (h *Handler) ListRecordEntries(w http.ResponseWriter, r *http.Request) {
	patientID, ok := h.recordPatient(w, r)
	if !ok {
		return
	}
	page := pageFrom(r)
	list, total, err := repo.RecordEntriesByPatient(r.Context(), h.DB, tenant.ID(r.Context()), patientID, page)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	out := make([]RecordEntryOutput, 0, len(list))
	for i := range list {
		out = append(out, h.recordEntryOutput(&list[i].RecordEntry, list[i].AuthorName))
	}
	h.logAccess(r, "READ", nil, &patientID)
	listResponse(w, "entries", out, total, page)
}

func (h *Handler) GetRecordEntry(w http.ResponseWriter, r *http.Request) {
	patientID, ok := h.recordPatient(w, r)
	if !ok {
		return
	}
	entryID, ok := pathID(w, r, "entryId")
	if !ok {
		return
	}
	e, err := repo.RecordEntryByID(r.Context(), h.DB, entryID, tenant.ID(r.Context()))
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	if e.PatientID != patientID {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	h.logAccess(r, "READ", &e.ID, &patientID)
	writeJSON(w, http.StatusOK, h.recordEntryOutput(e, ""))
}

type RecordEntryRequest struct {
	Kind          string     `json:"kind" validate:"required,oneof=EVOLUTION PRESCRIPTION CERTIFICATE NOTE"`
	Content       string     `json:"content" validate:"required"`
	EntryDate     string     `json:"entry_date" validate:"date"`
	AppointmentID *uuid.UUID `json:"appointment_id"`
}

func (h *Handler) CreateRecordEntry(w http.ResponseWriter, r *http.Request) {
	patientID, ok := h.recordPatient(w, r)
	if !ok {
		return
	}
	var req RecordEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.Kind = strings.ToUpper(strings.TrimSpace(req.Kind))
	h.writeRecordEntry(w, r, patientID, req, nil)
}

type AmendRecordEntryRequest struct {
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

// AmendRecordEntry cria uma nova entrada que corrige a original; a original permanece intacta.
func (h *Handler) AmendRecordEntry(w http.ResponseWriter, r *http.Request) {
	patientID, ok := h.recordPatient(w, r)
	if !ok {
		return
	}
	entryID, ok := pathID(w, r, "entryId")
	if !ok {
		return
	}
	orig, err := repo.RecordEntryByID(r.Context(), h.DB, entryID, tenant.ID(r.Context()))
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	if orig.PatientID != patientID {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	var req AmendRecordEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	kind := strings.ToUpper(strings.TrimSpace(req.Kind))
	if kind == "" {
		kind = orig.Kind
	}
	h.writeRecordEntry(w, r, patientID, RecordEntryRequest{
		Kind: kind, Content: req.Content, AppointmentID: orig.AppointmentID,
	}, &orig.ID)
}

func (h *Handler) writeRecordEntry(w http.ResponseWriter, r *http.Request, patientID uuid.UUID, req RecordEntryRequest, amends *uuid.UUID) {
	if err := validateStruct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" || len(content) > maxRecordContent {
		writeError(w, http.StatusBadRequest, "invalid content")
		return
	}
	clinicID := tenant.ID(r.Context())
	if req.AppointmentID != nil {
		a, err := repo.AppointmentByIDAndClinic(r.Context(), h.DB, *req.AppointmentID, clinicID)
		if err != nil || a.PatientID != patientID {
			h.referenceError(w, r, ignoreNotFound(err), "appointment not found")
			return
		}
	}
	sealed, err := h.Keys.Seal([]byte(content))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	e := &repo.RecordEntry{
		ClinicID:          clinicID,
		PatientID:         patientID,
		AppointmentID:     req.AppointmentID,
		AmendsID:          amends,
		AuthorID:          currentUserID(r),
		Kind:              req.Kind,
		ContentEncrypted:  sealed.Ciphertext,
		ContentNonce:      sealed.Nonce,
		ContentKeyVersion: sealed.KeyVersion,
	}
	if d, _ := ParseDate(req.EntryDate); d != nil {
		e.EntryDate = *d
	}
	if err := repo.CreateRecordEntry(r.Context(), h.DB, e); err != nil {
		h.storeError(w, r, err)
		return
	}
	h.logAccess(r, "WRITE", &e.ID, &patientID)
	writeJSON(w, http.StatusCreated, h.recordEntryOutput(e, ""))
}

func ignoreNotFound(err error) error {
	if repo.IsNotFound(err) {
		return nil
	}
	return err
}

type AccessLogOutput struct {
	ID         string  `json:"id"`
	ActorType  string  `json:"actor_type"`
	ActorID    string  `json:"actor_id"`
	Action     string  `json:"action"`
	ResourceID *string `json:"resource_id,omitempty"`
	IP         string  `json:"ip,omitempty"`
	RequestID  string  `json:"request_id,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// ListAccessLogs mostra ao ADMIN quem leu ou escreveu o prontuário do paciente.
func (h *Handler) ListAccessLogs(w http.ResponseWriter, r *http.Request) {
	patientID, ok := h.recordPatient(w, r)
	if !ok {
		return
	}
	page := pageFrom(r)
	list, total, err := repo.AccessLogsByPatient(r.Context(), h.DB, tenant.ID(r.Context()), patientID, page)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	out := make([]AccessLogOutput, 0, len(list))
	for _, l := range list {
		o := AccessLogOutput{
			ID: l.ID.String(), ActorType: l.ActorType, ActorID: l.ActorID.String(), Action: l.Action,
			IP: strFromPtr(l.IP), RequestID: strFromPtr(l.RequestID), CreatedAt: l.CreatedAt.Format(timeLayout),
		}
		if l.ResourceID != nil {
			s := l.ResourceID.String()
			o.ResourceID = &s
		}
		out = append(out, o)
	}
	listResponse(w, "access_logs", out, total, page)
}
