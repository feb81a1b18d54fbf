package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
)

type AuditEventOutput struct {
	ID           string          `json:"id"`
	Action       string          `json:"action"`
	ActorType    string          `json:"actor_type"`
	ActorID      *string         `json:"actor_id,omitempty"`
	ClinicID     *string         `json:"clinic_id,omitempty"`
	RequestID    *string         `json:"request_id,omitempty"`
	IP           *string         `json:"ip,omitempty"`
	ResourceType *string         `json:"resource_type,omitempty"`
	ResourceID   *string         `json:"resource_id,omitempty"`
	PatientID    *string         `json:"patient_id,omitempty"`
	Severity     string          `json:"severity"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    string          `json:"created_at"`
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

type auditListQuery struct {
	ClinicID uuid.UUID `schema:"clinic_id"`
	ActorID  uuid.UUID `schema:"actor_id"`
	Action   string    `schema:"action"`
	From     time.Time `schema:"from"`
	To       time.Time `schema:"to"`
}

// ListAuditEvents (SUPER_ADMIN) com filtros clinic_id, actor_id, action, from e to.
func (h *Handler) ListAuditEvents(w http.ResponseWriter, r *http.Request) {
	var q auditListQuery
	if err := decodeQuery(r, &q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid query")
		return
	}
	page := pageFrom(r)
	list, total, err := repo.ListAuditEvents(r.Context(), h.DB, repo.AuditFilter{
		ClinicID: uuidPtr(q.ClinicID),
		ActorID:  uuidPtr(q.ActorID),
		Action:   strings.ToUpper(strings.TrimSpace(q.Action)),
		From:     timePtr(q.From),
		To:       endOfRange(r, "to", q.To),
	}, page)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	out := make([]AuditEventOutput, 0, len(list))
	for _, e := range list {
		out = append(out, AuditEventOutput{
			ID:           e.ID.String(),
			Action:       e.Action,
			ActorType:    e.ActorType,
			ActorID:      uuidString(e.ActorID),
			ClinicID:     uuidString(e.ClinicID),
			RequestID:    e.RequestID,
			IP:           e.IP,
			ResourceType: e.ResourceType,
			ResourceID:   uuidString(e.ResourceID),
			PatientID:    uuidString(e.PatientID),
			Severity:     e.Severity,
			Metadata:     json.RawMessage(e.Metadata),
			CreatedAt:    e.CreatedAt.Format(timeLayout),
		})
	}
	listResponse(w, "events", out, total, page)
}
