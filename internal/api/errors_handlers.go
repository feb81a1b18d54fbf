package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mdnsystems/OmniCare-sub005/internal/auth"
	"github.com/mdnsystems/OmniCare-sub005/internal/middleware"
	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
)

const (
	maxErrorMessage = 2000
	maxErrorStack   = 16000
)

type FrontendErrorIngestRequest struct {
	RequestID  *string                `json:"request_id"`
	Severity   string                 `json:"severity"` // WARN|ERROR
	Kind       string                 `json:"kind"`
	Message    string                 `json:"message"`
	Stack      *string                `json:"stack,omitempty"`
	HTTPMethod *string                `json:"http_method,omitempty"`
	Path       *string                `json:"path,omitempty"`
	Status     *int                   `json:"status,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// IngestFrontendError é público; se vier um JWT válido, o evento fica ligado ao usuário e à clínica.
func (h *Handler) IngestFrontendError(w http.ResponseWriter, r *http.Request) {
	var req FrontendErrorIngestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	sev := strings.ToUpper(strings.TrimSpace(req.Severity))
	if sev != "WARN" && sev != "ERROR" {
		writeError(w, http.StatusBadRequest, "invalid severity")
		return
	}
	kind := strings.TrimSpace(req.Kind)
	if kind == "" {
		kind = "FRONTEND_ERROR"
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		msg = "frontend error"
	}

	ev := &repo.ErrorEvent{
		Source:   "FRONTEND",
		Severity: sev,
		Kind:     truncate(kind, 100),
		Message:  truncate(msg, maxErrorMessage),
		Status:   req.Status,
		Metadata: repo.JSONMetadata(req.Metadata),
	}
	if c := auth.ClaimsFrom(r.Context()); c != nil {
		role := c.Role
		ev.ActorType = &role
		if uid, err := uuid.Parse(c.UserID); err == nil {
			ev.ActorID = &uid
		}
		if c.TenantID != nil {
			if cid, err := uuid.Parse(*c.TenantID); err == nil {
				ev.ClinicID = &cid
			}
		}
	}
	rid := middleware.RequestIDFromContext(r.Context())
	if req.RequestID != nil && strings.TrimSpace(*req.RequestID) != "" {
		rid = strings.TrimSpace(*req.RequestID)
	}
	ev.RequestID = strPtr(rid)
	if req.Path != nil {
		ev.Path = strPtr(*req.Path)
	}
	if req.HTTPMethod != nil {
		ev.HTTPMethod = strPtr(strings.ToUpper(*req.HTTPMethod))
	}
	if req.Stack != nil {
		ev.Stack = strPtr(truncate(*req.Stack, maxErrorStack))
	}
	if err := repo.CreateErrorEvent(r.Context(), h.DB, ev); err != nil {
		h.Log.Error().Err(err).Msg("frontend error not recorded")
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}

type ErrorEventOutput struct {
	ID        string  `json:"id"`
	RequestID *string `json:"request_id,omitempty"`
	Source    string  `json:"source"`
	Severity  string  `json:"severity"`
	ClinicID  *string `json:"clinic_id,omitempty"`
	ActorType *string `json:"actor_type,omitempty"`
	Method    *string `json:"http_method,omitempty"`
	Path      *string `json:"path,omitempty"`
	Status    *int    `json:"status,omitempty"`
	Kind      string  `json:"kind"`
	Message   string  `json:"message"`
	CreatedAt string  `json:"created_at"`
}

// ListErrorEvents (SUPER_ADMIN) ?source=FRONTEND|BACKEND.
func (h *Handler) ListErrorEvents(w http.ResponseWriter, r *http.Request) {
	source := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("source")))
	page := pageFrom(r)
	list, total, err := repo.ListErrorEvents(r.Context(), h.DB, source, page)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	out := make([]ErrorEventOutput, 0, len(list))
	for _, e := range list {
		o := ErrorEventOutput{
			ID: e.ID.String(), RequestID: e.RequestID, Source: e.Source, Severity: e.Severity,
			ActorType: e.ActorType, Method: e.HTTPMethod, Path: e.Path, Status: e.Status,
			Kind: e.Kind, Message: e.Message, CreatedAt: e.CreatedAt.Format(timeLayout),
		}
		if e.ClinicID != nil {
			s := e.ClinicID.String()
			o.ClinicID = &s
		}
		out = append(out, o)
	}
	listResponse(w, "errors", out, total, page)
}
