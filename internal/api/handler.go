package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/mdnsystems/OmniCare-sub005/internal/auth"
	"github.com/mdnsystems/OmniCare-sub005/internal/billing"
	"github.com/mdnsystems/OmniCare-sub005/internal/chat"
	"github.com/mdnsystems/OmniCare-sub005/internal/config"
	"github.com/mdnsystems/OmniCare-sub005/internal/crypto"
	"github.com/mdnsystems/OmniCare-sub005/internal/middleware"
	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
	"github.com/mdnsystems/OmniCare-sub005/internal/tenant"
)

// Mailer é o subconjunto de email.Sender usado pelos handlers.
type Mailer interface {
	SendPasswordReset(to, resetURL string) error
}

type Handler struct {
	DB      *gorm.DB
	Cfg     *config.Config
	Keys    *crypto.Keyring
	Tenants *tenant.Resolver
	Billing *billing.Sweeper
	Chat    *chat.Service
	Mail    Mailer // nil desliga o reset de senha por e-mail
	Log     zerolog.Logger

	hashPassword func(string) (string, error)
	now          func() time.Time
}

func (h *Handler) SetHashPassword(fn func(string) (string, error)) { h.hashPassword = fn }
func (h *Handler) SetNow(fn func() time.Time)                      { h.now = fn }

func (h *Handler) hash(plain string) (string, error) {
	if h.hashPassword != nil {
		return h.hashPassword(plain)
	}
	return auth.HashPassword(plain)
}

func (h *Handler) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// pathID lê um UUID de mux.Vars; responde 400 quando inválido.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func currentUserID(r *http.Request) uuid.UUID {
	id, _ := uuid.Parse(auth.UserIDFrom(r.Context()))
	return id
}

func currentProfessionalID(r *http.Request) *uuid.UUID {
	id, err := uuid.Parse(auth.ProfessionalIDFrom(r.Context()))
	if err != nil {
		return nil
	}
	return &id
}

// listResponse segue o formato {"<key>": [...], "limit", "offset", "total"} e expõe X-Total-Count.
func listResponse(w http.ResponseWriter, key string, items interface{}, total int64, page repo.Page) {
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		key:      items,
		"limit":  page.Limit,
		"offset": page.Offset,
		"total":  total,
	})
}

// storeError traduz erros do repositório para o status HTTP.
func (h *Handler) storeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case repo.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not found")
	case repo.IsUniqueViolation(err):
		writeError(w, http.StatusConflict, "already exists")
	case repo.IsForeignKeyViolation(err):
		writeError(w, http.StatusBadRequest, "invalid reference")
	case errors.Is(err, repo.ErrAppointmentConflict):
		writeError(w, http.StatusConflict, "appointment conflict")
	case errors.Is(err, repo.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid status transition")
	case errors.Is(err, repo.ErrExamResultRequired):
		writeError(w, http.StatusBadRequest, "result required")
	default:
		h.Log.Error().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg("store error")
		writeError(w, http.StatusInternalServerError, "internal")
	}
}

// auditEntry descreve um evento de auditoria disparado por um request.
type auditEntry struct {
	Action       string
	ResourceType string
	ResourceID   *uuid.UUID
	PatientID    *uuid.UUID
	ClinicID     *uuid.UUID // padrão: tenant do request
	Severity     string
	Metadata     interface{}
}

func (h *Handler) audit(r *http.Request, e auditEntry) {
	ev := &repo.AuditEvent{
		Action:     e.Action,
		ActorType:  repo.ActorUser,
		ResourceID: e.ResourceID,
		PatientID:  e.PatientID,
		ClinicID:   e.ClinicID,
		Severity:   e.Severity,
	}
	if role := auth.RoleFrom(r.Context()); role != "" {
		ev.ActorType = role
	}
	if uid := currentUserID(r); uid != uuid.Nil {
		ev.ActorID = &uid
	}
	if ev.ClinicID == nil {
		if info, ok := tenant.FromContext(r.Context()); ok {
			id := info.ID
			ev.ClinicID = &id
		}
	}
	if e.ResourceType != "" {
		ev.ResourceType = &e.ResourceType
	}
	if rid := middleware.RequestIDFromContext(r.Context()); rid != "" {
		ev.RequestID = &rid
	}
	if ip := middleware.ClientIP(r); ip != "" {
		ev.IP = &ip
	}
	if ua := strings.TrimSpace(r.UserAgent()); ua != "" {
		ev.UserAgent = &ua
	}
	if e.Metadata != nil {
		ev.Metadata = repo.JSONMetadata(e.Metadata)
	}
	if err := repo.CreateAuditEvent(r.Context(), h.DB, ev); err != nil {
		h.Log.Warn().Err(err).Str("action", e.Action).Msg("audit event not recorded")
	}
}

func strPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func strFromPtr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
