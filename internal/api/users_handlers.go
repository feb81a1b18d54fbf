package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mdnsystems/OmniCare-sub005/internal/auth"
	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
	"github.com/mdnsystems/OmniCare-sub005/internal/tenant"
)

type UserOutput struct {
	UserInfo
	Active      bool    `json:"active"`
	LastLoginAt *string `json:"last_login_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

func userOutput(u *repo.User) UserOutput {
	out := UserOutput{UserInfo: userInfo(u), Active: u.Active, CreatedAt: u.CreatedAt.Format(timeLayout)}
	if u.LastLoginAt != nil {
		s := u.LastLoginAt.Format(timeLayout)
		out.LastLoginAt = &s
	}
	return out
}

type CreateUserRequest struct {
	Email          string `json:"email" validate:"required,emailrx"`
	FullName       string `json:"full_name" validate:"required,max=200"`
	Role           string `json:"role" validate:"required,oneof=ADMIN PROFESSIONAL RECEPTIONIST"`
	Password       string `json:"password" validate:"required"`
	ProfessionalID string `json:"professional_id" validate:"omitempty,uuid"`
}

type UpdateUserRequest struct {
	FullName       string `json:"full_name" validate:"required,max=200"`
	Role           string `json:"role" validate:"required,oneof=ADMIN PROFESSIONAL RECEPTIONIST"`
	ProfessionalID string `json:"professional_id" validate:"omitempty,uuid"`
	Active         *bool  `json:"active"`
}

// professionalLink confere que o profissional informado pertence à clínica.
func (h *Handler) professionalLink(w http.ResponseWriter, r *http.Request, raw string) (*uuid.UUID, bool) {
	if strings.TrimSpace(raw) == "" {
		return nil, true
	}
	pid := uuid.MustParse(strings.TrimSpace(raw))
	if _, err := repo.ProfessionalByIDAndClinic(r.Context(), h.DB, pid, tenant.ID(r.Context())); err != nil {
		if repo.IsNotFound(err) {
			writeError(w, http.StatusBadRequest, "professional not found")
			return nil, false
		}
		h.storeError(w, r, err)
		return nil, false
	}
	return &pid, true
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page := pageFrom(r)
	list, total, err := repo.UsersByClinic(r.Context(), h.DB, tenant.ID(r.Context()), page)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	out := make([]UserOutput, 0, len(list))
	for i := range list {
		out = append(out, userOutput(&list[i]))
	}
	listResponse(w, "users", out, total, page)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := validateStruct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := auth.CheckPasswordStrength(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	profID, ok := h.professionalLink(w, r, req.ProfessionalID)
	if !ok {
		return
	}
	hash, err := h.hash(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	clinicID := tenant.ID(r.Context())
	u := &repo.User{
		ClinicID:       &clinicID,
		ProfessionalID: profID,
		Email:          req.Email,
		PasswordHash:   hash,
		FullName:       strings.TrimSpace(req.FullName),
		Role:           req.Role,
	}
	if err := repo.CreateUser(r.Context(), h.DB, u); err != nil {
		if repo.IsUniqueViolation(err) {
			writeError(w, http.StatusConflict, "email already in use")
			return
		}
		h.storeError(w, r, err)
		return
	}
	h.audit(r, auditEntry{Action: "USER_CREATED", ResourceType: "USER", ResourceID: &u.ID, Metadata: map[string]string{"role": u.Role}})
	writeJSON(w, http.StatusCreated, userOutput(u))
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	u, err := repo.UserByIDAndClinic(r.Context(), h.DB, id, tenant.ID(r.Context()))
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userOutput(u))
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := validateStruct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	clinicID := tenant.ID(r.Context())
	cur, err := repo.UserByIDAndClinic(r.Context(), h.DB, id, clinicID)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	active := cur.Active
	if req.Active != nil {
		active = *req.Active
	}
	if id == currentUserID(r) && (!active || req.Role != cur.Role) {
		writeError(w, http.StatusBadRequest, "cannot change own role or deactivate yourself")
		return
	}
	profID, ok := h.professionalLink(w, r, req.ProfessionalID)
	if !ok {
		return
	}
	if err := repo.UpdateUser(r.Context(), h.DB, id, clinicID, repo.UserUpdate{
		FullName: strings.TrimSpace(req.FullName), Role: req.Role, ProfessionalID: profID, Active: active,
	}); err != nil {
		h.storeError(w, r, err)
		return
	}
	h.audit(r, auditEntry{Action: "USER_UPDATED", ResourceType: "USER", ResourceID: &id})
	u, err := repo.UserByIDAndClinic(r.Context(), h.DB, id, clinicID)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userOutput(u))
}

// DeactivateUser desativa o login; o registro é mantido para a auditoria.
func (h *Handler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if id == currentUserID(r) {
		writeError(w, http.StatusBadRequest, "cannot deactivate yourself")
		return
	}
	clinicID := tenant.ID(r.Context())
	cur, err := repo.UserByIDAndClinic(r.Context(), h.DB, id, clinicID)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	if err := repo.UpdateUser(r.Context(), h.DB, id, clinicID, repo.UserUpdate{
		FullName: cur.FullName, Role: cur.Role, ProfessionalID: cur.ProfessionalID, Active: false,
	}); err != nil {
		h.storeError(w, r, err)
		return
	}
	h.audit(r, auditEntry{Action: "USER_DEACTIVATED", ResourceType: "USER", ResourceID: &id})
	w.WriteHeader(http.StatusNoContent)
}
