package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mdnsystems/OmniCare-sub005/internal/auth"
	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
)

const resetTokenTTL = time.Hour

const timeLayout = time.RFC3339

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserInfo  `json:"user"`
}

type UserInfo struct {
	ID             string  `json:"id"`
	Email          string  `json:"email"`
	FullName       string  `json:"full_name"`
	Role           string  `json:"role"`
	TenantID       *string `json:"tenant_id,omitempty"`
	ProfessionalID *string `json:"professional_id,omitempty"`
}

func userInfo(u *repo.User) UserInfo {
	info := UserInfo{ID: u.ID.String(), Email: u.Email, FullName: u.FullName, Role: u.Role}
	if u.ClinicID != nil {
		s := u.ClinicID.String()
		info.TenantID = &s
	}
	if u.ProfessionalID != nil {
		s := u.ProfessionalID.String()
		info.ProfessionalID = &s
	}
	return info
}

func genericLoginError(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "invalid credentials")
}

// Login autentica qualquer usuário (SUPER_ADMIN ou usuário de clínica) por e-mail e senha.
// O token de usuários de clínica carrega o tenant_id, que passa a valer em todas as rotas da clínica.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}
	u, err := repo.UserByEmail(r.Context(), h.DB, req.Email)
	if err != nil {
		if !repo.IsNotFound(err) {
			h.Log.Error().Err(err).Msg("login lookup")
		}
		genericLoginError(w)
		return
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		genericLoginError(w)
		return
	}
	if u.ClinicID != nil {
		c, err := repo.ClinicByID(r.Context(), h.DB, *u.ClinicID)
		if err != nil {
			h.storeError(w, r, err)
			return
		}
		if !c.Active {
			writeError(w, http.StatusForbidden, "clinic inactive")
			return
		}
	}
	info := userInfo(u)
	ttl := h.Cfg.JWTTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	tok, err := auth.BuildJWT(h.Cfg.JWTSecret, auth.TokenSubject{
		UserID:         info.ID,
		Role:           u.Role,
		TenantID:       info.TenantID,
		ProfessionalID: info.ProfessionalID,
	}, ttl)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	if err := repo.TouchLastLogin(r.Context(), h.DB, u.ID); err != nil {
		h.Log.Warn().Err(err).Msg("touch last login")
	}
	h.audit(r.WithContext(auth.WithClaims(r.Context(), &auth.Claims{UserID: info.ID, Role: u.Role})), auditEntry{
		Action: "LOGIN", ResourceType: "USER", ResourceID: &u.ID, ClinicID: u.ClinicID,
	})
	writeJSON(w, http.StatusOK, LoginResponse{Token: tok, ExpiresAt: h.clock().Add(ttl), User: info})
}

type MeResponse struct {
	UserInfo
	Clinic *MeClinic `json:"clinic,omitempty"`
}

type MeClinic struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	BlockLevel string `json:"block_level"`
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	uid := currentUserID(r)
	if uid == uuid.Nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	u, err := repo.UserByID(r.Context(), h.DB, uid)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	out := MeResponse{UserInfo: userInfo(u)}
	if u.ClinicID != nil {
		c, err := repo.ClinicByID(r.Context(), h.DB, *u.ClinicID)
		if err != nil {
			h.storeError(w, r, err)
			return
		}
		out.Clinic = &MeClinic{ID: c.ID.String(), Name: c.Name, BlockLevel: c.EffectiveBlockLevel()}
	}
	writeJSON(w, http.StatusOK, out)
}

type ChangeMyPasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) ChangeMyPassword(w http.ResponseWriter, r *http.Request) {
	uid := currentUserID(r)
	if uid == uuid.Nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req ChangeMyPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "current_password and new_password required")
		return
	}
	if err := auth.CheckPasswordStrength(req.NewPassword); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := repo.UserByID(r.Context(), h.DB, uid)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	if !auth.CheckPassword(u.PasswordHash, req.CurrentPassword) {
		writeError(w, http.StatusBadRequest, "current password incorrect")
		return
	}
	hash, err := h.hash(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	if err := repo.SetUserPassword(r.Context(), h.DB, uid, hash); err != nil {
		h.storeError(w, r, err)
		return
	}
	h.audit(r, auditEntry{Action: "PASSWORD_CHANGED", ResourceType: "USER", ResourceID: &uid, ClinicID: u.ClinicID})
	w.WriteHeader(http.StatusNoContent)
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

const forgotPasswordMessage = "Se o e-mail existir, você receberá instruções."

// ForgotPassword responde sempre 200 para não revelar quais e-mails existem.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Email) == "" {
		writeJSON(w, http.StatusOK, map[string]string{"message": forgotPasswordMessage})
		return
	}
	u, err := repo.UserByEmail(r.Context(), h.DB, req.Email)
	if err == nil {
		h.sendResetLink(r, u)
	} else if !repo.IsNotFound(err) {
		h.Log.Error().Err(err).Msg("forgot password lookup")
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": forgotPasswordMessage})
}

func (h *Handler) sendResetLink(r *http.Request, u *repo.User) {
	log := h.Log.With().Str("component", "password-reset").Str("user_id", u.ID.String()).Logger()
	if h.Mail == nil {
		log.Info().Msg("email disabled, reset link not sent")
		return
	}
	tok, err := repo.CreatePasswordResetToken(r.Context(), h.DB, u.ID, resetTokenTTL)
	if err != nil {
		log.Error().Err(err).Msg("create reset token")
		return
	}
	resetURL := strings.TrimRight(h.Cfg.AppPublicURL, "/") + "/reset-password?token=" + tok
	if err := h.Mail.SendPasswordReset(u.Email, resetURL); err != nil {
		log.Error().Err(err).Msg("send reset email")
	}
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		writeError(w, http.StatusBadRequest, "token required")
		return
	}
	if err := auth.CheckPasswordStrength(req.NewPassword); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hash, err := h.hash(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	userID, err := repo.ConsumePasswordResetToken(r.Context(), h.DB, strings.TrimSpace(req.Token))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid or expired token")
		return
	}
	if err := repo.SetUserPassword(r.Context(), h.DB, userID, hash); err != nil {
		h.storeError(w, r, err)
		return
	}
	h.audit(r, auditEntry{Action: "PASSWORD_RESET", ResourceType: "USER", ResourceID: &userID})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully."})
}
