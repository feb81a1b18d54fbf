package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
	"github.com/mdnsystems/OmniCare-sub005/internal/tenant"
)

type ProfessionalRequest struct {
	FullName      string  `json:"full_name" validate:"required,max=200"`
	Specialty     string  `json:"specialty" validate:"max=120"`
	Council       string  `json:"council" validate:"max=20"`
	CouncilNumber string  `json:"council_number" validate:"max=30"`
	Email         string  `json:"email" validate:"emailrx"`
	Phone         string  `json:"phone" validate:"phone"`
	CPF           *string `json:"cpf" validate:"omitempty,cpf"`
	Active        *bool   `json:"active"`
}

type ProfessionalOutput struct {
	ID            string `json:"id"`
	FullName      string `json:"full_name"`
	Specialty     string `json:"specialty,omitempty"`
	Council       string `json:"council,omitempty"`
	CouncilNumber string `json:"council_number,omitempty"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	CPF           string `json:"cpf,omitempty"`
	Active        bool   `json:"active"`
	CreatedAt     string `json:"created_at"`
}

func (h *Handler) professionalOutput(p *repo.Professional) ProfessionalOutput {
	return ProfessionalOutput{
		ID:            p.ID.String(),
		FullName:      p.FullName,
		Specialty:     strFromPtr(p.Specialty),
		Council:       strFromPtr(p.Council),
		CouncilNumber: strFromPtr(p.CouncilNumber),
		Email:         strFromPtr(p.Email),
		Phone:         strFromPtr(p.Phone),
		CPF:           h.openCPF(p.CPFEncrypted, p.CPFNonce, p.CPFKeyVersion),
		Active:        p.Active,
		CreatedAt:     p.CreatedAt.Format(timeLayout),
	}
}

type professionalListQuery struct {
	Search     string `schema:"search"`
	OnlyActive bool   `schema:"active"`
}

func (h *Handler) ListProfessionals(w http.ResponseWriter, r *http.Request) {
	var q professionalListQuery
	if err := decodeQuery(r, &q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid query")
		return
	}
	page := pageFrom(r)
	list, total, err := repo.ProfessionalsByClinic(r.Context(), h.DB, tenant.ID(r.Context()),
		repo.ProfessionalFilter{Search: q.Search, OnlyActive: q.OnlyActive}, page)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	out := make([]ProfessionalOutput, 0, len(list))
	for i := range list {
		out = append(out, h.professionalOutput(&list[i]))
	}
	listResponse(w, "professionals", out, total, page)
}

func (h *Handler) GetProfessional(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := repo.ProfessionalByIDAndClinic(r.Context(), h.DB, id, tenant.ID(r.Context()))
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.professionalOutput(p))
}

func (h *Handler) CreateProfessional(w http.ResponseWriter, r *http.Request) {
	var req ProfessionalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := validateStruct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p := &repo.Professional{
		ClinicID:      tenant.ID(r.Context()),
		FullName:      strings.TrimSpace(req.FullName),
		Specialty:     strPtr(req.Specialty),
		Council:       strPtr(strings.ToUpper(req.Council)),
		CouncilNumber: strPtr(req.CouncilNumber),
		Email:         strPtr(strings.ToLower(req.Email)),
		Phone:         strPtr(onlyDigits(req.Phone)),
	}
	if req.CPF != nil {
		enc, err := h.sealCPF(*req.CPF)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrInvalidCPF.Error())
			return
		}
		if enc != nil {
			p.CPFEncrypted, p.CPFNonce, p.CPFKeyVersion, p.CPFHash = enc.Ciphertext, enc.Nonce, &enc.KeyVersion, &enc.Hash
		}
	}
	if err := repo.CreateProfessional(r.Context(), h.DB, p); err != nil {
		if repo.IsUniqueViolation(err) {
			writeError(w, http.StatusConflict, "cpf already registered in this clinic")
			return
		}
		h.storeError(w, r, err)
		return
	}
	h.audit(r, auditEntry{Action: "PROFESSIONAL_CREATED", ResourceType: "PROFESSIONAL", ResourceID: &p.ID})
	writeJSON(w, http.StatusCreated, h.professionalOutput(p))
}

func (h *Handler) UpdateProfessional(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req ProfessionalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := validateStruct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	clinicID := tenant.ID(r.Context())
	var enc *repo.EncryptedCPF
	if req.CPF != nil {
		var err error
		if enc, err = h.sealCPF(*req.CPF); err != nil {
			writeError(w, http.StatusBadRequest, ErrInvalidCPF.Error())
			return
		}
	}
	err := h.DB.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		cur, err := repo.ProfessionalByIDAndClinic(r.Context(), tx, id, clinicID)
		if err != nil {
			return err
		}
		active := cur.Active
		if req.Active != nil {
			active = *req.Active
		}
		if err := repo.UpdateProfessional(r.Context(), tx, id, clinicID, repo.ProfessionalUpdate{
			FullName:      strings.TrimSpace(req.FullName),
			Specialty:     strPtr(req.Specialty),
			Council:       strPtr(strings.ToUpper(req.Council)),
			CouncilNumber: strPtr(req.CouncilNumber),
			Email:         strPtr(strings.ToLower(req.Email)),
			Phone:         strPtr(onlyDigits(req.Phone)),
			Active:        active,
		}); err != nil {
			return err
		}
		if req.CPF != nil {
			return repo.SetProfessionalCPF(r.Context(), tx, id, clinicID, enc)
		}
		return nil
	})
	if err != nil {
		if repo.IsUniqueViolation(err) {
			writeError(w, http.StatusConflict, "cpf already registered in this clinic")
			return
		}
		h.storeError(w, r, err)
		return
	}
	h.audit(r, auditEntry{Action: "PROFESSIONAL_UPDATED", ResourceType: "PROFESSIONAL", ResourceID: &id})
	p, err := repo.ProfessionalByIDAndClinic(r.Context(), h.DB, id, clinicID)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.professionalOutput(p))
}

func (h *Handler) DeleteProfessional(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := repo.SoftDeleteProfessional(r.Context(), h.DB, id, tenant.ID(r.Context())); err != nil {
		h.storeError(w, r, err)
		return
	}
	h.audit(r, auditEntry{Action: "PROFESSIONAL_DELETED", ResourceType: "PROFESSIONAL", ResourceID: &id})
	w.WriteHeader(http.StatusNoContent)
}

// professionalExists é usado por agendamentos e exames para validar referências do mesmo tenant.
func (h *Handler) professionalExists(r *http.Request, id uuid.UUID) (bool, error) {
	_, err := repo.ProfessionalByIDAndClinic(r.Context(), h.DB, id, tenant.ID(r.Context()))
	if repo.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}
